// Command dragterm plays a race in the terminal, either against a local session or a
// dragserver over WebSocket.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
