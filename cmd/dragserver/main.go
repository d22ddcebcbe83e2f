// Command dragserver hosts drag and circuit races over WebSocket.
//
// Connection flow:
//  1. Client connects via WebSocket to /ws
//  2. Client sends a Join message naming the race mode
//  3. Server opens a room running its own session and replies with SessionInfo
//  4. Client sends Input and Command messages, server streams State at 20Hz
package main

func main() {
	Execute()
}
