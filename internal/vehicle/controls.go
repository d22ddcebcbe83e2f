// Package vehicle integrates car motion for the drag strip and the circuit, and couples
// the player's car to the race store (launch, finish and pose publishing).
package vehicle

// Key bits shared by the keyboard, the touch overlay and the network input message.
const (
	KeyAccelerate uint8 = 1 << iota
	KeyBrake
	KeyLeft
	KeyRight
	KeyCamera
)

// Controls are the boolean driving inputs for one frame.
type Controls struct {
	Accelerate bool
	Brake      bool
	SteerLeft  bool
	SteerRight bool
}

// ControlsFromKeys decodes key bits. The camera bit is not a driving input and is ignored.
func ControlsFromKeys(keys uint8) Controls {
	return Controls{
		Accelerate: keys&KeyAccelerate != 0,
		Brake:      keys&KeyBrake != 0,
		SteerLeft:  keys&KeyLeft != 0,
		SteerRight: keys&KeyRight != 0,
	}
}

// steer returns -1 for left, +1 for right and 0 when both or neither are held.
func (c Controls) steer() float64 {
	switch {
	case c.SteerLeft && !c.SteerRight:
		return -1
	case c.SteerRight && !c.SteerLeft:
		return 1
	}
	return 0
}
