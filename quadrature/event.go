// Package quadrature decodes EC11-style rotary encoders.
//
// A Decoder turns a stream of (A, B) contact levels into rotation events. A
// SinglePin decoder derives A, B and the push switch from one analog sample taken
// across a resistor divider and feeds the same decoding logic.
//
// Samples are pushed by a single producer (a poll loop, an edge handler) while a
// consumer in another goroutine collects the accumulated events with Read. The
// read-and-clear is atomic with respect to the producer, so steps are never lost
// or reported twice.
package quadrature

// Direction of a rotation event.
type Direction uint8

const (
	// None means no rotation has been recorded yet.
	None Direction = iota
	// Clockwise rotation.
	Clockwise
	// CounterClockwise rotation.
	CounterClockwise
)

func (d Direction) String() string {
	switch d {
	case Clockwise:
		return "cw"
	case CounterClockwise:
		return "ccw"
	default:
		return "none"
	}
}

// Event is a run of steps in one direction, such as "clockwise by 5 steps".
type Event struct {
	Direction Direction
	// Count saturates at 255 instead of wrapping.
	Count uint8
}

// The pending event is kept in a single word so it can be swapped atomically:
// bits 8..15 hold the direction, bits 0..7 the count.

func pack(e Event) uint32 {
	return uint32(e.Direction)<<8 | uint32(e.Count)
}

func unpack(w uint32) Event {
	return Event{Direction: Direction(w >> 8), Count: uint8(w)}
}

// accumulate merges one step in direction d into the pending event.
func accumulate(e Event, d Direction) Event {
	if e.Direction != d {
		return Event{Direction: d, Count: 1}
	}
	if e.Count != 0xFF {
		e.Count++
	}
	return e
}

// Press is a pending switch transition.
type Press uint8

const (
	// NoPress means no unread transition.
	NoPress Press = iota
	// Down is a switch press.
	Down
	// Up is a switch release.
	Up
)

func (p Press) String() string {
	switch p {
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return "none"
	}
}
