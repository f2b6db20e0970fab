// Package protocol defines the JSON messages knobd exchanges with its clients:
// line-delimited requests over the IPC socket and event frames over WebSocket.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// IPC Requests
// ============================================================================
// Requests are sent by knobctl and scripts over the Unix socket, one JSON
// envelope per line: {"type": "...", "data": {...}}.
// ============================================================================

// Request is a marker interface for all IPC requests
type Request interface {
	requestMarker()
}

// Reset discards the decoder's recent contact history
type Reset struct{}

// InjectPins feeds one (A, B) contact sample as if read from hardware
type InjectPins struct {
	A bool `json:"a"`
	B bool `json:"b"`
}

// InjectValue feeds one raw ADC reading (single-pin encoders only)
type InjectValue struct {
	Value uint16 `json:"value"`
}

// InjectSwitch feeds one raw switch contact level (true = pressed)
type InjectSwitch struct {
	Pressed bool `json:"pressed"`
}

// Status asks for the daemon's counters
type Status struct{}

func (Reset) requestMarker()        {}
func (InjectPins) requestMarker()   {}
func (InjectValue) requestMarker()  {}
func (InjectSwitch) requestMarker() {}
func (Status) requestMarker()       {}

// Envelope wraps a message with a type discriminator for JSON marshaling
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	typeReset        = "reset"
	typeInjectPins   = "inject_pins"
	typeInjectValue  = "inject_value"
	typeInjectSwitch = "inject_switch"
	typeStatus       = "status"
)

// UnmarshalRequest deserializes a JSON envelope into a concrete Request
func UnmarshalRequest(data []byte) (Request, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case typeReset:
		return Reset{}, nil

	case typeInjectPins:
		var r InjectPins
		if err := unmarshalData(env, &r); err != nil {
			return nil, err
		}
		return r, nil

	case typeInjectValue:
		var r InjectValue
		if err := unmarshalData(env, &r); err != nil {
			return nil, err
		}
		return r, nil

	case typeInjectSwitch:
		var r InjectSwitch
		if err := unmarshalData(env, &r); err != nil {
			return nil, err
		}
		return r, nil

	case typeStatus:
		return Status{}, nil

	default:
		return nil, fmt.Errorf("unknown request type: %q", env.Type)
	}
}

func unmarshalData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s: missing data", env.Type)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	return nil
}

// MarshalRequest serializes a Request into a JSON envelope
func MarshalRequest(r Request) ([]byte, error) {
	var env Envelope

	switch r.(type) {
	case Reset:
		env.Type = typeReset
	case InjectPins:
		env.Type = typeInjectPins
	case InjectValue:
		env.Type = typeInjectValue
	case InjectSwitch:
		env.Type = typeInjectSwitch
	case Status:
		env.Type = typeStatus
	default:
		return nil, fmt.Errorf("unknown request type: %T", r)
	}

	switch r.(type) {
	case InjectPins, InjectValue, InjectSwitch:
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", env.Type, err)
		}
		env.Data = data
	}

	return json.Marshal(env)
}

// Response is sent back for every request line
type Response struct {
	Status string          `json:"status"`          // "ok" or "error"
	Error  string          `json:"error,omitempty"` // error message if status == "error"
	Data   json.RawMessage `json:"data,omitempty"`  // request-specific payload
}

// StatusData is the payload of a successful Status request
type StatusData struct {
	Version   string    `json:"version"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`

	StepsCW  uint64 `json:"steps_cw"`
	StepsCCW uint64 `json:"steps_ccw"`
	Presses  uint64 `json:"presses"`
	Clients  int    `json:"ws_clients"`
}

// ============================================================================
// WebSocket frames
// ============================================================================

// Frame is the wire envelope of WebSocket messages
type Frame struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

// Frame types
const (
	FrameHello    = "hello"
	FrameRotation = "rotation"
	FramePress    = "press"
)

// HelloData is sent once to each client on connect
type HelloData struct {
	Version string `json:"version"`
	Source  string `json:"source"`
}

// RotationData describes the steps collected in one read
type RotationData struct {
	Direction  string  `json:"direction"` // "cw" or "ccw"
	Steps      int     `json:"steps"`
	Fast       bool    `json:"fast"`
	Multiplier float64 `json:"multiplier"`
}

// PressData describes a switch transition
type PressData struct {
	State string `json:"state"` // "down" or "up"
}
