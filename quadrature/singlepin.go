package quadrature

import (
	"errors"
	"fmt"
	"math"
)

// DividerConfig describes the resistor network that lets one analog input carry
// both contacts and the push switch of an encoder.
//
// RA and RB sit in series between the reference and the ADC node, and R pulls the
// node to ground. Contact A is wired across RA and contact B across RB, so a
// conducting contact shorts its resistor; the switch shorts the node to ground.
// A contact reads as level 1 while it conducts, which is the rest position of
// encoders whose contacts are closed on a detent. With RA > RB the bands from high
// to low are (A,B) = (1,1), (1,0), (0,1), (0,0).
type DividerConfig struct {
	R  float64 // pull-down, ohms
	RA float64 // bridged by contact A, ohms; must be larger than RB
	RB float64 // bridged by contact B, ohms

	// Max is the raw ADC reading at the reference voltage.
	Max uint16
}

// Levels are the expected raw readings for each contact combination and the band
// boundaries derived from them. The digits are contact levels, so A1B0 is the
// reading with contact A conducting and B open.
type Levels struct {
	A1B1, A1B0, A0B1, A0B0 uint16

	// Midpoints between adjacent levels, highest first.
	Upper, Middle, Lower uint16
	// Readings at or below Pressed mean the switch is closed.
	Pressed uint16
}

// ErrDivider is returned for a divider that cannot produce four distinct bands.
var ErrDivider = errors.New("quadrature: invalid divider")

// Levels computes the reference readings and band boundaries of c.
func (c DividerConfig) Levels() (Levels, error) {
	if c.R <= 0 || c.RA <= 0 || c.RB <= 0 {
		return Levels{}, fmt.Errorf("%w: resistances must be positive", ErrDivider)
	}
	if c.RA <= c.RB {
		return Levels{}, fmt.Errorf("%w: RA (%g) must be larger than RB (%g)", ErrDivider, c.RA, c.RB)
	}
	if c.Max == 0 {
		return Levels{}, fmt.Errorf("%w: ADC maximum must be positive", ErrDivider)
	}

	full := float64(c.Max)
	// series is the resistance left above the node.
	level := func(series float64) uint16 {
		return uint16(math.Round(full * c.R / (c.R + series)))
	}

	l := Levels{
		A1B1: c.Max,
		A1B0: level(c.RB),
		A0B1: level(c.RA),
		A0B0: level(c.RA + c.RB),
	}
	l.Upper = mid(l.A1B1, l.A1B0)
	l.Middle = mid(l.A1B0, l.A0B1)
	l.Lower = mid(l.A0B1, l.A0B0)
	l.Pressed = l.A0B0 / 2

	if !(l.Upper > l.Middle && l.Middle > l.Lower && l.Lower > l.Pressed) {
		return Levels{}, fmt.Errorf("%w: bands collapse at ADC maximum %d", ErrDivider, c.Max)
	}
	return l, nil
}

func mid(a, b uint16) uint16 {
	return uint16((uint32(a) + uint32(b)) / 2)
}

// SinglePin emulates the two-contact decoder and a push switch from one analog
// input.
type SinglePin struct {
	dec    Decoder
	levels Levels

	// Touched by the producer only.
	lastPressed bool

	press PressLatch
}

// NewSinglePin returns a decoder for the given divider.
func NewSinglePin(c DividerConfig) (*SinglePin, error) {
	l, err := c.Levels()
	if err != nil {
		return nil, err
	}
	return &SinglePin{levels: l}, nil
}

// Levels returns the band boundaries in use.
func (s *SinglePin) Levels() Levels {
	return s.levels
}

// SampleValue records one raw ADC reading. Like Decoder.Sample it must be called
// from a single producer.
//
// While the switch is closed the contacts cannot be told apart, so rotation is not
// interpreted; a step that straddles a press is lost.
func (s *SinglePin) SampleValue(v uint16) {
	if v <= s.levels.Pressed {
		s.setPressed(true)
		return
	}

	var a, b bool
	switch {
	case v > s.levels.Upper:
		a, b = true, true
	case v > s.levels.Middle:
		a, b = true, false
	case v > s.levels.Lower:
		a, b = false, true
	}
	s.dec.Sample(a, b)
	s.setPressed(false)
}

func (s *SinglePin) setPressed(pressed bool) {
	if pressed == s.lastPressed {
		return
	}
	s.lastPressed = pressed
	if pressed {
		s.press.Set(Down)
	} else {
		s.press.Set(Up)
	}
	// The divider transient of the switch itself can look like contact changes.
	s.dec.Reset()
}

// ReadPress returns the last unread switch transition and clears it.
func (s *SinglePin) ReadPress() Press {
	return s.press.Read()
}

// ReadRotation returns the steps accumulated since the previous call.
func (s *SinglePin) ReadRotation() (Event, bool) {
	return s.dec.Read()
}

// Reset forgets the recent contact states.
func (s *SinglePin) Reset() {
	s.dec.Reset()
}
