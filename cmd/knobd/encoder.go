package main

import (
	"sync"
	"time"

	"knobd/debounce"
	"knobd/quadrature"
)

// ============================================================================
// Encoders - decoder state behind the sampler and engine
// ============================================================================
//
// Samplers push raw readings through the Sink methods; the engine pulls events
// through ReadRotation/ReadPress. The decoders assume a single producer, so each
// encoder serializes its Sink methods and Reset with a mutex: the sampler goroutine
// and IPC requests both count as producers. Reads never take that mutex.
//
// ============================================================================

// Sink receives raw readings from a sampler.
type Sink interface {
	SamplePins(a, b bool)
	SampleValue(v uint16)
	SampleSwitch(pressed bool)
}

type sampleKind int

const (
	kindPins sampleKind = iota
	kindAnalog
)

func (k sampleKind) String() string {
	if k == kindAnalog {
		return "analog"
	}
	return "pins"
}

// encoder is what the engine and IPC server see.
type encoder interface {
	Sink
	Kind() sampleKind
	ReadRotation() (quadrature.Event, bool)
	ReadPress() quadrature.Press
	Reset()
}

// pinEncoder decodes two contacts plus an optional dedicated switch contact.
type pinEncoder struct {
	mu  sync.Mutex
	dec *quadrature.Decoder

	sw        *debounce.Debouncer // nil without a switch contact
	lastRawSw bool
}

func newPinEncoder(switchDebounce time.Duration, hasSwitch bool) *pinEncoder {
	e := &pinEncoder{dec: quadrature.NewDecoder()}
	if hasSwitch {
		e.sw = debounce.New(switchDebounce, false)
	}
	return e
}

func (e *pinEncoder) Kind() sampleKind { return kindPins }

func (e *pinEncoder) SamplePins(a, b bool) {
	e.mu.Lock()
	e.dec.Sample(a, b)
	e.mu.Unlock()
}

func (e *pinEncoder) SampleValue(uint16) {}

// SampleSwitch only forwards changes: every SetValue restarts the debounce timeout,
// so feeding it at the poll rate would never let a level settle.
func (e *pinEncoder) SampleSwitch(pressed bool) {
	if e.sw == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if pressed == e.lastRawSw {
		return
	}
	e.lastRawSw = pressed
	e.sw.SetValue(pressed)
}

func (e *pinEncoder) ReadRotation() (quadrature.Event, bool) {
	return e.dec.Read()
}

func (e *pinEncoder) ReadPress() quadrature.Press {
	if e.sw == nil {
		return quadrature.NoPress
	}
	pressed, changed := e.sw.Check()
	switch {
	case !changed:
		return quadrature.NoPress
	case pressed:
		return quadrature.Down
	default:
		return quadrature.Up
	}
}

// Reset writes the decoder history, so it counts as a producer.
func (e *pinEncoder) Reset() {
	e.mu.Lock()
	e.dec.Reset()
	e.mu.Unlock()
}

// adcEncoder decodes a single-pin encoder from raw ADC readings.
type adcEncoder struct {
	mu  sync.Mutex
	dec *quadrature.SinglePin
}

func newADCEncoder(cfg ADCConfig) (*adcEncoder, error) {
	dec, err := quadrature.NewSinglePin(cfg.Divider())
	if err != nil {
		return nil, err
	}
	return &adcEncoder{dec: dec}, nil
}

func (e *adcEncoder) Kind() sampleKind { return kindAnalog }

func (e *adcEncoder) SamplePins(bool, bool) {}

func (e *adcEncoder) SampleValue(v uint16) {
	e.mu.Lock()
	e.dec.SampleValue(v)
	e.mu.Unlock()
}

func (e *adcEncoder) SampleSwitch(bool) {}

func (e *adcEncoder) ReadRotation() (quadrature.Event, bool) {
	return e.dec.ReadRotation()
}

func (e *adcEncoder) ReadPress() quadrature.Press {
	return e.dec.ReadPress()
}

func (e *adcEncoder) Reset() {
	e.mu.Lock()
	e.dec.Reset()
	e.mu.Unlock()
}
