package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// gpioSampler polls encoder contacts through periph.io pins.
//
// Contacts close to ground against pull-ups, so a high level is an open contact.
type gpioSampler struct {
	a, b   gpio.PinIn
	sw     gpio.PinIn // nil without a switch contact
	period time.Duration
}

func openGPIOSampler(cfg GPIOConfig) (*gpioSampler, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	names := []string{cfg.PinA, cfg.PinB}
	if cfg.PinSwitch != "" {
		names = append(names, cfg.PinSwitch)
	}
	pins := make([]gpio.PinIn, 0, len(names))
	for _, name := range names {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("gpio pin %s not found", name)
		}
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("configure %s as input: %w", name, err)
		}
		pins = append(pins, p)
	}

	freq := physic.Frequency(cfg.PollHz) * physic.Hertz
	s := newGPIOSampler(pins[0], pins[1], nil, freq.Period())
	if len(pins) == 3 {
		s.sw = pins[2]
	}
	return s, nil
}

func newGPIOSampler(a, b, sw gpio.PinIn, period time.Duration) *gpioSampler {
	return &gpioSampler{a: a, b: b, sw: sw, period: period}
}

func (s *gpioSampler) Run(ctx context.Context, sink Sink) error {
	if s.period <= 0 {
		return errors.New("gpio sampler: poll period must be positive")
	}
	t := time.NewTicker(s.period)
	defer t.Stop()
	defer s.halt()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.sample(sink)
		}
	}
}

func (s *gpioSampler) sample(sink Sink) {
	sink.SamplePins(s.a.Read() == gpio.High, s.b.Read() == gpio.High)
	if s.sw != nil {
		sink.SampleSwitch(s.sw.Read() == gpio.Low)
	}
}

func (s *gpioSampler) halt() {
	for _, p := range []gpio.PinIn{s.a, s.b, s.sw} {
		if p != nil {
			_ = p.Halt()
		}
	}
}
