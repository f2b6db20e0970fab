package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
)

// adcReader is the part of analog.PinADC the sampler needs.
type adcReader interface {
	Read() (analog.Sample, error)
}

// iioChannel reads one Linux IIO voltage channel through sysfs. The raw file is
// re-read from offset 0 on every sample.
type iioChannel struct {
	f       *os.File
	scaleMV float64 // millivolts per raw count, 0 if unknown
	buf     []byte
}

func openIIOChannel(path string) (*iioChannel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open iio channel: %w", err)
	}
	c := &iioChannel{f: f, buf: make([]byte, 32)}

	// in_voltageN_raw has a sibling in_voltageN_scale or a shared in_voltage_scale.
	dir, base := filepath.Split(path)
	for _, name := range []string{strings.TrimSuffix(base, "_raw") + "_scale", "in_voltage_scale"} {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64); err == nil {
			c.scaleMV = v
			break
		}
	}
	return c, nil
}

func (c *iioChannel) Read() (analog.Sample, error) {
	n, err := c.f.ReadAt(c.buf, 0)
	if n == 0 && err != nil {
		return analog.Sample{}, fmt.Errorf("read %s: %w", c.f.Name(), err)
	}
	raw, err := strconv.ParseInt(strings.TrimSpace(string(c.buf[:n])), 10, 32)
	if err != nil {
		return analog.Sample{}, fmt.Errorf("parse %s: %w", c.f.Name(), err)
	}
	s := analog.Sample{Raw: int32(raw)}
	if c.scaleMV > 0 {
		s.V = physic.ElectricPotential(float64(raw) * c.scaleMV * float64(physic.MilliVolt))
	}
	return s, nil
}

func (c *iioChannel) Close() error {
	return c.f.Close()
}

// adcSampler polls a single-pin encoder.
type adcSampler struct {
	ch     adcReader
	closer func() error
	period time.Duration
}

func openADCSampler(cfg ADCConfig) (*adcSampler, error) {
	ch, err := openIIOChannel(cfg.Path)
	if err != nil {
		return nil, err
	}
	freq := physic.Frequency(cfg.PollHz) * physic.Hertz
	return &adcSampler{ch: ch, closer: ch.Close, period: freq.Period()}, nil
}

func (s *adcSampler) Run(ctx context.Context, sink Sink) error {
	if s.period <= 0 {
		return errors.New("adc sampler: poll period must be positive")
	}
	if s.closer != nil {
		defer s.closer()
	}
	t := time.NewTicker(s.period)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := s.sample(sink); err != nil {
				return err
			}
		}
	}
}

func (s *adcSampler) sample(sink Sink) error {
	v, err := s.ch.Read()
	if err != nil {
		return fmt.Errorf("adc sampler: %w", err)
	}
	sink.SampleValue(clampRaw(v.Raw))
	return nil
}

func clampRaw(raw int32) uint16 {
	switch {
	case raw < 0:
		return 0
	case raw > 0xFFFF:
		return 0xFFFF
	default:
		return uint16(raw)
	}
}
