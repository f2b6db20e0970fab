package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

type sample struct {
	kind    string
	a, b    bool
	value   uint16
	pressed bool
}

// recordingSink records every reading a sampler produces.
type recordingSink struct {
	mu      sync.Mutex
	samples []sample
}

func (s *recordingSink) SamplePins(a, b bool) {
	s.mu.Lock()
	s.samples = append(s.samples, sample{kind: "pins", a: a, b: b})
	s.mu.Unlock()
}

func (s *recordingSink) SampleValue(v uint16) {
	s.mu.Lock()
	s.samples = append(s.samples, sample{kind: "value", value: v})
	s.mu.Unlock()
}

func (s *recordingSink) SampleSwitch(pressed bool) {
	s.mu.Lock()
	s.samples = append(s.samples, sample{kind: "switch", pressed: pressed})
	s.mu.Unlock()
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func TestGPIOSampler_LevelsMapToContacts(t *testing.T) {
	a := &gpiotest.Pin{N: "A", L: gpio.High}
	b := &gpiotest.Pin{N: "B", L: gpio.Low}
	sw := &gpiotest.Pin{N: "SW", L: gpio.Low}
	s := newGPIOSampler(a, b, sw, time.Millisecond)

	sink := &recordingSink{}
	s.sample(sink)

	want := []sample{
		{kind: "pins", a: true, b: false},
		{kind: "switch", pressed: true},
	}
	if len(sink.samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(sink.samples), len(want))
	}
	for i := range want {
		if sink.samples[i] != want[i] {
			t.Fatalf("sample %d = %+v, want %+v", i, sink.samples[i], want[i])
		}
	}
}

func TestGPIOSampler_RunStopsOnCancel(t *testing.T) {
	a := &gpiotest.Pin{N: "A", L: gpio.High}
	b := &gpiotest.Pin{N: "B", L: gpio.High}
	s := newGPIOSampler(a, b, nil, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	sink := &recordingSink{}
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, sink) }()

	waitUntil(t, time.Second, func() bool { return sink.len() >= 3 }, "sampler produced no readings")
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("sampler did not stop")
	}
}

func TestIIOChannel_Read(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "in_voltage0_raw")
	if err := os.WriteFile(raw, []byte("2047\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "in_voltage_scale"), []byte("0.805664062\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ch, err := openIIOChannel(raw)
	if err != nil {
		t.Fatalf("openIIOChannel: %v", err)
	}
	defer ch.Close()

	got, err := ch.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Raw != 2047 {
		t.Fatalf("raw = %d, want 2047", got.Raw)
	}
	if got.V <= 0 {
		t.Fatalf("expected a scaled voltage, got %v", got.V)
	}

	// The file is re-read from the start on every sample.
	if err := os.WriteFile(raw, []byte("12\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = ch.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Raw != 12 {
		t.Fatalf("raw = %d, want 12", got.Raw)
	}
}

type stubADC struct {
	s   analog.Sample
	err error
}

func (s stubADC) Read() (analog.Sample, error) { return s.s, s.err }

func TestADCSampler_Sample(t *testing.T) {
	sink := &recordingSink{}
	s := &adcSampler{ch: stubADC{s: analog.Sample{Raw: 70000}}, period: time.Millisecond}
	if err := s.sample(sink); err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(sink.samples) != 1 || sink.samples[0] != (sample{kind: "value", value: 0xFFFF}) {
		t.Fatalf("samples = %+v", sink.samples)
	}

	s.ch = stubADC{err: errors.New("EIO")}
	if err := s.sample(sink); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestClampRaw(t *testing.T) {
	tests := map[int32]uint16{-5: 0, 0: 0, 1023: 1023, 65535: 65535, 65536: 65535}
	for in, want := range tests {
		if got := clampRaw(in); got != want {
			t.Errorf("clampRaw(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestKeyMap_Apply(t *testing.T) {
	m := keyMap{a: BTN_TRIGGER_HAPPY1, b: BTN_TRIGGER_HAPPY2, sw: BTN_TRIGGER_HAPPY3}
	st := idleContacts()

	pins, sw := m.apply(inputEvent{Type: EV_KEY, Code: BTN_TRIGGER_HAPPY1, Value: evValuePress}, &st)
	if !pins || sw || st.a || !st.b {
		t.Fatalf("after A press: pins=%v sw=%v state=%+v", pins, sw, st)
	}

	pins, _ = m.apply(inputEvent{Type: EV_KEY, Code: BTN_TRIGGER_HAPPY1, Value: evValueRepeat}, &st)
	if pins {
		t.Fatalf("repeat events must be ignored")
	}

	pins, _ = m.apply(inputEvent{Type: EV_KEY, Code: BTN_TRIGGER_HAPPY1, Value: evValueRelease}, &st)
	if !pins || !st.a {
		t.Fatalf("after A release: state=%+v", st)
	}

	_, sw = m.apply(inputEvent{Type: EV_KEY, Code: BTN_TRIGGER_HAPPY3, Value: evValuePress}, &st)
	if !sw || !st.switchOn {
		t.Fatalf("after switch press: state=%+v", st)
	}

	// Sync events and unknown keys are ignored.
	pins, sw = m.apply(inputEvent{Type: 0, Code: 0, Value: 0}, &st)
	if pins || sw {
		t.Fatalf("EV_SYN must be ignored")
	}
	pins, sw = m.apply(inputEvent{Type: EV_KEY, Code: 0x100, Value: evValuePress}, &st)
	if pins || sw {
		t.Fatalf("unknown key must be ignored")
	}
}

func TestKeyMap_NoSwitch(t *testing.T) {
	m := keyMap{a: BTN_TRIGGER_HAPPY1, b: BTN_TRIGGER_HAPPY2}
	st := idleContacts()
	if _, sw := m.apply(inputEvent{Type: EV_KEY, Code: 0, Value: evValuePress}, &st); sw {
		t.Fatalf("key code 0 must not map to a switch")
	}
}
