package main

import (
	"sync"
	"testing"
	"time"

	"knobd/quadrature"
)

func TestPinEncoder_SwitchSettlesDespitePolling(t *testing.T) {
	e := newPinEncoder(20*time.Millisecond, true)

	// A poller reports the same level on every tick; only the first one may
	// restart the debounce timeout.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		e.SampleSwitch(true)
		if p := e.ReadPress(); p != quadrature.NoPress {
			if p != quadrature.Down {
				t.Fatalf("got %v, want down", p)
			}
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("switch never settled")
}

func TestPinEncoder_NoSwitch(t *testing.T) {
	e := newPinEncoder(0, false)
	e.SampleSwitch(true)
	if p := e.ReadPress(); p != quadrature.NoPress {
		t.Fatalf("got %v without a switch contact", p)
	}
}

func TestPinEncoder_BounceShorterThanTimeoutIgnored(t *testing.T) {
	e := newPinEncoder(time.Hour, true)
	e.SampleSwitch(true)
	e.SampleSwitch(false)
	if p := e.ReadPress(); p != quadrature.NoPress {
		t.Fatalf("got %v, want no press", p)
	}
}

func TestEncoder_Kinds(t *testing.T) {
	if k := newPinEncoder(0, false).Kind(); k != kindPins {
		t.Fatalf("pin encoder kind = %v", k)
	}
	adc, err := newADCEncoder(DefaultConfig().Encoder.ADC)
	if err != nil {
		t.Fatalf("newADCEncoder: %v", err)
	}
	if adc.Kind() != kindAnalog || adc.Kind().String() != "analog" {
		t.Fatalf("adc encoder kind = %v", adc.Kind())
	}
}

// resetWaitsForSampler checks that Reset cannot interleave with a sample in progress.
func resetWaitsForSampler(t *testing.T, mu *sync.Mutex, reset func()) {
	t.Helper()
	mu.Lock()
	done := make(chan struct{})
	go func() {
		reset()
		close(done)
	}()

	select {
	case <-done:
		mu.Unlock()
		t.Fatalf("Reset completed while a sample held the encoder")
	case <-time.After(50 * time.Millisecond):
	}

	mu.Unlock()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Reset did not complete after the sample finished")
	}
}

func TestPinEncoder_ResetSerializedWithSampler(t *testing.T) {
	e := newPinEncoder(0, false)
	resetWaitsForSampler(t, &e.mu, e.Reset)
}

func TestADCEncoder_ResetSerializedWithSampler(t *testing.T) {
	e, err := newADCEncoder(DefaultConfig().Encoder.ADC)
	if err != nil {
		t.Fatalf("newADCEncoder: %v", err)
	}
	resetWaitsForSampler(t, &e.mu, e.Reset)
}

// Run with -race: a sampler goroutine and IPC resets share the decoder.
func TestPinEncoder_ConcurrentResetAndSampling(t *testing.T) {
	e := newPinEncoder(0, false)
	e.SamplePins(true, true)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		seq := [][2]bool{{true, false}, {false, false}, {false, true}, {true, true}}
		for {
			for _, p := range seq {
				select {
				case <-stop:
					return
				default:
				}
				e.SamplePins(p[0], p[1])
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		e.Reset()
		e.ReadRotation()
	}
	close(stop)
	wg.Wait()

	// After a reset with the contacts at rest, only a full detent produces a step.
	e.SamplePins(true, true)
	e.Reset()
	e.ReadRotation()
	e.SamplePins(false, true)
	e.SamplePins(true, true)
	if ev, ok := e.ReadRotation(); ok {
		t.Fatalf("unexpected rotation %+v after reset", ev)
	}
}
