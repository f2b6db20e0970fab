package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"knobd/internal/protocol"
)

type frameRecorder struct {
	mu     sync.Mutex
	frames []protocol.Frame
}

func (r *frameRecorder) publish(f protocol.Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
}

func (r *frameRecorder) take() []protocol.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.frames
	r.frames = nil
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, enc encoder, vel VelocityConfig) (*Engine, *frameRecorder) {
	t.Helper()
	rec := &frameRecorder{}
	e := newEngine(enc, EngineConfig{
		Source:   sourceGPIO,
		ReadHz:   defaultReadHz,
		Velocity: vel,
		Publish:  rec.publish,
		Clients:  func() int { return 2 },
	}, discardLogger())
	return e, rec
}

// injectDetent feeds one clockwise or counter-clockwise detent starting from rest.
func injectDetent(t *testing.T, e *Engine, clockwise bool) {
	t.Helper()
	seq := []protocol.InjectPins{{A: true, B: false}, {A: false, B: false}, {A: false, B: true}, {A: true, B: true}}
	if !clockwise {
		seq = []protocol.InjectPins{{A: false, B: true}, {A: false, B: false}, {A: true, B: false}, {A: true, B: true}}
	}
	for _, p := range seq {
		if _, err := e.Handle(p); err != nil {
			t.Fatalf("inject %+v: %v", p, err)
		}
	}
}

func TestEngine_PollPublishesRotation(t *testing.T) {
	enc := newPinEncoder(0, false)
	e, rec := newTestEngine(t, enc, VelocityConfig{WindowMS: 200, Threshold: 3, Multiplier: 4})

	if _, err := e.Handle(protocol.InjectPins{A: true, B: true}); err != nil {
		t.Fatalf("inject idle: %v", err)
	}
	injectDetent(t, e, true)
	injectDetent(t, e, true)

	now := time.Now()
	e.poll(now)

	frames := rec.take()
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Type != protocol.FrameRotation {
		t.Fatalf("frame type = %q, want %q", frames[0].Type, protocol.FrameRotation)
	}
	got := frames[0].Data.(protocol.RotationData)
	want := protocol.RotationData{Direction: "cw", Steps: 2, Fast: false, Multiplier: 1}
	if got != want {
		t.Fatalf("rotation = %+v, want %+v", got, want)
	}

	// Nothing new: no frames.
	e.poll(now.Add(10 * time.Millisecond))
	if frames := rec.take(); len(frames) != 0 {
		t.Fatalf("expected no frames, got %d", len(frames))
	}

	// One more detent within the window reaches the threshold.
	injectDetent(t, e, true)
	e.poll(now.Add(20 * time.Millisecond))
	frames = rec.take()
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	got = frames[0].Data.(protocol.RotationData)
	if !got.Fast || got.Multiplier != 4 || got.Steps != 1 {
		t.Fatalf("expected fast rotation of 1 step with multiplier 4, got %+v", got)
	}
}

func TestEngine_PollPublishesPress(t *testing.T) {
	enc := newPinEncoder(0, true)
	e, rec := newTestEngine(t, enc, VelocityConfig{})

	if _, err := e.Handle(protocol.InjectSwitch{Pressed: true}); err != nil {
		t.Fatalf("inject switch: %v", err)
	}
	e.poll(time.Now())

	frames := rec.take()
	if len(frames) != 1 || frames[0].Type != protocol.FramePress {
		t.Fatalf("expected one press frame, got %+v", frames)
	}
	if got := frames[0].Data.(protocol.PressData).State; got != "down" {
		t.Fatalf("press state = %q, want down", got)
	}

	if _, err := e.Handle(protocol.InjectSwitch{Pressed: false}); err != nil {
		t.Fatalf("inject switch: %v", err)
	}
	e.poll(time.Now())
	frames = rec.take()
	if len(frames) != 1 || frames[0].Data.(protocol.PressData).State != "up" {
		t.Fatalf("expected one release frame, got %+v", frames)
	}

	if e.presses.Load() != 1 {
		t.Fatalf("presses = %d, want 1", e.presses.Load())
	}
}

func TestEngine_HandleRejectsWrongSampleKind(t *testing.T) {
	pinsEngine, _ := newTestEngine(t, newPinEncoder(0, false), VelocityConfig{})
	if _, err := pinsEngine.Handle(protocol.InjectValue{Value: 100}); !errors.Is(err, errWrongSampleKind) {
		t.Fatalf("inject_value on pin encoder: got %v, want errWrongSampleKind", err)
	}

	adc, err := newADCEncoder(DefaultConfig().Encoder.ADC)
	if err != nil {
		t.Fatalf("newADCEncoder: %v", err)
	}
	adcEngine, _ := newTestEngine(t, adc, VelocityConfig{})
	if _, err := adcEngine.Handle(protocol.InjectPins{A: true, B: true}); !errors.Is(err, errWrongSampleKind) {
		t.Fatalf("inject_pins on adc encoder: got %v, want errWrongSampleKind", err)
	}
	if _, err := adcEngine.Handle(protocol.InjectSwitch{Pressed: true}); !errors.Is(err, errWrongSampleKind) {
		t.Fatalf("inject_switch on adc encoder: got %v, want errWrongSampleKind", err)
	}
	if _, err := adcEngine.Handle(protocol.InjectValue{Value: 100}); err != nil {
		t.Fatalf("inject_value on adc encoder: %v", err)
	}
}

func TestEngine_ADCPressFrame(t *testing.T) {
	adc, err := newADCEncoder(DefaultConfig().Encoder.ADC)
	if err != nil {
		t.Fatalf("newADCEncoder: %v", err)
	}
	e, rec := newTestEngine(t, adc, VelocityConfig{})

	// A reading at ground is a closed switch.
	if _, err := e.Handle(protocol.InjectValue{Value: 0}); err != nil {
		t.Fatalf("inject: %v", err)
	}
	e.poll(time.Now())
	frames := rec.take()
	if len(frames) != 1 || frames[0].Type != protocol.FramePress {
		t.Fatalf("expected one press frame, got %+v", frames)
	}
}

func TestEngine_ResetDropsPartialRotation(t *testing.T) {
	e, rec := newTestEngine(t, newPinEncoder(0, false), VelocityConfig{})

	for _, p := range []protocol.InjectPins{{A: true, B: true}, {A: true, B: false}, {A: false, B: false}} {
		if _, err := e.Handle(p); err != nil {
			t.Fatalf("inject: %v", err)
		}
	}
	if _, err := e.Handle(protocol.Reset{}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	for _, p := range []protocol.InjectPins{{A: false, B: true}, {A: true, B: true}} {
		if _, err := e.Handle(p); err != nil {
			t.Fatalf("inject: %v", err)
		}
	}

	e.poll(time.Now())
	if frames := rec.take(); len(frames) != 0 {
		t.Fatalf("expected no rotation after reset, got %+v", frames)
	}
}

func TestEngine_Status(t *testing.T) {
	e, _ := newTestEngine(t, newPinEncoder(0, false), VelocityConfig{})

	if _, err := e.Handle(protocol.InjectPins{A: true, B: true}); err != nil {
		t.Fatalf("inject idle: %v", err)
	}
	injectDetent(t, e, true)
	e.poll(time.Now())
	injectDetent(t, e, false)
	injectDetent(t, e, false)
	e.poll(time.Now())

	raw, err := e.Handle(protocol.Status{})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var st protocol.StatusData
	if err := json.Unmarshal(raw, &st); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if st.StepsCW != 1 || st.StepsCCW != 2 {
		t.Fatalf("steps cw=%d ccw=%d, want 1 and 2", st.StepsCW, st.StepsCCW)
	}
	if st.Clients != 2 || st.Source != sourceGPIO || st.Version != version {
		t.Fatalf("unexpected status %+v", st)
	}
}
