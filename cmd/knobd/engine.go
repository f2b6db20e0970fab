package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"knobd/internal/protocol"
	"knobd/quadrature"
)

// ============================================================================
// Engine - the consumer side of the decoder
// ============================================================================
//
// The engine collects pending events from the encoder on a fixed cadence,
// applies fast-spin detection and hands frames to the publisher (the WebSocket
// hub). It also serves IPC requests, which may inject samples as an additional
// producer.
//
// ============================================================================

// Engine reads decoded events and publishes them.
type Engine struct {
	enc     encoder
	vel     *velocityTracker
	publish func(protocol.Frame)
	clients func() int
	source  string
	logger  *slog.Logger

	readInterval time.Duration
	startedAt    time.Time

	stepsCW  atomic.Uint64
	stepsCCW atomic.Uint64
	presses  atomic.Uint64
}

// EngineConfig wires an Engine.
type EngineConfig struct {
	Source   string
	ReadHz   int
	Velocity VelocityConfig

	// Publish receives every frame. Required.
	Publish func(protocol.Frame)
	// Clients reports connected stream clients for status requests. Optional.
	Clients func() int
}

func newEngine(enc encoder, cfg EngineConfig, logger *slog.Logger) *Engine {
	readHz := cfg.ReadHz
	if readHz <= 0 {
		readHz = defaultReadHz
	}
	clients := cfg.Clients
	if clients == nil {
		clients = func() int { return 0 }
	}
	return &Engine{
		enc:          enc,
		vel:          newVelocityTracker(cfg.Velocity),
		publish:      cfg.Publish,
		clients:      clients,
		source:       cfg.Source,
		logger:       logger,
		readInterval: time.Second / time.Duration(readHz),
		startedAt:    time.Now(),
	}
}

// Run collects events until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.readInterval)
	defer ticker.Stop()

	e.logger.Info("engine started", "read_interval", e.readInterval)

	for {
		select {
		case <-ctx.Done():
			// Deliver whatever arrived after the last tick.
			e.poll(time.Now())
			e.logger.Info("engine stopping (context canceled)")
			return nil

		case now := <-ticker.C:
			e.poll(now)
		}
	}
}

// poll performs one read of the encoder and publishes the resulting frames.
func (e *Engine) poll(now time.Time) {
	ts := now.UTC()

	if ev, ok := e.enc.ReadRotation(); ok {
		switch ev.Direction {
		case quadrature.Clockwise:
			e.stepsCW.Add(uint64(ev.Count))
		case quadrature.CounterClockwise:
			e.stepsCCW.Add(uint64(ev.Count))
		}

		fast, mult := e.vel.multiplier(e.vel.add(ev, now))
		e.logger.Debug("rotation", "direction", ev.Direction.String(), "steps", ev.Count, "fast", fast)
		e.publish(protocol.Frame{
			Type: protocol.FrameRotation,
			Ts:   &ts,
			Data: protocol.RotationData{
				Direction:  ev.Direction.String(),
				Steps:      int(ev.Count),
				Fast:       fast,
				Multiplier: mult,
			},
		})
	}

	if p := e.enc.ReadPress(); p != quadrature.NoPress {
		if p == quadrature.Down {
			e.presses.Add(1)
		}
		e.logger.Debug("press", "state", p.String())
		e.publish(protocol.Frame{
			Type: protocol.FramePress,
			Ts:   &ts,
			Data: protocol.PressData{State: p.String()},
		})
	}
}

var errWrongSampleKind = errors.New("sample kind not supported by this encoder")

// Handle executes one IPC request. The returned value, if any, is the response data.
func (e *Engine) Handle(req protocol.Request) (json.RawMessage, error) {
	switch r := req.(type) {
	case protocol.Reset:
		e.enc.Reset()
		e.logger.Info("decoder history reset via IPC")
		return nil, nil

	case protocol.InjectPins:
		if e.enc.Kind() != kindPins {
			return nil, fmt.Errorf("inject_pins: %w (%s)", errWrongSampleKind, e.enc.Kind())
		}
		e.enc.SamplePins(r.A, r.B)
		return nil, nil

	case protocol.InjectValue:
		if e.enc.Kind() != kindAnalog {
			return nil, fmt.Errorf("inject_value: %w (%s)", errWrongSampleKind, e.enc.Kind())
		}
		e.enc.SampleValue(r.Value)
		return nil, nil

	case protocol.InjectSwitch:
		if e.enc.Kind() != kindPins {
			return nil, fmt.Errorf("inject_switch: %w (%s)", errWrongSampleKind, e.enc.Kind())
		}
		e.enc.SampleSwitch(r.Pressed)
		return nil, nil

	case protocol.Status:
		return json.Marshal(e.status())

	default:
		return nil, fmt.Errorf("unhandled request %T", req)
	}
}

func (e *Engine) status() protocol.StatusData {
	return protocol.StatusData{
		Version:   version,
		Source:    e.source,
		StartedAt: e.startedAt.UTC(),
		StepsCW:   e.stepsCW.Load(),
		StepsCCW:  e.stepsCCW.Load(),
		Presses:   e.presses.Load(),
		Clients:   e.clients(),
	}
}
