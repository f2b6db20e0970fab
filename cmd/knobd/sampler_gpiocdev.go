//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// cdevSampler takes encoder contacts from the GPIO character device with edge
// detection. gpiocdev calls the event handler from its own goroutine, which is
// the producer for the decoder.
type cdevSampler struct {
	cfg    GPIOCdevConfig
	logger *slog.Logger

	mu     sync.Mutex
	ready  bool
	levels []int // indexed like offsets
}

func newCdevSampler(cfg GPIOCdevConfig, logger *slog.Logger) *cdevSampler {
	return &cdevSampler{cfg: cfg, logger: logger}
}

func (s *cdevSampler) offsets() []int {
	offsets := []int{s.cfg.LineA, s.cfg.LineB}
	if s.cfg.LineSwitch >= 0 {
		offsets = append(offsets, s.cfg.LineSwitch)
	}
	return offsets
}

func (s *cdevSampler) Run(ctx context.Context, sink Sink) error {
	offsets := s.offsets()
	s.levels = make([]int, len(offsets))

	handler := func(evt gpiocdev.LineEvent) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.ready {
			return
		}
		for i, o := range offsets {
			if o != evt.Offset {
				continue
			}
			if evt.Type == gpiocdev.LineEventRisingEdge {
				s.levels[i] = 1
			} else {
				s.levels[i] = 0
			}
			s.emit(sink)
			return
		}
	}

	lines, err := gpiocdev.RequestLines(s.cfg.Chip, offsets,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithConsumer("knobd"),
		gpiocdev.WithEventHandler(handler))
	if err != nil {
		return fmt.Errorf("request lines %v on %s: %w", offsets, s.cfg.Chip, err)
	}
	defer lines.Close()

	s.mu.Lock()
	if err := lines.Values(s.levels); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("read initial line values: %w", err)
	}
	s.ready = true
	s.emit(sink)
	s.mu.Unlock()

	s.logger.Info("gpiocdev sampler started", "chip", s.cfg.Chip, "lines", offsets)

	<-ctx.Done()
	return nil
}

// emit pushes the current levels. Callers hold s.mu.
func (s *cdevSampler) emit(sink Sink) {
	sink.SamplePins(s.levels[0] == 1, s.levels[1] == 1)
	if len(s.levels) == 3 {
		sink.SampleSwitch(s.levels[2] == 0)
	}
}
