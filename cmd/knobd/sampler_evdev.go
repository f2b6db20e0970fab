//go:build linux

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// evdevSampler reads encoder contacts exposed as keys by the gpio-keys driver.
// One goroutine multiplexes all devices with epoll.
type evdevSampler struct {
	devices []string
	keys    keyMap
	logger  *slog.Logger
}

func newEvdevSampler(cfg EvdevConfig, logger *slog.Logger) *evdevSampler {
	return &evdevSampler{
		devices: cfg.Devices,
		keys:    keyMap{a: cfg.KeyA, b: cfg.KeyB, sw: cfg.KeySwitch},
		logger:  logger,
	}
}

// epollTimeoutMS bounds how long shutdown waits for a blocked epoll_wait.
const epollTimeoutMS = 200

func (s *evdevSampler) Run(ctx context.Context, sink Sink) error {
	if len(s.devices) == 0 {
		return errors.New("no input devices provided")
	}

	files := make([]*os.File, 0, len(s.devices))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, dev := range s.devices {
		f, err := os.Open(dev)
		if err != nil {
			return fmt.Errorf("open input device %s: %w (run as root or add user to 'input' group)", dev, err)
		}
		files = append(files, f)
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	// Map file descriptors to files for later identification
	fdToFile := make(map[int]*os.File)
	for _, f := range files {
		fd := int(f.Fd())
		fdToFile[fd] = f

		event := unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(fd),
		}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			return fmt.Errorf("epoll_ctl_add fd=%d: %w", fd, err)
		}
	}

	s.logger.Info("evdev sampler started", "devices", s.devices)

	const maxEvents = 32
	epollEvents := make([]unix.EpollEvent, maxEvents)
	buf := make([]byte, binary.Size(inputEvent{}))
	reader := bytes.NewReader(buf)

	// Assume a resting encoder until the first events arrive.
	st := idleContacts()
	sink.SamplePins(st.a, st.b)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.EpollWait(epfd, epollEvents, epollTimeoutMS)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(epollEvents[i].Fd)
			f := fdToFile[fd]

			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				return fmt.Errorf("device error/hangup: %s (fd=%d)", f.Name(), fd)
			}

			if _, err := f.Read(buf); err != nil {
				return fmt.Errorf("read from %s: %w", f.Name(), err)
			}

			reader.Reset(buf)
			var ev inputEvent
			if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
				// Skip malformed events
				continue
			}

			pins, sw := s.keys.apply(ev, &st)
			if pins {
				sink.SamplePins(st.a, st.b)
			}
			if sw {
				sink.SampleSwitch(st.switchOn)
			}
		}
	}
}
