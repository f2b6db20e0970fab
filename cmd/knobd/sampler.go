package main

import (
	"context"
	"fmt"
	"log/slog"
)

// Sampler reads raw encoder levels from hardware and pushes them into a Sink.
// Run blocks until ctx is canceled or the hardware fails, and releases the
// hardware before returning.
type Sampler interface {
	Run(ctx context.Context, sink Sink) error
}

// openSampler builds the sampler and matching encoder for the configured source.
func openSampler(cfg EncoderConfig, logger *slog.Logger) (Sampler, encoder, error) {
	switch cfg.Source {
	case sourceGPIO:
		s, err := openGPIOSampler(cfg.GPIO)
		if err != nil {
			return nil, nil, err
		}
		return s, newPinEncoder(cfg.SwitchDebounce(), cfg.GPIO.PinSwitch != ""), nil

	case sourceGPIOCdev:
		s := newCdevSampler(cfg.GPIOCdev, logger)
		return s, newPinEncoder(cfg.SwitchDebounce(), cfg.GPIOCdev.LineSwitch >= 0), nil

	case sourceEvdev:
		s := newEvdevSampler(cfg.Evdev, logger)
		return s, newPinEncoder(cfg.SwitchDebounce(), cfg.Evdev.KeySwitch != 0), nil

	case sourceADC:
		enc, err := newADCEncoder(cfg.ADC)
		if err != nil {
			return nil, nil, fmt.Errorf("adc divider: %w", err)
		}
		s, err := openADCSampler(cfg.ADC)
		if err != nil {
			return nil, nil, err
		}
		l := enc.dec.Levels()
		logger.Debug("adc bands",
			"a1b1", l.A1B1, "a0b1", l.A0B1, "a1b0", l.A1B0, "a0b0", l.A0B0,
			"upper", l.Upper, "middle", l.Middle, "lower", l.Lower, "pressed", l.Pressed)
		return s, enc, nil

	default:
		return nil, nil, fmt.Errorf("unknown encoder source %q", cfg.Source)
	}
}
