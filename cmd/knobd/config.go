package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"knobd/quadrature"
)

// Config is the top-level YAML configuration for the knobd daemon.
//
// Defaults and validation live here so the rest of the code can assume a
// well-formed config.
type Config struct {
	// Encoder wiring and sampling
	Encoder EncoderConfig `yaml:"encoder"`

	// Fast-spin detection on delivered rotation events
	Velocity VelocityConfig `yaml:"velocity"`

	// IPC configuration (knobctl and scripts)
	IPC IPCConfig `yaml:"ipc"`

	// WebSocket event stream
	WebSocket WebSocketConfig `yaml:"websocket"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type EncoderConfig struct {
	// Source selects the sampler: gpio, gpiocdev, evdev or adc.
	Source string `yaml:"source"`

	// ReadHz is how often pending events are collected from the decoder.
	ReadHz int `yaml:"read_hz"`

	// SwitchDebounceMS applies to a dedicated switch contact (two-pin sources).
	SwitchDebounceMS int `yaml:"switch_debounce_ms"`

	GPIO     GPIOConfig     `yaml:"gpio"`
	GPIOCdev GPIOCdevConfig `yaml:"gpiocdev"`
	Evdev    EvdevConfig    `yaml:"evdev"`
	ADC      ADCConfig      `yaml:"adc"`
}

// GPIOConfig names periph.io pins, e.g. "GPIO17".
type GPIOConfig struct {
	PinA      string `yaml:"pin_a"`
	PinB      string `yaml:"pin_b"`
	PinSwitch string `yaml:"pin_switch,omitempty"` // optional
	PollHz    int    `yaml:"poll_hz"`
}

// GPIOCdevConfig addresses lines on a GPIO character device.
type GPIOCdevConfig struct {
	Chip       string `yaml:"chip"`
	LineA      int    `yaml:"line_a"`
	LineB      int    `yaml:"line_b"`
	LineSwitch int    `yaml:"line_switch"` // -1 when there is no switch contact
}

// EvdevConfig maps gpio-keys key codes onto the encoder contacts.
type EvdevConfig struct {
	Devices   []string `yaml:"devices"`
	KeyA      uint16   `yaml:"key_a"`
	KeyB      uint16   `yaml:"key_b"`
	KeySwitch uint16   `yaml:"key_switch,omitempty"` // 0 when there is no switch contact
}

// ADCConfig describes a single-pin encoder read through Linux IIO.
type ADCConfig struct {
	Path   string  `yaml:"path"` // e.g. /sys/bus/iio/devices/iio:device0/in_voltage0_raw
	PollHz int     `yaml:"poll_hz"`
	Max    uint16  `yaml:"max"`
	R      float64 `yaml:"r"`
	RA     float64 `yaml:"ra"`
	RB     float64 `yaml:"rb"`
}

type VelocityConfig struct {
	WindowMS   int     `yaml:"window_ms"`
	Threshold  int     `yaml:"threshold"`
	Multiplier float64 `yaml:"multiplier"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type WebSocketConfig struct {
	Listen string `yaml:"listen"` // empty disables the HTTP listener
	Path   string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Encoder: EncoderConfig{
			Source:           sourceGPIO,
			ReadHz:           defaultReadHz,
			SwitchDebounceMS: int(defaultSwitchDebounce / time.Millisecond),
			GPIO: GPIOConfig{
				PinA:   "GPIO17",
				PinB:   "GPIO27",
				PollHz: defaultPollHz,
			},
			GPIOCdev: GPIOCdevConfig{
				Chip:       "gpiochip0",
				LineA:      17,
				LineB:      27,
				LineSwitch: -1,
			},
			Evdev: EvdevConfig{
				KeyA: BTN_TRIGGER_HAPPY1,
				KeyB: BTN_TRIGGER_HAPPY2,
			},
			ADC: ADCConfig{
				Path:   "/sys/bus/iio/devices/iio:device0/in_voltage0_raw",
				PollHz: defaultPollHz,
				Max:    defaultADCMax,
				R:      defaultDividerR,
				RA:     defaultDividerRA,
				RB:     defaultDividerRB,
			},
		},
		Velocity: VelocityConfig{
			WindowMS:   defaultVelocityWindow,
			Threshold:  defaultVelocitySteps,
			Multiplier: defaultVelocityMult,
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		WebSocket: WebSocketConfig{
			Listen: defaultListenAddr,
			Path:   defaultWSPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries command-line overrides. A nil pointer means the flag
// was not set; a non-nil one is applied even if it holds a zero value.
type FlagOverrides struct {
	Source *string
	ReadHz *int

	GPIOPinA      *string
	GPIOPinB      *string
	GPIOPinSwitch *string

	EvdevDevice *string

	ADCPath *string

	IPCSocketPath *string
	WSListen      *string

	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Source != nil {
		cfg.Encoder.Source = *o.Source
	}
	if o.ReadHz != nil {
		cfg.Encoder.ReadHz = *o.ReadHz
	}

	if o.GPIOPinA != nil {
		cfg.Encoder.GPIO.PinA = *o.GPIOPinA
	}
	if o.GPIOPinB != nil {
		cfg.Encoder.GPIO.PinB = *o.GPIOPinB
	}
	if o.GPIOPinSwitch != nil {
		cfg.Encoder.GPIO.PinSwitch = *o.GPIOPinSwitch
	}

	if o.EvdevDevice != nil {
		cfg.Encoder.Evdev.Devices = []string{*o.EvdevDevice}
	}

	if o.ADCPath != nil {
		cfg.Encoder.ADC.Path = *o.ADCPath
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.WSListen != nil {
		cfg.WebSocket.Listen = *o.WSListen
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	e := &c.Encoder
	if e.ReadHz <= 0 || e.ReadHz > 1000 {
		return errors.New("encoder.read_hz must be between 1 and 1000")
	}
	if e.SwitchDebounceMS < 0 {
		return errors.New("encoder.switch_debounce_ms must be >= 0")
	}

	switch e.Source {
	case sourceGPIO:
		if e.GPIO.PinA == "" || e.GPIO.PinB == "" {
			return errors.New("encoder.gpio.pin_a and encoder.gpio.pin_b must be set")
		}
		if e.GPIO.PinA == e.GPIO.PinB {
			return errors.New("encoder.gpio.pin_a and encoder.gpio.pin_b must differ")
		}
		if e.GPIO.PollHz <= 0 || e.GPIO.PollHz > 100000 {
			return errors.New("encoder.gpio.poll_hz must be between 1 and 100000")
		}

	case sourceGPIOCdev:
		if e.GPIOCdev.Chip == "" {
			return errors.New("encoder.gpiocdev.chip must not be empty")
		}
		if e.GPIOCdev.LineA < 0 || e.GPIOCdev.LineB < 0 {
			return errors.New("encoder.gpiocdev.line_a and line_b must be >= 0")
		}
		if e.GPIOCdev.LineA == e.GPIOCdev.LineB {
			return errors.New("encoder.gpiocdev.line_a and line_b must differ")
		}

	case sourceEvdev:
		if len(e.Evdev.Devices) == 0 {
			return errors.New("encoder.evdev.devices must not be empty")
		}
		for i, dev := range e.Evdev.Devices {
			if dev == "" {
				return fmt.Errorf("encoder.evdev.devices[%d] is empty", i)
			}
		}
		if e.Evdev.KeyA == 0 || e.Evdev.KeyB == 0 || e.Evdev.KeyA == e.Evdev.KeyB {
			return errors.New("encoder.evdev.key_a and key_b must be distinct non-zero key codes")
		}

	case sourceADC:
		if e.ADC.Path == "" {
			return errors.New("encoder.adc.path must not be empty")
		}
		if e.ADC.PollHz <= 0 || e.ADC.PollHz > 100000 {
			return errors.New("encoder.adc.poll_hz must be between 1 and 100000")
		}
		if _, err := e.ADC.Divider().Levels(); err != nil {
			return fmt.Errorf("encoder.adc: %w", err)
		}

	default:
		return fmt.Errorf("encoder.source must be one of %q, %q, %q, %q",
			sourceGPIO, sourceGPIOCdev, sourceEvdev, sourceADC)
	}

	// Velocity
	if c.Velocity.WindowMS < 0 {
		return errors.New("velocity.window_ms must be >= 0")
	}
	if c.Velocity.Threshold < 0 {
		return errors.New("velocity.threshold must be >= 0")
	}
	if c.Velocity.Multiplier < 1 {
		return errors.New("velocity.multiplier must be >= 1")
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// WebSocket
	if c.WebSocket.Listen != "" && (c.WebSocket.Path == "" || c.WebSocket.Path[0] != '/') {
		return errors.New("websocket.path must start with '/'")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// Divider converts the file config into the decoder's divider description.
func (a ADCConfig) Divider() quadrature.DividerConfig {
	return quadrature.DividerConfig{R: a.R, RA: a.RA, RB: a.RB, Max: a.Max}
}

// SwitchDebounce returns the switch debounce as a duration.
func (e EncoderConfig) SwitchDebounce() time.Duration {
	return time.Duration(e.SwitchDebounceMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
