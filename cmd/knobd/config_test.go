package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knobd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadConfigFile_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
encoder:
  source: adc
  adc:
    path: /sys/bus/iio/devices/iio:device1/in_voltage2_raw
    max: 1023
velocity:
  threshold: 5
logging:
  level: debug
`)
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Encoder.Source != sourceADC {
		t.Fatalf("source = %q", cfg.Encoder.Source)
	}
	if cfg.Encoder.ADC.Max != 1023 || cfg.Encoder.ADC.R != defaultDividerR {
		t.Fatalf("adc = %+v", cfg.Encoder.ADC)
	}
	if cfg.Velocity.Threshold != 5 || cfg.Velocity.Multiplier != defaultVelocityMult {
		t.Fatalf("velocity = %+v", cfg.Velocity)
	}
	if cfg.IPC.SocketPath != defaultSocketPath {
		t.Fatalf("socket path = %q", cfg.IPC.SocketPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadConfigFile_RejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "encoder:\n  sauce: gpio\n")
	if _, err := LoadConfigFile(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadConfigFile_RejectsTrailingDocument(t *testing.T) {
	path := writeConfig(t, "encoder:\n  source: gpio\n---\nencoder:\n  source: adc\n")
	if _, err := LoadConfigFile(path); err == nil {
		t.Fatalf("expected error for trailing document")
	}
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()
	source := sourceEvdev
	dev := "/dev/input/event3"
	listen := ""
	FlagOverrides{Source: &source, EvdevDevice: &dev, WSListen: &listen}.Apply(&cfg)

	if cfg.Encoder.Source != sourceEvdev {
		t.Fatalf("source = %q", cfg.Encoder.Source)
	}
	if len(cfg.Encoder.Evdev.Devices) != 1 || cfg.Encoder.Evdev.Devices[0] != dev {
		t.Fatalf("devices = %v", cfg.Encoder.Evdev.Devices)
	}
	// An explicit empty value still applies.
	if cfg.WebSocket.Listen != "" {
		t.Fatalf("listen = %q, want empty", cfg.WebSocket.Listen)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"read hz", func(c *Config) { c.Encoder.ReadHz = 0 }, "read_hz"},
		{"unknown source", func(c *Config) { c.Encoder.Source = "serial" }, "encoder.source"},
		{"same pins", func(c *Config) { c.Encoder.GPIO.PinB = c.Encoder.GPIO.PinA }, "must differ"},
		{"evdev without devices", func(c *Config) { c.Encoder.Source = sourceEvdev }, "devices"},
		{"adc bad divider", func(c *Config) {
			c.Encoder.Source = sourceADC
			c.Encoder.ADC.RA = c.Encoder.ADC.RB
		}, "encoder.adc"},
		{"multiplier", func(c *Config) { c.Velocity.Multiplier = 0.5 }, "multiplier"},
		{"ws path", func(c *Config) { c.WebSocket.Path = "ws" }, "websocket.path"},
		{"log level", func(c *Config) { c.Logging.Level = "chatty" }, "logging.level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
