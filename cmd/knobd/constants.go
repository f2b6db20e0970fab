package main

import "time"

const version = "1.0.0"

// Sampler sources
const (
	sourceGPIO     = "gpio"
	sourceGPIOCdev = "gpiocdev"
	sourceEvdev    = "evdev"
	sourceADC      = "adc"
)

// Linux input event types and key value constants (from <linux/input.h>)
const (
	EV_KEY = 0x01

	// BTN_TRIGGER_HAPPY1..3 are what gpio-keys overlays commonly use for encoder contacts.
	BTN_TRIGGER_HAPPY1 = 0x2c0
	BTN_TRIGGER_HAPPY2 = 0x2c1
	BTN_TRIGGER_HAPPY3 = 0x2c2

	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Daemon defaults
const (
	defaultPollHz         = 1000 // Contact sampling rate for polled sources
	defaultReadHz         = 50   // Consumer read cadence
	defaultSwitchDebounce = 10 * time.Millisecond
	defaultVelocityWindow = 200 // ms
	defaultVelocitySteps  = 3   // Steps in window to count as fast spinning
	defaultVelocityMult   = 4.0 // Multiplier reported for fast spinning
	defaultSocketPath     = "/tmp/knobd.sock"
	defaultListenAddr     = "127.0.0.1:8091"
	defaultWSPath         = "/ws"
	defaultADCMax         = 4095
	defaultDividerR       = 10000.0
	defaultDividerRA      = 22000.0
	defaultDividerRB      = 10000.0
)
