package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"knobd/internal/protocol"
)

// ============================================================================
// knobctl - Command-line IPC Client
// ============================================================================
// Sends requests to the knobd daemon over its Unix socket.
//
// Usage:
//   knobctl reset
//   knobctl pins 1 0
//   knobctl value 2815
//   knobctl switch on
//   knobctl status
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/knobd.sock)
// ============================================================================

const requestTimeout = 2 * time.Second

func main() {
	socketPath := "/tmp/knobd.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Check for -socket flag
	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return
	}

	req, err := parseCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	data, err := protocol.Send(socketPath, req, requestTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(data) == 0 {
		fmt.Println("ok")
		return
	}
	var pretty any
	if err := json.Unmarshal(data, &pretty); err != nil {
		fmt.Println(string(data))
		return
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
}

// parseCommand turns command-line arguments into a request.
func parseCommand(args []string) (protocol.Request, error) {
	switch args[0] {
	case "reset":
		return protocol.Reset{}, nil

	case "status":
		return protocol.Status{}, nil

	case "pins":
		if len(args) < 3 {
			return nil, fmt.Errorf("pins requires two levels (A B)")
		}
		a, err := parseLevel(args[1])
		if err != nil {
			return nil, fmt.Errorf("pin A: %w", err)
		}
		b, err := parseLevel(args[2])
		if err != nil {
			return nil, fmt.Errorf("pin B: %w", err)
		}
		return protocol.InjectPins{A: a, B: b}, nil

	case "value":
		if len(args) < 2 {
			return nil, fmt.Errorf("value requires a raw ADC reading")
		}
		v, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid ADC reading: %w", err)
		}
		return protocol.InjectValue{Value: uint16(v)}, nil

	case "switch":
		if len(args) < 2 {
			return nil, fmt.Errorf("switch requires on or off")
		}
		switch args[1] {
		case "on", "down", "1":
			return protocol.InjectSwitch{Pressed: true}, nil
		case "off", "up", "0":
			return protocol.InjectSwitch{Pressed: false}, nil
		}
		return nil, fmt.Errorf("invalid switch state %q (use on or off)", args[1])

	default:
		return nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

func parseLevel(s string) (bool, error) {
	switch s {
	case "1", "high", "h":
		return true, nil
	case "0", "low", "l":
		return false, nil
	}
	return false, fmt.Errorf("invalid level %q (use 1 or 0)", s)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `knobctl - Control the knobd daemon via IPC

Usage:
  knobctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: /tmp/knobd.sock)

Commands:
  reset                   Discard the decoder's recent contact history
  pins <A> <B>            Inject one contact sample (1 = high/open, 0 = low)
  value <raw>             Inject one ADC reading (single-pin encoders)
  switch on|off           Inject a switch contact level
  status                  Print daemon counters
  help, -h, --help        Show this help message

Examples:
  knobctl status
  knobctl pins 1 0
  knobctl -socket /run/knobd.sock reset
`)
}
