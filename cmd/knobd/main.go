package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

func printVersion() {
	fmt.Printf("knobd v%s\n", version)
	fmt.Println("Rotary encoder daemon (EC11 quadrature and single-pin ADC encoders)")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  knobd [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Samples a rotary encoder, decodes detents and switch presses, and streams")
	fmt.Println("  them to WebSocket listeners. A Unix socket accepts control requests from")
	fmt.Println("  knobctl (reset, sample injection, status).")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (flags override file values)")
	fmt.Println()
	fmt.Println("  -source string")
	fmt.Printf("        Encoder source: gpio|gpiocdev|evdev|adc (default %q)\n", sourceGPIO)
	fmt.Println()
	fmt.Println("  -read-hz int")
	fmt.Printf("        Event collection frequency in Hz (default %d)\n", defaultReadHz)
	fmt.Println()
	fmt.Println("  -gpio-pin-a string / -gpio-pin-b string / -gpio-pin-switch string")
	fmt.Println("        periph.io pin names for the gpio source (default \"GPIO17\", \"GPIO27\", none)")
	fmt.Println()
	fmt.Println("  -evdev-device string")
	fmt.Println("        gpio-keys input device for the evdev source")
	fmt.Println()
	fmt.Println("  -adc-path string")
	fmt.Println("        IIO raw value file for the adc source")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultSocketPath)
	fmt.Println()
	fmt.Println("  -ws-listen string")
	fmt.Printf("        WebSocket listen address, empty disables (default %q)\n", defaultListenAddr)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Poll an EC11 on the default pins")
	fmt.Println("  knobd")
	fmt.Println()
	fmt.Println("  # Single-pin encoder on an IIO ADC")
	fmt.Println("  knobd -source adc -adc-path /sys/bus/iio/devices/iio:device0/in_voltage1_raw")
	fmt.Println()
	fmt.Println("  # Watch events")
	fmt.Printf("  knob-listen -url ws://%s%s\n", defaultListenAddr, defaultWSPath)
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - GPIO and evdev sources need access to /dev/gpiomem, /dev/gpiochip* or /dev/input")
	fmt.Println("  - A rotation in progress when the switch of a single-pin encoder closes is dropped")
	fmt.Println()
}

func main() {
	// Check for version flag early
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath    = flag.String("config", "", "Path to YAML config file")
		source        = flag.String("source", sourceGPIO, "Encoder source: gpio|gpiocdev|evdev|adc")
		readHz        = flag.Int("read-hz", defaultReadHz, "Event collection frequency in Hz")
		gpioPinA      = flag.String("gpio-pin-a", "GPIO17", "periph.io pin name of contact A")
		gpioPinB      = flag.String("gpio-pin-b", "GPIO27", "periph.io pin name of contact B")
		gpioPinSwitch = flag.String("gpio-pin-switch", "", "periph.io pin name of the switch contact")
		evdevDevice   = flag.String("evdev-device", "", "gpio-keys input device")
		adcPath       = flag.String("adc-path", "", "IIO raw value file")
		ipcSocketPath = flag.String("ipc-socket", defaultSocketPath, "Unix domain socket path for IPC")
		wsListen      = flag.String("ws-listen", defaultListenAddr, "WebSocket listen address (empty disables)")
		logLevelStr   = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion   = flag.Bool("version", false, "Print version and exit")
		showHelp      = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	// Config file first, then flags that were set explicitly
	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			overrides.Source = source
		case "read-hz":
			overrides.ReadHz = readHz
		case "gpio-pin-a":
			overrides.GPIOPinA = gpioPinA
		case "gpio-pin-b":
			overrides.GPIOPinB = gpioPinB
		case "gpio-pin-switch":
			overrides.GPIOPinSwitch = gpioPinSwitch
		case "evdev-device":
			overrides.EvdevDevice = evdevDevice
		case "adc-path":
			overrides.ADCPath = adcPath
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocketPath
		case "ws-listen":
			overrides.WSListen = wsListen
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logger := setupLogger(os.Stdout, logLevel, cfg.Encoder.Source)

	if err := run(cfg, logger); err != nil {
		logger.Error("knobd stopped", "error", err)
		os.Exit(1)
	}
}

// run wires samplers, engine and servers and blocks until a signal or a fatal error.
func run(cfg Config, logger *slog.Logger) error {
	sampler, enc, err := openSampler(cfg.Encoder, logger)
	if err != nil {
		return fmt.Errorf("open sampler: %w", err)
	}

	ws := NewServer(logger, cfg.Encoder.Source, HubConfig{})
	hub := ws.Hub()

	engine := newEngine(enc, EngineConfig{
		Source:   cfg.Encoder.Source,
		ReadHz:   cfg.Encoder.ReadHz,
		Velocity: cfg.Velocity,
		Publish:  hub.Publish,
		Clients:  hub.ClientCount,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error { return runIPCServer(ctx, cfg.IPC.SocketPath, engine, logger) })
	g.Go(func() error {
		if err := sampler.Run(ctx, enc); err != nil {
			return fmt.Errorf("sampler: %w", err)
		}
		return nil
	})

	if cfg.WebSocket.Listen != "" {
		mux := http.NewServeMux()
		ws.Register(mux, cfg.WebSocket.Path)
		srv := &http.Server{
			Addr:              cfg.WebSocket.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("websocket listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Debug("starting knobd", "version", version)
	logger.Debug("configuration",
		"read_hz", cfg.Encoder.ReadHz,
		"switch_debounce_ms", cfg.Encoder.SwitchDebounceMS,
		"velocity_window_ms", cfg.Velocity.WindowMS,
		"velocity_threshold", cfg.Velocity.Threshold,
		"velocity_multiplier", cfg.Velocity.Multiplier,
		"ipc_socket", cfg.IPC.SocketPath,
		"ws_listen", cfg.WebSocket.Listen,
		"ws_path", cfg.WebSocket.Path)

	listenInfo := []any{"ipc", cfg.IPC.SocketPath, "read_hz", cfg.Encoder.ReadHz}
	if cfg.WebSocket.Listen != "" {
		listenInfo = append(listenInfo, "ws", "ws://"+cfg.WebSocket.Listen+cfg.WebSocket.Path)
	}
	logger.Info("listening", listenInfo...)

	err = g.Wait()
	logger.Info("shutting down")
	return err
}
