package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"chromestream/version"
)

// Config drives the tracegen load generator. Library packages take explicit
// options; this package binds flags and an optional JSON config file onto
// them for the CLI.
type Config struct {
	OutputFileName     string            `json:"output_file_name"`
	Mode               string            `json:"mode"`
	BatchSize          int               `json:"batch_size"`
	Workers            int               `json:"workers"`
	SpansPerWorker     int               `json:"spans_per_worker"`
	EventsPerSpan      int               `json:"events_per_span"`
	AsyncShare         float64           `json:"async_share"`
	MaxEventsPerSecond int               `json:"max_events_per_second"`
	LogLevel           string            `json:"log_level"`
	Progress           bool              `json:"progress"`
	ProcessMetadata    bool              `json:"process_metadata"`
	DiagStallThreshold time.Duration     `json:"diag_stall_threshold"`
	DiagDir            string            `json:"diag_dir"`
	DiagGoroutineLeak  bool              `json:"diag_goroutine_leak"`
	OtelEndpoint       string            `json:"otel_endpoint"`
	OtelFromEnv        bool              `json:"otel_from_env"`
	OtelHeaders        map[string]string `json:"otel_headers"`
	OtelServiceName    string            `json:"otel_service_name"`
	OtelTimeout        time.Duration     `json:"otel_timeout"`
	ConfigFile         string            `json:"config_file"`
}

func LoadConfig() (*Config, error) {
	timestamp := time.Now().UTC().Format("20060102-150405")
	cfg := &Config{
		OutputFileName:     fmt.Sprintf("trace-%s.json", timestamp),
		Mode:               "inline",
		BatchSize:          10000,
		Workers:            runtime.NumCPU(),
		SpansPerWorker:     1000,
		EventsPerSpan:      1,
		AsyncShare:         0.25,
		MaxEventsPerSecond: 0,
		LogLevel:           "info",
		Progress:           true,
		ProcessMetadata:    true,
		DiagStallThreshold: 0,
		DiagDir:            ".",
		DiagGoroutineLeak:  false,
		OtelServiceName:    "chromestream",
		OtelTimeout:        5 * time.Second,
	}

	output := flag.String("output", cfg.OutputFileName, "Trace output file name (default: trace-<timestamp>.json).")
	mode := flag.String("mode", cfg.Mode, "Emission mode: inline or batch (default: inline).")
	batchSize := flag.Int("batch-size", cfg.BatchSize, fmt.Sprintf("Records buffered before hand-off to the background writer in batch mode (default: %d).", cfg.BatchSize))
	workers := flag.Int("workers", cfg.Workers, fmt.Sprintf("Concurrent producer goroutines (default: %d).", cfg.Workers))
	spansPerWorker := flag.Int("spans-per-worker", cfg.SpansPerWorker, fmt.Sprintf("Spans each worker produces (default: %d).", cfg.SpansPerWorker))
	eventsPerSpan := flag.Int("events-per-span", cfg.EventsPerSpan, fmt.Sprintf("Instant events recorded inside each span (default: %d).", cfg.EventsPerSpan))
	asyncShare := flag.Float64("async-share", cfg.AsyncShare, fmt.Sprintf("Fraction of spans produced as async spans, 0 to 1 (default: %.2f).", cfg.AsyncShare))
	maxEventsPerSecond := flag.Int("max-events-per-second", cfg.MaxEventsPerSecond, "Rate limit on generated events per second, 0 for unlimited (default: 0).")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error, fatal, or panic (default: info).")
	progress := flag.Bool("progress", cfg.Progress, "Show a progress bar (default: true).")
	processMetadata := flag.Bool("process-metadata", cfg.ProcessMetadata, "Emit process_name and thread_name metadata records (default: true).")
	diagStallThreshold := flag.Duration("diag-stall-threshold", cfg.DiagStallThreshold, "Write diagnostics when the trace writer makes no progress for this long, 0 to disable (default: 0).")
	diagDir := flag.String("diag-dir", cfg.DiagDir, "Directory for diagnostic artifacts (default: current directory).")
	diagGoroutineLeak := flag.Bool("diag-goroutine-leak", cfg.DiagGoroutineLeak, "Capture a goroutine profile at shutdown (default: false).")
	otelEndpoint := flag.String("otel-endpoint", cfg.OtelEndpoint, "OTLP/HTTP logs endpoint to mirror trace records to (default: disabled).")
	otelFromEnv := flag.Bool("otel-from-env", cfg.OtelFromEnv, "Fall back to OTEL_EXPORTER_OTLP_* env vars for the mirror endpoint (default: false).")
	otelHeaders := flag.String("otel-headers", "", "Comma-separated key=value headers for OTLP export (default: none).")
	otelServiceName := flag.String("otel-service-name", cfg.OtelServiceName, "Service name attached to mirrored records (default: chromestream).")
	otelTimeout := flag.Duration("otel-timeout", cfg.OtelTimeout, "Timeout for OTLP export and shutdown flush (default: 5s).")
	configFile := flag.String("config", "", "Path to JSON configuration file (default: none).")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = displayHelp
	flag.Parse()

	if *showVersion {
		fmt.Printf("tracegen version %s\n", version.Version)
		os.Exit(0)
	}

	if *configFile != "" {
		cfg.ConfigFile = *configFile
		if err := cfg.loadFromFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output":
			cfg.OutputFileName = *output
		case "mode":
			cfg.Mode = *mode
		case "batch-size":
			cfg.BatchSize = *batchSize
		case "workers":
			cfg.Workers = *workers
		case "spans-per-worker":
			cfg.SpansPerWorker = *spansPerWorker
		case "events-per-span":
			cfg.EventsPerSpan = *eventsPerSpan
		case "async-share":
			cfg.AsyncShare = *asyncShare
		case "max-events-per-second":
			cfg.MaxEventsPerSecond = *maxEventsPerSecond
		case "log-level":
			cfg.LogLevel = *logLevel
		case "progress":
			cfg.Progress = *progress
		case "process-metadata":
			cfg.ProcessMetadata = *processMetadata
		case "diag-stall-threshold":
			cfg.DiagStallThreshold = *diagStallThreshold
		case "diag-dir":
			cfg.DiagDir = *diagDir
		case "diag-goroutine-leak":
			cfg.DiagGoroutineLeak = *diagGoroutineLeak
		case "otel-endpoint":
			cfg.OtelEndpoint = strings.TrimSpace(*otelEndpoint)
		case "otel-from-env":
			cfg.OtelFromEnv = *otelFromEnv
		case "otel-headers":
			cfg.OtelHeaders = parseHeaders(*otelHeaders)
		case "otel-service-name":
			cfg.OtelServiceName = strings.TrimSpace(*otelServiceName)
		case "otel-timeout":
			cfg.OtelTimeout = *otelTimeout
		}
	})

	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.DiagDir == "" {
		cfg.DiagDir = "."
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func displayHelp() {
	fmt.Println("tracegen - synthetic Chrome trace load generator")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  tracegen [options]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  tracegen --workers 8 --spans-per-worker 10000 --output trace.json")
	fmt.Println("  tracegen --mode batch --batch-size 5000 --async-share 0.5")
}

func (cfg *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file: %v", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid config file format: %v", err)
	}
	return nil
}

func (cfg *Config) validate() error {
	if cfg.Mode != "inline" && cfg.Mode != "batch" {
		return fmt.Errorf("invalid mode: %s", cfg.Mode)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("workers must be greater than zero")
	}
	if cfg.SpansPerWorker < 0 {
		return fmt.Errorf("spans per worker cannot be negative")
	}
	if cfg.EventsPerSpan < 0 {
		return fmt.Errorf("events per span cannot be negative")
	}
	if cfg.AsyncShare < 0 || cfg.AsyncShare > 1 {
		return fmt.Errorf("async share must be between 0 and 1")
	}
	if cfg.MaxEventsPerSecond < 0 {
		return fmt.Errorf("max events per second cannot be negative")
	}
	if cfg.OutputFileName == "" {
		return fmt.Errorf("output file name cannot be empty")
	}
	if cfg.DiagStallThreshold < 0 {
		return fmt.Errorf("diag stall threshold cannot be negative")
	}
	if cfg.OtelEndpoint != "" &&
		!strings.HasPrefix(cfg.OtelEndpoint, "http://") &&
		!strings.HasPrefix(cfg.OtelEndpoint, "https://") {
		return fmt.Errorf("otel endpoint must include http or https scheme")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	return nil
}

func parseHeaders(input string) map[string]string {
	headers := make(map[string]string)
	for _, item := range strings.Split(input, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(parts[1])
	}
	return headers
}
