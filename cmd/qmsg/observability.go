package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/pzverkov/quantum-messenger/pkg/metrics"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
	"github.com/pzverkov/quantum-messenger/pkg/unified"
)

// cliEnv is what a command needs after flag parsing: the process crypto
// config, a dispatch interface bound to it, and the observability stack.
type cliEnv struct {
	config    mode.Config
	iface     *unified.Interface
	collector *metrics.Collector
	logger    *metrics.Logger
}

var logLevels = map[string]metrics.Level{
	"debug":   metrics.LevelDebug,
	"info":    metrics.LevelInfo,
	"warn":    metrics.LevelWarn,
	"warning": metrics.LevelWarn,
	"error":   metrics.LevelError,
	"silent":  metrics.LevelSilent,
	"off":     metrics.LevelSilent,
	"none":    metrics.LevelSilent,
}

var logFormats = map[string]metrics.Format{
	"text": metrics.FormatText,
	"json": metrics.FormatJSON,
}

func lookupFlag[T any](table map[string]T, name, value, allowed string) (T, error) {
	v, ok := table[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return v, fmt.Errorf("invalid %s %q (use %s)", name, value, allowed)
	}
	return v, nil
}

func mustSetup(c commonFlags) *cliEnv {
	env, err := setup(c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return env
}

func setup(c commonFlags) (*cliEnv, error) {
	level, err := lookupFlag(logLevels, "log level", *c.logLevel, "debug, info, warn, error, silent")
	if err != nil {
		return nil, err
	}
	format, err := lookupFlag(logFormats, "log format", *c.logFormat, "text or json")
	if err != nil {
		return nil, err
	}
	tracer, err := newTracer(*c.tracing)
	if err != nil {
		return nil, err
	}

	logger := metrics.NewLogger(
		metrics.WithOutput(os.Stderr),
		metrics.WithLevel(level),
		metrics.WithFormat(format),
		metrics.WithFields(metrics.Fields{"app": "qmsg"}),
	)
	metrics.SetLogger(logger)
	metrics.SetTracer(tracer)

	collector := metrics.NewCollector(metrics.Labels{"service": "qmsg"})
	metrics.SetGlobal(collector)

	cfg, err := cryptoConfig(*c.mode, *c.minMode)
	if err != nil {
		return nil, err
	}
	if err := unified.Default().Init(cfg); err != nil {
		return nil, err
	}
	iface, err := unified.Default().Interface(unified.WithObserver(
		metrics.NewMessageObserver(metrics.MessageObserverConfig{Collector: collector, Logger: logger}),
	))
	if err != nil {
		return nil, err
	}

	if *c.metricsAddr != "" {
		serveObservability(*c.metricsAddr, collector, logger)
	}
	logger.Debug("configured", metrics.Fields{
		"mode":         cfg.Mode.String(),
		"minimum_mode": cfg.MinimumMode.String(),
		"tracing":      *c.tracing,
	})

	return &cliEnv{config: cfg, iface: iface, collector: collector, logger: logger}, nil
}

func newTracer(name string) (metrics.Tracer, error) {
	switch strings.ToLower(name) {
	case "none", "":
		return metrics.NoOpTracer{}, nil
	case "simple":
		return metrics.NewSimpleTracer(), nil
	case "otel":
		return metrics.NewOTelTracer("qmsg"), nil
	}
	return nil, fmt.Errorf("invalid tracing mode %q (use none, simple, or otel)", name)
}

func cryptoConfig(current, minimum string) (mode.Config, error) {
	cfg := mode.DefaultConfig()
	var err error
	if cfg.Mode, err = mode.Parse(current); err != nil {
		return cfg, err
	}
	if cfg.MinimumMode, err = mode.Parse(minimum); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// serveObservability starts /metrics and the health endpoints in the
// background. The critical checks gate readiness; the policy check only
// reports.
func serveObservability(addr string, collector *metrics.Collector, logger *metrics.Logger) {
	server := metrics.NewServer(metrics.ServerConfig{
		Collector:        collector,
		Version:          getVersion(),
		Namespace:        "qmsg",
		EnablePrometheus: true,
		EnableHealth:     true,
	})
	current := unified.Default().Config
	server.AddHealthCheck("selftest", metrics.SelfTestCheck())
	server.AddHealthCheck("config", metrics.ConfigCheck(current))
	server.AddAdvisoryCheck("quantum-policy", metrics.PolicyCheck(current, mode.Hybrid))

	go func() {
		err := server.ListenAndServe(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("observability server stopped", metrics.Fields{"addr": addr, "error": err})
		}
	}()

	fmt.Printf("✓ Observability server on %s (metrics: /metrics, health: /health)\n", addr)
}
