// Package handlers implements the business logic for CLI commands.
//
// Each handler loads the configuration, assembles an orchestrator with the
// configured backend, journal, event publisher, tracing and metrics, runs one
// workflow and prints its outcome.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imamik/vcdflow/internal/config"
	"github.com/imamik/vcdflow/internal/events"
	"github.com/imamik/vcdflow/internal/journal"
	"github.com/imamik/vcdflow/internal/platform/controlplane"
	"github.com/imamik/vcdflow/internal/platform/hcloud"
	"github.com/imamik/vcdflow/internal/provisioning"
	"github.com/imamik/vcdflow/internal/telemetry"
)

var buildVersion = "dev"

// SetVersion sets the version reported in traces.
func SetVersion(v string) {
	buildVersion = v
}

// Factory function variables - can be replaced in tests.
var (
	// loadConfig reads the configuration file, or returns the defaults when
	// no path is given.
	loadConfig = func(path string) (*config.Config, error) {
		if path == "" {
			return config.Default(), nil
		}
		return config.LoadFile(path)
	}

	// newDialer opens the configured control plane.
	newDialer = defaultDialer

	// stdout receives command output; logOutput receives logs and spans.
	stdout    io.Writer = os.Stdout
	logOutput io.Writer = os.Stderr
)

// env is everything a handler needs to run workflows.
type env struct {
	cfg     *config.Config
	log     logr.Logger
	dialer  controlplane.Dialer
	orch    *provisioning.Orchestrator
	journal *journal.Store

	closers []func(context.Context) error
}

// setup builds the orchestrator described by the configuration at path.
// Callers must call close when done.
func setup(ctx context.Context, path string) (_ *env, err error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}

	log, flush, err := telemetry.NewLogger(cfg.Log, logOutput)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log}
	e.closers = append(e.closers, func(context.Context) error { flush(); return nil })
	defer func() {
		if err != nil {
			e.close(ctx)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if cfg.Metrics.Addr != "" {
		e.serveMetrics(cfg.Metrics.Addr, reg)
	}

	tracing, err := telemetry.NewTracing(ctx, cfg.Tracing, buildVersion, logOutput)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, tracing.Shutdown)

	dialer, err := newDialer(cfg, reg)
	if err != nil {
		return nil, err
	}
	e.dialer = dialer
	shapes, err := cfg.ShapeCatalog()
	if err != nil {
		return nil, err
	}

	opts := []provisioning.Option{
		provisioning.WithTimeouts(cfg.Timeouts),
		provisioning.WithShapes(shapes),
		provisioning.WithCleanupOnFailure(cfg.Launch.Cleanup()),
		provisioning.WithLogger(log),
		provisioning.WithMetrics(provisioning.NewMetrics(reg)),
		provisioning.WithTracerProvider(tracing.Provider),
	}

	if cfg.Journal.Path != "" {
		store, err := journal.Open(cfg.Journal.Path, journal.WithLogger(log))
		if err != nil {
			return nil, err
		}
		e.journal = store
		e.closers = append(e.closers, func(context.Context) error { return store.Close() })
		opts = append(opts, provisioning.WithJournal(store))
	}

	if cfg.Events.URL != "" {
		sink, err := events.Connect(cfg.Events.URL,
			events.WithSubjectPrefix(cfg.Events.SubjectPrefix),
			events.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("connect to event bus: %w", err)
		}
		e.closers = append(e.closers, func(context.Context) error { return sink.Close() })
		opts = append(opts, provisioning.WithEventSink(provisioning.MultiSink{
			provisioning.LogSink{Log: log},
			sink,
		}))
	}

	e.orch = provisioning.New(dialer, opts...)
	return e, nil
}

// close releases resources in reverse order of acquisition.
func (e *env) close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](ctx); err != nil {
			e.log.Error(err, "Shutdown failed")
		}
	}
}

func (e *env) serveMetrics(addr string, reg *prometheus.Registry) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Error(err, "Metrics server stopped", "addr", addr)
		}
	}()
	e.log.V(1).Info("Serving metrics", "addr", addr)
	e.closers = append(e.closers, srv.Shutdown)
}

// defaultDialer returns the control plane named by cfg.Backend.
func defaultDialer(cfg *config.Config, reg prometheus.Registerer) (controlplane.Dialer, error) {
	switch cfg.Backend {
	case config.BackendHCloud:
		if cfg.HCloud.Token == "" {
			return nil, errors.New("HCLOUD_TOKEN environment variable is required")
		}
		return hcloud.NewFromConfig(cfg.HCloud, reg), nil
	case config.BackendSim, "":
		return newDemoSim(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
