package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"signout/internal/adapters/handover"
	"signout/internal/blob"
	"signout/internal/config"
	"signout/internal/core"
)

// app is the wired process: one store, one service.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	svc     *core.Service
	metrics http.Handler
	closers []io.Closer
}

func newApp(ctx context.Context, envFile string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a := &app{cfg: cfg, log: cfg.Logger(logOut)}

	kv, err := core.OpenKeyValueStore(ctx, cfg.Storage())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, kv)

	blobs, err := blob.Open(ctx, cfg.Blob())
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	opts := []core.ServiceOption{
		core.WithLogger(a.log),
		core.WithWorkbookRenderer(handover.New()),
		core.WithBlobStore(blobs),
		core.WithArchive(cfg.ArchivePrefix, cfg.ArchiveURLExpiry),
		core.WithAuditRecorder(logAudit{log: a.log.With().Str("component", "audit").Logger()}),
	}
	metricsOpt, err := a.metricsBackend()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if metricsOpt != nil {
		opts = append(opts, metricsOpt)
	}
	if cfg.TraceFile != "" {
		f, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.closers = append(a.closers, f)
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}

	store := core.NewRecordStore(kv, cfg.RecordStoreOptions(a.log)...)
	a.svc = core.NewService(store, opts...)
	a.log.Debug().Str("storage", kv.Driver()).Str("blob", cfg.BlobDriver).Msg("service ready")
	return a, nil
}

func (a *app) metricsBackend() (core.ServiceOption, error) {
	switch a.cfg.MetricsBackend {
	case "prometheus":
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		a.metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
		return core.WithMetricsRecorder(rec), nil
	case "expvar":
		a.metrics = expvar.Handler()
		return core.WithMetricsRecorder(core.NewExpvarMetricsRecorder("")), nil
	default:
		return nil, nil
	}
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// logAudit writes one log line per service call.
type logAudit struct {
	log zerolog.Logger
}

func (l logAudit) Record(_ context.Context, e core.AuditEntry) {
	evt := l.log.Info()
	if e.Status == core.AuditStatusError {
		evt = l.log.Warn().Str("error", e.Error)
	}
	evt.Str("op", e.Operation).
		Str("status", string(e.Status)).
		Str("collection", e.Collection).
		Str("patient_id", e.PatientID).
		Dur("duration", e.Duration).
		Msg("audit")
}
