package storage

import (
	"expvar"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"transact/internal/config"
	"transact/internal/infra/persistence/session"
	"transact/internal/observability"
)

// Instrumentation bundles the hooks built from configuration.
type Instrumentation struct {
	Logger  *observability.ZapLogger
	Metrics observability.MetricsRecorder
	Tracer  observability.Tracer
}

// SessionOptions returns the options that route unit-of-work reporting
// through i.
func (i Instrumentation) SessionOptions() []session.Option {
	return []session.Option{
		session.WithLogger(i.Logger),
		session.WithMetrics(i.Metrics),
		session.WithTracer(i.Tracer),
	}
}

// Instrument builds logging, metrics and tracing from cfg. reg receives the
// prometheus collectors and may be nil for the default registerer. A metrics
// namespace can be registered once per process.
func Instrument(cfg config.Config, reg prometheus.Registerer) (Instrumentation, error) {
	logger, err := observability.NewLogger(cfg.Log.Mode)
	if err != nil {
		return Instrumentation{}, err
	}
	inst := Instrumentation{
		Logger:  logger,
		Metrics: observability.NoopMetrics(),
		Tracer:  observability.NoopTracer(),
	}
	switch cfg.Metrics.Driver {
	case config.MetricsExpvar:
		if cfg.Metrics.Namespace != "" && expvar.Get(cfg.Metrics.Namespace) != nil {
			return Instrumentation{}, fmt.Errorf("expvar %q already published", cfg.Metrics.Namespace)
		}
		inst.Metrics = observability.NewExpvarMetricsRecorder(cfg.Metrics.Namespace)
	case config.MetricsPrometheus:
		rec, err := observability.NewPrometheusMetricsRecorder(reg, cfg.Metrics.Namespace)
		if err != nil {
			return Instrumentation{}, err
		}
		inst.Metrics = rec
	}
	if cfg.Tracing.Enabled {
		inst.Tracer = observability.NewOTelTracer(otel.GetTracerProvider())
	}
	return inst, nil
}
