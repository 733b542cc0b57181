package instrumentation

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultServiceName is used when Config.ServiceName is empty.
	DefaultServiceName = "mock-oauth"

	// DefaultServiceVersion is used when Config.ServiceVersion is empty.
	DefaultServiceVersion = "unknown"

	scopePrefix = "github.com/giantswarm/mock-oauth/"
)

// Exporter names.
const (
	ExporterNone       = ""
	ExporterPrometheus = "prometheus"
	ExporterStdout     = "stdout"
)

// Config holds instrumentation configuration.
type Config struct {
	// ServiceName is reported as service.name.
	ServiceName string

	// ServiceVersion is reported as service.version.
	ServiceVersion string

	// Enabled switches from no-op providers to SDK providers.
	Enabled bool

	// LogClientIPs controls whether client IPs are attached to spans.
	LogClientIPs bool

	// MetricsExporter is ExporterNone or ExporterPrometheus.
	MetricsExporter string

	// PrometheusRegisterer receives the exporter's collector.
	// Default: prometheus.DefaultRegisterer
	PrometheusRegisterer prometheus.Registerer

	// TracesExporter is ExporterNone or ExporterStdout.
	TracesExporter string

	// TraceWriter receives stdout traces. Default: os.Stdout
	TraceWriter io.Writer

	// Resource overrides the default service resource.
	Resource *resource.Resource
}

// Instrumentation owns the meter and tracer providers and the metric
// instruments built on them.
type Instrumentation struct {
	config   Config
	resource *resource.Resource

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metrics        *Metrics

	// registered during New only
	shutdownFuncs []func(context.Context) error
	shutdownOnce  sync.Once
}

// New creates instrumentation from config.
func New(config Config) (*Instrumentation, error) {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = DefaultServiceVersion
	}

	res := config.Resource
	if res == nil {
		var err error
		res, err = resource.New(
			context.Background(),
			resource.WithAttributes(
				semconv.ServiceName(config.ServiceName),
				semconv.ServiceVersion(config.ServiceVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
	}

	inst := &Instrumentation{
		config:   config,
		resource: res,
	}

	if config.Enabled {
		if err := inst.initializeProviders(); err != nil {
			return nil, fmt.Errorf("failed to initialize providers: %w", err)
		}
	} else {
		inst.meterProvider = noop.NewMeterProvider()
		inst.tracerProvider = tracenoop.NewTracerProvider()
	}

	metrics, err := newMetrics(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	inst.metrics = metrics

	return inst, nil
}

func (i *Instrumentation) initializeProviders() error {
	switch i.config.MetricsExporter {
	case ExporterNone:
		i.meterProvider = noop.NewMeterProvider()
	case ExporterPrometheus:
		registerer := i.config.PrometheusRegisterer
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		exporter, err := otelprom.New(otelprom.WithRegisterer(registerer))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(i.resource),
		)
		i.meterProvider = mp
		i.shutdownFuncs = append(i.shutdownFuncs, mp.Shutdown)
	default:
		return fmt.Errorf("unsupported metrics exporter %q", i.config.MetricsExporter)
	}

	var opts []sdktrace.TracerProviderOption
	opts = append(opts, sdktrace.WithResource(i.resource))
	switch i.config.TracesExporter {
	case ExporterNone:
	case ExporterStdout:
		w := i.config.TraceWriter
		if w == nil {
			w = os.Stdout
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	default:
		return fmt.Errorf("unsupported traces exporter %q", i.config.TracesExporter)
	}
	tp := sdktrace.NewTracerProvider(opts...)
	i.tracerProvider = tp
	i.shutdownFuncs = append(i.shutdownFuncs, tp.Shutdown)

	return nil
}

// Shutdown flushes and stops the providers. Only the first call has effect;
// the first error encountered is returned.
func (i *Instrumentation) Shutdown(ctx context.Context) error {
	var shutdownErr error
	i.shutdownOnce.Do(func() {
		for _, fn := range i.shutdownFuncs {
			if err := fn(ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})
	return shutdownErr
}

// Meter returns the meter for scope ("http", "server", "storage", "security").
func (i *Instrumentation) Meter(scope string) metric.Meter {
	return i.meterProvider.Meter(scopePrefix + scope)
}

// Tracer returns the tracer for scope.
func (i *Instrumentation) Tracer(scope string) trace.Tracer {
	return i.tracerProvider.Tracer(scopePrefix + scope)
}

// Metrics returns the metric instruments.
func (i *Instrumentation) Metrics() *Metrics {
	return i.metrics
}

// ShouldLogClientIPs reports whether client IPs may be attached to spans.
func (i *Instrumentation) ShouldLogClientIPs() bool {
	return i.config.LogClientIPs
}

// StorageSizeCallback returns the current size of one keyspace.
type StorageSizeCallback func() int64

// RegisterStorageSizeCallbacks observes the three store keyspaces through
// the storage size gauges. Nil callbacks are skipped.
func (i *Instrumentation) RegisterStorageSizeCallbacks(codes, accessTokens, refreshTokens StorageSizeCallback) error {
	m := i.metrics
	_, err := i.Meter("storage").RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			if codes != nil {
				observer.ObserveInt64(m.StorageCodesCount, codes())
			}
			if accessTokens != nil {
				observer.ObserveInt64(m.StorageAccessTokensCount, accessTokens())
			}
			if refreshTokens != nil {
				observer.ObserveInt64(m.StorageRefreshTokensCount, refreshTokens())
			}
			return nil
		},
		m.StorageCodesCount,
		m.StorageAccessTokensCount,
		m.StorageRefreshTokensCount,
	)
	if err != nil {
		return fmt.Errorf("failed to register storage size callbacks: %w", err)
	}
	return nil
}
