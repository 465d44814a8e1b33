package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	ServiceName    = "wbreports"
	ServiceVersion = "1.0.0"
	MeterName      = "wbreports"
)

// TelemetryOptions holds the resolved telemetry settings
type TelemetryOptions struct {
	Enabled     bool
	Environment string
	SampleRatio float64
	// TracesFile receives pretty-printed spans. Empty disables tracing.
	TracesFile string
	// MetricsFile receives a Prometheus textfile on Shutdown. Empty skips it.
	MetricsFile string
}

// Telemetry bundles the tracer, meter and run metrics of one process.
// A disabled Telemetry hands out no-op instruments.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Registry       *promclient.Registry
	Metrics        *RunMetrics

	metricsFile string
	traceOut    io.Closer
	logger      *slog.Logger
}

// NoopTelemetry returns telemetry that records nothing.
func NoopTelemetry() *Telemetry {
	t := &Telemetry{
		Tracer: tracenoop.NewTracerProvider().Tracer(MeterName),
		Meter:  metricnoop.NewMeterProvider().Meter(MeterName),
		logger: GetLogger(),
	}
	t.Metrics, _ = NewRunMetrics(t.Meter)
	return t
}

// InitializeTelemetry sets up tracing to a file and metrics into a private
// Prometheus registry.
func InitializeTelemetry(opts TelemetryOptions, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = GetLogger()
	}
	if !opts.Enabled {
		t := NoopTelemetry()
		t.logger = logger
		return t, nil
	}

	res := createResource(opts)
	t := &Telemetry{logger: logger, metricsFile: opts.MetricsFile}

	if opts.TracesFile != "" {
		if err := t.initializeTracing(opts, res); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	} else {
		t.Tracer = tracenoop.NewTracerProvider().Tracer(MeterName)
	}

	if err := t.initializeMetrics(res); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	metrics, err := NewRunMetrics(t.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create run metrics: %w", err)
	}
	t.Metrics = metrics

	logger.Info("Telemetry initialized",
		slog.String("environment", opts.Environment),
		slog.String("traces_file", opts.TracesFile),
		slog.String("metrics_file", opts.MetricsFile),
		slog.Float64("sample_ratio", opts.SampleRatio))

	return t, nil
}

// createResource creates the OpenTelemetry resource
func createResource(opts TelemetryOptions) *resource.Resource {
	hostname, _ := os.Hostname()
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
		semconv.DeploymentEnvironmentName(opts.Environment),
		attribute.String("service.instance.id", fmt.Sprintf("%s-%d", hostname, time.Now().Unix())),
	)
}

func (t *Telemetry) initializeTracing(opts TelemetryOptions, res *resource.Resource) error {
	if err := os.MkdirAll(filepath.Dir(opts.TracesFile), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(opts.TracesFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(out),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		out.Close()
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(opts.SampleRatio)),
	)
	t.TracerProvider = tp
	t.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(ServiceVersion))
	t.traceOut = out
	return nil
}

func (t *Telemetry) initializeMetrics(res *resource.Resource) error {
	t.Registry = promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(t.Registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	t.MeterProvider = mp
	t.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion))
	return nil
}

// WriteMetrics writes the current registry to path in the node-exporter
// textfile format.
func (t *Telemetry) WriteMetrics(path string) error {
	if t.Registry == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return promclient.WriteToTextfile(path, t.Registry)
}

// Shutdown flushes spans, writes the metrics textfile and releases files.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if err := t.WriteMetrics(t.metricsFile); err != nil {
		errs = append(errs, fmt.Errorf("metrics textfile: %w", err))
	}
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if t.traceOut != nil {
		if err := t.traceOut.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// RunMetrics are the instruments recorded during a report run.
type RunMetrics struct {
	CabinetsTotal    metric.Int64Counter
	CabinetDuration  metric.Float64Histogram
	DownloadWait     metric.Float64Histogram
	AuthAttempts     metric.Int64Counter
	APIRequestsTotal metric.Int64Counter
	FilesNormalized  metric.Int64Counter
}

// NewRunMetrics creates the run instruments on meter
func NewRunMetrics(meter metric.Meter) (*RunMetrics, error) {
	cabinets, err := meter.Int64Counter(
		"wbreports_cabinets_total",
		metric.WithDescription("Cabinets processed, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	cabinetDuration, err := meter.Float64Histogram(
		"wbreports_cabinet_duration_seconds",
		metric.WithDescription("Time spent on one cabinet"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	downloadWait, err := meter.Float64Histogram(
		"wbreports_download_wait_seconds",
		metric.WithDescription("Time from export click to a stable file"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	authAttempts, err := meter.Int64Counter(
		"wbreports_auth_attempts_total",
		metric.WithDescription("Sign-in attempts, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	apiRequests, err := meter.Int64Counter(
		"wbreports_api_requests_total",
		metric.WithDescription("Marketplace API requests, by endpoint and status"),
	)
	if err != nil {
		return nil, err
	}

	normalized, err := meter.Int64Counter(
		"wbreports_files_normalized_total",
		metric.WithDescription("Spreadsheets whose header row was rewritten"),
	)
	if err != nil {
		return nil, err
	}

	return &RunMetrics{
		CabinetsTotal:    cabinets,
		CabinetDuration:  cabinetDuration,
		DownloadWait:     downloadWait,
		AuthAttempts:     authAttempts,
		APIRequestsTotal: apiRequests,
		FilesNormalized:  normalized,
	}, nil
}

func outcome(ok bool) attribute.KeyValue {
	if ok {
		return attribute.String("outcome", "success")
	}
	return attribute.String("outcome", "failure")
}

// RecordCabinet records one finished cabinet.
func (m *RunMetrics) RecordCabinet(ctx context.Context, cabinet string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("cabinet", cabinet), outcome(ok))
	m.CabinetsTotal.Add(ctx, 1, attrs)
	m.CabinetDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordDownloadWait records how long a download took to stabilize.
func (m *RunMetrics) RecordDownloadWait(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.DownloadWait.Record(ctx, d.Seconds())
}

// RecordAuthAttempt records one sign-in attempt.
func (m *RunMetrics) RecordAuthAttempt(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.AuthAttempts.Add(ctx, 1, metric.WithAttributes(outcome(ok)))
}

// RecordAPIRequest records one API call.
func (m *RunMetrics) RecordAPIRequest(ctx context.Context, endpoint string, status int) {
	if m == nil {
		return
	}
	m.APIRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.Int("status", status)))
}

// RecordNormalized counts a normalized file.
func (m *RunMetrics) RecordNormalized(ctx context.Context) {
	if m == nil {
		return
	}
	m.FilesNormalized.Add(ctx, 1)
}

// RecordError marks the span in ctx as failed
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}
