// Copyright (c) 2025 Justin Cranford

// Package telemetry wires structured logging and OpenTelemetry traces for
// the Database and sync-client operations: a slog logger built with
// slog-multi over a single stdout text handler (no OTel log bridge), plus a
// TracerProvider that exports to stdout when OTLPConsole is set and has no
// exporter otherwise.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/otel"
	stdoutTraceExporter "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	traceSdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TelemetrySettings configures NewTelemetryService.
type TelemetrySettings struct {
	ServiceName string
	VerboseMode bool

	// OTLPConsole, when true, writes traces to stdout. When false, the
	// tracer provider has no exporter and spans are not exported anywhere;
	// this package has no OTLP exporter.
	OTLPConsole bool
}

// NewTestTelemetrySettings returns settings suitable for unit tests: a
// named service, stdout export, and verbose logging.
func NewTestTelemetrySettings(serviceName string) *TelemetrySettings {
	return &TelemetrySettings{ServiceName: serviceName, VerboseMode: true, OTLPConsole: true}
}

// TelemetryService owns the process's logger and tracer provider and knows
// how to shut both down cleanly.
type TelemetryService struct {
	StartTime   time.Time
	Slogger     *slog.Logger
	VerboseMode bool

	tracer            trace.Tracer
	tracesProviderSdk *traceSdk.TracerProvider
}

// initTracesFn is a var so tests can inject a failure (mirrors
// initMetricsFn/initTracesFn in the upstream telemetry service).
var initTracesFn = initTraces

// stdoutTraceExporterNewFn is a var so tests can inject exporter
// construction failures without a real stdout writer.
var stdoutTraceExporterNewFn = stdoutTraceExporter.New

// NewTelemetryService builds the logger and tracer provider described by
// settings. Logging fans out to stdout in text form via slog-multi; traces
// export to stdout when settings.OTLPConsole is set.
func NewTelemetryService(ctx context.Context, settings *TelemetrySettings) (*TelemetryService, error) {
	logLevel := slog.LevelInfo
	if settings.VerboseMode {
		logLevel = slog.LevelDebug
	}

	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(slogmulti.Fanout(textHandler))

	tp, err := initTracesFn(ctx, logger, settings)
	if err != nil {
		return nil, fmt.Errorf("telemetry: failed to init traces: %w", err)
	}
	otel.SetTracerProvider(tp)

	return &TelemetryService{
		StartTime:         time.Now().UTC(),
		Slogger:           logger,
		VerboseMode:       settings.VerboseMode,
		tracer:            tp.Tracer(settings.ServiceName),
		tracesProviderSdk: tp,
	}, nil
}

func initTraces(ctx context.Context, logger *slog.Logger, settings *TelemetrySettings) (*traceSdk.TracerProvider, error) {
	if !settings.OTLPConsole {
		return traceSdk.NewTracerProvider(), nil
	}

	exporter, err := stdoutTraceExporterNewFn(stdoutTraceExporter.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: create STDOUT traces failed: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(settings.ServiceName)))
	if err != nil {
		logger.Warn("telemetry: resource detection failed, continuing without it", "error", err)
		res = resource.Default()
	}

	return traceSdk.NewTracerProvider(
		traceSdk.WithBatcher(exporter),
		traceSdk.WithResource(res),
	), nil
}

// Tracer returns the service's tracer, for wrapping individual operations
// in spans (e.g. Database.SaveToPath, Database.Sync).
func (s *TelemetryService) Tracer() trace.Tracer { return s.tracer }

// Shutdown flushes and stops the tracer provider. Errors are logged, not
// returned: by the time the caller wants to shut down telemetry, there is
// nowhere left to usefully surface a telemetry-shutdown failure other than
// telemetry itself.
func (s *TelemetryService) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.tracesProviderSdk != nil {
		if err := s.tracesProviderSdk.ForceFlush(ctx); err != nil {
			s.Slogger.Error("telemetry: trace provider flush failed", "error", err)
		}
		if err := s.tracesProviderSdk.Shutdown(ctx); err != nil {
			s.Slogger.Error("telemetry: trace provider shutdown failed", "error", err)
		}
	}
}
