// Package logger configures the process-wide slog logger. Output is JSON on stdout, or
// OpenTelemetry logs over OTLP/gRPC when OTEL_ENABLED=true. Warnings and errors are
// sampled (ERROR_SAMPLE_RATE) but always counted.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Level = slog.Level

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
	LevelFatal   = slog.Level(12)
)

var (
	Logger          *slog.Logger
	errorSampleRate int32 = 100 // 1 in N warnings/errors is written
	programLevel          = new(slog.LevelVar)
	shutdownFunc    func(context.Context) error
)

// Counters exported on /metrics. They are incremented whether or not the log line is
// sampled.
var (
	TotalErrors        atomic.Int64
	TotalWarnings      atomic.Int64
	Total5xxErrors     atomic.Int64
	Total4xxErrors     atomic.Int64
	Total404Errors     atomic.Int64
	Evaluations        atomic.Int64
	FailedEvaluations  atomic.Int64
	ValidationFailures atomic.Int64
)

func init() {
	level, err := ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = LevelInfo
	}
	programLevel.Set(level)

	if s := os.Getenv("ERROR_SAMPLE_RATE"); s != "" {
		if rate, err := strconv.Atoi(s); err == nil && rate > 0 {
			atomic.StoreInt32(&errorSampleRate, int32(rate))
		}
	}

	SetOutput(os.Stdout)
}

// SetOutput switches to JSON logging on w.
func SetOutput(w io.Writer) {
	Logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: programLevel}))
	slog.SetDefault(Logger)
}

// EnableOTEL routes logs to an OTLP collector when OTEL_ENABLED=true. On failure the
// JSON logger stays in place and the error is returned.
func EnableOTEL(ctx context.Context) error {
	if !strings.EqualFold(os.Getenv("OTEL_ENABLED"), "true") {
		return nil
	}

	serviceName := os.Getenv("OTEL_SERVICE_NAME")
	if serviceName == "" {
		serviceName = "gradcheck"
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	handler := &levelHandler{
		level:   programLevel,
		handler: otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(provider)),
	}
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
	shutdownFunc = provider.Shutdown
	return nil
}

// levelHandler applies the program level to a handler that has no level of its own.
type levelHandler struct {
	level   slog.Leveler
	handler slog.Handler
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithGroup(name)}
}

// Shutdown flushes the OTLP exporter, if any.
func Shutdown(ctx context.Context) error {
	if shutdownFunc != nil {
		return shutdownFunc(ctx)
	}
	return nil
}

func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

func GetLevel() slog.Level {
	return programLevel.Level()
}

// ParseLevel converts a level name to a slog.Level. An empty name is INFO.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

func shouldSample() bool {
	rate := atomic.LoadInt32(&errorSampleRate)
	if rate <= 1 {
		return true
	}
	return rand.Intn(int(rate)) == 0
}

func Trace(msg string, args ...any) {
	Logger.Log(context.Background(), LevelTrace, msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn is sampled.
func Warn(msg string, args ...any) {
	TotalWarnings.Add(1)
	if shouldSample() {
		Logger.Warn(msg, args...)
	}
}

// Error is sampled.
func Error(msg string, args ...any) {
	TotalErrors.Add(1)
	if shouldSample() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs, flushes and exits with status 1.
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	if shutdownFunc != nil {
		_ = shutdownFunc(context.Background())
	}
	os.Exit(1)
}

// Evaluated records an aggregate evaluation.
func Evaluated(programID string, passed, total int, satisfied bool) {
	Evaluations.Add(1)
	if !satisfied {
		FailedEvaluations.Add(1)
	}
	Debug("evaluated program", "program", programID, "passed", passed, "total", total, "satisfied", satisfied)
}

// InvalidInput records a rejected catalog row, ledger or rule definition.
func InvalidInput(kind string, err error) {
	ValidationFailures.Add(1)
	Warn("invalid input", "kind", kind, "error", err)
}

// HTTP5xx counts a server error response.
func HTTP5xx() {
	Total5xxErrors.Add(1)
	TotalErrors.Add(1)
}

// HTTP4xx counts a client error response.
func HTTP4xx(status int) {
	Total4xxErrors.Add(1)
	TotalWarnings.Add(1)
	if status == 404 {
		Total404Errors.Add(1)
	}
}
