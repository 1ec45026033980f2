package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/polymorphcorp/profilegpt/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type AppMetrics struct {
	quotaCounter        metric.Int64Counter
	extensionCounter    metric.Int64Counter
	repositoryCounter   metric.Int64Counter
	llmCallCounter      metric.Int64Counter
	rateLimitCounter    metric.Int64Counter
	rateLimitRetryAfter metric.Float64Histogram
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("profilegpt")
	quotaCounter, err := meter.Int64Counter("quota.decisions")
	if err != nil {
		return nil, err
	}
	extensionCounter, err := meter.Int64Counter("extension.transitions")
	if err != nil {
		return nil, err
	}
	repositoryCounter, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}
	llmCallCounter, err := meter.Int64Counter("llm.calls")
	if err != nil {
		return nil, err
	}
	rateLimitCounter, err := meter.Int64Counter("ratelimit.decisions")
	if err != nil {
		return nil, err
	}
	rateLimitRetryAfter, err := meter.Float64Histogram("ratelimit.retry_after_seconds")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		quotaCounter:        quotaCounter,
		extensionCounter:    extensionCounter,
		repositoryCounter:   repositoryCounter,
		llmCallCounter:      llmCallCounter,
		rateLimitCounter:    rateLimitCounter,
		rateLimitRetryAfter: rateLimitRetryAfter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

// RecordQuotaDecision counts admissions and limit hits.
func RecordQuotaDecision(ctx context.Context, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.quotaCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordExtensionTransition counts request lifecycle transitions by the
// status entered (pending, approved, denied).
func RecordExtensionTransition(ctx context.Context, status string) {
	m := current()
	if m == nil {
		return
	}
	m.extensionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordRepositoryOperation counts flat-file ledger reads and writes.
func RecordRepositoryOperation(ctx context.Context, repo, op, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.repositoryCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("repository", repo),
			attribute.String("operation", op),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordLLMCall counts upstream model calls by call type.
func RecordLLMCall(ctx context.Context, callType, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.llmCallCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("call_type", callType),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordRateLimitDecision(ctx context.Context, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordRateLimitRetryAfter(ctx context.Context, seconds float64) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitRetryAfter.Record(ctx, seconds)
}
