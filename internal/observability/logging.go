package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/polymorphcorp/profilegpt/internal/config"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
)

// InitLogging returns the process logger. With OTEL logs disabled it is a
// plain JSON handler on stdout; enabled, records are also exported over
// OTLP via the otelslog bridge.
func InitLogging(ctx context.Context, cfg *config.Config) (*slog.Logger, *sdklog.LoggerProvider, error) {
	stdout := slog.NewJSONHandler(os.Stdout, nil)
	if !cfg.OTELLogsEnabled {
		return slog.New(stdout), nil, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create otlp log exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create log resource: %w", err)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)
	bridge := otelslog.NewHandler(cfg.OTELServiceName, otelslog.WithLoggerProvider(lp))
	return slog.New(fanoutHandler{stdout, bridge}), lp, nil
}

// fanoutHandler duplicates records to stdout and the OTLP bridge.
type fanoutHandler [2]slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return f[0].Enabled(ctx, level) || f[1].Enabled(ctx, level)
}

func (f fanoutHandler) Handle(ctx context.Context, rec slog.Record) error {
	if f[0].Enabled(ctx, rec.Level) {
		if err := f[0].Handle(ctx, rec.Clone()); err != nil {
			return err
		}
	}
	if f[1].Enabled(ctx, rec.Level) {
		return f[1].Handle(ctx, rec.Clone())
	}
	return nil
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return fanoutHandler{f[0].WithAttrs(attrs), f[1].WithAttrs(attrs)}
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	return fanoutHandler{f[0].WithGroup(name), f[1].WithGroup(name)}
}
