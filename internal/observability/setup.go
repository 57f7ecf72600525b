package observability

import (
	"context"
	"log/slog"

	"github.com/alkewallet/wallet-core/internal/infrastructure/observability"
)

// Setup wires logging, metrics and tracing and returns the tracer shutdown.
func Setup(serviceName, metricsAddr string, level slog.Level) func(context.Context) error {
	observability.InitLogger(level)
	observability.InitMetrics(metricsAddr)
	return observability.InitTracing(serviceName)
}
