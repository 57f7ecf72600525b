package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/alkewallet/wallet-core/internal/infrastructure/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// startCall opens a span and returns a finisher recording the call outcome
// in the repository metrics. Use with a named error result:
//
//	ctx, done := startCall(ctx, "GetUserByID")
//	defer func() { done(err) }()
func startCall(ctx context.Context, method string) (context.Context, func(error)) {
	ctx, span := otel.Tracer("postgres-repository").Start(ctx, method)
	start := time.Now()
	return ctx, func(err error) {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues(method, status).Inc()
		observability.RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		span.End()
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
