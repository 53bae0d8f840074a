package service

import (
	"context"
	"fmt"

	"joinguard/internal/clock"
	"joinguard/internal/gateway"
	"joinguard/internal/logger"
	"joinguard/internal/metrics"
)

// gatewayCaller applies the platform error policy: benign kinds are returned
// with a nil error, a rate limit is retried once after the platform's
// backoff hint, and anything else comes back as an error.
type gatewayCaller struct {
	clock clock.Clock
}

func (c gatewayCaller) call(ctx context.Context, op string, fn func() error) (gateway.ErrorKind, error) {
	err := fn()
	if gateway.KindOf(err) == gateway.KindRateLimited {
		wait := gateway.RetryAfterOf(err)
		metrics.GatewayRetries.Inc()
		logger.Warn("Platform rate limit hit, retrying once", "op", op, "retry_after", wait)
		select {
		case <-ctx.Done():
			return gateway.KindUnknown, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-c.clock.After(wait):
		}
		err = fn()
	}

	kind := gateway.KindOf(err)
	metrics.GatewayOutcomes.WithLabelValues(op, kind.String()).Inc()
	switch {
	case kind == gateway.KindNone:
		return kind, nil
	case kind.Benign():
		logger.Info("Platform call tolerated", "op", op, "kind", kind.String(), "error", err)
		return kind, nil
	}
	return gateway.KindUnknown, fmt.Errorf("%s: %w", op, err)
}
