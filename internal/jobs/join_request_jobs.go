package jobs

import (
	"context"

	"joinguard/internal/domain"
	"joinguard/internal/logger"
	"joinguard/internal/metrics"
)

var trackedStatuses = []domain.JoinRequestStatus{
	domain.JoinRequestStatusPending,
	domain.JoinRequestStatusApproved,
	domain.JoinRequestStatusRejected,
	domain.JoinRequestStatusExpired,
	domain.JoinRequestStatusBanned,
}

// ExpireJoinRequests closes pending join requests older than the configured lifetime
func (jr *JobRunner) ExpireJoinRequests() {
	jr.runWithRecovery("ExpireJoinRequests", func(ctx context.Context) {
		report, err := jr.services.Sweeper.SweepExpired(ctx)
		if err != nil {
			// The next tick retries.
			logger.Error("Failed to sweep expired join requests", "error", err)
			return
		}

		if report.Failed > 0 {
			logger.Warn("Some join requests could not be expired", "failed", report.Failed, "scanned", report.Scanned)
		}
	})
}

// RecordJoinRequestGauges publishes the number of stored requests per status
func (jr *JobRunner) RecordJoinRequestGauges() {
	jr.runWithRecovery("RecordJoinRequestGauges", func(ctx context.Context) {
		counts, err := jr.requests.CountByStatus(ctx)
		if err != nil {
			logger.Error("Failed to count join requests", "error", err)
			return
		}

		for _, status := range trackedStatuses {
			metrics.JoinRequestsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
		}
		logger.Debug("Recorded join request gauges", "pending", counts[domain.JoinRequestStatusPending])
	})
}
