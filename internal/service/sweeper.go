package service

import (
	"context"
	"fmt"

	"joinguard/internal/clock"
	"joinguard/internal/domain"
	"joinguard/internal/gateway"
	"joinguard/internal/logger"
	"joinguard/internal/metrics"
	"joinguard/internal/repository"
)

type sweeperService struct {
	reqRepo   repository.JoinRequestRepository
	gw        gateway.Gateway
	lifecycle JoinRequestService
	clock     clock.Clock
	caller    gatewayCaller
	settings  Settings
}

func NewSweeperService(
	reqRepo repository.JoinRequestRepository,
	gw gateway.Gateway,
	lifecycle JoinRequestService,
	clk clock.Clock,
	settings Settings,
) SweeperService {
	return &sweeperService{
		reqRepo:   reqRepo,
		gw:        gw,
		lifecycle: lifecycle,
		clock:     clk,
		caller:    gatewayCaller{clock: clk},
		settings:  settings,
	}
}

// SweepExpired closes every pending request older than the lifetime. Each
// request is handled on its own; a failure is counted and the batch goes on.
func (s *sweeperService) SweepExpired(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	cutoff := s.clock.Now().Add(-s.settings.Lifetime)

	requests, err := s.reqRepo.ListExpiredPending(ctx, cutoff)
	if err != nil {
		metrics.SweepRuns.WithLabelValues("store_error").Inc()
		return report, fmt.Errorf("failed to list expired join requests: %w", err)
	}

	report.Scanned = len(requests)
	for i := range requests {
		if ctx.Err() != nil {
			break
		}
		outcome := s.sweepOne(ctx, &requests[i])
		switch outcome {
		case "expired":
			report.Expired++
		case "resolved":
			report.Resolved++
		case "failed":
			report.Failed++
		}
		metrics.SweptRequests.WithLabelValues(outcome).Inc()
	}

	metrics.SweepRuns.WithLabelValues("ok").Inc()
	logger.WithService("sweeper").InfoContext(ctx, "Expiration sweep finished",
		"scanned", report.Scanned,
		"expired", report.Expired,
		"resolved", report.Resolved,
		"failed", report.Failed)
	return report, nil
}

func (s *sweeperService) sweepOne(ctx context.Context, req *domain.JoinRequest) (outcome string) {
	log := logger.WithApplicant(req.ApplicantID)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while expiring join request", "request_id", req.ID, "panic", r)
			outcome = "failed"
		}
	}()

	var status gateway.MemberStatus
	_, err := s.caller.call(ctx, "getChatMember", func() error {
		var err error
		status, err = s.gw.GetMemberStatus(ctx, s.settings.CommunityChatID, req.ApplicantID)
		return err
	})
	if err != nil {
		log.Warn("Member status check failed, expiring anyway", "error", err)
	}

	var res *TransitionResult
	outcome = "expired"
	if status != "" && status != gateway.MemberStatusLeft {
		outcome = "resolved"
		res, err = s.lifecycle.Resolve(ctx, req.ApplicantID, status)
	} else {
		res, err = s.lifecycle.Expire(ctx, req.ApplicantID)
	}
	if err != nil {
		log.Warn("Failed to expire join request", "request_id", req.ID, "error", err)
		return "failed"
	}
	if !res.Applied {
		return "skipped"
	}
	return outcome
}
