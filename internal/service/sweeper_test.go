package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"joinguard/internal/clock"
	"joinguard/internal/domain"
	"joinguard/internal/gateway"
	"joinguard/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func expiredAt(applicantID int64) domain.JoinRequest {
	req := pendingRequest(applicantID)
	req.CreatedAt = t0.Add(-25 * time.Hour)
	return *req
}

func TestSweeperService_SweepExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("ExpiresAndResolves", func(t *testing.T) {
		reqRepo := new(MockJoinRequestRepo)
		gw := new(MockGateway)
		lifecycle := new(MockJoinRequestService)
		svc := service.NewSweeperService(reqRepo, gw, lifecycle, clock.Fake(t0), testSettings)

		reqRepo.On("ListExpiredPending", ctx, t0.Add(-24*time.Hour)).
			Return([]domain.JoinRequest{expiredAt(1), expiredAt(2), expiredAt(3)}, nil).Once()
		gw.On("GetMemberStatus", ctx, communityChat, int64(1)).Return(gateway.MemberStatusLeft, nil).Once()
		gw.On("GetMemberStatus", ctx, communityChat, int64(2)).Return(gateway.MemberStatusMember, nil).Once()
		gw.On("GetMemberStatus", ctx, communityChat, int64(3)).Return(gateway.MemberStatus(""), errors.New("timeout")).Once()
		lifecycle.On("Expire", ctx, int64(1)).Return(&service.TransitionResult{Status: domain.JoinRequestStatusExpired, Applied: true}, nil).Once()
		lifecycle.On("Resolve", ctx, int64(2), gateway.MemberStatusMember).Return(&service.TransitionResult{Status: domain.JoinRequestStatusExpired, Applied: true}, nil).Once()
		lifecycle.On("Expire", ctx, int64(3)).Return(&service.TransitionResult{Status: domain.JoinRequestStatusExpired, Applied: true}, nil).Once()

		report, err := svc.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, service.SweepReport{Scanned: 3, Expired: 2, Resolved: 1}, report)
		lifecycle.AssertExpectations(t)
		gw.AssertExpectations(t)
	})

	t.Run("FailuresDoNotAbortBatch", func(t *testing.T) {
		reqRepo := new(MockJoinRequestRepo)
		gw := new(MockGateway)
		lifecycle := new(MockJoinRequestService)
		svc := service.NewSweeperService(reqRepo, gw, lifecycle, clock.Fake(t0), testSettings)

		reqRepo.On("ListExpiredPending", ctx, mock.Anything).
			Return([]domain.JoinRequest{expiredAt(1), expiredAt(2), expiredAt(3)}, nil).Once()
		gw.On("GetMemberStatus", ctx, communityChat, mock.Anything).Return(gateway.MemberStatusLeft, nil)
		lifecycle.On("Expire", ctx, int64(1)).Run(func(mock.Arguments) { panic("boom") }).Once()
		lifecycle.On("Expire", ctx, int64(2)).Return(nil, errors.New("decline failed")).Once()
		lifecycle.On("Expire", ctx, int64(3)).Return(&service.TransitionResult{Status: domain.JoinRequestStatusExpired, Applied: true}, nil).Once()

		report, err := svc.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, service.SweepReport{Scanned: 3, Expired: 1, Failed: 2}, report)
		lifecycle.AssertExpectations(t)
	})

	t.Run("AlreadyTransitionedIsSkipped", func(t *testing.T) {
		reqRepo := new(MockJoinRequestRepo)
		gw := new(MockGateway)
		lifecycle := new(MockJoinRequestService)
		svc := service.NewSweeperService(reqRepo, gw, lifecycle, clock.Fake(t0), testSettings)

		reqRepo.On("ListExpiredPending", ctx, mock.Anything).Return([]domain.JoinRequest{expiredAt(1)}, nil).Once()
		gw.On("GetMemberStatus", ctx, communityChat, int64(1)).Return(gateway.MemberStatusLeft, nil).Once()
		lifecycle.On("Expire", ctx, int64(1)).Return(&service.TransitionResult{Status: domain.JoinRequestStatusApproved}, nil).Once()

		report, err := svc.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, service.SweepReport{Scanned: 1}, report)
	})

	t.Run("StoreUnavailable", func(t *testing.T) {
		reqRepo := new(MockJoinRequestRepo)
		lifecycle := new(MockJoinRequestService)
		svc := service.NewSweeperService(reqRepo, new(MockGateway), lifecycle, clock.Fake(t0), testSettings)

		reqRepo.On("ListExpiredPending", ctx, mock.Anything).Return(nil, errors.New("connection refused")).Once()

		_, err := svc.SweepExpired(ctx)
		require.Error(t, err)
		lifecycle.AssertNotCalled(t, "Expire", mock.Anything, mock.Anything)
	})
}
