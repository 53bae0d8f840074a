package repository

import (
	"context"
	"errors"
	"time"

	"joinguard/internal/domain"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrStatusConflict   = errors.New("join request is no longer pending")
	ErrDuplicatePending = errors.New("applicant already has a pending join request")
)

// StatusUpdate moves a pending request to a terminal status and merges the
// audit fields recorded alongside the transition.
type StatusUpdate struct {
	Status          domain.JoinRequestStatus
	Reason          string
	ModeratorID     *int64
	PlatformOutcome string
	PlatformSuccess *bool
	UpdatedAt       time.Time
}

type JoinRequestRepository interface {
	// Create inserts a pending request. Returns ErrDuplicatePending when the
	// applicant already has one.
	Create(ctx context.Context, req *domain.JoinRequest) error
	// GetLatestByApplicant returns the most recent request of an applicant.
	GetLatestByApplicant(ctx context.Context, applicantID int64) (*domain.JoinRequest, error)
	// UpdateStatus applies the update only while the request is still
	// pending. Returns ErrStatusConflict otherwise.
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) error
	// UpdateDelivery records whether the applicant received the last notice.
	// An empty reason leaves the stored reason untouched.
	UpdateDelivery(ctx context.Context, id string, notified bool, reason string) error
	// SetModeratorMessage stores the moderator notification id unless one is
	// already set. Reports whether the value was written.
	SetModeratorMessage(ctx context.Context, id string, messageID int64) (bool, error)
	ListExpiredPending(ctx context.Context, createdBefore time.Time) ([]domain.JoinRequest, error)
	AppendReply(ctx context.Context, id string, reply domain.Reply) error
	CountByStatus(ctx context.Context) (map[domain.JoinRequestStatus]int, error)
}

type BanRepository interface {
	// Create adds an applicant to the ban list. Banning twice keeps the first entry.
	Create(ctx context.Context, ban *domain.Ban) error
	IsBanned(ctx context.Context, applicantID int64) (bool, error)
	GetByApplicant(ctx context.Context, applicantID int64) (*domain.Ban, error)
}
