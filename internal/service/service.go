package service

import (
	"context"
	"errors"
	"time"

	"joinguard/internal/domain"
	"joinguard/internal/gateway"
)

var (
	ErrRequestNotFound = errors.New("join request not found")
	ErrApplicantBanned = errors.New("applicant is banned")
)

// Settings holds the chat ids and timings shared by the services.
type Settings struct {
	CommunityChatID   int64
	ModeratorChatID   int64
	ModeratorThreadID int64
	Lifetime          time.Duration
}

func (s Settings) moderatorOptions(keyboard gateway.Keyboard) gateway.SendOptions {
	return gateway.SendOptions{ThreadID: s.ModeratorThreadID, Keyboard: keyboard}
}

type actedMessageKey struct{}

// actedMessage is the moderator message whose button triggered a transition.
type actedMessage struct {
	ref           gateway.MessageRef
	moderatorName string
}

// withActedMessage marks ctx as coming from a button on ref. The lifecycle
// leaves that message to the caller's own in-place update.
func withActedMessage(ctx context.Context, ref gateway.MessageRef, moderatorName string) context.Context {
	return context.WithValue(ctx, actedMessageKey{}, actedMessage{ref: ref, moderatorName: moderatorName})
}

func actedMessageFrom(ctx context.Context) (actedMessage, bool) {
	acted, ok := ctx.Value(actedMessageKey{}).(actedMessage)
	return acted, ok
}

// TransitionResult describes the outcome of a lifecycle operation. Applied
// is false when the request was no longer pending and nothing changed.
type TransitionResult struct {
	Request           *domain.JoinRequest
	Status            domain.JoinRequestStatus
	Applied           bool
	PlatformOutcome   gateway.ErrorKind
	ApplicantNotified bool
}

// JoinRequestService owns the join-request state machine. Every status
// change, interactive or scheduled, goes through it.
type JoinRequestService interface {
	Create(ctx context.Context, profile domain.ApplicantProfile) (*domain.JoinRequest, error)
	Approve(ctx context.Context, applicantID, moderatorID int64) (*TransitionResult, error)
	Reject(ctx context.Context, applicantID, moderatorID int64) (*TransitionResult, error)
	Expire(ctx context.Context, applicantID int64) (*TransitionResult, error)
	// Resolve closes a request the platform already settled without asking
	// it to decline again.
	Resolve(ctx context.Context, applicantID int64, memberStatus gateway.MemberStatus) (*TransitionResult, error)
	Ban(ctx context.Context, applicantID, moderatorID int64, reason string) (*TransitionResult, error)
	// HandleApplicantMessage reports whether the private message was consumed.
	HandleApplicantMessage(ctx context.Context, applicantID int64, content domain.ApplicantContent) (bool, error)
}

type SweepReport struct {
	Scanned  int
	Expired  int
	Resolved int
	Failed   int
}

type SweeperService interface {
	SweepExpired(ctx context.Context) (SweepReport, error)
}

// ModeratorCallback is an inline-button press in the moderator chat.
type ModeratorCallback struct {
	ID            string
	ModeratorID   int64
	ModeratorName string
	Message       gateway.MessageRef
	// Body is the text, or the caption for media messages.
	Body string
	// Media is empty for text messages.
	Media domain.MediaKind
	// Keyboard is the button layout shown when the button was pressed.
	Keyboard gateway.Keyboard
	Data     string
}

type ModerationService interface {
	HandleCallback(ctx context.Context, cb ModeratorCallback) error
}

type QuestionDelivery struct {
	Delivered            bool
	ApplicantUnreachable bool
}

type QuestionService interface {
	RequestQuestion(ctx context.Context, moderatorID, applicantID int64) (int64, error)
	MatchReply(moderatorID int64, text string) ReplyMatch
	// HandleModeratorReply reports whether the reply belonged to a pending question.
	HandleModeratorReply(ctx context.Context, moderatorID int64, text string) (bool, error)
	DeliverQuestion(ctx context.Context, moderatorID, applicantID int64, text string) (*QuestionDelivery, error)
	CancelQuestions(ctx context.Context, moderatorID, applicantID int64) int
}

// Incident is an unexpected failure surfaced to moderators.
type Incident struct {
	Action      string
	ApplicantID int64
	Err         error
}

type ErrorReporter interface {
	Report(ctx context.Context, incident Incident)
}
