package domain

import (
	"strings"
	"time"
)

type JoinRequestStatus string

const (
	JoinRequestStatusPending  JoinRequestStatus = "pending"
	JoinRequestStatusApproved JoinRequestStatus = "approved"
	JoinRequestStatusRejected JoinRequestStatus = "rejected"
	JoinRequestStatusExpired  JoinRequestStatus = "expired"
	JoinRequestStatusBanned   JoinRequestStatus = "banned"
)

// joinRequestTransitions lists the allowed moves out of each status.
// Every non-pending status is terminal.
var joinRequestTransitions = map[JoinRequestStatus][]JoinRequestStatus{
	JoinRequestStatusPending: {
		JoinRequestStatusApproved,
		JoinRequestStatusRejected,
		JoinRequestStatusExpired,
		JoinRequestStatusBanned,
	},
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to JoinRequestStatus) bool {
	for _, next := range joinRequestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s JoinRequestStatus) IsTerminal() bool {
	return len(joinRequestTransitions[s]) == 0
}

func (s JoinRequestStatus) Valid() bool {
	switch s {
	case JoinRequestStatusPending, JoinRequestStatusApproved, JoinRequestStatusRejected,
		JoinRequestStatusExpired, JoinRequestStatusBanned:
		return true
	}
	return false
}

type ReplySender string

const (
	ReplySenderAdmin ReplySender = "admin"
	ReplySenderUser  ReplySender = "user"
)

// Reply is one entry of the applicant/moderator transcript.
type Reply struct {
	Message   string      `json:"message"`
	Sender    ReplySender `json:"sender"`
	Timestamp time.Time   `json:"timestamp"`
}

// ApplicantProfile is the platform identity captured when a join request arrives.
type ApplicantProfile struct {
	UserID       int64  `json:"user_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

func (p ApplicantProfile) DisplayName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" && p.Username != "" {
		return "@" + p.Username
	}
	return name
}

// JoinRequestAudit records who acted on a request and what the platform said.
type JoinRequestAudit struct {
	ModeratorID       *int64 `json:"moderator_id,omitempty"`
	PlatformOutcome   string `json:"platform_outcome,omitempty"`
	PlatformSuccess   *bool  `json:"platform_success,omitempty"`
	ApplicantNotified *bool  `json:"applicant_notified,omitempty"`
}

type JoinRequest struct {
	ID                 string            `json:"id"`
	ApplicantID        int64             `json:"applicant_id"`
	DisplayName        string            `json:"display_name"`
	Username           string            `json:"username,omitempty"`
	LanguageCode       string            `json:"language_code,omitempty"`
	Status             JoinRequestStatus `json:"status"`
	Reason             string            `json:"reason,omitempty"`
	ModeratorMessageID *int64            `json:"moderator_message_id,omitempty"`
	Replies            []Reply           `json:"replies"`
	Audit              JoinRequestAudit  `json:"audit"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// NewJoinRequest builds a pending request from an applicant profile.
func NewJoinRequest(profile ApplicantProfile, now time.Time) *JoinRequest {
	return &JoinRequest{
		ApplicantID:  profile.UserID,
		DisplayName:  profile.DisplayName(),
		Username:     profile.Username,
		LanguageCode: profile.LanguageCode,
		Status:       JoinRequestStatusPending,
		Replies:      []Reply{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsExpired reports whether a pending request has outlived its TTL.
// A request exactly at the cutoff is not yet expired.
func (r *JoinRequest) IsExpired(now time.Time, lifetime time.Duration) bool {
	return r.Status == JoinRequestStatusPending && r.CreatedAt.Before(now.Add(-lifetime))
}

// Ban is an entry of the ban list. Bans outlive individual requests.
type Ban struct {
	ApplicantID int64     `json:"applicant_id"`
	ModeratorID int64     `json:"moderator_id"`
	Reason      string    `json:"reason"`
	BannedAt    time.Time `json:"banned_at"`
}
