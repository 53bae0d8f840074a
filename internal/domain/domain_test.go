package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	terminal := []JoinRequestStatus{
		JoinRequestStatusApproved,
		JoinRequestStatusRejected,
		JoinRequestStatusExpired,
		JoinRequestStatusBanned,
	}
	for _, to := range terminal {
		assert.True(t, CanTransition(JoinRequestStatusPending, to), "pending -> %s", to)
		assert.True(t, to.IsTerminal())
		for _, next := range append(terminal, JoinRequestStatusPending) {
			assert.False(t, CanTransition(to, next), "%s -> %s", to, next)
		}
	}
	assert.False(t, JoinRequestStatusPending.IsTerminal())
	assert.False(t, CanTransition(JoinRequestStatusPending, JoinRequestStatusPending))
}

func TestJoinRequest_IsExpired(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	lifetime := 1440 * time.Minute

	req := &JoinRequest{Status: JoinRequestStatusPending}

	req.CreatedAt = now.Add(-lifetime - time.Minute)
	assert.True(t, req.IsExpired(now, lifetime))

	req.CreatedAt = now.Add(-lifetime + time.Minute)
	assert.False(t, req.IsExpired(now, lifetime))

	req.CreatedAt = now.Add(-lifetime)
	assert.False(t, req.IsExpired(now, lifetime))

	req.CreatedAt = now.Add(-2 * lifetime)
	req.Status = JoinRequestStatusApproved
	assert.False(t, req.IsExpired(now, lifetime))
}

func TestApplicantProfile_DisplayName(t *testing.T) {
	assert.Equal(t, "Ann Lee", ApplicantProfile{FirstName: "Ann", LastName: "Lee"}.DisplayName())
	assert.Equal(t, "Ann", ApplicantProfile{FirstName: "Ann"}.DisplayName())
	assert.Equal(t, "@ann", ApplicantProfile{Username: "ann"}.DisplayName())
}

func TestParseCallbackTag(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		tag := CallbackTag{Action: CallbackConfirmBan, ApplicantID: 42}
		assert.Equal(t, "confirm_ban:42", tag.String())

		parsed, err := ParseCallbackTag(tag.String())
		require.NoError(t, err)
		assert.Equal(t, tag, parsed)
	})

	t.Run("Rejects", func(t *testing.T) {
		for _, data := range []string{"", "ban", "ban:", "ban:abc", "ban:-1", "nuke:42"} {
			_, err := ParseCallbackTag(data)
			assert.Error(t, err, data)
		}
	})

	t.Run("ProposedKind", func(t *testing.T) {
		kind, ok := CallbackCancelAccept.ProposedKind()
		assert.True(t, ok)
		assert.Equal(t, ActionKindAccept, kind)

		_, ok = CallbackApprove.ProposedKind()
		assert.False(t, ok)

		assert.True(t, CallbackCancelBan.IsResolution())
		assert.False(t, CallbackBan.IsResolution())

		assert.Equal(t, CallbackConfirmBan, ConfirmAction(ActionKindBan))
		assert.Equal(t, CallbackCancelAccept, CancelAction(ActionKindAccept))
	})
}

func TestApplicantContent_Summary(t *testing.T) {
	assert.Equal(t, "hello", TextContent{Text: "hello"}.Summary())
	assert.Equal(t, "[photo] my wheel", MediaContent{Kind: MediaKindPhoto, Caption: "my wheel"}.Summary())
	assert.Equal(t, "[voice]", MediaContent{Kind: MediaKindVoice}.Summary())
	assert.False(t, MediaKindVideoNote.SupportsCaption())
	assert.True(t, MediaKindPhoto.SupportsCaption())
}
