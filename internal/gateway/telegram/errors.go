package telegram

import (
	"net/http"
	"strings"
	"time"

	"joinguard/internal/gateway"
)

var (
	rateLimitedMarkers = []string{"retry after", "too many requests"}

	callbackExpiredMarkers = []string{"query is too old", "query id is invalid"}

	unreachableMarkers = []string{
		"bot was blocked by the user",
		"bot can't initiate conversation",
		"user is deactivated",
		"chat not found",
	}

	alreadyProcessedMarkers = []string{"user_already_participant", "message is not modified"}

	notFoundMarkers = []string{
		"hide_requester_missing",
		"member not found",
		"user not found",
		"user_id_invalid",
		"participant_id_invalid",
		"message to edit not found",
	}
)

// classify maps a failed Bot API response onto a gateway error kind.
func classify(method string, code int, description string, retryAfter int) *gateway.Error {
	e := &gateway.Error{
		Kind:        gateway.KindUnknown,
		Op:          method,
		Code:        code,
		Description: description,
	}

	lower := strings.ToLower(description)
	switch {
	case code == http.StatusTooManyRequests || containsAny(lower, rateLimitedMarkers):
		e.Kind = gateway.KindRateLimited
		e.RetryAfter = time.Duration(retryAfter) * time.Second
		if e.RetryAfter <= 0 {
			e.RetryAfter = time.Second
		}
	case containsAny(lower, callbackExpiredMarkers):
		e.Kind = gateway.KindCallbackExpired
	case containsAny(lower, unreachableMarkers):
		e.Kind = gateway.KindUserUnreachable
	case containsAny(lower, alreadyProcessedMarkers):
		e.Kind = gateway.KindAlreadyProcessed
	case containsAny(lower, notFoundMarkers):
		e.Kind = gateway.KindNotFound
	}
	return e
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
