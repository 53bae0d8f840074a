package service

import (
	"context"
	"fmt"

	"joinguard/internal/gateway"
	"joinguard/internal/logger"
	"joinguard/internal/metrics"
)

type chatErrorReporter struct {
	gw       gateway.Gateway
	chatID   int64
	threadID int64
}

// NewErrorReporter posts incidents to a moderator error chat. A zero chat id
// only logs them.
func NewErrorReporter(gw gateway.Gateway, chatID, threadID int64) ErrorReporter {
	return &chatErrorReporter{gw: gw, chatID: chatID, threadID: threadID}
}

func (r *chatErrorReporter) Report(ctx context.Context, incident Incident) {
	logger.ErrorContext(ctx, "Join request operation failed",
		"action", incident.Action,
		"applicant_id", incident.ApplicantID,
		"error", incident.Err)
	metrics.Incidents.WithLabelValues(incident.Action).Inc()

	if r.chatID == 0 {
		return
	}

	text := fmt.Sprintf("⚠️ %s failed\nApplicant ID: %d\nError: %v", incident.Action, incident.ApplicantID, incident.Err)
	if incident.ApplicantID == 0 {
		text = fmt.Sprintf("⚠️ %s failed\nError: %v", incident.Action, incident.Err)
	}
	if _, err := r.gw.SendMessage(ctx, r.chatID, text, gateway.SendOptions{ThreadID: r.threadID}); err != nil {
		logger.Error("Failed to deliver incident report", "action", incident.Action, "error", err)
	}
}
