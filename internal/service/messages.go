package service

import (
	"fmt"
	"strings"
	"time"

	"joinguard/internal/domain"
	"joinguard/internal/gateway"
)

func button(text string, action domain.CallbackAction, applicantID int64) gateway.Button {
	return gateway.Button{
		Text: text,
		Data: domain.CallbackTag{Action: action, ApplicantID: applicantID}.String(),
	}
}

// JoinRequestKeyboard is attached to the moderator notification of a new request.
func JoinRequestKeyboard(applicantID int64) gateway.Keyboard {
	return gateway.Keyboard{
		{button("✅ Approve", domain.CallbackApprove, applicantID), button("❌ Reject", domain.CallbackReject, applicantID)},
		{button("❓ Ask question", domain.CallbackAsk, applicantID), button("🚫 Ban", domain.CallbackBan, applicantID)},
	}
}

// ApplicantReplyKeyboard is attached to forwarded applicant messages.
func ApplicantReplyKeyboard(applicantID int64) gateway.Keyboard {
	return gateway.Keyboard{
		{button("✅ Accept", domain.CallbackAccept, applicantID)},
		{button("❓ Ask question", domain.CallbackAsk, applicantID)},
	}
}

func askOnlyKeyboard(applicantID int64) gateway.Keyboard {
	return gateway.Keyboard{
		{button("❓ Ask question", domain.CallbackAsk, applicantID)},
	}
}

func confirmKeyboard(kind domain.ActionKind, applicantID int64) gateway.Keyboard {
	return gateway.Keyboard{
		{
			button("✅ Confirm", domain.ConfirmAction(kind), applicantID),
			button("↩️ Cancel", domain.CancelAction(kind), applicantID),
		},
	}
}

func cancelAskKeyboard(applicantID int64) gateway.Keyboard {
	return gateway.Keyboard{
		{button("↩️ Cancel", domain.CallbackCancelAsk, applicantID)},
	}
}

// originalKeyboard is the layout a proposal of kind is made from: ban is
// offered on the join notification, accept on forwarded applicant messages.
func originalKeyboard(kind domain.ActionKind, applicantID int64) gateway.Keyboard {
	if kind == domain.ActionKindBan {
		return JoinRequestKeyboard(applicantID)
	}
	return ApplicantReplyKeyboard(applicantID)
}

// restorableKeyboard returns shown unless it is empty or already a
// confirmation layout.
func restorableKeyboard(shown gateway.Keyboard, kind domain.ActionKind, applicantID int64) gateway.Keyboard {
	if len(shown) == 0 {
		return originalKeyboard(kind, applicantID)
	}
	for _, row := range shown {
		for _, b := range row {
			tag, err := domain.ParseCallbackTag(b.Data)
			if err == nil && tag.Action.IsResolution() {
				return originalKeyboard(kind, applicantID)
			}
		}
	}
	return shown
}

// settledKeyboard is shown on moderator messages once a request left pending.
func settledKeyboard(status domain.JoinRequestStatus, applicantID int64) gateway.Keyboard {
	if status == domain.JoinRequestStatusBanned {
		return nil
	}
	return askOnlyKeyboard(applicantID)
}

// formatLifetime renders a duration as hours and minutes.
func formatLifetime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%d h %d min", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%d h", hours)
	}
	return fmt.Sprintf("%d min", minutes)
}

func applicantLabel(req *domain.JoinRequest) string {
	label := req.DisplayName
	if req.Username != "" {
		label += " (@" + req.Username + ")"
	}
	return fmt.Sprintf("%s, ID: %d", label, req.ApplicantID)
}

func greetingText(req *domain.JoinRequest, lifetime time.Duration) string {
	return fmt.Sprintf("Hello, %s! We received your request to join the community.\n\n"+
		"Tell us a little about yourself in this chat. Moderators may ask you questions here as well.\n"+
		"Requests that are not reviewed within %s expire automatically.",
		req.DisplayName, formatLifetime(lifetime))
}

const notificationTitle = "🆕 New join request"

func joinNotificationText(req *domain.JoinRequest, applicantUnreachable bool) string {
	var b strings.Builder
	b.WriteString(notificationTitle + "\n\n")
	fmt.Fprintf(&b, "Name: %s\n", req.DisplayName)
	if req.Username != "" {
		fmt.Fprintf(&b, "Username: @%s\n", req.Username)
	}
	fmt.Fprintf(&b, "ID: %d\n", req.ApplicantID)
	if req.LanguageCode != "" {
		fmt.Fprintf(&b, "Language: %s\n", req.LanguageCode)
	}
	if applicantUnreachable {
		b.WriteString("\n⚠️ The applicant cannot be messaged by the bot: instructions were not delivered.")
	}
	return strings.TrimRight(b.String(), "\n")
}

func applicantMessageHeader(req *domain.JoinRequest) string {
	return fmt.Sprintf("💬 Message from %s", applicantLabel(req))
}

func approvedNotice() string {
	return "Your request has been approved. Welcome to the community!"
}

func rejectedNotice() string {
	return "Your request to join the community has been declined."
}

func expiredNotice(lifetime time.Duration) string {
	return fmt.Sprintf("Your join request was not reviewed within %s and has expired. "+
		"You are welcome to send a new request at any time.", formatLifetime(lifetime))
}

func bannedNotice() string {
	return "Your request to join the community has been declined and you can no longer apply."
}

func reapplyNotice() string {
	return "Your previous request was declined. To try again, send a new join request through the group."
}

func questionToApplicant(text string) string {
	return "❓ Question from the moderators:\n\n" + text + "\n\nPlease answer in this chat."
}

func questionPrompt(req *domain.JoinRequest, openQuestions int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question for %s\n\nReply to this message with your question.", applicantLabel(req))
	if openQuestions > 0 {
		fmt.Fprintf(&b, "\n\n⚠️ You already have %d open question(s). Start your reply with the applicant ID, e.g.\n%d: your question",
			openQuestions, req.ApplicantID)
	}
	b.WriteString("\n\nSend /cancel as the reply to drop the question.")
	return b.String()
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}

func ambiguousReplyText(open []int64) string {
	return fmt.Sprintf("You have several open questions. Start your reply with the applicant ID:\n"+
		"<applicant ID>: your question\n\nFor example: %d: What brings you here?\n\nOpen questions: %s",
		open[0], formatIDs(open))
}

func unknownIDReplyText(id int64, open []int64) string {
	return fmt.Sprintf("Applicant %d is not among your open questions.\nOpen questions: %s", id, formatIDs(open))
}

func emptyReplyText() string {
	return "The question is empty. Reply with the text you want to send."
}

func questionExpiredText(q domain.PendingQuestion) string {
	return fmt.Sprintf("The question for applicant %d timed out. Press \"Ask question\" again if needed.", q.ApplicantID)
}

func outcomeLine(action string, moderatorName string, res *TransitionResult) string {
	if !res.Applied {
		return fmt.Sprintf("ℹ️ No change: the request is already %s.", res.Status)
	}
	line := fmt.Sprintf("%s by %s", action, moderatorName)
	if res.PlatformOutcome != gateway.KindNone {
		line += fmt.Sprintf(" (platform: %s)", res.PlatformOutcome)
	}
	if !res.ApplicantNotified {
		line += "\n⚠️ The applicant was not notified."
	}
	return line
}

// settledLine states the final status on a join notification.
func settledLine(req *domain.JoinRequest, moderatorName string) string {
	who := moderatorName
	if who == "" {
		who = "a moderator"
		if req.Audit.ModeratorID != nil {
			who = fmt.Sprintf("moderator %d", *req.Audit.ModeratorID)
		}
	}
	switch req.Status {
	case domain.JoinRequestStatusApproved:
		return "✅ Approved by " + who
	case domain.JoinRequestStatusRejected:
		return "❌ Rejected by " + who
	case domain.JoinRequestStatusBanned:
		return "🚫 Banned by " + who
	case domain.JoinRequestStatusExpired:
		return "⌛ Expired: " + req.Reason
	}
	return fmt.Sprintf("Status: %s", req.Status)
}

func errorLine(err error) string {
	return "⚠️ Error: " + err.Error()
}

func requestMissingText(applicantID int64) string {
	return fmt.Sprintf("No join request found for applicant %d.", applicantID)
}

func questionSentText(applicantID int64) string {
	return fmt.Sprintf("✅ Question sent to applicant %d.", applicantID)
}

func questionUndeliveredText(applicantID int64) string {
	return fmt.Sprintf("⚠️ Question not delivered: applicant %d cannot be messaged by the bot.", applicantID)
}

func questionFailedText(applicantID int64, err error) string {
	return fmt.Sprintf("⚠️ Could not send the question to applicant %d: %v\nThe question is still open, reply again to retry.", applicantID, err)
}

func questionCancelledText(applicantID int64) string {
	return fmt.Sprintf("↩️ Question for applicant %d cancelled.", applicantID)
}
