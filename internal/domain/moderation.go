package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ActionKind is a destructive moderator action that needs confirmation.
type ActionKind string

const (
	ActionKindBan    ActionKind = "ban"
	ActionKindAccept ActionKind = "accept"
)

// CallbackAction is the action part of an inline button tag.
type CallbackAction string

const (
	CallbackApprove       CallbackAction = "approve"
	CallbackReject        CallbackAction = "reject"
	CallbackAsk           CallbackAction = "ask"
	CallbackCancelAsk     CallbackAction = "cancel_ask"
	CallbackBan           CallbackAction = "ban"
	CallbackAccept        CallbackAction = "accept"
	CallbackConfirmBan    CallbackAction = "confirm_ban"
	CallbackConfirmAccept CallbackAction = "confirm_accept"
	CallbackCancelBan     CallbackAction = "cancel_ban"
	CallbackCancelAccept  CallbackAction = "cancel_accept"
)

var knownCallbackActions = map[CallbackAction]bool{
	CallbackApprove:       true,
	CallbackReject:        true,
	CallbackAsk:           true,
	CallbackCancelAsk:     true,
	CallbackBan:           true,
	CallbackAccept:        true,
	CallbackConfirmBan:    true,
	CallbackConfirmAccept: true,
	CallbackCancelBan:     true,
	CallbackCancelAccept:  true,
}

// ProposedKind returns the action a propose/confirm/cancel callback refers to.
func (a CallbackAction) ProposedKind() (ActionKind, bool) {
	switch a {
	case CallbackBan, CallbackConfirmBan, CallbackCancelBan:
		return ActionKindBan, true
	case CallbackAccept, CallbackConfirmAccept, CallbackCancelAccept:
		return ActionKindAccept, true
	}
	return "", false
}

// IsResolution reports whether a is a confirm or cancel of a proposal.
func (a CallbackAction) IsResolution() bool {
	switch a {
	case CallbackConfirmBan, CallbackConfirmAccept, CallbackCancelBan, CallbackCancelAccept:
		return true
	}
	return false
}

func ConfirmAction(kind ActionKind) CallbackAction {
	return CallbackAction("confirm_" + string(kind))
}

func CancelAction(kind ActionKind) CallbackAction {
	return CallbackAction("cancel_" + string(kind))
}

// CallbackTag is the payload of an inline button: "action:applicantId".
type CallbackTag struct {
	Action      CallbackAction
	ApplicantID int64
}

func (t CallbackTag) String() string {
	return fmt.Sprintf("%s:%d", t.Action, t.ApplicantID)
}

// ParseCallbackTag decodes button data produced by CallbackTag.String.
func ParseCallbackTag(data string) (CallbackTag, error) {
	action, rawID, ok := strings.Cut(data, ":")
	if !ok {
		return CallbackTag{}, fmt.Errorf("malformed callback data %q", data)
	}
	if !knownCallbackActions[CallbackAction(action)] {
		return CallbackTag{}, fmt.Errorf("unknown callback action %q", action)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return CallbackTag{}, fmt.Errorf("invalid applicant id in callback data %q", data)
	}
	return CallbackTag{Action: CallbackAction(action), ApplicantID: id}, nil
}

// ModeratorActionIntent is a proposed ban or accept awaiting confirmation.
// At most one exists per source message.
type ModeratorActionIntent struct {
	Kind        ActionKind
	ApplicantID int64
	ModeratorID int64
	ChatID      int64
	MessageID   int64
	CreatedAt   time.Time
}

// PendingQuestion correlates a moderator's upcoming free-text reply with
// the applicant it is meant for.
type PendingQuestion struct {
	ApplicantID     int64
	ModeratorID     int64
	PromptMessageID int64
	CreatedAt       time.Time
}
