// Package gateway describes the messaging-platform operations the
// join-request services depend on.
package gateway

import (
	"context"

	"joinguard/internal/domain"
)

type MemberStatus string

const (
	MemberStatusCreator       MemberStatus = "creator"
	MemberStatusAdministrator MemberStatus = "administrator"
	MemberStatusMember        MemberStatus = "member"
	MemberStatusRestricted    MemberStatus = "restricted"
	MemberStatusLeft          MemberStatus = "left"
	MemberStatusKicked        MemberStatus = "kicked"
)

// Button is an inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of inline buttons. A nil Keyboard removes the buttons
// of an edited message.
type Keyboard [][]Button

type SendOptions struct {
	ThreadID         int64
	ParseMode        string
	Keyboard         Keyboard
	ReplyToMessageID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int64
}

// Media is a file already stored on the platform, forwarded by reference.
type Media struct {
	Kind    domain.MediaKind
	FileID  string
	Caption string
}

type Gateway interface {
	ApproveJoinRequest(ctx context.Context, chatID, userID int64) error
	DeclineJoinRequest(ctx context.Context, chatID, userID int64) error
	BanMember(ctx context.Context, chatID, userID int64) error
	GetMemberStatus(ctx context.Context, chatID, userID int64) (MemberStatus, error)

	SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) (MessageRef, error)
	SendMedia(ctx context.Context, chatID int64, media Media, opts SendOptions) (MessageRef, error)
	EditMessageText(ctx context.Context, ref MessageRef, text string, keyboard Keyboard) error
	EditMessageCaption(ctx context.Context, ref MessageRef, caption string, keyboard Keyboard) error
	EditMessageReplyMarkup(ctx context.Context, ref MessageRef, keyboard Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
