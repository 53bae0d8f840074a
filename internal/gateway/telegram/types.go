package telegram

import (
	"encoding/json"

	"joinguard/internal/domain"
)

// Bot API objects, reduced to the fields the bot reads.

type Update struct {
	UpdateID        int64            `json:"update_id"`
	Message         *Message         `json:"message,omitempty"`
	CallbackQuery   *CallbackQuery   `json:"callback_query,omitempty"`
	ChatJoinRequest *ChatJoinRequest `json:"chat_join_request,omitempty"`
}

type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Profile converts the platform user into an applicant profile.
func (u User) Profile() domain.ApplicantProfile {
	return domain.ApplicantProfile{
		UserID:       u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.Username,
		LanguageCode: u.LanguageCode,
	}
}

type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

func (c Chat) IsPrivate() bool {
	return c.Type == "private"
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int    `json:"file_size,omitempty"`
}

type File struct {
	FileID string `json:"file_id"`
}

type Message struct {
	MessageID       int64                 `json:"message_id"`
	MessageThreadID int64                 `json:"message_thread_id,omitempty"`
	From            *User                 `json:"from,omitempty"`
	Chat            Chat                  `json:"chat"`
	Date            int64                 `json:"date"`
	Text            string                `json:"text,omitempty"`
	Caption         string                `json:"caption,omitempty"`
	Photo           []PhotoSize           `json:"photo,omitempty"`
	Video           *File                 `json:"video,omitempty"`
	VideoNote       *File                 `json:"video_note,omitempty"`
	Voice           *File                 `json:"voice,omitempty"`
	Audio           *File                 `json:"audio,omitempty"`
	Document        *File                 `json:"document,omitempty"`
	ReplyToMessage  *Message              `json:"reply_to_message,omitempty"`
	ReplyMarkup     *inlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// MediaKind returns the kind of media attached to the message, if any.
func (m *Message) MediaKind() (domain.MediaKind, string, bool) {
	switch {
	case len(m.Photo) > 0:
		// sizes are ordered smallest first
		return domain.MediaKindPhoto, m.Photo[len(m.Photo)-1].FileID, true
	case m.Video != nil:
		return domain.MediaKindVideo, m.Video.FileID, true
	case m.VideoNote != nil:
		return domain.MediaKindVideoNote, m.VideoNote.FileID, true
	case m.Voice != nil:
		return domain.MediaKindVoice, m.Voice.FileID, true
	case m.Audio != nil:
		return domain.MediaKindAudio, m.Audio.FileID, true
	case m.Document != nil:
		return domain.MediaKindDocument, m.Document.FileID, true
	}
	return "", "", false
}

// ApplicantContent resolves the message into text or media content.
// Messages with neither (stickers, locations, service messages) yield false.
func (m *Message) ApplicantContent() (domain.ApplicantContent, bool) {
	if kind, fileID, ok := m.MediaKind(); ok {
		return domain.MediaContent{Kind: kind, FileID: fileID, Caption: m.Caption}, true
	}
	if m.Text != "" {
		return domain.TextContent{Text: m.Text}, true
	}
	return nil, false
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

type ChatJoinRequest struct {
	Chat       Chat  `json:"chat"`
	From       User  `json:"from"`
	UserChatID int64 `json:"user_chat_id"`
	Date       int64 `json:"date"`
}

type chatMember struct {
	Status string `json:"status"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}
