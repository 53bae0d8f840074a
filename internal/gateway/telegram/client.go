package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"joinguard/internal/domain"
	"joinguard/internal/gateway"
	"joinguard/internal/logger"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const platform = "telegram"

type Config struct {
	Token             string
	APIURL            string
	RequestsPerSecond float64
	Burst             int
	// Timeout bounds every HTTP call and must exceed the getUpdates long-poll timeout.
	Timeout time.Duration
}

// Client is a Bot API implementation of gateway.Gateway.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

var _ gateway.Gateway = (*Client)(nil)

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.APIURL, "/") + "/bot" + cfg.Token + "/"
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// call waits for the outbound rate limiter and performs one Bot API method.
func (c *Client) call(ctx context.Context, method string, payload map[string]any, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &gateway.Error{Kind: gateway.KindUnknown, Op: method, Err: err}
	}
	return c.do(ctx, method, payload, result)
}

func (c *Client) do(ctx context.Context, method string, payload map[string]any, result any) error {
	logger.GatewayCall(platform, method)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(method)
	if err != nil {
		logger.GatewayResult(platform, method, err)
		return &gateway.Error{Kind: gateway.KindUnknown, Op: method, Err: err}
	}

	var body apiResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		gwErr := &gateway.Error{
			Kind:        gateway.KindUnknown,
			Op:          method,
			Code:        resp.StatusCode(),
			Description: "malformed response",
			Err:         err,
		}
		logger.GatewayResult(platform, method, gwErr)
		return gwErr
	}

	if !body.OK {
		retryAfter := 0
		if body.Parameters != nil {
			retryAfter = body.Parameters.RetryAfter
		}
		code := body.ErrorCode
		if code == 0 {
			code = resp.StatusCode()
		}
		gwErr := classify(method, code, body.Description, retryAfter)
		logger.GatewayResult(platform, method, gwErr, "kind", gwErr.Kind.String())
		return gwErr
	}

	logger.GatewayResult(platform, method, nil)
	if result != nil && len(body.Result) > 0 {
		if err := json.Unmarshal(body.Result, result); err != nil {
			return &gateway.Error{Kind: gateway.KindUnknown, Op: method, Description: "malformed result", Err: err}
		}
	}
	return nil
}

func (c *Client) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "approveChatJoinRequest", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, nil)
}

func (c *Client) DeclineJoinRequest(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "declineChatJoinRequest", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, nil)
}

func (c *Client) BanMember(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "banChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, nil)
}

func (c *Client) GetMemberStatus(ctx context.Context, chatID, userID int64) (gateway.MemberStatus, error) {
	var member chatMember
	err := c.call(ctx, "getChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, &member)
	if err != nil {
		return "", err
	}
	return gateway.MemberStatus(member.Status), nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts gateway.SendOptions) (gateway.MessageRef, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	applyOptions(payload, opts)

	var msg Message
	if err := c.call(ctx, "sendMessage", payload, &msg); err != nil {
		return gateway.MessageRef{}, err
	}
	return gateway.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID}, nil
}

var mediaMethods = map[domain.MediaKind]string{
	domain.MediaKindPhoto:     "sendPhoto",
	domain.MediaKindVideo:     "sendVideo",
	domain.MediaKindVideoNote: "sendVideoNote",
	domain.MediaKindVoice:     "sendVoice",
	domain.MediaKindAudio:     "sendAudio",
	domain.MediaKindDocument:  "sendDocument",
}

func (c *Client) SendMedia(ctx context.Context, chatID int64, media gateway.Media, opts gateway.SendOptions) (gateway.MessageRef, error) {
	method, ok := mediaMethods[media.Kind]
	if !ok {
		return gateway.MessageRef{}, &gateway.Error{
			Kind:        gateway.KindUnknown,
			Op:          "sendMedia",
			Description: fmt.Sprintf("unsupported media kind %q", media.Kind),
		}
	}

	payload := map[string]any{
		"chat_id":          chatID,
		string(media.Kind): media.FileID,
	}
	if media.Caption != "" && media.Kind.SupportsCaption() {
		payload["caption"] = media.Caption
	}
	applyOptions(payload, opts)

	var msg Message
	if err := c.call(ctx, method, payload, &msg); err != nil {
		return gateway.MessageRef{}, err
	}
	return gateway.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID}, nil
}

func (c *Client) EditMessageText(ctx context.Context, ref gateway.MessageRef, text string, keyboard gateway.Keyboard) error {
	return c.call(ctx, "editMessageText", map[string]any{
		"chat_id":      ref.ChatID,
		"message_id":   ref.MessageID,
		"text":         text,
		"reply_markup": toMarkup(keyboard),
	}, nil)
}

func (c *Client) EditMessageCaption(ctx context.Context, ref gateway.MessageRef, caption string, keyboard gateway.Keyboard) error {
	return c.call(ctx, "editMessageCaption", map[string]any{
		"chat_id":      ref.ChatID,
		"message_id":   ref.MessageID,
		"caption":      caption,
		"reply_markup": toMarkup(keyboard),
	}, nil)
}

func (c *Client) EditMessageReplyMarkup(ctx context.Context, ref gateway.MessageRef, keyboard gateway.Keyboard) error {
	return c.call(ctx, "editMessageReplyMarkup", map[string]any{
		"chat_id":      ref.ChatID,
		"message_id":   ref.MessageID,
		"reply_markup": toMarkup(keyboard),
	}, nil)
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var me User
	err := c.call(ctx, "getMe", map[string]any{}, &me)
	return me, err
}

func applyOptions(payload map[string]any, opts gateway.SendOptions) {
	if opts.ThreadID != 0 {
		payload["message_thread_id"] = opts.ThreadID
	}
	if opts.ParseMode != "" {
		payload["parse_mode"] = opts.ParseMode
	}
	if opts.ReplyToMessageID != 0 {
		payload["reply_to_message_id"] = opts.ReplyToMessageID
	}
	if len(opts.Keyboard) > 0 {
		payload["reply_markup"] = toMarkup(opts.Keyboard)
	}
}

// toMarkup always returns a markup object; an empty one clears the buttons.
func toMarkup(keyboard gateway.Keyboard) inlineKeyboardMarkup {
	markup := inlineKeyboardMarkup{InlineKeyboard: [][]inlineKeyboardButton{}}
	for _, row := range keyboard {
		buttons := make([]inlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, inlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	return markup
}

// Keyboard returns the inline buttons currently attached to the message.
func (m *Message) Keyboard() gateway.Keyboard {
	if m.ReplyMarkup == nil {
		return nil
	}
	var keyboard gateway.Keyboard
	for _, row := range m.ReplyMarkup.InlineKeyboard {
		buttons := make([]gateway.Button, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, gateway.Button{Text: b.Text, Data: b.CallbackData})
		}
		keyboard = append(keyboard, buttons)
	}
	return keyboard
}
