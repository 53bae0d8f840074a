// Package bot routes inbound Telegram updates to the join-request services.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"joinguard/internal/gateway"
	"joinguard/internal/gateway/telegram"
	"joinguard/internal/logger"
	"joinguard/internal/metrics"
	"joinguard/internal/service"
)

const (
	routeJoinRequest    = "join_request"
	routeCallback       = "moderator_callback"
	routeModeratorReply = "moderator_reply"
	routeApplicant      = "applicant_message"
	routeIgnored        = "ignored"
)

type Config struct {
	CommunityChatID int64
	ModeratorChatID int64
}

// Router classifies each update into exactly one entry point.
type Router struct {
	cfg        Config
	lifecycle  service.JoinRequestService
	moderation service.ModerationService
	questions  service.QuestionService
	reporter   service.ErrorReporter

	wg sync.WaitGroup
}

func NewRouter(
	cfg Config,
	lifecycle service.JoinRequestService,
	moderation service.ModerationService,
	questions service.QuestionService,
	reporter service.ErrorReporter,
) *Router {
	return &Router{
		cfg:        cfg,
		lifecycle:  lifecycle,
		moderation: moderation,
		questions:  questions,
		reporter:   reporter,
	}
}

// Dispatch handles the update on its own goroutine. It satisfies
// telegram.UpdateHandler. Cancelling ctx stops polling but not handlers
// already started; Wait lets them finish their store writes and replies.
func (r *Router) Dispatch(ctx context.Context, update telegram.Update) {
	handlerCtx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.handleSafely(handlerCtx, update)
	}()
}

// Wait blocks until every dispatched update has been handled.
func (r *Router) Wait() {
	r.wg.Wait()
}

func (r *Router) handleSafely(ctx context.Context, update telegram.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Panic while handling update", "update_id", update.UpdateID, "panic", rec)
			r.reporter.Report(ctx, service.Incident{Action: "handle update", Err: fmt.Errorf("panic: %v", rec)})
		}
	}()

	route, err := r.Handle(ctx, update)
	metrics.UpdatesHandled.WithLabelValues(route).Inc()
	if err != nil {
		logger.Warn("Update handling failed", "update_id", update.UpdateID, "route", route, "error", err)
	}
}

// Handle routes one update synchronously and returns the route it took.
func (r *Router) Handle(ctx context.Context, update telegram.Update) (string, error) {
	switch {
	case update.ChatJoinRequest != nil:
		return r.onJoinRequest(ctx, update.ChatJoinRequest)
	case update.CallbackQuery != nil:
		return r.onCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		return r.onMessage(ctx, update.Message)
	}
	return routeIgnored, nil
}

func (r *Router) onJoinRequest(ctx context.Context, req *telegram.ChatJoinRequest) (string, error) {
	if req.Chat.ID != r.cfg.CommunityChatID {
		return routeIgnored, nil
	}

	_, err := r.lifecycle.Create(ctx, req.From.Profile())
	if errors.Is(err, service.ErrApplicantBanned) {
		logger.Info("Declined join request from banned applicant", "applicant_id", req.From.ID)
		return routeJoinRequest, nil
	}
	return routeJoinRequest, err
}

func (r *Router) onCallback(ctx context.Context, query *telegram.CallbackQuery) (string, error) {
	msg := query.Message
	if msg == nil || msg.Chat.ID != r.cfg.ModeratorChatID {
		return routeIgnored, nil
	}

	cb := service.ModeratorCallback{
		ID:            query.ID,
		ModeratorID:   query.From.ID,
		ModeratorName: query.From.Profile().DisplayName(),
		Message:       gatewayRef(msg),
		Body:          msg.Text,
		Keyboard:      msg.Keyboard(),
		Data:          query.Data,
	}
	if kind, _, ok := msg.MediaKind(); ok {
		cb.Media = kind
		cb.Body = msg.Caption
	}
	return routeCallback, r.moderation.HandleCallback(ctx, cb)
}

func (r *Router) onMessage(ctx context.Context, msg *telegram.Message) (string, error) {
	if msg.From == nil || msg.From.IsBot {
		return routeIgnored, nil
	}

	switch {
	case msg.Chat.ID == r.cfg.ModeratorChatID:
		if !repliesToBot(msg) {
			return routeIgnored, nil
		}
		handled, err := r.questions.HandleModeratorReply(ctx, msg.From.ID, msg.Text)
		if !handled {
			return routeIgnored, err
		}
		return routeModeratorReply, err
	case msg.Chat.IsPrivate():
		content, ok := msg.ApplicantContent()
		if !ok {
			return routeIgnored, nil
		}
		handled, err := r.lifecycle.HandleApplicantMessage(ctx, msg.From.ID, content)
		if !handled {
			return routeIgnored, err
		}
		return routeApplicant, err
	}
	return routeIgnored, nil
}

// repliesToBot reports whether msg answers one of the bot's own messages.
// Only such replies can answer a question prompt; other moderator chatter
// never reaches applicants.
func repliesToBot(msg *telegram.Message) bool {
	parent := msg.ReplyToMessage
	return parent != nil && parent.From != nil && parent.From.IsBot
}

func gatewayRef(msg *telegram.Message) gateway.MessageRef {
	return gateway.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID}
}
