package service

import (
	"context"
	"errors"
	"sync"

	"joinguard/internal/clock"
	"joinguard/internal/domain"
	"joinguard/internal/gateway"
	"joinguard/internal/logger"
)

const banReason = "banned by moderator"

type moderationService struct {
	lifecycle JoinRequestService
	questions QuestionService
	gw        gateway.Gateway
	reporter  ErrorReporter
	clock     clock.Clock
	caller    gatewayCaller
	settings  Settings

	mu      sync.Mutex
	intents map[gateway.MessageRef]*proposal
}

// proposal is a recorded intent plus the buttons to bring back on cancel.
type proposal struct {
	intent  *domain.ModeratorActionIntent
	restore gateway.Keyboard
}

func NewModerationService(
	lifecycle JoinRequestService,
	questions QuestionService,
	gw gateway.Gateway,
	reporter ErrorReporter,
	clk clock.Clock,
	settings Settings,
) ModerationService {
	return &moderationService{
		lifecycle: lifecycle,
		questions: questions,
		gw:        gw,
		reporter:  reporter,
		clock:     clk,
		caller:    gatewayCaller{clock: clk},
		settings:  settings,
		intents:   make(map[gateway.MessageRef]*proposal),
	}
}

// HandleCallback acknowledges the button press, then runs the action it
// carries and updates the pressed message in place.
func (s *moderationService) HandleCallback(ctx context.Context, cb ModeratorCallback) error {
	s.acknowledge(ctx, cb.ID)

	tag, err := domain.ParseCallbackTag(cb.Data)
	if err != nil {
		logger.Warn("Ignoring malformed callback", "data", cb.Data, "error", err)
		return nil
	}
	id := tag.ApplicantID

	switch tag.Action {
	case domain.CallbackApprove:
		return s.direct(ctx, cb, id, "✅ Approved", func(ctx context.Context) (*TransitionResult, error) {
			return s.lifecycle.Approve(ctx, id, cb.ModeratorID)
		})
	case domain.CallbackReject:
		return s.direct(ctx, cb, id, "❌ Rejected", func(ctx context.Context) (*TransitionResult, error) {
			return s.lifecycle.Reject(ctx, id, cb.ModeratorID)
		})
	case domain.CallbackAsk:
		_, err := s.questions.RequestQuestion(ctx, cb.ModeratorID, id)
		if errors.Is(err, ErrRequestNotFound) {
			return nil
		}
		return err
	case domain.CallbackCancelAsk:
		line := "ℹ️ No open question to cancel."
		if s.questions.CancelQuestions(ctx, cb.ModeratorID, id) > 0 {
			line = "↩️ Question cancelled."
		}
		return s.render(ctx, cb, line, nil)
	case domain.CallbackBan, domain.CallbackAccept:
		kind, _ := tag.Action.ProposedKind()
		return s.propose(ctx, cb, kind, id)
	case domain.CallbackConfirmBan, domain.CallbackConfirmAccept:
		kind, _ := tag.Action.ProposedKind()
		return s.confirm(ctx, cb, kind, id)
	case domain.CallbackCancelBan, domain.CallbackCancelAccept:
		kind, _ := tag.Action.ProposedKind()
		return s.render(ctx, cb, "", s.restoreKeyboard(s.takeIntent(cb.Message), cb, kind, id))
	}
	return nil
}

// acknowledge answers the callback query. An expired query is tolerated by
// the caller; the action still runs.
func (s *moderationService) acknowledge(ctx context.Context, callbackID string) {
	_, err := s.caller.call(ctx, "answerCallbackQuery", func() error {
		return s.gw.AnswerCallback(ctx, callbackID, "")
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to acknowledge callback", "callback_id", callbackID, "error", err)
	}
}

// direct runs approve or reject straight from the notification buttons.
// On error the buttons stay so the moderator can retry.
func (s *moderationService) direct(ctx context.Context, cb ModeratorCallback, applicantID int64, label string, run func(context.Context) (*TransitionResult, error)) error {
	res, err := run(withActedMessage(ctx, cb.Message, cb.ModeratorName))
	if err != nil {
		if renderErr := s.render(ctx, cb, errorLine(err), JoinRequestKeyboard(applicantID)); renderErr != nil {
			logger.Warn("Failed to show error on moderator message", "error", renderErr)
		}
		return err
	}
	return s.render(ctx, cb, outcomeLine(label, cb.ModeratorName, res), settledKeyboard(res.Status, applicantID))
}

// propose records the intent for the pressed message and swaps its buttons
// for confirm/cancel. Proposing again redisplays the recorded intent.
func (s *moderationService) propose(ctx context.Context, cb ModeratorCallback, kind domain.ActionKind, applicantID int64) error {
	s.mu.Lock()
	p, ok := s.intents[cb.Message]
	if !ok {
		p = &proposal{
			intent: &domain.ModeratorActionIntent{
				Kind:        kind,
				ApplicantID: applicantID,
				ModeratorID: cb.ModeratorID,
				ChatID:      cb.Message.ChatID,
				MessageID:   cb.Message.MessageID,
				CreatedAt:   s.clock.Now(),
			},
			restore: restorableKeyboard(cb.Keyboard, kind, applicantID),
		}
		s.intents[cb.Message] = p
	}
	s.mu.Unlock()

	return s.render(ctx, cb, "", confirmKeyboard(p.intent.Kind, p.intent.ApplicantID))
}

func (s *moderationService) confirm(ctx context.Context, cb ModeratorCallback, kind domain.ActionKind, applicantID int64) error {
	p := s.takeIntent(cb.Message)
	if p == nil {
		logger.InfoContext(ctx, "Confirmation without a recorded proposal", "kind", kind, "applicant_id", applicantID)
	}

	var (
		res   *TransitionResult
		err   error
		label string
	)
	actx := withActedMessage(ctx, cb.Message, cb.ModeratorName)
	switch kind {
	case domain.ActionKindBan:
		label = "🚫 Banned"
		res, err = s.lifecycle.Ban(actx, applicantID, cb.ModeratorID, banReason)
	case domain.ActionKindAccept:
		label = "✅ Accepted"
		res, err = s.lifecycle.Approve(actx, applicantID, cb.ModeratorID)
	}
	if err != nil {
		if renderErr := s.render(ctx, cb, errorLine(err), s.restoreKeyboard(p, cb, kind, applicantID)); renderErr != nil {
			logger.Warn("Failed to show error on moderator message", "error", renderErr)
		}
		return err
	}
	return s.render(ctx, cb, outcomeLine(label, cb.ModeratorName, res), settledKeyboard(res.Status, applicantID))
}

// restoreKeyboard is the layout a resolved proposal returns to. Without a
// recorded proposal it is inferred from the action kind.
func (s *moderationService) restoreKeyboard(p *proposal, cb ModeratorCallback, kind domain.ActionKind, applicantID int64) gateway.Keyboard {
	if p != nil {
		return p.restore
	}
	return originalKeyboard(kind, applicantID)
}

func (s *moderationService) takeIntent(ref gateway.MessageRef) *proposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.intents[ref]
	delete(s.intents, ref)
	return p
}

// render rewrites the pressed message with line appended to its body and the
// given keyboard. Captionless media gets a placeholder caption; video notes
// only take the keyboard, so the line goes out as a reply.
func (s *moderationService) render(ctx context.Context, cb ModeratorCallback, line string, keyboard gateway.Keyboard) error {
	ref := cb.Message
	var op string
	var edit func() error

	switch {
	case cb.Media == "":
		op = "editMessageText"
		text := appendLine(cb.Body, line)
		edit = func() error { return s.gw.EditMessageText(ctx, ref, text, keyboard) }
	case cb.Media.SupportsCaption():
		op = "editMessageCaption"
		caption := cb.Body
		if caption == "" {
			caption = cb.Media.Placeholder()
		}
		caption = appendLine(caption, line)
		edit = func() error { return s.gw.EditMessageCaption(ctx, ref, caption, keyboard) }
	default:
		op = "editMessageReplyMarkup"
		edit = func() error { return s.gw.EditMessageReplyMarkup(ctx, ref, keyboard) }
	}

	if _, err := s.caller.call(ctx, op, edit); err != nil {
		return err
	}

	if line != "" && cb.Media != "" && !cb.Media.SupportsCaption() {
		_, err := s.caller.call(ctx, "sendMessage", func() error {
			_, err := s.gw.SendMessage(ctx, ref.ChatID, line, gateway.SendOptions{
				ThreadID:         s.settings.ModeratorThreadID,
				ReplyToMessageID: ref.MessageID,
			})
			return err
		})
		return err
	}
	return nil
}

func appendLine(body, line string) string {
	switch {
	case line == "":
		return body
	case body == "":
		return line
	}
	return body + "\n\n" + line
}
