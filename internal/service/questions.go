package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"joinguard/internal/clock"
	"joinguard/internal/domain"
	"joinguard/internal/gateway"
	"joinguard/internal/logger"
	"joinguard/internal/metrics"
	"joinguard/internal/repository"
)

type ReplyOutcome int

const (
	// MatchNone means the moderator has no open question.
	MatchNone ReplyOutcome = iota
	MatchFound
	// MatchAmbiguous means several questions are open and the reply has no id prefix.
	MatchAmbiguous
	MatchUnknownID
	MatchCancel
	MatchEmpty
)

// ReplyMatch is the result of correlating a moderator reply with an open question.
type ReplyMatch struct {
	Outcome     ReplyOutcome
	ApplicantID int64
	// Text is the reply with any id prefix stripped.
	Text string
	// Open lists the applicants the moderator has open questions for.
	Open []int64
}

var applicantPrefix = regexp.MustCompile(`^(\d+):\s*`)

const cancelCommand = "/cancel"

type questionService struct {
	reqRepo  repository.JoinRequestRepository
	gw       gateway.Gateway
	registry *QuestionRegistry
	reporter ErrorReporter
	clock    clock.Clock
	caller   gatewayCaller
	settings Settings
}

func NewQuestionService(
	reqRepo repository.JoinRequestRepository,
	gw gateway.Gateway,
	registry *QuestionRegistry,
	reporter ErrorReporter,
	clk clock.Clock,
	settings Settings,
) QuestionService {
	return &questionService{
		reqRepo:  reqRepo,
		gw:       gw,
		registry: registry,
		reporter: reporter,
		clock:    clk,
		caller:   gatewayCaller{clock: clk},
		settings: settings,
	}
}

func (s *questionService) RequestQuestion(ctx context.Context, moderatorID, applicantID int64) (int64, error) {
	req, err := s.reqRepo.GetLatestByApplicant(ctx, applicantID)
	if errors.Is(err, repository.ErrNotFound) {
		s.tellModerator(ctx, requestMissingText(applicantID))
		return 0, ErrRequestNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load join request: %w", err)
	}

	open := len(s.registry.ForModerator(moderatorID))
	var ref gateway.MessageRef
	_, err = s.caller.call(ctx, "sendMessage", func() error {
		var err error
		ref, err = s.gw.SendMessage(ctx, s.settings.ModeratorChatID, questionPrompt(req, open),
			s.settings.moderatorOptions(cancelAskKeyboard(applicantID)))
		return err
	})
	if err != nil {
		s.reporter.Report(ctx, Incident{Action: "ask question", ApplicantID: applicantID, Err: err})
		return 0, err
	}
	if ref.MessageID == 0 {
		return 0, fmt.Errorf("question prompt for applicant %d was not delivered", applicantID)
	}

	s.registry.Add(domain.PendingQuestion{
		ApplicantID:     applicantID,
		ModeratorID:     moderatorID,
		PromptMessageID: ref.MessageID,
		CreatedAt:       s.clock.Now(),
	}, s.expire)
	logger.WithApplicant(applicantID).Info("Question requested", "moderator_id", moderatorID, "prompt_id", ref.MessageID)
	return ref.MessageID, nil
}

// expire runs on the registry timer once a question went unanswered.
func (s *questionService) expire(q domain.PendingQuestion) {
	metrics.QuestionsExpired.Inc()
	logger.WithApplicant(q.ApplicantID).Info("Question timed out", "moderator_id", q.ModeratorID)

	ctx := context.Background()
	s.clearPrompts(ctx, []domain.PendingQuestion{q})
	_, err := s.caller.call(ctx, "sendMessage", func() error {
		_, err := s.gw.SendMessage(ctx, s.settings.ModeratorChatID, questionExpiredText(q), gateway.SendOptions{
			ThreadID:         s.settings.ModeratorThreadID,
			ReplyToMessageID: q.PromptMessageID,
		})
		return err
	})
	if err != nil {
		logger.Warn("Failed to send question timeout notice", "applicant_id", q.ApplicantID, "error", err)
	}
}

func (s *questionService) MatchReply(moderatorID int64, text string) ReplyMatch {
	questions := s.registry.ForModerator(moderatorID)
	if len(questions) == 0 {
		return ReplyMatch{Outcome: MatchNone}
	}

	var open []int64
	seen := make(map[int64]bool)
	for _, q := range questions {
		if !seen[q.ApplicantID] {
			seen[q.ApplicantID] = true
			open = append(open, q.ApplicantID)
		}
	}

	text = strings.TrimSpace(text)
	match := ReplyMatch{Open: open}
	if m := applicantPrefix.FindStringSubmatch(text); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		switch {
		case err == nil && seen[id]:
			match.ApplicantID = id
			text = text[len(m[0]):]
		case len(open) > 1:
			match.Outcome = MatchUnknownID
			match.ApplicantID = id
			return match
		default:
			// A single open question takes the reply verbatim.
			match.ApplicantID = open[0]
		}
	} else if len(open) > 1 {
		match.Outcome = MatchAmbiguous
		return match
	} else {
		match.ApplicantID = open[0]
	}

	match.Text = strings.TrimSpace(text)
	switch {
	case match.Text == cancelCommand:
		match.Outcome = MatchCancel
	case match.Text == "":
		match.Outcome = MatchEmpty
	default:
		match.Outcome = MatchFound
	}
	return match
}

func (s *questionService) HandleModeratorReply(ctx context.Context, moderatorID int64, text string) (bool, error) {
	match := s.MatchReply(moderatorID, text)
	switch match.Outcome {
	case MatchNone:
		return false, nil
	case MatchAmbiguous:
		s.tellModerator(ctx, ambiguousReplyText(match.Open))
	case MatchUnknownID:
		s.tellModerator(ctx, unknownIDReplyText(match.ApplicantID, match.Open))
	case MatchEmpty:
		s.tellModerator(ctx, emptyReplyText())
	case MatchCancel:
		taken := s.registry.Take(moderatorID, match.ApplicantID)
		s.clearPrompts(ctx, taken)
		s.tellModerator(ctx, questionCancelledText(match.ApplicantID))
	case MatchFound:
		_, err := s.DeliverQuestion(ctx, moderatorID, match.ApplicantID, match.Text)
		return true, err
	}
	return true, nil
}

func (s *questionService) DeliverQuestion(ctx context.Context, moderatorID, applicantID int64, text string) (*QuestionDelivery, error) {
	req, err := s.reqRepo.GetLatestByApplicant(ctx, applicantID)
	if errors.Is(err, repository.ErrNotFound) {
		s.clearPrompts(ctx, s.registry.Take(moderatorID, applicantID))
		s.tellModerator(ctx, requestMissingText(applicantID))
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load join request: %w", err)
	}

	kind, err := s.caller.call(ctx, "sendMessage", func() error {
		_, err := s.gw.SendMessage(ctx, applicantID, questionToApplicant(text), gateway.SendOptions{})
		return err
	})
	if err != nil {
		s.reporter.Report(ctx, Incident{Action: "deliver question", ApplicantID: applicantID, Err: err})
		s.tellModerator(ctx, questionFailedText(applicantID, err))
		return nil, err
	}

	s.clearPrompts(ctx, s.registry.Take(moderatorID, applicantID))
	if kind != gateway.KindNone {
		s.tellModerator(ctx, questionUndeliveredText(applicantID))
		return &QuestionDelivery{ApplicantUnreachable: true}, nil
	}

	reply := domain.Reply{Message: text, Sender: domain.ReplySenderAdmin, Timestamp: s.clock.Now()}
	if err := s.reqRepo.AppendReply(ctx, req.ID, reply); err != nil {
		logger.Warn("Failed to record question in transcript", "request_id", req.ID, "error", err)
	}
	s.tellModerator(ctx, questionSentText(applicantID))
	return &QuestionDelivery{Delivered: true}, nil
}

func (s *questionService) CancelQuestions(ctx context.Context, moderatorID, applicantID int64) int {
	taken := s.registry.Take(moderatorID, applicantID)
	if len(taken) > 0 {
		logger.WithApplicant(applicantID).Info("Questions cancelled", "moderator_id", moderatorID, "count", len(taken))
	}
	return len(taken)
}

// clearPrompts removes the cancel button from consumed question prompts.
func (s *questionService) clearPrompts(ctx context.Context, questions []domain.PendingQuestion) {
	for _, q := range questions {
		ref := gateway.MessageRef{ChatID: s.settings.ModeratorChatID, MessageID: q.PromptMessageID}
		_, err := s.caller.call(ctx, "editMessageReplyMarkup", func() error {
			return s.gw.EditMessageReplyMarkup(ctx, ref, nil)
		})
		if err != nil {
			logger.Warn("Failed to clear question prompt", "prompt_id", q.PromptMessageID, "error", err)
		}
	}
}

func (s *questionService) tellModerator(ctx context.Context, text string) {
	_, err := s.caller.call(ctx, "sendMessage", func() error {
		_, err := s.gw.SendMessage(ctx, s.settings.ModeratorChatID, text, s.settings.moderatorOptions(nil))
		return err
	})
	if err != nil {
		logger.Warn("Failed to message moderators", "error", err)
	}
}
