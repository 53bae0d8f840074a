package service

import (
	"context"
	"errors"
	"fmt"

	"joinguard/internal/clock"
	"joinguard/internal/domain"
	"joinguard/internal/gateway"
	"joinguard/internal/logger"
	"joinguard/internal/metrics"
	"joinguard/internal/repository"
)

const unreachableReason = "applicant unreachable: instructions not delivered"

type joinRequestService struct {
	reqRepo  repository.JoinRequestRepository
	banRepo  repository.BanRepository
	gw       gateway.Gateway
	bans     *BanCache
	reporter ErrorReporter
	clock    clock.Clock
	caller   gatewayCaller
	settings Settings
}

func NewJoinRequestService(
	reqRepo repository.JoinRequestRepository,
	banRepo repository.BanRepository,
	gw gateway.Gateway,
	bans *BanCache,
	reporter ErrorReporter,
	clk clock.Clock,
	settings Settings,
) JoinRequestService {
	return &joinRequestService{
		reqRepo:  reqRepo,
		banRepo:  banRepo,
		gw:       gw,
		bans:     bans,
		reporter: reporter,
		clock:    clk,
		caller:   gatewayCaller{clock: clk},
		settings: settings,
	}
}

func (s *joinRequestService) Create(ctx context.Context, profile domain.ApplicantProfile) (*domain.JoinRequest, error) {
	log := logger.WithApplicant(profile.UserID)

	banned, err := s.isBanned(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}
	if banned {
		_, err := s.caller.call(ctx, "declineChatJoinRequest", func() error {
			return s.gw.DeclineJoinRequest(ctx, s.settings.CommunityChatID, profile.UserID)
		})
		if err != nil {
			s.reporter.Report(ctx, Incident{Action: "decline banned applicant", ApplicantID: profile.UserID, Err: err})
		}
		return nil, ErrApplicantBanned
	}

	existing, err := s.latest(ctx, profile.UserID)
	if err != nil && !errors.Is(err, ErrRequestNotFound) {
		return nil, err
	}
	if existing != nil && existing.Status == domain.JoinRequestStatusPending {
		log.Info("Join request already pending", "request_id", existing.ID)
		return existing, nil
	}

	req := domain.NewJoinRequest(profile, s.clock.Now())
	if err := s.reqRepo.Create(ctx, req); err != nil {
		if errors.Is(err, repository.ErrDuplicatePending) {
			return s.latest(ctx, profile.UserID)
		}
		return nil, fmt.Errorf("failed to create join request: %w", err)
	}
	metrics.JoinRequestsCreated.Inc()
	log.Info("Join request created", "request_id", req.ID)

	kind, err := s.caller.call(ctx, "sendMessage", func() error {
		_, err := s.gw.SendMessage(ctx, profile.UserID, greetingText(req, s.settings.Lifetime), gateway.SendOptions{})
		return err
	})
	if err != nil {
		s.reporter.Report(ctx, Incident{Action: "send greeting", ApplicantID: profile.UserID, Err: err})
	}
	notified := err == nil && kind == gateway.KindNone
	unreachable := kind == gateway.KindUserUnreachable
	reason := ""
	if unreachable {
		reason = unreachableReason
		req.Reason = reason
	}
	req.Audit.ApplicantNotified = &notified
	if err := s.reqRepo.UpdateDelivery(ctx, req.ID, notified, reason); err != nil {
		log.Warn("Failed to record greeting delivery", "error", err)
	}

	var ref gateway.MessageRef
	_, err = s.caller.call(ctx, "sendMessage", func() error {
		var err error
		ref, err = s.gw.SendMessage(ctx, s.settings.ModeratorChatID, joinNotificationText(req, unreachable),
			s.settings.moderatorOptions(JoinRequestKeyboard(profile.UserID)))
		return err
	})
	switch {
	case err != nil:
		s.reporter.Report(ctx, Incident{Action: "notify moderators", ApplicantID: profile.UserID, Err: err})
	case ref.MessageID != 0:
		set, err := s.reqRepo.SetModeratorMessage(ctx, req.ID, ref.MessageID)
		if err != nil {
			log.Warn("Failed to record moderator message", "error", err)
		} else if set {
			req.ModeratorMessageID = &ref.MessageID
		}
	}

	return req, nil
}

func (s *joinRequestService) Approve(ctx context.Context, applicantID, moderatorID int64) (*TransitionResult, error) {
	req, err := s.latest(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.JoinRequestStatusPending {
		return unchanged(req), nil
	}

	kind, err := s.caller.call(ctx, "approveChatJoinRequest", func() error {
		return s.gw.ApproveJoinRequest(ctx, s.settings.CommunityChatID, applicantID)
	})
	if err != nil {
		s.reporter.Report(ctx, Incident{Action: "approve", ApplicantID: applicantID, Err: err})
		return nil, err
	}

	return s.finish(ctx, req, transition{
		status:      domain.JoinRequestStatusApproved,
		moderatorID: &moderatorID,
		kind:        kind,
		platform:    true,
		notice:      approvedNotice(),
	})
}

func (s *joinRequestService) Reject(ctx context.Context, applicantID, moderatorID int64) (*TransitionResult, error) {
	req, err := s.latest(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.JoinRequestStatusPending {
		return unchanged(req), nil
	}

	kind, err := s.decline(ctx, applicantID)
	if err != nil {
		s.reporter.Report(ctx, Incident{Action: "reject", ApplicantID: applicantID, Err: err})
		return nil, err
	}

	return s.finish(ctx, req, transition{
		status:      domain.JoinRequestStatusRejected,
		reason:      "rejected by moderator" + platformNote(kind),
		moderatorID: &moderatorID,
		kind:        kind,
		platform:    true,
		notice:      rejectedNotice(),
	})
}

func (s *joinRequestService) Expire(ctx context.Context, applicantID int64) (*TransitionResult, error) {
	req, err := s.latest(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.JoinRequestStatusPending {
		return unchanged(req), nil
	}

	kind, err := s.decline(ctx, applicantID)
	if err != nil {
		s.reporter.Report(ctx, Incident{Action: "expire", ApplicantID: applicantID, Err: err})
		return nil, err
	}

	return s.finish(ctx, req, transition{
		status:   domain.JoinRequestStatusExpired,
		reason:   "auto-expired" + platformNote(kind),
		kind:     kind,
		platform: true,
		notice:   expiredNotice(s.settings.Lifetime),
	})
}

func (s *joinRequestService) Resolve(ctx context.Context, applicantID int64, memberStatus gateway.MemberStatus) (*TransitionResult, error) {
	req, err := s.latest(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.JoinRequestStatusPending {
		return unchanged(req), nil
	}

	return s.finish(ctx, req, transition{
		status: domain.JoinRequestStatusExpired,
		reason: fmt.Sprintf("already resolved on platform (status: %s)", memberStatus),
	})
}

func (s *joinRequestService) Ban(ctx context.Context, applicantID, moderatorID int64, reason string) (*TransitionResult, error) {
	req, err := s.latest(ctx, applicantID)
	if err != nil && !errors.Is(err, ErrRequestNotFound) {
		return nil, err
	}

	banned, err := s.isBanned(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if banned {
		if req != nil && req.Status == domain.JoinRequestStatusPending {
			return s.resumeBan(ctx, req, moderatorID, reason)
		}
		return &TransitionResult{Request: req, Status: domain.JoinRequestStatusBanned}, nil
	}

	declineKind, err := s.decline(ctx, applicantID)
	if err != nil {
		s.reporter.Report(ctx, Incident{Action: "ban", ApplicantID: applicantID, Err: err})
		return nil, err
	}
	banKind, err := s.caller.call(ctx, "banChatMember", func() error {
		return s.gw.BanMember(ctx, s.settings.CommunityChatID, applicantID)
	})
	if err != nil {
		s.reporter.Report(ctx, Incident{Action: "ban", ApplicantID: applicantID, Err: err})
		return nil, err
	}
	kind := banKind
	if kind == gateway.KindNone {
		kind = declineKind
	}

	ban := &domain.Ban{
		ApplicantID: applicantID,
		ModeratorID: moderatorID,
		Reason:      reason,
		BannedAt:    s.clock.Now(),
	}
	if err := s.banRepo.Create(ctx, ban); err != nil {
		return nil, fmt.Errorf("failed to record ban: %w", err)
	}
	s.bans.Add(applicantID)
	logger.WithApplicant(applicantID).Info("Applicant banned", "moderator_id", moderatorID, "reason", reason)

	if req != nil && req.Status == domain.JoinRequestStatusPending {
		res, err := s.finish(ctx, req, transition{
			status:      domain.JoinRequestStatusBanned,
			reason:      reason,
			moderatorID: &moderatorID,
			kind:        kind,
			platform:    true,
			notice:      bannedNotice(),
		})
		if err != nil || res.Applied {
			return res, err
		}
	}

	return &TransitionResult{
		Request:           req,
		Status:            domain.JoinRequestStatusBanned,
		Applied:           true,
		PlatformOutcome:   kind,
		ApplicantNotified: s.sendNotice(ctx, applicantID, bannedNotice()),
	}, nil
}

// resumeBan closes a request left pending by a ban whose status update did
// not go through. The stored ban entry supplies the audit fields.
func (s *joinRequestService) resumeBan(ctx context.Context, req *domain.JoinRequest, moderatorID int64, reason string) (*TransitionResult, error) {
	ban, err := s.banRepo.GetByApplicant(ctx, req.ApplicantID)
	switch {
	case err == nil:
		moderatorID, reason = ban.ModeratorID, ban.Reason
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to load ban: %w", err)
	}
	logger.WithApplicant(req.ApplicantID).Info("Completing ban of pending request", "request_id", req.ID)

	return s.finish(ctx, req, transition{
		status:      domain.JoinRequestStatusBanned,
		reason:      reason,
		moderatorID: &moderatorID,
		notice:      bannedNotice(),
	})
}

func (s *joinRequestService) HandleApplicantMessage(ctx context.Context, applicantID int64, content domain.ApplicantContent) (bool, error) {
	banned, err := s.isBanned(ctx, applicantID)
	if err != nil {
		return false, err
	}
	if banned {
		metrics.SuppressedMessages.Inc()
		logger.WithApplicant(applicantID).Debug("Dropped message from banned applicant")
		return true, nil
	}

	req, err := s.latest(ctx, applicantID)
	if errors.Is(err, ErrRequestNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	switch req.Status {
	case domain.JoinRequestStatusRejected:
		s.sendNotice(ctx, applicantID, reapplyNotice())
		return true, nil
	case domain.JoinRequestStatusPending:
	default:
		return false, nil
	}

	reply := domain.Reply{Message: content.Summary(), Sender: domain.ReplySenderUser, Timestamp: s.clock.Now()}
	if err := s.reqRepo.AppendReply(ctx, req.ID, reply); err != nil {
		return true, fmt.Errorf("failed to append reply: %w", err)
	}

	if err := s.forward(ctx, req, content); err != nil {
		s.reporter.Report(ctx, Incident{Action: "forward applicant message", ApplicantID: applicantID, Err: err})
		return true, err
	}
	return true, nil
}

// forward relays applicant content to the moderator chat. Media is sent by
// file reference with the applicant header as caption; video notes carry no
// caption so the header goes out as a separate text first.
func (s *joinRequestService) forward(ctx context.Context, req *domain.JoinRequest, content domain.ApplicantContent) error {
	header := applicantMessageHeader(req)
	opts := s.settings.moderatorOptions(ApplicantReplyKeyboard(req.ApplicantID))

	switch c := content.(type) {
	case domain.TextContent:
		_, err := s.caller.call(ctx, "sendMessage", func() error {
			_, err := s.gw.SendMessage(ctx, s.settings.ModeratorChatID, header+"\n\n"+c.Text, opts)
			return err
		})
		return err
	case domain.MediaContent:
		media := gateway.Media{Kind: c.Kind, FileID: c.FileID, Caption: header}
		if c.Caption != "" {
			media.Caption = header + "\n\n" + c.Caption
		}
		if !c.Kind.SupportsCaption() {
			_, err := s.caller.call(ctx, "sendMessage", func() error {
				_, err := s.gw.SendMessage(ctx, s.settings.ModeratorChatID, header, s.settings.moderatorOptions(nil))
				return err
			})
			if err != nil {
				return err
			}
			media.Caption = ""
		}
		_, err := s.caller.call(ctx, "sendMedia", func() error {
			_, err := s.gw.SendMedia(ctx, s.settings.ModeratorChatID, media, opts)
			return err
		})
		return err
	}
	return fmt.Errorf("unsupported applicant content %T", content)
}

type transition struct {
	status      domain.JoinRequestStatus
	reason      string
	moderatorID *int64
	kind        gateway.ErrorKind
	// platform is set when a membership call was made and its outcome is audited.
	platform bool
	notice   string
}

// finish applies a transition through the store's compare-and-swap, then
// notifies the applicant and settles the moderator notification. Losing the
// race to another writer yields an unapplied result with the stored status.
func (s *joinRequestService) finish(ctx context.Context, req *domain.JoinRequest, t transition) (*TransitionResult, error) {
	unreachable := req.Reason == unreachableReason
	update := repository.StatusUpdate{
		Status:      t.status,
		Reason:      t.reason,
		ModeratorID: t.moderatorID,
		UpdatedAt:   s.clock.Now(),
	}
	if t.platform {
		success := t.kind == gateway.KindNone || t.kind == gateway.KindAlreadyProcessed
		update.PlatformOutcome = t.kind.String()
		update.PlatformSuccess = &success
	}

	if err := s.reqRepo.UpdateStatus(ctx, req.ID, update); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			current, err := s.latest(ctx, req.ApplicantID)
			if err != nil {
				return nil, err
			}
			return unchanged(current), nil
		}
		return nil, fmt.Errorf("failed to update join request: %w", err)
	}

	req.Status = t.status
	if t.reason != "" {
		req.Reason = t.reason
	}
	req.UpdatedAt = update.UpdatedAt
	req.Audit.ModeratorID = t.moderatorID
	req.Audit.PlatformOutcome = update.PlatformOutcome
	req.Audit.PlatformSuccess = update.PlatformSuccess
	metrics.JoinRequestTransitions.WithLabelValues(string(t.status)).Inc()
	logger.WithApplicant(req.ApplicantID).Info("Join request transitioned",
		"request_id", req.ID, "status", t.status, "platform_outcome", t.kind.String())

	res := &TransitionResult{
		Request:         req,
		Status:          t.status,
		Applied:         true,
		PlatformOutcome: t.kind,
	}
	if t.notice != "" {
		res.ApplicantNotified = s.sendNotice(ctx, req.ApplicantID, t.notice)
		req.Audit.ApplicantNotified = &res.ApplicantNotified
		if err := s.reqRepo.UpdateDelivery(ctx, req.ID, res.ApplicantNotified, ""); err != nil {
			logger.Warn("Failed to record notice delivery", "request_id", req.ID, "error", err)
		}
	}
	s.settleModeratorMessage(ctx, req, unreachable)
	return res, nil
}

// sendNotice is best effort and reports whether the applicant got the message.
func (s *joinRequestService) sendNotice(ctx context.Context, applicantID int64, text string) bool {
	kind, err := s.caller.call(ctx, "sendMessage", func() error {
		_, err := s.gw.SendMessage(ctx, applicantID, text, gateway.SendOptions{})
		return err
	})
	if err != nil {
		logger.WithApplicant(applicantID).Warn("Failed to notify applicant", "error", err)
		return false
	}
	return kind == gateway.KindNone
}

// settleModeratorMessage rewrites the join notification with the final
// status. A notification whose own button triggered the transition is left
// to the moderation handler, which appends the outcome itself.
func (s *joinRequestService) settleModeratorMessage(ctx context.Context, req *domain.JoinRequest, unreachable bool) {
	if req.ModeratorMessageID == nil {
		return
	}
	ref := gateway.MessageRef{ChatID: s.settings.ModeratorChatID, MessageID: *req.ModeratorMessageID}
	acted, _ := actedMessageFrom(ctx)
	if acted.ref == ref {
		return
	}

	text := appendLine(joinNotificationText(req, unreachable), settledLine(req, acted.moderatorName))
	_, err := s.caller.call(ctx, "editMessageText", func() error {
		return s.gw.EditMessageText(ctx, ref, text, settledKeyboard(req.Status, req.ApplicantID))
	})
	if err != nil {
		logger.Warn("Failed to update moderator notification", "request_id", req.ID, "error", err)
	}
}

func (s *joinRequestService) decline(ctx context.Context, applicantID int64) (gateway.ErrorKind, error) {
	return s.caller.call(ctx, "declineChatJoinRequest", func() error {
		return s.gw.DeclineJoinRequest(ctx, s.settings.CommunityChatID, applicantID)
	})
}

func (s *joinRequestService) latest(ctx context.Context, applicantID int64) (*domain.JoinRequest, error) {
	req, err := s.reqRepo.GetLatestByApplicant(ctx, applicantID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load join request: %w", err)
	}
	return req, nil
}

func (s *joinRequestService) isBanned(ctx context.Context, applicantID int64) (bool, error) {
	if s.bans.Contains(applicantID) {
		return true, nil
	}
	banned, err := s.banRepo.IsBanned(ctx, applicantID)
	if err != nil {
		return false, fmt.Errorf("failed to check ban list: %w", err)
	}
	if banned {
		s.bans.Add(applicantID)
	}
	return banned, nil
}

func unchanged(req *domain.JoinRequest) *TransitionResult {
	return &TransitionResult{Request: req, Status: req.Status}
}

func platformNote(kind gateway.ErrorKind) string {
	if kind == gateway.KindNone {
		return ""
	}
	return "; declined on platform: " + kind.String()
}
