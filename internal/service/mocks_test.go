package service_test

import (
	"context"
	"sync"
	"time"

	"joinguard/internal/domain"
	"joinguard/internal/gateway"
	"joinguard/internal/repository"
	"joinguard/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockJoinRequestRepo
type MockJoinRequestRepo struct {
	mock.Mock
}

func (m *MockJoinRequestRepo) Create(ctx context.Context, req *domain.JoinRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}
func (m *MockJoinRequestRepo) GetLatestByApplicant(ctx context.Context, applicantID int64) (*domain.JoinRequest, error) {
	args := m.Called(ctx, applicantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.JoinRequest), args.Error(1)
}
func (m *MockJoinRequestRepo) UpdateStatus(ctx context.Context, id string, update repository.StatusUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}
func (m *MockJoinRequestRepo) UpdateDelivery(ctx context.Context, id string, notified bool, reason string) error {
	args := m.Called(ctx, id, notified, reason)
	return args.Error(0)
}
func (m *MockJoinRequestRepo) SetModeratorMessage(ctx context.Context, id string, messageID int64) (bool, error) {
	args := m.Called(ctx, id, messageID)
	return args.Bool(0), args.Error(1)
}
func (m *MockJoinRequestRepo) ListExpiredPending(ctx context.Context, createdBefore time.Time) ([]domain.JoinRequest, error) {
	args := m.Called(ctx, createdBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.JoinRequest), args.Error(1)
}
func (m *MockJoinRequestRepo) AppendReply(ctx context.Context, id string, reply domain.Reply) error {
	args := m.Called(ctx, id, reply)
	return args.Error(0)
}
func (m *MockJoinRequestRepo) CountByStatus(ctx context.Context) (map[domain.JoinRequestStatus]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.JoinRequestStatus]int), args.Error(1)
}

// MockBanRepo
type MockBanRepo struct {
	mock.Mock
}

func (m *MockBanRepo) Create(ctx context.Context, ban *domain.Ban) error {
	args := m.Called(ctx, ban)
	return args.Error(0)
}
func (m *MockBanRepo) IsBanned(ctx context.Context, applicantID int64) (bool, error) {
	args := m.Called(ctx, applicantID)
	return args.Bool(0), args.Error(1)
}
func (m *MockBanRepo) GetByApplicant(ctx context.Context, applicantID int64) (*domain.Ban, error) {
	args := m.Called(ctx, applicantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ban), args.Error(1)
}

// MockGateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}
func (m *MockGateway) DeclineJoinRequest(ctx context.Context, chatID, userID int64) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}
func (m *MockGateway) BanMember(ctx context.Context, chatID, userID int64) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}
func (m *MockGateway) GetMemberStatus(ctx context.Context, chatID, userID int64) (gateway.MemberStatus, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Get(0).(gateway.MemberStatus), args.Error(1)
}
func (m *MockGateway) SendMessage(ctx context.Context, chatID int64, text string, opts gateway.SendOptions) (gateway.MessageRef, error) {
	args := m.Called(ctx, chatID, text, opts)
	return args.Get(0).(gateway.MessageRef), args.Error(1)
}
func (m *MockGateway) SendMedia(ctx context.Context, chatID int64, media gateway.Media, opts gateway.SendOptions) (gateway.MessageRef, error) {
	args := m.Called(ctx, chatID, media, opts)
	return args.Get(0).(gateway.MessageRef), args.Error(1)
}
func (m *MockGateway) EditMessageText(ctx context.Context, ref gateway.MessageRef, text string, keyboard gateway.Keyboard) error {
	args := m.Called(ctx, ref, text, keyboard)
	return args.Error(0)
}
func (m *MockGateway) EditMessageCaption(ctx context.Context, ref gateway.MessageRef, caption string, keyboard gateway.Keyboard) error {
	args := m.Called(ctx, ref, caption, keyboard)
	return args.Error(0)
}
func (m *MockGateway) EditMessageReplyMarkup(ctx context.Context, ref gateway.MessageRef, keyboard gateway.Keyboard) error {
	args := m.Called(ctx, ref, keyboard)
	return args.Error(0)
}
func (m *MockGateway) AnswerCallback(ctx context.Context, callbackID, text string) error {
	args := m.Called(ctx, callbackID, text)
	return args.Error(0)
}

// recordingReporter collects incidents instead of posting them.
type recordingReporter struct {
	mu        sync.Mutex
	incidents []service.Incident
}

func (r *recordingReporter) Report(ctx context.Context, incident service.Incident) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incidents = append(r.incidents, incident)
}

func (r *recordingReporter) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, i := range r.incidents {
		out = append(out, i.Action)
	}
	return out
}

const (
	communityChat  int64 = -1001
	moderatorChat  int64 = -1002
	moderatorTopic int64 = 7
)

var testSettings = service.Settings{
	CommunityChatID:   communityChat,
	ModeratorChatID:   moderatorChat,
	ModeratorThreadID: moderatorTopic,
	Lifetime:          24 * time.Hour,
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func pendingRequest(applicantID int64) *domain.JoinRequest {
	return &domain.JoinRequest{
		ID:          "req-1",
		ApplicantID: applicantID,
		DisplayName: "Ann Lee",
		Username:    "ann",
		Status:      domain.JoinRequestStatusPending,
		Replies:     []domain.Reply{},
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
}

func gwErr(kind gateway.ErrorKind) error {
	return &gateway.Error{Kind: kind, Op: "test", Description: kind.String()}
}

// MockJoinRequestService
type MockJoinRequestService struct {
	mock.Mock
}

func (m *MockJoinRequestService) Create(ctx context.Context, profile domain.ApplicantProfile) (*domain.JoinRequest, error) {
	args := m.Called(ctx, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.JoinRequest), args.Error(1)
}
func (m *MockJoinRequestService) Approve(ctx context.Context, applicantID, moderatorID int64) (*service.TransitionResult, error) {
	args := m.Called(ctx, applicantID, moderatorID)
	return transitionResult(args)
}
func (m *MockJoinRequestService) Reject(ctx context.Context, applicantID, moderatorID int64) (*service.TransitionResult, error) {
	args := m.Called(ctx, applicantID, moderatorID)
	return transitionResult(args)
}
func (m *MockJoinRequestService) Expire(ctx context.Context, applicantID int64) (*service.TransitionResult, error) {
	args := m.Called(ctx, applicantID)
	return transitionResult(args)
}
func (m *MockJoinRequestService) Resolve(ctx context.Context, applicantID int64, memberStatus gateway.MemberStatus) (*service.TransitionResult, error) {
	args := m.Called(ctx, applicantID, memberStatus)
	return transitionResult(args)
}
func (m *MockJoinRequestService) Ban(ctx context.Context, applicantID, moderatorID int64, reason string) (*service.TransitionResult, error) {
	args := m.Called(ctx, applicantID, moderatorID, reason)
	return transitionResult(args)
}
func (m *MockJoinRequestService) HandleApplicantMessage(ctx context.Context, applicantID int64, content domain.ApplicantContent) (bool, error) {
	args := m.Called(ctx, applicantID, content)
	return args.Bool(0), args.Error(1)
}

func transitionResult(args mock.Arguments) (*service.TransitionResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TransitionResult), args.Error(1)
}

// MockQuestionService
type MockQuestionService struct {
	mock.Mock
}

func (m *MockQuestionService) RequestQuestion(ctx context.Context, moderatorID, applicantID int64) (int64, error) {
	args := m.Called(ctx, moderatorID, applicantID)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuestionService) MatchReply(moderatorID int64, text string) service.ReplyMatch {
	args := m.Called(moderatorID, text)
	return args.Get(0).(service.ReplyMatch)
}
func (m *MockQuestionService) HandleModeratorReply(ctx context.Context, moderatorID int64, text string) (bool, error) {
	args := m.Called(ctx, moderatorID, text)
	return args.Bool(0), args.Error(1)
}
func (m *MockQuestionService) DeliverQuestion(ctx context.Context, moderatorID, applicantID int64, text string) (*service.QuestionDelivery, error) {
	args := m.Called(ctx, moderatorID, applicantID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.QuestionDelivery), args.Error(1)
}
func (m *MockQuestionService) CancelQuestions(ctx context.Context, moderatorID, applicantID int64) int {
	args := m.Called(ctx, moderatorID, applicantID)
	return args.Int(0)
}
