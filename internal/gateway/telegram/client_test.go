package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"joinguard/internal/domain"
	"joinguard/internal/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Method  string
	Payload map[string]any
}

type fakeBotAPI struct {
	mu        sync.Mutex
	calls     []recordedCall
	responses map[string]string
}

func newFakeBotAPI(t *testing.T, responses map[string]string) (*fakeBotAPI, *Client) {
	t.Helper()
	api := &fakeBotAPI{responses: responses}
	server := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(server.Close)

	client := NewClient(Config{Token: "TOKEN", APIURL: server.URL, Timeout: 5 * time.Second})
	return api, client
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/botTOKEN/")
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{Method: method, Payload: payload})
	body, ok := f.responses[method]
	f.mu.Unlock()

	if !ok {
		body = `{"ok":true,"result":true}`
	}
	var status apiResponse
	_ = json.Unmarshal([]byte(body), &status)
	if !status.OK && status.ErrorCode != 0 {
		w.WriteHeader(status.ErrorCode)
	}
	w.Write([]byte(body))
}

func (f *fakeBotAPI) last() recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func TestClient_SendMessage(t *testing.T) {
	api, client := newFakeBotAPI(t, map[string]string{
		"sendMessage": `{"ok":true,"result":{"message_id":77,"chat":{"id":-100,"type":"supergroup"}}}`,
	})

	ref, err := client.SendMessage(context.Background(), -100, "hello", gateway.SendOptions{
		ThreadID: 5,
		Keyboard: gateway.Keyboard{{{Text: "Approve", Data: "approve:42"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, gateway.MessageRef{ChatID: -100, MessageID: 77}, ref)

	call := api.last()
	assert.Equal(t, "sendMessage", call.Method)
	assert.Equal(t, "hello", call.Payload["text"])
	assert.Equal(t, float64(5), call.Payload["message_thread_id"])
	markup := call.Payload["reply_markup"].(map[string]any)
	rows := markup["inline_keyboard"].([]any)
	button := rows[0].([]any)[0].(map[string]any)
	assert.Equal(t, "approve:42", button["callback_data"])
}

func TestClient_SendMedia(t *testing.T) {
	api, client := newFakeBotAPI(t, map[string]string{
		"sendVideoNote": `{"ok":true,"result":{"message_id":8,"chat":{"id":-100,"type":"supergroup"}}}`,
		"sendPhoto":     `{"ok":true,"result":{"message_id":9,"chat":{"id":-100,"type":"supergroup"}}}`,
	})
	ctx := context.Background()

	_, err := client.SendMedia(ctx, -100, gateway.Media{Kind: domain.MediaKindVideoNote, FileID: "vn", Caption: "ignored"}, gateway.SendOptions{})
	require.NoError(t, err)
	call := api.last()
	assert.Equal(t, "vn", call.Payload["video_note"])
	assert.NotContains(t, call.Payload, "caption")

	_, err = client.SendMedia(ctx, -100, gateway.Media{Kind: domain.MediaKindPhoto, FileID: "ph", Caption: "look"}, gateway.SendOptions{})
	require.NoError(t, err)
	call = api.last()
	assert.Equal(t, "ph", call.Payload["photo"])
	assert.Equal(t, "look", call.Payload["caption"])
}

func TestClient_EditClearsKeyboard(t *testing.T) {
	api, client := newFakeBotAPI(t, nil)

	err := client.EditMessageReplyMarkup(context.Background(), gateway.MessageRef{ChatID: -100, MessageID: 3}, nil)
	require.NoError(t, err)

	markup := api.last().Payload["reply_markup"].(map[string]any)
	assert.Empty(t, markup["inline_keyboard"])
}

func TestClient_GetMemberStatus(t *testing.T) {
	_, client := newFakeBotAPI(t, map[string]string{
		"getChatMember": `{"ok":true,"result":{"status":"left","user":{"id":42}}}`,
	})

	status, err := client.GetMemberStatus(context.Background(), -100, 42)
	require.NoError(t, err)
	assert.Equal(t, gateway.MemberStatusLeft, status)
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		kind       gateway.ErrorKind
		retryAfter time.Duration
	}{
		{"Blocked", `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`, gateway.KindUserUnreachable, 0},
		{"CannotInitiate", `{"ok":false,"error_code":403,"description":"Forbidden: bot can't initiate conversation with a user"}`, gateway.KindUserUnreachable, 0},
		{"RequesterMissing", `{"ok":false,"error_code":400,"description":"Bad Request: HIDE_REQUESTER_MISSING"}`, gateway.KindNotFound, 0},
		{"AlreadyParticipant", `{"ok":false,"error_code":400,"description":"Bad Request: USER_ALREADY_PARTICIPANT"}`, gateway.KindAlreadyProcessed, 0},
		{"NotModified", `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`, gateway.KindAlreadyProcessed, 0},
		{"QueryTooOld", `{"ok":false,"error_code":400,"description":"Bad Request: query is too old and response timeout expired or query ID is invalid"}`, gateway.KindCallbackExpired, 0},
		{"RateLimited", `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 7","parameters":{"retry_after":7}}`, gateway.KindRateLimited, 7 * time.Second},
		{"Other", `{"ok":false,"error_code":400,"description":"Bad Request: something odd"}`, gateway.KindUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newFakeBotAPI(t, map[string]string{"declineChatJoinRequest": tt.response})

			err := client.DeclineJoinRequest(context.Background(), -100, 42)
			require.Error(t, err)
			assert.Equal(t, tt.kind, gateway.KindOf(err))
			assert.Equal(t, tt.retryAfter, gateway.RetryAfterOf(err))
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	client := NewClient(Config{Token: "TOKEN", APIURL: "http://127.0.0.1:1", Timeout: time.Second})

	err := client.ApproveJoinRequest(context.Background(), -100, 42)
	require.Error(t, err)
	assert.Equal(t, gateway.KindUnknown, gateway.KindOf(err))
}

func TestPoller_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api, client := newFakeBotAPI(t, map[string]string{
		"getUpdates": `{"ok":true,"result":[{"update_id":10,"message":{"message_id":1,"chat":{"id":42,"type":"private"},"text":"hi"}},{"update_id":11,"chat_join_request":{"chat":{"id":-100,"type":"supergroup"},"from":{"id":42,"first_name":"Ann"},"date":1}}]}`,
	})

	var got []Update
	NewPoller(client, time.Second).Run(ctx, func(ctx context.Context, u Update) {
		got = append(got, u)
		if len(got) == 2 {
			cancel()
		}
	})

	require.Len(t, got, 2)
	assert.Equal(t, "hi", got[0].Message.Text)
	assert.Equal(t, int64(42), got[1].ChatJoinRequest.From.ID)
	assert.Equal(t, "getUpdates", api.last().Method)
}

func TestMessage_ApplicantContent(t *testing.T) {
	msg := &Message{Photo: []PhotoSize{{FileID: "small"}, {FileID: "large"}}, Caption: "wheel"}
	content, ok := msg.ApplicantContent()
	require.True(t, ok)
	assert.Equal(t, domain.MediaContent{Kind: domain.MediaKindPhoto, FileID: "large", Caption: "wheel"}, content)

	content, ok = (&Message{Text: "hello"}).ApplicantContent()
	require.True(t, ok)
	assert.Equal(t, domain.TextContent{Text: "hello"}, content)

	_, ok = (&Message{}).ApplicantContent()
	assert.False(t, ok)
}

func TestMessage_Keyboard(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"message_id":5,"chat":{"id":-100,"type":"supergroup"},"text":"x",
		"reply_markup":{"inline_keyboard":[[{"text":"✅ Approve","callback_data":"approve:42"},{"text":"❌ Reject","callback_data":"reject:42"}]]}}`), &msg))

	assert.Equal(t, gateway.Keyboard{{
		{Text: "✅ Approve", Data: "approve:42"},
		{Text: "❌ Reject", Data: "reject:42"},
	}}, msg.Keyboard())
	assert.Nil(t, (&Message{}).Keyboard())
}
