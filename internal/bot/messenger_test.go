package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const getMeBody = `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"alerts","username":"alertsbot"}}`

const rateLimitBody = `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 1","parameters":{"retry_after":1}}`

const sentMessageBody = `{"ok":true,"result":{"message_id":7,"chat":{"id":100},"date":1}}`

// telegramStub fakes the Bot API server; per-method handlers decide
// each call's response.
type telegramStub struct {
	photoCalls   atomic.Int32
	messageCalls atomic.Int32

	onSendPhoto   func(call int32) (int, string)
	onSendMessage func(call int32) (int, string)
}

func (s *telegramStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(getMeBody))
		case strings.HasSuffix(r.URL.Path, "/sendPhoto"):
			status, body := http.StatusOK, sentMessageBody
			if s.onSendPhoto != nil {
				status, body = s.onSendPhoto(s.photoCalls.Add(1))
			} else {
				s.photoCalls.Add(1)
			}
			w.WriteHeader(status)
			w.Write([]byte(body))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			status, body := http.StatusOK, sentMessageBody
			if s.onSendMessage != nil {
				status, body = s.onSendMessage(s.messageCalls.Add(1))
			} else {
				s.messageCalls.Add(1)
			}
			w.WriteHeader(status)
			w.Write([]byte(body))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
		}
	}
}

func newTestMessenger(t *testing.T, stub *telegramStub) *Messenger {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	botAPI, err := tgbotapi.NewBotAPIWithAPIEndpoint("test-token", srv.URL+"/bot%s/%s")
	require.NoError(t, err)
	return NewMessenger(botAPI)
}

func TestSendAlertPhotoRetriesAfterRateLimit(t *testing.T) {
	stub := &telegramStub{
		onSendPhoto: func(call int32) (int, string) {
			if call == 1 {
				return http.StatusTooManyRequests, rateLimitBody
			}
			return http.StatusOK, sentMessageBody
		},
	}
	m := newTestMessenger(t, stub)

	err := m.SendAlertPhoto(context.Background(), 100, "https://example.com/t.png", "caption", tgbotapi.InlineKeyboardMarkup{})
	require.NoError(t, err)

	// the throttled attempt was repeated as a photo, not downgraded
	assert.Equal(t, int32(2), stub.photoCalls.Load())
	assert.Equal(t, int32(0), stub.messageCalls.Load())
}

func TestSendAlertPhotoFallsBackToTextOnHardFailure(t *testing.T) {
	stub := &telegramStub{
		onSendPhoto: func(int32) (int, string) {
			return http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: wrong file identifier"}`
		},
	}
	m := newTestMessenger(t, stub)

	err := m.SendAlertPhoto(context.Background(), 100, "https://example.com/broken.png", "caption", tgbotapi.InlineKeyboardMarkup{})
	require.NoError(t, err)

	// a non-throttle failure is not retried; the alert lands as text
	assert.Equal(t, int32(1), stub.photoCalls.Load())
	assert.Equal(t, int32(1), stub.messageCalls.Load())
}

func TestSendAlertRetriesAfterRateLimit(t *testing.T) {
	stub := &telegramStub{
		onSendMessage: func(call int32) (int, string) {
			if call == 1 {
				return http.StatusTooManyRequests, rateLimitBody
			}
			return http.StatusOK, sentMessageBody
		},
	}
	m := newTestMessenger(t, stub)

	err := m.SendAlert(context.Background(), 100, "text", tgbotapi.InlineKeyboardMarkup{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), stub.messageCalls.Load())
}
