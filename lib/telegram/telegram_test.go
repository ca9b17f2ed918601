package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cdrwatch-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

// fakeBotApi implements just enough of the bot api surface for tests.
type fakeBotApi struct {
	mu sync.Mutex

	sent      []string
	failFirst int
	updates   string
}

func (f *fakeBotApi) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bottest-token/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failFirst > 0 {
			f.failFirst--
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"ok": false, "description": "Too Many Requests: retry after 1"}`)
			return
		}
		f.sent = append(f.sent, r.FormValue("text"))
		fmt.Fprint(w, `{"ok": true, "result": {"message_id": 1, "chat": {"id": -100}}}`)
	})
	mux.HandleFunc("/bottest-token/getMe", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok": true, "result": {"id": 42, "username": "cdrwatch_bot"}}`)
	})
	mux.HandleFunc("/bottest-token/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		fmt.Fprint(w, f.updates)
	})
	return mux
}

func (f *fakeBotApi) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.sent...)
}

func setup(t *testing.T, api *fakeBotApi) *Client {
	cleanup := telemetry.SetupForTesting(t, "test:telegram")
	t.Cleanup(cleanup)

	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)

	return NewClient(ClientOptions{
		Token:   "test-token",
		BaseUrl: server.URL,
	})
}

func TestSendMessage(t *testing.T) {
	api := &fakeBotApi{}
	client := setup(t, api)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	err := client.SendMessage(ctx, "-100", "hello")
	require.NoError(t, err)
	require.Equal(t, []string{"hello"}, api.sentMessages())
}

func TestSendMessageRetriesTransientFailure(t *testing.T) {
	api := &fakeBotApi{failFirst: 2}
	client := setup(t, api)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	err := client.SendMessage(ctx, "-100", "eventually")
	require.NoError(t, err)
	require.Equal(t, []string{"eventually"}, api.sentMessages())
}

func TestSendMessageExhaustsRetries(t *testing.T) {
	api := &fakeBotApi{failFirst: 100}
	client := setup(t, api)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	err := client.SendMessage(ctx, "-100", "never")
	require.Error(t, err)
	require.Empty(t, api.sentMessages())
}

func TestSendMessagePermanentFailure(t *testing.T) {
	mux := http.NewServeMux()
	calls := 0
	mux.HandleFunc("/bottest-token/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"ok": false, "description": "Bad Request: chat not found"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(ClientOptions{Token: "test-token", BaseUrl: server.URL})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	err := client.SendMessage(ctx, "-100", "nope")
	require.Error(t, err)
	// a rejected call must not burn the retry budget
	require.Equal(t, 1, calls)
}

func TestGetMe(t *testing.T) {
	api := &fakeBotApi{}
	client := setup(t, api)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	user, err := client.GetMe(ctx)
	require.NoError(t, err)
	require.Equal(t, "cdrwatch_bot", user.Username)
}

func TestGetUpdates(t *testing.T) {
	api := &fakeBotApi{updates: `{"ok": true, "result": [
		{"update_id": 7, "message": {"message_id": 1, "text": "/start", "chat": {"id": 55}}}
	]}`}
	client := setup(t, api)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	updates, err := client.GetUpdates(ctx, 0, time.Second)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.Equal(t, int64(7), updates[0].UpdateId)
	require.Equal(t, "/start", updates[0].Message.Text)
	require.Equal(t, int64(55), updates[0].Message.Chat.Id)
}
