package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"notico/internal/common"
	"notico/internal/infra/retry"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("bot-token", time.Second, retry.Config{Attempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	c.baseURL = srv.URL
	return c
}

func TestClientSendMessage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("posts to the bot endpoint and returns message id", func(t *testing.T) {
		t.Parallel()

		var gotPath string
		var gotPayload SendMessagePayload
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":4242}}`))
		}))

		id, err := c.SendMessage(ctx, &SendMessagePayload{ChatID: "1001", Text: "hello"})
		require.NoError(t, err)
		require.Equal(t, "4242", id)
		require.Equal(t, "/botbot-token/sendMessage", gotPath)
		require.Equal(t, "1001", gotPayload.ChatID)
	})

	t.Run("bot api error surfaces as ProviderError", func(t *testing.T) {
		t.Parallel()

		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
		}))

		_, err := c.SendMessage(ctx, &SendMessagePayload{ChatID: "missing", Text: "x"})

		var provErr *common.ProviderError
		require.ErrorAs(t, err, &provErr)
		require.Equal(t, "telegram", provErr.Provider)
		require.Contains(t, provErr.Error(), "chat not found")
	})

	t.Run("missing token fails fast", func(t *testing.T) {
		t.Parallel()

		c := NewClient("", time.Second, retry.Config{})
		require.False(t, c.Initialized())

		_, err := c.SendMessage(ctx, &SendMessagePayload{ChatID: "1001", Text: "x"})
		var cfgErr *common.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})
}
