package telegram_test

import (
	"context"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"notico/internal/common"
	"notico/internal/domain/dispatch"
	tginfra "notico/internal/infra/telegram"
	"notico/internal/service/telegram"
	"notico/internal/testsupport"
)

type fakeSender struct {
	ready bool

	mu   sync.Mutex
	sent []*tginfra.SendMessagePayload
}

func (f *fakeSender) Initialized() bool { return f.ready }

func (f *fakeSender) SendMessage(ctx context.Context, payload *tginfra.SendMessagePayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return "42", nil
}

func newManager(t *testing.T, sender *fakeSender) (*telegram.Manager, *testsupport.MemTemplateStore) {
	t.Helper()

	store := testsupport.NewMemTemplateStore()
	validate := validator.New(validator.WithRequiredStructEnabled())

	tm, err := telegram.NewTemplateManager(store, validate, true)
	require.NoError(t, err)

	return telegram.NewManager(tm, sender, 2, testsupport.Logger()), store
}

func TestManagerSend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("plain body uses markdown parse mode", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{ready: true}
		m, store := newManager(t, sender)
		require.NoError(t, store.Put(ctx, "telegram/template/alert.json",
			[]byte(`{"body":"Deploy {{version}} finished"}`)))

		result, err := m.Send(ctx, &dispatch.SendRequest{
			TemplateCode:        "alert",
			PersonalizedContext: map[string]dispatch.Context{"1001": {"version": "v1.2"}},
		})
		require.NoError(t, err)
		require.Equal(t, dispatch.Sent("42"), result["1001"])

		require.Len(t, sender.sent, 1)
		payload := sender.sent[0]
		require.Equal(t, "1001", payload.ChatID)
		require.Equal(t, "Deploy v1.2 finished", payload.Text)
		require.Equal(t, "MarkdownV2", payload.ParseMode)
		require.NotNil(t, payload.LinkPreviewOptions)
		require.True(t, payload.LinkPreviewOptions.IsDisabled)
	})

	t.Run("entities suppress parse mode", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{ready: true}
		m, store := newManager(t, sender)
		require.NoError(t, store.Put(ctx, "telegram/template/fancy.json",
			[]byte(`{"body":"bold text","entities":[{"type":"bold","offset":0,"length":4}]}`)))

		_, err := m.Send(ctx, &dispatch.SendRequest{
			TemplateCode:        "fancy",
			PersonalizedContext: map[string]dispatch.Context{"1001": {}},
		})
		require.NoError(t, err)

		payload := sender.sent[0]
		require.Empty(t, payload.ParseMode)
		require.Len(t, payload.Entities, 1)
		require.Equal(t, "bold", payload.Entities[0].Type)
	})

	t.Run("buttons become an inline keyboard", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{ready: true}
		m, store := newManager(t, sender)
		require.NoError(t, store.Put(ctx, "telegram/template/cta.json",
			[]byte(`{"body":"Order ready","buttons":[[{"text":"Track","url":"https://acme.io/track"}]]}`)))

		_, err := m.Send(ctx, &dispatch.SendRequest{
			TemplateCode:        "cta",
			PersonalizedContext: map[string]dispatch.Context{"1001": {}},
		})
		require.NoError(t, err)

		markup := sender.sent[0].ReplyMarkup
		require.NotNil(t, markup)
		require.Len(t, markup.InlineKeyboard, 1)
		require.Equal(t, "Track", markup.InlineKeyboard[0][0].Text)
	})

	t.Run("unconfigured bot fails fast", func(t *testing.T) {
		t.Parallel()

		m, _ := newManager(t, &fakeSender{ready: false})
		_, err := m.Send(ctx, &dispatch.SendRequest{
			TemplateCode:        "alert",
			PersonalizedContext: map[string]dispatch.Context{"1001": {}},
		})
		var cfgErr *common.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("send raw is unsupported", func(t *testing.T) {
		t.Parallel()

		m, _ := newManager(t, &fakeSender{ready: true})
		_, err := m.SendRaw(ctx, &dispatch.RawSendRequest{
			TemplateCode:        "x",
			PersonalizedContent: map[string]dispatch.Context{"1001": {"content": "hi"}},
		})
		var unsupported *common.UnsupportedOperationError
		require.ErrorAs(t, err, &unsupported)
	})
}
