package email_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"notico/internal/common"
	"notico/internal/domain/dispatch"
	emailinfra "notico/internal/infra/email"
	"notico/internal/service/email"
	"notico/internal/testsupport"
)

// fakeSender records every delivered message.
type fakeSender struct {
	ready   bool
	failFor map[string]bool

	mu   sync.Mutex
	sent []*emailinfra.Message
}

func (f *fakeSender) Initialized() bool { return f.ready }

func (f *fakeSender) Send(ctx context.Context, msg *emailinfra.Message) (string, error) {
	if f.failFor[msg.To] {
		return "", common.NewProviderError("email", "rejected", nil)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("id-%d", len(f.sent)), nil
}

func newManager(t *testing.T, sender *fakeSender) (*email.Manager, *testsupport.MemTemplateStore) {
	t.Helper()

	store := testsupport.NewMemTemplateStore()
	validate := validator.New(validator.WithRequiredStructEnabled())

	tm, err := email.NewTemplateManager(store, validate, true)
	require.NoError(t, err)

	return email.NewManager(tm, sender, 2, testsupport.Logger()), store
}

func putTemplate(t *testing.T, store *testsupport.MemTemplateStore, key, body string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), key, []byte(body)))
}

func TestManagerSend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	const welcome = `{"from":"no-reply@acme.io","title":"Hi {{name}}","body":"<p>Welcome {{name}}</p>"}`

	t.Run("delivers one message per recipient", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{ready: true}
		m, store := newManager(t, sender)
		putTemplate(t, store, "email/template/welcome.json", welcome)

		result, err := m.Send(ctx, &dispatch.SendRequest{
			TemplateCode: "welcome",
			PersonalizedContext: map[string]dispatch.Context{
				"a@x.io": {"name": "A"},
				"b@x.io": {"name": "B"},
			},
		})
		require.NoError(t, err)
		require.Len(t, result, 2)
		require.Equal(t, dispatch.OutcomeSent, result["a@x.io"].Status)
		require.Equal(t, dispatch.OutcomeSent, result["b@x.io"].Status)

		require.Len(t, sender.sent, 2)
		for _, msg := range sender.sent {
			// exactly one recipient per provider call
			require.NotContains(t, msg.To, ",")
			require.Equal(t, "no-reply@acme.io", msg.From)
		}
	})

	t.Run("renders per recipient context", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{ready: true}
		m, store := newManager(t, sender)
		putTemplate(t, store, "email/template/welcome.json", welcome)

		_, err := m.Send(ctx, &dispatch.SendRequest{
			TemplateCode:        "welcome",
			SharedContext:       dispatch.Context{"name": "fallback"},
			PersonalizedContext: map[string]dispatch.Context{"a@x.io": {"name": "Mina"}},
		})
		require.NoError(t, err)

		require.Len(t, sender.sent, 1)
		require.Equal(t, "Hi Mina", sender.sent[0].Subject)
		require.True(t, strings.Contains(sender.sent[0].HTML, "Welcome Mina"))
	})

	t.Run("failed recipient does not abort siblings", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{ready: true, failFor: map[string]bool{"b@x.io": true}}
		m, store := newManager(t, sender)
		putTemplate(t, store, "email/template/welcome.json", welcome)

		result, err := m.Send(ctx, &dispatch.SendRequest{
			TemplateCode: "welcome",
			PersonalizedContext: map[string]dispatch.Context{
				"a@x.io": {"name": "A"},
				"b@x.io": {"name": "B"},
			},
		})
		require.NoError(t, err)
		require.Equal(t, dispatch.OutcomeSent, result["a@x.io"].Status)
		require.Equal(t, dispatch.OutcomeFailed, result["b@x.io"].Status)
	})

	t.Run("missing template fails each recipient", func(t *testing.T) {
		t.Parallel()

		sender := &fakeSender{ready: true}
		m, _ := newManager(t, sender)

		result, err := m.Send(ctx, &dispatch.SendRequest{
			TemplateCode:        "missing",
			PersonalizedContext: map[string]dispatch.Context{"a@x.io": {}},
		})
		require.NoError(t, err)
		require.Equal(t, dispatch.OutcomeFailed, result["a@x.io"].Status)
	})

	t.Run("unconfigured sender fails fast", func(t *testing.T) {
		t.Parallel()

		m, _ := newManager(t, &fakeSender{ready: false})

		_, err := m.Send(ctx, &dispatch.SendRequest{
			TemplateCode:        "welcome",
			PersonalizedContext: map[string]dispatch.Context{"a@x.io": {}},
		})
		var cfgErr *common.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("send raw is unsupported", func(t *testing.T) {
		t.Parallel()

		m, _ := newManager(t, &fakeSender{ready: true})
		require.False(t, m.CanSendRaw())

		_, err := m.SendRaw(ctx, &dispatch.RawSendRequest{
			TemplateCode:        "x",
			PersonalizedContent: map[string]dispatch.Context{"a@x.io": {"content": "hi"}},
		})
		var unsupported *common.UnsupportedOperationError
		require.ErrorAs(t, err, &unsupported)
	})
}
