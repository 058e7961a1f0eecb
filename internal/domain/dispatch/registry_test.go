package dispatch_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"notico/internal/domain/dispatch"
	"notico/internal/render"
)

// stubTemplateManager is the minimal TemplateManager for registry tests.
type stubTemplateManager struct {
	name        string
	initialized bool
}

func (s *stubTemplateManager) ServiceName() string { return s.name }
func (s *stubTemplateManager) Initialized() bool { return s.initialized }
func (s *stubTemplateManager) Delimiters() (string, string) {
	return render.DefaultDelimiterStart, render.DefaultDelimiterEnd
}
func (s *stubTemplateManager) ValidateTemplate(body any) error { return nil }
func (s *stubTemplateManager) List(ctx context.Context) ([]*dispatch.TemplateInfo, error) {
	return nil, nil
}
func (s *stubTemplateManager) Retrieve(ctx context.Context, code string) (*dispatch.TemplateInfo, error) {
	return nil, nil
}
func (s *stubTemplateManager) Create(ctx context.Context, code string, body any) (*dispatch.TemplateInfo, error) {
	return nil, nil
}
func (s *stubTemplateManager) Update(ctx context.Context, code string, body any) (*dispatch.TemplateInfo, error) {
	return nil, nil
}
func (s *stubTemplateManager) Delete(ctx context.Context, code string) error { return nil }
func (s *stubTemplateManager) Render(ctx context.Context, code string, rctx dispatch.Context, policy render.Policy) (any, error) {
	return nil, nil
}
func (s *stubTemplateManager) RenderHTML(ctx context.Context, code string, rctx dispatch.Context, policy render.Policy) (string, error) {
	return "", nil
}

// stubSendManager pairs with stubTemplateManager for registry tests.
type stubSendManager struct {
	tm     *stubTemplateManager
	result dispatch.SendResult
	err    error
}

func (s *stubSendManager) ServiceName() string { return s.tm.name }
func (s *stubSendManager) Initialized() bool { return s.tm.initialized }
func (s *stubSendManager) CanSendRaw() bool { return false }
func (s *stubSendManager) TemplateManager() dispatch.TemplateManager { return s.tm }
func (s *stubSendManager) Send(ctx context.Context, req *dispatch.SendRequest) (dispatch.SendResult, error) {
	return s.result, s.err
}
func (s *stubSendManager) SendRaw(ctx context.Context, req *dispatch.RawSendRequest) (dispatch.SendResult, error) {
	return nil, s.err
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	t.Run("registers template and send managers", func(t *testing.T) {
		t.Parallel()

		tm := &stubTemplateManager{name: "email", initialized: true}
		reg, err := dispatch.NewRegistry(
			dispatch.Registration{TemplateManager: tm, SendManager: &stubSendManager{tm: tm}},
			dispatch.Registration{TemplateManager: &stubTemplateManager{name: "push", initialized: true}},
		)
		require.NoError(t, err)

		gotTM, ok := reg.TemplateManager("email")
		require.True(t, ok)
		require.Equal(t, "email", gotTM.ServiceName())

		_, ok = reg.SendManager("email")
		require.True(t, ok)

		// push is template-only
		_, ok = reg.SendManager("push")
		require.False(t, ok)
	})

	t.Run("duplicate service name fails", func(t *testing.T) {
		t.Parallel()

		_, err := dispatch.NewRegistry(
			dispatch.Registration{TemplateManager: &stubTemplateManager{name: "email"}},
			dispatch.Registration{TemplateManager: &stubTemplateManager{name: "email"}},
		)
		require.Error(t, err)
		require.Contains(t, err.Error(), "already registered")
	})

	t.Run("missing template manager fails", func(t *testing.T) {
		t.Parallel()

		_, err := dispatch.NewRegistry(dispatch.Registration{})
		require.Error(t, err)
	})

	t.Run("mismatched send manager name fails", func(t *testing.T) {
		t.Parallel()

		_, err := dispatch.NewRegistry(dispatch.Registration{
			TemplateManager: &stubTemplateManager{name: "email"},
			SendManager:     &stubSendManager{tm: &stubTemplateManager{name: "telegram"}},
		})
		require.Error(t, err)
	})

	t.Run("service listings filter by initialized", func(t *testing.T) {
		t.Parallel()

		ready := &stubTemplateManager{name: "a", initialized: true}
		notReady := &stubTemplateManager{name: "b"}
		reg, err := dispatch.NewRegistry(
			dispatch.Registration{TemplateManager: ready, SendManager: &stubSendManager{tm: ready}},
			dispatch.Registration{TemplateManager: notReady, SendManager: &stubSendManager{tm: notReady}},
		)
		require.NoError(t, err)

		require.Equal(t, []string{"a", "b"}, reg.TemplateServices(false))
		require.Equal(t, []string{"a"}, reg.TemplateServices(true))
		require.Equal(t, []string{"a"}, reg.SendServices(true))
	})
}

func TestMergeContexts(t *testing.T) {
	t.Parallel()

	shared := dispatch.Context{"a": 1, "b": 1}
	personalized := dispatch.Context{"b": 2}

	merged := dispatch.MergeContexts(shared, personalized)
	require.Equal(t, dispatch.Context{"a": 1, "b": 2}, merged)

	// inputs are untouched
	require.Equal(t, dispatch.Context{"a": 1, "b": 1}, shared)
	require.Equal(t, dispatch.Context{"b": 2}, personalized)
}
