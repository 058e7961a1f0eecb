// Package email wires the email channel: a blob-backed template manager
// whose documents carry the sender, subject and body, and a send manager
// that delivers one message per recipient so addresses are never exposed
// to each other.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"notico/internal/common"
	"notico/internal/domain/dispatch"
	emailinfra "notico/internal/infra/email"
	"notico/internal/render"
)

const ServiceName = "email"

// templateDoc is the shape every stored email template must render into.
type templateDoc struct {
	From  string `json:"from" validate:"required,email"`
	Title string `json:"title" validate:"required"`
	Body  string `json:"body" validate:"required"`
}

// Sender delivers a single rendered email.
type Sender interface {
	Initialized() bool
	Send(ctx context.Context, msg *emailinfra.Message) (messageID string, err error)
}

// NewTemplateManager builds the email template manager over the given
// blob store. Stored documents are validated against templateDoc on
// create and update.
func NewTemplateManager(store dispatch.TemplateStore, validate *validator.Validate, storeReady bool) (*dispatch.StoreTemplateManager, error) {
	return dispatch.NewStoreTemplateManager(store, dispatch.StoreTemplateManagerConfig{
		ServiceName:      ServiceName,
		Prefix:           "email/template/",
		Extension:        "json",
		ValidateTemplate: dispatch.StructSchema[templateDoc](validate),
		Initialized:      storeReady,
	})
}

// Manager sends templated email, fanning out one provider call per
// recipient.
type Manager struct {
	tm          *dispatch.StoreTemplateManager
	sender      Sender
	concurrency int
	logger      *slog.Logger
}

var _ dispatch.SendManager = (*Manager)(nil)

func NewManager(tm *dispatch.StoreTemplateManager, sender Sender, concurrency int, logger *slog.Logger) *Manager {
	return &Manager{
		tm:          tm,
		sender:      sender,
		concurrency: concurrency,
		logger:      logger.With("service", ServiceName),
	}
}

func (m *Manager) ServiceName() string { return ServiceName }

func (m *Manager) Initialized() bool { return m.sender.Initialized() }

func (m *Manager) CanSendRaw() bool { return false }

func (m *Manager) TemplateManager() dispatch.TemplateManager { return m.tm }

func (m *Manager) Send(ctx context.Context, req *dispatch.SendRequest) (dispatch.SendResult, error) {
	if !m.Initialized() {
		return nil, common.NewConfigurationError(ServiceName)
	}

	return dispatch.FanOut(ctx, m.concurrency, req, func(ctx context.Context, recipient string, merged dispatch.Context) dispatch.Outcome {
		rendered, err := m.tm.Render(ctx, req.TemplateCode, merged, render.PolicyRandom)
		if err != nil {
			return dispatch.Failed(fmt.Errorf("rendering template %q: %w", req.TemplateCode, err))
		}

		doc, err := dispatch.DecodeRendered[templateDoc](rendered)
		if err != nil {
			return dispatch.Failed(fmt.Errorf("decoding template %q: %w", req.TemplateCode, err))
		}

		id, err := m.sender.Send(ctx, &emailinfra.Message{
			From:    doc.From,
			To:      recipient,
			Subject: doc.Title,
			HTML:    doc.Body,
		})
		if err != nil {
			m.logger.Warn("email send failed", "recipient", recipient, "error", err)
			return dispatch.Failed(err)
		}
		return dispatch.Sent(id)
	}), nil
}

func (m *Manager) SendRaw(ctx context.Context, req *dispatch.RawSendRequest) (dispatch.SendResult, error) {
	return nil, common.NewUnsupportedOperationError("email does not accept raw content; use a templated send")
}
