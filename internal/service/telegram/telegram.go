// Package telegram wires the Telegram channel. Templates describe the
// message body plus optional formatting entities and inline keyboard
// buttons; delivery is one Bot API call per chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"notico/internal/common"
	"notico/internal/domain/dispatch"
	tginfra "notico/internal/infra/telegram"
	"notico/internal/render"
)

const ServiceName = "telegram"

type templateButton struct {
	Text string `json:"text" validate:"required"`
	URL  string `json:"url" validate:"required,url"`
}

// templateDoc is the shape every stored Telegram template must render
// into. Buttons are rows of an inline keyboard.
type templateDoc struct {
	Body     string                  `json:"body" validate:"required"`
	Entities []tginfra.MessageEntity `json:"entities,omitempty"`
	Buttons  [][]templateButton      `json:"buttons,omitempty" validate:"omitempty,dive,dive"`
}

// Sender delivers a single rendered Telegram message.
type Sender interface {
	Initialized() bool
	SendMessage(ctx context.Context, payload *tginfra.SendMessagePayload) (messageID string, err error)
}

// NewTemplateManager builds the Telegram template manager over the given
// blob store.
func NewTemplateManager(store dispatch.TemplateStore, validate *validator.Validate, storeReady bool) (*dispatch.StoreTemplateManager, error) {
	return dispatch.NewStoreTemplateManager(store, dispatch.StoreTemplateManagerConfig{
		ServiceName:      ServiceName,
		Prefix:           "telegram/template/",
		Extension:        "json",
		ValidateTemplate: dispatch.StructSchema[templateDoc](validate),
		Initialized:      storeReady,
	})
}

// Manager sends templated Telegram messages, one Bot API call per chat.
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

	return dispatch.FanOut(ctx, m.concurrency, req, func(ctx context.Context, chatID string, merged dispatch.Context) dispatch.Outcome {
		rendered, err := m.tm.Render(ctx, req.TemplateCode, merged, render.PolicyRandom)
		if err != nil {
			return dispatch.Failed(fmt.Errorf("rendering template %q: %w", req.TemplateCode, err))
		}

		doc, err := dispatch.DecodeRendered[templateDoc](rendered)
		if err != nil {
			return dispatch.Failed(fmt.Errorf("decoding template %q: %w", req.TemplateCode, err))
		}

		id, err := m.sender.SendMessage(ctx, toSendMessagePayload(chatID, &doc))
		if err != nil {
			m.logger.Warn("telegram send failed", "chat_id", chatID, "error", err)
			return dispatch.Failed(err)
		}
		return dispatch.Sent(id)
	}), nil
}

func (m *Manager) SendRaw(ctx context.Context, req *dispatch.RawSendRequest) (dispatch.SendResult, error) {
	return nil, common.NewUnsupportedOperationError("telegram does not accept raw content; use a templated send")
}

// toSendMessagePayload maps a rendered template document onto the Bot
// API sendMessage payload. When explicit entities are present they take
// precedence over parse-mode markup, which the Bot API forbids mixing.
func toSendMessagePayload(chatID string, doc *templateDoc) *tginfra.SendMessagePayload {
	payload := &tginfra.SendMessagePayload{
		ChatID: chatID,
		Text:   doc.Body,
		LinkPreviewOptions: &tginfra.LinkPreviewOptions{
			IsDisabled: true,
		},
	}

	if len(doc.Entities) > 0 {
		payload.Entities = doc.Entities
	} else {
		payload.ParseMode = "MarkdownV2"
	}

	if len(doc.Buttons) > 0 {
		markup := &tginfra.InlineKeyboardMarkup{}
		for _, row := range doc.Buttons {
			var buttons []tginfra.InlineKeyboardButton
			for _, b := range row {
				buttons = append(buttons, tginfra.InlineKeyboardButton{
					Text: b.Text,
					URL:  b.URL,
				})
			}
			markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
		}
		payload.ReplyMarkup = markup
	}

	return payload
}
