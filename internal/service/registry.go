// Package service assembles the channel implementations into the
// process-wide registry. Adding a channel means adding one entry to the
// registration table in NewRegistry.
package service

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"notico/internal/domain/dispatch"
	"notico/internal/service/alimtalk"
	"notico/internal/service/email"
	"notico/internal/service/push"
	"notico/internal/service/telegram"
)

// Dependencies carries everything the channel constructors need.
type Dependencies struct {
	TemplateStore dispatch.TemplateStore

	// TemplateStoreReady marks the blob storage configuration as
	// complete. Store-backed template managers stay registered but fail
	// fast when it is false.
	TemplateStoreReady bool

	Validate       *validator.Validate
	Logger         *slog.Logger
	EmailSender    email.Sender
	TelegramSender telegram.Sender
	AlimtalkClient interface {
		alimtalk.CatalogClient
		alimtalk.SendClient
	}

	// SendConcurrency bounds the per-request fan-out of the channels
	// that deliver one provider call per recipient.
	SendConcurrency int
}

// NewRegistry builds every channel and registers it. This table is the
// single source of truth for which services exist.
func NewRegistry(deps Dependencies) (*dispatch.Registry, error) {
	emailTM, err := email.NewTemplateManager(deps.TemplateStore, deps.Validate, deps.TemplateStoreReady)
	if err != nil {
		return nil, err
	}

	telegramTM, err := telegram.NewTemplateManager(deps.TemplateStore, deps.Validate, deps.TemplateStoreReady)
	if err != nil {
		return nil, err
	}

	pushTM, err := push.NewTemplateManager(deps.TemplateStore, deps.Validate, deps.TemplateStoreReady)
	if err != nil {
		return nil, err
	}

	alimtalkTM := alimtalk.NewTemplateManager(deps.AlimtalkClient)

	return dispatch.NewRegistry(
		dispatch.Registration{
			TemplateManager: emailTM,
			SendManager:     email.NewManager(emailTM, deps.EmailSender, deps.SendConcurrency, deps.Logger),
		},
		dispatch.Registration{
			TemplateManager: telegramTM,
			SendManager:     telegram.NewManager(telegramTM, deps.TelegramSender, deps.SendConcurrency, deps.Logger),
		},
		dispatch.Registration{
			TemplateManager: alimtalkTM,
			SendManager:     alimtalk.NewManager(alimtalkTM, deps.AlimtalkClient, deps.Logger),
		},
		dispatch.Registration{
			TemplateManager: pushTM,
		},
	)
}
