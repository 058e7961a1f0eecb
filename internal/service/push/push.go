// Package push wires the Firebase push-notification templates. Only the
// template catalog is hosted here; delivery runs through a separate
// pipeline, so no send manager is registered for this service.
package push

import (
	"github.com/go-playground/validator/v10"

	"notico/internal/domain/dispatch"
)

const ServiceName = "push"

// templateDoc is the shape every stored push template must render into.
type templateDoc struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body" validate:"required"`
	Image string `json:"image,omitempty" validate:"omitempty,url"`
}

// NewTemplateManager builds the push template manager over the given
// blob store.
func NewTemplateManager(store dispatch.TemplateStore, validate *validator.Validate, storeReady bool) (*dispatch.StoreTemplateManager, error) {
	return dispatch.NewStoreTemplateManager(store, dispatch.StoreTemplateManagerConfig{
		ServiceName:      ServiceName,
		Prefix:           "firebase/template/",
		Extension:        "json",
		ValidateTemplate: dispatch.StructSchema[templateDoc](validate),
		Initialized:      storeReady,
	})
}
