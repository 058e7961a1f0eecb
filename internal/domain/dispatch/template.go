package dispatch

import (
	"context"

	"notico/internal/render"
)

// TemplateInfo describes one stored template together with the free
// variables its body references.
type TemplateInfo struct {
	Code           string   `json:"code"`
	Template       any      `json:"template"`
	DelimiterStart string   `json:"delimiter_start"`
	DelimiterEnd   string   `json:"delimiter_end"`
	Variables      []string `json:"template_variables"`
}

// NewTemplateInfo builds a TemplateInfo, computing the variable set from
// the body with the given delimiter pair.
func NewTemplateInfo(code string, body any, start, end string) (*TemplateInfo, error) {
	vars, err := render.ExtractVariables(body, start, end)
	if err != nil {
		return nil, err
	}
	return &TemplateInfo{
		Code:           code,
		Template:       body,
		DelimiterStart: start,
		DelimiterEnd:   end,
		Variables:      vars,
	}, nil
}

// TemplateManager owns CRUD and rendering for one service's templates.
// Implementations live in internal/service/ (store-backed) and may be
// read-only when the provider hosts the template catalog itself.
type TemplateManager interface {
	// ServiceName returns the unique logical service name.
	ServiceName() string

	// Initialized reports whether the service's required external
	// configuration is present. Uninitialized managers stay registered
	// but fail fast on anything touching the network.
	Initialized() bool

	// Delimiters returns the variable delimiter pair for this service.
	Delimiters() (start, end string)

	// ValidateTemplate checks a template body against the service's
	// structural schema.
	ValidateTemplate(body any) error

	// List returns every stored template.
	List(ctx context.Context) ([]*TemplateInfo, error)

	// Retrieve returns the template with the given code, or nil (with a
	// nil error) when it does not exist, so callers can distinguish
	// "absent" from "error".
	Retrieve(ctx context.Context, code string) (*TemplateInfo, error)

	// Create validates and persists a new template body.
	Create(ctx context.Context, code string, body any) (*TemplateInfo, error)

	// Update validates and persists a replacement template body.
	Update(ctx context.Context, code string, body any) (*TemplateInfo, error)

	// Delete removes a template.
	Delete(ctx context.Context, code string) error

	// Render substitutes the render context into the template body.
	Render(ctx context.Context, code string, rctx Context, policy render.Policy) (any, error)

	// RenderHTML renders the template and wraps the result in the
	// service's HTML wrapper template. A missing wrapper is a
	// NotFoundError.
	RenderHTML(ctx context.Context, code string, rctx Context, policy render.Policy) (string, error)
}

// TemplateStore is the boundary to the blob storage holding template
// bodies, keyed by "<service-prefix>/<code>.<extension>".
// Implementations live in infra/store/.
type TemplateStore interface {
	// Get returns the raw blob at key, or a NotFoundError when absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes the raw blob at key, overwriting any existing object.
	Put(ctx context.Context, key string, body []byte) error

	// Delete removes the blob at key.
	Delete(ctx context.Context, key string) error

	// List returns all keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
