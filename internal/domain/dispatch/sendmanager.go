package dispatch

import "context"

// SendManager orchestrates rendering plus per-recipient provider dispatch
// for one notification service. Implementations live in internal/service/.
type SendManager interface {
	// ServiceName returns the unique logical service name.
	ServiceName() string

	// Initialized reports whether required credentials are present.
	// Uninitialized managers stay registered for discoverability but
	// fail fast instead of attempting network calls.
	Initialized() bool

	// CanSendRaw reports whether the service accepts fully pre-rendered
	// content via SendRaw.
	CanSendRaw() bool

	// TemplateManager returns the template manager paired with this
	// service.
	TemplateManager() TemplateManager

	// Send renders the template once per recipient (shared context
	// overlaid with the recipient's personalized context) and delivers
	// through the provider. One recipient's failure never aborts the
	// others; the result holds an outcome per recipient.
	Send(ctx context.Context, req *SendRequest) (SendResult, error)

	// SendRaw delivers pre-rendered per-recipient content, bypassing
	// templating. Services without CanSendRaw return an
	// UnsupportedOperationError.
	SendRaw(ctx context.Context, req *RawSendRequest) (SendResult, error)
}
