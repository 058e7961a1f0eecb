package dispatch

// Context is a string-keyed mapping of scalar or structured values fed
// into template rendering.
type Context map[string]any

// MergeContexts builds a fresh render context from the shared context
// overlaid with the per-recipient personalized context. Personalized
// values win on key collision; neither input is mutated.
func MergeContexts(shared, personalized Context) Context {
	merged := make(Context, len(shared)+len(personalized))
	for k, v := range shared {
		merged[k] = v
	}
	for k, v := range personalized {
		merged[k] = v
	}
	return merged
}

// SendRequest is one logical send fanned out to every recipient listed in
// PersonalizedContext. Each recipient ID is an opaque string whose meaning
// depends on the service (email address, chat ID, phone number).
type SendRequest struct {
	TemplateCode        string             `json:"template_code" validate:"required"`
	SharedContext       Context            `json:"shared_context"`
	PersonalizedContext map[string]Context `json:"personalized_context" validate:"required,min=1"`
}

// RawSendRequest carries fully pre-rendered per-recipient content for
// services that can bypass templating (CanSendRaw).
type RawSendRequest struct {
	TemplateCode        string             `json:"template_code" validate:"required"`
	PersonalizedContent map[string]Context `json:"personalized_content" validate:"required,min=1"`
}

// OutcomeStatus tags a per-recipient outcome.
type OutcomeStatus string

const (
	OutcomeSent   OutcomeStatus = "sent"
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome is the tagged per-recipient result: either a provider-assigned
// message ID or a failure description, never both.
type Outcome struct {
	Status    OutcomeStatus `json:"status"`
	MessageID string        `json:"message_id,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Sent builds a success outcome carrying the provider message ID.
func Sent(messageID string) Outcome {
	return Outcome{Status: OutcomeSent, MessageID: messageID}
}

// Failed builds a failure outcome from err.
func Failed(err error) Outcome {
	return Outcome{Status: OutcomeFailed, Error: err.Error()}
}

// SendResult maps recipient ID to its outcome. Every recipient from the
// request appears exactly once, regardless of sibling failures.
type SendResult map[string]Outcome
