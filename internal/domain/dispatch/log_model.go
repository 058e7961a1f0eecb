package dispatch

import (
	"context"
	"time"
)

// DeliveryLog records one recipient's dispatch outcome for auditing.
type DeliveryLog struct {
	ID           string        `json:"id"`
	Service      string        `json:"service"`
	TemplateCode string        `json:"template_code,omitempty"`
	Recipient    string        `json:"recipient"`
	Status       OutcomeStatus `json:"status"`
	MessageID    string        `json:"message_id,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// LogFilter defines pagination and filtering options for listing delivery
// logs.
type LogFilter struct {
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	Service   string `form:"service"`
	Recipient string `form:"recipient"`
	Status    string `form:"status"`
}

// LogListResponse wraps a paginated list of delivery logs.
type LogListResponse struct {
	Logs     []*DeliveryLog `json:"logs"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// DeliveryLogStore persists delivery logs. Implementations live in
// infra/store/. Logging is best effort: dispatch never fails because the
// audit trail is unavailable.
type DeliveryLogStore interface {
	Create(ctx context.Context, log *DeliveryLog) error
	List(ctx context.Context, filter LogFilter) ([]*DeliveryLog, int, error)
}

// RecipientRateLimiter throttles dispatches per recipient.
// Implementations live in infra/ratelimit/.
type RecipientRateLimiter interface {
	// Allow reports whether a message may be sent to the recipient now.
	Allow(ctx context.Context, recipient string) (bool, error)
}
