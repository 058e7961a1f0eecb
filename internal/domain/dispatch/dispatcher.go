package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"notico/internal/common"
)

// ErrorResult is the structured result a failed dispatch collapses into.
// The failure is swallowed at this boundary so a single malformed or
// failing job never crashes the worker or blocks sibling jobs; redelivery
// is the queue's concern.
type ErrorResult struct {
	Error string `json:"error"`
}

// failedResult matches the wire shape emitted by every deployment of this
// worker, so downstream consumers can rely on it.
var failedResult = ErrorResult{Error: "Failed to handle event"}

// Dispatcher is the queue-facing entry point: it deserializes an inbound
// job payload, resolves the send manager, and invokes it. The registry is
// immutable, so a Dispatcher is safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	limiter  RecipientRateLimiter // optional
	logs     DeliveryLogStore     // optional
	validate *validator.Validate
}

// NewDispatcher creates a Dispatcher. limiter and logs may be nil.
func NewDispatcher(registry *Registry, limiter RecipientRateLimiter, logs DeliveryLogStore) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		limiter:  limiter,
		logs:     logs,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Handle processes one raw job payload and returns either the aggregated
// SendResult or an ErrorResult. It never returns an error: dispatch
// failures are logged with the raw payload and converted into the
// structured error result.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte) any {
	result, err := d.dispatch(ctx, payload)
	if err != nil {
		slog.Error("failed to handle event",
			"error", err,
			"payload", string(payload),
		)
		return failedResult
	}
	return result
}

// dispatch parses, validates and routes the job. Errors here abort the
// whole job (as opposed to per-recipient failures, which the send manager
// absorbs into the result).
func (d *Dispatcher) dispatch(ctx context.Context, payload []byte) (SendResult, error) {
	var job JobPayload
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, common.NewSchemaValidationError(fmt.Sprintf("invalid job payload: %s", err))
	}

	if job.Worker != WorkerNotificationSender {
		return nil, common.NewUnknownServiceError(job.Worker)
	}

	manager, ok := d.registry.SendManager(job.WorkerPayload.SenderType)
	if !ok {
		return nil, common.NewUnknownServiceError(job.WorkerPayload.SenderType)
	}

	var req SendRequest
	if err := json.Unmarshal(job.WorkerPayload.SenderPayload, &req); err != nil {
		return nil, common.NewSchemaValidationError(fmt.Sprintf("invalid sender payload: %s", err))
	}
	if err := d.validate.Struct(&req); err != nil {
		return nil, common.NewSchemaValidationError(fmt.Sprintf("sender payload failed validation: %s", err))
	}

	start := time.Now()

	throttled := d.throttle(ctx, &req)

	var result SendResult
	if len(req.PersonalizedContext) > 0 {
		sent, err := manager.Send(ctx, &req)
		if err != nil {
			return nil, fmt.Errorf("sending via %s: %w", manager.ServiceName(), err)
		}
		result = sent
	} else {
		result = make(SendResult)
	}

	for recipient, outcome := range throttled {
		result[recipient] = outcome
	}

	d.record(ctx, manager.ServiceName(), req.TemplateCode, result)

	slog.Info("dispatch complete",
		"service", manager.ServiceName(),
		"template_code", req.TemplateCode,
		"recipients", len(result),
		"duration", time.Since(start),
	)

	return result, nil
}

// throttle removes rate-limited recipients from the request and returns
// their failure outcomes. The limiter fails open: when it errors, the
// recipient is sent anyway.
func (d *Dispatcher) throttle(ctx context.Context, req *SendRequest) SendResult {
	if d.limiter == nil {
		return nil
	}

	blocked := make(SendResult)
	for recipient := range req.PersonalizedContext {
		allowed, err := d.limiter.Allow(ctx, recipient)
		if err != nil {
			slog.Error("rate limit check failed, proceeding without limit", "recipient", recipient, "error", err)
			continue
		}
		if !allowed {
			blocked[recipient] = Failed(fmt.Errorf("rate limit exceeded for recipient"))
			delete(req.PersonalizedContext, recipient)
		}
	}

	return blocked
}

// record persists per-recipient outcomes to the delivery log, best effort.
func (d *Dispatcher) record(ctx context.Context, service, templateCode string, result SendResult) {
	if d.logs == nil {
		return
	}

	for recipient, outcome := range result {
		entry := &DeliveryLog{
			ID:           uuid.NewString(),
			Service:      service,
			TemplateCode: templateCode,
			Recipient:    recipient,
			Status:       outcome.Status,
			MessageID:    outcome.MessageID,
			ErrorMessage: outcome.Error,
			CreatedAt:    time.Now().UTC(),
		}
		if err := d.logs.Create(ctx, entry); err != nil {
			slog.Error("failed to record delivery log",
				"service", service,
				"recipient", recipient,
				"error", err,
			)
		}
	}
}
