package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"notico/internal/domain/dispatch"
)

const logTableName = "delivery_logs"

var _ dispatch.DeliveryLogStore = (*SupabaseLogStore)(nil)

// SupabaseLogStore persists per-recipient delivery outcomes using the
// Supabase Go SDK.
type SupabaseLogStore struct {
	client *supa.Client
}

// NewSupabaseLogStore creates a new Supabase-backed delivery log store.
func NewSupabaseLogStore(supabaseURL, serviceKey string) (*SupabaseLogStore, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseLogStore{client: client}, nil
}

// logRow is the internal representation for Supabase PostgREST.
type logRow struct {
	ID           string  `json:"id,omitempty"`
	Service      string  `json:"service"`
	TemplateCode *string `json:"template_code,omitempty"`
	Recipient    string  `json:"recipient"`
	Status       string  `json:"status"`
	MessageID    *string `json:"message_id,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

// Create inserts one delivery log record.
func (s *SupabaseLogStore) Create(ctx context.Context, log *dispatch.DeliveryLog) error {
	row := logRow{
		ID:        log.ID,
		Service:   log.Service,
		Recipient: log.Recipient,
		Status:    string(log.Status),
		CreatedAt: log.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if log.TemplateCode != "" {
		row.TemplateCode = &log.TemplateCode
	}
	if log.MessageID != "" {
		row.MessageID = &log.MessageID
	}
	if log.ErrorMessage != "" {
		row.ErrorMessage = &log.ErrorMessage
	}

	_, _, err := s.client.From(logTableName).Insert(row, false, "", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("inserting delivery log: %w", err)
	}

	return nil
}

// List retrieves delivery logs with pagination and filtering, newest
// first.
func (s *SupabaseLogStore) List(ctx context.Context, filter dispatch.LogFilter) ([]*dispatch.DeliveryLog, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	offset := (filter.Page - 1) * filter.PageSize

	query := s.client.From(logTableName).Select("*", "exact", false)

	if filter.Service != "" {
		query = query.Eq("service", filter.Service)
	}
	if filter.Recipient != "" {
		query = query.Eq("recipient", filter.Recipient)
	}
	if filter.Status != "" {
		query = query.Eq("status", filter.Status)
	}

	query = query.Order("created_at", &postgrest.OrderOpts{Ascending: false})
	query = query.Range(offset, offset+filter.PageSize-1, "")

	data, count, err := query.Execute()
	if err != nil {
		return nil, 0, fmt.Errorf("listing delivery logs: %w", err)
	}

	var rows []logRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("parsing delivery logs: %w", err)
	}

	logs := make([]*dispatch.DeliveryLog, len(rows))
	for i, row := range rows {
		logs[i] = rowToLog(&row)
	}

	return logs, int(count), nil
}

func rowToLog(row *logRow) *dispatch.DeliveryLog {
	log := &dispatch.DeliveryLog{
		ID:        row.ID,
		Service:   row.Service,
		Recipient: row.Recipient,
		Status:    dispatch.OutcomeStatus(row.Status),
	}

	if row.TemplateCode != nil {
		log.TemplateCode = *row.TemplateCode
	}
	if row.MessageID != nil {
		log.MessageID = *row.MessageID
	}
	if row.ErrorMessage != nil {
		log.ErrorMessage = *row.ErrorMessage
	}
	if row.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, row.CreatedAt); err == nil {
			log.CreatedAt = t
		}
	}

	return log
}
