// Package alimtalk wires the KakaoTalk alimtalk channel on NHN Cloud.
// The template catalog lives on the provider and is managed from its
// console, so the template manager here is read-only; sending is a
// single batch call with provider-side variable substitution.
package alimtalk

import (
	"context"
	"fmt"
	"log/slog"

	"notico/internal/common"
	"notico/internal/domain/dispatch"
	alimtalkinfra "notico/internal/infra/alimtalk"
	"notico/internal/render"
)

const ServiceName = "alimtalk"

// Alimtalk templates use the provider's #{var} reference syntax.
const (
	delimiterStart = "#{"
	delimiterEnd   = "}"
)

const consoleHint = "alimtalk templates are managed in the NHN Cloud console"

// CatalogClient is the slice of the provider API the template manager
// needs.
type CatalogClient interface {
	Initialized() bool
	ListTemplates(ctx context.Context, templateCode string) (*alimtalkinfra.TemplateListResponse, error)
}

// TemplateManager exposes the provider-hosted template catalog. All
// mutating operations are unsupported; the catalog is maintained in the
// provider console because templates require carrier approval.
type TemplateManager struct {
	client CatalogClient
}

var _ dispatch.TemplateManager = (*TemplateManager)(nil)

func NewTemplateManager(client CatalogClient) *TemplateManager {
	return &TemplateManager{client: client}
}

func (m *TemplateManager) ServiceName() string { return ServiceName }

func (m *TemplateManager) Initialized() bool { return m.client.Initialized() }

func (m *TemplateManager) Delimiters() (string, string) {
	return delimiterStart, delimiterEnd
}

// ValidateTemplate always rejects: bodies are never stored locally.
func (m *TemplateManager) ValidateTemplate(body any) error {
	return common.NewUnsupportedOperationError(consoleHint)
}

func (m *TemplateManager) List(ctx context.Context) ([]*dispatch.TemplateInfo, error) {
	resp, err := m.client.ListTemplates(ctx, "")
	if err != nil {
		return nil, err
	}

	infos := make([]*dispatch.TemplateInfo, 0, len(resp.TemplateListResponse.Templates))
	for _, tpl := range resp.TemplateListResponse.Templates {
		info, err := dispatch.NewTemplateInfo(tpl.TemplateCode, tpl.TemplateContent, delimiterStart, delimiterEnd)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (m *TemplateManager) Retrieve(ctx context.Context, code string) (*dispatch.TemplateInfo, error) {
	resp, err := m.client.ListTemplates(ctx, code)
	if err != nil {
		return nil, err
	}

	// The catalog endpoint matches by code prefix; insist on an exact
	// match so "ORDER1" never resolves to "ORDER10".
	for _, tpl := range resp.TemplateListResponse.Templates {
		if tpl.TemplateCode == code {
			return dispatch.NewTemplateInfo(tpl.TemplateCode, tpl.TemplateContent, delimiterStart, delimiterEnd)
		}
	}
	return nil, nil
}

func (m *TemplateManager) Create(ctx context.Context, code string, body any) (*dispatch.TemplateInfo, error) {
	return nil, common.NewUnsupportedOperationError(consoleHint)
}

func (m *TemplateManager) Update(ctx context.Context, code string, body any) (*dispatch.TemplateInfo, error) {
	return nil, common.NewUnsupportedOperationError(consoleHint)
}

func (m *TemplateManager) Delete(ctx context.Context, code string) error {
	return common.NewUnsupportedOperationError(consoleHint)
}

// Render previews the substituted template text. Actual delivery leaves
// substitution to the provider via templateParameter.
func (m *TemplateManager) Render(ctx context.Context, code string, rctx dispatch.Context, policy render.Policy) (any, error) {
	info, err := m.Retrieve(ctx, code)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, common.NewNotFoundError("template", code)
	}

	return render.Render(info.Template, rctx, render.Options{
		Start:     delimiterStart,
		End:       delimiterEnd,
		Undefined: policy,
	})
}

func (m *TemplateManager) RenderHTML(ctx context.Context, code string, rctx dispatch.Context, policy render.Policy) (string, error) {
	return "", common.NewUnsupportedOperationError("alimtalk messages are plain text; html rendering is not available")
}

// SendClient is the slice of the provider API the send manager needs.
type SendClient interface {
	Initialized() bool
	SenderKey() string
	SendMessages(ctx context.Context, req *alimtalkinfra.MessageSendRequest) (*alimtalkinfra.MessageSendResponse, error)
	SendRawMessages(ctx context.Context, req *alimtalkinfra.RawMessageSendRequest) (*alimtalkinfra.MessageSendResponse, error)
}

// Manager sends alimtalk messages. Unlike the per-recipient channels it
// issues one batch call: recipients only ever see their own message, so
// batching leaks nothing between them.
type Manager struct {
	tm     *TemplateManager
	client SendClient
	logger *slog.Logger
}

var _ dispatch.SendManager = (*Manager)(nil)

func NewManager(tm *TemplateManager, client SendClient, logger *slog.Logger) *Manager {
	return &Manager{
		tm:     tm,
		client: client,
		logger: logger.With("service", ServiceName),
	}
}

func (m *Manager) ServiceName() string { return ServiceName }

func (m *Manager) Initialized() bool { return m.client.Initialized() }

func (m *Manager) CanSendRaw() bool { return true }

func (m *Manager) TemplateManager() dispatch.TemplateManager { return m.tm }

func (m *Manager) Send(ctx context.Context, req *dispatch.SendRequest) (dispatch.SendResult, error) {
	if !m.Initialized() {
		return nil, common.NewConfigurationError(ServiceName)
	}

	apiReq := &alimtalkinfra.MessageSendRequest{
		SenderKey:    m.client.SenderKey(),
		TemplateCode: req.TemplateCode,
	}
	for recipient, personalized := range req.PersonalizedContext {
		merged := dispatch.MergeContexts(req.SharedContext, personalized)
		apiReq.RecipientList = append(apiReq.RecipientList, alimtalkinfra.Recipient{
			RecipientNo:       recipient,
			TemplateParameter: stringifyContext(merged),
		})
	}

	resp, err := m.client.SendMessages(ctx, apiReq)
	if err != nil {
		// The whole batch failed; report the same failure per recipient
		// so the result still covers everyone.
		m.logger.Warn("alimtalk batch send failed", "template_code", req.TemplateCode, "error", err)
		result := make(dispatch.SendResult, len(req.PersonalizedContext))
		for recipient := range req.PersonalizedContext {
			result[recipient] = dispatch.Failed(err)
		}
		return result, nil
	}

	return resultFromResponse(resp, req.PersonalizedContext), nil
}

func (m *Manager) SendRaw(ctx context.Context, req *dispatch.RawSendRequest) (dispatch.SendResult, error) {
	if !m.Initialized() {
		return nil, common.NewConfigurationError(ServiceName)
	}

	apiReq := &alimtalkinfra.RawMessageSendRequest{
		SenderKey:    m.client.SenderKey(),
		TemplateCode: req.TemplateCode,
	}

	// Recipients whose content is absent or not a string fail up front
	// and are excluded from the provider call.
	invalid := make(dispatch.SendResult)
	for recipient, rctx := range req.PersonalizedContent {
		content, ok := rctx["content"].(string)
		if !ok || content == "" {
			invalid[recipient] = dispatch.Failed(fmt.Errorf(`personalized content must carry a non-empty "content" string`))
			continue
		}
		apiReq.RecipientList = append(apiReq.RecipientList, alimtalkinfra.RawRecipient{
			RecipientNo: recipient,
			Content:     content,
		})
	}

	if len(apiReq.RecipientList) == 0 {
		return invalid, nil
	}

	resp, err := m.client.SendRawMessages(ctx, apiReq)
	if err != nil {
		m.logger.Warn("alimtalk raw batch send failed", "template_code", req.TemplateCode, "error", err)
		result := invalid
		for _, r := range apiReq.RecipientList {
			result[r.RecipientNo] = dispatch.Failed(err)
		}
		return result, nil
	}

	recipients := make(map[string]struct{}, len(apiReq.RecipientList))
	for _, r := range apiReq.RecipientList {
		recipients[r.RecipientNo] = struct{}{}
	}

	result := resultFromSendResults(resp, recipients)
	for recipient, outcome := range invalid {
		result[recipient] = outcome
	}
	return result, nil
}

func resultFromResponse(resp *alimtalkinfra.MessageSendResponse, contexts map[string]dispatch.Context) dispatch.SendResult {
	recipients := make(map[string]struct{}, len(contexts))
	for recipient := range contexts {
		recipients[recipient] = struct{}{}
	}
	return resultFromSendResults(resp, recipients)
}

// resultFromSendResults maps the provider's per-recipient acceptance
// codes onto outcomes. Recipients the provider did not echo back are
// reported failed rather than silently dropped.
func resultFromSendResults(resp *alimtalkinfra.MessageSendResponse, recipients map[string]struct{}) dispatch.SendResult {
	result := make(dispatch.SendResult, len(recipients))

	for _, item := range resp.Message.SendResults {
		if _, ok := recipients[item.RecipientNo]; !ok {
			continue
		}
		if item.ResultCode == alimtalkinfra.SuccessResultCode {
			result[item.RecipientNo] = dispatch.Sent(resp.Message.RequestID)
		} else {
			result[item.RecipientNo] = dispatch.Failed(
				fmt.Errorf("alimtalk result %d: %s", item.ResultCode, item.ResultMessage))
		}
	}

	for recipient := range recipients {
		if _, ok := result[recipient]; !ok {
			result[recipient] = dispatch.Failed(fmt.Errorf("recipient missing from provider response"))
		}
	}

	return result
}

// stringifyContext flattens a render context into the string-valued
// templateParameter map the provider expects.
func stringifyContext(rctx dispatch.Context) map[string]string {
	if len(rctx) == 0 {
		return nil
	}
	params := make(map[string]string, len(rctx))
	for k, v := range rctx {
		if s, ok := v.(string); ok {
			params[k] = s
		} else {
			params[k] = fmt.Sprint(v)
		}
	}
	return params
}
