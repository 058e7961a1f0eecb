// Package alimtalk implements a client for the NHN Cloud (Toast)
// KakaoTalk Bizmessage alimtalk API.
//
// https://docs.nhncloud.com/ko/Notification/KakaoTalk%20Bizmessage/ko/alimtalk-api-guide/
package alimtalk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"notico/internal/common"
	"notico/internal/infra/retry"
)

// SuccessResultCode is the per-recipient result code for an accepted
// message.
const SuccessResultCode = 1000

// Config holds the NHN Cloud alimtalk credentials and endpoints.
type Config struct {
	Domain     string // default https://api-alimtalk.cloud.toast.com
	APIVersion string // default v2.3
	AppKey     string
	SecretKey  string
	SenderKey  string
}

// Configured reports whether every credential is present.
func (c Config) Configured() bool {
	return c.AppKey != "" && c.SecretKey != "" && c.SenderKey != ""
}

// Recipient is one templated-message recipient. TemplateParameter feeds
// the provider-side variable substitution.
type Recipient struct {
	RecipientNo          string            `json:"recipientNo"`
	TemplateParameter    map[string]string `json:"templateParameter,omitempty"`
	RecipientGroupingKey string            `json:"recipientGroupingKey,omitempty"`
}

// MessageSendRequest is the /messages request body.
type MessageSendRequest struct {
	SenderKey     string      `json:"senderKey"`
	TemplateCode  string      `json:"templateCode"`
	RecipientList []Recipient `json:"recipientList"`
	StatsID       string      `json:"statsId,omitempty"`
}

// RawRecipient is one raw-message recipient carrying pre-rendered
// content.
type RawRecipient struct {
	RecipientNo          string `json:"recipientNo"`
	Content              string `json:"content"`
	RecipientGroupingKey string `json:"recipientGroupingKey,omitempty"`
}

// RawMessageSendRequest is the /raw-messages request body.
type RawMessageSendRequest struct {
	SenderKey     string         `json:"senderKey"`
	TemplateCode  string         `json:"templateCode"`
	RecipientList []RawRecipient `json:"recipientList"`
}

// ResponseHeader is the common response header of every alimtalk call.
type ResponseHeader struct {
	ResultCode    int    `json:"resultCode"`
	ResultMessage string `json:"resultMessage"`
	IsSuccessful  bool   `json:"isSuccessful"`
}

// SendResultItem is one per-recipient acceptance result.
type SendResultItem struct {
	RecipientSeq  int    `json:"recipientSeq"`
	RecipientNo   string `json:"recipientNo"`
	ResultCode    int    `json:"resultCode"`
	ResultMessage string `json:"resultMessage"`
}

// MessageSendResponse is the /messages and /raw-messages response body.
type MessageSendResponse struct {
	Header  ResponseHeader `json:"header"`
	Message struct {
		RequestID   string           `json:"requestId"`
		SendResults []SendResultItem `json:"sendResults"`
	} `json:"message"`
}

// Template is one entry of the provider-hosted template catalog.
type Template struct {
	TemplateCode    string `json:"templateCode"`
	TemplateName    string `json:"templateName"`
	TemplateContent string `json:"templateContent"`
	Status          string `json:"status"`
	CategoryCode    string `json:"categoryCode"`
}

// TemplateListResponse is the template catalog listing.
type TemplateListResponse struct {
	Header               ResponseHeader `json:"header"`
	TemplateListResponse struct {
		Templates  []Template `json:"templates"`
		TotalCount int        `json:"totalCount"`
	} `json:"templateListResponse"`
}

// TemplateCategoriesResponse lists the template category tree.
type TemplateCategoriesResponse struct {
	Header     ResponseHeader `json:"header"`
	Categories []struct {
		Name          string `json:"name"`
		SubCategories []struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"subCategories"`
	} `json:"categories"`
}

// Client talks to the NHN Cloud alimtalk API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retryCfg   retry.Config
}

// NewClient creates a new alimtalk client. A client with incomplete
// credentials fails fast on every call.
func NewClient(cfg Config, timeout time.Duration, retryCfg retry.Config) *Client {
	if cfg.Domain == "" {
		cfg.Domain = "https://api-alimtalk.cloud.toast.com"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v2.3"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retryCfg,
	}
}

// Initialized reports whether the client has complete credentials.
func (c *Client) Initialized() bool {
	return c.cfg.Configured()
}

// SenderKey returns the configured sender key.
func (c *Client) SenderKey() string {
	return c.cfg.SenderKey
}

// SendMessages posts one templated message batch. The provider renders
// the template per recipient using templateParameter.
func (c *Client) SendMessages(ctx context.Context, req *MessageSendRequest) (*MessageSendResponse, error) {
	return call[MessageSendResponse](ctx, c, http.MethodPost, "/messages", req)
}

// SendRawMessages posts one pre-rendered message batch.
func (c *Client) SendRawMessages(ctx context.Context, req *RawMessageSendRequest) (*MessageSendResponse, error) {
	return call[MessageSendResponse](ctx, c, http.MethodPost, "/raw-messages", req)
}

// ListTemplates fetches the provider-hosted template catalog, optionally
// filtered by template code.
func (c *Client) ListTemplates(ctx context.Context, templateCode string) (*TemplateListResponse, error) {
	path := fmt.Sprintf("/senders/%s/templates", url.PathEscape(c.cfg.SenderKey))
	if templateCode != "" {
		path += "?" + url.Values{"templateCode": {templateCode}}.Encode()
	}
	return call[TemplateListResponse](ctx, c, http.MethodGet, path, nil)
}

// TemplateCategories fetches the template category tree.
func (c *Client) TemplateCategories(ctx context.Context) (*TemplateCategoriesResponse, error) {
	return call[TemplateCategoriesResponse](ctx, c, http.MethodGet, "/template/categories", nil)
}

// DeleteTemplate removes a template from the provider catalog.
func (c *Client) DeleteTemplate(ctx context.Context, templateCode string) error {
	path := fmt.Sprintf("/senders/%s/templates/%s", url.PathEscape(c.cfg.SenderKey), url.PathEscape(templateCode))
	_, err := call[struct {
		Header ResponseHeader `json:"header"`
	}](ctx, c, http.MethodDelete, path, nil)
	return err
}

// call runs one retry-wrapped API request and decodes the response body
// into T. Non-2xx statuses and unsuccessful response headers are errors;
// exhaustion yields a ProviderError wrapping the last underlying error.
func call[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	if !c.Initialized() {
		return nil, common.NewConfigurationError("alimtalk")
	}

	result, err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) (*T, error) {
		return do[T](ctx, c, method, path, body)
	})
	if err != nil {
		return nil, common.NewProviderError("alimtalk", err.Error(), err)
	}

	return result, nil
}

func do[T any](ctx context.Context, c *Client, method, path string, body any) (*T, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	endpoint := fmt.Sprintf("%s/alimtalk/%s/appkeys/%s%s",
		strings.TrimSuffix(c.cfg.Domain, "/"), c.cfg.APIVersion, url.PathEscape(c.cfg.AppKey), path)

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("X-Secret-Key", c.cfg.SecretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("alimtalk API error: status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded struct {
		Header ResponseHeader `json:"header"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("parsing response header: %w", err)
	}
	if !decoded.Header.IsSuccessful {
		return nil, fmt.Errorf("alimtalk: %s (code %d)", decoded.Header.ResultMessage, decoded.Header.ResultCode)
	}

	var result T
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response body: %w", err)
	}

	return &result, nil
}
