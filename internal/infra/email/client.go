package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"notico/internal/common"
	"notico/internal/infra/retry"
)

const defaultBaseURL = "https://api.resend.com"

// Message is one fully addressed email ready for delivery.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Client sends emails through the Resend API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	retryCfg   retry.Config
}

// NewClient creates a new Resend email client. An empty API key yields an
// uninitialized client that fails fast on Send.
func NewClient(apiKey string, timeout time.Duration, retryCfg retry.Config) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retryCfg,
	}
}

// Initialized reports whether the client has credentials.
func (c *Client) Initialized() bool {
	return c.apiKey != ""
}

// Send delivers one email and returns the provider message ID. The call
// is retried with backoff; on exhaustion a ProviderError wraps the last
// underlying error.
func (c *Client) Send(ctx context.Context, msg *Message) (string, error) {
	if !c.Initialized() {
		return "", common.NewConfigurationError("email")
	}

	id, err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) (string, error) {
		return c.send(ctx, msg)
	})
	if err != nil {
		return "", common.NewProviderError("email", err.Error(), err)
	}

	return id, nil
}

func (c *Client) send(ctx context.Context, msg *Message) (string, error) {
	payload := map[string]any{
		"from":    msg.From,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"html":    msg.HTML,
	}
	if msg.Text != "" {
		payload["text"] = msg.Text
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &errResp)

		message := errResp.Message
		if message == "" {
			message = fmt.Sprintf("resend API error: status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("resend: %s", message)
	}

	var successResp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &successResp); err != nil {
		return "", fmt.Errorf("parsing resend response: %w", err)
	}

	return successResp.ID, nil
}
