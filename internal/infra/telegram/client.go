package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"notico/internal/common"
	"notico/internal/infra/retry"
)

const defaultBaseURL = "https://api.telegram.org"

// MessageEntity is one formatting entity inside a message text.
type MessageEntity struct {
	Type          string `json:"type"`
	Offset        int    `json:"offset"`
	Length        int    `json:"length"`
	URL           string `json:"url,omitempty"`
	Language      string `json:"language,omitempty"`
	CustomEmojiID string `json:"custom_emoji_id,omitempty"`
}

// InlineKeyboardButton is one button of an inline keyboard.
type InlineKeyboardButton struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// InlineKeyboardMarkup is the inline keyboard attached below a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// LinkPreviewOptions controls link previews for the message.
type LinkPreviewOptions struct {
	IsDisabled bool `json:"is_disabled,omitempty"`
}

// SendMessagePayload is the Bot API sendMessage request body.
type SendMessagePayload struct {
	ChatID              string                `json:"chat_id"`
	Text                string                `json:"text"`
	ParseMode           string                `json:"parse_mode,omitempty"`
	Entities            []MessageEntity       `json:"entities,omitempty"`
	LinkPreviewOptions  *LinkPreviewOptions   `json:"link_preview_options,omitempty"`
	DisableNotification bool                  `json:"disable_notification,omitempty"`
	ProtectContent      bool                  `json:"protect_content,omitempty"`
	ReplyMarkup         *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// Client talks to the Telegram Bot API.
type Client struct {
	botToken   string
	baseURL    string
	httpClient *http.Client
	retryCfg   retry.Config
}

// NewClient creates a new Telegram Bot API client. An empty bot token
// yields an uninitialized client that fails fast on SendMessage.
func NewClient(botToken string, timeout time.Duration, retryCfg retry.Config) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		botToken:   botToken,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retryCfg,
	}
}

// Initialized reports whether the client has credentials.
func (c *Client) Initialized() bool {
	return c.botToken != ""
}

// SendMessage sends one message and returns the provider message ID. The
// call is retried with backoff; on exhaustion a ProviderError wraps the
// last underlying error.
func (c *Client) SendMessage(ctx context.Context, payload *SendMessagePayload) (string, error) {
	if !c.Initialized() {
		return "", common.NewConfigurationError("telegram")
	}

	id, err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) (string, error) {
		return c.sendMessage(ctx, payload)
	})
	if err != nil {
		return "", common.NewProviderError("telegram", err.Error(), err)
	}

	return id, nil
}

func (c *Client) sendMessage(ctx context.Context, payload *SendMessagePayload) (string, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling sendMessage payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var apiResp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
		Result      struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("parsing telegram response (status %d): %w", resp.StatusCode, err)
	}

	if !apiResp.OK {
		message := apiResp.Description
		if message == "" {
			message = fmt.Sprintf("telegram API error: status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("telegram: %s", message)
	}

	return strconv.FormatInt(apiResp.Result.MessageID, 10), nil
}
