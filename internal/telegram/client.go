package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL      = "https://api.telegram.org"
	defaultHTTPTimeout  = 30 * time.Second
	uploadHTTPTimeout   = 5 * time.Minute
	defaultSendAttempts = 3
	maxRetryAfter       = 30 * time.Second

	// Telegram allows roughly 30 outgoing messages per second per bot.
	defaultSendRate  = 25
	defaultSendBurst = 5
)

// ParseModeMarkdownV2 selects Telegram's MarkdownV2 formatting.
const ParseModeMarkdownV2 = "MarkdownV2"

// User is the subset of a Telegram user the bot reads.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Chat identifies where a message was posted.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Message is the subset of a Telegram message the bot reads.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
	Caption   string `json:"caption"`
}

// Update is one getUpdates entry.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// APIError is a response with ok=false or a non-2xx status.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Retryable reports whether the call may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// IsParseError reports whether Telegram rejected the message entities.
func IsParseError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Description), "can't parse entities")
}

// Config captures the Bot API endpoint settings.
type Config struct {
	Token   string
	BaseURL string
}

// Client is a minimal Bot API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	uploads    *http.Client
	limiter    *rate.Limiter
	attempts   int
	sleeper    func(context.Context, time.Duration) error
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client for both regular calls and uploads.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
			c.uploads = client
		}
	}
}

// WithRateLimiter throttles outgoing send calls. getUpdates is never throttled.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithSendAttempts overrides how many times a send is tried on 429/5xx.
func WithSendAttempts(attempts int) Option {
	return func(c *Client) {
		c.attempts = attempts
	}
}

// WithSleeper overrides how retry waits are performed (tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient builds a client for the given bot token.
func NewClient(cfg Config, opts ...Option) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		token:      strings.TrimSpace(cfg.Token),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		uploads:    &http.Client{Timeout: uploadHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultSendRate), defaultSendBurst),
		attempts:   defaultSendAttempts,
		sleeper:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) endpoint(method string) string {
	return c.baseURL + "/bot" + c.token + "/" + method
}

// GetMe returns the bot's own user. Used as a token check.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var user User
	err := c.callJSON(ctx, c.httpClient, "getMe", struct{}{}, &user)
	return user, err
}

// GetUpdates long-polls for updates after offset. The HTTP timeout is
// stretched past the poll timeout so the server answers first.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	payload := struct {
		Offset         int64    `json:"offset,omitempty"`
		Timeout        int      `json:"timeout"`
		AllowedUpdates []string `json:"allowed_updates"`
	}{
		Offset:         offset,
		Timeout:        int(timeout / time.Second),
		AllowedUpdates: []string{"message"},
	}
	client := c.httpClient
	if client.Timeout > 0 && client.Timeout <= timeout {
		stretched := *client
		stretched.Timeout = timeout + 10*time.Second
		client = &stretched
	}
	var updates []Update
	if err := c.callJSON(ctx, client, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessageParams mirrors the sendMessage fields the bot uses.
type SendMessageParams struct {
	ChatID             int64  `json:"chat_id"`
	Text               string `json:"text"`
	ParseMode          string `json:"parse_mode,omitempty"`
	ReplyToMessageID   int64  `json:"reply_to_message_id,omitempty"`
	DisableLinkPreview bool   `json:"disable_web_page_preview,omitempty"`
}

// SendMessage posts a text message.
func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (Message, error) {
	var msg Message
	err := c.withRetry(ctx, func() error {
		return c.callJSON(ctx, c.httpClient, "sendMessage", params, &msg)
	})
	return msg, err
}

// SendVideoParams describes a sendVideo upload.
type SendVideoParams struct {
	ChatID            int64
	Path              string
	Caption           string
	ReplyToMessageID  int64
	SupportsStreaming bool
}

// SendVideo uploads a local file as multipart form data.
func (c *Client) SendVideo(ctx context.Context, params SendVideoParams) (Message, error) {
	var msg Message
	err := c.withRetry(ctx, func() error {
		body, contentType, err := videoForm(params)
		if err != nil {
			return err
		}
		return c.call(ctx, c.uploads, "sendVideo", body, contentType, &msg)
	})
	return msg, err
}

func videoForm(params SendVideoParams) (*bytes.Buffer, string, error) {
	file, err := os.Open(params.Path)
	if err != nil {
		return nil, "", fmt.Errorf("telegram sendVideo: open video: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fields := map[string]string{
		"chat_id": strconv.FormatInt(params.ChatID, 10),
	}
	if params.SupportsStreaming {
		fields["supports_streaming"] = "true"
	}
	if params.Caption != "" {
		fields["caption"] = params.Caption
	}
	if params.ReplyToMessageID != 0 {
		fields["reply_to_message_id"] = strconv.FormatInt(params.ReplyToMessageID, 10)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("telegram sendVideo: write field %s: %w", key, err)
		}
	}
	part, err := writer.CreateFormFile("video", filepath.Base(params.Path))
	if err != nil {
		return nil, "", fmt.Errorf("telegram sendVideo: create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("telegram sendVideo: copy video: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("telegram sendVideo: close form: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

func (c *Client) withRetry(ctx context.Context, op func() error) error {
	attempts := max(1, c.attempts)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("telegram: rate limit wait: %w", err)
			}
		}
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable() || attempt == attempts {
			return err
		}
		delay := apiErr.RetryAfter
		if delay <= 0 {
			delay = time.Duration(attempt) * time.Second
		}
		if err := c.sleeper(ctx, min(delay, maxRetryAfter)); err != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) callJSON(ctx context.Context, client *http.Client, method string, payload, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: encode body: %w", method, err)
	}
	return c.call(ctx, client, method, bytes.NewReader(encoded), "application/json", out)
}

func (c *Client) call(ctx context.Context, client *http.Client, method string, body io.Reader, contentType string, out any) error {
	if c.token == "" {
		return fmt.Errorf("telegram %s: bot token not configured", method)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), body)
	if err != nil {
		return fmt.Errorf("telegram %s: new request: %w", method, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		// The request URL embeds the token; keep it out of error text.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram %s: http error: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram %s: read body: %w", method, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusMultipleChoices {
			return &APIError{Method: method, Code: resp.StatusCode, Description: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	if !env.OK {
		apiErr := &APIError{Method: method, Code: env.ErrorCode, Description: env.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(env.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
