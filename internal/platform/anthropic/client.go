package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/dialogforge-backend/internal/platform/httpx"
	"github.com/yungbote/dialogforge-backend/internal/platform/logger"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultVersion = "2023-06-01"
	DefaultModel   = "claude-3-5-sonnet-latest"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type MessagesRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

type errorEnvelope struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// MessagesResponse is the decoded result of one successful call. Payload is the exact body sent.
type MessagesResponse struct {
	Text       string
	Model      string
	StopReason string
	Usage      Usage
	Payload    []byte
}

type Config struct {
	APIKey         string
	BaseURL        string
	Version        string
	Model          string
	MaxTokens      int
	ConnectTimeout time.Duration
	Timeout        time.Duration
	MaxRetries     int
	MaxRetrySleep  time.Duration
}

type Client interface {
	Model() string
	Messages(ctx context.Context, req MessagesRequest) (*MessagesResponse, error)
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxRetrySleep <= 0 {
		cfg.MaxRetrySleep = 10 * time.Second
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout

	return &client{
		log:        log.With("client", "AnthropicClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		tracer:     otel.Tracer("dialogforge/anthropic"),
	}, nil
}

func (c *client) Model() string { return c.cfg.Model }

func (c *client) Messages(ctx context.Context, req MessagesRequest) (*MessagesResponse, error) {
	if req.Model == "" {
		req.Model = c.cfg.Model
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = c.cfg.MaxTokens
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode messages request: %w", err)
	}

	ctx, span := c.tracer.Start(ctx, "anthropic.messages", trace.WithAttributes(
		attribute.String("llm.model", req.Model),
		attribute.Int("llm.messages", len(req.Messages)),
	))
	defer span.End()

	raw, err := c.doWithRetry(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var out messagesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		ierr := &Error{Kind: KindInvalidResponse, Message: "decode response: " + err.Error(), Err: err}
		span.SetStatus(codes.Error, ierr.Error())
		return nil, ierr
	}
	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		ierr := &Error{Kind: KindInvalidResponse, Message: "response contained no text content"}
		span.SetStatus(codes.Error, ierr.Error())
		return nil, ierr
	}

	span.SetAttributes(
		attribute.Int("llm.input_tokens", out.Usage.InputTokens),
		attribute.Int("llm.output_tokens", out.Usage.OutputTokens),
	)
	return &MessagesResponse{
		Text:       text.String(),
		Model:      out.Model,
		StopReason: out.StopReason,
		Usage:      out.Usage,
		Payload:    payload,
	}, nil
}

func (c *client) doOnce(ctx context.Context, payload []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, nil, &Error{Kind: KindTransport, Message: err.Error(), Err: err}
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", c.cfg.Version)
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &Error{Kind: KindTransport, Message: err.Error(), Err: err}
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, &Error{Kind: KindTransport, StatusCode: resp.StatusCode, Message: readErr.Error(), Err: readErr}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, statusError(resp.StatusCode, raw)
	}
	return resp, raw, nil
}

func statusError(status int, raw []byte) *Error {
	var env errorEnvelope
	_ = json.Unmarshal(raw, &env)
	msg := strings.TrimSpace(env.Error.Message)
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{
		Kind:       kindForStatus(status, env.Error.Type),
		StatusCode: status,
		Type:       env.Error.Type,
		Message:    msg,
	}
}

func (c *client) doWithRetry(ctx context.Context, payload []byte) ([]byte, error) {
	backoff := 1 * time.Second
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, &Error{Kind: KindTransport, Message: ctx.Err().Error(), Err: ctx.Err()}
		}
		resp, raw, err := c.doOnce(ctx, payload)
		if err == nil {
			return raw, nil
		}
		if !retryable(err) || attempt == c.cfg.MaxRetries {
			return nil, err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, c.cfg.MaxRetrySleep))
		c.log.Warn("Anthropic request retrying",
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if serr := httpx.Sleep(ctx, sleepFor); serr != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("unreachable retry loop")
}

func retryable(err error) bool {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind == KindTransport && ae.Err != nil {
		return httpx.IsRetryableError(ae.Err)
	}
	return httpx.IsRetryableError(err)
}
