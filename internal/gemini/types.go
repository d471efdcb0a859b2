package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Message roles mirror the chat completion convention; the HTTP client maps
// them onto Gemini's content shape.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of an ordered prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the result of one provider call. TokensEstimated marks
// counts approximated from word counts rather than the provider's usage
// report; callers must not treat those as billing-accurate.
type Completion struct {
	Text            string
	TokensUsed      int
	TokensEstimated bool
}

// Client executes a single completion attempt. Implementations do not retry.
type Client interface {
	Complete(ctx context.Context, messages []Message, model string, temperature float64) (Completion, error)
}

// Failure reasons used for metrics labels.
const (
	ReasonTimeout   = "timeout"
	ReasonTransport = "transport"
	ReasonStatus    = "status"
	ReasonDecode    = "decode"
	ReasonEmpty     = "empty"
)

// UpstreamError describes a failed provider call.
type UpstreamError struct {
	Reason string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("gemini: upstream failure (%s)", e.Reason)
	}
	return fmt.Sprintf("gemini: upstream failure (%s): %v", e.Reason, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// FailureReason extracts the metrics label from an upstream error.
func FailureReason(err error) string {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Reason
	}
	return ReasonTransport
}

// Config controls client construction.
type Config struct {
	Mode            string
	APIKey          string
	BaseURL         string
	MaxOutputTokens int
	Timeout         time.Duration
}

// NewClient builds a provider client for the configured mode. In auto mode
// the real Gemini client is used when an API key is present, otherwise the
// deterministic mock.
func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewHTTPClient(cfg), nil
		}
		return NewMockClient(), nil
	case "gemini":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("gemini: API key is required for gemini mode")
		}
		return NewHTTPClient(cfg), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("gemini: unsupported client mode %q", cfg.Mode)
	}
}
