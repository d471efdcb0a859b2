package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// generateRequest is the minimal request shape for the generateContent
// endpoint.
type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
	SafetySettings   []safetySetting  `json:"safetySettings"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// generateResponse is the minimal response shape returned by
// generateContent.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// HTTPClient calls the Gemini generateContent endpoint. One attempt per
// request, bounded by the configured timeout; no retry, no backoff.
type HTTPClient struct {
	baseURL         string
	apiKey          string
	maxOutputTokens int
	client          *http.Client
}

func NewHTTPClient(cfg Config) *HTTPClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:         baseURL,
		apiKey:          cfg.APIKey,
		maxOutputTokens: maxTokens,
		client:          &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Complete(ctx context.Context, messages []Message, model string, temperature float64) (Completion, error) {
	payload, err := json.Marshal(generateRequest{
		Contents:         buildContents(messages),
		GenerationConfig: generationConfig{Temperature: temperature, MaxOutputTokens: c.maxOutputTokens, TopP: 0.95, TopK: 40},
		SafetySettings:   defaultSafetySettings(),
	})
	if err != nil {
		return Completion{}, &UpstreamError{Reason: ReasonDecode, Err: fmt.Errorf("marshal request: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(model), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Completion{}, &UpstreamError{Reason: ReasonTransport, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		reason := ReasonTransport
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			reason = ReasonTimeout
		} else if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		return Completion{}, &UpstreamError{Reason: reason, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Completion{}, &UpstreamError{
			Reason: ReasonStatus,
			Err:    fmt.Errorf("status %d: %s", res.StatusCode, string(body)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Completion{}, &UpstreamError{Reason: ReasonTransport, Err: fmt.Errorf("read response: %w", err)}
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Completion{}, &UpstreamError{Reason: ReasonDecode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return Completion{}, &UpstreamError{Reason: ReasonEmpty, Err: errors.New("no candidates in response")}
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return Completion{}, &UpstreamError{Reason: ReasonEmpty, Err: errors.New("empty candidate text")}
	}

	completion := Completion{Text: text}
	if parsed.UsageMetadata.TotalTokenCount > 0 {
		completion.TokensUsed = parsed.UsageMetadata.TotalTokenCount
	} else {
		completion.TokensUsed = EstimateTokens(messages, text)
		completion.TokensEstimated = true
	}
	return completion, nil
}

// buildContents maps chat-style messages onto Gemini's content list. The
// system instruction is folded into a leading role-less entry; assistant
// turns become the "model" role.
func buildContents(messages []Message) []content {
	var system strings.Builder
	contents := make([]content, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
		case RoleAssistant:
			contents = append(contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			contents = append(contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}

	if system.Len() > 0 {
		contents = append([]content{{Parts: []part{{Text: system.String()}}}}, contents...)
	}
	return contents
}

func defaultSafetySettings() []safetySetting {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}
	settings := make([]safetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, safetySetting{Category: c, Threshold: "BLOCK_MEDIUM_AND_ABOVE"})
	}
	return settings
}

// EstimateTokens approximates token usage as the whitespace-delimited word
// count of the prompt and completion combined.
func EstimateTokens(messages []Message, completionText string) int {
	total := len(strings.Fields(completionText))
	for _, m := range messages {
		total += len(strings.Fields(m.Content))
	}
	return total
}
