package gemini

import (
	"context"
	"fmt"
	"strings"
)

// MockClient provides deterministic local replies when no API key is
// configured.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Complete(ctx context.Context, messages []Message, model string, _ float64) (Completion, error) {
	select {
	case <-ctx.Done():
		return Completion{}, &UpstreamError{Reason: ReasonTimeout, Err: ctx.Err()}
	default:
	}

	text := buildMockReply(messages)
	return Completion{
		Text:            text,
		TokensUsed:      EstimateTokens(messages, text),
		TokensEstimated: true,
	}, nil
}

func buildMockReply(messages []Message) string {
	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			last = strings.TrimSpace(messages[i].Content)
			break
		}
	}
	if last == "" {
		return "أنا أستمع إليك."
	}
	return fmt.Sprintf("سمعتك تقول: %s\nهذه إجابة تجريبية، يرجى استشارة الطبيب للمعلومات الدقيقة.", last)
}
