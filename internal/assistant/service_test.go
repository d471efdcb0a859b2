package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/healingherb/shifa/internal/gemini"
	"github.com/healingherb/shifa/internal/observability"
	"github.com/healingherb/shifa/internal/ratelimit"
	"github.com/healingherb/shifa/internal/store"
)

var metricsSeq atomic.Int64

func newTestMetrics() *observability.Metrics {
	return observability.NewMetrics(fmt.Sprintf("test_assistant_%d", metricsSeq.Add(1)))
}

type stubClient struct {
	completion gemini.Completion
	err        error
	gotCalls   [][]gemini.Message
}

func (c *stubClient) Complete(_ context.Context, messages []gemini.Message, _ string, _ float64) (gemini.Completion, error) {
	copied := make([]gemini.Message, len(messages))
	copy(copied, messages)
	c.gotCalls = append(c.gotCalls, copied)
	if c.err != nil {
		return gemini.Completion{}, c.err
	}
	return c.completion, nil
}

func newTestService(t *testing.T, client gemini.Client, limit int) (*Service, *store.InMemoryStore, string) {
	t.Helper()
	st := store.NewInMemoryStore()
	user, err := st.CreateUser(context.Background(), store.User{
		Username: "ahmad",
		Email:    "ahmad@example.com",
		Diseases: "السكري",
	})
	require.NoError(t, err)

	limiter := ratelimit.NewLimiter(limit, time.Minute)
	svc := NewService(st, limiter, client, newTestMetrics(), Options{HistoryPairs: 3})
	return svc, st, user.ID
}

func TestChatSuccess(t *testing.T) {
	client := &stubClient{completion: gemini.Completion{Text: "إجابة مفيدة", TokensUsed: 42}}
	svc, st, userID := newTestService(t, client, 10)

	result, err := svc.Chat(context.Background(), userID, ChatRequest{Message: "ما هي فوائد الزنجبيل؟"})
	require.NoError(t, err)
	require.Equal(t, "إجابة مفيدة", result.Response)
	require.Equal(t, 42, result.TokensUsed)
	require.Equal(t, "gemini-2.5-flash", result.Model)
	require.False(t, result.IsEmergency)
	require.NotEmpty(t, result.MessageID)
	require.Equal(t, 9, result.RateRemaining)

	turns, err := st.RecentTurns(context.Background(), userID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, "ما هي فوائد الزنجبيل؟", turns[0].Prompt)
	require.Equal(t, "إجابة مفيدة", turns[0].Response)
	require.Equal(t, 42, turns[0].TokensUsed)
}

func TestChatUpstreamFailurePersistsFallbackTurn(t *testing.T) {
	client := &stubClient{err: &gemini.UpstreamError{Reason: gemini.ReasonTimeout, Err: errors.New("deadline exceeded")}}
	svc, st, userID := newTestService(t, client, 10)

	result, err := svc.Chat(context.Background(), userID, ChatRequest{Message: "لدي نزيف حاد"})
	require.NoError(t, err, "upstream failures must not surface to the caller")
	require.True(t, result.IsEmergency)
	require.Equal(t, FallbackResponse(true), result.Response)
	require.Greater(t, result.TokensUsed, 0)

	turns, err := st.RecentTurns(context.Background(), userID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1, "fallback exchanges persist exactly one turn")
	require.Equal(t, "لدي نزيف حاد", turns[0].Prompt)
	require.Equal(t, FallbackResponse(true), turns[0].Response)
}

func TestChatUpstreamFailureGenericFallback(t *testing.T) {
	client := &stubClient{err: &gemini.UpstreamError{Reason: gemini.ReasonStatus, Err: errors.New("status 500")}}
	svc, _, userID := newTestService(t, client, 10)

	result, err := svc.Chat(context.Background(), userID, ChatRequest{Message: "ما هي فوائد النعناع؟"})
	require.NoError(t, err)
	require.False(t, result.IsEmergency)
	require.Equal(t, FallbackResponse(false), result.Response)
}

func TestChatEmergencyNoticeOnSuccess(t *testing.T) {
	client := &stubClient{completion: gemini.Completion{Text: "اشرب الماء وارتح.", TokensUsed: 5}}
	svc, _, userID := newTestService(t, client, 10)

	result, err := svc.Chat(context.Background(), userID, ChatRequest{Message: "أعاني من نزيف"})
	require.NoError(t, err)
	require.True(t, result.IsEmergency)
	require.Contains(t, result.Response, "🚨")
	require.Contains(t, result.Response, "اشرب الماء وارتح.")
}

func TestChatRateLimitedPersistsNothing(t *testing.T) {
	client := &stubClient{completion: gemini.Completion{Text: "جواب", TokensUsed: 1}}
	svc, st, userID := newTestService(t, client, 1)

	_, err := svc.Chat(context.Background(), userID, ChatRequest{Message: "سؤال أول"})
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), userID, ChatRequest{Message: "سؤال ثاني"})
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	require.Greater(t, rle.ResetAfter, time.Duration(0))

	turns, err := st.RecentTurns(context.Background(), userID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1, "rejected requests must not persist a turn")
}

func TestChatEmptyMessage(t *testing.T) {
	client := &stubClient{}
	svc, _, userID := newTestService(t, client, 10)

	_, err := svc.Chat(context.Background(), userID, ChatRequest{Message: "   \n"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Empty(t, client.gotCalls, "invalid requests must not reach the provider")
}

func TestChatRateCheckPrecedesValidation(t *testing.T) {
	client := &stubClient{completion: gemini.Completion{Text: "جواب", TokensUsed: 1}}
	svc, _, userID := newTestService(t, client, 2)

	_, err := svc.Chat(context.Background(), userID, ChatRequest{Message: "  "})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve, "empty message inside the window is a validation error")

	_, err = svc.Chat(context.Background(), userID, ChatRequest{Message: "سؤال"})
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), userID, ChatRequest{Message: "سؤال آخر"})
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle, "the rejected empty message must have consumed quota")

	_, err = svc.Chat(context.Background(), userID, ChatRequest{Message: "   "})
	require.ErrorAs(t, err, &rle, "an exhausted window rejects before validation runs")
}

func TestChatUnknownUser(t *testing.T) {
	client := &stubClient{}
	svc, _, _ := newTestService(t, client, 10)

	_, err := svc.Chat(context.Background(), "missing-user", ChatRequest{Message: "مرحبا"})
	var nfe *NotFoundError
	require.ErrorAs(t, err, &nfe)
}

func TestChatPromptBoundsHistory(t *testing.T) {
	client := &stubClient{completion: gemini.Completion{Text: "جواب", TokensUsed: 1}}
	svc, st, userID := newTestService(t, client, 10)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := st.SaveTurn(context.Background(), store.ChatTurn{
			UserID:    userID,
			Prompt:    fmt.Sprintf("سؤال %d", i),
			Response:  fmt.Sprintf("جواب %d", i),
			Model:     "m",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	_, err := svc.Chat(context.Background(), userID, ChatRequest{Message: "سؤال جديد"})
	require.NoError(t, err)

	require.Len(t, client.gotCalls, 1)
	messages := client.gotCalls[0]
	// One system message, three newest pairs, then the new message.
	require.Len(t, messages, 1+3*2+1)
	require.Equal(t, gemini.RoleSystem, messages[0].Role)
	require.Equal(t, "سؤال 2", messages[1].Content)
	require.Equal(t, "سؤال 4", messages[5].Content)
	require.Equal(t, "سؤال جديد", messages[len(messages)-1].Content)
}

func TestChatRedactsOutboundOnly(t *testing.T) {
	client := &stubClient{completion: gemini.Completion{Text: "جواب", TokensUsed: 1}}
	svc, st, userID := newTestService(t, client, 10)

	message := "راسلني على ahmad@example.com"
	_, err := svc.Chat(context.Background(), userID, ChatRequest{Message: message})
	require.NoError(t, err)

	sent := client.gotCalls[0]
	require.Contains(t, sent[len(sent)-1].Content, "[REDACTED_EMAIL]")

	turns, err := st.RecentTurns(context.Background(), userID, 1)
	require.NoError(t, err)
	require.Equal(t, message, turns[0].Prompt, "stored turn keeps the user's text verbatim")
}

func TestClearHistoryValidation(t *testing.T) {
	svc, _, userID := newTestService(t, &stubClient{}, 10)

	_, err := svc.ClearHistory(context.Background(), userID, false, nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	bad := 0
	_, err = svc.ClearHistory(context.Background(), userID, true, &bad)
	require.ErrorAs(t, err, &ve)
}

func TestClearHistoryOlderThanDays(t *testing.T) {
	svc, st, userID := newTestService(t, &stubClient{}, 10)
	now := time.Now().UTC()

	for _, age := range []int{-40, -35, -2} {
		_, err := st.SaveTurn(context.Background(), store.ChatTurn{
			UserID: userID, Prompt: "q", Response: "a", Model: "m",
			CreatedAt: now.AddDate(0, 0, age),
		})
		require.NoError(t, err)
	}

	days := 30
	deleted, err := svc.ClearHistory(context.Background(), userID, true, &days)
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	deleted, err = svc.ClearHistory(context.Background(), userID, true, &days)
	require.NoError(t, err)
	require.Equal(t, int64(0), deleted, "no rows older than the cutoff remain")
}

func TestSubmitFeedback(t *testing.T) {
	svc, st, userID := newTestService(t, &stubClient{}, 10)

	turn, err := st.SaveTurn(context.Background(), store.ChatTurn{UserID: userID, Prompt: "q", Response: "a", Model: "m"})
	require.NoError(t, err)

	saved, err := svc.SubmitFeedback(context.Background(), userID, store.Feedback{
		MessageID: turn.ID, Rating: 5, Helpful: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	require.Equal(t, userID, saved.UserID)

	_, err = svc.SubmitFeedback(context.Background(), userID, store.Feedback{MessageID: "missing", Rating: 4})
	var nfe *NotFoundError
	require.ErrorAs(t, err, &nfe)

	_, err = svc.SubmitFeedback(context.Background(), userID, store.Feedback{MessageID: turn.ID, Rating: 9})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestStats(t *testing.T) {
	svc, st, userID := newTestService(t, &stubClient{}, 10)

	_, err := st.SaveTurn(context.Background(), store.ChatTurn{UserID: userID, Prompt: "q", Response: "a", Model: "m", TokensUsed: 11})
	require.NoError(t, err)

	stats, err := svc.Stats(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.TotalMessages)
	require.Equal(t, int64(11), stats.TotalTokens)
	require.Equal(t, 10, stats.RateLimit)
}
