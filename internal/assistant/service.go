package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/healingherb/shifa/internal/gemini"
	"github.com/healingherb/shifa/internal/observability"
	"github.com/healingherb/shifa/internal/policy"
	"github.com/healingherb/shifa/internal/ratelimit"
	"github.com/healingherb/shifa/internal/store"
)

const defaultTemperature = 0.7

// Options configures the gateway service.
type Options struct {
	DefaultModel string
	HistoryPairs int
}

// Service is the AI conversation gateway: it admits requests through the
// rate limiter, assembles a bounded prompt from stored history and the user
// profile, executes one completion attempt, and persists the exchange.
type Service struct {
	store   store.Store
	limiter *ratelimit.Limiter
	client  gemini.Client
	metrics *observability.Metrics

	defaultModel string
	historyPairs int
}

func NewService(st store.Store, limiter *ratelimit.Limiter, client gemini.Client, metrics *observability.Metrics, opts Options) *Service {
	model := strings.TrimSpace(opts.DefaultModel)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	pairs := opts.HistoryPairs
	if pairs < 0 {
		pairs = 0
	}
	return &Service{
		store:        st,
		limiter:      limiter,
		client:       client,
		metrics:      metrics,
		defaultModel: model,
		historyPairs: pairs,
	}
}

// ChatRequest carries one inbound chat message.
type ChatRequest struct {
	Message     string
	Model       string
	Temperature float64
}

// ChatResult is the outcome of one completed exchange.
type ChatResult struct {
	Response    string
	MessageID   string
	TokensUsed  int
	Model       string
	Timestamp   time.Time
	IsEmergency bool

	RateRemaining  int
	RateResetAfter time.Duration
}

// Chat runs the full gateway flow for one user message. Upstream failures
// are absorbed into a fallback response and still persist a turn; rejected
// requests persist nothing.
func (s *Service) Chat(ctx context.Context, userID string, req ChatRequest) (ChatResult, error) {
	decision := s.limiter.Check(userID)
	s.metrics.ActiveRateWindows.Set(float64(s.limiter.ActiveWindows()))
	if !decision.Allowed {
		s.metrics.RateLimited.Inc()
		s.metrics.ChatRequests.WithLabelValues("rate_limited").Inc()
		return ChatResult{}, &RateLimitError{ResetAfter: decision.ResetAfter}
	}

	// Admission precedes validation, so malformed requests consume quota.
	message := SanitizeMessage(req.Message)
	if message == "" {
		s.metrics.ChatRequests.WithLabelValues("invalid").Inc()
		return ChatResult{}, &ValidationError{Message: "الرسالة لا يمكن أن تكون فارغة"}
	}

	profile, err := s.store.Profile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ChatResult{}, &NotFoundError{Message: "المستخدم غير موجود"}
	}
	if err != nil {
		return ChatResult{}, fmt.Errorf("load profile: %w", err)
	}

	// Each stored turn is one user/assistant pair, so historyPairs rows
	// expand into at most twice that many prompt messages.
	history, err := s.store.RecentTurns(ctx, userID, s.historyPairs)
	if err != nil {
		return ChatResult{}, fmt.Errorf("load recent turns: %w", err)
	}

	isEmergency := ContainsEmergencyKeyword(message)
	messages := AssemblePrompt(profile, history, message)

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.defaultModel
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	var (
		response string
		tokens   int
		outcome  string
	)

	start := time.Now()
	completion, err := s.client.Complete(ctx, redactMessages(messages), model, temperature)
	s.metrics.ObserveUpstreamLatency(time.Since(start))
	if err != nil {
		log.Printf("completion call failed for user %s: %v", userID, err)
		s.metrics.UpstreamFailures.WithLabelValues(gemini.FailureReason(err)).Inc()
		response = FallbackResponse(isEmergency)
		tokens = gemini.EstimateTokens([]gemini.Message{{Role: gemini.RoleUser, Content: message}}, response)
		outcome = "fallback"
	} else {
		response = completion.Text
		if isEmergency {
			response = EnsureEmergencyNotice(response)
		}
		tokens = completion.TokensUsed
		outcome = "ok"
	}

	turn, err := s.store.SaveTurn(ctx, store.ChatTurn{
		UserID:     userID,
		Prompt:     message,
		Response:   response,
		Model:      model,
		TokensUsed: tokens,
	})
	if err != nil {
		return ChatResult{}, fmt.Errorf("persist chat turn: %w", err)
	}

	s.metrics.ChatRequests.WithLabelValues(outcome).Inc()
	s.metrics.TokensUsed.Add(float64(tokens))

	return ChatResult{
		Response:       response,
		MessageID:      turn.ID,
		TokensUsed:     tokens,
		Model:          model,
		Timestamp:      turn.CreatedAt,
		IsEmergency:    isEmergency,
		RateRemaining:  decision.Remaining,
		RateResetAfter: decision.ResetAfter,
	}, nil
}

// RateLimit returns the per-window request cap.
func (s *Service) RateLimit() int {
	return s.limiter.Limit()
}

// RateSnapshot exposes the user's current window for response headers.
func (s *Service) RateSnapshot(userID string) (ratelimit.Snapshot, bool) {
	return s.limiter.Snapshot(userID)
}

// History lists a user's stored turns with filters and paging.
func (s *Service) History(ctx context.Context, userID string, filter store.HistoryFilter) ([]store.ChatTurn, int64, error) {
	turns, total, err := s.store.ListTurns(ctx, userID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list turns: %w", err)
	}
	return turns, total, nil
}

// ClearHistory purges a user's turns, optionally limited to rows older than
// the given number of days.
func (s *Service) ClearHistory(ctx context.Context, userID string, confirm bool, olderThanDays *int) (int64, error) {
	if !confirm {
		return 0, &ValidationError{Message: "يرجى التأكيد على رغبتك في مسح سجل المحادثة"}
	}

	var cutoff *time.Time
	if olderThanDays != nil {
		if *olderThanDays < 1 || *olderThanDays > 365 {
			return 0, &ValidationError{Message: "عدد الأيام يجب أن يكون بين 1 و 365"}
		}
		t := time.Now().UTC().AddDate(0, 0, -*olderThanDays)
		cutoff = &t
	}

	deleted, err := s.store.ClearTurns(ctx, userID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("clear turns: %w", err)
	}
	return deleted, nil
}

// UsageStats aggregates chat usage plus the limiter configuration.
type UsageStats struct {
	store.ChatStats
	RateLimit     int
	WindowMinutes int
}

func (s *Service) Stats(ctx context.Context, userID string) (UsageStats, error) {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	stats, err := s.store.ChatStats(ctx, userID, dayStart)
	if err != nil {
		return UsageStats{}, fmt.Errorf("chat stats: %w", err)
	}
	return UsageStats{
		ChatStats:     stats,
		RateLimit:     s.limiter.Limit(),
		WindowMinutes: int(s.limiter.Period().Minutes()),
	}, nil
}

// SubmitFeedback records a rating for one of the user's own messages.
func (s *Service) SubmitFeedback(ctx context.Context, userID string, fb store.Feedback) (store.Feedback, error) {
	if fb.Rating < 1 || fb.Rating > 5 {
		return store.Feedback{}, &ValidationError{Message: "التقييم يجب أن يكون بين 1 و 5"}
	}

	ok, err := s.store.TurnExists(ctx, fb.MessageID, userID)
	if err != nil {
		return store.Feedback{}, fmt.Errorf("lookup message: %w", err)
	}
	if !ok {
		return store.Feedback{}, &NotFoundError{Message: "الرسالة غير موجودة أو لا تملك صلاحية الوصول"}
	}

	fb.UserID = userID
	saved, err := s.store.SaveFeedback(ctx, fb)
	if err != nil {
		return store.Feedback{}, fmt.Errorf("save feedback: %w", err)
	}
	return saved, nil
}

func redactMessages(messages []gemini.Message) []gemini.Message {
	out := make([]gemini.Message, len(messages))
	for i, m := range messages {
		redacted, _ := policy.RedactPII(m.Content)
		out[i] = gemini.Message{Role: m.Role, Content: redacted}
	}
	return out
}
