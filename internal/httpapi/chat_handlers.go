package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/healingherb/shifa/internal/assistant"
	"github.com/healingherb/shifa/internal/store"
)

type chatRequest struct {
	Message     string   `json:"message"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "صيغة الطلب غير صحيحة")
		return
	}

	temperature := 0.0
	if req.Temperature != nil {
		if *req.Temperature < 0.1 || *req.Temperature > 2.0 {
			respondError(w, http.StatusBadRequest, "درجة الحرارة يجب أن تكون بين 0.1 و 2.0")
			return
		}
		temperature = *req.Temperature
	}

	result, err := s.assistant.Chat(r.Context(), claims.UserID, assistant.ChatRequest{
		Message:     req.Message,
		Model:       req.Model,
		Temperature: temperature,
	})
	if err != nil {
		var rateLimited *assistant.RateLimitError
		if errors.As(err, &rateLimited) {
			if snap, ok := s.assistant.RateSnapshot(claims.UserID); ok {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(snap.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(snap.Remaining))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(snap.ResetAt.Unix(), 10))
			}
			respondError(w, http.StatusTooManyRequests, rateLimited.Error())
			return
		}
		s.respondServiceError(w, err)
		return
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.assistant.RateLimit()))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.RateRemaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(result.RateResetAfter).Unix(), 10))

	respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Data: map[string]any{
			"response":     result.Response,
			"message_id":   result.MessageID,
			"tokens_used":  result.TokensUsed,
			"model":        result.Model,
			"timestamp":    result.Timestamp.UTC().Format(time.RFC3339),
			"is_emergency": result.IsEmergency,
		},
		Meta: map[string]any{
			"rate_limit": map[string]any{
				"remaining":   result.RateRemaining,
				"reset_after": int(result.RateResetAfter.Seconds()),
			},
		},
	})
}

// handleChatGet preserves the mobile clients' expectation that GET on the
// chat endpoint returns a JSON error rather than a 405.
func (s *Server) handleChatGet(w http.ResponseWriter, _ *http.Request) {
	respondError(w, http.StatusBadRequest, "الطلب غير متاح. استخدم POST لإرسال رسالة")
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	q := r.URL.Query()

	filter := store.HistoryFilter{
		Search:    q.Get("search"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	if raw := q.Get("start_date"); raw != "" {
		from, err := parseDate(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "تاريخ البداية غير صالح")
			return
		}
		filter.From = &from
	}
	if raw := q.Get("end_date"); raw != "" {
		to, err := parseDate(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "تاريخ النهاية غير صالح")
			return
		}
		filter.To = &to
	}

	turns, total, err := s.assistant.History(r.Context(), claims.UserID, filter)
	if err != nil {
		log.Printf("history: %v", err)
		respondError(w, http.StatusInternalServerError, "حدث خطأ أثناء جلب المحادثات")
		return
	}
	if turns == nil {
		turns = []store.ChatTurn{}
	}

	pages := (total + int64(filter.Limit) - 1) / int64(filter.Limit)
	respondData(w, http.StatusOK, map[string]any{
		"conversations": turns,
		"pagination": map[string]any{
			"page":  filter.Page,
			"limit": filter.Limit,
			"total": total,
			"pages": pages,
		},
	})
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

type clearHistoryRequest struct {
	Confirm       bool `json:"confirm"`
	OlderThanDays *int `json:"older_than_days"`
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req clearHistoryRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "صيغة الطلب غير صحيحة")
		return
	}

	deleted, err := s.assistant.ClearHistory(r.Context(), claims.UserID, req.Confirm, req.OlderThanDays)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "تم حذف سجل المحادثات بنجاح",
		Data:    map[string]any{"deleted_count": deleted},
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	stats, err := s.assistant.Stats(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("stats: %v", err)
		respondError(w, http.StatusInternalServerError, "حدث خطأ أثناء جلب الإحصائيات")
		return
	}

	respondData(w, http.StatusOK, map[string]any{
		"total_messages": stats.TotalMessages,
		"total_tokens":   stats.TotalTokens,
		"today_messages": stats.TodayMessages,
		"today_tokens":   stats.TodayTokens,
		"rate_limit": map[string]any{
			"limit":          stats.RateLimit,
			"window_minutes": stats.WindowMinutes,
			"description":    "عدد الرسائل المسموح به خلال النافذة الزمنية",
		},
	})
}

type feedbackRequest struct {
	MessageID string `json:"message_id"`
	Rating    int    `json:"rating"`
	Feedback  string `json:"feedback"`
	Helpful   bool   `json:"helpful"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "صيغة الطلب غير صحيحة")
		return
	}
	if _, err := uuid.Parse(req.MessageID); err != nil {
		respondError(w, http.StatusBadRequest, "معرف الرسالة غير صالح")
		return
	}

	fb, err := s.assistant.SubmitFeedback(r.Context(), claims.UserID, store.Feedback{
		UserID:    claims.UserID,
		MessageID: req.MessageID,
		Rating:    req.Rating,
		Comment:   req.Feedback,
		Helpful:   req.Helpful,
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "شكراً لك على تقييمك",
		Data:    map[string]any{"feedback_id": fb.ID},
	})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	respondData(w, http.StatusOK, map[string]any{
		"models":                  s.assistant.Models(),
		"default_model":           s.assistant.DefaultModel(),
		"max_tokens_per_request":  s.cfg.AIMaxTokens,
		"recommended_for_medical": s.assistant.DefaultModel(),
	})
}

func (s *Server) handleAIHealth(w http.ResponseWriter, r *http.Request) {
	database := "connected"
	if _, err := s.store.ChatStats(r.Context(), claimsFrom(r).UserID, time.Now().UTC()); err != nil {
		database = "unavailable"
	}

	geminiStatus := "configured"
	if s.cfg.GeminiAPIKey == "" {
		geminiStatus = "not_configured"
	}

	respondData(w, http.StatusOK, map[string]any{
		"service": "ai-assistant",
		"status":  "operational",
		"components": map[string]any{
			"database":      database,
			"gemini_api":    geminiStatus,
			"rate_limiting": "active",
			"default_model": s.assistant.DefaultModel(),
		},
	})
}

// respondServiceError translates assistant error types into HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	var validation *assistant.ValidationError
	var notFound *assistant.NotFoundError
	var rateLimited *assistant.RateLimitError

	switch {
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, validation.Message)
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, notFound.Message)
	case errors.As(err, &rateLimited):
		respondError(w, http.StatusTooManyRequests, rateLimited.Error())
	default:
		log.Printf("chat service error: %v", err)
		respondError(w, http.StatusInternalServerError, "حدث خطأ أثناء معالجة طلبك. يرجى المحاولة مرة أخرى")
	}
}
