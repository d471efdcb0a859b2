package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique constraint would be violated.
var ErrDuplicate = errors.New("record already exists")

// ChatTurn is one persisted user/assistant exchange. Prompt and response are
// written together after the completion resolves, never separately.
type ChatTurn struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Prompt     string    `json:"message"`
	Response   string    `json:"response"`
	Model      string    `json:"model"`
	TokensUsed int       `json:"tokens_used"`
	CreatedAt  time.Time `json:"created_at"`
}

// Feedback is a user rating of one assistant response.
type Feedback struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	MessageID string    `json:"message_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"feedback,omitempty"`
	Helpful   bool      `json:"helpful"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an account row. The chronic-condition fields feed the assistant's
// system prompt.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Age          int       `json:"age,omitempty"`
	Height       float64   `json:"height,omitempty"`
	Weight       float64   `json:"weight,omitempty"`
	Gender       string    `json:"gender,omitempty"`
	Diseases     string    `json:"diseases,omitempty"`
	Allergies    string    `json:"allergies,omitempty"`
	Medications  string    `json:"medications,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the read-only health context injected into prompts.
type Profile struct {
	Diseases    string `json:"diseases"`
	Allergies   string `json:"allergies"`
	Medications string `json:"medications"`
	Age         int    `json:"age"`
	Gender      string `json:"gender"`
}

// HistoryFilter narrows and pages a user's chat history listing.
type HistoryFilter struct {
	Search    string
	From      *time.Time
	To        *time.Time
	SortBy    string // "created_at" or "tokens_used"
	SortOrder string // "asc" or "desc"
	Page      int
	Limit     int
}

// ChatStats aggregates a user's chat usage.
type ChatStats struct {
	TotalMessages int64 `json:"total_messages"`
	TotalTokens   int64 `json:"total_tokens"`
	TodayMessages int64 `json:"today_messages"`
	TodayTokens   int64 `json:"today_tokens"`
}

// Store persists accounts, chat turns and feedback.
type Store interface {
	CreateUser(ctx context.Context, user User) (User, error)
	UserByLogin(ctx context.Context, usernameOrEmail string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	Profile(ctx context.Context, userID string) (Profile, error)

	SaveTurn(ctx context.Context, turn ChatTurn) (ChatTurn, error)
	// RecentTurns returns the last limit turns in chronological order.
	RecentTurns(ctx context.Context, userID string, limit int) ([]ChatTurn, error)
	ListTurns(ctx context.Context, userID string, filter HistoryFilter) ([]ChatTurn, int64, error)
	ClearTurns(ctx context.Context, userID string, olderThan *time.Time) (int64, error)
	TurnExists(ctx context.Context, id, userID string) (bool, error)
	ChatStats(ctx context.Context, userID string, dayStart time.Time) (ChatStats, error)

	SaveFeedback(ctx context.Context, fb Feedback) (Feedback, error)

	Close() error
}
