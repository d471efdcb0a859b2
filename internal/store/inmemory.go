package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	users    map[string]User
	turns    map[string][]ChatTurn
	feedback []Feedback
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users: make(map[string]User),
		turns: make(map[string][]ChatTurn),
	}
}

func (s *InMemoryStore) CreateUser(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return User{}, ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.ID] = user
	return user, nil
}

func (s *InMemoryStore) UserByLogin(_ context.Context, usernameOrEmail string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == usernameOrEmail || u.Email == usernameOrEmail {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *InMemoryStore) UserByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *InMemoryStore) Profile(ctx context.Context, userID string) (Profile, error) {
	u, err := s.UserByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		Diseases:    u.Diseases,
		Allergies:   u.Allergies,
		Medications: u.Medications,
		Age:         u.Age,
		Gender:      u.Gender,
	}, nil
}

func (s *InMemoryStore) SaveTurn(_ context.Context, turn ChatTurn) (ChatTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	s.turns[turn.UserID] = append(s.turns[turn.UserID], turn)
	return turn, nil
}

func (s *InMemoryStore) RecentTurns(_ context.Context, userID string, limit int) ([]ChatTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := sortedByCreated(s.turns[userID])
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]ChatTurn, limit)
	copy(out, arr[len(arr)-limit:])
	return out, nil
}

func (s *InMemoryStore) ListTurns(_ context.Context, userID string, filter HistoryFilter) ([]ChatTurn, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []ChatTurn
	for _, t := range s.turns[userID] {
		if filter.Search != "" &&
			!strings.Contains(t.Prompt, filter.Search) &&
			!strings.Contains(t.Response, filter.Search) {
			continue
		}
		if filter.From != nil && t.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && t.CreatedAt.After(*filter.To) {
			continue
		}
		matched = append(matched, t)
	}

	asc := strings.EqualFold(filter.SortOrder, "asc")
	sort.SliceStable(matched, func(i, j int) bool {
		var less bool
		if filter.SortBy == "tokens_used" {
			less = matched[i].TokensUsed < matched[j].TokensUsed
		} else {
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		if asc {
			return less
		}
		return !less
	})

	total := int64(len(matched))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]ChatTurn, end-start)
	copy(out, matched[start:end])
	return out, total, nil
}

func (s *InMemoryStore) ClearTurns(_ context.Context, userID string, olderThan *time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	arr := s.turns[userID]
	if olderThan == nil {
		delete(s.turns, userID)
		return int64(len(arr)), nil
	}

	kept := arr[:0]
	var deleted int64
	for _, t := range arr {
		if t.CreatedAt.Before(*olderThan) {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	s.turns[userID] = kept
	return deleted, nil
}

func (s *InMemoryStore) TurnExists(_ context.Context, id, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.turns[userID] {
		if t.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) ChatStats(_ context.Context, userID string, dayStart time.Time) (ChatStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats ChatStats
	for _, t := range s.turns[userID] {
		stats.TotalMessages++
		stats.TotalTokens += int64(t.TokensUsed)
		if !t.CreatedAt.Before(dayStart) {
			stats.TodayMessages++
			stats.TodayTokens += int64(t.TokensUsed)
		}
	}
	return stats, nil
}

func (s *InMemoryStore) SaveFeedback(_ context.Context, fb Feedback) (Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	s.feedback = append(s.feedback, fb)
	return fb, nil
}

func (s *InMemoryStore) Close() error { return nil }

func sortedByCreated(turns []ChatTurn) []ChatTurn {
	out := make([]ChatTurn, len(turns))
	copy(out, turns)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
