package store

import (
	"context"
	"testing"
	"time"
)

func TestRecentTurnsChronologicalOrder(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	// Insert out of order on purpose.
	for _, offset := range []int{2, 0, 3, 1} {
		_, err := s.SaveTurn(ctx, ChatTurn{
			UserID:    "user-1",
			Prompt:    "q",
			Response:  "a",
			Model:     "gemini-2.5-flash",
			CreatedAt: base.Add(time.Duration(offset) * time.Minute),
		})
		if err != nil {
			t.Fatalf("SaveTurn() error = %v", err)
		}
	}

	turns, err := s.RecentTurns(ctx, "user-1", 3)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("RecentTurns() len = %d, want 3", len(turns))
	}
	for i := 1; i < len(turns); i++ {
		if turns[i].CreatedAt.Before(turns[i-1].CreatedAt) {
			t.Fatalf("turns not chronological: %v before %v", turns[i].CreatedAt, turns[i-1].CreatedAt)
		}
	}
	if got := turns[len(turns)-1].CreatedAt; !got.Equal(base.Add(3 * time.Minute)) {
		t.Fatalf("last turn = %v, want newest", got)
	}
}

func TestClearTurnsOlderThan(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	old := ChatTurn{UserID: "user-1", Prompt: "old", Response: "a", Model: "m", CreatedAt: now.AddDate(0, 0, -40)}
	fresh := ChatTurn{UserID: "user-1", Prompt: "fresh", Response: "a", Model: "m", CreatedAt: now.AddDate(0, 0, -5)}
	for _, turn := range []ChatTurn{old, fresh} {
		if _, err := s.SaveTurn(ctx, turn); err != nil {
			t.Fatalf("SaveTurn() error = %v", err)
		}
	}

	cutoff := now.AddDate(0, 0, -30)
	deleted, err := s.ClearTurns(ctx, "user-1", &cutoff)
	if err != nil {
		t.Fatalf("ClearTurns() error = %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	remaining, err := s.RecentTurns(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].Prompt != "fresh" {
		t.Fatalf("remaining = %+v, want only the fresh turn", remaining)
	}

	// A second pass with the same cutoff must be a no-op.
	deleted, err = s.ClearTurns(ctx, "user-1", &cutoff)
	if err != nil {
		t.Fatalf("ClearTurns() second pass error = %v", err)
	}
	if deleted != 0 {
		t.Fatalf("second pass deleted = %d, want 0", deleted)
	}
}

func TestClearTurnsAll(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := s.SaveTurn(ctx, ChatTurn{UserID: "user-1", Prompt: "q", Response: "a", Model: "m"}); err != nil {
			t.Fatalf("SaveTurn() error = %v", err)
		}
	}

	deleted, err := s.ClearTurns(ctx, "user-1", nil)
	if err != nil {
		t.Fatalf("ClearTurns() error = %v", err)
	}
	if deleted != 4 {
		t.Fatalf("deleted = %d, want 4", deleted)
	}
}

func TestListTurnsFiltersAndPaging(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	prompts := []string{"سؤال عن السكري", "سؤال عن الضغط", "وصفة أعشاب"}
	for i, p := range prompts {
		_, err := s.SaveTurn(ctx, ChatTurn{
			UserID:    "user-1",
			Prompt:    p,
			Response:  "جواب",
			Model:     "m",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("SaveTurn() error = %v", err)
		}
	}

	turns, total, err := s.ListTurns(ctx, "user-1", HistoryFilter{Search: "سؤال", Page: 1, Limit: 1})
	if err != nil {
		t.Fatalf("ListTurns() error = %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	if len(turns) != 1 {
		t.Fatalf("page len = %d, want 1", len(turns))
	}
	// Default sort is created_at desc: newest matching first.
	if turns[0].Prompt != "سؤال عن الضغط" {
		t.Fatalf("first = %q, want newest matching turn", turns[0].Prompt)
	}
}

func TestChatStats(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	turns := []ChatTurn{
		{UserID: "user-1", Prompt: "q", Response: "a", Model: "m", TokensUsed: 10, CreatedAt: now.AddDate(0, 0, -2)},
		{UserID: "user-1", Prompt: "q", Response: "a", Model: "m", TokensUsed: 7, CreatedAt: now},
	}
	for _, turn := range turns {
		if _, err := s.SaveTurn(ctx, turn); err != nil {
			t.Fatalf("SaveTurn() error = %v", err)
		}
	}

	stats, err := s.ChatStats(ctx, "user-1", dayStart)
	if err != nil {
		t.Fatalf("ChatStats() error = %v", err)
	}
	if stats.TotalMessages != 2 || stats.TotalTokens != 17 {
		t.Fatalf("totals = %+v, want 2 messages / 17 tokens", stats)
	}
	if stats.TodayMessages != 1 || stats.TodayTokens != 7 {
		t.Fatalf("today = %+v, want 1 message / 7 tokens", stats)
	}
}

func TestUserLookup(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	created, err := s.CreateUser(ctx, User{
		FirstName: "أحمد",
		LastName:  "علي",
		Username:  "ahmad",
		Email:     "ahmad@example.com",
		Diseases:  "السكري",
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if created.ID == "" {
		t.Fatalf("CreateUser() did not assign an id")
	}

	byName, err := s.UserByLogin(ctx, "ahmad")
	if err != nil {
		t.Fatalf("UserByLogin(username) error = %v", err)
	}
	byEmail, err := s.UserByLogin(ctx, "ahmad@example.com")
	if err != nil {
		t.Fatalf("UserByLogin(email) error = %v", err)
	}
	if byName.ID != created.ID || byEmail.ID != created.ID {
		t.Fatalf("lookups disagree: %q vs %q vs %q", byName.ID, byEmail.ID, created.ID)
	}

	profile, err := s.Profile(ctx, created.ID)
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if profile.Diseases != "السكري" {
		t.Fatalf("profile diseases = %q, want %q", profile.Diseases, "السكري")
	}

	if _, err := s.UserByID(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("UserByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestTurnExists(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	saved, err := s.SaveTurn(ctx, ChatTurn{UserID: "user-1", Prompt: "q", Response: "a", Model: "m"})
	if err != nil {
		t.Fatalf("SaveTurn() error = %v", err)
	}

	ok, err := s.TurnExists(ctx, saved.ID, "user-1")
	if err != nil || !ok {
		t.Fatalf("TurnExists(owner) = %v, %v, want true", ok, err)
	}
	ok, err = s.TurnExists(ctx, saved.ID, "user-2")
	if err != nil || ok {
		t.Fatalf("TurnExists(other user) = %v, %v, want false", ok, err)
	}
}
