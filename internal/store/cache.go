package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const recentTurnsTTL = 10 * time.Minute

// CachedStore layers a Redis read-through cache over recent-turn lookups.
// Cache failures degrade to direct store access; they are never surfaced.
type CachedStore struct {
	Store
	rdb *redis.Client
}

func NewCachedStore(inner Store, rdb *redis.Client) *CachedStore {
	return &CachedStore{Store: inner, rdb: rdb}
}

type cachedRecent struct {
	Limit int        `json:"limit"`
	Turns []ChatTurn `json:"turns"`
}

func (s *CachedStore) RecentTurns(ctx context.Context, userID string, limit int) ([]ChatTurn, error) {
	key := recentKey(userID)

	if raw, err := s.rdb.Get(ctx, key).Result(); err == nil {
		var cached cachedRecent
		if json.Unmarshal([]byte(raw), &cached) == nil && cached.Limit == limit {
			return cached.Turns, nil
		}
	}

	turns, err := s.Store.RecentTurns(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(cachedRecent{Limit: limit, Turns: turns}); err == nil {
		if err := s.rdb.Set(ctx, key, payload, recentTurnsTTL).Err(); err != nil {
			log.Printf("recent turns cache write failed: %v", err)
		}
	}
	return turns, nil
}

func (s *CachedStore) SaveTurn(ctx context.Context, turn ChatTurn) (ChatTurn, error) {
	saved, err := s.Store.SaveTurn(ctx, turn)
	if err != nil {
		return ChatTurn{}, err
	}
	s.invalidate(ctx, saved.UserID)
	return saved, nil
}

func (s *CachedStore) ClearTurns(ctx context.Context, userID string, olderThan *time.Time) (int64, error) {
	deleted, err := s.Store.ClearTurns(ctx, userID, olderThan)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, userID)
	return deleted, nil
}

func (s *CachedStore) invalidate(ctx context.Context, userID string) {
	if err := s.rdb.Del(ctx, recentKey(userID)).Err(); err != nil {
		log.Printf("recent turns cache invalidation failed: %v", err)
	}
}

func recentKey(userID string) string {
	return fmt.Sprintf("chat:recent:%s", userID)
}
