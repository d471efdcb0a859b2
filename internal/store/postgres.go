package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists accounts and chat history in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			username TEXT UNIQUE NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			age INTEGER,
			height DOUBLE PRECISION,
			weight DOUBLE PRECISION,
			gender TEXT,
			diseases TEXT,
			allergies TEXT,
			medications TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS ai_chat_turns (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			model TEXT NOT NULL,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ai_chat_turns_user_created ON ai_chat_turns (user_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS ai_feedback (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			message_id TEXT NOT NULL REFERENCES ai_chat_turns (id) ON DELETE CASCADE,
			rating INTEGER NOT NULL CHECK (rating >= 1 AND rating <= 5),
			feedback TEXT,
			helpful BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, first_name, last_name, username, email, password_hash,
			age, height, weight, gender, diseases, allergies, medications, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		user.ID, user.FirstName, user.LastName, user.Username, user.Email, user.PasswordHash,
		user.Age, user.Height, user.Weight, user.Gender, user.Diseases, user.Allergies, user.Medications,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicate
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

const userColumns = `id, first_name, last_name, username, email, password_hash,
	COALESCE(age, 0), COALESCE(height, 0), COALESCE(weight, 0),
	COALESCE(gender, ''), COALESCE(diseases, ''),
	COALESCE(allergies, ''), COALESCE(medications, ''), created_at, updated_at`

func (s *PostgresStore) UserByLogin(ctx context.Context, usernameOrEmail string) (User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username=$1 OR email=$1`,
		usernameOrEmail,
	)
	return scanUser(row)
}

func (s *PostgresStore) UserByID(ctx context.Context, id string) (User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id=$1`,
		id,
	)
	return scanUser(row)
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.Email, &u.PasswordHash,
		&u.Age, &u.Height, &u.Weight, &u.Gender, &u.Diseases, &u.Allergies, &u.Medications,
		&u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user row: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) Profile(ctx context.Context, userID string) (Profile, error) {
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

func (s *PostgresStore) SaveTurn(ctx context.Context, turn ChatTurn) (ChatTurn, error) {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO ai_chat_turns (id, user_id, message, response, model, tokens_used, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		turn.ID, turn.UserID, turn.Prompt, turn.Response, turn.Model, turn.TokensUsed, turn.CreatedAt,
	)
	if err != nil {
		return ChatTurn{}, fmt.Errorf("save turn: %w", err)
	}
	return turn, nil
}

func (s *PostgresStore) RecentTurns(ctx context.Context, userID string, limit int) ([]ChatTurn, error) {
	if limit <= 0 {
		limit = 6
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, message, response, model, tokens_used, created_at
		 FROM ai_chat_turns WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows, limit)
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order for prompt coherence.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

func (s *PostgresStore) ListTurns(ctx context.Context, userID string, filter HistoryFilter) ([]ChatTurn, int64, error) {
	where := "WHERE user_id=$1"
	args := []any{userID}

	if strings.TrimSpace(filter.Search) != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(" AND (message ILIKE $%d OR response ILIKE $%d)", len(args), len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	var total int64
	if err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM ai_chat_turns "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count turns: %w", err)
	}

	orderColumn := "created_at"
	if filter.SortBy == "tokens_used" {
		orderColumn = "tokens_used"
	}
	direction := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		direction = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, (page-1)*limit)

	query := fmt.Sprintf(
		"SELECT id, user_id, message, response, model, tokens_used, created_at FROM ai_chat_turns %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		where, orderColumn, direction, len(args)-1, len(args),
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows, limit)
	if err != nil {
		return nil, 0, err
	}
	return turns, total, nil
}

func (s *PostgresStore) ClearTurns(ctx context.Context, userID string, olderThan *time.Time) (int64, error) {
	query := "DELETE FROM ai_chat_turns WHERE user_id=$1"
	args := []any{userID}
	if olderThan != nil {
		args = append(args, *olderThan)
		query += " AND created_at < $2"
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear turns: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) TurnExists(ctx context.Context, id, userID string) (bool, error) {
	var found string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM ai_chat_turns WHERE id=$1 AND user_id=$2`,
		id, userID,
	).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup turn: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ChatStats(ctx context.Context, userID string, dayStart time.Time) (ChatStats, error) {
	var stats ChatStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(tokens_used), 0) FROM ai_chat_turns WHERE user_id=$1`,
		userID,
	).Scan(&stats.TotalMessages, &stats.TotalTokens)
	if err != nil {
		return ChatStats{}, fmt.Errorf("query chat stats: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(tokens_used), 0) FROM ai_chat_turns WHERE user_id=$1 AND created_at >= $2`,
		userID, dayStart,
	).Scan(&stats.TodayMessages, &stats.TodayTokens)
	if err != nil {
		return ChatStats{}, fmt.Errorf("query today chat stats: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) SaveFeedback(ctx context.Context, fb Feedback) (Feedback, error) {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO ai_feedback (id, user_id, message_id, rating, feedback, helpful, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		fb.ID, fb.UserID, fb.MessageID, fb.Rating, fb.Comment, fb.Helpful, fb.CreatedAt,
	)
	if err != nil {
		return Feedback{}, fmt.Errorf("save feedback: %w", err)
	}
	return fb, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanTurns(rows pgx.Rows, sizeHint int) ([]ChatTurn, error) {
	turns := make([]ChatTurn, 0, sizeHint)
	for rows.Next() {
		var t ChatTurn
		if err := rows.Scan(&t.ID, &t.UserID, &t.Prompt, &t.Response, &t.Model, &t.TokensUsed, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}
