package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/V4T54L/trailwatch/internal/adapter/metrics"
	"github.com/V4T54L/trailwatch/internal/domain"
)

const uniqueViolation = "23505"

// Schema creates the users table when it does not exist yet.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
)`

type cacheEntry struct {
	user      domain.User
	expiresAt time.Time
}

// UserRepository implements domain.UserRepository using PostgreSQL as the
// source of truth and an in-memory, time-based cache for lookups by email.
type UserRepository struct {
	db       *sql.DB
	logger   *slog.Logger
	cache    map[string]cacheEntry
	mu       sync.RWMutex
	cacheTTL time.Duration
	metrics  *metrics.AnalysisMetrics
}

// NewUserRepository creates a new instance of the PostgreSQL user repository.
// A zero cacheTTL disables caching.
func NewUserRepository(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.AnalysisMetrics) *UserRepository {
	return &UserRepository{
		db:       db,
		logger:   logger.With("component", "postgres_user_repository"),
		cache:    make(map[string]cacheEntry),
		cacheTTL: cacheTTL,
		metrics:  m,
	}
}

// Migrate applies Schema.
func (r *UserRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	entry, found := r.cache[email]
	r.mu.RUnlock()

	if found && time.Now().Before(entry.expiresAt) {
		if r.metrics != nil {
			r.metrics.UserCacheHits.Inc()
		}
		u := entry.user
		return &u, nil
	}
	if r.metrics != nil {
		r.metrics.UserCacheMisses.Inc()
	}

	query := `
		SELECT id, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var u domain.User
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find by email: %w", err)
	}

	if r.cacheTTL > 0 {
		r.mu.Lock()
		r.cache[email] = cacheEntry{user: u, expiresAt: time.Now().Add(r.cacheTTL)}
		r.mu.Unlock()
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, u.ID, u.Email, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE email = $3`
	res, err := r.db.ExecContext(ctx, query, passwordHash, time.Now().UTC(), email)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	r.mu.Lock()
	delete(r.cache, email)
	r.mu.Unlock()

	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *UserRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
