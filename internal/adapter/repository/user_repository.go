// Package repository holds storage adapters shared by the backends in its
// subpackages.
package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/trailwatch/internal/domain"
)

// StoreUserRepository implements domain.UserRepository over a whole-document
// store keyed by email. Used with the file, Redis and memory stores.
type StoreUserRepository struct {
	store domain.Store[map[string]domain.User]
	mu    sync.Mutex
}

func NewStoreUserRepository(store domain.Store[map[string]domain.User]) *StoreUserRepository {
	return &StoreUserRepository{store: store}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *StoreUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	users, err := r.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	u, ok := users[normalizeEmail(email)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r *StoreUserRepository) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	key := normalizeEmail(u.Email)
	if _, exists := users[key]; exists {
		return domain.ErrConflict
	}

	next := make(map[string]domain.User, len(users)+1)
	for k, v := range users {
		next[k] = v
	}
	next[key] = *u
	if err := r.store.Replace(ctx, next); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}

func (r *StoreUserRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	key := normalizeEmail(email)
	u, ok := users[key]
	if !ok {
		return domain.ErrNotFound
	}

	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	next := make(map[string]domain.User, len(users))
	for k, v := range users {
		next[k] = v
	}
	next[key] = u
	if err := r.store.Replace(ctx, next); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}
