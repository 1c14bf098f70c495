package mocks

import (
	"context"
	"sync"

	"github.com/V4T54L/trailwatch/internal/domain"
)

// MockUserRepository is a mock implementation of domain.UserRepository for testing.
type MockUserRepository struct {
	mu        sync.Mutex
	Users     map[string]domain.User
	FindErr   error
	CreateErr error
	UpdateErr error
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	u, ok := m.Users[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (m *MockUserRepository) Create(ctx context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if m.Users == nil {
		m.Users = make(map[string]domain.User)
	}
	if _, ok := m.Users[u.Email]; ok {
		return domain.ErrConflict
	}
	m.Users[u.Email] = *u
	return nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	u, ok := m.Users[email]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	m.Users[email] = u
	return nil
}

// MockStore is a mock implementation of domain.Store for testing.
type MockStore[T any] struct {
	mu         sync.Mutex
	Value      T
	Replaced   []T
	LoadErr    error
	ReplaceErr error
}

func (m *MockStore[T]) Load(ctx context.Context) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		var zero T
		return zero, m.LoadErr
	}
	return m.Value, nil
}

func (m *MockStore[T]) Replace(ctx context.Context, value T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	m.Value = value
	m.Replaced = append(m.Replaced, value)
	return nil
}

// MockLogSource is a mock implementation of domain.LogSource for testing.
// Fetch returns Blobs[key], FetchErrs[key] when set, or a wrapped ErrNotFound.
type MockLogSource struct {
	mu        sync.Mutex
	Objects   []domain.ObjectInfo
	Blobs     map[string][]byte
	FetchErrs map[string]error
	ListErr   error
	Fetched   []string
}

func (m *MockLogSource) List(ctx context.Context, bucket, prefix string) ([]domain.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Objects, nil
}

func (m *MockLogSource) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fetched = append(m.Fetched, key)
	if err, ok := m.FetchErrs[key]; ok {
		return nil, err
	}
	data, ok := m.Blobs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

// MockNotifier is a mock implementation of domain.Notifier for testing.
type MockNotifier struct {
	mu        sync.Mutex
	Findings  []domain.Finding
	Calls     int
	NotifyErr error
}

func (m *MockNotifier) Notify(ctx context.Context, findings []domain.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.NotifyErr != nil {
		return m.NotifyErr
	}
	m.Findings = append(m.Findings, findings...)
	return nil
}
