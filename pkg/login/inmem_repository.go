package login

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// InMemLoginRepository implements LoginRepository using an in-memory map
type InMemLoginRepository struct {
	logins map[uuid.UUID]Login
	mu     sync.Mutex
}

// NewInMemLoginRepository creates a new in-memory login repository
func NewInMemLoginRepository() *InMemLoginRepository {
	return &InMemLoginRepository{
		logins: make(map[uuid.UUID]Login),
	}
}

// CreateLogin creates a new login in memory
func (r *InMemLoginRepository) CreateLogin(ctx context.Context, login Login) (Login, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.logins {
		if existing.Username == login.Username {
			return Login{}, errors.New("username already exists")
		}
	}

	r.logins[login.ID] = login
	slog.Debug("Login created", "loginID", login.ID, "username", login.Username)
	return login, nil
}

// GetLoginByUsername retrieves a login by username
func (r *InMemLoginRepository) GetLoginByUsername(ctx context.Context, username string) (Login, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, login := range r.logins {
		if login.Username == username {
			return login, nil
		}
	}
	return Login{}, ErrLoginNotFound
}

// GetLoginByID retrieves a login by id
func (r *InMemLoginRepository) GetLoginByID(ctx context.Context, id uuid.UUID) (Login, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	login, exists := r.logins[id]
	if !exists {
		return Login{}, ErrLoginNotFound
	}
	return login, nil
}
