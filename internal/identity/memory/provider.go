// Package memory is an in-process identity.Provider used in tests and local
// development where no Keycloak instance is available.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mentora/internal/identity"
	dErrors "mentora/pkg/domain-errors"
)

type record struct {
	username     string
	email        string
	passwordHash []byte
	enabled      bool
	roles        map[string]struct{}
	createdAt    time.Time
}

type Provider struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*record
	now   func() time.Time
}

func New() *Provider {
	return &Provider{
		users: make(map[uuid.UUID]*record),
		now:   time.Now,
	}
}

var _ identity.Provider = (*Provider)(nil)

func (p *Provider) CreateDisabled(_ context.Context, username, email, password string) (uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, u := range p.users {
		if strings.EqualFold(u.email, email) {
			return uuid.Nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		if strings.EqualFold(u.username, username) {
			return uuid.Nil, dErrors.New(dErrors.CodeConflict, "username already taken")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}

	id := uuid.New()
	p.users[id] = &record{
		username:     username,
		email:        email,
		passwordHash: hash,
		enabled:      false,
		roles:        make(map[string]struct{}),
		createdAt:    p.now(),
	}
	return id, nil
}

func (p *Provider) Enable(_ context.Context, id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[id]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "identity not found")
	}
	u.enabled = true
	return nil
}

func (p *Provider) Delete(_ context.Context, id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.users[id]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "identity not found")
	}
	delete(p.users, id)
	return nil
}

func (p *Provider) Enablement(_ context.Context, id uuid.UUID) (identity.Enablement, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.users[id]
	if !ok {
		return identity.EnablementAbsent, nil
	}
	if u.enabled {
		return identity.EnablementEnabled, nil
	}
	return identity.EnablementDisabled, nil
}

func (p *Provider) AssignRole(_ context.Context, id uuid.UUID, role string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.users[id]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "identity not found")
	}
	u.roles[role] = struct{}{}
	return nil
}

// VerifyPassword checks a candidate password against the stored hash. It is
// not part of identity.Provider; login flows in local development use it.
func (p *Provider) VerifyPassword(_ context.Context, id uuid.UUID, password string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.users[id]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "identity not found")
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return nil
}

// HasRole reports whether the identity holds a realm role.
func (p *Provider) HasRole(id uuid.UUID, role string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	u, ok := p.users[id]
	if !ok {
		return false
	}
	_, ok = u.roles[role]
	return ok
}
