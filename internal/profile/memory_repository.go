package profile

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository used with the development
// identity backend. It enforces the same uniqueness rules as the database.
type MemoryRepository struct {
	mu       sync.RWMutex
	byID     map[string]*Profile
	username map[string]string // username -> id
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:     make(map[string]*Profile),
		username: make(map[string]string),
	}
}

func clone(p *Profile) *Profile {
	c := *p
	if p.FullName != nil {
		v := *p.FullName
		c.FullName = &v
	}
	if p.Bio != nil {
		v := *p.Bio
		c.Bio = &v
	}
	return &c
}

// Create inserts a new profile.
func (m *MemoryRepository) Create(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[p.ID]; exists {
		return ErrProfileExists
	}
	if _, taken := m.username[p.Username]; taken {
		return ErrUsernameTaken
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	m.byID[p.ID] = clone(p)
	m.username[p.Username] = p.ID
	return nil
}

// GetByID retrieves a profile by user id.
func (m *MemoryRepository) GetByID(_ context.Context, id string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byID[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return clone(p), nil
}

// GetByUsername retrieves a profile by username.
func (m *MemoryRepository) GetByUsername(_ context.Context, username string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.username[username]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return clone(m.byID[id]), nil
}

// Update applies a partial update.
func (m *MemoryRepository) Update(_ context.Context, id string, u Update) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byID[id]
	if !ok {
		return nil, ErrProfileNotFound
	}

	if u.Username != nil && *u.Username != p.Username {
		if _, taken := m.username[*u.Username]; taken {
			return nil, ErrUsernameTaken
		}
		delete(m.username, p.Username)
		m.username[*u.Username] = id
		p.Username = *u.Username
	}
	if u.FullName != nil {
		p.FullName = nullIfEmpty(u.FullName)
	}
	if u.Bio != nil {
		p.Bio = nullIfEmpty(u.Bio)
	}
	if u.PrivacyLevel != nil {
		p.PrivacyLevel = *u.PrivacyLevel
	}
	p.UpdatedAt = time.Now().UTC()

	return clone(p), nil
}
