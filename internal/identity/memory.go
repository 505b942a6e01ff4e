package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type memoryUser struct {
	User
	passwordHash []byte
}

type accessClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Memory is an in-process identity backend for local development and tests.
// Accounts are auto-confirmed and lost on restart.
type Memory struct {
	mu        sync.Mutex
	byEmail   map[string]*memoryUser
	byID      map[string]*memoryUser
	refresh   map[string]string // refresh token -> user id
	secret    []byte
	cost      int
	accessTTL time.Duration
	now       func() time.Time
}

// MemoryOption configures a Memory backend.
type MemoryOption func(*Memory)

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.accessTTL = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates a Memory backend that signs access tokens with secret.
func NewMemory(secret string, bcryptCost int, opts ...MemoryOption) *Memory {
	m := &Memory{
		byEmail:   make(map[string]*memoryUser),
		byID:      make(map[string]*memoryUser),
		refresh:   make(map[string]string),
		secret:    []byte(secret),
		cost:      bcryptCost,
		accessTTL: time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an auto-confirmed account and returns a session for it.
func (m *Memory) SignUp(_ context.Context, email, password string) (*User, *Session, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, fmt.Errorf("%w: invalid email", ErrSignupRejected)
	}
	if len(password) < minPasswordLength {
		return nil, nil, fmt.Errorf("%w: password too short", ErrSignupRejected)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return nil, nil, fmt.Errorf("hashing password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[email]; exists {
		return nil, nil, fmt.Errorf("%w: account exists", ErrSignupRejected)
	}

	u := &memoryUser{
		User:         User{ID: uuid.New().String(), Email: email},
		passwordHash: hash,
	}
	m.byEmail[email] = u
	m.byID[u.ID] = u

	sess, err := m.issueLocked(u.User)
	if err != nil {
		return nil, nil, err
	}
	user := u.User
	return &user, sess, nil
}

// SignInWithPassword checks the password and issues a session.
func (m *Memory) SignInWithPassword(_ context.Context, email, password string) (*Session, error) {
	m.mu.Lock()
	u, ok := m.byEmail[normalizeEmail(email)]
	m.mu.Unlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issueLocked(u.User)
}

// GetUser validates an access token and returns its user.
func (m *Memory) GetUser(_ context.Context, accessToken string) (*User, error) {
	claims, err := m.parse(accessToken)
	if err != nil {
		return nil, ErrNoSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[claims.Subject]
	if !ok {
		return nil, ErrNoSession
	}
	user := u.User
	return &user, nil
}

// Refresh rotates a refresh token.
func (m *Memory) Refresh(_ context.Context, refreshToken string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, ok := m.refresh[refreshToken]
	if !ok {
		return nil, ErrNoSession
	}
	delete(m.refresh, refreshToken)

	u, ok := m.byID[userID]
	if !ok {
		return nil, ErrNoSession
	}
	return m.issueLocked(u.User)
}

// SignOut revokes every refresh token of the token's user.
func (m *Memory) SignOut(_ context.Context, accessToken string) error {
	claims, err := m.parse(accessToken)
	if err != nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for token, userID := range m.refresh {
		if userID == claims.Subject {
			delete(m.refresh, token)
		}
	}
	return nil
}

// Health always succeeds.
func (m *Memory) Health(context.Context) error { return nil }

func (m *Memory) issueLocked(u User) (*Session, error) {
	now := m.now()
	expiresAt := now.Add(m.accessTTL)
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: u.Email,
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	refresh := uuid.New().String()
	m.refresh[refresh] = u.ID

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User:         u,
	}, nil
}

func (m *Memory) parse(accessToken string) (*accessClaims, error) {
	if accessToken == "" {
		return nil, ErrNoSession
	}
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return nil, ErrNoSession
	}
	return claims, nil
}
