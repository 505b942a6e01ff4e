package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// Hosted is a client for the hosted backend's auth REST API.
type Hosted struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewHosted creates a Hosted client. baseURL is the project URL without the
// /auth/v1 suffix.
func NewHosted(baseURL, anonKey string, httpClient *http.Client) *Hosted {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Hosted{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: httpClient,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// tokenResponse covers both the token grant response and the signup
// response, which is a bare user object when confirmation is required.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user"`

	ID    string `json:"id"`
	Email string `json:"email"`
}

func (t *tokenResponse) session() *Session {
	if t.AccessToken == "" || t.User == nil {
		return nil
	}
	expiresAt := time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	if t.ExpiresAt > 0 {
		expiresAt = time.Unix(t.ExpiresAt, 0)
	}
	return &Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         *t.User,
	}
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity backend returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("identity backend returned %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Code             string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var eb errorBody
	if json.Unmarshal(body, &eb) != nil {
		apiErr.Message = http.StatusText(status)
		return apiErr
	}
	apiErr.Code = eb.Code
	if apiErr.Code == "" {
		apiErr.Code = eb.Error
	}
	for _, m := range []string{eb.Msg, eb.Message, eb.ErrorDescription} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	return apiErr
}

// do sends a request and decodes a 2xx JSON response into out. Non-2xx
// responses come back as *APIError; transport failures wrap ErrUnavailable.
func (h *Hosted) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("apikey", h.anonKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" {
		bearer = h.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: %v", ErrUnavailable, decodeAPIError(resp.StatusCode, raw))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func isStatus(err error, statuses ...int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, s := range statuses {
		if apiErr.Status == s {
			return true
		}
	}
	return false
}

// SignUp creates an identity with email and password.
func (h *Hosted) SignUp(ctx context.Context, email, password string) (*User, *Session, error) {
	var tr tokenResponse
	err := h.do(ctx, http.MethodPost, "/auth/v1/signup", "", credentialsRequest{Email: email, Password: password}, &tr)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrSignupRejected, err)
	}

	if sess := tr.session(); sess != nil {
		u := sess.User
		return &u, sess, nil
	}
	if tr.ID == "" {
		return nil, nil, fmt.Errorf("%w: response carried no identity", ErrSignupRejected)
	}
	return &User{ID: tr.ID, Email: tr.Email}, nil, nil
}

// SignInWithPassword exchanges email and password for a session.
func (h *Hosted) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	var tr tokenResponse
	err := h.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", credentialsRequest{Email: email, Password: password}, &tr)
	if err != nil {
		if isStatus(err, http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnprocessableEntity) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("signing in: %w", err)
	}
	sess := tr.session()
	if sess == nil {
		return nil, ErrInvalidCredentials
	}
	return sess, nil
}

// GetUser returns the identity behind an access token.
func (h *Hosted) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, ErrNoSession
	}
	var u User
	err := h.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &u)
	if err != nil {
		if isStatus(err, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	if u.ID == "" {
		return nil, ErrNoSession
	}
	return &u, nil
}

// Refresh exchanges a refresh token for a new session. Refresh tokens are
// single use; the returned session carries the rotated one.
func (h *Hosted) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrNoSession
	}
	var tr tokenResponse
	err := h.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", refreshRequest{RefreshToken: refreshToken}, &tr)
	if err != nil {
		if isStatus(err, http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("refreshing session: %w", err)
	}
	sess := tr.session()
	if sess == nil {
		return nil, ErrNoSession
	}
	return sess, nil
}

// SignOut revokes the session behind the access token. A token the backend
// no longer recognises counts as already signed out.
func (h *Hosted) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	err := h.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
	if err != nil {
		if isStatus(err, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound) {
			return nil
		}
		return fmt.Errorf("signing out: %w", err)
	}
	return nil
}

// Health checks that the auth API answers.
func (h *Hosted) Health(ctx context.Context) error {
	if err := h.do(ctx, http.MethodGet, "/auth/v1/health", "", nil, nil); err != nil {
		return fmt.Errorf("identity health: %w", err)
	}
	return nil
}
