package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrRepairFailed is returned when the single repair insert fails. Callers
// must not retry within the same request.
var ErrRepairFailed = errors.New("profile repair failed")

// RepairRecorder receives the result of each repair attempt.
type RepairRecorder interface {
	RecordProfileRepair(result string)
}

// Repairer creates a default profile for an identity that is missing one.
type Repairer struct {
	repo     Repository
	username func(email string) string
	recorder RepairRecorder
}

// RepairOption configures a Repairer.
type RepairOption func(*Repairer)

// WithUsernameFunc replaces GenerateUsername.
func WithUsernameFunc(fn func(email string) string) RepairOption {
	return func(r *Repairer) { r.username = fn }
}

// WithRecorder reports attempts to rec.
func WithRecorder(rec RepairRecorder) RepairOption {
	return func(r *Repairer) { r.recorder = rec }
}

// NewRepairer creates a Repairer writing to repo.
func NewRepairer(repo Repository, opts ...RepairOption) *Repairer {
	r := &Repairer{
		repo:     repo,
		username: GenerateUsername,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Repair performs exactly one insert of a default profile.
func (r *Repairer) Repair(ctx context.Context, userID, email string) (*Profile, error) {
	p := NewDefault(userID, r.username(email))

	if err := r.repo.Create(ctx, p); err != nil {
		r.record("failed")
		slog.Error("profile repair failed", "userId", userID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrRepairFailed, err)
	}

	r.record("created")
	slog.Warn("repaired missing profile", "userId", userID, "username", p.Username)
	return p, nil
}

// Ensure returns the user's profile, attempting at most one repair when the
// lookup does not produce one. Lookup errors count as missing.
func (r *Repairer) Ensure(ctx context.Context, userID, email string) (p *Profile, repaired bool, err error) {
	p, err = r.repo.GetByID(ctx, userID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		slog.Warn("profile lookup failed; treating as missing", "userId", userID, "error", err)
	}

	p, err = r.Repair(ctx, userID, email)
	if err != nil {
		return nil, true, err
	}
	return p, true, nil
}

func (r *Repairer) record(result string) {
	if r.recorder != nil {
		r.recorder.RecordProfileRepair(result)
	}
}
