package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

const profileColumns = `id, username, full_name, bio, role, privacy_level, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID, &p.Username, &p.FullName, &p.Bio,
		&p.Role, &p.PrivacyLevel, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// mapWriteError translates unique violations into sentinel errors.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "username") {
			return ErrUsernameTaken
		}
		return ErrProfileExists
	}
	return err
}

// Create inserts a new profile record.
func (r *PostgresRepository) Create(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (id, username, full_name, bio, role, privacy_level)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		p.ID,
		p.Username,
		p.FullName,
		p.Bio,
		p.Role,
		p.PrivacyLevel,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if mapped := mapWriteError(err); mapped != err {
			return mapped
		}
		return fmt.Errorf("inserting profile: %w", err)
	}

	return nil
}

// GetByID retrieves a single profile by user id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("querying profile: %w", err)
	}

	return p, nil
}

// GetByUsername retrieves a single profile by username.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE username = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("querying profile by username: %w", err)
	}

	return p, nil
}

// Update applies a partial update and returns the updated profile.
// COALESCE keeps columns whose parameter is NULL.
func (r *PostgresRepository) Update(ctx context.Context, id string, u Update) (*Profile, error) {
	if u.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	query := `
		UPDATE profiles
		SET username      = COALESCE($2, username),
		    full_name     = CASE WHEN $3::boolean THEN $4 ELSE full_name END,
		    bio           = CASE WHEN $5::boolean THEN $6 ELSE bio END,
		    privacy_level = COALESCE($7, privacy_level),
		    updated_at    = NOW()
		WHERE id = $1
		RETURNING ` + profileColumns

	p, err := scanProfile(r.pool.QueryRow(ctx, query,
		id,
		u.Username,
		u.FullName != nil, nullIfEmpty(u.FullName),
		u.Bio != nil, nullIfEmpty(u.Bio),
		u.PrivacyLevel,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		if mapped := mapWriteError(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	return p, nil
}

// nullIfEmpty turns an explicitly cleared text field into NULL and copies
// anything else.
func nullIfEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
