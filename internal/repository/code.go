package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/paircast/relay/internal/model"
)

type AccessCodeRepository interface {
	FindByCode(ctx context.Context, code string) (*model.AccessCode, error)
	Current(ctx context.Context) (*model.AccessCode, error)
	NewestAfter(ctx context.Context, createdAt time.Time) (*model.AccessCode, error)
	Create(ctx context.Context, params model.CreateAccessCodeParams) (*model.AccessCode, error)
	TouchLastUsed(ctx context.Context, code string, usedAt time.Time) error
	ResetLastUsed(ctx context.Context, code string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type accessCodeRepo struct {
	db *sqlx.DB
}

func NewAccessCodeRepository(db *sqlx.DB) AccessCodeRepository {
	return &accessCodeRepo{db: db}
}

func (r *accessCodeRepo) FindByCode(ctx context.Context, code string) (*model.AccessCode, error) {
	var ac model.AccessCode
	err := r.db.GetContext(ctx, &ac, `
		SELECT * FROM access_codes
		WHERE code = $1
	`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

// Current returns the newest unexpired code, or nil when none exists.
func (r *accessCodeRepo) Current(ctx context.Context) (*model.AccessCode, error) {
	var ac model.AccessCode
	err := r.db.GetContext(ctx, &ac, `
		SELECT * FROM access_codes
		WHERE expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

// NewestAfter returns the oldest code created strictly after 'createdAt', or
// nil when there is none. Ascending order matters: expiry checks compare a
// presented code against its immediate successor, not a code several
// rotations ahead.
func (r *accessCodeRepo) NewestAfter(ctx context.Context, createdAt time.Time) (*model.AccessCode, error) {
	var ac model.AccessCode
	err := r.db.GetContext(ctx, &ac, `
		SELECT * FROM access_codes
		WHERE created_at > $1
		ORDER BY created_at ASC
		LIMIT 1
	`, createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

func (r *accessCodeRepo) Create(ctx context.Context, params model.CreateAccessCodeParams) (*model.AccessCode, error) {
	var ac model.AccessCode
	err := r.db.GetContext(ctx, &ac, `
		INSERT INTO access_codes (code, expires_at)
		VALUES ($1, $2)
		RETURNING *
	`, params.Code, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

func (r *accessCodeRepo) TouchLastUsed(ctx context.Context, code string, usedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE access_codes SET
			last_used_at = $2
		WHERE code = $1
	`, code, usedAt)
	return err
}

func (r *accessCodeRepo) ResetLastUsed(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE access_codes SET
			last_used_at = NULL
		WHERE code = $1
	`, code)
	return err
}

// DeleteExpired prunes codes that expired more than a grace window ago.
// Recently expired codes are kept so a controller still holding one is
// told "expired" rather than "invalid".
func (r *accessCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM access_codes
		WHERE expires_at < NOW() - INTERVAL '2 hours'
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
