// store/pg/accounts.go — Implementación PostgreSQL de AccountRepository.
package pg

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/recargas/internal/domain/repository"
)

const accountCols = `id, email, password_hash, role, email_verified,
	verify_token_hash, verify_expires_at, reset_token_hash, reset_expires_at,
	token_version, created_at, updated_at`

type AccountRepo struct {
	pool *pgxpool.Pool
}

// NewAccountRepo crea el repositorio sobre un pool existente.
func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func scanAccount(row pgx.Row) (*repository.Account, error) {
	var a repository.Account
	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.EmailVerified,
		&a.VerifyTokenHash, &a.VerifyExpiresAt, &a.ResetTokenHash, &a.ResetExpiresAt,
		&a.TokenVersion, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) Create(ctx context.Context, input repository.CreateAccountInput) (*repository.Account, error) {
	id := uuid.NewString()
	email := strings.ToLower(strings.TrimSpace(input.Email))
	role := input.Role
	if role == "" {
		role = repository.RoleUser
	}

	const query = `
		INSERT INTO account (id, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + accountCols
	a, err := scanAccount(r.pool.QueryRow(ctx, query, id, email, input.PasswordHash, role))
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: unique_violation (email duplicado)
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return a, nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*repository.Account, error) {
	const query = `SELECT ` + accountCols + ` FROM account WHERE LOWER(email) = LOWER($1)`
	return scanAccount(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *AccountRepo) GetByID(ctx context.Context, id string) (*repository.Account, error) {
	const query = `SELECT ` + accountCols + ` FROM account WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepo) SetVerifyToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE account
		SET verify_token_hash = $2, verify_expires_at = $3, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, tokenHash, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AccountRepo) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	const query = `
		UPDATE account
		SET reset_token_hash = $2, reset_expires_at = $3, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, tokenHash, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ConsumeVerifyToken: el WHERE condicional + RETURNING hace que dos requests
// con el mismo token no puedan ganar ambos; el segundo no matchea fila.
func (r *AccountRepo) ConsumeVerifyToken(ctx context.Context, tokenHash string) (*repository.Account, error) {
	const query = `
		UPDATE account
		SET email_verified = TRUE,
		    verify_token_hash = NULL,
		    verify_expires_at = NULL,
		    updated_at = NOW()
		WHERE verify_token_hash = $1 AND verify_expires_at > NOW()
		RETURNING ` + accountCols
	return scanAccount(r.pool.QueryRow(ctx, query, tokenHash))
}

func (r *AccountRepo) ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string) (*repository.Account, error) {
	const query = `
		UPDATE account
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_expires_at = NULL,
		    token_version = token_version + 1,
		    updated_at = NOW()
		WHERE reset_token_hash = $1 AND reset_expires_at > NOW()
		RETURNING ` + accountCols
	return scanAccount(r.pool.QueryRow(ctx, query, tokenHash, newPasswordHash))
}

func (r *AccountRepo) BumpTokenVersion(ctx context.Context, id string) error {
	const query = `UPDATE account SET token_version = token_version + 1, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AccountRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
