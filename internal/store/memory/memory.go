// store/memory/memory.go — AccountRepository en memoria.
// Para dev sin Postgres y para tests. El mutex serializa las escrituras
// conflictivas sobre el mismo registro, igual que lo hace la fila en pg.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/recargas/internal/domain/repository"
)

type AccountRepo struct {
	mu       sync.Mutex
	byID     map[string]*repository.Account
	idByMail map[string]string // email lower → id
}

func NewAccountRepo() *AccountRepo {
	return &AccountRepo{
		byID:     make(map[string]*repository.Account),
		idByMail: make(map[string]string),
	}
}

// clone evita que el caller mute el estado interno.
func clone(a *repository.Account) *repository.Account {
	cp := *a
	if a.VerifyTokenHash != nil {
		v := *a.VerifyTokenHash
		cp.VerifyTokenHash = &v
	}
	if a.VerifyExpiresAt != nil {
		v := *a.VerifyExpiresAt
		cp.VerifyExpiresAt = &v
	}
	if a.ResetTokenHash != nil {
		v := *a.ResetTokenHash
		cp.ResetTokenHash = &v
	}
	if a.ResetExpiresAt != nil {
		v := *a.ResetExpiresAt
		cp.ResetExpiresAt = &v
	}
	return &cp
}

func (r *AccountRepo) Create(ctx context.Context, input repository.CreateAccountInput) (*repository.Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.PasswordHash == "" {
		return nil, repository.ErrInvalidInput
	}
	role := input.Role
	if role == "" {
		role = repository.RoleUser
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.idByMail[email]; exists {
		return nil, repository.ErrConflict
	}
	now := time.Now().UTC()
	a := &repository.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: input.PasswordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byID[a.ID] = a
	r.idByMail[email] = a.ID
	return clone(a), nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*repository.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.idByMail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(r.byID[id]), nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id string) (*repository.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(a), nil
}

func (r *AccountRepo) SetVerifyToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.VerifyTokenHash = &tokenHash
	a.VerifyExpiresAt = &expiresAt
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *AccountRepo) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.ResetTokenHash = &tokenHash
	a.ResetExpiresAt = &expiresAt
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *AccountRepo) ConsumeVerifyToken(ctx context.Context, tokenHash string) (*repository.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, a := range r.byID {
		if a.VerifyTokenHash == nil || *a.VerifyTokenHash != tokenHash {
			continue
		}
		if a.VerifyExpiresAt == nil || !a.VerifyExpiresAt.After(now) {
			return nil, repository.ErrNotFound
		}
		// match vigente: consumir dentro del mismo lock
		a.EmailVerified = true
		a.VerifyTokenHash = nil
		a.VerifyExpiresAt = nil
		a.UpdatedAt = now
		return clone(a), nil
	}
	return nil, repository.ErrNotFound
}

func (r *AccountRepo) ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string) (*repository.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, a := range r.byID {
		if a.ResetTokenHash == nil || *a.ResetTokenHash != tokenHash {
			continue
		}
		if a.ResetExpiresAt == nil || !a.ResetExpiresAt.After(now) {
			return nil, repository.ErrNotFound
		}
		a.PasswordHash = newPasswordHash
		a.ResetTokenHash = nil
		a.ResetExpiresAt = nil
		a.TokenVersion++
		a.UpdatedAt = now
		return clone(a), nil
	}
	return nil, repository.ErrNotFound
}

func (r *AccountRepo) BumpTokenVersion(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.TokenVersion++
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *AccountRepo) Ping(ctx context.Context) error {
	return nil
}
