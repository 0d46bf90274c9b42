package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/recargas/internal/domain/repository"
)

func newAccount(t *testing.T, repo *AccountRepo, email string) *repository.Account {
	t.Helper()
	a, err := repo.Create(context.Background(), repository.CreateAccountInput{
		Email:        email,
		PasswordHash: "$argon2id$fake",
	})
	require.NoError(t, err)
	return a
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo := NewAccountRepo()
	newAccount(t, repo, "ana@example.com")

	_, err := repo.Create(context.Background(), repository.CreateAccountInput{
		Email:        "ANA@example.com", // distinto casing, mismo email
		PasswordHash: "$argon2id$fake",
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestGetByEmail_CaseInsensitive(t *testing.T) {
	repo := NewAccountRepo()
	created := newAccount(t, repo, "Bruno@Example.com")

	got, err := repo.GetByEmail(context.Background(), "bruno@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
}

func TestConsumeVerifyToken(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()
	a := newAccount(t, repo, "carla@example.com")

	require.NoError(t, repo.SetVerifyToken(ctx, a.ID, "hash-1", time.Now().Add(15*time.Minute)))

	got, err := repo.ConsumeVerifyToken(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, got.EmailVerified)
	assert.Nil(t, got.VerifyTokenHash)

	// segundo consumo con el mismo hash ya no encuentra nada
	_, err = repo.ConsumeVerifyToken(ctx, "hash-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsumeVerifyToken_Expired(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()
	a := newAccount(t, repo, "dani@example.com")

	require.NoError(t, repo.SetVerifyToken(ctx, a.ID, "hash-2", time.Now().Add(-time.Minute)))

	_, err := repo.ConsumeVerifyToken(ctx, "hash-2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsumeResetToken_BumpsTokenVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()
	a := newAccount(t, repo, "eva@example.com")

	require.NoError(t, repo.SetResetToken(ctx, a.ID, "hash-3", time.Now().Add(15*time.Minute)))

	got, err := repo.ConsumeResetToken(ctx, "hash-3", "$argon2id$nuevo")
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$nuevo", got.PasswordHash)
	assert.Equal(t, a.TokenVersion+1, got.TokenVersion)
	assert.Nil(t, got.ResetTokenHash)
}

// Dos clientes presentando el mismo token de reset válido a la vez:
// exactamente uno gana, el resto recibe not_found.
func TestConsumeResetToken_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()
	a := newAccount(t, repo, "fer@example.com")

	require.NoError(t, repo.SetResetToken(ctx, a.ID, "hash-4", time.Now().Add(15*time.Minute)))

	const callers = 32
	var wins, losses int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := repo.ConsumeResetToken(ctx, "hash-4", "$argon2id$carrera")
			if err == nil {
				atomic.AddInt64(&wins, 1)
			} else {
				atomic.AddInt64(&losses, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), wins)
	assert.Equal(t, int64(callers-1), losses)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$carrera", got.PasswordHash)
	assert.Equal(t, a.TokenVersion+1, got.TokenVersion)
}

func TestSetResetToken_Overwrite(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()
	a := newAccount(t, repo, "gus@example.com")

	require.NoError(t, repo.SetResetToken(ctx, a.ID, "viejo", time.Now().Add(15*time.Minute)))
	require.NoError(t, repo.SetResetToken(ctx, a.ID, "nuevo", time.Now().Add(15*time.Minute)))

	// el token anterior queda invalidado por el reemplazo
	_, err := repo.ConsumeResetToken(ctx, "viejo", "$argon2id$x")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.ConsumeResetToken(ctx, "nuevo", "$argon2id$x")
	assert.NoError(t, err)
}

func TestClone_NoAliasing(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepo()
	a := newAccount(t, repo, "hilda@example.com")

	a.Email = "mutado@example.com"
	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "hilda@example.com", got.Email)
}
