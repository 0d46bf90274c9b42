package repository

import (
	"context"
	"time"
)

// Rol de una cuenta. Solo dos valores; el back-office exige RoleAdmin.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account representa una cuenta del storefront.
// PasswordHash nunca se serializa hacia afuera; los handlers exponen
// únicamente PublicProfile.
type Account struct {
	ID            string
	Email         string
	PasswordHash  string
	Role          string
	EmailVerified bool

	// Tokens single-use, guardados hasheados (sha256-base64url).
	// A lo sumo uno vigente por tipo; regenerar pisa el anterior.
	VerifyTokenHash *string
	VerifyExpiresAt *time.Time
	ResetTokenHash  *string
	ResetExpiresAt  *time.Time

	// TokenVersion invalida renewal tokens emitidos: el claim "tv" del
	// renewal debe coincidir con este valor. Se incrementa en reset de password.
	TokenVersion int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicProfile es la vista de la cuenta que se devuelve en respuestas HTTP.
type PublicProfile struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// Public devuelve el perfil público de la cuenta.
func (a *Account) Public() PublicProfile {
	return PublicProfile{
		ID:            a.ID,
		Email:         a.Email,
		Role:          a.Role,
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt,
	}
}

// CreateAccountInput contiene los datos para crear una cuenta.
type CreateAccountInput struct {
	Email        string
	PasswordHash string
	Role         string
}

// AccountRepository define el contrato del Credential Store.
//
// Los métodos Consume* son el punto crítico de concurrencia: leer y limpiar
// el token debe ser atómico por registro, de modo que dos requests con el
// mismo token no puedan ganar ambos (exactamente uno ve éxito).
type AccountRepository interface {
	// Create crea una cuenta nueva (sin verificar).
	// Retorna ErrConflict si el email ya existe (case-insensitive).
	Create(ctx context.Context, input CreateAccountInput) (*Account, error)

	// GetByEmail busca por email (normalizado a minúsculas).
	// Retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByID busca por ID. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Account, error)

	// SetVerifyToken guarda (pisando el anterior) el token de verificación.
	SetVerifyToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error

	// SetResetToken guarda (pisando el anterior) el token de reset.
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error

	// ConsumeVerifyToken consume el token de verificación de forma atómica:
	// si hay una cuenta con ese hash vigente, marca email_verified y limpia
	// los campos del token en una sola operación. Retorna ErrNotFound si
	// el token no existe, ya fue usado o expiró.
	ConsumeVerifyToken(ctx context.Context, tokenHash string) (*Account, error)

	// ConsumeResetToken consume el token de reset de forma atómica: limpia
	// los campos, reemplaza el hash del password e incrementa TokenVersion
	// (fuerza re-login en todos lados). Retorna ErrNotFound si el token no
	// existe, ya fue usado o expiró.
	ConsumeResetToken(ctx context.Context, tokenHash, newPasswordHash string) (*Account, error)

	// BumpTokenVersion invalida todos los renewal tokens vigentes de la cuenta.
	BumpTokenVersion(ctx context.Context, id string) error

	// Ping verifica que el backend de persistencia responda.
	Ping(ctx context.Context) error
}
