package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Tipos de token del par. Un renewal jamás se acepta como session ni al revés:
// Verify exige que el claim "typ" coincida con lo esperado.
const (
	TypeSession = "session"
	TypeRenewal = "refresh"
)

// ErrTokenInvalid es el único error que sale de Verify. Firma rota, token
// vencido, typ equivocado, algoritmo inesperado o basura: todo colapsa acá
// para no dar un oráculo de qué falló.
var ErrTokenInvalid = errors.New("invalid_token")

// Claims es el payload validado de un token.
type Claims struct {
	AccountID string
	Role      string
	// TokenVersion solo viene en renewal tokens ("tv"); el refresh lo compara
	// contra el valor persistido de la cuenta.
	TokenVersion int
	ExpiresAt    time.Time
}

// Codec firma y valida el par session/renewal con HMAC-SHA256 sobre un
// secreto único. Stateless: no toca el store.
type Codec struct {
	Issuer     string
	Secret     []byte
	SessionTTL time.Duration
	RenewalTTL time.Duration
}

func NewCodec(issuer, secret string, sessionTTL, renewalTTL time.Duration) *Codec {
	return &Codec{
		Issuer:     issuer,
		Secret:     []byte(secret),
		SessionTTL: sessionTTL,
		RenewalTTL: renewalTTL,
	}
}

// IssueSession emite un session token corto con account id + rol.
func (c *Codec) IssueSession(accountID, role string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(c.SessionTTL)
	claims := jwtv5.MapClaims{
		"iss":  c.Issuer,
		"sub":  accountID,
		"role": role,
		"typ":  TypeSession,
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"exp":  exp.Unix(),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := tk.SignedString(c.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueRenewal emite un renewal token largo. No lleva rol: solo sirve para
// acuñar sessions nuevas. tv ata el token a la versión vigente de la cuenta.
func (c *Codec) IssueRenewal(accountID string, tokenVersion int) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(c.RenewalTTL)
	claims := jwtv5.MapClaims{
		"iss": c.Issuer,
		"sub": accountID,
		"typ": TypeRenewal,
		"tv":  tokenVersion,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := tk.SignedString(c.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify valida firma, vigencia, issuer y tipo. Cualquier falla devuelve
// ErrTokenInvalid, sin distinguir causa.
func (c *Codec) Verify(raw, expectedTyp string) (*Claims, error) {
	tok, err := jwtv5.Parse(raw,
		func(t *jwtv5.Token) (any, error) { return c.Secret, nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithIssuer(c.Issuer),
		jwtv5.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return nil, ErrTokenInvalid
	}
	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}
	if typ, _ := mc["typ"].(string); typ != expectedTyp {
		return nil, ErrTokenInvalid
	}
	sub, _ := mc["sub"].(string)
	if sub == "" {
		return nil, ErrTokenInvalid
	}
	out := &Claims{AccountID: sub}
	if role, ok := mc["role"].(string); ok {
		out.Role = role
	}
	if tv, ok := mc["tv"].(float64); ok {
		out.TokenVersion = int(tv)
	}
	if expf, ok := mc["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(expf), 0)
	}
	return out, nil
}
