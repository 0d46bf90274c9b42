// abuse/verifier.go — cliente del verificador de desafíos externo
// (estilo reCAPTCHA/Turnstile): POST form {secret, response, remoteip}.
package abuse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Verdict es lo que devuelve el verificador para un token dado.
// Score es opcional: los verificadores tipo checkbox no lo mandan,
// y nil se distingue de un score 0 real.
type Verdict struct {
	Success bool     `json:"success"`
	Score   *float64 `json:"score"`
	Action  string   `json:"action"`
}

// ScoreValue devuelve el score, o 0 si el verificador no mandó uno.
func (v Verdict) ScoreValue() float64 {
	if v.Score == nil {
		return 0
	}
	return *v.Score
}

// Verifier evalúa un token de desafío presentado por el cliente.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (Verdict, error)
}

// SiteVerifier habla con el endpoint real vía HTTP.
type SiteVerifier struct {
	Secret    string
	VerifyURL string
	Client    *http.Client
}

func NewSiteVerifier(secret, verifyURL string, timeout time.Duration) *SiteVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SiteVerifier{
		Secret:    secret,
		VerifyURL: verifyURL,
		Client:    &http.Client{Timeout: timeout},
	}
}

func (v *SiteVerifier) Verify(ctx context.Context, token, remoteIP string) (Verdict, error) {
	form := url.Values{}
	form.Set("secret", v.Secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Verdict{}, fmt.Errorf("abuse: armar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.Client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("abuse: llamada al verificador: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("abuse: verificador devolvió status %d", resp.StatusCode)
	}

	var out Verdict
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Verdict{}, fmt.Errorf("abuse: decodificar respuesta: %w", err)
	}
	return out, nil
}
