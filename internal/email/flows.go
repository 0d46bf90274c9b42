package email

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Mailer arma los correos de los flujos de cuenta y delega el envío.
// El token viaja como query param sobre BaseURL; el TTL se menciona en
// el cuerpo para que el usuario sepa cuánto tiene.
type Mailer struct {
	Sender    Sender
	BaseURL   string
	VerifyTTL time.Duration
	ResetTTL  time.Duration
}

func NewMailer(s Sender, baseURL string, verifyTTL, resetTTL time.Duration) *Mailer {
	return &Mailer{
		Sender:    s,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		VerifyTTL: verifyTTL,
		ResetTTL:  resetTTL,
	}
}

func (m *Mailer) link(path, token string) string {
	return m.BaseURL + path + "?token=" + url.QueryEscape(token)
}

func ttlMinutes(d time.Duration) int {
	return int(d.Round(time.Minute) / time.Minute)
}

// SendVerification envía el link de verificación de email.
func (m *Mailer) SendVerification(to, token string) error {
	link := m.link("/verificar-email", token)
	mins := ttlMinutes(m.VerifyTTL)

	subject := "Verificá tu cuenta"
	text := fmt.Sprintf(
		"Hola,\n\nPara activar tu cuenta hacé clic en el siguiente enlace:\n\n%s\n\nEl enlace vence en %d minutos. Si no creaste esta cuenta, ignorá este correo.\n",
		link, mins,
	)
	html := fmt.Sprintf(
		`<p>Hola,</p><p>Para activar tu cuenta hacé clic en el siguiente enlace:</p><p><a href="%s">Verificar mi cuenta</a></p><p>El enlace vence en %d minutos. Si no creaste esta cuenta, ignorá este correo.</p>`,
		link, mins,
	)
	return m.Sender.Send(to, subject, html, text)
}

// SendPasswordReset envía el link de restablecimiento de contraseña.
func (m *Mailer) SendPasswordReset(to, token string) error {
	link := m.link("/restablecer-password", token)
	mins := ttlMinutes(m.ResetTTL)

	subject := "Restablecé tu contraseña"
	text := fmt.Sprintf(
		"Hola,\n\nRecibimos un pedido para restablecer tu contraseña. Usá este enlace:\n\n%s\n\nEl enlace vence en %d minutos. Si no fuiste vos, ignorá este correo; tu contraseña no cambió.\n",
		link, mins,
	)
	html := fmt.Sprintf(
		`<p>Hola,</p><p>Recibimos un pedido para restablecer tu contraseña. Usá este enlace:</p><p><a href="%s">Restablecer contraseña</a></p><p>El enlace vence en %d minutos. Si no fuiste vos, ignorá este correo; tu contraseña no cambió.</p>`,
		link, mins,
	)
	return m.Sender.Send(to, subject, html, text)
}
