package email

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/recargas/internal/config"
	"github.com/dropDatabas3/recargas/internal/observability/logger"
)

// SMTPSender implementa Sender sobre SMTP.
type SMTPSender struct {
	Host               string
	Port               int
	From               string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	mode := cfg.TLSMode
	if mode == "" {
		mode = "auto"
	}
	return &SMTPSender{
		Host:    cfg.Host,
		Port:    cfg.Port,
		From:    cfg.From,
		User:    cfg.Username,
		Pass:    cfg.Password,
		TLSMode: mode,
	}
}

// Send envía multipart/alternative (txt + html) cuando hay ambos cuerpos.
func (s *SMTPSender) Send(to, subject, htmlBody, textBody string) error {
	log := logger.L().With(
		logger.Component("email"),
		logger.String("host", s.Host),
		logger.String("to", to),
	)

	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	if textBody != "" {
		m.SetBody("text/plain", textBody)
	}
	if htmlBody != "" {
		if textBody == "" {
			m.SetBody("text/html", htmlBody)
		} else {
			m.AddAlternative("text/html", htmlBody)
		}
	}

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify, // solo dev
	}

	switch s.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: s.InsecureSkipVerify}
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}

	if err := d.DialAndSend(m); err != nil {
		log.Error("fallo de envío smtp", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}

	log.Info("email enviado", logger.String("subject", subject))
	return nil
}
