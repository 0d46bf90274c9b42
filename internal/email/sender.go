// email — despacho de correos transaccionales (verificación y reset).
// Sender es la capacidad inyectable; NoopSender permite correr sin SMTP.
package email

import (
	"github.com/dropDatabas3/recargas/internal/observability/logger"
)

// Sender envía un correo ya renderizado.
type Sender interface {
	Send(to, subject, htmlBody, textBody string) error
}

// NoopSender no envía nada; loguea en debug para dev.
type NoopSender struct{}

func (NoopSender) Send(to, subject, htmlBody, textBody string) error {
	logger.L().Debug("email deshabilitado, se descarta",
		logger.Component("email"),
		logger.String("to", to),
		logger.String("subject", subject),
	)
	return nil
}
