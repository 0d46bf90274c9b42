// audit — rastro de eventos de cuenta (login, registro, verificación,
// reset). Hoy sale por el logger estructurado; el día que haga falta un
// sink externo, este es el único punto a tocar.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/dropDatabas3/recargas/internal/observability/logger"
)

const (
	EventRegister      = "account.register"
	EventVerifyEmail   = "account.verify_email"
	EventLogin         = "account.login"
	EventLoginRejected = "account.login_rejected"
	EventRefresh       = "account.refresh"
	EventPasswordReset = "account.password_reset"
)

// Log emite un evento de auditoría con los campos dados.
func Log(ctx context.Context, event string, fields ...zap.Field) {
	logger.From(ctx).Info(event,
		append([]zap.Field{logger.Component("audit")}, fields...)...,
	)
}
