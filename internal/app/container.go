// app — composición de dependencias. El Container se arma una vez en el
// arranque y se pasa a los handler factories; nada acá tiene lógica.
package app

import (
	"github.com/dropDatabas3/recargas/internal/abuse"
	"github.com/dropDatabas3/recargas/internal/config"
	"github.com/dropDatabas3/recargas/internal/domain/repository"
	"github.com/dropDatabas3/recargas/internal/email"
	"github.com/dropDatabas3/recargas/internal/jwt"
	"github.com/dropDatabas3/recargas/internal/rate"
	"github.com/dropDatabas3/recargas/internal/security/password"
)

type Container struct {
	Cfg      *config.Config
	Accounts repository.AccountRepository
	Codec    *jwt.Codec
	Policy   password.Policy
	Hasher   password.Params
	Mailer   *email.Mailer
	Gate     *abuse.Gate

	// Limiters por clase de ruta; nil deshabilita la clase.
	AuthLimiter      rate.Limiter
	SensitiveLimiter rate.Limiter
}
