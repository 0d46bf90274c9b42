package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas de autenticación y admisión. Viven en un paquete propio para
// evitar ciclos de import entre handlers y middlewares.

var (
	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Intentos de login por resultado",
	}, []string{"result"}) // ok | invalid_credentials | error

	RegistersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_registers_total",
		Help: "Registros por resultado",
	}, []string{"result"}) // ok | conflict | weak_password | error

	AbuseRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "abuse_rejections_total",
		Help: "Rechazos del gate de abuso por motivo",
	}, []string{"reason"})

	RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limited_total",
		Help: "Requests rechazados por rate limit, por clase de ruta",
	}, []string{"class"})

	EdgeDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edge_decisions_total",
		Help: "Decisiones del gate de borde por desenlace",
	}, []string{"outcome"}) // allow | login_redirect | home_redirect | backend_error
)

// Register registra las métricas en el registry dado (default si es nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cs := []prometheus.Collector{
		LoginsTotal,
		RegistersTotal,
		AbuseRejectionsTotal,
		RateLimitedTotal,
		EdgeDecisionsTotal,
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
