package abuse

import (
	"context"

	"github.com/dropDatabas3/recargas/internal/observability/logger"
)

// Mode decide qué pasa cuando falta el token o el verificador no responde.
// En strict (prod) se falla cerrado; en permissive (dev) se deja pasar.
type Mode string

const (
	ModeStrict     Mode = "strict"
	ModePermissive Mode = "permissive"
)

// Motivos de la decisión. El transporte HTTP los mapea a errores concretos.
const (
	ReasonOK             = "ok"
	ReasonDisabled       = "disabled"
	ReasonNoToken        = "no_token"
	ReasonVerifierDown   = "verifier_down"
	ReasonVerifierReject = "verifier_reject"
	ReasonActionMismatch = "action_mismatch"
	ReasonLowScore       = "low_score"
)

type Decision struct {
	Allow  bool
	Reason string
	Score  float64
}

// Gate es el filtro de admisión combinado delante de las rutas que
// mutan credenciales. No toca estado persistido: solo decide.
type Gate struct {
	Mode           Mode
	Verifier       Verifier
	MinScore       float64
	ExpectedAction string
	Enabled        bool // false cuando no hay secret configurado
}

func NewGate(mode Mode, v Verifier, minScore float64, expectedAction string, enabled bool) *Gate {
	if minScore <= 0 {
		minScore = 0.5
	}
	return &Gate{
		Mode:           mode,
		Verifier:       v,
		MinScore:       minScore,
		ExpectedAction: expectedAction,
		Enabled:        enabled,
	}
}

// Check evalúa el token de desafío del request. El orden importa:
// sin integración → pasa; sin token → depende del modo; verificador
// caído → depende del modo; rechazo/acción/score → siempre rechaza.
func (g *Gate) Check(ctx context.Context, token, remoteIP string) Decision {
	if !g.Enabled || g.Verifier == nil {
		return Decision{Allow: true, Reason: ReasonDisabled}
	}

	if token == "" {
		if g.Mode == ModeStrict {
			return Decision{Allow: false, Reason: ReasonNoToken}
		}
		return Decision{Allow: true, Reason: ReasonNoToken}
	}

	verdict, err := g.Verifier.Verify(ctx, token, remoteIP)
	if err != nil {
		logger.L().Warn("verificador de desafíos no disponible",
			logger.Component("abuse"), logger.Err(err))
		if g.Mode == ModeStrict {
			return Decision{Allow: false, Reason: ReasonVerifierDown}
		}
		return Decision{Allow: true, Reason: ReasonVerifierDown}
	}

	if !verdict.Success {
		return Decision{Allow: false, Reason: ReasonVerifierReject, Score: verdict.ScoreValue()}
	}
	if g.ExpectedAction != "" && verdict.Action != "" && verdict.Action != g.ExpectedAction {
		return Decision{Allow: false, Reason: ReasonActionMismatch, Score: verdict.ScoreValue()}
	}
	// El umbral solo aplica si el verificador mandó un score: un éxito
	// sin score (verificador tipo checkbox) pasa.
	if verdict.Score != nil && *verdict.Score < g.MinScore {
		return Decision{Allow: false, Reason: ReasonLowScore, Score: *verdict.Score}
	}

	return Decision{Allow: true, Reason: ReasonOK, Score: verdict.ScoreValue()}
}
