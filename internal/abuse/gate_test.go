package abuse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoreOf(f float64) *float64 { return &f }

type stubVerifier struct {
	verdict Verdict
	err     error
}

func (s stubVerifier) Verify(ctx context.Context, token, remoteIP string) (Verdict, error) {
	return s.verdict, s.err
}

func TestGate_DisabledAlwaysAllows(t *testing.T) {
	g := NewGate(ModeStrict, nil, 0.5, "", false)
	d := g.Check(context.Background(), "", "1.2.3.4")
	assert.True(t, d.Allow)
	assert.Equal(t, ReasonDisabled, d.Reason)
}

func TestGate_NoToken(t *testing.T) {
	v := stubVerifier{verdict: Verdict{Success: true, Score: scoreOf(0.9)}}

	strict := NewGate(ModeStrict, v, 0.5, "", true)
	d := strict.Check(context.Background(), "", "1.2.3.4")
	assert.False(t, d.Allow)
	assert.Equal(t, ReasonNoToken, d.Reason)

	permissive := NewGate(ModePermissive, v, 0.5, "", true)
	d = permissive.Check(context.Background(), "", "1.2.3.4")
	assert.True(t, d.Allow)
}

func TestGate_VerifierDown(t *testing.T) {
	v := stubVerifier{err: errors.New("connection refused")}

	strict := NewGate(ModeStrict, v, 0.5, "", true)
	d := strict.Check(context.Background(), "tok", "1.2.3.4")
	assert.False(t, d.Allow)
	assert.Equal(t, ReasonVerifierDown, d.Reason)

	permissive := NewGate(ModePermissive, v, 0.5, "", true)
	d = permissive.Check(context.Background(), "tok", "1.2.3.4")
	assert.True(t, d.Allow)
}

func TestGate_ScoreThreshold(t *testing.T) {
	low := NewGate(ModeStrict, stubVerifier{verdict: Verdict{Success: true, Score: scoreOf(0.3)}}, 0.5, "", true)
	d := low.Check(context.Background(), "tok", "1.2.3.4")
	assert.False(t, d.Allow)
	assert.Equal(t, ReasonLowScore, d.Reason)

	high := NewGate(ModeStrict, stubVerifier{verdict: Verdict{Success: true, Score: scoreOf(0.9)}}, 0.5, "", true)
	d = high.Check(context.Background(), "tok", "1.2.3.4")
	assert.True(t, d.Allow)
	assert.Equal(t, ReasonOK, d.Reason)
}

func TestGate_SuccessWithoutScoreAllows(t *testing.T) {
	// verificador tipo checkbox: {"success":true} sin campo score.
	// El umbral no aplica cuando el score no vino.
	v := stubVerifier{verdict: Verdict{Success: true}}

	for _, mode := range []Mode{ModeStrict, ModePermissive} {
		g := NewGate(mode, v, 0.5, "", true)
		d := g.Check(context.Background(), "tok", "1.2.3.4")
		assert.True(t, d.Allow, "modo %s", mode)
		assert.Equal(t, ReasonOK, d.Reason)
	}
}

func TestGate_ExplicitZeroScoreRejects(t *testing.T) {
	g := NewGate(ModeStrict, stubVerifier{verdict: Verdict{Success: true, Score: scoreOf(0)}}, 0.5, "", true)
	d := g.Check(context.Background(), "tok", "1.2.3.4")
	assert.False(t, d.Allow)
	assert.Equal(t, ReasonLowScore, d.Reason)
}

func TestGate_VerifierReject(t *testing.T) {
	g := NewGate(ModePermissive, stubVerifier{verdict: Verdict{Success: false}}, 0.5, "", true)
	// el rechazo explícito no depende del modo
	d := g.Check(context.Background(), "tok", "1.2.3.4")
	assert.False(t, d.Allow)
	assert.Equal(t, ReasonVerifierReject, d.Reason)
}

func TestGate_ActionMismatch(t *testing.T) {
	g := NewGate(ModeStrict, stubVerifier{verdict: Verdict{Success: true, Score: scoreOf(0.9), Action: "checkout"}}, 0.5, "login", true)
	d := g.Check(context.Background(), "tok", "1.2.3.4")
	assert.False(t, d.Allow)
	assert.Equal(t, ReasonActionMismatch, d.Reason)

	match := NewGate(ModeStrict, stubVerifier{verdict: Verdict{Success: true, Score: scoreOf(0.9), Action: "login"}}, 0.5, "login", true)
	d = match.Check(context.Background(), "tok", "1.2.3.4")
	assert.True(t, d.Allow)
}

func TestSiteVerifier_PostsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secreto", r.PostForm.Get("secret"))
		assert.Equal(t, "tok-123", r.PostForm.Get("response"))
		assert.Equal(t, "9.9.9.9", r.PostForm.Get("remoteip"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"score":0.8,"action":"login"}`))
	}))
	defer srv.Close()

	v := NewSiteVerifier("secreto", srv.URL, 2*time.Second)
	verdict, err := v.Verify(context.Background(), "tok-123", "9.9.9.9")
	require.NoError(t, err)
	assert.True(t, verdict.Success)
	require.NotNil(t, verdict.Score)
	assert.InDelta(t, 0.8, *verdict.Score, 0.001)
	assert.Equal(t, "login", verdict.Action)
}

func TestSiteVerifier_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	v := NewSiteVerifier("secreto", srv.URL, 50*time.Millisecond)
	_, err := v.Verify(context.Background(), "tok", "")
	assert.Error(t, err)
}
