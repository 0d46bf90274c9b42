package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parámetros bajos para que los tests no tarden
var testParams = Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func TestHashVerify_RoundTrip(t *testing.T) {
	phc, err := Hash(testParams, "correcthorse1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(phc, "$argon2id$v=19$"))

	assert.True(t, Verify("correcthorse1", phc))
	assert.False(t, Verify("otracosa", phc))
}

func TestHash_EmptyPassword(t *testing.T) {
	_, err := Hash(testParams, "")
	assert.Error(t, err)
}

func TestVerify_MalformedPHC(t *testing.T) {
	assert.False(t, Verify("x", ""))
	assert.False(t, Verify("x", "$argon2id$garbage"))
	assert.False(t, Verify("x", "$bcrypt$v=19$m=8,t=1,p=1$AAAA$BBBB"))
	assert.False(t, Verify("x", "$argon2id$v=18$m=8,t=1,p=1$AAAA$BBBB"))
}

func TestHash_SaltedDifferently(t *testing.T) {
	a, err := Hash(testParams, "mismopass9")
	require.NoError(t, err)
	b, err := Hash(testParams, "mismopass9")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.True(t, Verify("mismopass9", a))
	assert.True(t, Verify("mismopass9", b))
}

func TestPolicy(t *testing.T) {
	p := Policy{MinLength: 8, RequireDigit: true}

	ok, reasons := p.Validate("abc1")
	assert.False(t, ok)
	assert.Contains(t, reasons, "too_short")

	ok, reasons = p.Validate("abcdefgh")
	assert.False(t, ok)
	assert.Contains(t, reasons, "missing_digit")

	ok, reasons = p.Validate("abcdefg1")
	assert.True(t, ok)
	assert.Empty(t, reasons)
}
