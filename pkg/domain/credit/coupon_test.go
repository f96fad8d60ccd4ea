package credit

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerifyCouponToken(t *testing.T) {
	token := SignCouponToken("secret-key", "DEVTEST")
	require.NotEmpty(t, token)
	assert.Contains(t, token, ".")

	code, ok := VerifyCouponToken("secret-key", token)
	require.True(t, ok)
	assert.Equal(t, "DEVTEST", code)
}

func TestSignCouponTokenNoSecret(t *testing.T) {
	assert.Empty(t, SignCouponToken("", "DEVTEST"))
	assert.Empty(t, SignCouponToken("   ", "DEVTEST"))
}

func TestVerifyCouponTokenRejections(t *testing.T) {
	valid := SignCouponToken("secret-key", "DEVTEST")

	t.Run("wrong secret", func(t *testing.T) {
		_, ok := VerifyCouponToken("other-secret", valid)
		assert.False(t, ok)
	})

	t.Run("no secret configured", func(t *testing.T) {
		_, ok := VerifyCouponToken("", valid)
		assert.False(t, ok)
	})

	t.Run("tampered payload", func(t *testing.T) {
		// A different payload with the original signature.
		_, sig, _ := strings.Cut(valid, ".")
		other := base64.RawURLEncoding.EncodeToString([]byte(`{"code":"FREE"}`))
		_, ok := VerifyCouponToken("secret-key", other+"."+sig)
		assert.False(t, ok)
	})

	t.Run("no separator", func(t *testing.T) {
		_, ok := VerifyCouponToken("secret-key", "nodothere")
		assert.False(t, ok)
	})

	t.Run("garbage signature encoding", func(t *testing.T) {
		payloadB64, _, _ := strings.Cut(valid, ".")
		_, ok := VerifyCouponToken("secret-key", payloadB64+".!!!not-base64!!!")
		assert.False(t, ok)
	})

	t.Run("unknown code with valid signature", func(t *testing.T) {
		// Properly signed, but the code has no payment-bypass entitlement.
		token := SignCouponToken("secret-key", "NOTACOUPON")
		_, ok := VerifyCouponToken("secret-key", token)
		assert.False(t, ok)
	})
}
