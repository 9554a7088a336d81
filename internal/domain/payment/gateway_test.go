package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEsewaSignature(t *testing.T) {
	secret := "8gBm/:&EnhH.1/q"
	amount := decimal.NewFromInt(100)

	t.Run("is deterministic for identical inputs", func(t *testing.T) {
		a := EsewaSignature(secret, amount, "11-201-13", "EPAYTEST")
		b := EsewaSignature(secret, amount, "11-201-13", "EPAYTEST")
		assert.NotEmpty(t, a)
		assert.Equal(t, a, b)
	})

	t.Run("matches a known signature for the sandbox credentials", func(t *testing.T) {
		sig := EsewaSignature(secret, amount, "11-201-13", "EPAYTEST")
		assert.Equal(t, "kRhUvCch5MHfQTPZI2MuQXPJcKiTMPuOl+GVKfR/fjU=", sig)
	})

	t.Run("changes when any signed field changes", func(t *testing.T) {
		base := EsewaSignature(secret, amount, "11-201-13", "EPAYTEST")
		assert.NotEqual(t, base, EsewaSignature(secret, decimal.NewFromInt(200), "11-201-13", "EPAYTEST"))
		assert.NotEqual(t, base, EsewaSignature(secret, amount, "11-201-14", "EPAYTEST"))
		assert.NotEqual(t, base, EsewaSignature(secret, amount, "11-201-13", "OTHER"))
		assert.NotEqual(t, base, EsewaSignature("othersecret", amount, "11-201-13", "EPAYTEST"))
	})
}
