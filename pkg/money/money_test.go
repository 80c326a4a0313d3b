package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidAmount(t *testing.T) {
	d, err := Parse("5000.00")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("5000")))
}

func TestParseRejectsExcessPrecision(t *testing.T) {
	_, err := Parse("10.999")
	require.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not-a-number")
	require.Error(t, err)
}

func TestParseOrDefault(t *testing.T) {
	def := decimal.RequireFromString("5000.00")
	assert.True(t, ParseOrDefault("", def).Equal(def))
	assert.True(t, ParseOrDefault("bad", def).Equal(def))
	assert.True(t, ParseOrDefault("1200.50", def).Equal(decimal.RequireFromString("1200.5")))
}

func TestClampZero(t *testing.T) {
	assert.True(t, ClampZero(decimal.RequireFromString("-3.50")).IsZero())
	assert.True(t, ClampZero(decimal.RequireFromString("3.50")).Equal(decimal.RequireFromString("3.5")))
}
