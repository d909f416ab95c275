package pebble

import (
	"testing"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) fpdecimal.Decimal {
	t.Helper()
	d, err := fpdecimal.FromString(s)
	require.NoError(t, err)
	return d
}
