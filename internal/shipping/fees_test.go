package shipping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroQuoterServesDefaults(t *testing.T) {
	var q Quoter

	fee, err := q.Fee(MethodStandard)
	require.NoError(t, err)
	assert.EqualValues(t, 25_000, fee)

	fee, err = q.Fee(MethodExpress)
	require.NoError(t, err)
	assert.EqualValues(t, 35_000, fee)
}

func TestConfiguredFeesOverrideDefaults(t *testing.T) {
	q := Quoter{StandardFee: 20_000, ExpressFee: 40_000}

	fee, err := q.Fee(MethodStandard)
	require.NoError(t, err)
	assert.EqualValues(t, 20_000, fee)

	fee, err = q.Fee(MethodExpress)
	require.NoError(t, err)
	assert.EqualValues(t, 40_000, fee)
}

func TestUnknownMethod(t *testing.T) {
	var q Quoter
	_, err := q.Fee(Method("same-day"))
	require.ErrorIs(t, err, ErrUnknownMethod)

	_, err = q.Fee(Method(""))
	require.ErrorIs(t, err, ErrUnknownMethod)
}
