package pricing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMoneyJSONRendersDollars(t *testing.T) {
	data, err := json.Marshal(map[string]Money{"total": 10552})
	require.NoError(t, err)
	require.JSONEq(t, `{"total": 105.52}`, string(data))
}

func TestMoneyUnmarshalAcceptsNumberAndString(t *testing.T) {
	var m Money
	require.NoError(t, json.Unmarshal([]byte(`98.99`), &m))
	require.Equal(t, Money(9899), m)

	require.NoError(t, json.Unmarshal([]byte(`"12.50"`), &m))
	require.Equal(t, Money(1250), m)

	require.Error(t, json.Unmarshal([]byte(`"abc"`), &m))
}

func TestMulBpsRoundsHalfAwayFromZero(t *testing.T) {
	// $90.00 at 7.25% is $6.525, which rounds up to $6.53.
	require.Equal(t, Money(653), mulBps(9000, 725))
	// Exact products stay exact.
	require.Equal(t, Money(100), mulBps(1000, 1000))
	// Half a cent rounds away from zero.
	require.Equal(t, Money(1), mulBps(1, 5000))
	require.Equal(t, Money(-1), mulBps(-1, 5000))
}

func TestFromDollars(t *testing.T) {
	require.Equal(t, Money(9899), FromDollars(98.99))
	require.Equal(t, Money(100), FromDollars(1))
	require.Equal(t, "98.99", Money(9899).String())
}
