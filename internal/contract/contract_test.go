package contract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParse_Call(t *testing.T) {
	p := Parse("SPY240315C00450000")
	require.True(t, p.Valid())
	require.Equal(t, "SPY", p.Underlying)
	require.Equal(t, "2024-03-15", p.Expiration)
	require.Equal(t, Call, p.Type)
	require.True(t, p.Strike.Equal(decimal.NewFromInt(450)), "strike=%s", p.Strike)
	require.Equal(t, 450.0, p.StrikeFloat())
}

func TestParse_Put(t *testing.T) {
	p := Parse("AAPL240315P00180000")
	require.Equal(t, "AAPL", p.Underlying)
	require.Equal(t, "2024-03-15", p.Expiration)
	require.Equal(t, Put, p.Type)
	require.True(t, p.Strike.Equal(decimal.NewFromInt(180)))
}

func TestParse_FractionalStrike(t *testing.T) {
	p := Parse("F250117C00012500")
	require.True(t, p.Valid())
	require.Equal(t, "12.5", p.Strike.String())
	require.Equal(t, "2025-01-17", p.Expiration)
}

func TestParse_ProviderPrefixStripped(t *testing.T) {
	p := Parse("O:SPY240315C00450000")
	require.True(t, p.Valid())
	require.Equal(t, "SPY240315C00450000", p.Identifier)
}

func TestParse_Sentinel(t *testing.T) {
	cases := []string{
		"not-a-contract",
		"",
		"spy240315C00450000",  // lowercase ticker
		"SPY240315X00450000",  // bad flag
		"SPY240315C0045000",   // 7 strike digits
		"SPY240315C004500000", // 9 strike digits
		"SPY24315C00450000",   // short date
		" SPY240315C00450000", // leading space
		"SPY240315C00450000X", // trailing garbage
	}
	for _, in := range cases {
		p := Parse(in)
		require.False(t, p.Valid(), in)
		require.Equal(t, Unknown, p.Underlying, in)
		require.Equal(t, Unknown, p.Expiration, in)
		require.Equal(t, UnknownClass, p.Type, in)
		require.True(t, p.Strike.IsZero(), in)
		require.Equal(t, in, p.Identifier, in)
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	for _, id := range []string{"SPY240315C00450000", "AAPL240315P00180000", "F250117C00012500"} {
		got, err := Format(Parse(id))
		require.NoError(t, err)
		require.Equal(t, id, got)
	}
}

func TestFormat_RejectsSentinel(t *testing.T) {
	_, err := Format(Parse("garbage"))
	require.Error(t, err)
}

func TestProviderTicker(t *testing.T) {
	require.Equal(t, "O:SPY240315C00450000", ProviderTicker("SPY240315C00450000"))
	require.Equal(t, "O:SPY240315C00450000", ProviderTicker("O:SPY240315C00450000"))
}
