package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"5512345678", "+525512345678"},
		{"(55) 1234-5678", "+525512345678"},
		{"+52 55 1234 5678", "+525512345678"},
		{"0052 55 1234 5678", "+525512345678"},
		{"+14155550123", "+14155550123"},
		{"14155550123", "+14155550123"},
		{" +525512345678 ", "+525512345678"},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.in, "52")
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestNormalize_Rejects(t *testing.T) {
	for _, in := range []string{"", "abc", "12345", "+1234567890123456", "55-1234-567x", "0551234567"} {
		_, err := Normalize(in, "52")
		assert.ErrorIs(t, err, ErrInvalidNumber, in)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, in := range []string{"5512345678", "+14155550123", "+442071838750", "(33) 3615-0000"} {
		once, err := Normalize(in, "52")
		require.NoError(t, err)
		twice, err := Normalize(once, "52")
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestLookupVariants(t *testing.T) {
	assert.Equal(t, []string{"+52 55 1234 5678", "525512345678", "+525512345678"}, LookupVariants("+52 55 1234 5678"))
	assert.Equal(t, []string{"+525512345678", "525512345678"}, LookupVariants("+525512345678"))
	assert.Empty(t, LookupVariants("  "))
}
