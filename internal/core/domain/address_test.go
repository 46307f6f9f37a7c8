package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var checksumVectors = []string{
	"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
	"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
}

func TestAddress_ChecksumRoundTrip(t *testing.T) {
	for _, s := range checksumVectors {
		a, err := ParseAddress(s)
		require.NoError(t, err, s)
		require.Equal(t, s, a.String())
		require.Equal(t, strings.ToLower(s), a.Hex())
	}
}

func TestAddress_SingleCaseAccepted(t *testing.T) {
	for _, s := range checksumVectors {
		lower, err := ParseAddress(strings.ToLower(s))
		require.NoError(t, err)
		upper, err := ParseAddress("0x" + strings.ToUpper(s[2:]))
		require.NoError(t, err)
		require.Equal(t, lower, upper)
	}
}

func TestAddress_BadChecksumRejected(t *testing.T) {
	s := checksumVectors[0]
	// flip the case of the first letter after the prefix
	bad := []byte(s)
	for i := 2; i < len(bad); i++ {
		c := bad[i]
		if c >= 'a' && c <= 'f' {
			bad[i] = c - 'a' + 'A'
			break
		}
		if c >= 'A' && c <= 'F' {
			bad[i] = c - 'A' + 'a'
			break
		}
	}

	_, err := ParseAddress(string(bad))
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddress_Malformed(t *testing.T) {
	for _, s := range []string{
		"",
		"5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0x1234",
		"0xzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz",
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed00",
	} {
		_, err := ParseAddress(s)
		require.Error(t, err, s)
		require.True(t, errors.Is(err, ErrInvalidAddress), s)
	}
}

func TestAddress_ZeroSentinel(t *testing.T) {
	require.True(t, ZeroAddress.IsZero())
	require.Equal(t, "0x0000000000000000000000000000000000000000", ZeroAddress.String())
	require.False(t, MustParseAddress(checksumVectors[1]).IsZero())
}

func TestAddress_JSON(t *testing.T) {
	type payload struct {
		Seller Address `json:"seller"`
	}
	in := payload{Seller: MustParseAddress(checksumVectors[2])}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	require.JSONEq(t, `{"seller":"`+checksumVectors[2]+`"}`, string(data))

	var out payload
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, in, out)

	require.Error(t, json.Unmarshal([]byte(`{"seller":"nope"}`), &out))
}
