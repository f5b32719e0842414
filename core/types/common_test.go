package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashTextRoundTrip(t *testing.T) {
	h := HexToHash("0x9bdab5cbc3ebd8d50e3831bc73da35c1170e21bfb7145e41ce4a952b977a8f84")

	enc, err := json.Marshal(h)
	require.NoError(t, err)
	require.Equal(t, `"0x9bdab5cbc3ebd8d50e3831bc73da35c1170e21bfb7145e41ce4a952b977a8f84"`, string(enc))

	var dec Hash
	require.NoError(t, json.Unmarshal(enc, &dec))
	require.Equal(t, h, dec)
}

func TestHashUnmarshalRejectsBadInput(t *testing.T) {
	var h Hash
	require.Error(t, h.UnmarshalText([]byte("9bdab5")))
	require.Error(t, h.UnmarshalText([]byte("0x9bdab5")))
	require.Error(t, h.UnmarshalText([]byte("0xzz")))
}

func TestAddressLeftPad(t *testing.T) {
	a := BytesToAddress([]byte{0x01, 0x02})
	require.Equal(t, "0x0000000000000000000000000000000000000102", a.Hex())
	require.False(t, a.IsZero())
	require.True(t, Address{}.IsZero())
}

func TestMessageStatusNames(t *testing.T) {
	for s := Undeclared; s <= Revoked; s++ {
		parsed, err := ParseMessageStatus(s.String())
		require.NoError(t, err)
		require.Equal(t, s, parsed)
	}
	require.False(t, MessageStatus(5).Valid())
	require.Equal(t, "MessageStatus(9)", MessageStatus(9).String())

	_, err := ParseMessageStatus("Pending")
	require.Error(t, err)
}
