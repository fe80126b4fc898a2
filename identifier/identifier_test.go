package identifier

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AllOnesIsZero(t *testing.T) {
	id, err := Parse("11111111111111111111111111111111")
	require.NoError(t, err)
	assert.True(t, id.IsZero())
	assert.Equal(t, "11111111111111111111111111111111", id.String())
}

func TestParse_RoundTrip(t *testing.T) {
	want := FromOutPoint([]byte("funding-outpoint"))
	got, err := Parse(want.String())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	b64, err := FromString(want.Encode(Base64), Base64)
	require.NoError(t, err)
	assert.Equal(t, want, b64)
}

func TestParse_Rejects(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", ErrInvalidEncoding},
		{"bad alphabet", "0OIl", ErrInvalidEncoding},
		{"too short", "1111", ErrInvalidLength},
		{"too long", "111111111111111111111111111111111111", ErrInvalidLength},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestFromBytes_Copies(t *testing.T) {
	b := make([]byte, Size)
	b[0] = 7
	id, err := FromBytes(b)
	require.NoError(t, err)
	b[0] = 9
	assert.Equal(t, byte(7), id[0])

	out := id.Bytes()
	out[0] = 1
	assert.Equal(t, byte(7), id[0])
}

func TestFromOutPoint_Deterministic(t *testing.T) {
	a := FromOutPoint([]byte{1, 2, 3})
	b := FromOutPoint([]byte{1, 2, 3})
	c := FromOutPoint([]byte{1, 2, 4})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestJSON(t *testing.T) {
	id := FromOutPoint([]byte("x"))
	b, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(b))

	var got Identifier
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, id, got)

	err = json.Unmarshal([]byte(`42`), &got)
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}
