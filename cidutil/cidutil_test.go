package cidutil

import (
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum_Deterministic(t *testing.T) {
	a, err := Sum([]byte("identity bytes"))
	require.NoError(t, err)
	b, err := Sum([]byte("identity bytes"))
	require.NoError(t, err)
	assert.True(t, a.Equals(b))
	assert.Equal(t, uint64(1), a.Version())
	assert.Equal(t, uint64(cid.Raw), a.Prefix().Codec)
	assert.Equal(t, uint64(multihash.SHA2_256), a.Prefix().MhType)
	assert.Equal(t, a.String(), String([]byte("identity bytes")))
}

func TestParse(t *testing.T) {
	id, err := Sum([]byte("x"))
	require.NoError(t, err)

	got, err := Parse(id.String())
	require.NoError(t, err)
	assert.True(t, got.Equals(id))

	_, err = Parse("not-a-cid")
	assert.Error(t, err)

	dagPB := cid.NewCidV1(cid.DagProtobuf, id.Hash())
	_, err = Parse(dagPB.String())
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	id, err := Sum([]byte("a"))
	require.NoError(t, err)
	require.NoError(t, Verify([]byte("a"), id))
	assert.ErrorIs(t, Verify([]byte("b"), id), ErrMismatch)
}
