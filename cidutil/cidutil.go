// Package cidutil derives content identifiers for encoded identities.
//
// Every CID in this module is a CIDv1 with the "raw" multicodec and a
// sha2-256 multihash over the exact bytes stored.
package cidutil

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var ErrMismatch = errors.New("cidutil: bytes do not match cid")

// Sum returns the CIDv1 (raw + sha2-256) of data.
func Sum(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// String is Sum rendered in its default multibase. It returns "" only if
// hashing fails, which sha2-256 with default length does not.
func String(data []byte) string {
	id, err := Sum(data)
	if err != nil {
		return ""
	}
	return id.String()
}

// Parse decodes s and rejects undefined or non-raw CIDs.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Defined() {
		return cid.Undef, fmt.Errorf("cidutil: undefined cid %q", s)
	}
	if id.Prefix().Codec != cid.Raw {
		return cid.Undef, fmt.Errorf("cidutil: cid %s is not raw (codec 0x%x)", id, id.Prefix().Codec)
	}
	return id, nil
}

// Verify returns ErrMismatch unless data hashes to id.
func Verify(data []byte, id cid.Cid) error {
	got, err := Sum(data)
	if err != nil {
		return err
	}
	if !got.Equals(id) {
		return fmt.Errorf("%w: got %s want %s", ErrMismatch, got, id)
	}
	return nil
}
