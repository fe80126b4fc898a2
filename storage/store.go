// Package storage defines the content-addressed block store that encoded
// identities are kept in, plus stores composed from other stores.
package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// Store is a content-addressed block store.
//
// Contract:
// - Put MUST be idempotent and return the CIDv1 (raw, sha2-256) of the bytes.
// - Stored blocks MUST be immutable.
// - Get MUST return ErrNotFound when the CID is absent and ErrInvalidCID for
//   an undefined CID.
// - Has MUST report false, not an error, for an undefined CID.
type Store interface {
	Put(ctx context.Context, data []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) (bool, error)
}
