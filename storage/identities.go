package storage

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/identity/cidutil"
	"xdao.co/identity/identity"
)

// Identities stores identities in their binary form, addressed by the CID of
// that form.
type Identities struct {
	Store Store
}

// Save encodes ident and writes it. The returned CID equals ident.CID().
func (s Identities) Save(ctx context.Context, ident identity.Identity) (cid.Cid, error) {
	buf, err := ident.ToBuffer()
	if err != nil {
		return cid.Undef, err
	}
	want, err := cidutil.Sum(buf)
	if err != nil {
		return cid.Undef, err
	}
	got, err := s.Store.Put(ctx, buf)
	if err != nil {
		return cid.Undef, err
	}
	if !got.Equals(want) {
		return cid.Undef, fmt.Errorf("%w: store returned %s, want %s", ErrCIDMismatch, got, want)
	}
	return got, nil
}

// Load reads and decodes the identity stored under id. Bytes that do not hash
// to id are rejected before decoding.
func (s Identities) Load(ctx context.Context, id cid.Cid) (identity.Identity, error) {
	if !id.Defined() {
		return identity.Identity{}, ErrInvalidCID
	}
	buf, err := s.Store.Get(ctx, id)
	if err != nil {
		return identity.Identity{}, err
	}
	if err := cidutil.Verify(buf, id); err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %v", ErrCIDMismatch, err)
	}
	return identity.FromBuffer(buf)
}
