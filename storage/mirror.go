package storage

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/identity/cidutil"
)

// Named associates a Store with a stable backend name used in reports.
type Named struct {
	Name  string
	Store Store
}

// Mirror writes to every backend and requires all of them to return the CID
// computed from the bytes. Reads fall back in order.
type Mirror struct {
	Backends []Named
}

var _ Store = Mirror{}

// PutAll writes data to all backends and returns the canonical CID together
// with what each backend returned. On a disagreement it returns
// ErrCIDMismatch and the map so far.
func (m Mirror) PutAll(ctx context.Context, data []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := cidutil.Sum(data)
	if err != nil {
		return cid.Undef, nil, err
	}
	if len(m.Backends) == 0 {
		return cid.Undef, nil, ErrNoBackends
	}

	out := make(map[string]cid.Cid, len(m.Backends))
	for _, b := range m.Backends {
		if b.Store == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil store for backend %q", b.Name)
		}
		got, err := b.Store.Put(ctx, data)
		if err != nil {
			return cid.Undef, out, fmt.Errorf("storage: backend %q: %w", b.Name, err)
		}
		out[b.Name] = got
		if !got.Equals(want) {
			return cid.Undef, out, fmt.Errorf("%w: backend %q returned %s, want %s", ErrCIDMismatch, b.Name, got, want)
		}
	}
	return want, out, nil
}

func (m Mirror) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	id, _, err := m.PutAll(ctx, data)
	return id, err
}

func (m Mirror) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	return getInOrder(ctx, id, m.stores())
}

func (m Mirror) Has(ctx context.Context, id cid.Cid) (bool, error) {
	return hasAny(ctx, id, m.stores())
}

func (m Mirror) stores() []Store {
	out := make([]Store, len(m.Backends))
	for i, b := range m.Backends {
		out[i] = b.Store
	}
	return out
}
