package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// Fallback reads from Stores in slice order and writes only to the first.
//
// Callers MUST supply a fixed order; it is the retrieval strategy.
type Fallback struct {
	Stores []Store
}

var _ Store = Fallback{}

func (f Fallback) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if len(f.Stores) == 0 {
		return cid.Undef, ErrNoBackends
	}
	return f.Stores[0].Put(ctx, data)
}

func (f Fallback) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	return getInOrder(ctx, id, f.Stores)
}

func (f Fallback) Has(ctx context.Context, id cid.Cid) (bool, error) {
	return hasAny(ctx, id, f.Stores)
}

// getInOrder returns the first hit. Not-found answers move on to the next
// store; any other error stops the walk.
func getInOrder(ctx context.Context, id cid.Cid, stores []Store) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	for _, s := range stores {
		if s == nil {
			continue
		}
		b, err := s.Get(ctx, id)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, err
	}
	return nil, ErrNotFound
}

func hasAny(ctx context.Context, id cid.Cid, stores []Store) (bool, error) {
	if !id.Defined() {
		return false, nil
	}
	for _, s := range stores {
		if s == nil {
			continue
		}
		ok, err := s.Has(ctx, id)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
