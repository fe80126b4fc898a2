// Package memory is an in-process store. Blocks live until the process exits.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/identity/cidutil"
	"xdao.co/identity/storage"
)

type Store struct {
	mu     sync.RWMutex
	blocks map[string][]byte
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{blocks: make(map[string][]byte)}
}

func (s *Store) Put(ctx context.Context, data []byte) (cid.Cid, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, err
	}
	id, err := cidutil.Sum(data)
	if err != nil {
		return cid.Undef, err
	}
	key := id.KeyString()

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.blocks[key]; ok {
		if !bytes.Equal(existing, data) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}
	s.blocks[key] = append([]byte(nil), data...)
	return id, nil
}

func (s *Store) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	s.mu.RLock()
	b, ok := s.blocks[id.KeyString()]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *Store) Has(ctx context.Context, id cid.Cid) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !id.Defined() {
		return false, nil
	}
	s.mu.RLock()
	_, ok := s.blocks[id.KeyString()]
	s.mu.RUnlock()
	return ok, nil
}

// Len returns the number of stored blocks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}
