// Package testkit holds the conformance suite every storage.Store backend
// runs in its own tests.
package testkit

import (
	"bytes"
	"context"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/identity/cidutil"
	"xdao.co/identity/identifier"
	"xdao.co/identity/identity"
	"xdao.co/identity/storage"
)

// NewStore constructs a fresh, empty store for a test.
// The returned store MUST be isolated from other tests.
type NewStore func(t *testing.T) storage.Store

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		want := []byte("hello, identity storage")

		id, err := s.Put(ctx, want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := cidutil.Sum(want)
		if err != nil {
			t.Fatalf("Sum failed: %v", err)
		}
		if !id.Equals(wantID) {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}

		got, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
		if err := cidutil.Verify(got, id); err != nil {
			t.Fatalf("Get returned bytes not matching requested CID: %v", err)
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		s := newStore(t)
		b := []byte("same bytes")

		id1, err := s.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := s.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if !id1.Equals(id2) {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		s := newStore(t)
		b := []byte("do not alias")
		id, err := s.Put(ctx, b)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		b[0] = 'X'
		got, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		got[1] = 'Y'
		again, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(again) != "do not alias" {
			t.Fatalf("stored block was modified through a caller slice: %q", again)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		s := newStore(t)
		b := []byte("missing")
		id, err := cidutil.Sum(b)
		if err != nil {
			t.Fatalf("Sum failed: %v", err)
		}

		ok, err := s.Has(ctx, id)
		if err != nil || ok {
			t.Fatalf("Has for missing CID: got %v, %v", ok, err)
		}
		if _, err := s.Get(ctx, id); !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		if _, err := s.Put(ctx, b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		ok, err = s.Has(ctx, id)
		if err != nil || !ok {
			t.Fatalf("Has after Put: got %v, %v", ok, err)
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		s := newStore(t)
		var undef cid.Cid
		ok, err := s.Has(ctx, undef)
		if err != nil || ok {
			t.Fatalf("Has should be false for undefined CID, got %v, %v", ok, err)
		}
		if _, err := s.Get(ctx, undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
	})

	t.Run("CanceledContext", func(t *testing.T) {
		s := newStore(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := s.Put(cctx, []byte("late")); err == nil {
			t.Fatalf("Put should fail on a canceled context")
		}
	})

	t.Run("IdentityRoundTrip", func(t *testing.T) {
		s := storage.Identities{Store: newStore(t)}
		ident, err := identity.New(1, identifier.FromOutPoint([]byte("outpoint")), []identity.PublicKey{{
			ID: 0, Type: identity.KeyTypeECDSASecp256k1, Data: bytes.Repeat([]byte{2}, 33),
		}}, 1000, 2)
		if err != nil {
			t.Fatalf("identity.New failed: %v", err)
		}

		id, err := s.Save(ctx, ident)
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		want, err := ident.CID()
		if err != nil {
			t.Fatalf("CID failed: %v", err)
		}
		if !id.Equals(want) {
			t.Fatalf("Save CID mismatch: got %s want %s", id, want)
		}
		got, err := s.Load(ctx, id)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if !got.Equal(ident) {
			t.Fatalf("Load returned a different identity")
		}
	})
}
