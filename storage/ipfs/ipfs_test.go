package ipfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"xdao.co/identity/cidutil"
	"xdao.co/identity/storage"
	"xdao.co/identity/storage/registry"
	"xdao.co/identity/storage/testkit"
)

// The test binary doubles as a fake ipfs CLI when fakeEnv is set. It keeps
// blocks as files under $FAKE_IPFS_DIR.
const fakeEnv = "IDENTITY_FAKE_IPFS"

func TestMain(m *testing.M) {
	if os.Getenv(fakeEnv) == "1" {
		os.Exit(fakeIPFS(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func fakeIPFS(args []string) int {
	dir := os.Getenv("FAKE_IPFS_DIR")
	if len(args) < 3 || args[0] != "block" {
		fmt.Fprintln(os.Stderr, "Error: unknown command")
		return 1
	}
	switch args[1] {
	case "put":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		id, err := cidutil.Sum(data)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if err := os.WriteFile(filepath.Join(dir, id.String()), data, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(id)
	case "get", "stat":
		data, err := os.ReadFile(filepath.Join(dir, args[2]))
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error: block was not found locally (offline)")
			return 1
		}
		if args[1] == "get" {
			_, _ = os.Stdout.Write(data)
		} else {
			fmt.Printf("Key: %s\nSize: %d\n", args[2], len(data))
		}
	default:
		fmt.Fprintln(os.Stderr, "Error: unknown subcommand")
		return 1
	}
	return 0
}

func newFake(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return New(Options{
		Bin: os.Args[0],
		Env: append(os.Environ(), fakeEnv+"=1", "FAKE_IPFS_DIR="+dir),
	}), dir
}

func TestIPFS_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store {
		t.Helper()
		s, _ := newFake(t)
		return s
	})
}

func TestIPFS_GetRejectsCorruptBlock(t *testing.T) {
	ctx := context.Background()
	s, dir := newFake(t)
	id, err := s.Put(ctx, []byte("original"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id.String()), []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("expected ErrCIDMismatch, got %v", err)
	}
}

func TestIPFS_MissingBinary(t *testing.T) {
	s := New(Options{Bin: filepath.Join(t.TempDir(), "no-such-ipfs")})
	if _, err := s.Put(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestIPFS_Registered(t *testing.T) {
	found := false
	for _, name := range registry.Names(registry.UsageDaemon) {
		if name == "ipfs" {
			found = true
		}
	}
	if !found {
		t.Fatal("ipfs backend not registered for the daemon")
	}
	st, _, err := registry.OpenWithConfig("ipfs", registry.UsageCLI, map[string]string{"ipfs-path": t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if st.(*Store).bin != "ipfs" {
		t.Fatalf("unexpected default binary %q", st.(*Store).bin)
	}
}
