package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zeroID = "11111111111111111111111111111111"

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, strings.TrimSpace(out.String()), errOut.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func newIdentityFile(t *testing.T, dir string, args ...string) (string, string) {
	t.Helper()
	code, out, errOut := runCLI(t, append([]string{"new", "--id", zeroID}, args...)...)
	require.Equal(t, 0, code, errOut)
	return writeFile(t, dir, "ident.json", out), out
}

func TestRun_Usage(t *testing.T) {
	code, _, errOut := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Usage:")

	code, _, errOut = runCLI(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown command")

	code, out, _ := runCLI(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "identityctl new")
}

func TestNew_Output(t *testing.T) {
	_, out := newIdentityFile(t, t.TempDir(), "--balance", "100", "--revision", "3")
	assert.JSONEq(t,
		`{"protocolVersion":1,"id":"`+zeroID+`","publicKeys":[],"balance":100,"revision":3}`,
		out)
}

func TestNew_RequiresExactlyOneID(t *testing.T) {
	code, _, errOut := runCLI(t, "new")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "--id or --outpoint")

	code, _, _ = runCLI(t, "new", "--id", zeroID, "--outpoint", "00")
	assert.Equal(t, 2, code)
}

func TestNew_InvalidID(t *testing.T) {
	code, _, errOut := runCLI(t, "new", "--id", "1111")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "IDENT-")
}

func TestNew_FromOutPoint(t *testing.T) {
	code, a, errOut := runCLI(t, "new", "--outpoint", strings.Repeat("ab", 36))
	require.Equal(t, 0, code, errOut)
	code, b, _ := runCLI(t, "new", "--outpoint", "0x"+strings.Repeat("ab", 36))
	require.Equal(t, 0, code)
	assert.Equal(t, a, b)
	assert.NotContains(t, a, zeroID)
}

func TestInspect(t *testing.T) {
	path, _ := newIdentityFile(t, t.TempDir(), "--balance", "42")
	code, out, errOut := runCLI(t, "inspect", path)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "id:               "+zeroID)
	assert.Contains(t, out, "balance:          42")
	assert.Contains(t, out, "cid:              b")
	assert.Contains(t, out, "public keys:      0")
}

func TestInspect_StrictRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "extra.json",
		`{"protocolVersion":1,"id":"`+zeroID+`","publicKeys":[],"balance":1,"revision":0,"extra":1}`)

	code, _, _ := runCLI(t, "inspect", path)
	assert.Equal(t, 0, code)

	code, _, errOut := runCLI(t, "inspect", "--mode", "strict", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "extra")

	code, _, _ = runCLI(t, "inspect", "--mode", "lenient", path)
	assert.Equal(t, 2, code)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path, original := newIdentityFile(t, dir, "--balance", "7")

	bin := filepath.Join(dir, "ident.bin")
	code, _, errOut := runCLI(t, "encode", "--out", bin, path)
	require.Equal(t, 0, code, errOut)

	code, decoded, errOut := runCLI(t, "decode", bin)
	require.Equal(t, 0, code, errOut)
	assert.JSONEq(t, original, decoded)

	code, hexOut, _ := runCLI(t, "encode", path)
	require.Equal(t, 0, code)
	hexPath := writeFile(t, dir, "ident.hex", hexOut)
	code, decoded, errOut = runCLI(t, "decode", "--hex", hexPath)
	require.Equal(t, 0, code, errOut)
	assert.JSONEq(t, original, decoded)

	// The binary file is detected automatically by commands that take identities.
	_, cidJSON, _ := runCLI(t, "cid", path)
	_, cidBin, _ := runCLI(t, "cid", bin)
	assert.Equal(t, cidJSON, cidBin)
	assert.True(t, strings.HasPrefix(cidJSON, "b"))
}

func TestDecode_Garbage(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.bin", "\x01\x00")
	code, _, errOut := runCLI(t, "decode", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "IDENT-")
}

func TestBalance(t *testing.T) {
	path, _ := newIdentityFile(t, t.TempDir(), "--balance", "100")

	code, out, errOut := runCLI(t, "balance", "--increase", "50", path)
	require.Equal(t, 0, code, errOut)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, float64(150), m["balance"])

	code, out, _ = runCLI(t, "balance", "--set", "5", path)
	require.Equal(t, 0, code)
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, float64(5), m["balance"])

	code, _, errOut = runCLI(t, "balance", "--reduce", "101", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "balance")

	code, _, _ = runCLI(t, "balance", "--increase", "1", "--reduce", "1", path)
	assert.Equal(t, 2, code)
	code, _, _ = runCLI(t, "balance", "--increase", "-1", path)
	assert.Equal(t, 2, code)
}

func TestPutGet_LocalFS(t *testing.T) {
	dir := t.TempDir()
	path, original := newIdentityFile(t, dir, "--balance", "9")
	storeDir := filepath.Join(dir, "store")

	code, id, errOut := runCLI(t, "put", "--backend", "localfs", "--localfs-dir", storeDir, path)
	require.Equal(t, 0, code, errOut)
	_, want, _ := runCLI(t, "cid", path)
	assert.Equal(t, want, id)

	code, got, errOut := runCLI(t, "get", "--localfs-dir", storeDir, id)
	require.Equal(t, 0, code, errOut)
	assert.JSONEq(t, original, got)
}

func TestGet_Errors(t *testing.T) {
	dir := t.TempDir()
	code, _, _ := runCLI(t, "get", "--localfs-dir", dir, "not-a-cid")
	assert.Equal(t, 2, code)

	path, _ := newIdentityFile(t, dir)
	_, id, _ := runCLI(t, "cid", path)
	code, _, errOut := runCLI(t, "get", "--localfs-dir", dir, id)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not found")

	code, _, _ = runCLI(t, "get", "--backend", "nope", id)
	assert.Equal(t, 2, code)
}

func TestPutGet_StoreConfig(t *testing.T) {
	dir := t.TempDir()
	path, original := newIdentityFile(t, dir)
	a, b := filepath.Join(dir, "a"), filepath.Join(dir, "b")
	cfg := writeFile(t, dir, "store.yaml", `write_policy: all
backends:
  - name: localfs
    id: a
    config:
      localfs-dir: `+a+`
  - name: localfs
    id: b
    config:
      localfs-dir: `+b+`
`)

	code, id, errOut := runCLI(t, "put", "--store-config", cfg, path)
	require.Equal(t, 0, code, errOut)

	// Both mirrors received the block.
	for _, d := range []string{a, b} {
		code, got, errOut := runCLI(t, "get", "--localfs-dir", d, id)
		require.Equal(t, 0, code, errOut)
		assert.JSONEq(t, original, got)
	}
}

func TestBackends(t *testing.T) {
	code, out, _ := runCLI(t, "backends")
	require.Equal(t, 0, code)
	for _, name := range []string{"grpc", "localfs", "memory"} {
		assert.Contains(t, out, name)
	}
}

func TestWallet_InitListAndDerive(t *testing.T) {
	dir := t.TempDir()
	ks := filepath.Join(dir, "wallets")
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	code, _, errOut := runCLI(t, "wallet", "init", "--keystore", ks, "--name", "alice", "--mnemonic", mnemonic)
	require.Equal(t, 0, code, errOut)

	code, _, _ = runCLI(t, "wallet", "init", "--keystore", ks, "--name", "alice", "--mnemonic", mnemonic)
	assert.Equal(t, 1, code)

	code, out, _ := runCLI(t, "wallet", "list", "--keystore", ks)
	require.Equal(t, 0, code)
	assert.Equal(t, "alice", out)

	for _, tc := range []struct {
		keyType string
		want    float64
	}{
		{"eddsa", 4},
		{"bls", 1},
	} {
		t.Run(tc.keyType, func(t *testing.T) {
			code, out, errOut := runCLI(t, "new", "--id", zeroID, "--wallet", "alice", "--keystore", ks, "--keys", "2", "--key-type", tc.keyType)
			require.Equal(t, 0, code, errOut)
			var m struct {
				PublicKeys []map[string]any `json:"publicKeys"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &m))
			require.Len(t, m.PublicKeys, 2)
			assert.Equal(t, float64(0), m.PublicKeys[0]["id"])
			assert.Equal(t, float64(1), m.PublicKeys[1]["id"])
			assert.Equal(t, tc.want, m.PublicKeys[0]["type"])
			assert.Equal(t, float64(0), m.PublicKeys[0]["securityLevel"])
		})
	}

	code, _, _ = runCLI(t, "new", "--id", zeroID, "--wallet", "bob", "--keystore", ks)
	assert.Equal(t, 1, code)
	code, _, _ = runCLI(t, "new", "--id", zeroID, "--wallet", "alice", "--keystore", ks, "--key-type", "rsa")
	assert.Equal(t, 2, code)
}

func TestWallet_GeneratesMnemonic(t *testing.T) {
	ks := t.TempDir()
	code, out, errOut := runCLI(t, "wallet", "init", "--keystore", ks, "--name", "gen")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, errOut, "Mnemonic")
	assert.Equal(t, filepath.Join(ks, "gen", "seed"), out)
}

func TestExportImport(t *testing.T) {
	dir := t.TempDir()
	path, original := newIdentityFile(t, dir, "--balance", "11")
	src, dst := filepath.Join(dir, "src"), filepath.Join(dir, "dst")

	code, id, errOut := runCLI(t, "put", "--localfs-dir", src, path)
	require.Equal(t, 0, code, errOut)

	archive := filepath.Join(dir, "out.tar")
	code, out, errOut := runCLI(t, "export", "--localfs-dir", src, "--out", archive, id)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "exported 1 identities")

	code, out, errOut = runCLI(t, "import", "--localfs-dir", dst, archive)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, id, out)

	code, got, errOut := runCLI(t, "get", "--localfs-dir", dst, id)
	require.Equal(t, 0, code, errOut)
	assert.JSONEq(t, original, got)

	code, _, _ = runCLI(t, "export", "--localfs-dir", src, id)
	assert.Equal(t, 2, code)
}

func TestSignVerify(t *testing.T) {
	dir := t.TempDir()
	ks := filepath.Join(dir, "wallets")
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	code, _, errOut := runCLI(t, "wallet", "init", "--keystore", ks, "--name", "alice", "--mnemonic", mnemonic)
	require.Equal(t, 0, code, errOut)
	msg := writeFile(t, dir, "msg.txt", "transfer 10 credits")
	other := writeFile(t, dir, "other.txt", "transfer 99 credits")

	// signed parses the "public-key <hex>" and "signature <hex>" lines.
	signed := func(t *testing.T, out string) (pub, sig string) {
		t.Helper()
		lines := strings.Split(out, "\n")
		require.Len(t, lines, 2, out)
		pub = strings.TrimPrefix(lines[0], "public-key ")
		sig = strings.TrimPrefix(lines[1], "signature ")
		return pub, sig
	}

	for _, keyType := range []string{"eddsa", "bls"} {
		t.Run(keyType, func(t *testing.T) {
			sub := t.TempDir()
			ident, _ := newIdentityFile(t, sub, "--wallet", "alice", "--keystore", ks, "--keys", "2", "--key-type", keyType)

			code, out, errOut := runCLI(t, "sign", "--wallet", "alice", "--keystore", ks, "--key-type", keyType, "--key-id", "1", msg)
			require.Equal(t, 0, code, errOut)
			pub, sig := signed(t, out)

			code, out, errOut = runCLI(t, "verify", "--key-id", "1", "--pub", pub, "--sig", sig, ident, msg)
			require.Equal(t, 0, code, errOut)
			assert.Equal(t, "ok", out)

			code, _, errOut = runCLI(t, "verify", "--key-id", "1", "--pub", pub, "--sig", sig, ident, other)
			assert.Equal(t, 1, code)
			assert.Contains(t, errOut, "did not verify")

			code, _, errOut = runCLI(t, "verify", "--key-id", "0", "--pub", pub, "--sig", sig, ident, msg)
			assert.Equal(t, 1, code)
			assert.Contains(t, errOut, "verify:")

			code, _, errOut = runCLI(t, "verify", "--key-id", "9", "--pub", pub, "--sig", sig, ident, msg)
			assert.Equal(t, 1, code)
			assert.Contains(t, errOut, "no key with id 9")
		})
	}

	t.Run("bls without pub", func(t *testing.T) {
		sub := t.TempDir()
		ident, _ := newIdentityFile(t, sub, "--wallet", "alice", "--keystore", ks, "--key-type", "bls")
		code, out, errOut := runCLI(t, "sign", "--wallet", "alice", "--keystore", ks, "--key-type", "bls", msg)
		require.Equal(t, 0, code, errOut)
		_, sig := signed(t, out)
		code, out, errOut = runCLI(t, "verify", "--key-id", "0", "--sig", sig, ident, msg)
		require.Equal(t, 0, code, errOut)
		assert.Equal(t, "ok", out)
	})
}

func TestSignVerify_Usage(t *testing.T) {
	dir := t.TempDir()
	msg := writeFile(t, dir, "msg.txt", "hello")
	ident, _ := newIdentityFile(t, dir)

	code, _, errOut := runCLI(t, "sign", msg)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "missing --wallet")

	code, _, _ = runCLI(t, "sign", "--wallet", "nobody", "--keystore", filepath.Join(dir, "ks"), msg)
	assert.Equal(t, 1, code)

	code, _, errOut = runCLI(t, "verify", "--sig", "00", ident, msg)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage: identityctl verify")

	code, _, errOut = runCLI(t, "verify", "--key-id", "0", "--sig", "zz", ident, msg)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "invalid --sig")
}
