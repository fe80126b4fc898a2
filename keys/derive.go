package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/bls"
	"golang.org/x/crypto/hkdf"

	"xdao.co/identity/identity"
)

// MinSeedSize is the shortest wallet seed DeriveKeySeed accepts.
const MinSeedSize = 32

const (
	hkdfInfoKey = "xdao/identity/key/v1"
	blsSalt     = "BLS-SIG-KEYGEN-SALT-"
)

// BLSPublicKey is a BLS12-381 public key in G1 (48 bytes compressed).
type BLSPublicKey = bls.PublicKey[bls.KeyG1SigG2]

// BLSPrivateKey is the matching private key.
type BLSPrivateKey = bls.PrivateKey[bls.KeyG1SigG2]

// DeriveKeySeed deterministically derives the 32-byte seed for one key of a
// wallet. Distinct key types under the same id get distinct seeds.
func DeriveKeySeed(seed []byte, id identity.KeyID, typ identity.KeyType) ([]byte, error) {
	if len(seed) < MinSeedSize {
		return nil, fmt.Errorf("keys: seed must be at least %d bytes, got %d", MinSeedSize, len(seed))
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("keys: unknown key type %d", uint8(typ))
	}
	info := make([]byte, 0, len(hkdfInfoKey)+5)
	info = append(info, hkdfInfoKey...)
	info = binary.BigEndian.AppendUint32(info, uint32(id))
	info = append(info, byte(typ))
	return hkdfExpand(seed, info, ed25519.SeedSize)
}

func hkdfExpand(seed, info []byte, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ed25519KeyPair returns the Ed25519 key pair for key id of the wallet.
func Ed25519KeyPair(seed []byte, id identity.KeyID) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	keySeed, err := DeriveKeySeed(seed, id, identity.KeyTypeEdDSA25519Hash160)
	if err != nil {
		return nil, nil, err
	}
	priv := ed25519.NewKeyFromSeed(keySeed)
	return priv.Public().(ed25519.PublicKey), priv, nil
}

// BLSKeyPair returns the BLS12-381 key pair for key id of the wallet.
func BLSKeyPair(seed []byte, id identity.KeyID) (*BLSPublicKey, *BLSPrivateKey, error) {
	keySeed, err := DeriveKeySeed(seed, id, identity.KeyTypeBLS12381)
	if err != nil {
		return nil, nil, err
	}
	priv, err := bls.KeyGen[bls.KeyG1SigG2](keySeed, []byte(blsSalt), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("keys: bls keygen: %w", err)
	}
	return priv.PublicKey(), priv, nil
}
