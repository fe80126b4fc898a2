package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/ripemd160"

	"xdao.co/identity/identity"
)

// Hash160 returns ripemd160(sha256(data)).
func Hash160(data []byte) []byte {
	sum := sha256.Sum256(data)
	h := ripemd160.New()
	_, _ = h.Write(sum[:])
	return h.Sum(nil)
}

// PublicKeyRecord builds the EDDSA_25519_HASH160 record for pub. The record
// carries only the hash of the key.
func PublicKeyRecord(id identity.KeyID, purpose identity.Purpose, level identity.SecurityLevel, pub ed25519.PublicKey) (identity.PublicKey, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return identity.PublicKey{}, fmt.Errorf("keys: ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	k := identity.PublicKey{
		ID:            id,
		Type:          identity.KeyTypeEdDSA25519Hash160,
		Purpose:       purpose,
		SecurityLevel: level,
		Data:          Hash160(pub),
	}
	return k, k.ValidateEnums("publicKey")
}

// BLSPublicKeyRecord builds the BLS12_381 record for pub. The record carries
// the compressed key itself.
func BLSPublicKeyRecord(id identity.KeyID, purpose identity.Purpose, level identity.SecurityLevel, pub *BLSPublicKey) (identity.PublicKey, error) {
	data, err := pub.MarshalBinary()
	if err != nil {
		return identity.PublicKey{}, fmt.Errorf("keys: marshal bls key: %w", err)
	}
	k := identity.PublicKey{
		ID:            id,
		Type:          identity.KeyTypeBLS12381,
		Purpose:       purpose,
		SecurityLevel: level,
		Data:          data,
	}
	return k, k.ValidateEnums("publicKey")
}

// DeriveRecords derives count consecutive key records starting at id 0. Key 0
// is the MASTER authentication key; the rest are HIGH authentication keys.
func DeriveRecords(seed []byte, typ identity.KeyType, count int) ([]identity.PublicKey, error) {
	out := make([]identity.PublicKey, 0, count)
	for i := 0; i < count; i++ {
		id := identity.KeyID(i)
		level := identity.SecurityLevelHigh
		if i == 0 {
			level = identity.SecurityLevelMaster
		}
		var (
			k   identity.PublicKey
			err error
		)
		switch typ {
		case identity.KeyTypeEdDSA25519Hash160:
			var pub ed25519.PublicKey
			if pub, _, err = Ed25519KeyPair(seed, id); err == nil {
				k, err = PublicKeyRecord(id, identity.PurposeAuthentication, level, pub)
			}
		case identity.KeyTypeBLS12381:
			var pub *BLSPublicKey
			if pub, _, err = BLSKeyPair(seed, id); err == nil {
				k, err = BLSPublicKeyRecord(id, identity.PurposeAuthentication, level, pub)
			}
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, typ)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}
