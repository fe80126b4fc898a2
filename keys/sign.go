package keys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/bls"

	"xdao.co/identity/identity"
)

var (
	ErrUnsupportedKeyType = errors.New("keys: unsupported key type")
	ErrKeyMismatch        = errors.New("keys: public key does not match record")
	ErrKeyDisabled        = errors.New("keys: key is disabled")
	ErrBadSignature       = errors.New("keys: signature did not verify")
)

// SignEd25519SHA256 signs sha256(message).
func SignEd25519SHA256(message []byte, priv ed25519.PrivateKey) []byte {
	digest := sha256.Sum256(message)
	return ed25519.Sign(priv, digest[:])
}

// SignBLS signs message with the BLS12-381 key.
func SignBLS(message []byte, priv *BLSPrivateKey) []byte {
	return bls.Sign(priv, message)
}

// Verify checks sig over message against an identity key record. pub is the
// full public key: for hash160 records it must hash to the record data, for
// BLS records it may be nil and the record data is used.
func Verify(record identity.PublicKey, pub, message, sig []byte) error {
	if record.IsDisabled() {
		return fmt.Errorf("%w: id %d", ErrKeyDisabled, record.ID)
	}
	switch record.Type {
	case identity.KeyTypeEdDSA25519Hash160:
		if len(pub) != ed25519.PublicKeySize || !bytes.Equal(Hash160(pub), record.Data) {
			return ErrKeyMismatch
		}
		digest := sha256.Sum256(message)
		if !ed25519.Verify(ed25519.PublicKey(pub), digest[:], sig) {
			return ErrBadSignature
		}
		return nil
	case identity.KeyTypeBLS12381:
		if pub != nil && !bytes.Equal(pub, record.Data) {
			return ErrKeyMismatch
		}
		var pk BLSPublicKey
		if err := pk.UnmarshalBinary(record.Data); err != nil {
			return fmt.Errorf("%w: %v", ErrKeyMismatch, err)
		}
		if !bls.Verify(&pk, message, sig) {
			return ErrBadSignature
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKeyType, record.Type)
	}
}
