package identity

import (
	"bytes"
	"fmt"
)

// KeyID identifies a public key within one identity.
type KeyID uint32

type KeyType uint8

const (
	KeyTypeECDSASecp256k1    KeyType = 0
	KeyTypeBLS12381          KeyType = 1
	KeyTypeECDSAHash160      KeyType = 2
	KeyTypeBIP13ScriptHash   KeyType = 3
	KeyTypeEdDSA25519Hash160 KeyType = 4
)

var keyTypeNames = [...]string{
	"ECDSA_SECP256K1",
	"BLS12_381",
	"ECDSA_HASH160",
	"BIP13_SCRIPT_HASH",
	"EDDSA_25519_HASH160",
}

func (t KeyType) Valid() bool { return int(t) < len(keyTypeNames) }

func (t KeyType) String() string {
	if t.Valid() {
		return keyTypeNames[t]
	}
	return fmt.Sprintf("KeyType(%d)", uint8(t))
}

type Purpose uint8

const (
	PurposeAuthentication Purpose = 0
	PurposeEncryption     Purpose = 1
	PurposeDecryption     Purpose = 2
	PurposeWithdraw       Purpose = 3
)

var purposeNames = [...]string{"AUTHENTICATION", "ENCRYPTION", "DECRYPTION", "WITHDRAW"}

func (p Purpose) Valid() bool { return int(p) < len(purposeNames) }

func (p Purpose) String() string {
	if p.Valid() {
		return purposeNames[p]
	}
	return fmt.Sprintf("Purpose(%d)", uint8(p))
}

type SecurityLevel uint8

const (
	SecurityLevelMaster   SecurityLevel = 0
	SecurityLevelCritical SecurityLevel = 1
	SecurityLevelHigh     SecurityLevel = 2
	SecurityLevelMedium   SecurityLevel = 3
)

var securityLevelNames = [...]string{"MASTER", "CRITICAL", "HIGH", "MEDIUM"}

func (l SecurityLevel) Valid() bool { return int(l) < len(securityLevelNames) }

func (l SecurityLevel) String() string {
	if l.Valid() {
		return securityLevelNames[l]
	}
	return fmt.Sprintf("SecurityLevel(%d)", uint8(l))
}

// PublicKey is one key record of an identity. The adapter treats Data as
// opaque bytes; no per-type length or curve checks are made here.
type PublicKey struct {
	ID            KeyID
	Type          KeyType
	Purpose       Purpose
	SecurityLevel SecurityLevel
	Data          []byte
	ReadOnly      bool
	// DisabledAt is a unix millisecond timestamp; nil means enabled.
	DisabledAt *uint64
}

// Clone returns a deep copy of k.
func (k PublicKey) Clone() PublicKey {
	out := k
	out.Data = append([]byte(nil), k.Data...)
	if k.DisabledAt != nil {
		v := *k.DisabledAt
		out.DisabledAt = &v
	}
	return out
}

func (k PublicKey) IsDisabled() bool { return k.DisabledAt != nil }

func (k PublicKey) Equal(o PublicKey) bool {
	if k.ID != o.ID || k.Type != o.Type || k.Purpose != o.Purpose ||
		k.SecurityLevel != o.SecurityLevel || k.ReadOnly != o.ReadOnly {
		return false
	}
	if !bytes.Equal(k.Data, o.Data) {
		return false
	}
	if (k.DisabledAt == nil) != (o.DisabledAt == nil) {
		return false
	}
	return k.DisabledAt == nil || *k.DisabledAt == *o.DisabledAt
}

// ValidateEnums reports the first enum field of k outside its known range.
// field is the path prefix used in the returned error.
func (k PublicKey) ValidateEnums(field string) error {
	if !k.Type.Valid() {
		return Errorf(KindValidation, RuleUnknownEnum, field+".type", "unknown key type %d", uint8(k.Type))
	}
	if !k.Purpose.Valid() {
		return Errorf(KindValidation, RuleUnknownEnum, field+".purpose", "unknown key purpose %d", uint8(k.Purpose))
	}
	if !k.SecurityLevel.Valid() {
		return Errorf(KindValidation, RuleUnknownEnum, field+".securityLevel", "unknown security level %d", uint8(k.SecurityLevel))
	}
	return nil
}

func clonePublicKeys(keys []PublicKey) []PublicKey {
	if keys == nil {
		return nil
	}
	out := make([]PublicKey, len(keys))
	for i, k := range keys {
		out[i] = k.Clone()
	}
	return out
}

func checkPublicKeys(keys []PublicKey) error {
	seen := make(map[KeyID]int, len(keys))
	for i, k := range keys {
		field := fmt.Sprintf("publicKeys[%d]", i)
		if err := k.ValidateEnums(field); err != nil {
			return err
		}
		if prev, dup := seen[k.ID]; dup {
			return Errorf(KindValidation, RuleDuplicateKeyID, field+".id",
				"key id %d already used by publicKeys[%d]", k.ID, prev)
		}
		seen[k.ID] = i
	}
	return nil
}
