// Package identity defines the Identity value and its JSON and buffer codecs.
//
// Identity is immutable: every With*/Increase*/Reduce* method returns a new
// value and leaves the receiver untouched. Byte slices are copied on the way
// in and on the way out, so two Identity values never alias mutable state.
package identity

import (
	"math"

	"xdao.co/identity/identifier"
)

// CurrentProtocolVersion is the protocol version new identities are created with.
const CurrentProtocolVersion uint32 = 1

type Identity struct {
	protocolVersion uint32
	id              identifier.Identifier
	publicKeys      []PublicKey
	balance         uint64
	revision        uint64
	assetLockProof  *AssetLockProof
	metadata        *Metadata
}

// New builds an Identity. Public key ids must be unique and their enum
// fields known.
func New(protocolVersion uint32, id identifier.Identifier, publicKeys []PublicKey, balance, revision uint64) (Identity, error) {
	if err := checkPublicKeys(publicKeys); err != nil {
		return Identity{}, err
	}
	return Identity{
		protocolVersion: protocolVersion,
		id:              id,
		publicKeys:      clonePublicKeys(publicKeys),
		balance:         balance,
		revision:        revision,
	}, nil
}

func (i Identity) ProtocolVersion() uint32 { return i.protocolVersion }

func (i Identity) ID() identifier.Identifier { return i.id }

func (i Identity) Balance() uint64 { return i.balance }

func (i Identity) Revision() uint64 { return i.revision }

// PublicKeys returns a copy of the key collection in stored order.
func (i Identity) PublicKeys() []PublicKey { return clonePublicKeys(i.publicKeys) }

// PublicKeyByID returns the key whose id is keyID.
func (i Identity) PublicKeyByID(keyID KeyID) (PublicKey, bool) {
	for _, k := range i.publicKeys {
		if k.ID == keyID {
			return k.Clone(), true
		}
	}
	return PublicKey{}, false
}

func (i Identity) AssetLockProof() (AssetLockProof, bool) {
	if i.assetLockProof == nil {
		return AssetLockProof{}, false
	}
	return i.assetLockProof.Clone(), true
}

func (i Identity) Metadata() (Metadata, bool) {
	if i.metadata == nil {
		return Metadata{}, false
	}
	return *i.metadata, true
}

// WithPublicKeys replaces the key collection.
func (i Identity) WithPublicKeys(keys []PublicKey) (Identity, error) {
	if err := checkPublicKeys(keys); err != nil {
		return i, err
	}
	i.publicKeys = clonePublicKeys(keys)
	return i, nil
}

func (i Identity) WithBalance(balance uint64) Identity {
	i.balance = balance
	return i
}

// IncreaseBalance adds amount. It fails rather than wraps on overflow.
func (i Identity) IncreaseBalance(amount uint64) (Identity, error) {
	if amount > math.MaxUint64-i.balance {
		return i, Errorf(KindBalance, RuleBalanceOverflow, "balance",
			"increase by %d overflows balance %d", amount, i.balance)
	}
	i.balance += amount
	return i, nil
}

// ReduceBalance subtracts amount. It fails rather than wraps on underflow.
func (i Identity) ReduceBalance(amount uint64) (Identity, error) {
	if amount > i.balance {
		return i, Errorf(KindBalance, RuleBalanceUnderflow, "balance",
			"reduce by %d exceeds balance %d", amount, i.balance)
	}
	i.balance -= amount
	return i, nil
}

func (i Identity) WithRevision(revision uint64) Identity {
	i.revision = revision
	return i
}

func (i Identity) WithProtocolVersion(v uint32) Identity {
	i.protocolVersion = v
	return i
}

// WithAssetLockProof stores a copy of p. Proofs that fail Validate are rejected.
func (i Identity) WithAssetLockProof(p AssetLockProof) (Identity, error) {
	if err := p.Validate("assetLockProof"); err != nil {
		return i, err
	}
	c := p.Clone()
	i.assetLockProof = &c
	return i, nil
}

func (i Identity) WithoutAssetLockProof() Identity {
	i.assetLockProof = nil
	return i
}

func (i Identity) WithMetadata(m Metadata) Identity {
	i.metadata = &m
	return i
}

func (i Identity) WithoutMetadata() Identity {
	i.metadata = nil
	return i
}

// Equal reports field-for-field equality, including key order.
func (i Identity) Equal(o Identity) bool {
	if i.protocolVersion != o.protocolVersion || i.id != o.id ||
		i.balance != o.balance || i.revision != o.revision {
		return false
	}
	if len(i.publicKeys) != len(o.publicKeys) {
		return false
	}
	for n := range i.publicKeys {
		if !i.publicKeys[n].Equal(o.publicKeys[n]) {
			return false
		}
	}
	if (i.assetLockProof == nil) != (o.assetLockProof == nil) {
		return false
	}
	if i.assetLockProof != nil && !i.assetLockProof.Equal(*o.assetLockProof) {
		return false
	}
	if (i.metadata == nil) != (o.metadata == nil) {
		return false
	}
	return i.metadata == nil || *i.metadata == *o.metadata
}
