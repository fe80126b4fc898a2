package identity

import (
	"bytes"
	"fmt"
)

type AssetLockProofType uint8

const (
	InstantAssetLockProof AssetLockProofType = 0
	ChainAssetLockProof   AssetLockProofType = 1
)

func (t AssetLockProofType) Valid() bool { return t <= ChainAssetLockProof }

func (t AssetLockProofType) String() string {
	switch t {
	case InstantAssetLockProof:
		return "instant"
	case ChainAssetLockProof:
		return "chain"
	default:
		return fmt.Sprintf("AssetLockProofType(%d)", uint8(t))
	}
}

// AssetLockProof establishes the funding source of an identity.
//
// It is carried as-is: no transaction parsing and no lock verification is
// done in this module. Instant proofs use InstantLock, Transaction and
// OutputIndex; chain proofs use CoreChainLockedHeight and OutPoint.
type AssetLockProof struct {
	Type                  AssetLockProofType
	InstantLock           []byte
	Transaction           []byte
	OutputIndex           uint32
	CoreChainLockedHeight uint32
	OutPoint              []byte
}

// Validate checks the type and rejects fields that belong to the other proof
// type, since the codecs only carry the fields of p.Type. field prefixes the
// reported path.
func (p AssetLockProof) Validate(field string) error {
	child := func(name string) string {
		if field == "" {
			return name
		}
		return field + "." + name
	}
	var foreign string
	switch p.Type {
	case InstantAssetLockProof:
		switch {
		case p.CoreChainLockedHeight != 0:
			foreign = "coreChainLockedHeight"
		case len(p.OutPoint) != 0:
			foreign = "outPoint"
		}
	case ChainAssetLockProof:
		switch {
		case len(p.InstantLock) != 0:
			foreign = "instantLock"
		case len(p.Transaction) != 0:
			foreign = "transaction"
		case p.OutputIndex != 0:
			foreign = "outputIndex"
		}
	default:
		return Errorf(KindValidation, RuleUnknownEnum, child("type"), "unknown asset lock proof type %d", uint8(p.Type))
	}
	if foreign != "" {
		return Errorf(KindDecode, RuleDecodeUnknown, child(foreign), "field does not apply to %s asset lock proofs", p.Type)
	}
	return nil
}

func (p AssetLockProof) Clone() AssetLockProof {
	out := p
	out.InstantLock = append([]byte(nil), p.InstantLock...)
	out.Transaction = append([]byte(nil), p.Transaction...)
	out.OutPoint = append([]byte(nil), p.OutPoint...)
	return out
}

func (p AssetLockProof) Equal(o AssetLockProof) bool {
	return p.Type == o.Type &&
		p.OutputIndex == o.OutputIndex &&
		p.CoreChainLockedHeight == o.CoreChainLockedHeight &&
		bytes.Equal(p.InstantLock, o.InstantLock) &&
		bytes.Equal(p.Transaction, o.Transaction) &&
		bytes.Equal(p.OutPoint, o.OutPoint)
}

// Metadata describes the platform state an identity was fetched at.
type Metadata struct {
	BlockHeight           uint64
	CoreChainLockedHeight uint64
	TimeMs                uint64
	ProtocolVersion       uint32
}
