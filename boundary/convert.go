package boundary

import (
	"encoding/base64"
	"math"

	"xdao.co/identity/compliance"
	"xdao.co/identity/identity"
)

func decodePublicKey(v any, path string, mode compliance.Mode) (identity.PublicKey, error) {
	if k, ok := v.(identity.PublicKey); ok {
		return k.Clone(), k.ValidateEnums(path)
	}
	o, err := asObject(v, path, mode)
	if err != nil {
		return identity.PublicKey{}, err
	}
	id, err := o.uint("id", math.MaxUint32)
	if err != nil {
		return identity.PublicKey{}, err
	}
	typ, err := o.uint("type", math.MaxUint8)
	if err != nil {
		return identity.PublicKey{}, err
	}
	purpose, err := o.uint("purpose", math.MaxUint8)
	if err != nil {
		return identity.PublicKey{}, err
	}
	level, err := o.uint("securityLevel", math.MaxUint8)
	if err != nil {
		return identity.PublicKey{}, err
	}
	data, err := o.bytes("data", true)
	if err != nil {
		return identity.PublicKey{}, err
	}
	readOnly, err := o.bool("readOnly")
	if err != nil {
		return identity.PublicKey{}, err
	}
	k := identity.PublicKey{
		ID:            identity.KeyID(id),
		Type:          identity.KeyType(typ),
		Purpose:       identity.Purpose(purpose),
		SecurityLevel: identity.SecurityLevel(level),
		Data:          data,
		ReadOnly:      readOnly,
	}
	disabledAt, ok, err := o.optionalUint("disabledAt", math.MaxUint64)
	if err != nil {
		return identity.PublicKey{}, err
	}
	if ok {
		k.DisabledAt = &disabledAt
	}
	if err := o.finish(); err != nil {
		return identity.PublicKey{}, err
	}
	return k, k.ValidateEnums(path)
}

func decodeAssetLockProof(v any, path string, mode compliance.Mode) (identity.AssetLockProof, error) {
	if p, ok := v.(identity.AssetLockProof); ok {
		if err := p.Validate(path); err != nil {
			return identity.AssetLockProof{}, err
		}
		return p.Clone(), nil
	}
	o, err := asObject(v, path, mode)
	if err != nil {
		return identity.AssetLockProof{}, err
	}
	typ, err := o.uint("type", math.MaxUint8)
	if err != nil {
		return identity.AssetLockProof{}, err
	}
	p := identity.AssetLockProof{Type: identity.AssetLockProofType(typ)}
	if !p.Type.Valid() {
		return identity.AssetLockProof{}, identity.Errorf(identity.KindValidation, identity.RuleUnknownEnum,
			o.child("type"), "unknown asset lock proof type %d", typ)
	}
	// Fields of the other proof type are refused in every mode: the codecs
	// only carry the fields of p.Type.
	foreign := []string{"outPoint", "coreChainLockedHeight"}
	if p.Type == identity.ChainAssetLockProof {
		foreign = []string{"instantLock", "transaction", "outputIndex"}
	}
	for _, name := range foreign {
		if _, ok := o.get(name); ok {
			return identity.AssetLockProof{}, identity.Errorf(identity.KindDecode, identity.RuleDecodeUnknown,
				o.child(name), "field does not apply to %s asset lock proofs", p.Type)
		}
	}
	switch p.Type {
	case identity.InstantAssetLockProof:
		if p.InstantLock, err = o.bytes("instantLock", false); err != nil {
			return identity.AssetLockProof{}, err
		}
		if p.Transaction, err = o.bytes("transaction", false); err != nil {
			return identity.AssetLockProof{}, err
		}
		idx, _, err := o.optionalUint("outputIndex", math.MaxUint32)
		if err != nil {
			return identity.AssetLockProof{}, err
		}
		p.OutputIndex = uint32(idx)
	case identity.ChainAssetLockProof:
		if p.OutPoint, err = o.bytes("outPoint", false); err != nil {
			return identity.AssetLockProof{}, err
		}
		height, _, err := o.optionalUint("coreChainLockedHeight", math.MaxUint32)
		if err != nil {
			return identity.AssetLockProof{}, err
		}
		p.CoreChainLockedHeight = uint32(height)
	}
	return p, o.finish()
}

// encodeBytes renders b as []byte in raw form and as base-64 text otherwise.
func encodeBytes(b []byte, raw bool) any {
	if raw {
		return append([]byte{}, b...)
	}
	return base64.StdEncoding.EncodeToString(b)
}

func publicKeyValue(k identity.PublicKey, raw bool) map[string]any {
	out := map[string]any{
		"id":            uint32(k.ID),
		"type":          uint8(k.Type),
		"purpose":       uint8(k.Purpose),
		"securityLevel": uint8(k.SecurityLevel),
		"data":          encodeBytes(k.Data, raw),
		"readOnly":      k.ReadOnly,
	}
	if k.DisabledAt != nil {
		out["disabledAt"] = *k.DisabledAt
	}
	return out
}

func assetLockProofValue(p identity.AssetLockProof, raw bool) map[string]any {
	out := map[string]any{"type": uint8(p.Type)}
	switch p.Type {
	case identity.InstantAssetLockProof:
		out["instantLock"] = encodeBytes(p.InstantLock, raw)
		out["transaction"] = encodeBytes(p.Transaction, raw)
		out["outputIndex"] = p.OutputIndex
	case identity.ChainAssetLockProof:
		out["coreChainLockedHeight"] = p.CoreChainLockedHeight
		out["outPoint"] = encodeBytes(p.OutPoint, raw)
	}
	return out
}

func metadataValue(m identity.Metadata) map[string]any {
	return map[string]any{
		"blockHeight":           m.BlockHeight,
		"coreChainLockedHeight": m.CoreChainLockedHeight,
		"timeMs":                m.TimeMs,
		"protocolVersion":       m.ProtocolVersion,
	}
}
