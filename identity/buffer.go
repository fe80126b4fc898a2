package identity

import (
	"encoding/binary"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"xdao.co/identity/identifier"
)

// Buffer layout:
//
//	[0:4]  protocol version, little-endian uint32
//	[4:]   protobuf wire-format body (fields below), emitted in field order
//
// Identity:       1 id (bytes), 2 publicKeys (repeated message), 3 balance,
//                 4 revision, 5 assetLockProof (message), 6 metadata (message)
// PublicKey:      1 id, 2 type, 3 purpose, 4 securityLevel, 5 data (bytes),
//                 6 readOnly, 7 disabledAt (present iff set)
// AssetLockProof: 1 type, 2 instantLock, 3 transaction, 4 outputIndex,
//                 5 coreChainLockedHeight, 6 outPoint
// Metadata:       1 blockHeight, 2 coreChainLockedHeight, 3 timeMs, 4 protocolVersion
//
// Encoding is deterministic, so equal identities produce equal bytes and
// equal CIDs. Unknown fields are skipped on decode.

const versionPrefixSize = 4

// ToBuffer encodes i in the binary buffer form.
func (i Identity) ToBuffer() ([]byte, error) {
	b := make([]byte, versionPrefixSize, 64+len(i.publicKeys)*48)
	binary.LittleEndian.PutUint32(b, i.protocolVersion)

	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, i.id[:])
	for _, k := range i.publicKeys {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, appendPublicKey(nil, k))
	}
	b = appendVarintField(b, 3, i.balance)
	b = appendVarintField(b, 4, i.revision)
	if i.assetLockProof != nil {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, appendAssetLockProof(nil, *i.assetLockProof))
	}
	if i.metadata != nil {
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendBytes(b, appendMetadata(nil, *i.metadata))
	}
	return b, nil
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendPublicKey(b []byte, k PublicKey) []byte {
	b = appendVarintField(b, 1, uint64(k.ID))
	b = appendVarintField(b, 2, uint64(k.Type))
	b = appendVarintField(b, 3, uint64(k.Purpose))
	b = appendVarintField(b, 4, uint64(k.SecurityLevel))
	b = protowire.AppendTag(b, 5, protowire.BytesType)
	b = protowire.AppendBytes(b, k.Data)
	if k.ReadOnly {
		b = appendVarintField(b, 6, 1)
	}
	if k.DisabledAt != nil {
		b = appendVarintField(b, 7, *k.DisabledAt)
	}
	return b
}

func appendAssetLockProof(b []byte, p AssetLockProof) []byte {
	b = appendVarintField(b, 1, uint64(p.Type))
	switch p.Type {
	case InstantAssetLockProof:
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, p.InstantLock)
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Transaction)
		b = appendVarintField(b, 4, uint64(p.OutputIndex))
	case ChainAssetLockProof:
		b = appendVarintField(b, 5, uint64(p.CoreChainLockedHeight))
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendBytes(b, p.OutPoint)
	}
	return b
}

func appendMetadata(b []byte, m Metadata) []byte {
	b = appendVarintField(b, 1, m.BlockHeight)
	b = appendVarintField(b, 2, m.CoreChainLockedHeight)
	b = appendVarintField(b, 3, m.TimeMs)
	b = appendVarintField(b, 4, uint64(m.ProtocolVersion))
	return b
}

// FromBuffer decodes the binary buffer form produced by ToBuffer.
func FromBuffer(buf []byte) (Identity, error) {
	if len(buf) < versionPrefixSize {
		return Identity{}, Errorf(KindDecode, RuleBufferPrefix, "protocolVersion",
			"buffer has %d bytes, need at least %d", len(buf), versionPrefixSize)
	}
	protocolVersion := binary.LittleEndian.Uint32(buf)

	var (
		id          *identifier.Identifier
		keys        []PublicKey
		balance     uint64
		revision    uint64
		proof       *AssetLockProof
		meta        *Metadata
		sawBalance  bool
		sawRevision bool
	)
	err := walkFields(buf[versionPrefixSize:], "", func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(b, typ, "id")
			if err != nil {
				return 0, err
			}
			parsed, err := identifier.FromBytes(v)
			if err != nil {
				return 0, WrapError(KindIdentifier, RuleIDLength, "id", "identifier has the wrong length", err)
			}
			id = &parsed
			return n, nil
		case 2:
			field := fmt.Sprintf("publicKeys[%d]", len(keys))
			v, n, err := consumeBytes(b, typ, field)
			if err != nil {
				return 0, err
			}
			k, err := decodePublicKey(v, field)
			if err != nil {
				return 0, err
			}
			keys = append(keys, k)
			return n, nil
		case 3:
			v, n, err := consumeVarint(b, typ, "balance")
			balance, sawBalance = v, true
			return n, err
		case 4:
			v, n, err := consumeVarint(b, typ, "revision")
			revision, sawRevision = v, true
			return n, err
		case 5:
			v, n, err := consumeBytes(b, typ, "assetLockProof")
			if err != nil {
				return 0, err
			}
			p, err := decodeAssetLockProof(v)
			if err != nil {
				return 0, err
			}
			proof = &p
			return n, nil
		case 6:
			v, n, err := consumeBytes(b, typ, "metadata")
			if err != nil {
				return 0, err
			}
			m, err := decodeMetadata(v)
			if err != nil {
				return 0, err
			}
			meta = &m
			return n, nil
		}
		return skipField(b, num, typ, "")
	})
	if err != nil {
		return Identity{}, err
	}
	switch {
	case id == nil:
		return Identity{}, missing("id")
	case !sawBalance:
		return Identity{}, missing("balance")
	case !sawRevision:
		return Identity{}, missing("revision")
	}

	out, err := New(protocolVersion, *id, keys, balance, revision)
	if err != nil {
		return Identity{}, err
	}
	if proof != nil {
		if out, err = out.WithAssetLockProof(*proof); err != nil {
			return Identity{}, err
		}
	}
	if meta != nil {
		out = out.WithMetadata(*meta)
	}
	return out, nil
}

func decodePublicKey(b []byte, field string) (PublicKey, error) {
	var (
		k    PublicKey
		seen [6]bool
	)
	err := walkFields(b, field, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeUint(b, typ, field+".id", math.MaxUint32)
			k.ID, seen[1] = KeyID(v), true
			return n, err
		case 2:
			v, n, err := consumeUint(b, typ, field+".type", math.MaxUint8)
			k.Type, seen[2] = KeyType(v), true
			return n, err
		case 3:
			v, n, err := consumeUint(b, typ, field+".purpose", math.MaxUint8)
			k.Purpose, seen[3] = Purpose(v), true
			return n, err
		case 4:
			v, n, err := consumeUint(b, typ, field+".securityLevel", math.MaxUint8)
			k.SecurityLevel, seen[4] = SecurityLevel(v), true
			return n, err
		case 5:
			v, n, err := consumeBytes(b, typ, field+".data")
			k.Data, seen[5] = append([]byte(nil), v...), true
			return n, err
		case 6:
			v, n, err := consumeVarint(b, typ, field+".readOnly")
			k.ReadOnly = v != 0
			return n, err
		case 7:
			v, n, err := consumeVarint(b, typ, field+".disabledAt")
			k.DisabledAt = &v
			return n, err
		}
		return skipField(b, num, typ, field)
	})
	if err != nil {
		return PublicKey{}, err
	}
	for num, name := range [...]string{1: "id", 2: "type", 3: "purpose", 4: "securityLevel", 5: "data"} {
		if num > 0 && !seen[num] {
			return PublicKey{}, missing(field + "." + name)
		}
	}
	return k, nil
}

func decodeAssetLockProof(b []byte) (AssetLockProof, error) {
	const field = "assetLockProof"
	var (
		p       AssetLockProof
		sawType bool
	)
	err := walkFields(b, field, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeUint(b, typ, field+".type", math.MaxUint8)
			p.Type, sawType = AssetLockProofType(v), true
			return n, err
		case 2:
			v, n, err := consumeBytes(b, typ, field+".instantLock")
			p.InstantLock = append([]byte(nil), v...)
			return n, err
		case 3:
			v, n, err := consumeBytes(b, typ, field+".transaction")
			p.Transaction = append([]byte(nil), v...)
			return n, err
		case 4:
			v, n, err := consumeUint(b, typ, field+".outputIndex", math.MaxUint32)
			p.OutputIndex = uint32(v)
			return n, err
		case 5:
			v, n, err := consumeUint(b, typ, field+".coreChainLockedHeight", math.MaxUint32)
			p.CoreChainLockedHeight = uint32(v)
			return n, err
		case 6:
			v, n, err := consumeBytes(b, typ, field+".outPoint")
			p.OutPoint = append([]byte(nil), v...)
			return n, err
		}
		return skipField(b, num, typ, field)
	})
	if err != nil {
		return AssetLockProof{}, err
	}
	if !sawType {
		return AssetLockProof{}, missing(field + ".type")
	}
	if err := p.Validate(field); err != nil {
		return AssetLockProof{}, err
	}
	return p, nil
}

func decodeMetadata(b []byte) (Metadata, error) {
	const field = "metadata"
	var m Metadata
	err := walkFields(b, field, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeVarint(b, typ, field+".blockHeight")
			m.BlockHeight = v
			return n, err
		case 2:
			v, n, err := consumeVarint(b, typ, field+".coreChainLockedHeight")
			m.CoreChainLockedHeight = v
			return n, err
		case 3:
			v, n, err := consumeVarint(b, typ, field+".timeMs")
			m.TimeMs = v
			return n, err
		case 4:
			v, n, err := consumeUint(b, typ, field+".protocolVersion", math.MaxUint32)
			m.ProtocolVersion = uint32(v)
			return n, err
		}
		return skipField(b, num, typ, field)
	})
	return m, err
}

// walkFields calls visit for every field in b. visit returns how many bytes
// of the value it consumed.
func walkFields(b []byte, field string, visit func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return WrapError(KindDecode, RuleBufferTag, field, "malformed field tag", protowire.ParseError(n))
		}
		b = b[n:]
		m, err := visit(num, typ, b)
		if err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

func consumeVarint(b []byte, typ protowire.Type, field string) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, wireTypeError(field, typ, protowire.VarintType)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, WrapError(KindDecode, RuleBufferVarint, field, "malformed varint", protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeUint(b []byte, typ protowire.Type, field string, max uint64) (uint64, int, error) {
	v, n, err := consumeVarint(b, typ, field)
	if err != nil {
		return 0, 0, err
	}
	if v > max {
		return 0, 0, Errorf(KindRange, RuleRangeWidth, field, "value %d exceeds maximum %d", v, max)
	}
	return v, n, nil
}

func consumeBytes(b []byte, typ protowire.Type, field string) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, wireTypeError(field, typ, protowire.BytesType)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, WrapError(KindDecode, RuleBufferBytes, field, "malformed length-delimited field", protowire.ParseError(n))
	}
	return v, n, nil
}

func skipField(b []byte, num protowire.Number, typ protowire.Type, field string) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, WrapError(KindDecode, RuleBufferTruncated, field,
			fmt.Sprintf("malformed unknown field %d", num), protowire.ParseError(n))
	}
	return n, nil
}

func wireTypeError(field string, got, want protowire.Type) error {
	return Errorf(KindDecode, RuleBufferWireType, field, "wire type %d, want %d", got, want)
}
