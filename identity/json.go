package identity

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"xdao.co/identity/identifier"
)

// JSON wire shapes. Pointer fields distinguish "absent" from "zero" so that
// required fields can be reported by name.

type identityJSON struct {
	ProtocolVersion *uint32                `json:"protocolVersion"`
	ID              *identifier.Identifier `json:"id"`
	PublicKeys      *[]publicKeyJSON       `json:"publicKeys"`
	Balance         *uint64                `json:"balance"`
	Revision        *uint64                `json:"revision"`
	AssetLockProof  *assetLockProofJSON    `json:"assetLockProof,omitempty"`
	Metadata        *metadataJSON          `json:"metadata,omitempty"`
}

type publicKeyJSON struct {
	ID            *KeyID         `json:"id"`
	Type          *KeyType       `json:"type"`
	Purpose       *Purpose       `json:"purpose"`
	SecurityLevel *SecurityLevel `json:"securityLevel"`
	Data          *[]byte        `json:"data"`
	ReadOnly      bool           `json:"readOnly"`
	DisabledAt    *uint64        `json:"disabledAt,omitempty"`
}

type assetLockProofJSON struct {
	Type                  *AssetLockProofType `json:"type"`
	InstantLock           []byte              `json:"instantLock,omitempty"`
	Transaction           []byte              `json:"transaction,omitempty"`
	OutputIndex           *uint32             `json:"outputIndex,omitempty"`
	CoreChainLockedHeight *uint32             `json:"coreChainLockedHeight,omitempty"`
	OutPoint              []byte              `json:"outPoint,omitempty"`
}

type metadataJSON struct {
	BlockHeight           uint64 `json:"blockHeight"`
	CoreChainLockedHeight uint64 `json:"coreChainLockedHeight"`
	TimeMs                uint64 `json:"timeMs"`
	ProtocolVersion       uint32 `json:"protocolVersion"`
}

// MarshalJSON encodes the full field set. The id is base-58 text and byte
// fields are standard base-64. Integers are written exactly.
func (i Identity) MarshalJSON() ([]byte, error) {
	keys := make([]publicKeyJSON, len(i.publicKeys))
	for n, k := range i.publicKeys {
		keys[n] = publicKeyToJSON(k)
	}
	pv, id, bal, rev := i.protocolVersion, i.id, i.balance, i.revision
	w := identityJSON{
		ProtocolVersion: &pv,
		ID:              &id,
		PublicKeys:      &keys,
		Balance:         &bal,
		Revision:        &rev,
	}
	if i.assetLockProof != nil {
		p := assetLockProofToJSON(*i.assetLockProof)
		w.AssetLockProof = &p
	}
	if i.metadata != nil {
		m := metadataJSON(*i.metadata)
		w.Metadata = &m
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, WrapError(KindEncode, RuleEncodeUnrepresentable, "", "identity is not representable as JSON", err)
	}
	return b, nil
}

// UnmarshalJSON decodes the full field set, ignoring unknown fields.
func (i *Identity) UnmarshalJSON(data []byte) error {
	out, err := DecodeJSON(data, false)
	if err != nil {
		return err
	}
	*i = out
	return nil
}

// DecodeJSON decodes JSON text into an Identity. With strict set, fields
// outside the identity shape are rejected.
func DecodeJSON(data []byte, strict bool) (Identity, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if strict {
		dec.DisallowUnknownFields()
	}
	var w identityJSON
	if err := dec.Decode(&w); err != nil {
		return Identity{}, mapJSONError(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Identity{}, NewError(KindDecode, RuleDecodeSyntax, "", "unexpected data after identity JSON")
	}
	return w.identity()
}

func (w identityJSON) identity() (Identity, error) {
	switch {
	case w.ProtocolVersion == nil:
		return Identity{}, missing("protocolVersion")
	case w.ID == nil:
		return Identity{}, missing("id")
	case w.PublicKeys == nil:
		return Identity{}, missing("publicKeys")
	case w.Balance == nil:
		return Identity{}, missing("balance")
	case w.Revision == nil:
		return Identity{}, missing("revision")
	}
	keys := make([]PublicKey, 0, len(*w.PublicKeys))
	for n, kj := range *w.PublicKeys {
		k, err := kj.publicKey(fmt.Sprintf("publicKeys[%d]", n))
		if err != nil {
			return Identity{}, err
		}
		keys = append(keys, k)
	}
	out, err := New(*w.ProtocolVersion, *w.ID, keys, *w.Balance, *w.Revision)
	if err != nil {
		return Identity{}, err
	}
	if w.AssetLockProof != nil {
		p, err := w.AssetLockProof.proof()
		if err != nil {
			return Identity{}, err
		}
		if out, err = out.WithAssetLockProof(p); err != nil {
			return Identity{}, err
		}
	}
	if w.Metadata != nil {
		out = out.WithMetadata(Metadata(*w.Metadata))
	}
	return out, nil
}

func publicKeyToJSON(k PublicKey) publicKeyJSON {
	id, typ, purpose, level := k.ID, k.Type, k.Purpose, k.SecurityLevel
	data := append([]byte{}, k.Data...)
	out := publicKeyJSON{
		ID:            &id,
		Type:          &typ,
		Purpose:       &purpose,
		SecurityLevel: &level,
		Data:          &data,
		ReadOnly:      k.ReadOnly,
	}
	if k.DisabledAt != nil {
		v := *k.DisabledAt
		out.DisabledAt = &v
	}
	return out
}

func (kj publicKeyJSON) publicKey(field string) (PublicKey, error) {
	switch {
	case kj.ID == nil:
		return PublicKey{}, missing(field + ".id")
	case kj.Type == nil:
		return PublicKey{}, missing(field + ".type")
	case kj.Purpose == nil:
		return PublicKey{}, missing(field + ".purpose")
	case kj.SecurityLevel == nil:
		return PublicKey{}, missing(field + ".securityLevel")
	case kj.Data == nil:
		return PublicKey{}, missing(field + ".data")
	}
	k := PublicKey{
		ID:            *kj.ID,
		Type:          *kj.Type,
		Purpose:       *kj.Purpose,
		SecurityLevel: *kj.SecurityLevel,
		Data:          *kj.Data,
		ReadOnly:      kj.ReadOnly,
		DisabledAt:    kj.DisabledAt,
	}
	return k, k.ValidateEnums(field)
}

func assetLockProofToJSON(p AssetLockProof) assetLockProofJSON {
	typ := p.Type
	out := assetLockProofJSON{Type: &typ}
	switch p.Type {
	case InstantAssetLockProof:
		idx := p.OutputIndex
		out.InstantLock = p.InstantLock
		out.Transaction = p.Transaction
		out.OutputIndex = &idx
	case ChainAssetLockProof:
		h := p.CoreChainLockedHeight
		out.CoreChainLockedHeight = &h
		out.OutPoint = p.OutPoint
	}
	return out
}

func (pj assetLockProofJSON) proof() (AssetLockProof, error) {
	if pj.Type == nil {
		return AssetLockProof{}, missing("assetLockProof.type")
	}
	if !pj.Type.Valid() {
		return AssetLockProof{}, Errorf(KindValidation, RuleUnknownEnum, "assetLockProof.type",
			"unknown asset lock proof type %d", uint8(*pj.Type))
	}
	p := AssetLockProof{
		Type:        *pj.Type,
		InstantLock: pj.InstantLock,
		Transaction: pj.Transaction,
		OutPoint:    pj.OutPoint,
	}
	if pj.OutputIndex != nil {
		p.OutputIndex = *pj.OutputIndex
	}
	if pj.CoreChainLockedHeight != nil {
		p.CoreChainLockedHeight = *pj.CoreChainLockedHeight
	}
	return p, nil
}

func missing(field string) error {
	return NewError(KindDecode, RuleDecodeMissing, field, "required field is missing")
}

// mapJSONError converts encoding/json failures into structured errors.
func mapJSONError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		b64Err    base64.CorruptInputError
	)
	switch {
	case errors.As(err, &syntaxErr):
		return WrapError(KindDecode, RuleDecodeSyntax, "",
			fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset), err)
	case errors.As(err, &typeErr):
		if strings.HasPrefix(typeErr.Value, "number") {
			return WrapError(KindRange, RuleRangeWidth, typeErr.Field,
				fmt.Sprintf("%s does not fit %s", typeErr.Value, typeErr.Type), err)
		}
		return WrapError(KindDecode, RuleDecodeShape, typeErr.Field,
			fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value), err)
	case errors.Is(err, identifier.ErrInvalidLength):
		return WrapError(KindIdentifier, RuleIDLength, "id", "identifier has the wrong length", err)
	case errors.Is(err, identifier.ErrInvalidEncoding):
		return WrapError(KindIdentifier, RuleIDEncoding, "id", "identifier is not valid base58", err)
	case errors.As(err, &b64Err):
		return WrapError(KindDecode, RuleDecodeShape, "", "invalid base64 byte field", err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return WrapError(KindDecode, RuleDecodeSyntax, "", "truncated JSON", err)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return WrapError(KindDecode, RuleDecodeUnknown, strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`),
			"unknown field", err)
	default:
		return WrapError(KindDecode, RuleDecodeSyntax, "", "malformed JSON", err)
	}
}
