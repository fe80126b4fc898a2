// Package boundary converts identities to and from host values.
//
// A host value is the dynamically typed, JSON-like data a scripting host
// hands over: map[string]any, []any, string, float64 or json.Number, bool
// and nil. Go slices and string-keyed maps are walked element by element;
// any other Go value is round-tripped through encoding/json.
//
// Adapter owns one identity.Identity. Setters never modify the receiver;
// they return a new Adapter, so adapters can be shared freely.
package boundary

import (
	"fmt"
	"math"
	"strconv"

	"github.com/ipfs/go-cid"

	"xdao.co/identity/compliance"
	"xdao.co/identity/identifier"
	"xdao.co/identity/identity"
)

type Adapter struct {
	ident identity.Identity
	mode  compliance.Mode
}

type Option func(*Adapter)

// WithMode sets how strictly host values are accepted. Default: Permissive.
func WithMode(mode compliance.Mode) Option {
	return func(a *Adapter) { a.mode = mode }
}

func newAdapter(ident identity.Identity, opts []Option) Adapter {
	a := Adapter{ident: ident}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// Wrap returns an adapter over an existing identity.
func Wrap(ident identity.Identity, opts ...Option) Adapter {
	return newAdapter(ident, opts)
}

// New builds an adapter from a host value shaped as
//
//	{protocolVersion, id, publicKeys, balance, revision}
//
// assetLockProof and metadata are not read on this path; use the setters or
// From for those.
func New(value any, opts ...Option) (Adapter, error) {
	a := newAdapter(identity.Identity{}, opts)
	o, err := asObject(value, "", a.mode)
	if err != nil {
		return Adapter{}, err
	}
	protocolVersion, err := o.uint("protocolVersion", math.MaxUint32)
	if err != nil {
		return Adapter{}, err
	}
	rawID, err := o.requireValue("id")
	if err != nil {
		return Adapter{}, err
	}
	id, err := toIdentifier(rawID, "id")
	if err != nil {
		return Adapter{}, err
	}
	list, err := o.list("publicKeys")
	if err != nil {
		return Adapter{}, err
	}
	keys, err := a.decodePublicKeys(list)
	if err != nil {
		return Adapter{}, err
	}
	balance, err := o.uint("balance", math.MaxUint64)
	if err != nil {
		return Adapter{}, err
	}
	revision, err := o.uint("revision", math.MaxUint64)
	if err != nil {
		return Adapter{}, err
	}
	o.skip("assetLockProof", "metadata")
	if err := o.finish(); err != nil {
		return Adapter{}, err
	}

	a.ident, err = identity.New(uint32(protocolVersion), id, keys, balance, revision)
	if err != nil {
		return Adapter{}, err
	}
	return a, nil
}

// From parses JSON text carrying the full identity, including the optional
// assetLockProof and metadata fields.
func From(text string, opts ...Option) (Adapter, error) {
	a := newAdapter(identity.Identity{}, opts)
	ident, err := identity.DecodeJSON([]byte(text), a.mode == compliance.Strict)
	if err != nil {
		return Adapter{}, err
	}
	a.ident = ident
	return a, nil
}

// FromBuffer decodes the binary form produced by ToBuffer.
func FromBuffer(buf []byte, opts ...Option) (Adapter, error) {
	ident, err := identity.FromBuffer(buf)
	if err != nil {
		return Adapter{}, err
	}
	return newAdapter(ident, opts), nil
}

func (a Adapter) decodePublicKeys(list []any) ([]identity.PublicKey, error) {
	keys := make([]identity.PublicKey, 0, len(list))
	for i, v := range list {
		k, err := decodePublicKey(v, indexPath("publicKeys", i), a.mode)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Identity returns the wrapped value.
func (a Adapter) Identity() identity.Identity { return a.ident }

func (a Adapter) Mode() compliance.Mode { return a.mode }

func (a Adapter) ProtocolVersion() uint32 { return a.ident.ProtocolVersion() }

func (a Adapter) ID() identifier.Identifier { return a.ident.ID() }

func (a Adapter) Balance() uint64 { return a.ident.Balance() }

func (a Adapter) Revision() uint64 { return a.ident.Revision() }

// SetPublicKeys replaces the key collection with list decoded from host values.
func (a Adapter) SetPublicKeys(list []any) (Adapter, error) {
	keys, err := a.decodePublicKeys(list)
	if err != nil {
		return a, err
	}
	next, err := a.ident.WithPublicKeys(keys)
	if err != nil {
		return a, err
	}
	a.ident = next
	return a, nil
}

// PublicKeys returns one JSON-form host value per key, in stored order.
func (a Adapter) PublicKeys() []any {
	keys := a.ident.PublicKeys()
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = publicKeyValue(k, false)
	}
	return out
}

// PublicKeyByID returns the key with the given id. A missing id is not an error.
func (a Adapter) PublicKeyByID(id uint32) (identity.PublicKey, bool) {
	return a.ident.PublicKeyByID(identity.KeyID(id))
}

func (a Adapter) SetBalance(balance uint64) Adapter {
	a.ident = a.ident.WithBalance(balance)
	return a
}

func (a Adapter) IncreaseBalance(amount uint64) (Adapter, error) {
	next, err := a.ident.IncreaseBalance(amount)
	if err != nil {
		return a, err
	}
	a.ident = next
	return a, nil
}

func (a Adapter) ReduceBalance(amount uint64) (Adapter, error) {
	next, err := a.ident.ReduceBalance(amount)
	if err != nil {
		return a, err
	}
	a.ident = next
	return a, nil
}

// SetAssetLockProof decodes a host value (or an identity.AssetLockProof) and
// stores it unverified.
func (a Adapter) SetAssetLockProof(value any) (Adapter, error) {
	p, err := decodeAssetLockProof(value, "assetLockProof", a.mode)
	if err != nil {
		return a, err
	}
	ident, err := a.ident.WithAssetLockProof(p)
	if err != nil {
		return a, err
	}
	a.ident = ident
	return a, nil
}

func (a Adapter) AssetLockProof() (identity.AssetLockProof, bool) {
	return a.ident.AssetLockProof()
}

func (a Adapter) SetRevision(revision uint64) Adapter {
	a.ident = a.ident.WithRevision(revision)
	return a
}

func (a Adapter) SetMetadata(m identity.Metadata) Adapter {
	a.ident = a.ident.WithMetadata(m)
	return a
}

func (a Adapter) Metadata() (identity.Metadata, bool) {
	return a.ident.Metadata()
}

// ToJSON returns the identity as a JSON-safe host value: the id is base-58
// text and byte fields are base-64 text.
func (a Adapter) ToJSON() map[string]any {
	return a.value(false)
}

// ToObject returns the identity as a raw host value: the id and byte fields
// are []byte.
func (a Adapter) ToObject() map[string]any {
	return a.value(true)
}

func (a Adapter) value(raw bool) map[string]any {
	keys := a.ident.PublicKeys()
	list := make([]any, len(keys))
	for i, k := range keys {
		list[i] = publicKeyValue(k, raw)
	}
	out := map[string]any{
		"protocolVersion": a.ident.ProtocolVersion(),
		"publicKeys":      list,
		"balance":         a.ident.Balance(),
		"revision":        a.ident.Revision(),
	}
	if raw {
		out["id"] = a.ident.ID().Bytes()
	} else {
		out["id"] = a.ident.ID().String()
	}
	if p, ok := a.ident.AssetLockProof(); ok {
		out["assetLockProof"] = assetLockProofValue(p, raw)
	}
	if m, ok := a.ident.Metadata(); ok {
		out["metadata"] = metadataValue(m)
	}
	return out
}

// MarshalJSON encodes the identity as JSON text; see identity.Identity.MarshalJSON.
func (a Adapter) MarshalJSON() ([]byte, error) {
	return a.ident.MarshalJSON()
}

// String returns the JSON text form. It is the text From accepts. On an
// encoding failure it returns a %!(...) marker that From rejects; callers
// that need the error use MarshalJSON.
func (a Adapter) String() string {
	return jsonText(a.ident.MarshalJSON())
}

func jsonText(b []byte, err error) string {
	if err != nil {
		return fmt.Sprintf("%%!(identity: %v)", err)
	}
	return string(b)
}

// ToBuffer encodes the identity in its binary form.
func (a Adapter) ToBuffer() ([]byte, error) {
	return a.ident.ToBuffer()
}

// CID returns the content identifier of the binary form.
func (a Adapter) CID() (cid.Cid, error) {
	return a.ident.CID()
}

// Equal compares the wrapped identities field for field.
func (a Adapter) Equal(o Adapter) bool {
	return a.ident.Equal(o.ident)
}

func indexPath(name string, i int) string {
	return name + "[" + strconv.Itoa(i) + "]"
}
