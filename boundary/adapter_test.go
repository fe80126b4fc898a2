package boundary

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/identity/compliance"
	"xdao.co/identity/identifier"
	"xdao.co/identity/identity"
)

const zeroID = "11111111111111111111111111111111"

// hostValue mimics what a host passes in after parsing JSON: floats for
// numbers, strings for ids and byte fields.
func hostValue() map[string]any {
	return map[string]any{
		"protocolVersion": float64(1),
		"id":              zeroID,
		"publicKeys": []any{
			map[string]any{"id": float64(0), "type": float64(0), "purpose": float64(0), "securityLevel": float64(0), "data": "AkVMoRW6m8qWnTe3J8o/zbVxjlHk9/KOeNIvTrbRxYu8", "readOnly": false},
			map[string]any{"id": float64(2), "type": float64(2), "purpose": float64(1), "securityLevel": float64(2), "data": "FBQUFBQUFBQUFBQUFBQUFBQUFBQ=", "readOnly": true},
			map[string]any{"id": float64(1), "type": float64(4), "purpose": float64(3), "securityLevel": float64(1), "data": "ERERERERERERERERERERERERERE=", "disabledAt": float64(1700000000000)},
		},
		"balance":  float64(100),
		"revision": float64(0),
	}
}

func TestNew_IncreaseBalance(t *testing.T) {
	a, err := New(map[string]any{
		"protocolVersion": float64(1),
		"id":              zeroID,
		"publicKeys":      []any{},
		"balance":         float64(100),
		"revision":        float64(0),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), a.Balance())

	up, err := a.IncreaseBalance(50)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), up.Balance())
	assert.Equal(t, uint64(100), a.Balance(), "receiver must be untouched")
}

func TestNew_ToObjectRoundTrip(t *testing.T) {
	a, err := New(hostValue())
	require.NoError(t, err)

	obj := a.ToObject()
	assert.Equal(t, uint32(1), obj["protocolVersion"])
	assert.Equal(t, make([]byte, identifier.Size), obj["id"])
	assert.Equal(t, uint64(100), obj["balance"])
	assert.Equal(t, uint64(0), obj["revision"])

	keys := obj["publicKeys"].([]any)
	require.Len(t, keys, 3)
	var order []uint32
	for _, k := range keys {
		order = append(order, k.(map[string]any)["id"].(uint32))
	}
	assert.Equal(t, []uint32{0, 2, 1}, order)

	again, err := New(obj)
	require.NoError(t, err)
	assert.True(t, a.Equal(again))
}

func TestToJSON_IsJSONSafe(t *testing.T) {
	a, err := New(hostValue())
	require.NoError(t, err)
	a, err = a.SetAssetLockProof(map[string]any{"type": float64(1), "coreChainLockedHeight": float64(10), "outPoint": "AAECAw=="})
	require.NoError(t, err)

	js := a.ToJSON()
	assert.Equal(t, zeroID, js["id"])
	first := js["publicKeys"].([]any)[0].(map[string]any)
	assert.Equal(t, "AkVMoRW6m8qWnTe3J8o/zbVxjlHk9/KOeNIvTrbRxYu8", first["data"])

	b, err := json.Marshal(js)
	require.NoError(t, err)
	assert.JSONEq(t, a.String(), string(b))
}

func TestString_FromRoundTrip(t *testing.T) {
	a, err := New(hostValue())
	require.NoError(t, err)
	a, err = a.SetAssetLockProof(identity.AssetLockProof{
		Type: identity.InstantAssetLockProof, InstantLock: []byte{1}, Transaction: []byte{2}, OutputIndex: 3,
	})
	require.NoError(t, err)
	a = a.SetMetadata(identity.Metadata{BlockHeight: 5, CoreChainLockedHeight: 4, TimeMs: 3, ProtocolVersion: 1})

	b, err := From(a.String())
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	_, ok := b.AssetLockProof()
	assert.True(t, ok)
	m, ok := b.Metadata()
	require.True(t, ok)
	assert.Equal(t, uint64(5), m.BlockHeight)
}

func TestNew_DoesNotPopulateProofOrMetadata(t *testing.T) {
	v := hostValue()
	v["assetLockProof"] = map[string]any{"type": float64(0)}
	v["metadata"] = map[string]any{"blockHeight": float64(1)}
	a, err := New(v, WithMode(compliance.Strict))
	require.NoError(t, err)
	_, ok := a.AssetLockProof()
	assert.False(t, ok)
	_, ok = a.Metadata()
	assert.False(t, ok)
}

func TestBufferRoundTrip(t *testing.T) {
	a, err := New(hostValue())
	require.NoError(t, err)
	buf, err := a.ToBuffer()
	require.NoError(t, err)
	b, err := FromBuffer(buf)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	c1, err := a.CID()
	require.NoError(t, err)
	c2, err := b.CID()
	require.NoError(t, err)
	assert.True(t, c1.Equals(c2))
}

func TestPublicKeyByID(t *testing.T) {
	a, err := New(hostValue())
	require.NoError(t, err)

	k, ok := a.PublicKeyByID(2)
	require.True(t, ok)
	assert.Equal(t, identity.KeyTypeECDSAHash160, k.Type)
	assert.True(t, k.ReadOnly)

	k, ok = a.PublicKeyByID(1)
	require.True(t, ok)
	require.NotNil(t, k.DisabledAt)
	assert.Equal(t, uint64(1700000000000), *k.DisabledAt)

	_, ok = a.PublicKeyByID(99)
	assert.False(t, ok)
}

func TestSetPublicKeys(t *testing.T) {
	a, err := New(hostValue())
	require.NoError(t, err)

	b, err := a.SetPublicKeys([]any{
		map[string]any{"id": 5, "type": 0, "purpose": 0, "securityLevel": 0, "data": []byte{1, 2}},
	})
	require.NoError(t, err)
	assert.Len(t, b.PublicKeys(), 1)
	assert.Len(t, a.PublicKeys(), 3)

	_, err = a.SetPublicKeys([]any{
		map[string]any{"id": 5, "type": 0, "purpose": 0, "securityLevel": 0, "data": "AA=="},
		map[string]any{"id": 5, "type": 0, "purpose": 0, "securityLevel": 0, "data": "AA=="},
	})
	assert.Equal(t, identity.RuleDuplicateKeyID, identity.RuleID(err))

	_, err = a.SetPublicKeys([]any{map[string]any{"id": 1, "type": 0}})
	assert.Equal(t, identity.RuleDecodeMissing, identity.RuleID(err))
	assert.Equal(t, "publicKeys[0].purpose", identity.FieldOf(err))
}

func TestPublicKeys_JSONForm(t *testing.T) {
	a, err := New(hostValue())
	require.NoError(t, err)
	keys := a.PublicKeys()
	require.Len(t, keys, 3)
	third := keys[2].(map[string]any)
	assert.Equal(t, uint32(1), third["id"])
	assert.Equal(t, "ERERERERERERERERERERERERERE=", third["data"])
	assert.Equal(t, uint64(1700000000000), third["disabledAt"])
}

func TestIncreaseThenReduceRestoresBalance(t *testing.T) {
	a, err := New(hostValue())
	require.NoError(t, err)
	for _, delta := range []uint64{0, 1, 50, 1 << 40, math.MaxUint64 - 100} {
		up, err := a.IncreaseBalance(delta)
		require.NoError(t, err)
		down, err := up.ReduceBalance(delta)
		require.NoError(t, err)
		assert.Equal(t, a.Balance(), down.Balance())
	}

	_, err = a.IncreaseBalance(math.MaxUint64)
	assert.True(t, identity.IsKind(err, identity.KindBalance))
	_, err = a.ReduceBalance(101)
	assert.Equal(t, identity.RuleBalanceUnderflow, identity.RuleID(err))
}

func TestSetters(t *testing.T) {
	a, err := New(hostValue())
	require.NoError(t, err)
	b := a.SetBalance(7).SetRevision(8)
	assert.Equal(t, uint64(7), b.Balance())
	assert.Equal(t, uint64(8), b.Revision())
	assert.Equal(t, uint64(100), a.Balance())
	assert.Equal(t, uint32(1), b.ProtocolVersion())
	assert.True(t, b.ID().IsZero())
}

func TestNew_InvalidIdentifier(t *testing.T) {
	for _, id := range []any{"0OIl", "1111", "", []byte{1, 2, 3}} {
		v := hostValue()
		v["id"] = id
		_, err := New(v)
		require.Error(t, err)
		var e *identity.Error
		require.True(t, errors.As(err, &e), "%v", err)
		assert.Equal(t, identity.KindIdentifier, e.Kind, "id %v: %v", id, err)
		assert.Equal(t, "id", e.Field)
	}
}

func TestNew_Errors(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(map[string]any)
		mode  compliance.Mode
		rule  string
		field string
	}{
		{"not an object", nil, compliance.Permissive, identity.RuleDecodeShape, ""},
		{"missing balance", func(v map[string]any) { delete(v, "balance") }, compliance.Permissive, identity.RuleDecodeMissing, "balance"},
		{"null revision", func(v map[string]any) { v["revision"] = nil }, compliance.Permissive, identity.RuleDecodeMissing, "revision"},
		{"fraction", func(v map[string]any) { v["balance"] = 1.5 }, compliance.Permissive, identity.RuleRangeFraction, "balance"},
		{"negative", func(v map[string]any) { v["balance"] = float64(-1) }, compliance.Permissive, identity.RuleRangeNegative, "balance"},
		{"unsafe float", func(v map[string]any) { v["balance"] = float64(1 << 60) }, compliance.Permissive, identity.RuleRangeUnsafe, "balance"},
		{"version too wide", func(v map[string]any) { v["protocolVersion"] = float64(1 << 40) }, compliance.Permissive, identity.RuleRangeWidth, "protocolVersion"},
		{"keys not array", func(v map[string]any) { v["publicKeys"] = "x" }, compliance.Permissive, identity.RuleDecodeShape, "publicKeys"},
		{"key type too wide", func(v map[string]any) {
			v["publicKeys"].([]any)[1].(map[string]any)["type"] = float64(300)
		}, compliance.Permissive, identity.RuleRangeWidth, "publicKeys[1].type"},
		{"key bad data", func(v map[string]any) {
			v["publicKeys"].([]any)[0].(map[string]any)["data"] = "!!"
		}, compliance.Permissive, identity.RuleDecodeShape, "publicKeys[0].data"},
		{"key unknown enum", func(v map[string]any) {
			v["publicKeys"].([]any)[0].(map[string]any)["securityLevel"] = float64(9)
		}, compliance.Permissive, identity.RuleUnknownEnum, "publicKeys[0].securityLevel"},
		{"string number strict", func(v map[string]any) { v["balance"] = "100" }, compliance.Strict, identity.RuleDecodeShape, "balance"},
		{"unknown field strict", func(v map[string]any) { v["nickname"] = "x" }, compliance.Strict, identity.RuleDecodeUnknown, "nickname"},
		{"unknown key field strict", func(v map[string]any) {
			v["publicKeys"].([]any)[2].(map[string]any)["label"] = "x"
		}, compliance.Strict, identity.RuleDecodeUnknown, "publicKeys[2].label"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var v any = []any{1, 2}
			if tc.edit != nil {
				m := hostValue()
				tc.edit(m)
				v = m
			}
			_, err := New(v, WithMode(tc.mode))
			require.Error(t, err)
			assert.Equal(t, tc.rule, identity.RuleID(err), "err: %v", err)
			assert.Equal(t, tc.field, identity.FieldOf(err), "err: %v", err)
		})
	}
}

func TestNew_PermissiveCoercions(t *testing.T) {
	v := hostValue()
	v["balance"] = "18446744073709551615"
	v["revision"] = json.Number("9007199254740993")
	v["nickname"] = "ignored"
	a, err := New(v)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), a.Balance())
	assert.Equal(t, uint64(9007199254740993), a.Revision())
}

func TestNew_AcceptsStructsAndBufferForm(t *testing.T) {
	type key struct {
		ID            int            `json:"id"`
		Type          int            `json:"type"`
		Purpose       int            `json:"purpose"`
		SecurityLevel int            `json:"securityLevel"`
		Data          map[string]any `json:"data"`
	}
	type host struct {
		ProtocolVersion int    `json:"protocolVersion"`
		ID              string `json:"id"`
		PublicKeys      []key  `json:"publicKeys"`
		Balance         uint64 `json:"balance"`
		Revision        uint64 `json:"revision"`
	}
	a, err := New(host{
		ProtocolVersion: 1,
		ID:              zeroID,
		PublicKeys:      []key{{ID: 4, Data: map[string]any{"type": "Buffer", "data": []int{1, 2, 3}}}},
		Balance:         math.MaxUint64,
	}, WithMode(compliance.Strict))
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), a.Balance())
	k, ok := a.PublicKeyByID(4)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, k.Data)
}

func TestSetAssetLockProof(t *testing.T) {
	a, err := New(hostValue())
	require.NoError(t, err)

	b, err := a.SetAssetLockProof(map[string]any{
		"type": float64(0), "instantLock": "AQ==", "transaction": []byte{2}, "outputIndex": float64(4),
	})
	require.NoError(t, err)
	p, ok := b.AssetLockProof()
	require.True(t, ok)
	assert.Equal(t, identity.InstantAssetLockProof, p.Type)
	assert.Equal(t, []byte{1}, p.InstantLock)
	assert.Equal(t, uint32(4), p.OutputIndex)

	_, ok = a.AssetLockProof()
	assert.False(t, ok)

	_, err = a.SetAssetLockProof(map[string]any{"type": float64(7)})
	assert.Equal(t, identity.RuleUnknownEnum, identity.RuleID(err))
	_, err = a.SetAssetLockProof("nope")
	assert.Equal(t, identity.RuleDecodeShape, identity.RuleID(err))
	assert.Equal(t, "assetLockProof", identity.FieldOf(err))
}

func TestFrom_Errors(t *testing.T) {
	_, err := From("{")
	assert.True(t, identity.IsKind(err, identity.KindDecode))

	_, err = From(`{"protocolVersion":1,"id":"bad!","publicKeys":[],"balance":0,"revision":0}`)
	assert.True(t, identity.IsKind(err, identity.KindIdentifier))

	text := `{"protocolVersion":1,"id":"` + zeroID + `","publicKeys":[],"balance":0,"revision":0,"x":1}`
	_, err = From(text)
	require.NoError(t, err)
	_, err = From(text, WithMode(compliance.Strict))
	assert.Equal(t, identity.RuleDecodeUnknown, identity.RuleID(err))
}

func TestSetAssetLockProof_RejectsForeignFields(t *testing.T) {
	a, err := New(hostValue())
	require.NoError(t, err)

	cases := []struct {
		name  string
		value any
		field string
	}{
		{"instant with chain fields", map[string]any{
			"type": float64(0), "instantLock": "AQ==", "transaction": "Ag==", "outputIndex": float64(1),
			"outPoint": "Aw==", "coreChainLockedHeight": float64(9),
		}, "assetLockProof.outPoint"},
		{"chain with instant fields", map[string]any{
			"type": float64(1), "outPoint": "Aw==", "coreChainLockedHeight": float64(9), "transaction": "Ag==",
		}, "assetLockProof.transaction"},
		{"typed mixed proof", identity.AssetLockProof{
			Type: identity.ChainAssetLockProof, OutPoint: []byte{3}, OutputIndex: 2,
		}, "assetLockProof.outputIndex"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, mode := range []compliance.Mode{compliance.Strict, compliance.Permissive} {
				b, err := Adapter{ident: a.ident, mode: mode}.SetAssetLockProof(tc.value)
				require.Error(t, err)
				assert.Equal(t, identity.RuleDecodeUnknown, identity.RuleID(err), "err: %v", err)
				assert.Equal(t, tc.field, identity.FieldOf(err))
				_, ok := b.AssetLockProof()
				assert.False(t, ok)
			}
		})
	}
}

func TestSetAssetLockProof_SurvivesBothCodecs(t *testing.T) {
	a, err := New(hostValue())
	require.NoError(t, err)
	for name, value := range map[string]map[string]any{
		"instant": {"type": float64(0), "instantLock": "AQ==", "transaction": "Ag==", "outputIndex": float64(1)},
		"chain":   {"type": float64(1), "outPoint": "Aw==", "coreChainLockedHeight": float64(9)},
	} {
		t.Run(name, func(t *testing.T) {
			b, err := a.SetAssetLockProof(value)
			require.NoError(t, err)

			fromText, err := From(b.String())
			require.NoError(t, err)
			assert.True(t, b.Equal(fromText), "text: %s", b.String())

			buf, err := b.ToBuffer()
			require.NoError(t, err)
			fromBuf, err := FromBuffer(buf)
			require.NoError(t, err)
			assert.True(t, b.Equal(fromBuf))
		})
	}
}

func TestNew_NestedGoSlices(t *testing.T) {
	base, err := New(hostValue())
	require.NoError(t, err)

	typed := map[string]any{
		"protocolVersion": 1,
		"id":              zeroID,
		"publicKeys": []map[string]any{
			{"id": 0, "type": 0, "purpose": 0, "securityLevel": 0, "data": "AkVMoRW6m8qWnTe3J8o/zbVxjlHk9/KOeNIvTrbRxYu8", "readOnly": false},
			{"id": 2, "type": 2, "purpose": 1, "securityLevel": 2, "data": []int{20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20}, "readOnly": true},
			{"id": uint32(1), "type": 4, "purpose": 3, "securityLevel": 1, "data": "ERERERERERERERERERERERERERE=", "disabledAt": int64(1700000000000)},
		},
		"balance":  uint64(100),
		"revision": 0,
	}
	a, err := New(typed, WithMode(compliance.Strict))
	require.NoError(t, err)
	assert.True(t, base.Equal(a))

	records := base.ident.PublicKeys()
	b, err := New(map[string]any{
		"protocolVersion": 1,
		"id":              zeroID,
		"publicKeys":      records,
		"balance":         100,
		"revision":        0,
	})
	require.NoError(t, err)
	assert.True(t, base.Equal(b))
}

func TestString_ErrorMarker(t *testing.T) {
	assert.Equal(t, `{"a":1}`, jsonText([]byte(`{"a":1}`), nil))

	text := jsonText(nil, errors.New("boom"))
	assert.Equal(t, "%!(identity: boom)", text)
	_, err := From(text)
	assert.True(t, identity.IsKind(err, identity.KindDecode))
}
