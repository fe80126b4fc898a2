package boundary

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"xdao.co/identity/compliance"
	"xdao.co/identity/identifier"
	"xdao.co/identity/identity"
)

// MaxSafeInteger is the largest integer a 64-bit float represents exactly
// together with all smaller integers (2^53 - 1). Float inputs above it are
// rejected instead of silently rounded.
const MaxSafeInteger = 1<<53 - 1

// normalize turns an arbitrary host value into the JSON-like shape the
// walkers understand (map[string]any, []any, string, json.Number, bool, nil
// and Go scalars). Containers are walked so that nested typed slices and
// maps such as []map[string]any or []identity.PublicKey come out as []any and
// map[string]any. Scalars and the identity value types pass through.
func normalize(v any, path string) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, json.Number, []byte,
		float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		identifier.Identifier, identity.PublicKey, identity.AssetLockProof:
		return v, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			n, err := normalize(e, childPath(path, k))
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []any:
		return normalizeList(len(x), func(i int) any { return x[i] }, path)
	}
	if _, ok := v.(json.Marshaler); ok {
		return remarshal(v, path)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(rv.Elem().Interface(), path)
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		if rv.IsNil() {
			return nil, nil
		}
		return normalizeList(rv.Len(), func(i int) any { return rv.Index(i).Interface() }, path)
	case reflect.Array:
		return normalizeList(rv.Len(), func(i int) any { return rv.Index(i).Interface() }, path)
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			if rv.IsNil() {
				return nil, nil
			}
			out := make(map[string]any, rv.Len())
			it := rv.MapRange()
			for it.Next() {
				k := it.Key().String()
				n, err := normalize(it.Value().Interface(), childPath(path, k))
				if err != nil {
					return nil, err
				}
				out[k] = n
			}
			return out, nil
		}
	}
	return remarshal(v, path)
}

// remarshal round-trips v through encoding/json, keeping numbers exact.
func remarshal(v any, path string) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, identity.WrapError(identity.KindDecode, identity.RuleDecodeShape, path,
			fmt.Sprintf("%T is not a JSON-shaped value", v), err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, identity.WrapError(identity.KindDecode, identity.RuleDecodeSyntax, path, "value does not re-decode as JSON", err)
	}
	return out, nil
}

func normalizeList(n int, at func(int) any, path string) ([]any, error) {
	out := make([]any, n)
	for i := range out {
		e, err := normalize(at(i), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func childPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

// object walks one JSON-like record, tracking which keys were read so that
// strict mode can report the rest.
type object struct {
	fields map[string]any
	path   string
	mode   compliance.Mode
	read   map[string]struct{}
}

func asObject(v any, path string, mode compliance.Mode) (*object, error) {
	v, err := normalize(v, path)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, shapeError(path, "object", v)
	}
	return &object{fields: m, path: path, mode: mode, read: make(map[string]struct{}, len(m))}, nil
}

func (o *object) child(name string) string {
	return childPath(o.path, name)
}

// get returns the raw value for name. A JSON null counts as absent.
func (o *object) get(name string) (any, bool) {
	o.read[name] = struct{}{}
	v, ok := o.fields[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// skip marks name as a known field that this path does not read.
func (o *object) skip(names ...string) {
	for _, n := range names {
		o.read[n] = struct{}{}
	}
}

func (o *object) requireValue(name string) (any, error) {
	v, ok := o.get(name)
	if !ok {
		return nil, identity.NewError(identity.KindDecode, identity.RuleDecodeMissing, o.child(name), "required field is missing")
	}
	return v, nil
}

func (o *object) uint(name string, max uint64) (uint64, error) {
	v, err := o.requireValue(name)
	if err != nil {
		return 0, err
	}
	return toUint(v, o.child(name), max, o.mode)
}

func (o *object) optionalUint(name string, max uint64) (uint64, bool, error) {
	v, ok := o.get(name)
	if !ok {
		return 0, false, nil
	}
	n, err := toUint(v, o.child(name), max, o.mode)
	return n, err == nil, err
}

func (o *object) bytes(name string, required bool) ([]byte, error) {
	v, ok := o.get(name)
	if !ok {
		if required {
			return nil, identity.NewError(identity.KindDecode, identity.RuleDecodeMissing, o.child(name), "required field is missing")
		}
		return nil, nil
	}
	return toBytes(v, o.child(name))
}

func (o *object) bool(name string) (bool, error) {
	v, ok := o.get(name)
	if !ok {
		return false, nil
	}
	b, isBool := v.(bool)
	if !isBool {
		return false, shapeError(o.child(name), "boolean", v)
	}
	return b, nil
}

func (o *object) list(name string) ([]any, error) {
	v, err := o.requireValue(name)
	if err != nil {
		return nil, err
	}
	l, ok := v.([]any)
	if !ok {
		return nil, shapeError(o.child(name), "array", v)
	}
	return l, nil
}

// finish reports the first unread key in strict mode, in sorted order.
func (o *object) finish() error {
	if o.mode != compliance.Strict {
		return nil
	}
	var unknown []string
	for k := range o.fields {
		if _, ok := o.read[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return identity.NewError(identity.KindDecode, identity.RuleDecodeUnknown, o.child(unknown[0]), "unknown field")
}

func toUint(v any, path string, max uint64, mode compliance.Mode) (uint64, error) {
	var n uint64
	switch x := v.(type) {
	case float64:
		u, err := floatToUint(x, path)
		if err != nil {
			return 0, err
		}
		n = u
	case float32:
		u, err := floatToUint(float64(x), path)
		if err != nil {
			return 0, err
		}
		n = u
	case json.Number:
		u, err := decimalToUint(string(x), path)
		if err != nil {
			return 0, err
		}
		n = u
	case string:
		if mode == compliance.Strict {
			return 0, shapeError(path, "number", v)
		}
		u, err := decimalToUint(strings.TrimSpace(x), path)
		if err != nil {
			return 0, err
		}
		n = u
	case int:
		return signedToUint(int64(x), path, max)
	case int8:
		return signedToUint(int64(x), path, max)
	case int16:
		return signedToUint(int64(x), path, max)
	case int32:
		return signedToUint(int64(x), path, max)
	case int64:
		return signedToUint(x, path, max)
	case uint:
		n = uint64(x)
	case uint8:
		n = uint64(x)
	case uint16:
		n = uint64(x)
	case uint32:
		n = uint64(x)
	case uint64:
		n = x
	default:
		return 0, shapeError(path, "unsigned integer", v)
	}
	if n > max {
		return 0, identity.Errorf(identity.KindRange, identity.RuleRangeWidth, path, "value %d exceeds maximum %d", n, max)
	}
	return n, nil
}

func floatToUint(f float64, path string) (uint64, error) {
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f):
		return 0, identity.Errorf(identity.KindRange, identity.RuleRangeFraction, path, "%v is not an integer", f)
	case f < 0:
		return 0, identity.Errorf(identity.KindRange, identity.RuleRangeNegative, path, "%v is negative", f)
	case f > MaxSafeInteger:
		return 0, identity.Errorf(identity.KindRange, identity.RuleRangeUnsafe, path,
			"%v is above 2^53-1 and cannot be carried exactly as a float; pass it as an exact integer", f)
	}
	return uint64(f), nil
}

func decimalToUint(s string, path string) (uint64, error) {
	if strings.HasPrefix(s, "-") {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == 0 {
			return 0, nil
		}
		return 0, identity.Errorf(identity.KindRange, identity.RuleRangeNegative, path, "%s is negative", s)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err == nil {
		return n, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, identity.Errorf(identity.KindRange, identity.RuleRangeWidth, path, "%s exceeds 64 bits", s)
	}
	// Exponent forms such as 1e3 are accepted when they denote a safe integer.
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil {
		return 0, identity.WrapError(identity.KindDecode, identity.RuleDecodeShape, path,
			fmt.Sprintf("%q is not a decimal integer", s), err)
	}
	return floatToUint(f, path)
}

func signedToUint(x int64, path string, max uint64) (uint64, error) {
	if x < 0 {
		return 0, identity.Errorf(identity.KindRange, identity.RuleRangeNegative, path, "%d is negative", x)
	}
	if uint64(x) > max {
		return 0, identity.Errorf(identity.KindRange, identity.RuleRangeWidth, path, "value %d exceeds maximum %d", x, max)
	}
	return uint64(x), nil
}

// toBytes accepts []byte, a standard base-64 string, an array of byte
// values, or the {"type":"Buffer","data":[...]} form hosts emit for buffers.
func toBytes(v any, path string) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return append([]byte(nil), x...), nil
	case string:
		b, err := base64.StdEncoding.DecodeString(x)
		if err != nil {
			return nil, identity.WrapError(identity.KindDecode, identity.RuleDecodeShape, path, "expected base64 string", err)
		}
		return b, nil
	case []any:
		out := make([]byte, len(x))
		for i, e := range x {
			n, err := toUint(e, fmt.Sprintf("%s[%d]", path, i), math.MaxUint8, compliance.Strict)
			if err != nil {
				return nil, err
			}
			out[i] = byte(n)
		}
		return out, nil
	case map[string]any:
		if x["type"] == "Buffer" {
			if data, ok := x["data"]; ok {
				return toBytes(data, path+".data")
			}
		}
	}
	return nil, shapeError(path, "bytes", v)
}

func toIdentifier(v any, path string) (identifier.Identifier, error) {
	var (
		id  identifier.Identifier
		err error
	)
	switch x := v.(type) {
	case identifier.Identifier:
		return x, nil
	case string:
		id, err = identifier.Parse(x)
	default:
		b, berr := toBytes(v, path)
		if berr != nil {
			return identifier.Zero, shapeError(path, "base58 string or 32 bytes", v)
		}
		id, err = identifier.FromBytes(b)
	}
	if err == nil {
		return id, nil
	}
	if errors.Is(err, identifier.ErrInvalidLength) {
		return identifier.Zero, identity.WrapError(identity.KindIdentifier, identity.RuleIDLength, path,
			fmt.Sprintf("identifier must be %d bytes", identifier.Size), err)
	}
	return identifier.Zero, identity.WrapError(identity.KindIdentifier, identity.RuleIDEncoding, path,
		"identifier is not valid base58", err)
}

func shapeError(path, want string, got any) error {
	return identity.Errorf(identity.KindDecode, identity.RuleDecodeShape, path, "expected %s, got %s", want, describe(got))
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64, float32:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
