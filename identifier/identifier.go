// Package identifier implements the fixed-length content identifier used for
// identities.
//
// An Identifier is always exactly Size bytes. Its canonical text form is
// base-58 (Bitcoin alphabet); base-64 is accepted where callers ask for it.
package identifier

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Size is the length of an Identifier in bytes.
const Size = 32

var (
	ErrInvalidEncoding = errors.New("identifier: invalid encoding")
	ErrInvalidLength   = errors.New("identifier: invalid length")
)

// Encoding selects the text form of an Identifier.
type Encoding int

const (
	Base58 Encoding = iota
	Base64
)

func (e Encoding) String() string {
	switch e {
	case Base58:
		return "base58"
	case Base64:
		return "base64"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

type Identifier [Size]byte

// Zero is the all-zero identifier. Its base-58 form is 32 '1' characters.
var Zero Identifier

// FromBytes copies b into an Identifier. b must be exactly Size bytes.
func FromBytes(b []byte) (Identifier, error) {
	var id Identifier
	if len(b) != Size {
		return id, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLength, len(b), Size)
	}
	copy(id[:], b)
	return id, nil
}

// Parse decodes a base-58 identifier.
func Parse(s string) (Identifier, error) {
	return FromString(s, Base58)
}

// FromString decodes s using enc.
func FromString(s string, enc Encoding) (Identifier, error) {
	var (
		b   []byte
		err error
	)
	switch enc {
	case Base58:
		if s == "" {
			return Zero, fmt.Errorf("%w: empty base58 string", ErrInvalidEncoding)
		}
		b, err = base58.Decode(s)
	case Base64:
		b, err = base64.StdEncoding.DecodeString(s)
	default:
		return Zero, fmt.Errorf("%w: unsupported %s", ErrInvalidEncoding, enc)
	}
	if err != nil {
		return Zero, fmt.Errorf("%w: %s: %v", ErrInvalidEncoding, enc, err)
	}
	return FromBytes(b)
}

// FromOutPoint derives the identifier of an identity funded by the given
// transaction out point: sha256(sha256(outPoint)).
func FromOutPoint(outPoint []byte) Identifier {
	first := sha256.Sum256(outPoint)
	return Identifier(sha256.Sum256(first[:]))
}

func (id Identifier) Bytes() []byte { return append([]byte(nil), id[:]...) }

func (id Identifier) IsZero() bool { return id == Zero }

func (id Identifier) Equal(other Identifier) bool { return bytes.Equal(id[:], other[:]) }

// String returns the base-58 form.
func (id Identifier) String() string { return base58.Encode(id[:]) }

// Encode returns the text form of id in enc. Unknown encodings fall back to base-58.
func (id Identifier) Encode(enc Encoding) string {
	if enc == Base64 {
		return base64.StdEncoding.EncodeToString(id[:])
	}
	return id.String()
}

func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Identifier) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id Identifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *Identifier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: expected base58 string", ErrInvalidEncoding)
	}
	return id.UnmarshalText([]byte(s))
}
