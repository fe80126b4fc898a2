package identity

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/RuleID rather than matching error strings.
// Use errors.As to extract *Error for structured handling.
type Kind string

const (
	KindDecode     Kind = "Decode"
	KindIdentifier Kind = "Identifier"
	KindRange      Kind = "Range"
	KindBalance    Kind = "Balance"
	KindValidation Kind = "Validation"
	KindEncode     Kind = "Encode"
)

// Error is the structured error returned by every conversion in this module.
//
// RuleID is a stable identifier (e.g., IDENT-ID-001, IDENT-RNG-004) naming the
// violated rule. Field is the JSON path of the offending value, when known
// (e.g., "publicKeys[2].data"). Message is intended for humans.
type Error struct {
	Kind    Kind
	RuleID  string
	Field   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError returns a structured error without a cause.
func NewError(kind Kind, ruleID, field, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Field: field, Message: msg}
}

// WrapError returns a structured error carrying cause.
func WrapError(kind Kind, ruleID, field, msg string, cause error) error {
	if cause == nil {
		return NewError(kind, ruleID, field, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Field: field, Message: msg, Cause: cause}
}

// Errorf is NewError with a formatted message.
func Errorf(kind Kind, ruleID, field, format string, args ...any) error {
	return NewError(kind, ruleID, field, fmt.Sprintf(format, args...))
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}

// FieldOf returns the field path recorded on a structured error, or "".
func FieldOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Field
}

// Rule identifiers.
const (
	RuleIDEncoding = "IDENT-ID-001"
	RuleIDLength   = "IDENT-ID-002"

	RuleDecodeSyntax    = "IDENT-DEC-001"
	RuleDecodeShape     = "IDENT-DEC-002"
	RuleDecodeMissing   = "IDENT-DEC-003"
	RuleDecodeUnknown   = "IDENT-DEC-004"
	RuleBufferPrefix    = "IDENT-DEC-010"
	RuleBufferTag       = "IDENT-DEC-011"
	RuleBufferVarint    = "IDENT-DEC-012"
	RuleBufferBytes     = "IDENT-DEC-013"
	RuleBufferWireType  = "IDENT-DEC-014"
	RuleBufferTruncated = "IDENT-DEC-015"

	RuleRangeFraction = "IDENT-RNG-001"
	RuleRangeNegative = "IDENT-RNG-002"
	RuleRangeWidth    = "IDENT-RNG-003"
	RuleRangeUnsafe   = "IDENT-RNG-004"

	RuleBalanceOverflow  = "IDENT-BAL-001"
	RuleBalanceUnderflow = "IDENT-BAL-002"

	RuleDuplicateKeyID = "IDENT-VAL-001"
	RuleUnknownEnum    = "IDENT-VAL-002"

	RuleEncodeUnrepresentable = "IDENT-ENC-001"
)
