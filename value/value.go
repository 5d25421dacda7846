// Package value implements the tagged runtime value carried on the VM
// stack and stored in memory: nil, bool, number, shared string or an
// opaque object handle.
package value

import "math"

// Kind tags the variant a Value holds.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
)

var kindNames = [...]string{
	KindNil:    "nil",
	KindBool:   "bool",
	KindNumber: "number",
	KindString: "string",
	KindObject: "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Object is an opaque shared handle. The VM never inspects its
// contents; only identity matters for equality.
type Object interface {
	// ObjectID distinguishes object values for equality purposes.
	ObjectID() uint64
}

// Value is an immutable tagged scalar. The zero Value is Nil.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    *string
	obj  Object
}

// Nil is the canonical absent value.
var Nil = Value{kind: KindNil}

// Bool constructs a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number constructs a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String constructs a shared immutable string value. The backing
// string is heap-allocated once and shared by every copy of the
// resulting Value; Go's string type is itself immutable so no
// explicit refcount is required.
func String(s string) Value {
	return Value{kind: KindString, s: &s}
}

// NewObject constructs an object value wrapping the given handle.
func NewObject(o Object) Value { return Value{kind: KindObject, obj: o} }

// Kind reports the variant this Value holds.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNil() bool { return v.kind == KindNil }

// AsBool returns the boolean payload and whether the Value is a Bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the numeric payload and whether the Value is a Number.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string payload and whether the Value is a String.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return *v.s, true
}

// AsObject returns the object payload and whether the Value is an Object.
func (v Value) AsObject() (Object, bool) {
	return v.obj, v.kind == KindObject
}

// Truthy implements the truthiness table: Nil is false, Bool is its
// own value, Number is true iff finite and non-zero, String is true
// iff non-empty, Object is always true.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0 && !math.IsInf(v.n, 0) && !math.IsNaN(v.n)
	case KindString:
		return *v.s != ""
	case KindObject:
		return true
	default:
		return false
	}
}

// Equal implements bit-exact equality with NaN != NaN for numbers,
// content equality for strings, tag equality for bool/nil, and
// identity equality for objects.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindString:
		return *v.s == *other.s
	case KindObject:
		if v.obj == nil || other.obj == nil {
			return v.obj == other.obj
		}
		return v.obj.ObjectID() == other.obj.ObjectID()
	default:
		return false
	}
}

// Add implements the string-concatenation overload of the Add opcode:
// two strings concatenate into a fresh shared string. Callers are
// responsible for the numeric overload.
func Add(a, b Value) (Value, bool) {
	as, aok := a.AsString()
	bs, bok := b.AsString()
	if !aok || !bok {
		return Nil, false
	}
	return String(as + bs), true
}

// String renders a Value for logs and debug dumps; it is not a
// parseable format.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.n)
	case KindString:
		return *v.s
	case KindObject:
		return "object"
	default:
		return "?"
	}
}

func formatNumber(n float64) string {
	if math.IsNaN(n) {
		return "NaN"
	}
	if math.IsInf(n, 1) {
		return "+Inf"
	}
	if math.IsInf(n, -1) {
		return "-Inf"
	}
	return formatFloat(n)
}
