// Package event defines the shared vocabulary of observable VM events
// consumed by the plasticity store: opcode dispatch, memory access,
// reward signals and error conditions.
package event

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Kind tags which Event variant is populated.
type Kind uint8

const (
	KindOpcode Kind = iota
	KindMemoryRead
	KindMemoryWrite
	KindReward
	KindError
)

// ErrorKind enumerates the VM-level failure taxonomy.
type ErrorKind uint8

const (
	StackUnderflow ErrorKind = iota
	InvalidOpcode
	InvalidJump
	ReturnStackUnderflow
	InvalidEvolve
)

func (k ErrorKind) String() string {
	switch k {
	case StackUnderflow:
		return "StackUnderflow"
	case InvalidOpcode:
		return "InvalidOpcode"
	case InvalidJump:
		return "InvalidJump"
	case ReturnStackUnderflow:
		return "ReturnStackUnderflow"
	case InvalidEvolve:
		return "InvalidEvolve"
	default:
		return "Unknown"
	}
}

// Event is a value type: two Events with identical fields are equal
// and hash identically, making them usable as map keys and as nodes
// in the plasticity transition graph.
type Event struct {
	Kind Kind

	// Opcode / depth_bucket populated for KindOpcode.
	Opcode     int64
	DepthBucket int

	// Intensity populated for KindReward, 0..=100.
	Intensity int

	// ErrKind / ErrArg populated for KindError. ErrArg carries the
	// offending opcode value (StackUnderflow; InvalidOpcode raised by
	// Add, Store or Load), the skill id (InvalidOpcode for an undefined
	// skill; InvalidEvolve with a numeric id), or -1 otherwise.
	// InvalidJump always carries -1, not the jump target.
	ErrKind ErrorKind
	ErrArg  int64
}

// Opcode constructs an Opcode{opcode, depth_bucket} event. depth is
// clamped to the canonical depth bucket (min(depth, 5)).
func Opcode(opcode int64, depth int) Event {
	return Event{Kind: KindOpcode, Opcode: opcode, DepthBucket: DepthBucket(depth)}
}

// MemoryRead constructs a MemoryRead event.
func MemoryRead() Event { return Event{Kind: KindMemoryRead} }

// MemoryWrite constructs a MemoryWrite event.
func MemoryWrite() Event { return Event{Kind: KindMemoryWrite} }

// Reward constructs a Reward(intensity) event, intensity clamped to
// [0, 100].
func Reward(intensity int) Event {
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 100 {
		intensity = 100
	}
	return Event{Kind: KindReward, Intensity: intensity}
}

// Error constructs an Error(kind) event with an argument (see
// Event.ErrArg for what the VM passes for each kind).
func Error(kind ErrorKind, arg int64) Event {
	return Event{Kind: KindError, ErrKind: kind, ErrArg: arg}
}

// DepthBucket computes the canonical stack-depth key: min(depth, 5).
func DepthBucket(depth int) int {
	if depth > 5 {
		return 5
	}
	if depth < 0 {
		return 0
	}
	return depth
}

// IsReward reports whether e is a Reward event.
func (e Event) IsReward() bool { return e.Kind == KindReward }

// IsError reports whether e is an Error event.
func (e Event) IsError() bool { return e.Kind == KindError }

// String renders e for logs; not a parseable format.
func (e Event) String() string {
	switch e.Kind {
	case KindOpcode:
		return fmt.Sprintf("Opcode{%d,depth=%d}", e.Opcode, e.DepthBucket)
	case KindMemoryRead:
		return "MemoryRead"
	case KindMemoryWrite:
		return "MemoryWrite"
	case KindReward:
		return fmt.Sprintf("Reward(%d)", e.Intensity)
	case KindError:
		return fmt.Sprintf("Error(%s,%d)", e.ErrKind, e.ErrArg)
	default:
		return "?"
	}
}

// canonicalBytes encodes e into a small deterministic byte form used
// only for hashing (tie-breaking in best_next_event). It is not a
// persistence format.
func (e Event) canonicalBytes() []byte {
	buf := make([]byte, 0, 24)
	buf = append(buf, byte(e.Kind))
	buf = appendInt64(buf, e.Opcode)
	buf = appendInt64(buf, int64(e.DepthBucket))
	buf = appendInt64(buf, int64(e.Intensity))
	buf = append(buf, byte(e.ErrKind))
	buf = appendInt64(buf, e.ErrArg)
	return buf
}

func appendInt64(buf []byte, v int64) []byte {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(u))
		u >>= 8
	}
	return buf
}

// Hash returns a deterministic xxhash of the event's canonical
// encoding, used as the tie-break key in best_next_event.
func (e Event) Hash() uint64 {
	return xxhash.Sum64(e.canonicalBytes())
}
