// Package memory implements the VM's quantised-address store: a
// mapping from a rounded fixed-point address key to a tagged Value.
package memory

import (
	"math"

	"github.com/thezeorymer/soulgain/value"
)

// precisionScale is the fixed-point quantisation factor (1e10) that
// keeps "the same address" stable across computed offsets.
const precisionScale = 10_000_000_000.0

// Memory maps quantised addresses to Values.
type Memory struct {
	cells map[int64]value.Value
}

// New constructs an empty Memory.
func New() *Memory {
	return &Memory{cells: make(map[int64]value.Value)}
}

// quantize rounds a float64 address to its fixed-point key, rejecting
// non-finite addresses.
func quantize(addr float64) (int64, bool) {
	if math.IsNaN(addr) || math.IsInf(addr, 0) {
		return 0, false
	}
	return int64(math.Round(addr * precisionScale)), true
}

// Read returns the value stored at addr and whether it was present.
// A non-finite address always misses.
func (m *Memory) Read(addr float64) (value.Value, bool) {
	key, ok := quantize(addr)
	if !ok {
		return value.Nil, false
	}
	v, present := m.cells[key]
	return v, present
}

// Write stores v at addr, overwriting any previous value. It returns
// false iff addr is non-finite, in which case memory is left
// unchanged.
func (m *Memory) Write(addr float64, v value.Value) bool {
	key, ok := quantize(addr)
	if !ok {
		return false
	}
	m.cells[key] = v
	return true
}

// Len reports the number of distinct addresses currently stored.
func (m *Memory) Len() int { return len(m.cells) }

// Clear removes every stored value.
func (m *Memory) Clear() { m.cells = make(map[int64]value.Value) }
