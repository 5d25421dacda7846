// Package skill stores learned macro bytecode bodies ("skills"),
// addressable by an id >= 1000 (the VM's SKILL_OPCODE_BASE).
package skill

import (
	"sort"

	lru "github.com/hashicorp/golang-lru"
)

// Base is the smallest valid skill id; opcodes at or above it are
// skill invocations rather than primitives.
const Base int64 = 1000

// provenanceCacheSize bounds the recently-touched skill id cache used
// by callers (e.g. intuition) that want to limit per-skill metadata
// growth without an eviction policy of their own.
const provenanceCacheSize = 512

// Library is a map from skill id to its stored bytecode sequence.
type Library struct {
	macros     map[int64][]float64
	provenance *lru.Cache
}

// New constructs an empty Library.
func New() *Library {
	cache, err := lru.New(provenanceCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// provenanceCacheSize never is.
		panic(err)
	}
	return &Library{
		macros:     make(map[int64][]float64),
		provenance: cache,
	}
}

// Define stores (or overwrites) the macro body under id.
func (l *Library) Define(id int64, body []float64) {
	stored := make([]float64, len(body))
	copy(stored, body)
	l.macros[id] = stored
	l.provenance.Add(id, struct{}{})
}

// Get returns the macro body stored under id and whether it exists.
// The returned slice is a defensive copy; callers must not rely on
// mutating the library through it.
func (l *Library) Get(id int64) ([]float64, bool) {
	body, ok := l.macros[id]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(body))
	copy(out, body)
	return out, true
}

// Has reports whether id is defined.
func (l *Library) Has(id int64) bool {
	_, ok := l.macros[id]
	return ok
}

// Ids returns every defined skill id in ascending order.
func (l *Library) Ids() []int64 {
	ids := make([]int64, 0, len(l.macros))
	for id := range l.macros {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len reports the number of defined skills.
func (l *Library) Len() int { return len(l.macros) }

// RecentlyTouched returns the skill ids still resident in the
// bounded provenance cache, least-recently-defined first.
func (l *Library) RecentlyTouched() []int64 {
	keys := l.provenance.Keys()
	out := make([]int64, len(keys))
	for i, k := range keys {
		out[i] = k.(int64)
	}
	return out
}

// Snapshot returns an independent deep copy of the library's current
// contents; later Define calls do not affect it.
func (l *Library) Snapshot() map[int64][]float64 {
	out := make(map[int64][]float64, len(l.macros))
	for id, body := range l.macros {
		cp := make([]float64, len(body))
		copy(cp, body)
		out[id] = cp
	}
	return out
}

// Restore replaces the library's contents with an independent copy of
// snapshot.
func (l *Library) Restore(snapshot map[int64][]float64) {
	l.macros = make(map[int64][]float64, len(snapshot))
	for id, body := range snapshot {
		cp := make([]float64, len(body))
		copy(cp, body)
		l.macros[id] = cp
	}
}
