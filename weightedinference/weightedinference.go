// Package weightedinference is a pluggable alternate synthesiser: a
// type-directed search over candidate opcodes that would use
// plasticity weights as edge scores in a full best-first search. Only
// the signature and its not-found contract are implemented here;
// the search itself is a different, larger undertaking.
package weightedinference

import (
	"context"

	"github.com/thezeorymer/soulgain/plasticity"
	"github.com/thezeorymer/soulgain/skill"
	"github.com/thezeorymer/soulgain/value"
)

// Engine is constructed from a plasticity reference and a skill library
// reference, the same collaborators the VM and Trainer share.
type Engine struct {
	plastic *plasticity.Store
	skills  *skill.Library
}

// New builds an Engine over the given plasticity store and skill
// library.
func New(plastic *plasticity.Store, skills *skill.Library) *Engine {
	return &Engine{plastic: plastic, skills: skills}
}

// Deduce performs a best-first, type-directed search over a candidate
// opcode set, using STDP weights as edge scores, up to maxSteps
// expansions and maxDepth program length. This implementation performs
// no expansion: it always reports not-found (nil, false), whatever the
// arguments or context state.
func (e *Engine) Deduce(ctx context.Context, input, expected []value.Value, maxSteps, maxDepth int) ([]float64, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	default:
	}
	if maxSteps <= 0 || maxDepth <= 0 {
		return nil, false
	}
	return nil, false
}
