// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

package vm

import "math"

// Opcode identifies a primitive operation. Values >= SkillOpcodeBase
// are not primitives; they address a stored skill macro instead.
type Opcode int64

const (
	Literal Opcode = iota
	Add
	Sub
	Mul
	Mod
	Inc
	Dec
	Eq
	Gt
	Not
	And
	Or
	Xor
	IsZero
	Store
	Load
	Halt
	Jmp
	JmpIf
	Call
	Ret
	Intuition
	Reward
	Evolve
	Swap
	Dup
	Over
	Drop
	Parse

	opcodeCount
)

// SkillOpcodeBase is the smallest opcode value that addresses a
// skill macro rather than a primitive.
const SkillOpcodeBase int64 = 1000

// opcodeTolerance bounds how far a decoded cell may drift from its
// nearest integer before decoding fails.
const opcodeTolerance = 1e-9

var opcodeNames = [...]string{
	Literal:   "Literal",
	Add:       "Add",
	Sub:       "Sub",
	Mul:       "Mul",
	Mod:       "Mod",
	Inc:       "Inc",
	Dec:       "Dec",
	Eq:        "Eq",
	Gt:        "Gt",
	Not:       "Not",
	And:       "And",
	Or:        "Or",
	Xor:       "Xor",
	IsZero:    "IsZero",
	Store:     "Store",
	Load:      "Load",
	Halt:      "Halt",
	Jmp:       "Jmp",
	JmpIf:     "JmpIf",
	Call:      "Call",
	Ret:       "Ret",
	Intuition: "Intuition",
	Reward:    "Reward",
	Evolve:    "Evolve",
	Swap:      "Swap",
	Dup:       "Dup",
	Over:      "Over",
	Drop:      "Drop",
	Parse:     "Parse",
}

func (o Opcode) String() string {
	if o >= 0 && int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return "Unknown"
}

// isPrimitive reports whether op names one of the primitive opcodes
// above, as opposed to a skill invocation.
func isPrimitive(op int64) bool {
	return op >= 0 && op < int64(opcodeCount)
}

// hasImmediate reports whether op consumes the following program
// cell as an immediate operand (a literal payload or a jump target).
func hasImmediate(op Opcode) bool {
	switch op {
	case Literal, Jmp, JmpIf, Call:
		return true
	default:
		return false
	}
}

// stackDeltas is the static net change in operand-stack depth that
// each primitive opcode causes, assuming its required inputs are
// present.
var stackDeltas = [...]int{
	Literal:   1,
	Add:       -1,
	Sub:       -1,
	Mul:       -1,
	Mod:       -1,
	Inc:       0,
	Dec:       0,
	Eq:        -1,
	Gt:        -1,
	Not:       0,
	And:       -1,
	Or:        -1,
	Xor:       -1,
	IsZero:    0,
	Store:     -2,
	Load:      0,
	Halt:      0,
	Jmp:       0,
	JmpIf:     -1,
	Call:      0,
	Ret:       0,
	Intuition: 0,
	Reward:    0,
	Evolve:    -1,
	Swap:      0,
	Dup:       1,
	Over:      1,
	Drop:      -1,
	Parse:     0,
}

// StackDelta returns the primitive opcode's declared stack_delta.
func StackDelta(op Opcode) int {
	if op >= 0 && int(op) < len(stackDeltas) {
		return stackDeltas[op]
	}
	return 0
}

// requiredInputCounts is how many stack entries each opcode must
// find present before dispatch may proceed; it disambiguates
// "consumes 1 produces 1" opcodes (stack_delta 0) from the ones that
// truly need nothing.
var requiredInputCounts = [...]int{
	Literal:   0,
	Add:       2,
	Sub:       2,
	Mul:       2,
	Mod:       2,
	Inc:       1,
	Dec:       1,
	Eq:        2,
	Gt:        2,
	Not:       1,
	And:       2,
	Or:        2,
	Xor:       2,
	IsZero:    1,
	Store:     2,
	Load:      1,
	Halt:      0,
	Jmp:       0,
	JmpIf:     1,
	Call:      0,
	Ret:       0,
	Intuition: 0,
	Reward:    0,
	Evolve:    1,
	Swap:      2,
	Dup:       1,
	Over:      2,
	Drop:      1,
	Parse:     1,
}

// RequiredInputs returns how many operand-stack entries op requires
// to be present before dispatch.
func RequiredInputs(op Opcode) int {
	if op >= 0 && int(op) < len(requiredInputCounts) {
		return requiredInputCounts[op]
	}
	return 0
}

// mayBranch reports whether op can redirect the instruction pointer
// outside the normal fall-through/frame-pop path.
func mayBranch(op Opcode) bool {
	switch op {
	case Jmp, JmpIf, Call, Ret, Halt, Intuition, Evolve:
		return true
	default:
		return false
	}
}

// decodeOpcode decodes a program cell to an integer opcode value,
// applying the tolerance rule: reject non-finite, round to nearest,
// reject if the cell drifts from its rounded value by more than
// opcodeTolerance.
func decodeOpcode(cell float64) (int64, bool) {
	if math.IsNaN(cell) || math.IsInf(cell, 0) {
		return 0, false
	}
	rounded := int64(math.Round(cell))
	if math.Abs(float64(rounded)-cell) > opcodeTolerance {
		return 0, false
	}
	return rounded, true
}
