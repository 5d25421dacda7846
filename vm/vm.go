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

// Package vm implements the self-modifying stack machine: a decoder
// over a flat sequence of float64 cells, a small RPN opcode set, and
// skill invocation (macro bytecode bodies addressed by opcode).
package vm

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/thezeorymer/soulgain/event"
	"github.com/thezeorymer/soulgain/internal/xlog"
	"github.com/thezeorymer/soulgain/intuition"
	"github.com/thezeorymer/soulgain/memory"
	"github.com/thezeorymer/soulgain/plasticity"
	"github.com/thezeorymer/soulgain/skill"
	"github.com/thezeorymer/soulgain/value"
)

// recentOpcodeWindow is the length of the bounded recent-opcode
// history fed to the intuition engine's context snapshots.
const recentOpcodeWindow = 6

// traceCapacityHint sizes the batched-event buffer; it grows past
// this if a run produces more events between flushes.
const traceCapacityHint = 32

// skillInvocation records the bookkeeping needed to score a skill's
// outcome once its program frame is restored.
type skillInvocation struct {
	id                int64
	rewardBefore      float64
	errorsBefore      int64
	expectedDepthMin  int
	correlationID     uuid.UUID
}

// programFrame is a saved caller program plus the skill invocation
// that pushed it, if any (the top-level run has no invocation).
type programFrame struct {
	program    []float64
	ip         int
	invocation *skillInvocation
}

// VM is the self-modifying stack machine. The zero VM is not usable;
// construct with New.
type VM struct {
	program []float64
	ip      int

	stack        []value.Value
	callStack    []int
	programStack []programFrame

	memory  *memory.Memory
	skills  *skill.Library
	plastic *plasticity.Store
	intuit  *intuition.Engine

	trace         []event.Event
	recentOpcodes []int64

	tick        uint64
	totalReward float64
	errorCount  int64

	stopRequested bool

	log *xlog.Logger
}

// New constructs a VM over program with empty stacks, ip=0, and
// fresh plasticity and intuition state.
func New(program []float64) *VM {
	prog := make([]float64, len(program))
	copy(prog, program)
	return &VM{
		program: prog,
		memory:  memory.New(),
		skills:  skill.New(),
		plastic: plasticity.New(),
		intuit:  intuition.New(0x9E3779B97F4A7C15),
		log:     xlog.Default,
	}
}

// NewWithCollaborators constructs a VM sharing the given plasticity
// store and skill library, for scenarios (e.g. the trainer) where
// many VM instances must observe into and draw from the same
// learned state.
func NewWithCollaborators(program []float64, plastic *plasticity.Store, skills *skill.Library, intuit *intuition.Engine) *VM {
	prog := make([]float64, len(program))
	copy(prog, program)
	return &VM{
		program: prog,
		memory:  memory.New(),
		skills:  skills,
		plastic: plastic,
		intuit:  intuit,
		log:     xlog.Default,
	}
}

// Plasticity returns the VM's plasticity handle.
func (vm *VM) Plasticity() *plasticity.Store { return vm.plastic }

// Skills returns the VM's skill library.
func (vm *VM) Skills() *skill.Library { return vm.skills }

// Intuition returns the VM's intuition engine.
func (vm *VM) Intuition() *intuition.Engine { return vm.intuit }

// Memory returns the VM's memory store.
func (vm *VM) Memory() *memory.Memory { return vm.memory }

// Stack returns a defensive copy of the current operand stack,
// bottom-to-top.
func (vm *VM) Stack() []value.Value {
	out := make([]value.Value, len(vm.stack))
	copy(out, vm.stack)
	return out
}

// TotalReward reports the cumulative reward accrued by Reward opcodes.
func (vm *VM) TotalReward() float64 { return vm.totalReward }

// ErrorCount reports how many Error events have been recorded.
func (vm *VM) ErrorCount() int64 { return vm.errorCount }

// Tick reports the number of cycles executed so far.
func (vm *VM) Tick() uint64 { return vm.tick }

// Reset clears the operand stack, call stack and resets ip to 0,
// leaving memory, plasticity, skills and intuition state untouched.
// Used by the trainer between synthesis trials.
func (vm *VM) Reset(program []float64) {
	prog := make([]float64, len(program))
	copy(prog, program)
	vm.program = prog
	vm.ip = 0
	vm.stack = vm.stack[:0]
	vm.callStack = vm.callStack[:0]
	vm.programStack = vm.programStack[:0]
	vm.trace = vm.trace[:0]
	vm.recentOpcodes = vm.recentOpcodes[:0]
	vm.stopRequested = false
}

// Run executes up to maxCycles decoded cells, returning early on a
// top-level Halt or on exhausting the program with an empty frame
// stack. The trace is always flushed before returning.
func (vm *VM) Run(maxCycles int64) {
	defer vm.flush()
	vm.stopRequested = false

	for i := int64(0); i < maxCycles; i++ {
		if vm.ip >= len(vm.program) {
			if !vm.popFrame() {
				return
			}
			continue
		}

		cell := vm.program[vm.ip]
		vm.ip++
		vm.tick++

		opInt, ok := decodeOpcode(cell)
		if !ok {
			vm.recordError(event.InvalidOpcode, -1)
			vm.flush()
			continue
		}

		if !isPrimitive(opInt) {
			vm.recordEvent(event.Opcode(opInt, len(vm.stack)))
			vm.pushRecentOpcode(opInt)
			vm.invokeSkill(opInt)
			continue
		}

		op := Opcode(opInt)
		vm.recordEvent(event.Opcode(opInt, len(vm.stack)))
		vm.pushRecentOpcode(opInt)

		if required := RequiredInputs(op); len(vm.stack) < required {
			vm.recordError(event.StackUnderflow, opInt)
			vm.flush()
			continue
		}

		vm.dispatch(op)
		if vm.stopRequested {
			return
		}
	}
}

func (vm *VM) pushRecentOpcode(op int64) {
	vm.recentOpcodes = append(vm.recentOpcodes, op)
	if len(vm.recentOpcodes) > recentOpcodeWindow {
		vm.recentOpcodes = vm.recentOpcodes[len(vm.recentOpcodes)-recentOpcodeWindow:]
	}
}

func (vm *VM) recordEvent(e event.Event) {
	if cap(vm.trace) == 0 {
		vm.trace = make([]event.Event, 0, traceCapacityHint)
	}
	vm.trace = append(vm.trace, e)
}

func (vm *VM) recordError(kind event.ErrorKind, arg int64) {
	vm.errorCount++
	vm.recordEvent(event.Error(kind, arg))
}

// flush sends the accumulated trace to plasticity as a single
// ordered batch and clears the buffer.
func (vm *VM) flush() {
	if len(vm.trace) == 0 {
		return
	}
	errs := 0
	for _, e := range vm.trace {
		if e.IsError() {
			errs++
		}
	}
	if errs > 0 {
		vm.log.Warn("vm flushed a batch containing errors", "count", errs, "tick", vm.tick)
	}
	vm.plastic.ObserveBatch(vm.trace)
	vm.trace = vm.trace[:0]
}

// popFrame restores the most recently pushed program frame, scoring
// the skill invocation (if any) via the intuition engine. Returns
// false if no frame remained (the top-level run is over).
func (vm *VM) popFrame() bool {
	if len(vm.programStack) == 0 {
		return false
	}
	n := len(vm.programStack) - 1
	frame := vm.programStack[n]
	vm.programStack = vm.programStack[:n]

	vm.program = frame.program
	vm.ip = frame.ip

	if frame.invocation != nil {
		vm.scoreInvocation(frame.invocation)
	}
	return true
}

func (vm *VM) scoreInvocation(inv *skillInvocation) {
	outcome := intuition.Outcome{
		Success:         vm.errorCount == inv.errorsBefore,
		RewardDelta:     vm.totalReward - inv.rewardBefore,
		StackMatchAfter: len(vm.stack) >= inv.expectedDepthMin,
	}
	vm.intuit.UpdateAfterExecution(inv.id, outcome, vm.tick)
}

// invokeSkill fetches and invokes the macro stored under id, pushing
// the current program as a new frame. If no macro is defined it
// records an InvalidOpcode error and is otherwise a no-op.
func (vm *VM) invokeSkill(id int64) {
	body, ok := vm.skills.Get(id)
	if !ok {
		vm.recordError(event.InvalidOpcode, id)
		vm.flush()
		return
	}

	ctx := vm.buildContext()
	expectedDepthMin, known := vm.intuit.PatternMinDepth(id)
	if !known {
		expectedDepthMin = ctx.DepthBucket
	}
	vm.intuit.EnsureSkillKnown(id)

	inv := &skillInvocation{
		id:               id,
		rewardBefore:     vm.totalReward,
		errorsBefore:     vm.errorCount,
		expectedDepthMin: expectedDepthMin,
		correlationID:    uuid.New(),
	}

	vm.programStack = append(vm.programStack, programFrame{
		program:    vm.program,
		ip:         vm.ip,
		invocation: inv,
	})

	vm.log.Debug("skill invocation", "id", id, "correlation", inv.correlationID)
	vm.program = body
	vm.ip = 0
}

func (vm *VM) buildContext() intuition.ContextSnapshot {
	return intuition.BuildContext(vm.stack, vm.recentOpcodes)
}

// dispatch executes a single primitive opcode contract against the
// current stack, memory and control state. Inputs have already been
// confirmed present by the caller.
func (vm *VM) dispatch(op Opcode) {
	switch op {
	case Literal:
		vm.dispatchLiteral()
	case Add:
		vm.dispatchAdd()
	case Sub:
		vm.binaryNumeric(func(a, b float64) float64 { return a - b })
	case Mul:
		vm.binaryNumeric(func(a, b float64) float64 { return a * b })
	case Mod:
		vm.binaryNumeric(func(a, b float64) float64 { return math.Mod(a, b) })
	case Inc:
		vm.unaryNumeric(func(a float64) float64 { return a + 1 })
	case Dec:
		vm.unaryNumeric(func(a float64) float64 { return a - 1 })
	case Eq:
		vm.dispatchEq()
	case Gt:
		vm.dispatchGt()
	case Not:
		vm.dispatchNot()
	case IsZero:
		vm.dispatchIsZero()
	case And:
		vm.binaryBool(func(a, b bool) bool { return a && b })
	case Or:
		vm.binaryBool(func(a, b bool) bool { return a || b })
	case Xor:
		vm.binaryBool(func(a, b bool) bool { return a != b })
	case Store:
		vm.dispatchStore()
	case Load:
		vm.dispatchLoad()
	case Halt:
		vm.dispatchHalt()
	case Jmp:
		vm.dispatchJmp()
	case JmpIf:
		vm.dispatchJmpIf()
	case Call:
		vm.dispatchCall()
	case Ret:
		vm.dispatchRet()
	case Reward:
		vm.dispatchReward()
	case Evolve:
		vm.dispatchEvolve()
	case Intuition:
		vm.dispatchIntuition()
	case Swap:
		vm.dispatchSwap()
	case Dup:
		vm.dispatchDup()
	case Over:
		vm.dispatchOver()
	case Drop:
		vm.dispatchDrop()
	case Parse:
		vm.dispatchParse()
	}
}

// pop removes and returns the top of the operand stack. Callers must
// have already verified sufficient depth.
func (vm *VM) pop() value.Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) push(v value.Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) dispatchLiteral() {
	if vm.ip >= len(vm.program) {
		// Literal's immediate is missing: the program ends mid
		// instruction. Halt the current frame rather than fabricate
		// a payload.
		vm.dispatchHalt()
		return
	}
	n := vm.program[vm.ip]
	vm.ip++
	vm.push(value.Number(n))
}

func (vm *VM) dispatchAdd() {
	b := vm.pop()
	a := vm.pop()
	if an, aok := a.AsNumber(); aok {
		if bn, bok := b.AsNumber(); bok {
			vm.push(value.Number(an + bn))
			return
		}
	}
	if sum, ok := value.Add(a, b); ok {
		vm.push(sum)
		return
	}
	vm.recordError(event.InvalidOpcode, int64(Add))
	vm.flush()
}

func (vm *VM) binaryNumeric(f func(a, b float64) float64) {
	b := vm.pop()
	a := vm.pop()
	an, aok := a.AsNumber()
	bn, bok := b.AsNumber()
	if !aok || !bok {
		vm.recordError(event.InvalidOpcode, -1)
		vm.flush()
		return
	}
	vm.push(value.Number(f(an, bn)))
}

func (vm *VM) unaryNumeric(f func(a float64) float64) {
	a := vm.pop()
	an, ok := a.AsNumber()
	if !ok {
		vm.recordError(event.InvalidOpcode, -1)
		vm.flush()
		return
	}
	vm.push(value.Number(f(an)))
}

func (vm *VM) dispatchEq() {
	b := vm.pop()
	a := vm.pop()
	vm.push(value.Bool(a.Equal(b)))
}

func (vm *VM) dispatchGt() {
	b := vm.pop()
	a := vm.pop()
	an, aok := a.AsNumber()
	bn, bok := b.AsNumber()
	if !aok || !bok {
		vm.recordError(event.InvalidOpcode, -1)
		vm.flush()
		return
	}
	vm.push(value.Bool(an > bn))
}

func (vm *VM) dispatchNot() {
	a := vm.pop()
	vm.push(value.Bool(!a.Truthy()))
}

func (vm *VM) dispatchIsZero() {
	a := vm.pop()
	vm.push(value.Bool(!a.Truthy()))
}

func (vm *VM) binaryBool(f func(a, b bool) bool) {
	b := vm.pop()
	a := vm.pop()
	vm.push(value.Bool(f(a.Truthy(), b.Truthy())))
}

func (vm *VM) dispatchStore() {
	v := vm.pop()
	addrVal := vm.pop()
	addr, ok := addrVal.AsNumber()
	if !ok {
		vm.recordError(event.InvalidOpcode, int64(Store))
		vm.flush()
		return
	}
	vm.memory.Write(addr, v)
	vm.recordEvent(event.MemoryWrite())
}

func (vm *VM) dispatchLoad() {
	addrVal := vm.pop()
	addr, ok := addrVal.AsNumber()
	if !ok {
		vm.recordError(event.InvalidOpcode, int64(Load))
		vm.flush()
		return
	}
	got, hit := vm.memory.Read(addr)
	if !hit {
		vm.push(value.Nil)
		return
	}
	vm.push(got)
	vm.recordEvent(event.MemoryRead())
}

func (vm *VM) dispatchHalt() {
	vm.flush()
	if !vm.popFrame() {
		vm.stopRequested = true
	}
}

func (vm *VM) jumpTarget() (int, bool) {
	if vm.ip >= len(vm.program) {
		return 0, false
	}
	raw := vm.program[vm.ip]
	vm.ip++
	if math.IsNaN(raw) || math.IsInf(raw, 0) || raw < 0 {
		return 0, false
	}
	target := int(math.Round(raw))
	if target < 0 || target > len(vm.program) {
		return 0, false
	}
	return target, true
}

func (vm *VM) dispatchJmp() {
	target, ok := vm.jumpTarget()
	if !ok {
		vm.recordError(event.InvalidJump, -1)
		vm.flush()
		return
	}
	vm.ip = target
}

func (vm *VM) dispatchJmpIf() {
	cond := vm.pop()
	target, ok := vm.jumpTarget()
	if !ok {
		vm.recordError(event.InvalidJump, -1)
		vm.flush()
		return
	}
	if cond.Truthy() {
		vm.ip = target
	}
}

func (vm *VM) dispatchCall() {
	returnIP := vm.ip + 1 // the cell after the jump target immediate
	target, ok := vm.jumpTarget()
	if !ok {
		vm.recordError(event.InvalidJump, -1)
		vm.flush()
		return
	}
	vm.callStack = append(vm.callStack, returnIP)
	vm.ip = target
}

func (vm *VM) dispatchRet() {
	if len(vm.callStack) == 0 {
		vm.recordError(event.ReturnStackUnderflow, -1)
		vm.flush()
		return
	}
	n := len(vm.callStack) - 1
	vm.ip = vm.callStack[n]
	vm.callStack = vm.callStack[:n]
}

func (vm *VM) dispatchReward() {
	vm.totalReward += 100
	vm.recordEvent(event.Reward(100))
	vm.flush()
}

func (vm *VM) dispatchEvolve() {
	idVal := vm.pop()
	idNum, ok := idVal.AsNumber()
	if !ok {
		vm.recordError(event.InvalidEvolve, -1)
		vm.flush()
		return
	}
	id := int64(math.Round(idNum))

	body := make([]float64, len(vm.program))
	copy(body, vm.program)

	if !validateSkillBody(body) {
		vm.recordError(event.InvalidEvolve, id)
		vm.flush()
		return
	}

	vm.skills.Define(id, body)

	ctx := vm.buildContext()
	vm.intuit.EnsureSkillKnown(id)
	vm.intuit.BootstrapPatternIfEmpty(id, ctx)
	vm.intuit.PruneToKnown(vm.skills.RecentlyTouched())

	vm.dispatchReward()
}

func (vm *VM) dispatchIntuition() {
	ctx := vm.buildContext()
	candidates := vm.skills.Ids()
	id, ok := vm.intuit.SelectSkill(ctx, candidates, vm.tick)
	if !ok {
		return
	}
	vm.invokeSkill(id)
}

func (vm *VM) dispatchSwap() {
	n := len(vm.stack)
	vm.stack[n-1], vm.stack[n-2] = vm.stack[n-2], vm.stack[n-1]
}

func (vm *VM) dispatchDup() {
	top := vm.stack[len(vm.stack)-1]
	vm.push(top)
}

func (vm *VM) dispatchOver() {
	second := vm.stack[len(vm.stack)-2]
	vm.push(second)
}

func (vm *VM) dispatchDrop() {
	vm.pop()
}

func (vm *VM) dispatchParse() {
	v := vm.pop()
	switch v.Kind() {
	case value.KindNumber:
		vm.push(v)
	case value.KindString:
		s, _ := v.AsString()
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			vm.push(value.Nil)
			return
		}
		vm.push(value.Number(n))
	default:
		vm.push(value.Nil)
	}
}

// Disassemble renders a bytecode program as a human-readable listing,
// one instruction per line, for trainer logs and debugging.
func Disassemble(program []float64) string {
	var b strings.Builder
	for i := 0; i < len(program); {
		opInt, ok := decodeOpcode(program[i])
		if !ok {
			b.WriteString(strconv.Itoa(i))
			b.WriteString(": <invalid cell ")
			b.WriteString(strconv.FormatFloat(program[i], 'g', -1, 64))
			b.WriteString(">\n")
			i++
			continue
		}
		if !isPrimitive(opInt) {
			b.WriteString(strconv.Itoa(i))
			b.WriteString(": skill ")
			b.WriteString(strconv.FormatInt(opInt, 10))
			b.WriteString("\n")
			i++
			continue
		}
		op := Opcode(opInt)
		b.WriteString(strconv.Itoa(i))
		b.WriteString(": ")
		b.WriteString(op.String())
		i++
		if hasImmediate(op) && i < len(program) {
			b.WriteString(" ")
			b.WriteString(strconv.FormatFloat(program[i], 'g', -1, 64))
			i++
		}
		b.WriteString("\n")
	}
	return b.String()
}

// validateSkillBody statically checks that body never underflows the
// operand stack assuming an ambient starting depth of 0, and that it
// contains a terminating Halt. It does not execute the program.
func validateSkillBody(body []float64) bool {
	depth := 0
	sawHalt := false
	for i := 0; i < len(body); {
		opInt, ok := decodeOpcode(body[i])
		i++
		if !ok {
			continue
		}
		if !isPrimitive(opInt) {
			// A skill invocation's net effect on depth cannot be
			// known statically; conservatively assume it is
			// depth-neutral, matching the VM's own treatment of
			// skills as opaque macros for this check.
			continue
		}
		op := Opcode(opInt)
		if hasImmediate(op) {
			i++
		}
		if depth < RequiredInputs(op) {
			return false
		}
		depth += StackDelta(op)
		if op == Halt {
			sawHalt = true
		}
	}
	return sawHalt
}
