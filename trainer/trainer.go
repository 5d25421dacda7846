// Package trainer implements the example-driven synthesis loop: given an
// oracle and a sample input, it searches for a bytecode program whose
// execution reproduces the oracle's output, inventing and reusing skill
// macros along the way.
package trainer

import (
	"encoding/binary"
	"fmt"
	"math"

	mapset "github.com/deckarep/golang-set"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/thezeorymer/soulgain/event"
	"github.com/thezeorymer/soulgain/internal/rng"
	"github.com/thezeorymer/soulgain/internal/xlog"
	"github.com/thezeorymer/soulgain/value"
	"github.com/thezeorymer/soulgain/vm"
)

// Oracle supplies the expected output for a given input. Implementations
// must be pure and total.
type Oracle interface {
	Evaluate(input []value.Value) []value.Value
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(input []value.Value) []value.Value

// Evaluate calls f.
func (f OracleFunc) Evaluate(input []value.Value) []value.Value { return f(input) }

// Config bounds a synthesis session.
type Config struct {
	MaxProgramLen int
	ExploreRate   float64
	CycleBudget   int64
}

// DefaultConfig returns the constants the search loop uses absent an
// explicit override.
func DefaultConfig() Config {
	return Config{
		MaxProgramLen: 12,
		ExploreRate:   0.3,
		CycleBudget:   10_000,
	}
}

const (
	greedyWeightThreshold = 9.0
	skillBias             = 2.5
	fitnessSuccess        = 0.9999
	fitnessRewardFloor    = 0.1
	inventFitnessCeiling  = 0.1
	speculateProbability  = 0.2
	inventProbability     = 0.5
	randomIDLow           = 1000
	randomIDHigh          = 9999
)

// StrategyStats tallies how a single strategy fared across one or more
// synthesise calls.
type StrategyStats struct {
	Attempts  int
	Successes int
}

// Trainer borrows a VM for the duration of a synthesis session,
// rewriting its program across attempts.
type Trainer struct {
	vm     *vm.VM
	cfg    Config
	rng    *rng.Source
	log    *xlog.Logger
	tried  mapset.Set
	stats  map[string]*StrategyStats
}

// New builds a Trainer that drives the given VM. seed makes opcode
// sampling and strategy selection reproducible.
func New(v *vm.VM, cfg Config, seed uint64) *Trainer {
	return &Trainer{
		vm:    v,
		cfg:   cfg,
		rng:   rng.NewSource(seed),
		log:   xlog.Default,
		tried: mapset.NewSet(),
		stats: make(map[string]*StrategyStats),
	}
}

// VM returns the borrowed virtual machine.
func (t *Trainer) VM() *vm.VM { return t.vm }

// Stats reports a snapshot of per-strategy attempt/success counts.
func (t *Trainer) Stats() map[string]StrategyStats {
	out := make(map[string]StrategyStats, len(t.stats))
	for k, v := range t.stats {
		out[k] = *v
	}
	return out
}

func (t *Trainer) recordAttempt(tag string) {
	s, ok := t.stats[tag]
	if !ok {
		s = &StrategyStats{}
		t.stats[tag] = s
	}
	s.Attempts++
}

func (t *Trainer) recordSuccess(tag string) {
	s, ok := t.stats[tag]
	if !ok {
		s = &StrategyStats{}
		t.stats[tag] = s
	}
	s.Successes++
}

// Synthesize searches for a program that reproduces oracle.Evaluate(input)
// on the VM's stack, trying up to attemptsLimit distinct candidates. It
// returns the optimised program and true on success, or (nil, false) if
// the budget is exhausted without finding one — a normal, non-error
// outcome.
func (t *Trainer) Synthesize(oracle Oracle, input []value.Value, attemptsLimit int) ([]float64, bool) {
	expected := oracle.Evaluate(input)
	sessionID := uuid.New().String()

	var bestProgram []float64
	bestFitness := 0.0
	inputPreambleLen := len(input) * 2
	minOps := len(input) - 1
	if minOps < 1 {
		minOps = 1
	}

	attempt := 0
	for attempt < attemptsLimit {
		r := t.rng.NextUnit()
		currentLen := minOps
		if span := t.cfg.MaxProgramLen - minOps; span > 0 {
			currentLen += t.rng.Intn(span + 1)
		}

		tryInvent := bestFitness < inventFitnessCeiling && r < inventProbability
		trySpeculate := !tryInvent && bestFitness > 0 && r < speculateProbability
		tryMutate := !tryInvent && !trySpeculate && bestFitness > 0 && bestProgram != nil

		var program []float64
		var logicStart int
		var tag string

		switch {
		case tryInvent:
			id := t.generateSmartSkillLogic(currentLen)
			preamble, start := t.buildProgram(input, 1)
			preamble[len(preamble)-2] = float64(id)
			program = preamble
			logicStart = start
			tag = fmt.Sprintf("INVENT_%d", id)

		case trySpeculate:
			variant := cloneFloats(bestProgram)
			if variant == nil {
				variant, _ = t.buildProgram(input, currentLen)
			}
			newVariant, id, ok := t.speculateNewSkill(variant, inputPreambleLen)
			if ok {
				variant = newVariant
				tag = fmt.Sprintf("SPEC_Some(%d)", id)
			} else {
				tag = "SPEC_None"
			}
			program = variant
			logicStart = inputPreambleLen

		case tryMutate:
			variant := cloneFloats(bestProgram)
			t.mutateProgram(variant, inputPreambleLen)
			program = variant
			logicStart = inputPreambleLen
			tag = "MUTATE"

		default:
			p, start := t.buildProgram(input, currentLen)
			program = p
			logicStart = start
			tag = "RANDOM"
		}

		logicHash := hashLogic(program[logicStart:])
		if t.tried.Contains(logicHash) {
			continue
		}
		t.tried.Add(logicHash)
		attempt++

		execBuf := cloneFloats(program)
		result := t.execute(execBuf)
		fitness := calculateFitness(result, expected)

		t.recordAttempt(tag)
		t.log.Debug("synthesis attempt", "session", sessionID, "tag", tag, "fitness", fitness, "logic", vm.Disassemble(program[logicStart:]))

		if fitness > bestFitness {
			bestFitness = fitness
			bestProgram = cloneFloats(program)
			if fitness > fitnessRewardFloor {
				t.vm.Plasticity().Observe(event.Reward(int(fitness * 100)))
			}
		}

		if fitness >= fitnessSuccess {
			logic := cloneFloats(program[logicStart:])
			if len(logic) > 0 && vm.Opcode(int64(logic[len(logic)-1])) == vm.Halt {
				logic = logic[:len(logic)-1]
			}
			if len(logic) == 0 {
				t.recordSuccess(tag)
				return program, true
			}
			skillID := t.registerOrFindSkill(logic)
			t.recordSuccess(tag)
			t.imprintSkill(skillID, len(input))

			optimized := append(cloneFloats(program[:logicStart]), float64(skillID), float64(vm.Halt))
			return optimized, true
		}
	}
	return nil, false
}

func (t *Trainer) execute(program []float64) []value.Value {
	t.vm.Reset(program)
	t.vm.Run(t.cfg.CycleBudget)
	return t.vm.Stack()
}

func calculateFitness(result, expected []value.Value) float64 {
	if len(result) == 0 || len(result) != len(expected) {
		return 0
	}
	score := 0.0
	for i := range result {
		rn, rok := result[i].AsNumber()
		en, eok := expected[i].AsNumber()
		switch {
		case rok && eok:
			score += 1 / (1 + math.Abs(rn-en))
		case result[i].Equal(expected[i]):
			score += 1
		}
	}
	return score / float64(len(expected))
}

// buildProgram lays down a Literal preamble for every numeric input
// followed by targetLen opcodes chosen via STDP-biased sampling, and a
// trailing Halt. It returns the assembled program and the index where
// the logic region (past the preamble) begins.
func (t *Trainer) buildProgram(input []value.Value, targetLen int) ([]float64, int) {
	program := make([]float64, 0, targetLen*2+len(input)*2+1)
	stackDepth := 0
	for _, v := range input {
		if n, ok := v.AsNumber(); ok {
			program = append(program, float64(vm.Literal), n)
			stackDepth++
		}
	}
	logicStart := len(program)
	lastEvent := event.Opcode(int64(vm.Literal), stackDepth)
	for i := 0; i < targetLen; i++ {
		op := t.chooseOpWithSTDP(lastEvent, stackDepth)
		program = append(program, float64(op))
		if op == int64(vm.Literal) {
			stackDepth++
		} else if stackDepth > 0 {
			stackDepth--
		}
		lastEvent = event.Opcode(op, stackDepth)
	}
	program = append(program, float64(vm.Halt))
	return program, logicStart
}

// chooseOpWithSTDP picks the next logic opcode: a mixture of {Add, Sub,
// Mul} and known skill ids. With probability 1-ExploreRate it greedily
// follows the strongest outgoing plasticity weight from lastEvent when
// that weight clears the confidence threshold; otherwise it picks a
// candidate uniformly at random.
func (t *Trainer) chooseOpWithSTDP(lastEvent event.Event, stackDepth int) int64 {
	ops := candidateOps(t.vm)
	bestOp := ops[0]
	bestWeight := math.Inf(-1)
	for _, op := range ops {
		target := event.Opcode(op, stackDepth)
		weight := t.vm.Plasticity().Weight(lastEvent, target)
		if op >= vm.SkillOpcodeBase {
			weight += skillBias
		}
		if weight > bestWeight {
			bestWeight = weight
			bestOp = op
		}
	}
	if t.rng.NextUnit() >= t.cfg.ExploreRate && bestWeight >= greedyWeightThreshold {
		return bestOp
	}
	return ops[t.rng.Intn(len(ops))]
}

func candidateOps(v *vm.VM) []int64 {
	ops := []int64{int64(vm.Add), int64(vm.Sub), int64(vm.Mul)}
	ops = append(ops, v.Skills().Ids()...)
	return ops
}

// generateSmartSkillLogic samples targetLen opcodes (favouring existing
// skills with probability 0.3 once any exist) and registers the result
// as a fresh macro.
func (t *Trainer) generateSmartSkillLogic(targetLen int) int64 {
	ids := t.vm.Skills().Ids()
	logic := make([]float64, 0, targetLen)
	for i := 0; i < targetLen; i++ {
		var op int64
		if len(ids) > 0 && t.rng.NextUnit() < 0.3 {
			op = ids[t.rng.Intn(len(ids))]
		} else {
			basic := []int64{int64(vm.Add), int64(vm.Sub), int64(vm.Mul)}
			op = basic[t.rng.Intn(len(basic))]
		}
		logic = append(logic, float64(op))
	}
	return t.registerOrFindSkill(logic)
}

// speculateNewSkill carves a contiguous window of 2..=min(5, logicLen)
// opcodes out of program's logic region, registers it as a new macro,
// and replaces the window with the macro's id. It returns the rewritten
// program (a fresh slice) and the chosen id, or ok=false when the logic
// region is too short to carve a window from.
func (t *Trainer) speculateNewSkill(program []float64, logicStart int) ([]float64, int64, bool) {
	logicLen := len(program) - 1 - logicStart
	if logicLen < 2 {
		return program, 0, false
	}
	maxWindow := 5
	if logicLen < maxWindow {
		maxWindow = logicLen
	}
	windowSize := 2 + t.rng.Intn(maxWindow-2+1)
	maxStart := (len(program) - 1) - windowSize
	if maxStart < logicStart {
		return program, 0, false
	}
	startIdx := logicStart + t.rng.Intn(maxStart-logicStart+1)
	pattern := cloneFloats(program[startIdx : startIdx+windowSize])
	newID := t.registerOrFindSkill(pattern)

	rewritten := make([]float64, 0, len(program)-windowSize+1)
	rewritten = append(rewritten, program[:startIdx]...)
	rewritten = append(rewritten, float64(newID))
	rewritten = append(rewritten, program[startIdx+windowSize:]...)
	return rewritten, newID, true
}

// mutateProgram swaps a single opcode within program's logic region
// (excluding the trailing Halt) for a randomly chosen candidate op, in
// place.
func (t *Trainer) mutateProgram(program []float64, logicStart int) {
	if len(program) <= logicStart+1 {
		return
	}
	lo, hi := logicStart, len(program)-1
	if lo >= hi {
		return
	}
	idx := lo + t.rng.Intn(hi-lo)
	ops := candidateOps(t.vm)
	program[idx] = float64(ops[t.rng.Intn(len(ops))])
}

// registerOrFindSkill returns the id of an existing macro whose body
// exactly matches logic, or defines and returns a fresh one.
func (t *Trainer) registerOrFindSkill(logic []float64) int64 {
	for _, id := range t.vm.Skills().Ids() {
		body, ok := t.vm.Skills().Get(id)
		if ok && floatsEqual(body, logic) {
			return id
		}
	}
	id := t.generateRandomID()
	t.vm.Skills().Define(id, logic)
	return id
}

func (t *Trainer) generateRandomID() int64 {
	for {
		id := int64(randomIDLow) + int64(t.rng.Intn(randomIDHigh-randomIDLow))
		if !t.vm.Skills().Has(id) {
			return id
		}
	}
}

// imprintSkill wires a direct plasticity edge from the input-preamble
// context to the newly synthesised skill, so future runs recognise it
// as a candidate earlier than raw experience alone would teach.
func (t *Trainer) imprintSkill(skillID int64, numInputs int) {
	ctx := event.Opcode(int64(vm.Literal), numInputs)
	target := event.Opcode(skillID, numInputs)
	t.vm.Plasticity().ImprintWeight(ctx, target, 10.0)
}

func cloneFloats(s []float64) []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, len(s))
	copy(out, s)
	return out
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// hashLogic summarises a bytecode window to a single comparable value
// for the tried-attempts de-duplication set.
func hashLogic(logic []float64) uint64 {
	buf := make([]byte, 8*len(logic))
	for i, f := range logic {
		binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return xxhash.Sum64(buf)
}
