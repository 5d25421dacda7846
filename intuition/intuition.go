// Package intuition implements context-conditioned skill selection:
// given the VM's current stack shape and recent opcode history, score
// known skills by how well their learned pattern matches the context
// and how well they have performed historically, then pick one.
package intuition

import (
	"sort"

	"github.com/thezeorymer/soulgain/internal/rng"
	"github.com/thezeorymer/soulgain/value"
)

// NumberBand classifies a numeric top-of-stack value into a coarse
// range, carried on ContextSnapshot as a non-load-bearing enrichment.
type NumberBand int

const (
	BandNone NumberBand = iota
	BandNeg
	BandZero
	BandSmall
	BandMedium
	BandLarge
)

func numberBand(v value.Value) NumberBand {
	n, ok := v.AsNumber()
	if !ok {
		return BandNone
	}
	switch {
	case n < 0:
		return BandNeg
	case n == 0:
		return BandZero
	case n < 10:
		return BandSmall
	case n < 1000:
		return BandMedium
	default:
		return BandLarge
	}
}

// ContextSnapshot captures the VM state relevant to skill selection.
type ContextSnapshot struct {
	DepthBucket     int
	TopTypes        [3]*value.Kind
	TopNumberBands  [3]NumberBand
	RecentOpcodes   []int64
}

// BuildContext constructs a ContextSnapshot from the current operand
// stack (bottom-to-top order) and the bounded recent-opcode history.
func BuildContext(stack []value.Value, recentOpcodes []int64) ContextSnapshot {
	var topTypes [3]*value.Kind
	var bands [3]NumberBand
	for i := 0; i < 3 && i < len(stack); i++ {
		v := stack[len(stack)-1-i]
		k := v.Kind()
		topTypes[i] = &k
		bands[i] = numberBand(v)
	}
	recent := make([]int64, len(recentOpcodes))
	copy(recent, recentOpcodes)
	return ContextSnapshot{
		DepthBucket:    depthBucket(len(stack)),
		TopTypes:       topTypes,
		TopNumberBands: bands,
		RecentOpcodes:  recent,
	}
}

func depthBucket(depth int) int {
	if depth > 5 {
		return 5
	}
	return depth
}

// SkillPattern is the learned applicability envelope for a skill.
type SkillPattern struct {
	MinDepth         int
	MaxDepth         int
	RequiredTopTypes [3]*value.Kind
}

func newDefaultPattern() SkillPattern {
	return SkillPattern{MinDepth: 0, MaxDepth: 5}
}

// requiredTypesEmpty reports whether no slot in the pattern requires
// a specific type.
func (p SkillPattern) requiredTypesEmpty() bool {
	for _, t := range p.RequiredTopTypes {
		if t != nil {
			return false
		}
	}
	return true
}

// SkillStats tracks a skill's historical outcomes.
type SkillStats struct {
	Attempts         uint64
	Successes        uint64
	Failures         uint64
	AvgRewardDelta   float64
	BaseConfidence   float64
	LastUsedTick     uint64
}

func newDefaultStats() SkillStats {
	return SkillStats{BaseConfidence: 0.5}
}

type skillMetadata struct {
	pattern SkillPattern
	stats   SkillStats
}

// Weights are the scoring coefficients used by applicabilityScore.
type Weights struct {
	Match   float64
	Success float64
	Reward  float64
	Conf    float64
	Decay   float64
	Explore float64
}

// DefaultWeights returns the baseline scoring coefficients used when no
// override is supplied.
func DefaultWeights() Weights {
	return Weights{
		Match:   0.45,
		Success: 0.20,
		Reward:  0.15,
		Conf:    0.10,
		Decay:   0.07,
		Explore: 0.03,
	}
}

// Outcome is the result of one skill invocation, fed back into the
// engine after execution.
type Outcome struct {
	Success          bool
	RewardDelta      float64
	StackMatchAfter  bool
}

// recencyWindow is how many ticks count as "recently used" for the
// recency penalty in applicabilityScore.
const recencyWindow = 8

// ewmaAlpha is the smoothing factor for the reward-delta average.
const ewmaAlpha = 0.25

const (
	confidenceGainOnSuccess     = 0.03
	confidenceLossOnFailure     = 0.04
	confidenceLossOnDepthMiss   = 0.02
	confidenceMin               = 0.05
	confidenceMax               = 0.95
)

// Engine is the context-conditioned skill selector.
type Engine struct {
	meta            map[int64]*skillMetadata
	Weights         Weights
	GateThreshold   float64
	Deterministic   bool
	rng             *rng.Source
}

// New constructs an Engine seeded for reproducible weighted picks.
func New(seed uint64) *Engine {
	return &Engine{
		meta:          make(map[int64]*skillMetadata),
		Weights:       DefaultWeights(),
		GateThreshold: 0.35,
		rng:           rng.NewSource(seed),
	}
}

// EnsureSkillKnown inserts default metadata for id if absent.
func (e *Engine) EnsureSkillKnown(id int64) {
	if _, ok := e.meta[id]; !ok {
		e.meta[id] = &skillMetadata{pattern: newDefaultPattern(), stats: newDefaultStats()}
	}
}

// BootstrapPatternIfEmpty copies ctx's top types into id's pattern
// when the pattern currently requires nothing, giving a freshly
// registered skill a plausible initial applicability envelope.
func (e *Engine) BootstrapPatternIfEmpty(id int64, ctx ContextSnapshot) {
	e.EnsureSkillKnown(id)
	m := e.meta[id]
	if m.pattern.requiredTypesEmpty() {
		m.pattern.RequiredTopTypes = ctx.TopTypes
		m.pattern.MinDepth = ctx.DepthBucket
		m.pattern.MaxDepth = 5
	}
}

type scoredSkill struct {
	id    int64
	score float64
}

// SelectSkill scores every candidate against ctx and picks one: the
// argmax in deterministic mode, otherwise a roulette-wheel sample
// proportional to positive score. Returns (0, false) if no candidate
// clears the pattern-match gate or earns a positive score.
func (e *Engine) SelectSkill(ctx ContextSnapshot, candidates []int64, tick uint64) (int64, bool) {
	scored := make([]scoredSkill, 0, len(candidates))
	for _, id := range candidates {
		e.EnsureSkillKnown(id)
		m := e.meta[id]
		pm := patternMatch(ctx, m.pattern)
		if pm < e.GateThreshold {
			continue
		}
		score := e.applicabilityScore(m, tick, pm)
		if score > 0 {
			scored = append(scored, scoredSkill{id, score})
		}
	}
	if len(scored) == 0 {
		return 0, false
	}
	if e.Deterministic {
		sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
		return scored[0].id, true
	}
	return e.weightedPick(scored)
}

// UpdateAfterExecution folds outcome into id's historical stats.
func (e *Engine) UpdateAfterExecution(id int64, outcome Outcome, tick uint64) {
	e.EnsureSkillKnown(id)
	m := e.meta[id]
	m.stats.Attempts++
	if outcome.Success {
		m.stats.Successes++
		m.stats.BaseConfidence = clamp(m.stats.BaseConfidence+confidenceGainOnSuccess, confidenceMin, confidenceMax)
	} else {
		m.stats.Failures++
		m.stats.BaseConfidence = clamp(m.stats.BaseConfidence-confidenceLossOnFailure, confidenceMin, confidenceMax)
	}
	m.stats.AvgRewardDelta = (1-ewmaAlpha)*m.stats.AvgRewardDelta + ewmaAlpha*outcome.RewardDelta
	if !outcome.StackMatchAfter {
		m.stats.BaseConfidence = clamp(m.stats.BaseConfidence-confidenceLossOnDepthMiss, confidenceMin, confidenceMax)
	}
	m.stats.LastUsedTick = tick
}

// Stats returns a copy of the stored stats for id, if known.
func (e *Engine) Stats(id int64) (SkillStats, bool) {
	m, ok := e.meta[id]
	if !ok {
		return SkillStats{}, false
	}
	return m.stats, true
}

// PatternMinDepth returns id's learned minimum applicable stack depth
// and whether id has any metadata at all. Callers that need an
// expected depth for an unknown skill should fall back to the current
// context's depth bucket.
func (e *Engine) PatternMinDepth(id int64) (int, bool) {
	m, ok := e.meta[id]
	if !ok {
		return 0, false
	}
	return m.pattern.MinDepth, true
}

// PruneToKnown drops metadata for any skill id not present in
// activeIDs, bounding the metadata table to the skill library's own
// provenance window instead of growing it unboundedly.
func (e *Engine) PruneToKnown(activeIDs []int64) {
	keep := make(map[int64]struct{}, len(activeIDs))
	for _, id := range activeIDs {
		keep[id] = struct{}{}
	}
	for id := range e.meta {
		if _, ok := keep[id]; !ok {
			delete(e.meta, id)
		}
	}
}

func patternMatch(ctx ContextSnapshot, p SkillPattern) float64 {
	score := 0.0
	if ctx.DepthBucket >= p.MinDepth && ctx.DepthBucket <= p.MaxDepth {
		score += 0.4
	}

	matches, total := 0.0, 0.0
	for i := 0; i < 3; i++ {
		if p.RequiredTopTypes[i] == nil {
			continue
		}
		total++
		if ctx.TopTypes[i] != nil && *ctx.TopTypes[i] == *p.RequiredTopTypes[i] {
			matches++
		}
	}
	if total == 0 {
		score += 0.6
	} else {
		score += 0.6 * (matches / total)
	}
	return clamp(score, 0, 1)
}

func (e *Engine) applicabilityScore(m *skillMetadata, tick uint64, patternMatch float64) float64 {
	attempts := m.stats.Attempts
	successRate := 0.0
	if attempts > 0 {
		successRate = float64(m.stats.Successes) / float64(attempts)
	}
	normalizedReward := clamp(m.stats.AvgRewardDelta/100, -1, 1)
	recencyPenalty := 0.0
	if tick >= m.stats.LastUsedTick && tick-m.stats.LastUsedTick <= recencyWindow {
		recencyPenalty = 1.0
	}
	explorationBonus := 1.0 / (1.0 + float64(attempts))

	w := e.Weights
	return w.Match*patternMatch +
		w.Success*successRate +
		w.Reward*normalizedReward +
		w.Conf*m.stats.BaseConfidence -
		w.Decay*recencyPenalty +
		w.Explore*explorationBonus
}

func (e *Engine) weightedPick(scored []scoredSkill) (int64, bool) {
	total := 0.0
	for _, s := range scored {
		total += s.score
	}
	if total <= 0 {
		best := scored[0]
		for _, s := range scored[1:] {
			if s.score > best.score {
				best = s
			}
		}
		return best.id, true
	}

	r := e.rng.NextUnit() * total
	for _, s := range scored {
		if r <= s.score {
			return s.id, true
		}
		r -= s.score
	}
	return scored[len(scored)-1].id, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
