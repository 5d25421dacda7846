package intuition

import (
	"testing"

	"github.com/thezeorymer/soulgain/value"
)

func TestBuildContextDepthBucketClamps(t *testing.T) {
	stack := make([]value.Value, 9)
	for i := range stack {
		stack[i] = value.Number(float64(i))
	}
	ctx := BuildContext(stack, nil)
	if ctx.DepthBucket != 5 {
		t.Fatalf("got depth bucket %d, want 5", ctx.DepthBucket)
	}
}

func TestBuildContextTopTypesRightmostFirst(t *testing.T) {
	stack := []value.Value{value.Number(1), value.String("x"), value.Bool(true)}
	ctx := BuildContext(stack, nil)
	if *ctx.TopTypes[0] != value.KindBool {
		t.Fatalf("top type[0] = %v, want Bool", *ctx.TopTypes[0])
	}
	if *ctx.TopTypes[1] != value.KindString {
		t.Fatalf("top type[1] = %v, want String", *ctx.TopTypes[1])
	}
}

func TestSelectSkillGatesOnPatternMatch(t *testing.T) {
	e := New(1)
	e.Deterministic = true
	e.EnsureSkillKnown(1000)
	// Default pattern has no required types and depth [0,5], so it
	// always matches at 1.0 and clears the gate.
	ctx := BuildContext(nil, nil)
	id, ok := e.SelectSkill(ctx, []int64{1000}, 0)
	if !ok || id != 1000 {
		t.Fatalf("expected skill 1000 selected, got %d %v", id, ok)
	}
}

func TestSelectSkillEmptyCandidatesReturnsAbsent(t *testing.T) {
	e := New(1)
	if _, ok := e.SelectSkill(ContextSnapshot{}, nil, 0); ok {
		t.Fatal("no candidates must yield absent")
	}
}

func TestSelectSkillDeterministicPicksArgmax(t *testing.T) {
	e := New(1)
	e.Deterministic = true
	e.EnsureSkillKnown(1000)
	e.EnsureSkillKnown(1001)
	// Give 1001 a strong success history so its score dominates.
	for i := 0; i < 10; i++ {
		e.UpdateAfterExecution(1001, Outcome{Success: true, RewardDelta: 100, StackMatchAfter: true}, uint64(i))
	}
	ctx := BuildContext(nil, nil)
	id, ok := e.SelectSkill(ctx, []int64{1000, 1001}, 100)
	if !ok || id != 1001 {
		t.Fatalf("expected skill 1001 to win on applicability score, got %d", id)
	}
}

func TestUpdateAfterExecutionConfidenceBounds(t *testing.T) {
	e := New(1)
	e.EnsureSkillKnown(1000)
	for i := 0; i < 1000; i++ {
		e.UpdateAfterExecution(1000, Outcome{Success: false, RewardDelta: -100, StackMatchAfter: false}, uint64(i))
	}
	stats, _ := e.Stats(1000)
	if stats.BaseConfidence < confidenceMin {
		t.Fatalf("confidence must clamp at %v, got %v", confidenceMin, stats.BaseConfidence)
	}
}

func TestBootstrapPatternCopiesContext(t *testing.T) {
	e := New(1)
	stack := []value.Value{value.Number(1), value.Number(2)}
	ctx := BuildContext(stack, nil)
	e.BootstrapPatternIfEmpty(1000, ctx)
	m := e.meta[1000]
	if m.pattern.RequiredTopTypes[0] == nil || *m.pattern.RequiredTopTypes[0] != value.KindNumber {
		t.Fatal("bootstrap must copy the context's top types into the pattern")
	}
}

func TestSelectSkillGateRejectsMismatchedContext(t *testing.T) {
	e := New(1)
	e.Deterministic = true
	learnedAt := BuildContext([]value.Value{value.Number(1), value.Number(2)}, nil)
	e.EnsureSkillKnown(1000)
	e.BootstrapPatternIfEmpty(1000, learnedAt)

	// Empty stack: depth bucket 0 (below the learned MinDepth of 2) and
	// no top types at all (so none can match the learned Number slots).
	mismatched := BuildContext(nil, nil)
	if _, ok := e.SelectSkill(mismatched, []int64{1000}, 0); ok {
		t.Fatal("a context whose top types and depth both miss the learned pattern must be gated out")
	}

	if id, ok := e.SelectSkill(learnedAt, []int64{1000}, 0); !ok || id != 1000 {
		t.Fatalf("the learned context itself must still clear the gate, got %d %v", id, ok)
	}
}

func TestPatternMinDepthReportsUnknownAndLearned(t *testing.T) {
	e := New(1)
	if _, ok := e.PatternMinDepth(1000); ok {
		t.Fatal("an unregistered skill must report unknown")
	}
	ctx := BuildContext(make([]value.Value, 4), nil)
	e.EnsureSkillKnown(1000)
	e.BootstrapPatternIfEmpty(1000, ctx)
	depth, ok := e.PatternMinDepth(1000)
	if !ok || depth != 4 {
		t.Fatalf("got (%d, %v), want (4, true)", depth, ok)
	}
}

func TestPruneToKnownDropsStaleMetadata(t *testing.T) {
	e := New(1)
	e.EnsureSkillKnown(1000)
	e.EnsureSkillKnown(1001)
	e.PruneToKnown([]int64{1001})
	if _, ok := e.meta[1000]; ok {
		t.Fatal("metadata for a skill absent from the active set must be pruned")
	}
	if _, ok := e.meta[1001]; !ok {
		t.Fatal("metadata for an active skill must survive pruning")
	}
}
