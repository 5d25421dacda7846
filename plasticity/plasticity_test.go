package plasticity

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/thezeorymer/soulgain/event"
)

func drain(t *testing.T, s *Store) {
	t.Helper()
	// Give the background worker a moment to process queued events:
	// wait until both channels are empty, then allow a short grace
	// period for the last dequeued event to be applied.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.RLock()
		pendingSingles := len(s.singles)
		pendingBatches := len(s.batches)
		s.mu.RUnlock()
		if pendingSingles == 0 && pendingBatches == 0 {
			time.Sleep(5 * time.Millisecond)
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func TestObserveBuildsCausalEdge(t *testing.T) {
	s := New()
	defer s.Close()

	add := event.Opcode(1, 0)
	reward := event.Reward(100)

	s.Observe(add)
	time.Sleep(5 * time.Millisecond)
	s.Observe(reward)
	drain(t, s)

	w := s.Weight(add, reward)
	if w <= 0 {
		t.Fatalf("expected positive weight from Add to Reward, got %v", w)
	}
}

func TestRewardEdgeStrongerThanUnrelated(t *testing.T) {
	s := New()
	defer s.Close()

	add := event.Opcode(1, 0)
	sub := event.Opcode(2, 0)
	reward := event.Reward(100)

	for i := 0; i < 10; i++ {
		s.Observe(add)
		time.Sleep(time.Millisecond)
		s.Observe(reward)
		time.Sleep(time.Millisecond)
	}
	drain(t, s)

	addToReward := s.Weight(add, reward)
	subToReward := s.Weight(sub, reward)
	if !(addToReward > subToReward) {
		t.Fatalf("Add->Reward (%v) must exceed never-co-activated Sub->Reward (%v)", addToReward, subToReward)
	}
}

func TestNormalizationCapHolds(t *testing.T) {
	s := New()
	defer s.Close()

	reward := event.Reward(100)
	src := event.Opcode(9, 0)
	for i := 0; i < 200; i++ {
		s.Observe(src)
		s.Observe(reward)
	}
	drain(t, s)

	s.mu.RLock()
	sum := 0.0
	for to := range s.outgoing[src] {
		if w := s.weights[edgeKey{src, to}]; w > 0 {
			sum += w
		}
	}
	s.mu.RUnlock()

	if sum > NormalizationCap+1e-6 {
		t.Fatalf("outgoing positive sum %v exceeds cap %v", sum, NormalizationCap)
	}
}

func TestBestNextEventTieBreakDeterministic(t *testing.T) {
	s := New()
	defer s.Close()

	from := event.Opcode(1, 0)
	a := event.Opcode(2, 0)
	b := event.Opcode(3, 0)

	s.mu.Lock()
	s.addWeight(from, a, 1.0)
	s.addWeight(from, b, 1.0)
	s.mu.Unlock()

	got1, ok1 := s.BestNextEvent(from)
	got2, ok2 := s.BestNextEvent(from)
	if !ok1 || !ok2 {
		t.Fatal("expected a best-next-event to be found")
	}
	if got1 != got2 {
		t.Fatal("tie-break must be deterministic across repeated calls")
	}
}

func TestDecayLongTermShrinksWeights(t *testing.T) {
	s := New()
	defer s.Close()

	from := event.Opcode(1, 0)
	to := event.Opcode(2, 0)
	s.mu.Lock()
	s.addWeight(from, to, 1.0)
	s.mu.Unlock()

	before := s.Weight(from, to)
	s.DecayLongTerm()
	after := s.Weight(from, to)
	if after >= before {
		t.Fatalf("decay must shrink weight: before=%v after=%v", before, after)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New()
	defer s.Close()

	from := event.Opcode(1, 0)
	to := event.Reward(100)
	s.mu.Lock()
	s.addWeight(from, to, 3.5)
	s.mu.Unlock()

	dir := t.TempDir()
	path := filepath.Join(dir, "plasticity.toml")
	if err := s.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	s2 := New()
	defer s2.Close()
	if err := s2.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if w := s2.Weight(from, to); w != 3.5 {
		t.Fatalf("got weight %v, want 3.5", w)
	}
}

func TestLoadFromFileMissingReturnsError(t *testing.T) {
	s := New()
	defer s.Close()
	if err := s.LoadFromFile(filepath.Join(os.TempDir(), "does-not-exist.toml")); err == nil {
		t.Fatal("expected an error loading a missing file")
	}
}

func TestImprintWeightSetsExactValue(t *testing.T) {
	s := New()
	defer s.Close()
	from := event.Opcode(1, 2)
	to := event.Opcode(1000, 2)
	s.ImprintWeight(from, to, 10.0)
	if w := s.Weight(from, to); w != 10.0 {
		t.Fatalf("got %v, want 10.0", w)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	s := New()
	defer s.Close()
	s.ImprintWeight(event.Opcode(1, 0), event.Opcode(2, 0), 1.0)
	s.Clear()
	if s.EdgeCount() != 0 {
		t.Fatal("Clear must remove all edges")
	}
}
