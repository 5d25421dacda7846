// Package plasticity maintains a weighted transition graph over the
// VM's event vocabulary. A background worker consumes observed
// events from a channel and applies a time-windowed STDP-like update
// rule; the VM thread never blocks on it.
package plasticity

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thezeorymer/soulgain/event"
	"github.com/thezeorymer/soulgain/internal/xlog"
)

// Tunable constants for the STDP update rule, fixed by the learned
// transition graph's design.
const (
	APlus             = 0.10
	AMinus            = 0.12
	Tau               = 0.020 // seconds
	RewardBoost       = 0.5
	NormalizationCap  = 5.0
	WindowS           = 0.10 // seconds
	LongDecay         = 0.999
)

// channelCapacity bounds the observe channel; the background worker
// is expected to drain it far faster than the VM can produce events,
// so this only needs to absorb bursts.
const channelCapacity = 4096

type timedEvent struct {
	e event.Event
	t time.Time
}

type batchMsg struct {
	events []event.Event
}

type singleMsg struct {
	e event.Event
	t time.Time
}

// edgeKey identifies a directed transition in the weight graph.
type edgeKey struct {
	from event.Event
	to   event.Event
}

// Store is the weighted transition graph plus its background worker.
// The zero Store is not usable; construct with New.
type Store struct {
	mu      sync.RWMutex
	weights map[edgeKey]float64
	outgoing map[event.Event]map[event.Event]struct{}

	window []timedEvent

	singles chan singleMsg
	batches chan batchMsg
	group   *errgroup.Group
	cancel  context.CancelFunc
	log     *xlog.Logger
}

// New constructs a Store and starts its background worker.
func New() *Store {
	s := &Store{
		weights:  make(map[edgeKey]float64),
		outgoing: make(map[event.Event]map[event.Event]struct{}),
		singles:  make(chan singleMsg, channelCapacity),
		batches:  make(chan batchMsg, channelCapacity),
		log:      xlog.Default,
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	s.group = g
	g.Go(func() error {
		s.runWorker(gctx)
		return nil
	})
	return s
}

// Close stops the background worker. The channels stay open, so
// events observed after Close are never applied, and once a channel's
// buffer is full further Observe/ObserveBatch calls block.
func (s *Store) Close() {
	s.cancel()
	s.group.Wait()
}

// Observe enqueues a single event, timestamped on the producer side
// to preserve true wall-clock ordering relative to other single
// events. Never blocks beyond channel backpressure.
func (s *Store) Observe(e event.Event) {
	s.singles <- singleMsg{e: e, t: time.Now()}
}

// ObserveBatch enqueues an ordered batch of events. The worker
// assigns synthetic timestamps spread evenly across WindowS so the
// batch's internal ordering is preserved without claiming false
// precision about wall-clock spacing.
func (s *Store) ObserveBatch(events []event.Event) {
	if len(events) == 0 {
		return
	}
	cp := make([]event.Event, len(events))
	copy(cp, events)
	s.batches <- batchMsg{events: cp}
}

func (s *Store) runWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-s.singles:
			s.applyEvent(m.e, m.t)
		case b := <-s.batches:
			now := time.Now()
			n := len(b.events)
			step := WindowS / math.Max(1, float64(n-1))
			for i, e := range b.events {
				t := now.Add(-time.Duration((float64(n-1-i) * step) * float64(time.Second)))
				s.applyEvent(e, t)
			}
		}
	}
}

// applyEvent runs the STDP update for one incoming event against the
// sliding window, then normalises any edges touched this step, then
// records the event in the window and evicts stale entries.
func (s *Store) applyEvent(curr event.Event, tCurr time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := make(map[event.Event]struct{})

	for _, past := range s.window {
		dt := tCurr.Sub(past.t).Seconds()
		if dt <= 0 || dt >= WindowS {
			continue
		}
		switch {
		case curr.IsReward():
			intensity := float64(curr.Intensity) / 100.0
			s.addWeight(past.e, curr, RewardBoost*intensity*math.Exp(-dt/Tau))
			marked[past.e] = struct{}{}
		case curr.IsError():
			s.addWeight(past.e, curr, -RewardBoost*math.Exp(-dt/Tau))
			marked[past.e] = struct{}{}
		default:
			decay := math.Exp(-dt / Tau)
			s.addWeight(past.e, curr, APlus*decay)
			s.addWeight(curr, past.e, -AMinus*decay)
			marked[past.e] = struct{}{}
			marked[curr] = struct{}{}
		}
	}

	for from := range marked {
		s.normalize(from)
	}

	s.window = append(s.window, timedEvent{e: curr, t: tCurr})
	s.evictStale(tCurr)
}

func (s *Store) addWeight(from, to event.Event, delta float64) {
	key := edgeKey{from, to}
	s.weights[key] += delta
	if s.outgoing[from] == nil {
		s.outgoing[from] = make(map[event.Event]struct{})
	}
	s.outgoing[from][to] = struct{}{}
}

func (s *Store) normalize(from event.Event) {
	targets := s.outgoing[from]
	if len(targets) == 0 {
		return
	}
	sum := 0.0
	for to := range targets {
		if w := s.weights[edgeKey{from, to}]; w > 0 {
			sum += w
		}
	}
	if sum <= NormalizationCap {
		return
	}
	scale := NormalizationCap / sum
	for to := range targets {
		key := edgeKey{from, to}
		s.weights[key] *= scale
	}
}

func (s *Store) evictStale(now time.Time) {
	kept := s.window[:0]
	for _, te := range s.window {
		if now.Sub(te.t).Seconds() < WindowS {
			kept = append(kept, te)
		}
	}
	s.window = kept
}

// DecayLongTerm multiplies every stored weight by LongDecay. Intended
// to be called at controlled points (e.g. between trainer attempts),
// not per cycle.
func (s *Store) DecayLongTerm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.weights {
		s.weights[k] *= LongDecay
	}
}

// BestNextEvent returns the target with the maximum weight for the
// given source event. Ties are broken by the smallest event hash for
// a stable, deterministic result.
func (s *Store) BestNextEvent(from event.Event) (event.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	targets := s.outgoing[from]
	if len(targets) == 0 {
		return event.Event{}, false
	}

	var best event.Event
	bestWeight := math.Inf(-1)
	bestHash := uint64(0)
	found := false
	for to := range targets {
		w := s.weights[edgeKey{from, to}]
		h := to.Hash()
		switch {
		case !found, w > bestWeight, w == bestWeight && h < bestHash:
			best, bestWeight, bestHash, found = to, w, h, true
		}
	}
	return best, found
}

// Weight returns the current weight of the from->to edge (0 if absent).
func (s *Store) Weight(from, to event.Event) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weights[edgeKey{from, to}]
}

// EdgeCount reports the number of distinct directed edges stored,
// used for capacity reporting.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.weights)
}

// Clear removes every stored weight and the sliding window.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights = make(map[edgeKey]float64)
	s.outgoing = make(map[event.Event]map[event.Event]struct{})
	s.window = nil
}

// ImprintWeight directly sets the from->to edge weight, bypassing the
// STDP update path. Used by the trainer to imprint a learned
// skill-invocation shortcut after a successful synthesis.
func (s *Store) ImprintWeight(from, to event.Event, weight float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addWeight(from, to, weight-s.weights[edgeKey{from, to}])
}
