package plasticity

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/naoina/toml"

	"github.com/thezeorymer/soulgain/event"
)

// record is the stable, pretty textual representation of one edge.
// Event variants serialise as a tagged object: Kind names the
// variant, and only the fields that variant uses are meaningful.
type record struct {
	FromKind event.Kind `toml:"from_kind"`
	FromOp   int64      `toml:"from_opcode,omitempty"`
	FromDep  int        `toml:"from_depth,omitempty"`
	FromInt  int        `toml:"from_intensity,omitempty"`
	FromErr  event.ErrorKind `toml:"from_error_kind,omitempty"`
	FromArg  int64      `toml:"from_error_arg,omitempty"`

	ToKind event.Kind `toml:"to_kind"`
	ToOp   int64      `toml:"to_opcode,omitempty"`
	ToDep  int        `toml:"to_depth,omitempty"`
	ToInt  int        `toml:"to_intensity,omitempty"`
	ToErr  event.ErrorKind `toml:"to_error_kind,omitempty"`
	ToArg  int64      `toml:"to_error_arg,omitempty"`

	Weight float64 `toml:"weight"`
}

type document struct {
	Edges []record `toml:"edges"`
}

func toRecord(k edgeKey, weight float64) record {
	return record{
		FromKind: k.from.Kind,
		FromOp:   k.from.Opcode,
		FromDep:  k.from.DepthBucket,
		FromInt:  k.from.Intensity,
		FromErr:  k.from.ErrKind,
		FromArg:  k.from.ErrArg,
		ToKind:   k.to.Kind,
		ToOp:     k.to.Opcode,
		ToDep:    k.to.DepthBucket,
		ToInt:    k.to.Intensity,
		ToErr:    k.to.ErrKind,
		ToArg:    k.to.ErrArg,
		Weight:   weight,
	}
}

func fromRecord(r record) (edgeKey, float64) {
	from := event.Event{Kind: r.FromKind, Opcode: r.FromOp, DepthBucket: r.FromDep, Intensity: r.FromInt, ErrKind: r.FromErr, ErrArg: r.FromArg}
	to := event.Event{Kind: r.ToKind, Opcode: r.ToOp, DepthBucket: r.ToDep, Intensity: r.ToInt, ErrKind: r.ToErr, ErrArg: r.ToArg}
	return edgeKey{from: from, to: to}, r.Weight
}

// SaveToFile dumps every (from, to, weight) triple as pretty TOML
// with stable key ordering, writing atomically via a temp file and
// rename.
func (s *Store) SaveToFile(path string) error {
	s.mu.RLock()
	doc := document{Edges: make([]record, 0, len(s.weights))}
	for k, w := range s.weights {
		doc.Edges = append(doc.Edges, toRecord(k, w))
	}
	s.mu.RUnlock()

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("plasticity: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".plasticity-*.tmp")
	if err != nil {
		return fmt.Errorf("plasticity: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("plasticity: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("plasticity: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("plasticity: rename temp file: %w", err)
	}
	s.log.Info("plasticity store saved", "path", path, "edges", len(doc.Edges))
	return nil
}

// LoadFromFile replaces the store's contents with the weights loaded
// from path.
func (s *Store) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("plasticity: read file: %w", err)
	}
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("plasticity: unmarshal: %w", err)
	}

	weights := make(map[edgeKey]float64, len(doc.Edges))
	outgoing := make(map[event.Event]map[event.Event]struct{})
	for _, r := range doc.Edges {
		k, w := fromRecord(r)
		weights[k] = w
		if outgoing[k.from] == nil {
			outgoing[k.from] = make(map[event.Event]struct{})
		}
		outgoing[k.from][k.to] = struct{}{}
	}

	s.mu.Lock()
	s.weights = weights
	s.outgoing = outgoing
	s.mu.Unlock()
	s.log.Info("plasticity store loaded", "path", path, "edges", len(doc.Edges))
	return nil
}
