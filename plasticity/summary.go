package plasticity

import (
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/thezeorymer/soulgain/event"
)

// Summary renders the topN strongest edges as an ASCII table, for
// interactive debugging of what the store has learned.
func (s *Store) Summary(topN int) string {
	s.mu.RLock()
	type row struct {
		from, to event.Event
		weight   float64
	}
	rows := make([]row, 0, len(s.weights))
	for k, w := range s.weights {
		rows = append(rows, row{k.from, k.to, w})
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].weight > rows[j].weight })
	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}

	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"from", "to", "weight"})
	for _, r := range rows {
		table.Append([]string{r.from.String(), r.to.String(), strconv.FormatFloat(r.weight, 'f', 4, 64)})
	}
	table.Render()
	return buf.String()
}
