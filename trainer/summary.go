package trainer

import (
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Summary renders a per-strategy attempt/success breakdown as an ASCII
// table, for interactive inspection of a synthesis session.
func (t *Trainer) Summary() string {
	type row struct {
		tag        string
		attempts   int
		successes  int
	}
	rows := make([]row, 0, len(t.stats))
	for tag, s := range t.stats {
		rows = append(rows, row{tag, s.Attempts, s.Successes})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].attempts > rows[j].attempts })

	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"strategy", "attempts", "successes"})
	for _, r := range rows {
		table.Append([]string{r.tag, strconv.Itoa(r.attempts), strconv.Itoa(r.successes)})
	}
	table.Render()
	return buf.String()
}
