package reporting

import (
	"fmt"
	"strings"

	"exchange-ledger/internal/analytics"
)

// RenderNAVCSV renders the NAV series as a CSV string.
func RenderNAVCSV(nav []analytics.Point) string {
	var sb strings.Builder
	sb.WriteString("date,nav\n")
	for _, p := range nav {
		sb.WriteString(fmt.Sprintf("%s,%.6f\n", formatDay(p.Day), p.Value))
	}
	return sb.String()
}

// RenderRollingCSV renders the rolling statistics as a CSV string. Points on
// days present in only one series are skipped; both series share the same
// full-window anchoring so in practice they align.
func RenderRollingCSV(vol, returns []analytics.Point) string {
	returnsByDay := make(map[int64]float64, len(returns))
	for _, p := range returns {
		returnsByDay[p.Day] = p.Value
	}

	var sb strings.Builder
	sb.WriteString("date,rolling_volatility,rolling_return\n")
	for _, p := range vol {
		ret, ok := returnsByDay[p.Day]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s,%.6f,%.6f\n", formatDay(p.Day), p.Value, ret))
	}
	return sb.String()
}
