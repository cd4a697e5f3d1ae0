// Package holdings reconstructs daily cumulative positions from the ledger.
package holdings

import (
	"fmt"
	"sort"

	"exchange-ledger/internal/domain"
)

// negTolerance absorbs float accumulation noise when flagging negative
// balances.
const negTolerance = 1e-9

// Warning flags an asset whose reconstructed balance went negative: either
// the provider history has a gap or an entry was mis-signed.
type Warning struct {
	Asset    string
	Day      int64 // UTC midnight, milliseconds
	Quantity float64
}

func (w Warning) String() string {
	return fmt.Sprintf("negative balance: %s = %v on day %d", w.Asset, w.Quantity, w.Day)
}

// Build replays the ledger into a daily position matrix covering every day
// from the first movement through today (UTC midnights, milliseconds). Days
// without activity carry the prior day's values forward. Negative balances
// are surfaced as warnings, never clamped: the matrix reports what the
// ledger implies.
func Build(movements []*domain.Movement, today int64) (*domain.PositionMatrix, []Warning) {
	if len(movements) == 0 {
		return &domain.PositionMatrix{}, nil
	}

	deltas, assets, firstDay := dailyDeltas(movements)
	lastDay := domain.DayFloor(today)
	if lastDay < firstDay {
		lastDay = firstDay
	}

	matrix := &domain.PositionMatrix{Assets: assets}
	running := make(map[string]float64, len(assets))
	var warnings []Warning

	for day := firstDay; day <= lastDay; day += domain.MsPerDay {
		applyDay(running, deltas[day])
		row := domain.PositionRow{Day: day, Holdings: copyHoldings(running)}
		matrix.Rows = append(matrix.Rows, row)
		warnings = appendNegatives(warnings, row, deltas[day])
	}
	return matrix, warnings
}

// Extend grows a previously built matrix with newly arrived movements,
// reusing the prior rows instead of replaying history. A movement dated on
// or before the prior last day restates its own row and every later one
// (a retried window delivers old-timestamped entries well behind the
// boundary), so extension always equals a full rebuild; rows before the
// earliest new movement are copied through untouched.
func Extend(prev *domain.PositionMatrix, movements []*domain.Movement, today int64) (*domain.PositionMatrix, []Warning) {
	if prev == nil || len(prev.Rows) == 0 {
		return Build(movements, today)
	}

	deltas, newAssets, firstNewDay := dailyDeltas(movements)
	prevLast := prev.LastDay()
	lastDay := domain.DayFloor(today)
	if lastDay < prevLast {
		lastDay = prevLast
	}
	firstDay := prev.Rows[0].Day
	if len(deltas) > 0 && firstNewDay < firstDay {
		firstDay = firstNewDay
	}

	matrix := &domain.PositionMatrix{
		Assets: mergeAssets(prev.Assets, newAssets),
		Rows:   make([]domain.PositionRow, 0, int((lastDay-firstDay)/domain.MsPerDay)+1),
	}
	prevByDay := make(map[int64]map[string]float64, len(prev.Rows))
	for _, row := range prev.Rows {
		prevByDay[row.Day] = row.Holdings
	}

	var warnings []Warning
	shift := make(map[string]float64)   // cumulative deltas from the new movements
	base := make(map[string]float64)    // prior-row baseline, carried forward
	running := make(map[string]float64) // holdings of the last emitted row

	for day := firstDay; day <= lastDay; day += domain.MsPerDay {
		var touched map[string]float64
		if day <= prevLast {
			if prevRow, ok := prevByDay[day]; ok {
				base = prevRow
			}
			applyDay(shift, deltas[day])
			running = copyHoldings(base)
			applyDay(running, shift)
			if len(deltas) > 0 && day >= firstNewDay {
				touched = shift
			}
		} else {
			running = copyHoldings(running)
			applyDay(running, deltas[day])
			touched = deltas[day]
		}
		row := domain.PositionRow{Day: day, Holdings: running}
		matrix.Rows = append(matrix.Rows, row)
		warnings = appendNegatives(warnings, row, touched)
	}
	return matrix, warnings
}

// dailyDeltas groups movements into per-day per-asset quantity changes.
func dailyDeltas(movements []*domain.Movement) (deltas map[int64]map[string]float64, assets []string, firstDay int64) {
	deltas = make(map[int64]map[string]float64)
	seen := make(map[string]struct{})

	for i, m := range movements {
		day := domain.DayFloor(m.Timestamp)
		if i == 0 || day < firstDay {
			firstDay = day
		}
		dayDeltas, ok := deltas[day]
		if !ok {
			dayDeltas = make(map[string]float64)
			deltas[day] = dayDeltas
		}
		dayDeltas[m.Asset] += m.Amount
		seen[m.Asset] = struct{}{}
	}

	assets = make([]string, 0, len(seen))
	for a := range seen {
		assets = append(assets, a)
	}
	sort.Strings(assets)
	return deltas, assets, firstDay
}

func applyDay(running map[string]float64, dayDeltas map[string]float64) {
	for asset, delta := range dayDeltas {
		running[asset] += delta
	}
}

// appendNegatives flags assets touched on this day whose balance is negative.
func appendNegatives(warnings []Warning, row domain.PositionRow, touched map[string]float64) []Warning {
	assets := make([]string, 0, len(touched))
	for asset := range touched {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		if qty := row.Holdings[asset]; qty < -negTolerance {
			warnings = append(warnings, Warning{Asset: asset, Day: row.Day, Quantity: qty})
		}
	}
	return warnings
}

func copyHoldings(src map[string]float64) map[string]float64 {
	dst := make(map[string]float64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func mergeAssets(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, asset := range list {
			if _, ok := seen[asset]; ok {
				continue
			}
			seen[asset] = struct{}{}
			merged = append(merged, asset)
		}
	}
	sort.Strings(merged)
	return merged
}
