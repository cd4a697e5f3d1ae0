package domain

// MsPerDay is the length of one position-matrix day in milliseconds.
const MsPerDay = int64(24 * 60 * 60 * 1000)

// DayFloor truncates a millisecond timestamp to UTC midnight.
func DayFloor(ts int64) int64 {
	if ts < 0 {
		return ts - (MsPerDay+ts%MsPerDay)%MsPerDay
	}
	return ts - ts%MsPerDay
}

// PositionRow holds the cumulative quantity of every tracked asset at the end
// of one day.
type PositionRow struct {
	Day      int64 // UTC midnight, milliseconds
	Holdings map[string]float64
}

// PositionMatrix is the date × asset cumulative-holdings table derived by
// replaying the ledger. Rows are daily and contiguous; a day with no activity
// repeats the prior day's values.
type PositionMatrix struct {
	Assets []string // sorted
	Rows   []PositionRow
}

// FirstDay returns the matrix's first day, or 0 for an empty matrix.
func (m *PositionMatrix) FirstDay() int64 {
	if len(m.Rows) == 0 {
		return 0
	}
	return m.Rows[0].Day
}

// LastDay returns the matrix's last day, or 0 for an empty matrix.
func (m *PositionMatrix) LastDay() int64 {
	if len(m.Rows) == 0 {
		return 0
	}
	return m.Rows[len(m.Rows)-1].Day
}

// At returns the holdings row for the given day (UTC midnight ms).
// Returns nil when the day is outside the matrix range.
func (m *PositionMatrix) At(day int64) *PositionRow {
	if len(m.Rows) == 0 {
		return nil
	}
	idx := (day - m.Rows[0].Day) / MsPerDay
	if idx < 0 || idx >= int64(len(m.Rows)) {
		return nil
	}
	return &m.Rows[idx]
}
