// Package ledger implements the checkpointed update protocol and the
// compile step that turns per-category entries into the canonical ledger.
package ledger

import "exchange-ledger/internal/domain"

// DefaultWindowDays is the provider's maximum queryable range per request.
const DefaultWindowDays = 90

// Window is one half-open request range [Start, End) in Unix milliseconds.
type Window struct {
	Start int64
	End   int64
}

// Windows splits [start, end) into contiguous spans of at most span
// milliseconds. Consecutive windows share their boundary: one window's end
// is the next window's start, so no instant is ever skipped and a record at
// the boundary is at worst fetched twice, which store-level dedup absorbs.
func Windows(start, end, span int64) []Window {
	if span <= 0 || start >= end {
		return nil
	}
	windows := make([]Window, 0, (end-start)/span+1)
	for cur := start; cur < end; cur += span {
		w := Window{Start: cur, End: cur + span}
		if w.End > end {
			w.End = end
		}
		windows = append(windows, w)
	}
	return windows
}

// WindowSpanMs converts a window length in days to milliseconds.
func WindowSpanMs(days int) int64 {
	return int64(days) * domain.MsPerDay
}
