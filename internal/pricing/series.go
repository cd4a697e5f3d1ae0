package pricing

import "sort"

// Sample is one (timestamp, price) observation.
type Sample struct {
	Timestamp int64 // Unix milliseconds
	Price     float64
}

// Series is a time-ordered price series for one asset. Lookups between
// samples interpolate linearly; lookups outside the sampled range clamp to
// the nearest endpoint.
type Series struct {
	samples []Sample
}

// NewSeries builds a series from samples, sorting them by timestamp.
func NewSeries(samples []Sample) *Series {
	sorted := append([]Sample(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	return &Series{samples: sorted}
}

// Len returns the number of samples.
func (s *Series) Len() int {
	return len(s.samples)
}

// At returns the interpolated price at ts. Returns false when the series is
// empty.
func (s *Series) At(ts int64) (float64, bool) {
	n := len(s.samples)
	if n == 0 {
		return 0, false
	}
	if ts <= s.samples[0].Timestamp {
		return s.samples[0].Price, true
	}
	if ts >= s.samples[n-1].Timestamp {
		return s.samples[n-1].Price, true
	}

	// First sample at or after ts; the bracket is [idx-1, idx].
	idx := sort.Search(n, func(i int) bool {
		return s.samples[i].Timestamp >= ts
	})
	hi := s.samples[idx]
	if hi.Timestamp == ts {
		return hi.Price, true
	}
	lo := s.samples[idx-1]

	frac := float64(ts-lo.Timestamp) / float64(hi.Timestamp-lo.Timestamp)
	return lo.Price + frac*(hi.Price-lo.Price), true
}
