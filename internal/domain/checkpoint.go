package domain

// Checkpoint is the persisted high-water mark for one (source, category)
// pair. LastUpdate is monotonically non-decreasing: a request window's end
// becomes the next window's start, so repeated runs never leave a time gap.
type Checkpoint struct {
	Source      string
	Category    Category
	LastUpdate  int64    // Unix timestamp in milliseconds; zero = never updated
	KnownAssets []string // assets seen so far (trade-like categories only)
}

// MergeAssets unions the given assets into KnownAssets, preserving order of
// first appearance.
func (c *Checkpoint) MergeAssets(assets []string) {
	seen := make(map[string]struct{}, len(c.KnownAssets))
	for _, a := range c.KnownAssets {
		seen[a] = struct{}{}
	}
	for _, a := range assets {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		c.KnownAssets = append(c.KnownAssets, a)
	}
}
