// Package relay implements the poll-dedupe-fallback pipeline: fetch the
// latest post, fall back to the feed mirror on rate limiting, compare
// against the last delivered id, filter by keywords, and hand novel
// posts to the notifier.
package relay

// Tracker remembers the id of the most recently delivered post and
// decides novelty. State lives for the process lifetime only; a restart
// forgets the last delivery and the next fetch is treated as novel.
type Tracker struct {
	lastID string
	seen   bool
}

// NewTracker returns a tracker in its initial "nothing delivered" state.
func NewTracker() *Tracker {
	return &Tracker{}
}

// IsNovel reports whether id differs from the last delivered id. Before
// the first delivery every id is novel, whatever its value.
func (t *Tracker) IsNovel(id string) bool {
	return !t.seen || t.lastID != id
}

// MarkDelivered records id as the last delivered id, unconditionally.
func (t *Tracker) MarkDelivered(id string) {
	t.lastID = id
	t.seen = true
}

// LastID returns the last delivered id and whether one exists.
func (t *Tracker) LastID() (string, bool) {
	return t.lastID, t.seen
}
