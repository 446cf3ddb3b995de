package domain

// Stats is a point-in-time copy of the persisted usage counters.
// KBHits is keyed by knowledge domain. For every served query exactly one of
// {KBHits[d], Fallbacks} is incremented together with TotalQueries.
type Stats struct {
	TotalQueries int64            `json:"total_queries"`
	Fallbacks    int64            `json:"fallbacks"`
	KBHits       map[string]int64 `json:"kb_hits"`
}

// Status is the admin-visible operational state.
type Status struct {
	Paused bool  `json:"paused"`
	Stats  Stats `json:"stats"`
}
