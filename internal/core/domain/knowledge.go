package domain

// KnowledgeEntry is one question/answer record stored in a domain knowledge base.
// Entries are immutable after insert except full replace by id.
type KnowledgeEntry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
	Domain    string    `json:"domain"`
}

// QueryResult is a scored match returned by a single domain store.
type QueryResult struct {
	Entry  KnowledgeEntry `json:"entry"`
	Score  float64        `json:"score"`
	Domain string         `json:"domain"`
}

// EntryUpsert is a knowledge-base maintenance request: embed the text and
// add or replace the entry in the named domain store.
type EntryUpsert struct {
	Domain string `json:"domain"`
	ID     string `json:"id"`
	Text   string `json:"text"`
}
