package domain

type DecisionKind string

const (
	DecisionAnswered      DecisionKind = "answered"
	DecisionNeedsFallback DecisionKind = "needs_fallback"
)

// Decision is the retrieval router's verdict for one query.
//
// Answered carries the single best candidate at or above the similarity
// threshold. NeedsFallback carries the near-miss candidates worth passing to
// the generator as grounding context, ordered by descending score.
type Decision struct {
	Kind      DecisionKind
	Best      *QueryResult
	BestScore *float64
	Context   []QueryResult

	// EmbedFailed marks a decision degraded by an embedding failure:
	// no store was searched and the context is empty.
	EmbedFailed bool
}

type AnswerSource string

const (
	SourceKnowledgeBase AnswerSource = "knowledge_base"
	SourceGenerated     AnswerSource = "generated"
	SourcePaused        AnswerSource = "paused"
)

// Answer is the user-facing outcome of one query cycle.
type Answer struct {
	Text   string       `json:"text"`
	Source AnswerSource `json:"source"`
	Domain string       `json:"domain,omitempty"`
	Score  float64      `json:"score,omitempty"`
}
