package synthesis

import "time"

// Synthesized is the finished product for one task: the markdown body
// plus the provenance and quality signals computed alongside it. It is
// what the cache holds and what the durable store persists.
type Synthesized struct {
	TaskID       string    `json:"task_id"`
	Body         string    `json:"body"`
	SourcesUsed  []string  `json:"sources_used"`
	QualityScore float64   `json:"quality_score"`
	Gaps         []string  `json:"gaps"`
	BuiltAt      time.Time `json:"built_at"`
}
