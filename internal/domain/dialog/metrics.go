package dialog

// Metrics aggregates conversation-level counters maintained by the fold.
// SentimentTrend and CoherenceScore are upstream NLP artifacts carried as
// opaque values and never computed here.
type Metrics struct {
	TurnCount          int     `json:"turn_count"`
	AvgResponseTimeMs  float64 `json:"avg_response_time_ms"`
	TopicSwitches      int     `json:"topic_switches"`
	ClarificationCount int     `json:"clarification_count"`
	SentimentTrend     float64 `json:"sentiment_trend"`
	CoherenceScore     float64 `json:"coherence_score"`
}
