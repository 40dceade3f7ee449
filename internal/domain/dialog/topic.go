package dialog

import (
	"encoding/json"
	"math"
	"time"
)

// TopicStatus describes a topic's lifecycle label.
type TopicStatus string

const (
	// TopicStatusActive marks the topic currently under discussion.
	TopicStatusActive TopicStatus = "active"
	// TopicStatusPaused marks a topic set aside by a context switch.
	TopicStatusPaused TopicStatus = "paused"
	// TopicStatusCompleted marks a resolved topic.
	TopicStatusCompleted TopicStatus = "completed"
	// TopicStatusAbandoned marks a topic dropped without resolution.
	TopicStatusAbandoned TopicStatus = "abandoned"
)

// defaultDecayRate is applied to topics introduced without an explicit rate.
const defaultDecayRate = 0.1

// Relevance is a time-decaying score for a topic.
type Relevance struct {
	// Score is the relevance at LastUpdated, in [0, 1].
	Score float64 `json:"score"`
	// LastUpdated anchors the decay curve.
	LastUpdated time.Time `json:"last_updated"`
	// DecayRate controls how fast relevance fades, per hour.
	DecayRate float64 `json:"decay_rate"`
}

// ScoreAt returns the decayed relevance at the given instant, clamped to [0, 1].
func (r Relevance) ScoreAt(now time.Time) float64 {
	elapsed := now.Sub(r.LastUpdated).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	decayed := r.Score * math.Exp(-r.DecayRate*elapsed/3600)
	return math.Min(1, math.Max(0, decayed))
}

// Topic is a discussable subject within a dialog.
type Topic struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Status        TopicStatus     `json:"status"`
	Relevance     Relevance       `json:"relevance"`
	IntroducedAt  time.Time       `json:"introduced_at"`
	RelatedTopics []string        `json:"related_topics,omitempty"`
	Keywords      []string        `json:"keywords,omitempty"`
	Embedding     json.RawMessage `json:"embedding,omitempty"`
}
