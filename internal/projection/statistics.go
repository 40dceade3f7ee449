package projection

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/parley/internal/domain/dialog"
	"github.com/louisbranch/parley/internal/domain/event"
)

// Engagement score weights.
const (
	weightTurnFrequency       = 0.3
	weightParticipantActivity = 0.4
	weightTopicCompletion     = 0.3
)

// minKeywordLength is the shortest word recorded as a keyword.
const minKeywordLength = 4

// ParticipantSummary tracks one participant's contribution to a dialog.
type ParticipantSummary struct {
	ParticipantID string                 `json:"participant_id"`
	Name          string                 `json:"name"`
	Type          dialog.ParticipantType `json:"participant_type"`
	Role          dialog.ParticipantRole `json:"role"`
	TurnCount     int                    `json:"turn_count"`
	MessageCount  int                    `json:"message_count"`
	FirstTurnAt   time.Time              `json:"first_turn_at,omitzero"`
	LastTurnAt    time.Time              `json:"last_turn_at,omitzero"`
}

// Statistics is the denormalized per-dialog snapshot. Counters and the
// engagement score are maintained incrementally as events arrive; no
// field requires a pass over past events to recompute.
type Statistics struct {
	DialogID   string        `json:"dialog_id"`
	DialogType dialog.Type   `json:"dialog_type"`
	Status     dialog.Status `json:"status"`

	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at,omitzero"`
	LastActivityAt time.Time `json:"last_activity_at"`

	// PausedAt is set while the dialog is paused and zero otherwise.
	PausedAt      time.Time     `json:"paused_at,omitzero"`
	PauseDuration time.Duration `json:"pause_duration"`

	Participants map[string]*ParticipantSummary `json:"participants"`

	TurnCount       int `json:"turn_count"`
	MessageCount    int `json:"message_count"`
	TopicCount      int `json:"topic_count"`
	CompletedTopics int `json:"completed_topics"`

	AvgTurnLength   float64        `json:"avg_turn_length"`
	Keywords        map[string]int `json:"keywords"`
	EngagementScore float64        `json:"engagement_score"`

	TotalContentLength int    `json:"total_content_length"`
	LastEventSeq       uint64 `json:"last_event_seq"`
}

// NewStatistics returns an empty view for one dialog.
func NewStatistics(dialogID string) *Statistics {
	return &Statistics{
		DialogID:     dialogID,
		Participants: make(map[string]*ParticipantSummary),
		Keywords:     make(map[string]int),
	}
}

// StatisticsHandledTypes lists the event types the view folds.
func StatisticsHandledTypes() []event.Type {
	return []event.Type{
		event.TypeDialogStarted,
		event.TypeDialogEnded,
		event.TypeDialogPaused,
		event.TypeDialogResumed,
		event.TypeDialogAbandoned,
		event.TypeTurnAdded,
		event.TypeParticipantAdded,
		event.TypeParticipantRemoved,
		event.TypeContextSwitched,
		event.TypeTopicCompleted,
	}
}

// StatisticsIgnoredTypes lists event types the view deliberately skips.
func StatisticsIgnoredTypes() []event.Type {
	return []event.Type{
		event.TypeDialogMetadataSet,
		event.TypeContextUpdated,
		event.TypeContextVariableAdded,
	}
}

// Apply folds one event into the view. Events for other dialogs and
// duplicate deliveries are skipped.
func (s *Statistics) Apply(evt event.Event) error {
	if evt.DialogID != s.DialogID {
		return nil
	}
	if evt.Seq != 0 && evt.Seq <= s.LastEventSeq {
		return nil
	}

	switch evt.Type {
	case event.TypeDialogStarted:
		var p dialog.StartedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return fmt.Errorf("statistics %s: %w", evt.Type, err)
		}
		s.DialogType = p.DialogType
		s.Status = dialog.StatusActive
		s.StartedAt = p.StartedAt
		s.addParticipant(p.PrimaryParticipant)

	case event.TypeDialogEnded:
		var p dialog.EndedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return fmt.Errorf("statistics %s: %w", evt.Type, err)
		}
		s.closePause(evt.Timestamp)
		s.Status = dialog.StatusEnded
		s.EndedAt = p.EndedAt
		s.EngagementScore = s.engagement(evt.Timestamp)

	case event.TypeDialogAbandoned:
		s.closePause(evt.Timestamp)
		s.Status = dialog.StatusAbandoned
		s.EndedAt = evt.Timestamp
		s.EngagementScore = s.engagement(evt.Timestamp)

	case event.TypeDialogPaused:
		s.Status = dialog.StatusPaused
		s.PausedAt = evt.Timestamp

	case event.TypeDialogResumed:
		s.closePause(evt.Timestamp)
		s.Status = dialog.StatusActive

	case event.TypeTurnAdded:
		var p dialog.TurnAddedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return fmt.Errorf("statistics %s: %w", evt.Type, err)
		}
		s.TurnCount++
		s.MessageCount += len(p.Turn.Messages)
		for _, msg := range p.Turn.Messages {
			text := msg.Content.SearchText()
			s.TotalContentLength += len(text)
			s.addKeywords(msg.Content)
		}
		s.AvgTurnLength = float64(s.TotalContentLength) / float64(s.TurnCount)
		s.recordTurn(p.Turn)
		s.EngagementScore = s.engagement(evt.Timestamp)

	case event.TypeParticipantAdded:
		var p dialog.ParticipantAddedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return fmt.Errorf("statistics %s: %w", evt.Type, err)
		}
		s.addParticipant(p.Participant)

	case event.TypeParticipantRemoved:
		// Summaries are retained so past contributions stay attributed.

	case event.TypeContextSwitched:
		s.TopicCount++
		s.EngagementScore = s.engagement(evt.Timestamp)

	case event.TypeTopicCompleted:
		s.CompletedTopics++
		s.EngagementScore = s.engagement(evt.Timestamp)

	default:
		return nil
	}

	s.LastActivityAt = evt.Timestamp
	if evt.Seq != 0 {
		s.LastEventSeq = evt.Seq
	}
	return nil
}

// ActiveDuration is the wall span of the dialog up to now, minus time
// spent paused.
func (s *Statistics) ActiveDuration(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	end := now
	if !s.EndedAt.IsZero() {
		end = s.EndedAt
	}
	d := end.Sub(s.StartedAt) - s.PauseDuration
	if !s.PausedAt.IsZero() && end.After(s.PausedAt) {
		d -= end.Sub(s.PausedAt)
	}
	if d < 0 {
		return 0
	}
	return d
}

// engagement is the weighted blend of turn frequency, mean participant
// share of turns, and topic completion ratio, clamped to [0, 1].
func (s *Statistics) engagement(now time.Time) float64 {
	var turnFrequency float64
	if secs := s.ActiveDuration(now).Seconds(); secs > 0 {
		turnFrequency = float64(s.TurnCount) / secs
	}

	var participantActivity float64
	if len(s.Participants) > 0 {
		totalTurns := s.TurnCount
		if totalTurns < 1 {
			totalTurns = 1
		}
		var sum float64
		for _, p := range s.Participants {
			sum += float64(p.TurnCount) / float64(totalTurns)
		}
		participantActivity = sum / float64(len(s.Participants))
	}

	var topicCompletion float64
	if s.TopicCount > 0 {
		topicCompletion = float64(s.CompletedTopics) / float64(s.TopicCount)
	}

	score := weightTurnFrequency*turnFrequency +
		weightParticipantActivity*participantActivity +
		weightTopicCompletion*topicCompletion
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

// closePause folds an open pause interval into the accumulated total.
func (s *Statistics) closePause(now time.Time) {
	if s.PausedAt.IsZero() {
		return
	}
	if now.After(s.PausedAt) {
		s.PauseDuration += now.Sub(s.PausedAt)
	}
	s.PausedAt = time.Time{}
}

func (s *Statistics) addParticipant(p dialog.Participant) {
	if _, ok := s.Participants[p.ID]; ok {
		return
	}
	s.Participants[p.ID] = &ParticipantSummary{
		ParticipantID: p.ID,
		Name:          p.Name,
		Type:          p.Type,
		Role:          p.Role,
	}
}

func (s *Statistics) recordTurn(t dialog.Turn) {
	summary, ok := s.Participants[t.ParticipantID]
	if !ok {
		summary = &ParticipantSummary{ParticipantID: t.ParticipantID}
		s.Participants[t.ParticipantID] = summary
	}
	summary.TurnCount++
	summary.MessageCount += len(t.Messages)
	if summary.FirstTurnAt.IsZero() {
		summary.FirstTurnAt = t.Timestamp
	}
	summary.LastTurnAt = t.Timestamp
}

// addKeywords records lowercased words longer than three characters from
// plain text content. Code and structured content carry no prose worth
// indexing.
func (s *Statistics) addKeywords(content dialog.MessageContent) {
	if content.Kind != dialog.ContentText && content.Kind != "" {
		return
	}
	for _, word := range strings.Fields(content.Text) {
		word = strings.ToLower(word)
		if len(word) < minKeywordLength {
			continue
		}
		s.Keywords[word]++
	}
}

// ParticipantCount reports how many participants have ever joined.
func (s *Statistics) ParticipantCount() int {
	return len(s.Participants)
}
