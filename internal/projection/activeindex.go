package projection

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/louisbranch/parley/internal/domain/dialog"
	"github.com/louisbranch/parley/internal/domain/event"
)

// ActivityLevel buckets dialogs by how busy they are.
type ActivityLevel string

const (
	ActivityHigh   ActivityLevel = "high"
	ActivityMedium ActivityLevel = "medium"
	ActivityLow    ActivityLevel = "low"
	ActivityIdle   ActivityLevel = "idle"
)

const (
	activityWindow  = 5 * time.Minute
	idleThreshold   = 5 * time.Minute
	turnRingMaxAge  = 10 * time.Minute
	highTurnCount   = 10
	mediumTurnCount = 3
)

// Summary is the operational view of one non-terminal dialog.
type Summary struct {
	DialogID         string        `json:"dialog_id"`
	Type             dialog.Type   `json:"dialog_type"`
	Status           dialog.Status `json:"status"`
	ParticipantIDs   []string      `json:"participant_ids"`
	ParticipantCount int           `json:"participant_count"`
	TurnCount        int           `json:"turn_count"`
	CurrentTopicID   string        `json:"current_topic_id,omitempty"`
	LastActivity     time.Time     `json:"last_activity"`
	ActivityLevel    ActivityLevel `json:"activity_level"`
}

// ActiveIndex tracks every dialog that has started and not yet reached a
// terminal status, with secondary indices by participant, type, and
// activity level. All four structures mutate together through set and
// remove, so they can never disagree about membership.
type ActiveIndex struct {
	Summaries     map[string]Summary                    `json:"summaries"`
	ByParticipant map[string]map[string]struct{}        `json:"by_participant"`
	ByType        map[dialog.Type]map[string]struct{}   `json:"by_type"`
	ByActivity    map[ActivityLevel]map[string]struct{} `json:"by_activity"`
	TurnTimes     map[string][]time.Time                `json:"turn_times"`
	LastSeq       map[string]uint64                     `json:"last_seq"`
}

// NewActiveIndex returns an empty index.
func NewActiveIndex() *ActiveIndex {
	return &ActiveIndex{
		Summaries:     make(map[string]Summary),
		ByParticipant: make(map[string]map[string]struct{}),
		ByType:        make(map[dialog.Type]map[string]struct{}),
		ByActivity:    make(map[ActivityLevel]map[string]struct{}),
		TurnTimes:     make(map[string][]time.Time),
		LastSeq:       make(map[string]uint64),
	}
}

// ActiveIndexHandledTypes lists the event types the index folds.
func ActiveIndexHandledTypes() []event.Type {
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

// ActiveIndexIgnoredTypes lists event types the index deliberately skips.
func ActiveIndexIgnoredTypes() []event.Type {
	return []event.Type{
		event.TypeDialogMetadataSet,
		event.TypeContextUpdated,
		event.TypeContextVariableAdded,
	}
}

// Apply folds one event into the index. Events for unknown dialogs (other
// than dialog.started) and event types the index does not track are
// ignored. Duplicate deliveries, detected by sequence number, are skipped.
func (x *ActiveIndex) Apply(evt event.Event) error {
	if evt.Seq != 0 && evt.Seq <= x.LastSeq[evt.DialogID] {
		return nil
	}

	switch evt.Type {
	case event.TypeDialogStarted:
		var p dialog.StartedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return fmt.Errorf("active index %s: %w", evt.Type, err)
		}
		x.set(Summary{
			DialogID:         evt.DialogID,
			Type:             p.DialogType,
			Status:           dialog.StatusActive,
			ParticipantIDs:   []string{p.PrimaryParticipant.ID},
			ParticipantCount: 1,
			LastActivity:     evt.Timestamp,
			ActivityLevel:    ActivityLow,
		})

	case event.TypeDialogEnded, event.TypeDialogAbandoned:
		x.remove(evt.DialogID)
		delete(x.LastSeq, evt.DialogID)
		return nil

	case event.TypeDialogPaused:
		s, ok := x.Summaries[evt.DialogID]
		if !ok {
			return nil
		}
		s.Status = dialog.StatusPaused
		s.LastActivity = evt.Timestamp
		x.set(s)

	case event.TypeDialogResumed:
		s, ok := x.Summaries[evt.DialogID]
		if !ok {
			return nil
		}
		s.Status = dialog.StatusActive
		s.LastActivity = evt.Timestamp
		s.ActivityLevel = x.classify(evt.DialogID, evt.Timestamp)
		x.set(s)

	case event.TypeTurnAdded:
		s, ok := x.Summaries[evt.DialogID]
		if !ok {
			return nil
		}
		var p dialog.TurnAddedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return fmt.Errorf("active index %s: %w", evt.Type, err)
		}
		x.recordTurn(evt.DialogID, evt.Timestamp)
		s.TurnCount++
		s.LastActivity = evt.Timestamp
		s.ActivityLevel = x.classify(evt.DialogID, evt.Timestamp)
		x.set(s)

	case event.TypeParticipantAdded:
		s, ok := x.Summaries[evt.DialogID]
		if !ok {
			return nil
		}
		var p dialog.ParticipantAddedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return fmt.Errorf("active index %s: %w", evt.Type, err)
		}
		s.ParticipantIDs = appendIfMissing(s.ParticipantIDs, p.Participant.ID)
		s.ParticipantCount = len(s.ParticipantIDs)
		s.LastActivity = evt.Timestamp
		x.set(s)

	case event.TypeParticipantRemoved:
		s, ok := x.Summaries[evt.DialogID]
		if !ok {
			return nil
		}
		var p dialog.ParticipantRemovedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return fmt.Errorf("active index %s: %w", evt.Type, err)
		}
		s.ParticipantIDs = removeString(s.ParticipantIDs, p.ParticipantID)
		s.ParticipantCount = len(s.ParticipantIDs)
		s.LastActivity = evt.Timestamp
		x.set(s)

	case event.TypeContextSwitched:
		s, ok := x.Summaries[evt.DialogID]
		if !ok {
			return nil
		}
		var p dialog.ContextSwitchedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return fmt.Errorf("active index %s: %w", evt.Type, err)
		}
		s.CurrentTopicID = p.Topic.ID
		s.LastActivity = evt.Timestamp
		x.set(s)

	case event.TypeTopicCompleted:
		s, ok := x.Summaries[evt.DialogID]
		if !ok {
			return nil
		}
		var p dialog.TopicCompletedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &p); err != nil {
			return fmt.Errorf("active index %s: %w", evt.Type, err)
		}
		if s.CurrentTopicID == p.TopicID {
			s.CurrentTopicID = ""
		}
		s.LastActivity = evt.Timestamp
		x.set(s)

	default:
		return nil
	}

	if evt.Seq != 0 {
		x.LastSeq[evt.DialogID] = evt.Seq
	}
	return nil
}

// ByActivityLevel returns the dialog ids in one activity bucket, sorted.
func (x *ActiveIndex) ByActivityLevel(level ActivityLevel) []string {
	return sortedKeys(x.ByActivity[level])
}

// ByParticipantID returns the ids of non-terminal dialogs a participant
// belongs to, sorted.
func (x *ActiveIndex) ByParticipantID(participantID string) []string {
	return sortedKeys(x.ByParticipant[participantID])
}

// ByDialogType returns the ids of non-terminal dialogs of one type, sorted.
func (x *ActiveIndex) ByDialogType(t dialog.Type) []string {
	return sortedKeys(x.ByType[t])
}

// ParticipantLoad counts a participant's active dialogs.
type ParticipantLoad struct {
	ParticipantID string `json:"participant_id"`
	DialogCount   int    `json:"dialog_count"`
}

// ActivityStatistics summarizes the index for dashboards.
type ActivityStatistics struct {
	TotalActive         int                   `json:"total_active"`
	TotalPaused         int                   `json:"total_paused"`
	ByType              map[dialog.Type]int   `json:"by_type"`
	ByActivity          map[ActivityLevel]int `json:"by_activity_level"`
	BusiestParticipants []ParticipantLoad     `json:"busiest_participants"`
}

const busiestParticipantsLimit = 10

// Statistics reports counts across the tracked dialogs. Type counts and
// participant loads only consider active dialogs.
func (x *ActiveIndex) Statistics() ActivityStatistics {
	stats := ActivityStatistics{
		ByType:     make(map[dialog.Type]int),
		ByActivity: make(map[ActivityLevel]int),
	}
	for _, s := range x.Summaries {
		switch s.Status {
		case dialog.StatusActive:
			stats.TotalActive++
			stats.ByType[s.Type]++
			stats.ByActivity[s.ActivityLevel]++
		case dialog.StatusPaused:
			stats.TotalPaused++
		}
	}

	for pid, dialogIDs := range x.ByParticipant {
		count := 0
		for dialogID := range dialogIDs {
			if x.Summaries[dialogID].Status == dialog.StatusActive {
				count++
			}
		}
		if count > 0 {
			stats.BusiestParticipants = append(stats.BusiestParticipants, ParticipantLoad{
				ParticipantID: pid,
				DialogCount:   count,
			})
		}
	}
	sort.Slice(stats.BusiestParticipants, func(i, j int) bool {
		a, b := stats.BusiestParticipants[i], stats.BusiestParticipants[j]
		if a.DialogCount != b.DialogCount {
			return a.DialogCount > b.DialogCount
		}
		return a.ParticipantID < b.ParticipantID
	})
	if len(stats.BusiestParticipants) > busiestParticipantsLimit {
		stats.BusiestParticipants = stats.BusiestParticipants[:busiestParticipantsLimit]
	}
	return stats
}

// set is the sole write path into the four index structures. It removes
// any stale memberships for the dialog and reinserts it under its current
// summary. Paused dialogs stay in the participant and type indices but
// leave the activity buckets.
func (x *ActiveIndex) set(s Summary) {
	x.clearMemberships(s.DialogID)
	x.Summaries[s.DialogID] = s
	for _, pid := range s.ParticipantIDs {
		if x.ByParticipant[pid] == nil {
			x.ByParticipant[pid] = make(map[string]struct{})
		}
		x.ByParticipant[pid][s.DialogID] = struct{}{}
	}
	if x.ByType[s.Type] == nil {
		x.ByType[s.Type] = make(map[string]struct{})
	}
	x.ByType[s.Type][s.DialogID] = struct{}{}
	if s.Status == dialog.StatusActive {
		if x.ByActivity[s.ActivityLevel] == nil {
			x.ByActivity[s.ActivityLevel] = make(map[string]struct{})
		}
		x.ByActivity[s.ActivityLevel][s.DialogID] = struct{}{}
	}
}

// remove drops a dialog from the summaries and every secondary index.
func (x *ActiveIndex) remove(dialogID string) {
	x.clearMemberships(dialogID)
	delete(x.Summaries, dialogID)
	delete(x.TurnTimes, dialogID)
}

func (x *ActiveIndex) clearMemberships(dialogID string) {
	s, ok := x.Summaries[dialogID]
	if !ok {
		return
	}
	for _, pid := range s.ParticipantIDs {
		deleteMember(x.ByParticipant, pid, dialogID)
	}
	deleteMember(x.ByType, s.Type, dialogID)
	deleteMember(x.ByActivity, s.ActivityLevel, dialogID)
}

// recordTurn appends a turn timestamp and prunes entries older than the
// retention window.
func (x *ActiveIndex) recordTurn(dialogID string, at time.Time) {
	times := append(x.TurnTimes[dialogID], at)
	cutoff := at.Add(-turnRingMaxAge)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	x.TurnTimes[dialogID] = times[start:]
}

func (x *ActiveIndex) classify(dialogID string, now time.Time) ActivityLevel {
	recent := 0
	cutoff := now.Add(-activityWindow)
	for _, t := range x.TurnTimes[dialogID] {
		if !t.Before(cutoff) {
			recent++
		}
	}
	switch {
	case recent > highTurnCount:
		return ActivityHigh
	case recent > mediumTurnCount:
		return ActivityMedium
	case recent > 0:
		return ActivityLow
	}
	if s, ok := x.Summaries[dialogID]; ok && now.Sub(s.LastActivity) > idleThreshold {
		return ActivityIdle
	}
	return ActivityLow
}

func deleteMember[K comparable](index map[K]map[string]struct{}, key K, dialogID string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, dialogID)
	if len(set) == 0 {
		delete(index, key)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func appendIfMissing(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// removeString returns a fresh slice: the input's backing array is shared
// with the stored summary, which must stay intact until its index
// memberships are cleared.
func removeString(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
