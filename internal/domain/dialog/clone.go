package dialog

import "encoding/json"

// Clone returns a copy of the aggregate that shares no mutable containers
// with the original. Turns, messages, and raw JSON values are immutable once
// applied, so their backing arrays are shared.
func (d *Dialog) Clone() *Dialog {
	if d == nil {
		return nil
	}
	out := *d

	if d.Participants != nil {
		out.Participants = make(map[string]Participant, len(d.Participants))
		for id, p := range d.Participants {
			out.Participants[id] = p
		}
	}
	if d.Topics != nil {
		out.Topics = make(map[string]Topic, len(d.Topics))
		for id, topic := range d.Topics {
			out.Topics[id] = topic
		}
	}
	if d.Metadata != nil {
		out.Metadata = make(map[string]json.RawMessage, len(d.Metadata))
		for key, value := range d.Metadata {
			out.Metadata[key] = value
		}
	}
	out.Turns = append([]Turn(nil), d.Turns...)
	out.Context.Variables = d.Context.cloneVariables()
	out.Context.History = append([]ContextSnapshot(nil), d.Context.History...)
	return &out
}
