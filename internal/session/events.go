package session

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/daybook-ai/daybook/internal/storage"
	"github.com/daybook-ai/daybook/pkg/types"
)

// UpsertPartialEvent merges fields into the partial event of the given type,
// creating it if absent, and recomputes its missing fields against the event
// rules table. Starting an event moves an idle session to logging mode.
func (m *Manager) UpsertPartialEvent(ctx context.Context, s *types.SessionState, eventType string, fields map[string]any) (*types.PartialEvent, error) {
	if !types.IsValidBlockType(eventType) {
		return nil, fmt.Errorf("session: %w: %q", ErrInvalidEventType, eventType)
	}

	var result *types.PartialEvent
	err := m.withSession(s, func(state *types.SessionState) error {
		if state.Mode == types.ModeIdle {
			state.Mode = types.ModeLogging
		}

		partial := state.PartialEvent(eventType)
		if partial == nil {
			state.PartialEvents = append(state.PartialEvents, types.PartialEvent{
				EventType: eventType,
				Fields:    map[string]any{},
			})
			partial = &state.PartialEvents[len(state.PartialEvents)-1]
		}
		for name, value := range fields {
			partial.Fields[name] = value
		}
		partial.MissingFields = m.rules.MissingFields(eventType, partial.Fields)
		partial.UpdatedAt = time.Now().UTC()

		snapshot := *partial
		result = &snapshot
		state.UpdatedAt = partial.UpdatedAt
		m.persist(ctx, state)
		return nil
	})
	return result, err
}

// FinalizeOptions controls event finalization.
type FinalizeOptions struct {
	// SkipValidation converts the event even when required fields are
	// missing. Missing fields are recorded as explicitly absent on the
	// block, never invented. A start time cannot be skipped: a block
	// without a timestamp cannot exist on the timeline.
	SkipValidation bool
}

// FinalizeEvent converts the partial event of the given type into a time
// block. When required fields are missing and validation is not skipped, it
// returns an EscalationSignal naming them instead of creating an incomplete
// record; that outcome is data, not an error.
//
// On success the partial event is removed, the block is sorted-inserted
// into the session's skeleton (subsuming any anchors it now covers), and
// the block is handed to the event store for durable writing when one is
// configured. A failed handoff degrades: the block stays on the skeleton
// and the failure is logged, mirroring the builder's degrade-not-fail
// policy for external collaborators.
func (m *Manager) FinalizeEvent(ctx context.Context, s *types.SessionState, eventType string, opts FinalizeOptions) (*types.TimeBlock, *types.EscalationSignal, error) {
	var (
		block      *types.TimeBlock
		escalation *types.EscalationSignal
	)
	err := m.withSession(s, func(state *types.SessionState) error {
		partial := state.PartialEvent(eventType)
		if partial == nil {
			return fmt.Errorf("session: %w: %q", ErrNoPartialEvent, eventType)
		}

		missing := m.rules.MissingFields(eventType, partial.Fields)
		if len(missing) > 0 && !opts.SkipValidation {
			escalation = &types.EscalationSignal{
				EventType:     eventType,
				MissingFields: missing,
				Message:       fmt.Sprintf("cannot finalize %s: missing %v", eventType, missing),
			}
			return nil
		}

		start, err := parseEventTime(partial.Fields["start"], state.Date)
		if err != nil {
			return fmt.Errorf("session: invalid start time: %w", err)
		}
		if start == nil {
			// Timestamps are never invented, skip flag or not.
			escalation = &types.EscalationSignal{
				EventType:     eventType,
				MissingFields: []string{"start"},
				Message:       fmt.Sprintf("cannot finalize %s: a start time is required", eventType),
			}
			return nil
		}
		end, err := parseEventTime(partial.Fields["end"], state.Date)
		if err != nil {
			return fmt.Errorf("session: invalid end time: %w", err)
		}

		title, _ := partial.Fields["title"].(string)
		details := map[string]any{}
		for name, value := range partial.Fields {
			switch name {
			case "start", "end", "title":
			default:
				details[name] = value
			}
		}
		if len(missing) > 0 {
			// Skip-validation path: record what was never provided.
			details["omitted_fields"] = missing
		}

		b := types.TimeBlock{
			ID:         ulid.Make().String(),
			Start:      *start,
			End:        end,
			Type:       eventType,
			Title:      title,
			Source:     types.SourceInferred,
			Confidence: types.ConfidenceMedium,
			Details:    details,
		}

		if m.events != nil {
			rec := &storage.EventRecord{
				ID:      "evt:" + ulid.Make().String(),
				Owner:   state.Owner,
				Date:    state.Date,
				Start:   *start,
				End:     end,
				Type:    eventType,
				Title:   title,
				Details: details,
			}
			if err := m.events.Store(ctx, rec); err != nil {
				log.Printf("session: failed to persist finalized %s event: %v", eventType, err)
			} else {
				b.RecordID = rec.ID
			}
		}

		state.Skeleton.InsertBlock(b)
		removePartial(state, eventType)
		state.UpdatedAt = time.Now().UTC()
		m.persist(ctx, state)
		block = &b
		return nil
	})
	return block, escalation, err
}

func removePartial(state *types.SessionState, eventType string) {
	kept := state.PartialEvents[:0]
	for _, p := range state.PartialEvents {
		if p.EventType != eventType {
			kept = append(kept, p)
		}
	}
	state.PartialEvents = kept
}

// parseEventTime interprets an event time field. Accepted forms: time.Time,
// RFC 3339 strings, and bare "15:04" clock times interpreted on the
// session's date. A nil or absent value returns nil without error.
func parseEventTime(v any, day time.Time) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &t, nil
	case *time.Time:
		return t, nil
	case string:
		if t == "" {
			return nil, nil
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return &parsed, nil
		}
		if clock, err := time.Parse("15:04", t); err == nil {
			combined := time.Date(day.Year(), day.Month(), day.Day(),
				clock.Hour(), clock.Minute(), 0, 0, day.Location())
			return &combined, nil
		}
		return nil, fmt.Errorf("unrecognized time %q", t)
	default:
		return nil, fmt.Errorf("unsupported time value of type %T", v)
	}
}

// SortedBlockTypes returns the closed block type set in sorted order, for
// surfaces that enumerate it.
func SortedBlockTypes() []string {
	out := append([]string(nil), types.ValidBlockTypes...)
	sort.Strings(out)
	return out
}
