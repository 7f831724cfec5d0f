package types

import "time"

// SessionMode is the conversational mode of a session.
type SessionMode string

// Session mode constants.
const (
	// ModeIdle means no logging or querying is in progress.
	ModeIdle SessionMode = "idle"

	// ModeLogging means the user is recording new events.
	ModeLogging SessionMode = "logging"

	// ModeQuerying means the user is asking read-only questions.
	ModeQuerying SessionMode = "querying"
)

// Intent is the externally-supplied classification of a turn. Intent
// classification is an NLU concern and happens outside this core; the
// session manager only consumes the result.
type Intent string

// Intent constants.
const (
	IntentNone  Intent = ""
	IntentRead  Intent = "read"
	IntentWrite Intent = "write"
	IntentEnd   Intent = "end"
)

// IsValidModeTransition validates session mode transitions.
//
// Valid transitions:
//
//	idle -> logging | querying
//	logging <-> querying (freely, per turn)
//	any -> idle (explicit end or abandonment)
//
// There is no terminal state: a session can always be resumed for its date.
func IsValidModeTransition(current, next SessionMode) bool {
	switch current {
	case ModeIdle:
		return next == ModeLogging || next == ModeQuerying || next == ModeIdle
	case ModeLogging:
		return next == ModeQuerying || next == ModeIdle || next == ModeLogging
	case ModeQuerying:
		return next == ModeLogging || next == ModeIdle || next == ModeQuerying
	default:
		return false
	}
}

// Candidate is one possible match for an entity mention: an opaque
// identifier plus a display label.
type Candidate struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// PendingEntity is an unresolved mention of a person, location, or activity
// awaiting disambiguation.
type PendingEntity struct {
	Mention    string      `json:"mention"`
	Type       string      `json:"type"`
	Candidates []Candidate `json:"candidates,omitempty"`

	// ResolvedID is set once the mention no longer blocks any partial
	// event's completion.
	ResolvedID string `json:"resolved_id,omitempty"`
}

// Resolved reports whether the mention has been resolved to an identifier.
func (p *PendingEntity) Resolved() bool { return p.ResolvedID != "" }

// PartialEvent is an event under construction across turns.
type PartialEvent struct {
	EventType string `json:"event_type"`

	// Fields maps known field name -> value.
	Fields map[string]any `json:"fields"`

	// MissingFields lists required fields not yet provided, recomputed on
	// every upsert against the event-rules table. A partial event is only
	// convertible to a block once this is empty.
	MissingFields []string `json:"missing_fields,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Complete reports whether all required fields are present.
func (p *PartialEvent) Complete() bool { return len(p.MissingFields) == 0 }

// Turn is an immutable record of one conversational exchange. Turns are
// appended every exchange and never mutated; older turns are eligible for
// distillation into the session's rolling summary.
type Turn struct {
	ID        string    `json:"id"`
	Inbound   string    `json:"inbound"`
	Outbound  string    `json:"outbound"`
	Actions   []string  `json:"actions,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EscalationSignal is returned by event finalization when required fields
// are missing. It is data, not an error: incomplete events are an expected,
// frequent outcome that the conversational layer presents to the user.
type EscalationSignal struct {
	EventType     string   `json:"event_type"`
	MissingFields []string `json:"missing_fields"`
	Message       string   `json:"message"`
}

// SessionState tracks one active conversation targeting a date.
//
// Invariant: Mode == idle implies PendingEntities and PartialEvents are both
// empty. The referenced skeleton is exclusively owned by this session for
// the session's lifetime.
type SessionState struct {
	ID    string    `json:"id"`
	Owner string    `json:"owner"`
	Date  time.Time `json:"date"`

	Mode SessionMode `json:"mode"`

	// Skeleton is a reference, not a copy; turns mutate it in place without
	// rebuilding unless a refresh is explicitly requested.
	Skeleton *TimelineSkeleton `json:"skeleton"`

	PendingEntities []PendingEntity `json:"pending_entities,omitempty"`
	PartialEvents   []PartialEvent  `json:"partial_events,omitempty"`

	// TurnCount counts every turn ever recorded, including distilled ones.
	TurnCount int `json:"turn_count"`

	// RecentTurns holds the verbatim tail of the turn history.
	RecentTurns []Turn `json:"recent_turns,omitempty"`

	// Summary is the rolling distillation of turns no longer kept verbatim.
	Summary string `json:"summary,omitempty"`

	// DistilledThrough is the count of turns folded into Summary.
	DistilledThrough int `json:"distilled_through"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PendingEntity returns the pending entity for the given mention, or nil.
func (s *SessionState) PendingEntity(mention string) *PendingEntity {
	for i := range s.PendingEntities {
		if s.PendingEntities[i].Mention == mention {
			return &s.PendingEntities[i]
		}
	}
	return nil
}

// PartialEvent returns the partial event of the given type, or nil.
func (s *SessionState) PartialEvent(eventType string) *PartialEvent {
	for i := range s.PartialEvents {
		if s.PartialEvents[i].EventType == eventType {
			return &s.PartialEvents[i]
		}
	}
	return nil
}
