package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/daybook-ai/daybook/pkg/types"
)

// RecordTurn appends an immutable turn to the session and applies the
// turn's externally-classified intent to the session mode (write -> logging,
// read -> querying, end -> idle with pending state cleared).
//
// Turn history is bounded: the most recent KeepVerbatimTurns turns are kept
// verbatim; anything older is folded into the rolling summary as plain text
// and its original content discarded. Every DistillAfterTurns turns the
// configured distiller compresses the rolling summary; a failed or missing
// distiller leaves the plain-text fold in place, so distillation never
// blocks a turn.
func (m *Manager) RecordTurn(ctx context.Context, s *types.SessionState, inbound, outbound string, actions []string, intent types.Intent) error {
	return m.withSession(s, func(state *types.SessionState) error {
		if err := applyIntent(state, intent); err != nil {
			return err
		}

		turn := types.Turn{
			ID:        ulid.Make().String(),
			Inbound:   inbound,
			Outbound:  outbound,
			Actions:   actions,
			Timestamp: time.Now().UTC(),
		}
		state.RecentTurns = append(state.RecentTurns, turn)
		state.TurnCount++

		// Fold overflow beyond the verbatim window into the summary.
		if overflow := len(state.RecentTurns) - m.cfg.KeepVerbatimTurns; overflow > 0 {
			folded := state.RecentTurns[:overflow]
			state.Summary = appendFold(state.Summary, folded)
			state.DistilledThrough += overflow
			state.RecentTurns = append([]types.Turn(nil), state.RecentTurns[overflow:]...)
		}

		// Periodic compression pass over the rolling summary.
		if m.distiller != nil && state.Summary != "" &&
			state.TurnCount%m.cfg.DistillAfterTurns == 0 {
			compressed, err := m.distiller.Compress(ctx, state.Summary)
			if err != nil {
				log.Printf("session: distillation failed, keeping plain summary: %v", err)
			} else if compressed != "" {
				state.Summary = compressed
			}
		}

		state.UpdatedAt = turn.Timestamp
		m.persist(ctx, state)
		return nil
	})
}

// applyIntent drives the session mode machine from the turn's intent
// classification. Intent classification happens outside this core.
func applyIntent(state *types.SessionState, intent types.Intent) error {
	var next types.SessionMode
	switch intent {
	case types.IntentNone:
		return nil
	case types.IntentWrite:
		next = types.ModeLogging
	case types.IntentRead:
		next = types.ModeQuerying
	case types.IntentEnd:
		next = types.ModeIdle
	default:
		return fmt.Errorf("session: unknown intent %q", intent)
	}
	if !types.IsValidModeTransition(state.Mode, next) {
		return fmt.Errorf("session: invalid mode transition %s -> %s", state.Mode, next)
	}
	state.Mode = next
	if next == types.ModeIdle {
		state.PendingEntities = nil
		state.PartialEvents = nil
	}
	return nil
}

// appendFold renders discarded turns onto the rolling summary, one line per
// turn. The format is deterministic so sessions without a distiller stay
// reproducible.
func appendFold(summary string, turns []types.Turn) string {
	var sb strings.Builder
	sb.WriteString(summary)
	for _, t := range turns {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- ")
		sb.WriteString(t.Inbound)
		sb.WriteString(" => ")
		sb.WriteString(t.Outbound)
		if len(t.Actions) > 0 {
			sb.WriteString(" [")
			sb.WriteString(strings.Join(t.Actions, ", "))
			sb.WriteString("]")
		}
	}
	return sb.String()
}
