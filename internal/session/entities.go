package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/daybook-ai/daybook/pkg/types"
)

// Resolution is the outcome of registering an entity mention.
type Resolution string

// Resolution outcomes.
const (
	// ResolutionAuto means the mention resolved without user input: either
	// exactly one candidate matched, or a prior resolution was remembered.
	ResolutionAuto Resolution = "auto-resolved"

	// ResolutionAmbiguous means two or more candidates matched; the caller
	// must present a choice. This is a decision point, not an error.
	ResolutionAmbiguous Resolution = "ambiguous"

	// ResolutionUnresolved means no candidate matched; the caller must
	// create or skip. The entity is never auto-created.
	ResolutionUnresolved Resolution = "unresolved"
)

// AddPendingEntity inserts or updates the pending entity for a mention and
// reports how it resolved. Registering an entity mention is an
// event-creation signal, so an idle session moves to logging mode.
func (m *Manager) AddPendingEntity(ctx context.Context, s *types.SessionState, mention, entityType string, candidates []types.Candidate) (Resolution, error) {
	if !types.IsValidEntityType(entityType) {
		return "", fmt.Errorf("session: invalid entity type %q", entityType)
	}

	var resolution Resolution
	err := m.withSession(s, func(state *types.SessionState) error {
		if state.Mode == types.ModeIdle {
			state.Mode = types.ModeLogging
		}

		pending := state.PendingEntity(mention)
		if pending == nil {
			state.PendingEntities = append(state.PendingEntities, types.PendingEntity{
				Mention: mention,
				Type:    entityType,
			})
			pending = &state.PendingEntities[len(state.PendingEntities)-1]
		}
		pending.Type = entityType
		pending.Candidates = candidates

		if cached, ok := m.entityCache.Get(cacheKey(entityType, mention)); ok {
			pending.ResolvedID = cached
			resolution = ResolutionAuto
			return nil
		}

		switch len(candidates) {
		case 0:
			resolution = ResolutionUnresolved
		case 1:
			pending.ResolvedID = candidates[0].ID
			m.entityCache.Add(cacheKey(entityType, mention), candidates[0].ID)
			resolution = ResolutionAuto
		default:
			resolution = ResolutionAmbiguous
		}
		state.UpdatedAt = time.Now().UTC()
		m.persist(ctx, state)
		return nil
	})
	return resolution, err
}

// ResolveEntity records the caller's choice for a previously registered
// mention. A mention that was never registered is a caller bug and fails
// hard with ErrUnknownMention.
func (m *Manager) ResolveEntity(ctx context.Context, s *types.SessionState, mention, resolvedID string) error {
	return m.withSession(s, func(state *types.SessionState) error {
		pending := state.PendingEntity(mention)
		if pending == nil {
			return fmt.Errorf("session: %w: %q", ErrUnknownMention, mention)
		}
		pending.ResolvedID = resolvedID
		m.entityCache.Add(cacheKey(pending.Type, mention), resolvedID)
		state.UpdatedAt = time.Now().UTC()
		m.persist(ctx, state)
		return nil
	})
}

func cacheKey(entityType, mention string) string {
	return entityType + "|" + strings.ToLower(strings.TrimSpace(mention))
}
