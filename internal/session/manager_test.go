package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybook-ai/daybook/internal/session"
	"github.com/daybook-ai/daybook/internal/storage"
	"github.com/daybook-ai/daybook/pkg/types"
)

var sessionDay = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

// fakeBuilder hands out fresh empty skeletons and counts builds.
type fakeBuilder struct {
	builds int
	err    error
}

func (f *fakeBuilder) Build(_ context.Context, owner string, date time.Time) (*types.TimelineSkeleton, error) {
	f.builds++
	if f.err != nil {
		return nil, f.err
	}
	return &types.TimelineSkeleton{
		Owner:   owner,
		Date:    types.DayStart(date),
		Sources: map[types.BlockSource]types.SourceStatus{},
		BuiltAt: time.Now().UTC(),
	}, nil
}

// fakeSnapshots counts snapshot saves and can be made to fail.
type fakeSnapshots struct {
	saves int
	err   error
}

func (f *fakeSnapshots) SaveSnapshot(_ context.Context, _ *types.SessionState) error {
	f.saves++
	return f.err
}

func (f *fakeSnapshots) LoadSnapshot(_ context.Context, _ string, _ time.Time) (*types.SessionState, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeSnapshots) Close() error { return nil }

// fakeEvents records stored event records and can be made to fail.
type fakeEvents struct {
	stored []*storage.EventRecord
	err    error
}

func (f *fakeEvents) Store(_ context.Context, rec *storage.EventRecord) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, rec)
	return nil
}

func (f *fakeEvents) Get(_ context.Context, _ string) (*storage.EventRecord, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeEvents) ListByDate(_ context.Context, _ string, _ time.Time) ([]*storage.EventRecord, error) {
	return nil, nil
}

func (f *fakeEvents) Delete(_ context.Context, _ string) error { return storage.ErrNotFound }

func (f *fakeEvents) Close() error { return nil }

// fakeDistiller replaces the summary with a fixed string.
type fakeDistiller struct {
	calls  int
	output string
	err    error
}

func (f *fakeDistiller) Compress(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.output, f.err
}

func newManager(t *testing.T, cfg session.Config, opts ...session.Option) (*session.Manager, *fakeBuilder) {
	t.Helper()
	builder := &fakeBuilder{}
	m, err := session.NewManager(builder, cfg, opts...)
	require.NoError(t, err)
	return m, builder
}

func TestStartOrResume(t *testing.T) {
	m, builder := newManager(t, session.Config{})

	first, err := m.StartOrResume(context.Background(), "ada", sessionDay)
	require.NoError(t, err)
	assert.Equal(t, types.ModeIdle, first.Mode)
	assert.Equal(t, "ada", first.Owner)
	assert.NotEmpty(t, first.ID)
	require.NotNil(t, first.Skeleton)
	assert.Equal(t, 1, builder.builds)

	// Resuming returns the same session untouched; no rebuild happens.
	_, _, err = m.FinalizeEvent(context.Background(), first, types.BlockTypeMeal, session.FinalizeOptions{})
	assert.ErrorIs(t, err, session.ErrNoPartialEvent)

	second, err := m.StartOrResume(context.Background(), "ada", sessionDay.Add(10*time.Hour))
	require.NoError(t, err)
	assert.Same(t, first, second, "same owner and calendar date resume the session")
	assert.Equal(t, 1, builder.builds, "resume must not rebuild the skeleton")

	other, err := m.StartOrResume(context.Background(), "ada", sessionDay.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.NotSame(t, first, other, "a different date gets its own session")
}

func TestStartOrResumeBuilderError(t *testing.T) {
	builder := &fakeBuilder{err: errors.New("unknown owner")}
	m, err := session.NewManager(builder, session.Config{})
	require.NoError(t, err)

	_, err = m.StartOrResume(context.Background(), "nobody", sessionDay)
	assert.Error(t, err)
}

func TestGet(t *testing.T) {
	m, _ := newManager(t, session.Config{})

	_, err := m.Get("ada", sessionDay)
	assert.ErrorIs(t, err, session.ErrUnknownSession)

	started, err := m.StartOrResume(context.Background(), "ada", sessionDay)
	require.NoError(t, err)

	got, err := m.Get("ada", sessionDay)
	require.NoError(t, err)
	assert.Same(t, started, got)
}

func TestEndSessionClearsPendingState(t *testing.T) {
	m, _ := newManager(t, session.Config{})
	s, err := m.StartOrResume(context.Background(), "ada", sessionDay)
	require.NoError(t, err)

	_, err = m.AddPendingEntity(context.Background(), s, "Alex", types.EntityTypePerson, nil)
	require.NoError(t, err)
	_, err = m.UpsertPartialEvent(context.Background(), s, types.BlockTypeMeal, map[string]any{"start": "12:30"})
	require.NoError(t, err)
	assert.Equal(t, types.ModeLogging, s.Mode)

	require.NoError(t, m.EndSession(context.Background(), s))

	assert.Equal(t, types.ModeIdle, s.Mode)
	assert.Empty(t, s.PendingEntities, "idle sessions carry no pending entities")
	assert.Empty(t, s.PartialEvents, "idle sessions carry no partial events")
}

func TestRefreshSkeletonReplacesWholesale(t *testing.T) {
	m, builder := newManager(t, session.Config{})
	s, err := m.StartOrResume(context.Background(), "ada", sessionDay)
	require.NoError(t, err)
	old := s.Skeleton

	require.NoError(t, m.RefreshSkeleton(context.Background(), s))

	assert.NotSame(t, old, s.Skeleton)
	assert.Equal(t, 2, builder.builds)
}

func TestSnapshotFailureDoesNotFailOperation(t *testing.T) {
	snaps := &fakeSnapshots{err: errors.New("disk full")}
	m, _ := newManager(t, session.Config{}, session.WithSessionStore(snaps))

	s, err := m.StartOrResume(context.Background(), "ada", sessionDay)
	require.NoError(t, err, "snapshot failures degrade, they never fail the operation")

	require.NoError(t, m.RecordTurn(context.Background(), s, "hi", "hello", nil, types.IntentNone))
	assert.GreaterOrEqual(t, snaps.saves, 2, "every mutation attempts a snapshot")
}

func TestOperationsOnUntrackedSessionFail(t *testing.T) {
	m, _ := newManager(t, session.Config{})

	stray := &types.SessionState{Owner: "ada", Date: sessionDay}
	err := m.RecordTurn(context.Background(), stray, "hi", "hello", nil, types.IntentNone)
	assert.ErrorIs(t, err, session.ErrUnknownSession)

	err = m.EndSession(context.Background(), nil)
	assert.ErrorIs(t, err, session.ErrUnknownSession)
}
