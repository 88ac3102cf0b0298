package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/vcdflow/internal/provisioning"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open("", append([]Option{WithInMemory()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordReplacesRun(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := provisioning.Run{ID: "r1", Workflow: "launch", Target: "/images/1", Status: provisioning.RunRunning, Started: started}
	require.NoError(t, s.Record(ctx, run))

	run.Status = provisioning.RunFailed
	run.Error = "no network"
	run.CompensationErrors = []string{"delete-group: boom"}
	run.Finished = started.Add(time.Minute)
	require.NoError(t, s.Record(ctx, run))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, provisioning.RunFailed, got.Status)
	assert.Equal(t, "no network", got.Error)
	assert.Equal(t, []string{"delete-group: boom"}, got.CompensationErrors)
	assert.True(t, got.Started.Equal(started))

	runs, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), "nope"), ErrNotFound)
}

func TestStore_RecordRequiresID(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	assert.Error(t, s.Record(context.Background(), provisioning.Run{Workflow: "launch"}))
}

func TestStore_List(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []provisioning.Run{
		{ID: "a", Workflow: "launch", Status: provisioning.RunSucceeded, Started: base},
		{ID: "b", Workflow: "terminate", Status: provisioning.RunSucceeded, Started: base.Add(time.Minute)},
		{ID: "c", Workflow: "launch", Status: provisioning.RunFailed, Started: base.Add(2 * time.Minute)},
		{ID: "d", Workflow: "launch", Status: provisioning.RunSucceeded, Started: base.Add(3 * time.Minute)},
	}
	for _, r := range runs {
		require.NoError(t, s.Record(ctx, r))
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all newest first", Filter{}, []string{"d", "c", "b", "a"}},
		{"by workflow", Filter{Workflow: "launch"}, []string{"d", "c", "a"}},
		{"by status", Filter{Status: provisioning.RunFailed}, []string{"c"}},
		{"limited", Filter{Limit: 2}, []string{"d", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, WithRetention(time.Hour))
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, provisioning.Run{ID: "x", Workflow: "capture"}))
	require.NoError(t, s.Delete(ctx, "x"))

	_, err := s.Get(ctx, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_OnDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, provisioning.Run{ID: "persisted", Workflow: "launch"}))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "persisted")
	require.NoError(t, err)
	assert.Equal(t, "launch", got.Workflow)

	_, err = Open("")
	assert.Error(t, err)
}
