package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestStartFinishLast(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	none, err := l.Last(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	r, err := l.Start(ctx, TriggerManual)
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.False(t, r.Finished())

	clock = clock.Add(90 * time.Second)
	r.Items, r.Pages, r.Sources = 120, 10, 2
	r, err = l.Finish(ctx, r)
	require.NoError(t, err)
	assert.True(t, r.OK())
	assert.Equal(t, 90*time.Second, r.Duration())

	last, err := l.Last(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, r.ID, last.ID)
	assert.Equal(t, 120, last.Items)
	assert.Equal(t, TriggerManual, last.Trigger)
	assert.True(t, last.OK())
}

func TestLastSuccessSkipsFailures(t *testing.T) {
	l := openTest(t)
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	ok, err := l.Start(ctx, TriggerSchedule)
	require.NoError(t, err)
	_, err = l.Finish(ctx, ok)
	require.NoError(t, err)

	bad, err := l.Start(ctx, TriggerSchedule)
	require.NoError(t, err)
	bad.Error = "source registry: missing"
	_, err = l.Finish(ctx, bad)
	require.NoError(t, err)

	last, err := l.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, bad.ID, last.ID)
	assert.False(t, last.OK())

	succ, err := l.LastSuccess(ctx)
	require.NoError(t, err)
	require.NotNil(t, succ)
	assert.Equal(t, ok.ID, succ.ID)

	recent, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestFinishUnknown(t *testing.T) {
	l := openTest(t)
	_, err := l.Finish(context.Background(), Run{ID: "nope"})
	assert.Error(t, err)
}
