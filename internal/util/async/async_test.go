package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_CompletesWithValue(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	f := Go(context.Background(), "capture", func(context.Context) (string, error) {
		<-release
		return "/vAppTemplate/vappTemplate-1", nil
	})

	assert.Equal(t, "capture", f.ID())
	assert.False(t, f.Completed())
	assert.False(t, f.Started().IsZero())

	close(release)
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/vAppTemplate/vappTemplate-1", v)
	assert.True(t, f.Completed())

	elapsed := f.Elapsed()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, elapsed, f.Elapsed(), "elapsed time is fixed once the work completed")
}

func TestGo_CompletesWithError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("capture failed")
	f := Go(context.Background(), "capture", func(context.Context) (int, error) {
		return 0, sentinel
	})

	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, sentinel)
}

func TestGo_SurvivesCallerCancellation(t *testing.T) {
	t.Parallel()

	type key struct{}
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "run-1"))

	started := make(chan struct{})
	release := make(chan struct{})
	f := Go(ctx, "capture", func(ctx context.Context) (string, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return ctx.Value(key{}).(string), nil
	})

	<-started
	cancel()
	close(release)

	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", v, "values of the caller context are kept")
}

func TestFuture_Cancel(t *testing.T) {
	t.Parallel()

	f := Go(context.Background(), "capture", func(ctx context.Context) (struct{}, error) {
		<-ctx.Done()
		return struct{}{}, ctx.Err()
	})

	f.Cancel()
	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFuture_WaitRespectsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	f := Go(context.Background(), "slow", func(context.Context) (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, f.Completed(), "an expired wait must not complete the work")
}

func TestGo_RecoversPanic(t *testing.T) {
	t.Parallel()

	f := Go(context.Background(), "boom", func(context.Context) (int, error) {
		panic("unexpected")
	})

	_, err := f.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom panicked")
}
