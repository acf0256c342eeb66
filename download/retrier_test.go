package download

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JULIELab/julielab-bioportal-ontology-tools/errors"
)

func TestRetrier_EventualSuccessClearsError(t *testing.T) {
	stats := NewStats()
	stats.AddError("GO", errors.ErrDownload)

	var attempts int32
	r := NewRetrier(5, time.Millisecond, func(_ context.Context, acronym string) error {
		assert.Equal(t, "GO", acronym)
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.ErrDownload
		}
		return nil
	}, stats)

	r.Submit(context.Background(), "GO", errors.ErrDownload)
	r.Wait()

	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	state, ok := r.State("GO")
	require.True(t, ok)
	assert.Equal(t, StateDone, state)
	_, _, _, _, errCount := stats.Counts()
	assert.Zero(t, errCount)
}

func TestRetrier_BoundedAttempts(t *testing.T) {
	stats := NewStats()
	var attempts int32
	r := NewRetrier(4, time.Millisecond, func(context.Context, string) error {
		atomic.AddInt32(&attempts, 1)
		return errors.ErrDownload
	}, stats)

	r.Submit(context.Background(), "GO", errors.ErrDownload)
	r.Wait()

	assert.Equal(t, int32(4), atomic.LoadInt32(&attempts), "attempts must stop at the bound")
	state, _ := r.State("GO")
	assert.Equal(t, StatePermanentlyFailed, state)
	_, _, _, _, errCount := stats.Counts()
	assert.Equal(t, 1, errCount)
}

func TestRetrier_PermanentErrorStopsEarly(t *testing.T) {
	stats := NewStats()
	var attempts int32
	r := NewRetrier(10, time.Millisecond, func(context.Context, string) error {
		atomic.AddInt32(&attempts, 1)
		return errors.ErrNotFound
	}, stats)

	r.Submit(context.Background(), "GO", errors.ErrDownload)
	r.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	state, _ := r.State("GO")
	assert.Equal(t, StatePermanentlyFailed, state)
}

func TestRetrier_DuplicateSubmitIgnored(t *testing.T) {
	stats := NewStats()
	var attempts int32
	r := NewRetrier(3, time.Millisecond, func(context.Context, string) error {
		atomic.AddInt32(&attempts, 1)
		return nil
	}, stats)

	ctx := context.Background()
	r.Submit(ctx, "GO", errors.ErrDownload)
	r.Submit(ctx, "GO", errors.ErrDownload)
	r.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestRetrier_ContextCancellation(t *testing.T) {
	stats := NewStats()
	r := NewRetrier(3, time.Hour, func(context.Context, string) error {
		t.Fatal("sync must not run after cancellation")
		return nil
	}, stats)

	ctx, cancel := context.WithCancel(context.Background())
	r.Submit(ctx, "GO", errors.ErrDownload)
	cancel()
	r.Wait()

	state, _ := r.State("GO")
	assert.Equal(t, StatePermanentlyFailed, state)
}
