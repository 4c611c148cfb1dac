package process

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerTrackUntrack(t *testing.T) {
	mgr := testManager(t)
	tracker := NewTracker(mgr)

	desc := shellListener(t, "tracked", `touch "{socket}"; trap 'exit 0' TERM; while :; do sleep 1; done`)
	h, err := mgr.Start(context.Background(), desc)
	require.NoError(t, err)

	tracker.Track(h)
	assert.Equal(t, 1, tracker.Len())
	assert.Equal(t, []string{"tracked"}, tracker.Names())

	require.NoError(t, tracker.Stop(h))
	assert.Equal(t, 0, tracker.Len())
	assert.True(t, h.Exited())
}

func TestTrackerCleanupAll(t *testing.T) {
	mgr := testManager(t)
	tracker := NewTracker(mgr)

	var handles []*Handle
	for _, name := range []string{"one", "two", "three"} {
		desc := shellListener(t, name, `touch "{socket}"; trap 'exit 0' TERM; while :; do sleep 1; done`)
		h, err := mgr.Start(context.Background(), desc)
		require.NoError(t, err)
		tracker.Track(h)
		handles = append(handles, h)
	}

	tracker.CleanupAll()
	assert.Equal(t, 0, tracker.Len())
	for _, h := range handles {
		assert.True(t, h.Exited(), "%s still running after cleanup", h.Name())
	}
}

func TestTrackerCleanupAllConcurrent(t *testing.T) {
	mgr := testManager(t)
	tracker := NewTracker(mgr)

	desc := shellListener(t, "shared", `touch "{socket}"; trap 'exit 0' TERM; while :; do sleep 1; done`)
	h, err := mgr.Start(context.Background(), desc)
	require.NoError(t, err)
	tracker.Track(h)

	// Signal handler and deferred cleanup can race; both must be safe.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.CleanupAll()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, tracker.Len())
	assert.True(t, h.Exited())
}

func TestTrackerCleanupAllEmpty(t *testing.T) {
	tracker := NewTracker(testManager(t))
	tracker.CleanupAll()
	tracker.CleanupAll()
	assert.Equal(t, 0, tracker.Len())
}
