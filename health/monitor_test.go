package health

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorUpdateAndGet(t *testing.T) {
	m := NewMonitor()

	_, exists := m.Get("go")
	assert.False(t, exists)

	m.Update("go", StateStarting, "")
	status, exists := m.Get("go")
	require.True(t, exists)
	assert.Equal(t, StateStarting, status.State)
	assert.False(t, status.Alive())
	assert.False(t, status.Timestamp.IsZero())

	m.Update("go", StateReady, "socket bound")
	status, _ = m.Get("go")
	assert.True(t, status.Alive())
}

func TestMonitorCrashed(t *testing.T) {
	m := NewMonitor()
	m.Update("go", StateReady, "")
	m.Update("rust", StateCrashed, "exit status 101")
	m.Update("swift", StateStopped, "")

	crashed := m.Crashed()
	require.Len(t, crashed, 1)
	assert.Equal(t, "rust", crashed[0])
}

func TestMonitorSnapshotIsCopy(t *testing.T) {
	m := NewMonitor()
	m.Update("go", StateReady, "")

	snap := m.Snapshot()
	snap["go"] = NewStatus("go", StateCrashed, "mutated copy")

	status, _ := m.Get("go")
	assert.Equal(t, StateReady, status.State)
}

func TestMonitorConcurrentAccess(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Update("go", StateReady, "")
		}()
		go func() {
			defer wg.Done()
			m.Snapshot()
			m.Get("go")
			m.Count()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, m.Count())
	m.Remove("go")
	assert.Equal(t, 0, m.Count())
}
