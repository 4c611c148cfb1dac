package health

import "sync"

// Monitor tracks the health of multiple listeners in a thread-safe manner
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
	}
}

// Update records the state for a named implementation
func (m *Monitor) Update(implementation, state, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statuses[implementation] = NewStatus(implementation, state, message)
}

// Get retrieves the status for a named implementation
func (m *Monitor) Get(implementation string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, exists := m.statuses[implementation]
	return status, exists
}

// Snapshot returns a copy of all current statuses
func (m *Monitor) Snapshot() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]Status, len(m.statuses))
	for name, status := range m.statuses {
		result[name] = status
	}
	return result
}

// Crashed returns the implementations whose listener ended abnormally
func (m *Monitor) Crashed() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name, status := range m.statuses {
		if status.Failed() {
			names = append(names, name)
		}
	}
	return names
}

// Remove drops an implementation from monitoring
func (m *Monitor) Remove(implementation string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.statuses, implementation)
}

// Count returns the number of implementations being monitored
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.statuses)
}
