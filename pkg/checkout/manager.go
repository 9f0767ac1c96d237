package checkout

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager tracks live checkout flows per page session. Flows are destroyed
// when the page session ends or the TTL passes; nothing is persisted.
type Manager struct {
	mu            sync.RWMutex
	flows         map[string]flowEntry
	flowTTL       time.Duration
	cleanupPeriod time.Duration
}

type flowEntry struct {
	flow      *Flow
	createdAt time.Time
}

// NewManager creates a flow manager and starts its cleanup loop
func NewManager(flowTTL, cleanupPeriod time.Duration) *Manager {
	m := &Manager{
		flows:         make(map[string]flowEntry),
		flowTTL:       flowTTL,
		cleanupPeriod: cleanupPeriod,
	}
	go m.cleanupExpired()
	return m
}

// Create starts a new flow for a company and registers it
func (m *Manager) Create(companyID, currentPlanID string, backend Backend) *Flow {
	flow := NewFlow(uuid.NewString(), companyID, currentPlanID, backend)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows[flow.ID()] = flowEntry{flow: flow, createdAt: time.Now()}
	return flow
}

// Get returns a live flow by id
func (m *Manager) Get(id string) (*Flow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, exists := m.flows[id]
	if !exists || time.Since(entry.createdAt) >= m.flowTTL {
		return nil, false
	}
	return entry.flow, true
}

// Delete removes a flow, e.g. when the user navigates away
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flows, id)
}

// Count returns the number of tracked flows, expired ones included
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.flows)
}

// cleanupExpired periodically removes expired flows
func (m *Manager) cleanupExpired() {
	for {
		time.Sleep(m.cleanupPeriod)

		m.mu.Lock()
		for id, entry := range m.flows {
			if time.Since(entry.createdAt) >= m.flowTTL {
				delete(m.flows, id)
			}
		}
		m.mu.Unlock()
	}
}
