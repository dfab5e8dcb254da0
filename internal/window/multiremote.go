package window

import (
	"sync"

	"github.com/samber/lo"
)

// MultiRemoteManager holds one Manager per multiremote instance with fully
// independent state, per §4.7/§3 MultiRemoteState: handles never cross
// instances.
type MultiRemoteManager struct {
	mu        sync.RWMutex
	instances map[string]*Manager
}

func NewMultiRemoteManager() *MultiRemoteManager {
	return &MultiRemoteManager{instances: make(map[string]*Manager)}
}

// Register adds instanceName with its own backing Source, building a fresh
// Manager around it. Re-registering an existing name replaces its Manager
// with fresh, empty state.
func (mr *MultiRemoteManager) Register(instanceName string, source Source) *Manager {
	return mr.RegisterManager(instanceName, NewManager(source))
}

// RegisterManager adds instanceName using an already-constructed Manager —
// for callers (like the lifecycle controller) that build a Manager as part
// of connecting to an instance and want that exact Manager, with its
// already-reconciled state, to be the one MultiRemoteManager fans out to.
func (mr *MultiRemoteManager) RegisterManager(instanceName string, m *Manager) *Manager {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.instances[instanceName] = m
	return m
}

func (mr *MultiRemoteManager) Unregister(instanceName string) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	delete(mr.instances, instanceName)
}

func (mr *MultiRemoteManager) Get(instanceName string) (*Manager, bool) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	m, ok := mr.instances[instanceName]
	return m, ok
}

// EnsureAllActiveWindows calls UpdateActiveHandle on every registered
// instance and returns the count whose active handle changed, per §4.7.
// The first error from any instance's source is returned and aborts the
// remaining instances, since a source failure likely means the whole
// session is unhealthy.
type ensureResult struct {
	changed int
	err     error
}

func (mr *MultiRemoteManager) EnsureAllActiveWindows() (int, error) {
	mr.mu.RLock()
	managers := make([]*Manager, 0, len(mr.instances))
	for _, m := range mr.instances {
		managers = append(managers, m)
	}
	mr.mu.RUnlock()

	result := lo.Reduce(managers, func(agg ensureResult, m *Manager, _ int) ensureResult {
		if agg.err != nil {
			return agg // abort: a prior instance's source already failed
		}
		changed, err := m.UpdateActiveHandle()
		if err != nil {
			return ensureResult{changed: agg.changed, err: err}
		}
		if changed {
			agg.changed++
		}
		return agg
	}, ensureResult{})

	return result.changed, result.err
}
