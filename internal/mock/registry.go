package mock

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// key identifies one mocked function by its owning API object and member
// name, e.g. ("app", "getName").
type key struct {
	apiName, funcName string
}

// Registry is the table of every mock created via its Mock/MockAll, with one
// invocation-order counter shared by those mocks (lifecycle creates one
// Registry per instance), grounded on the same memoized-by-key shape as
// lib/logger's Factory.
type Registry struct {
	mu      sync.Mutex
	mocks   map[key]*Mock
	counter atomic.Int64
}

func NewRegistry() *Registry {
	return &Registry{mocks: make(map[key]*Mock)}
}

// MemberLister enumerates the callable members of an API object so MockAll
// can mock every one. A real binding (CDP Runtime.getProperties, or a Tauri
// plugin's command manifest) implements this; tests use a literal slice.
type MemberLister interface {
	Members(apiName string) []string
}

// StaticMembers is a MemberLister backed by a fixed map, used by tests and by
// any caller that already knows an API's command surface statically.
type StaticMembers map[string][]string

func (s StaticMembers) Members(apiName string) []string { return s[apiName] }

// Mock returns the *Mock for (apiName, funcName), creating it — wrapping
// original — on first use. original may be nil for a function that has no
// real implementation to fall back to (e.g. a pure test double).
func (r *Registry) Mock(apiName, funcName string, original Implementation) *Mock {
	k := key{apiName, funcName}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.mocks[k]; ok {
		return m
	}
	m := newMock(apiName, funcName, original, &r.counter)
	r.mocks[k] = m
	return m
}

// MockAll mocks every member of apiName reported by lister, skipping members
// whose original value isn't a function — resolved per the Open Question in
// spec.md §9: mockAll only touches callable members, non-function properties
// (constants, nested objects) are left untouched. originals maps funcName to
// its real implementation, absent entries are treated as non-function.
func (r *Registry) MockAll(apiName string, lister MemberLister, originals map[string]Implementation) []*Mock {
	members := lister.Members(apiName)
	out := make([]*Mock, 0, len(members))
	for _, name := range members {
		orig, isFunc := originals[name]
		if !isFunc {
			continue
		}
		out = append(out, r.Mock(apiName, name, orig))
	}
	return out
}

// Lookup returns the existing mock for (apiName, funcName) without creating one.
func (r *Registry) Lookup(apiName, funcName string) (*Mock, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mocks[key{apiName, funcName}]
	return m, ok
}

// forEach applies fn to every mock, optionally filtered to one apiName.
func (r *Registry) forEach(apiName string, fn func(*Mock)) {
	r.mu.Lock()
	snapshot := make([]*Mock, 0, len(r.mocks))
	for k, m := range r.mocks {
		if apiName != "" && k.apiName != apiName {
			continue
		}
		snapshot = append(snapshot, m)
	}
	r.mu.Unlock()

	for _, m := range snapshot {
		fn(m)
	}
}

// ClearAllMocks clears every mock, or only those of apiName when non-empty.
func (r *Registry) ClearAllMocks(apiName string) { r.forEach(apiName, func(m *Mock) { m.MockClear() }) }

// ResetAllMocks resets every mock, or only those of apiName when non-empty.
func (r *Registry) ResetAllMocks(apiName string) { r.forEach(apiName, func(m *Mock) { m.MockReset() }) }

// RestoreAllMocks restores every mock, or only those of apiName when
// non-empty, detaching the mocks from the registry so future calls reach the
// original implementation directly.
func (r *Registry) RestoreAllMocks(apiName string) {
	r.forEach(apiName, func(m *Mock) { m.MockRestore() })
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.mocks {
		if apiName != "" && k.apiName != apiName {
			continue
		}
		delete(r.mocks, k)
	}
}

// String renders a key for diagnostics, e.g. in error messages from callers.
func (k key) String() string { return fmt.Sprintf("%s.%s", k.apiName, k.funcName) }
