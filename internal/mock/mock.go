// Package mock implements C6: the dual-layer mock engine. An inner
// Implementation runs "in the target process" (in this Go port, a function
// value the caller installs to stand in for the real Electron/Tauri API) and
// an outer *Mock proxy records every invocation and lets tests control
// behavior, mirroring the Design Note "dynamic dispatch over API objects" —
// here expressed as a typed per-(api,func) table instead of rewriting
// property slots on a dynamic object.
package mock

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Implementation is the function value installed as a mock's behavior. It
// stands in for "the code that runs inside the target process" (§4.6).
type Implementation func(args []any) (any, error)

// CallResultType distinguishes a normal return from a thrown/rejected value.
type CallResultType string

const (
	ResultReturn CallResultType = "return"
	ResultThrow  CallResultType = "throw"
)

// CallResult is one entry of mock.results.
type CallResult struct {
	Type  CallResultType
	Value any
}

// kind is the tagged-variant discriminator for a mock's current behavior.
type kind int

const (
	kindOriginal kind = iota
	kindImplementation
	kindReturnValue
	kindThrowValue
	kindReturnThis
)

// Mock is the outer proxy described in §4.6: read-only call/result state plus
// the builder methods that configure the inner Implementation.
type Mock struct {
	mu sync.Mutex

	apiName, funcName string
	mockName          string

	behaviorKind kind
	impl         Implementation
	returnValue  any
	throwValue   any

	onceQueue []queuedBehavior

	original Implementation // nil if this mock was never attached to a real function
	detached bool

	calls               [][]any
	results             []CallResult
	invocationCallOrder []int64

	counter *atomic.Int64 // counter shared by every mock of the owning Registry (§3 CdpSession-adjacent invariant #2)
}

type queuedBehavior struct {
	kind        kind
	impl        Implementation
	returnValue any
	throwValue  any
}

func newMock(apiName, funcName string, original Implementation, counter *atomic.Int64) *Mock {
	return &Mock{
		apiName:      apiName,
		funcName:     funcName,
		behaviorKind: kindOriginal,
		original:     original,
		counter:      counter,
	}
}

// IsMockFunction implements §4.6's isMockFunction(x) ≡ x?.__isMockFunction === true.
func (m *Mock) IsMockFunction() bool { return true }

// MockImplementation sets the default implementation, chainable.
func (m *Mock) MockImplementation(fn Implementation) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behaviorKind = kindImplementation
	m.impl = fn
	return m
}

// MockImplementationOnce queues a one-shot implementation, consumed FIFO.
func (m *Mock) MockImplementationOnce(fn Implementation) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onceQueue = append(m.onceQueue, queuedBehavior{kind: kindImplementation, impl: fn})
	return m
}

func (m *Mock) MockReturnValue(v any) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behaviorKind = kindReturnValue
	m.returnValue = v
	return m
}

func (m *Mock) MockReturnValueOnce(v any) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onceQueue = append(m.onceQueue, queuedBehavior{kind: kindReturnValue, returnValue: v})
	return m
}

// MockResolvedValue/MockResolvedValueOnce model a resolved Promise: since Go
// has no implicit async/await, "resolved" and "return" coincide.
func (m *Mock) MockResolvedValue(v any) *Mock     { return m.MockReturnValue(v) }
func (m *Mock) MockResolvedValueOnce(v any) *Mock { return m.MockReturnValueOnce(v) }

func (m *Mock) MockRejectedValue(v any) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behaviorKind = kindThrowValue
	m.throwValue = v
	return m
}

func (m *Mock) MockRejectedValueOnce(v any) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onceQueue = append(m.onceQueue, queuedBehavior{kind: kindThrowValue, throwValue: v})
	return m
}

// MockReturnThis configures the mock to return its receiver; modeled as a
// sentinel kind since this Go port has no implicit `this`.
func (m *Mock) MockReturnThis() *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behaviorKind = kindReturnThis
	return m
}

// MockClear empties calls/results/invocationCallOrder and the one-shot
// queue, leaving the configured implementation intact.
func (m *Mock) MockClear() *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.results = nil
	m.invocationCallOrder = nil
	m.onceQueue = nil
	return m
}

// MockReset is MockClear plus resetting the implementation to the empty
// function returning nil.
func (m *Mock) MockReset() *Mock {
	m.MockClear()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behaviorKind = kindImplementation
	m.impl = func([]any) (any, error) { return nil, nil }
	return m
}

// MockRestore is MockReset plus detaching the proxy from the target API, so
// the original function is reinstated.
func (m *Mock) MockRestore() *Mock {
	m.MockReset()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detached = true
	m.behaviorKind = kindOriginal
	return m
}

// WithImplementation swaps impl, runs cb, then restores the previous
// implementation regardless of cb's outcome.
func (m *Mock) WithImplementation(impl Implementation, cb func()) *Mock {
	m.mu.Lock()
	prevKind, prevImpl := m.behaviorKind, m.impl
	m.behaviorKind = kindImplementation
	m.impl = impl
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.behaviorKind, m.impl = prevKind, prevImpl
		m.mu.Unlock()
	}()
	cb()
	return m
}

func (m *Mock) MockName(name string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mockName = name
	return m
}

func (m *Mock) GetMockName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mockName == "" {
		return fmt.Sprintf("%s.%s", m.apiName, m.funcName)
	}
	return m.mockName
}

// GetMockImplementation returns the current default implementation, or nil.
func (m *Mock) GetMockImplementation() Implementation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.behaviorKind == kindImplementation {
		return m.impl
	}
	return nil
}

// Calls returns a defensive copy of recorded call argument lists.
func (m *Mock) Calls() [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]any, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *Mock) Results() []CallResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallResult, len(m.results))
	copy(out, m.results)
	return out
}

func (m *Mock) InvocationCallOrder() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.invocationCallOrder))
	copy(out, m.invocationCallOrder)
	return out
}

// LastCall returns the arguments of the most recent call, or nil if no call
// has been recorded.
func (m *Mock) LastCall() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// Invoke is the inner interception point: it is what the target process
// calls in place of the original API function. It resolves the current
// behavior (one-shot queue first, FIFO), invokes it, and records exactly one
// entry in calls/results/invocationCallOrder (invariant #1).
func (m *Mock) Invoke(args []any) (any, error) {
	m.mu.Lock()

	if m.detached && m.original != nil {
		orig := m.original
		m.mu.Unlock()
		return orig(args)
	}

	var behavior queuedBehavior
	if len(m.onceQueue) > 0 {
		behavior = m.onceQueue[0]
		m.onceQueue = m.onceQueue[1:]
	} else {
		behavior = queuedBehavior{kind: m.behaviorKind, impl: m.impl, returnValue: m.returnValue, throwValue: m.throwValue}
	}
	m.mu.Unlock()

	var value any
	var resultType CallResultType
	var callErr error

	switch behavior.kind {
	case kindImplementation:
		if behavior.impl == nil {
			value, resultType = nil, ResultReturn
		} else {
			v, err := behavior.impl(args)
			if err != nil {
				value, resultType, callErr = err, ResultThrow, err
			} else {
				value, resultType = v, ResultReturn
			}
		}
	case kindReturnValue:
		value, resultType = behavior.returnValue, ResultReturn
	case kindThrowValue:
		value, resultType = behavior.throwValue, ResultThrow
		callErr = fmt.Errorf("mock rejected: %v", behavior.throwValue)
	case kindReturnThis:
		value, resultType = m, ResultReturn
	default: // kindOriginal with no detach: pass through if we have one, else nil
		if m.original != nil {
			v, err := m.original(args)
			if err != nil {
				value, resultType, callErr = err, ResultThrow, err
			} else {
				value, resultType = v, ResultReturn
			}
		} else {
			value, resultType = nil, ResultReturn
		}
	}

	order := m.counter.Add(1)

	m.mu.Lock()
	m.calls = append(m.calls, args)
	m.results = append(m.results, CallResult{Type: resultType, Value: value})
	m.invocationCallOrder = append(m.invocationCallOrder, order)
	m.mu.Unlock()

	return value, callErr
}

// Update is a no-op in this in-process port: the Go mock engine never
// needs to pull state across a process boundary the way the Electron/Tauri
// original does after an `execute` call that might invoke a mock indirectly.
// It exists so callers written against §4.6's surface compile unchanged.
func (m *Mock) Update() *Mock { return m }
