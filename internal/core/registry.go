package core

import (
	"sync"
)

// Mocks returns the states of all mocks created under t, in creation order.
func Mocks(t TestReporter) []*MockState {
	registryMu.Lock()
	defer registryMu.Unlock()

	states := registry[t]

	return append([]*MockState(nil), states...)
}

// VerifyAll verifies every mock created under t.
//
// Mocks verify themselves when the test ends; VerifyAll is for tests that want
// the check at a specific point, for instance before a ResetExpectedBehaviours.
func VerifyAll(t TestReporter) {
	t.Helper()

	for _, state := range Mocks(t) {
		state.Verify()
	}
}

// unexported variables.
var (
	//nolint:gochecknoglobals // Package-level registry is intentional for test coordination
	registry = make(map[TestReporter][]*MockState)
	//nolint:gochecknoglobals // Mutex for registry
	registryMu sync.Mutex
)

// cleanupRegistrar is the interface needed for registering cleanup functions.
// This is satisfied by *testing.T and *testing.B.
type cleanupRegistrar interface {
	Cleanup(cleanupFunc func())
}

// register records state under t. If t supports Cleanup, the entry is removed
// when the test completes.
func register(t TestReporter, state *MockState) {
	registryMu.Lock()
	defer registryMu.Unlock()

	_, known := registry[t]
	registry[t] = append(registry[t], state)

	if known {
		return
	}

	if cr, ok := t.(cleanupRegistrar); ok {
		cr.Cleanup(func() {
			registryMu.Lock()
			delete(registry, t)
			registryMu.Unlock()
		})
	}
}
