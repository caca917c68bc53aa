package behave

import (
	"github.com/toejough/behave/internal/core"
)

// Mocks returns the states of all mocks created under t, in creation order.
func Mocks(t TestReporter) []*MockState {
	return core.Mocks(t)
}

// VerifyAll verifies every mock created under t.
func VerifyAll(t TestReporter) {
	t.Helper()
	core.VerifyAll(t)
}
