// Package behave provides the runtime behind generated behaviour mocks.
// Mocks are generated by behavegen from interfaces marked //behave:mockable
// and driven by given! and expect_interactions! blocks in .behave templates.
//
// This is the public API entry point. Implementation lives in internal/core.
package behave

import (
	"github.com/toejough/behave/internal/core"
)

// ExpectBehaviour is an expected interaction with call-count bounds.
type ExpectBehaviour[A any] = core.ExpectBehaviour[A]

// NewExpectBehaviour creates an expectation with no bounds on its call count.
func NewExpectBehaviour[A any](stmtID int, description string, binding any, matcher func(A) bool) *ExpectBehaviour[A] {
	return core.NewExpectBehaviour(stmtID, description, binding, matcher)
}

// ExpectBehaviours holds the expectations of one mocked method.
type ExpectBehaviours[A any] = core.ExpectBehaviours[A]

// GivenBehaviour is a stubbed response for matching calls.
type GivenBehaviour[A, R any] = core.GivenBehaviour[A, R]

// NewGivenBehaviour creates an unlimited given behaviour.
func NewGivenBehaviour[A, R any](
	stmtID int, description string, binding any, matcher func(A) bool, returner func(A) R,
) *GivenBehaviour[A, R] {
	return core.NewGivenBehaviour(stmtID, description, binding, matcher, returner)
}

// GivenBehaviours holds the given behaviours of one mocked method.
type GivenBehaviours[A, R any] = core.GivenBehaviours[A, R]

// Matcher defines the interface for flexible value matching.
// Every gomega matcher satisfies it.
type Matcher = core.Matcher

// MockState is the bookkeeping embedded in every generated mock.
type MockState = core.MockState

// NewMockState creates the state of a mock named name.
func NewMockState(t TestReporter, name string) *MockState {
	return core.NewMockState(t, name)
}

// TestReporter is the minimal interface behave needs from test frameworks.
type TestReporter = core.TestReporter

// Any returns a matcher that matches any value.
func Any() Matcher {
	return core.Any()
}

// MatchArg reports whether a single argument satisfies a per-argument predicate.
func MatchArg[T any](predicate any, actual T) bool {
	return core.MatchArg(predicate, actual)
}

// MatchExplicit reports whether a call satisfies an explicit predicate.
func MatchExplicit(predicate any, curried any, args ...any) bool {
	return core.MatchExplicit(predicate, curried, args...)
}

// MatchValue checks if actual matches expected.
func MatchValue(actual, expected any) (bool, string) {
	return core.MatchValue(actual, expected)
}

// Satisfies returns a matcher that uses a predicate function to check for a match.
func Satisfies[T any](predicate func(T) error) Matcher {
	return core.Satisfies(predicate)
}

// TrackExpectBehaviours creates an expectation collection owned by state.
func TrackExpectBehaviours[A any](state *MockState) *ExpectBehaviours[A] {
	return core.TrackExpectBehaviours[A](state)
}

// TrackGivenBehaviours creates a given behaviour collection owned by state.
func TrackGivenBehaviours[A, R any](state *MockState) *GivenBehaviours[A, R] {
	return core.TrackGivenBehaviours[A, R](state)
}

// Truthy interprets the result of a predicate as a match decision.
func Truthy(value any) bool {
	return core.Truthy(value)
}
