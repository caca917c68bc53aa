package core

import (
	"fmt"
	"strings"
)

// MockState is the bookkeeping shared by every generated mock: the reporter,
// the verify-on-drop flag and the behaviour collections of all mocked methods.
type MockState struct {
	t            TestReporter
	name         string
	verifyOnDrop bool
	givens       []resetter
	expects      []expectTracker
}

// NewMockState creates the state of a mock named name. If t supports Cleanup
// (like *testing.T), the mock verifies its expectations when the test ends
// unless verify-on-drop was disabled or the test has already failed.
func NewMockState(t TestReporter, name string) *MockState {
	state := &MockState{t: t, name: name, verifyOnDrop: true}

	register(t, state)

	if cr, ok := t.(cleanupRegistrar); ok {
		cr.Cleanup(state.drop)
	}

	return state
}

// TrackExpectBehaviours creates an expectation collection owned by state.
func TrackExpectBehaviours[A any](state *MockState) *ExpectBehaviours[A] {
	behaviours := NewExpectBehaviours[A]()
	state.expects = append(state.expects, behaviours)

	return behaviours
}

// TrackGivenBehaviours creates a given behaviour collection owned by state.
func TrackGivenBehaviours[A, R any](state *MockState) *GivenBehaviours[A, R] {
	behaviours := NewGivenBehaviours[A, R](state.t)
	state.givens = append(state.givens, behaviours)

	return behaviours
}

// AreExpectedBehavioursSatisfied reports whether every expectation is within
// its bounds. Unsatisfied expectations are logged when the reporter can log.
func (s *MockState) AreExpectedBehavioursSatisfied() bool {
	unsatisfied := s.unsatisfied()

	if l, ok := s.t.(logger); ok {
		for _, description := range unsatisfied {
			l.Logf("%s: behaviour unsatisfied: %s", s.name, description)
		}
	}

	return len(unsatisfied) == 0
}

// Name returns the mock type name.
func (s *MockState) Name() string {
	return s.name
}

// ResetExpectedBehaviours drops all expectations.
func (s *MockState) ResetExpectedBehaviours() {
	for _, behaviours := range s.expects {
		behaviours.Reset()
	}
}

// ResetGivenBehaviours drops all given behaviours.
func (s *MockState) ResetGivenBehaviours() {
	for _, behaviours := range s.givens {
		behaviours.Reset()
	}
}

// ShouldVerifyOnDrop enables or disables verification at the end of the test.
func (s *MockState) ShouldVerifyOnDrop(flag bool) {
	s.verifyOnDrop = flag
}

// VerifiesOnDrop reports whether verification at the end of the test is enabled.
func (s *MockState) VerifiesOnDrop() bool {
	return s.verifyOnDrop
}

// Verify fails the test if any expectation is out of bounds, listing each one.
func (s *MockState) Verify() {
	s.t.Helper()

	unsatisfied := s.unsatisfied()
	if len(unsatisfied) == 0 {
		return
	}

	var builder strings.Builder

	builder.WriteString("There are unsatisfied expected behaviours for mocked traits.")

	for _, description := range unsatisfied {
		_, _ = fmt.Fprintf(&builder, "\n\tBehaviour unsatisfied: %s", description)
	}

	fail(s.t, builder.String())
}

// drop is the end-of-test hook. A test that already failed is not reported
// again, so the original failure stays the one shown.
func (s *MockState) drop() {
	if !s.verifyOnDrop {
		return
	}

	if f, ok := s.t.(failureReporter); ok && f.Failed() {
		return
	}

	s.Verify()
}

func (s *MockState) unsatisfied() []string {
	var unsatisfied []string

	for _, behaviours := range s.expects {
		unsatisfied = append(unsatisfied, behaviours.Unsatisfied()...)
	}

	return unsatisfied
}

type expectTracker interface {
	resetter
	Unsatisfied() []string
}

type failureReporter interface {
	Failed() bool
}

type logger interface {
	Logf(format string, args ...any)
}

type resetter interface {
	Reset()
}
