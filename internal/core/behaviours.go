package core

import (
	"fmt"
	"strings"
)

// ExpectBehaviours holds the expectations registered for one method of one
// interface usage of a mock.
type ExpectBehaviours[A any] struct {
	behaviours []*ExpectBehaviour[A]
}

// NewExpectBehaviours creates an empty collection.
func NewExpectBehaviours[A any]() *ExpectBehaviours[A] {
	return &ExpectBehaviours[A]{}
}

// Add appends an expectation.
func (c *ExpectBehaviours[A]) Add(behaviour *ExpectBehaviour[A]) {
	c.behaviours = append(c.behaviours, behaviour)
}

// All returns the expectations in registration order.
func (c *ExpectBehaviours[A]) All() []*ExpectBehaviour[A] {
	return c.behaviours
}

// Record counts the call against every matching expectation.
func (c *ExpectBehaviours[A]) Record(args A) {
	for _, behaviour := range c.behaviours {
		behaviour.Matches(args)
	}
}

// Reset drops all expectations.
func (c *ExpectBehaviours[A]) Reset() {
	c.behaviours = nil
}

// Unsatisfied returns the descriptions of the expectations whose count is out
// of bounds.
func (c *ExpectBehaviours[A]) Unsatisfied() []string {
	var descriptions []string

	for _, behaviour := range c.behaviours {
		if !behaviour.IsSaturated() {
			descriptions = append(descriptions, behaviour.Describe())
		}
	}

	return descriptions
}

// GivenBehaviours holds the given behaviours registered for one method of one
// interface usage of a mock, in registration order.
type GivenBehaviours[A, R any] struct {
	t          TestReporter
	behaviours []*GivenBehaviour[A, R]
}

// NewGivenBehaviours creates an empty collection reporting dispatch failures to t.
func NewGivenBehaviours[A, R any](t TestReporter) *GivenBehaviours[A, R] {
	return &GivenBehaviours[A, R]{t: t}
}

// Add appends a behaviour after all previously added ones.
func (c *GivenBehaviours[A, R]) Add(behaviour *GivenBehaviour[A, R]) {
	c.behaviours = append(c.behaviours, behaviour)
}

// Dispatch answers a call: the first behaviour in registration order whose
// matcher accepts the arguments produces the return value. The value is computed
// before the behaviour is removed for being saturated. A call no behaviour
// accepts is a test failure listing the remaining behaviours.
func (c *GivenBehaviours[A, R]) Dispatch(args A) R {
	for i, behaviour := range c.behaviours {
		if !behaviour.Matches(args) {
			continue
		}

		result := behaviour.ReturnValue(args)

		if behaviour.IsSaturated() {
			c.behaviours = append(c.behaviours[:i:i], c.behaviours[i+1:]...)
		}

		return result
	}

	fail(c.t, noMatchingGivenMessage(c.Remaining()))

	var zero R

	return zero
}

// Len returns the number of behaviours still able to answer calls.
func (c *GivenBehaviours[A, R]) Len() int {
	return len(c.behaviours)
}

// Remaining returns the descriptions of the behaviours still registered.
func (c *GivenBehaviours[A, R]) Remaining() []string {
	descriptions := make([]string, 0, len(c.behaviours))

	for _, behaviour := range c.behaviours {
		descriptions = append(descriptions, behaviour.Describe())
	}

	return descriptions
}

// Reset drops all behaviours.
func (c *GivenBehaviours[A, R]) Reset() {
	c.behaviours = nil
}

func noMatchingGivenMessage(remaining []string) string {
	var builder strings.Builder

	builder.WriteString("No matching given! statement found among the remaining ones:")

	for _, description := range remaining {
		_, _ = fmt.Fprintf(&builder, "\n\t%s", description)
	}

	return builder.String()
}
