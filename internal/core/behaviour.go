package core

import (
	"fmt"
	"math"
)

// ExpectBehaviour is an expected interaction: it counts the calls whose
// arguments satisfy its matcher and is satisfied while that count lies in the
// inclusive range [min, max].
type ExpectBehaviour[A any] struct {
	stmtID      int
	description string
	binding     any
	matcher     func(A) bool
	numMatches  int
	minMatches  int
	maxMatches  int
}

// NewExpectBehaviour creates an expectation with no bounds on its call count.
func NewExpectBehaviour[A any](stmtID int, description string, binding any, matcher func(A) bool) *ExpectBehaviour[A] {
	return &ExpectBehaviour[A]{
		stmtID:      stmtID,
		description: description,
		binding:     binding,
		matcher:     matcher,
		maxMatches:  math.MaxInt,
	}
}

// AtLeast requires at least n matching calls.
func (b *ExpectBehaviour[A]) AtLeast(n int) *ExpectBehaviour[A] {
	b.minMatches, b.maxMatches = n, math.MaxInt

	return b
}

// AtMost allows at most n matching calls.
func (b *ExpectBehaviour[A]) AtMost(n int) *ExpectBehaviour[A] {
	b.minMatches, b.maxMatches = 0, n

	return b
}

// Between requires between lo and hi matching calls, both inclusive.
func (b *ExpectBehaviour[A]) Between(lo, hi int) *ExpectBehaviour[A] {
	if lo > hi {
		panic(fmt.Sprintf("invalid bounds for %s: between %d, %d", b.description, lo, hi))
	}

	b.minMatches, b.maxMatches = lo, hi

	return b
}

// Binding returns the bound values shared by the statements of the block.
func (b *ExpectBehaviour[A]) Binding() any {
	return b.binding
}

// Count returns the number of matching calls seen so far.
func (b *ExpectBehaviour[A]) Count() int {
	return b.numMatches
}

// Describe renders the statement the expectation was created from.
func (b *ExpectBehaviour[A]) Describe() string {
	return b.description
}

// IsSaturated reports whether the number of matches is within bounds.
func (b *ExpectBehaviour[A]) IsSaturated() bool {
	return b.minMatches <= b.numMatches && b.numMatches <= b.maxMatches
}

// Matches evaluates the matcher and counts the call on success.
func (b *ExpectBehaviour[A]) Matches(args A) bool {
	if !b.matcher(args) {
		return false
	}

	b.numMatches++

	return true
}

// StmtID returns the statement id.
func (b *ExpectBehaviour[A]) StmtID() int {
	return b.stmtID
}

// Times requires exactly n matching calls.
func (b *ExpectBehaviour[A]) Times(n int) *ExpectBehaviour[A] {
	b.minMatches, b.maxMatches = n, n

	return b
}

// GivenBehaviour is a stubbed response: when its matcher accepts a call it
// produces the call's return value. A limited behaviour saturates after its
// limit of matches; an unlimited one never does.
type GivenBehaviour[A, R any] struct {
	stmtID      int
	description string
	binding     any
	matcher     func(A) bool
	returner    func(A) R
	numMatches  int
	limit       int
	limited     bool
}

// NewGivenBehaviour creates an unlimited given behaviour.
func NewGivenBehaviour[A, R any](
	stmtID int, description string, binding any, matcher func(A) bool, returner func(A) R,
) *GivenBehaviour[A, R] {
	return &GivenBehaviour[A, R]{
		stmtID:      stmtID,
		description: description,
		binding:     binding,
		matcher:     matcher,
		returner:    returner,
	}
}

// Binding returns the bound values shared by the statements of the block.
func (b *GivenBehaviour[A, R]) Binding() any {
	return b.binding
}

// Describe renders the statement the behaviour was created from.
func (b *GivenBehaviour[A, R]) Describe() string {
	return b.description
}

// IsSaturated reports whether a limited behaviour has reached its limit.
func (b *GivenBehaviour[A, R]) IsSaturated() bool {
	return b.limited && b.numMatches >= b.limit
}

// Matches evaluates the matcher and counts the call on success.
func (b *GivenBehaviour[A, R]) Matches(args A) bool {
	if !b.matcher(args) {
		return false
	}

	b.numMatches++

	return true
}

// ReturnValue computes the value returned for a matched call.
func (b *GivenBehaviour[A, R]) ReturnValue(args A) R {
	return b.returner(args)
}

// StmtID returns the statement id.
func (b *GivenBehaviour[A, R]) StmtID() int {
	return b.stmtID
}

// Times limits the behaviour to n matching calls.
func (b *GivenBehaviour[A, R]) Times(n int) *GivenBehaviour[A, R] {
	b.limit, b.limited = n, true

	return b
}
