// Package dsl holds the statement model of the behaviour DSL and its parser.
//
// The DSL has three macros: new_mock! requests a mock type, given! registers
// stubbed behaviours and expect_interactions! registers expected calls.
package dsl

import (
	"strconv"
	"strings"
)

// BehaviourMatcher decides which calls a statement applies to.
type BehaviourMatcher struct {
	Kind  MatcherKind
	Exprs []string
}

// String renders the matcher as written after the method name.
func (m BehaviourMatcher) String() string {
	if m.Kind == MatchExplicit {
		return " " + strings.Join(m.Exprs, "")
	}

	return "(" + strings.Join(m.Exprs, ", ") + ")"
}

// Binding is the set of values bound at the top of a given! or
// expect_interactions! block, shared by all of its statements.
type Binding struct {
	BlockID int
	Fields  []BindingField
}

// BindingField is one "bind name: Type = init;" line.
type BindingField struct {
	Name string
	Type string
	Init string
}

// ExpectBlock is a parsed expect_interactions! macro.
type ExpectBlock struct {
	Binding    Binding
	Statements []ExpectStatement
}

// ExpectRepeat bounds the number of calls an expectation must see.
type ExpectRepeat struct {
	Kind    ExpectRepeatKind
	Bounds  []string
	Keyword string
}

// String renders the repeat clause.
func (r ExpectRepeat) String() string {
	switch r.Keyword {
	case keywordOnce, keywordNever:
		return r.Keyword
	}

	return r.Keyword + " " + strings.Join(r.Bounds, ", ")
}

// ExpectRepeatKind enumerates the expectation repeat clauses.
type ExpectRepeatKind int

// ExpectRepeatKind values.
const (
	RepeatTimes ExpectRepeatKind = iota
	RepeatAtLeast
	RepeatAtMost
	RepeatBetween
)

// ExpectStatement is one expected interaction.
type ExpectStatement struct {
	BlockID int
	StmtID  int
	Target  Target
	Method  string
	Matcher BehaviourMatcher
	Repeat  ExpectRepeat
	Pos     int
}

// String renders the statement in DSL form.
func (s ExpectStatement) String() string {
	return s.Target.String() + s.Method + s.Matcher.String() + " " + s.Repeat.String()
}

// GivenBlock is a parsed given! macro.
type GivenBlock struct {
	Binding    Binding
	Statements []GivenStatement
}

// GivenRepeat limits how often a given behaviour answers. An empty Times means
// always.
type GivenRepeat struct {
	Times   string
	Keyword string
}

// Always reports whether the behaviour never saturates.
func (r GivenRepeat) Always() bool {
	return r.Keyword == keywordAlways
}

// String renders the repeat clause.
func (r GivenRepeat) String() string {
	if r.Keyword == keywordTimes {
		return r.Keyword + " " + r.Times
	}

	return r.Keyword
}

// GivenStatement is one stubbed behaviour.
type GivenStatement struct {
	BlockID int
	StmtID  int
	Target  Target
	Method  string
	Matcher BehaviourMatcher
	Return  Return
	Repeat  GivenRepeat
	Pos     int
}

// String renders the statement in DSL form.
func (s GivenStatement) String() string {
	return s.Target.String() + s.Method + s.Matcher.String() + " " + s.Return.String() + " " + s.Repeat.String()
}

// MatcherKind distinguishes whole-call predicates from per-argument ones.
type MatcherKind int

// MatcherKind values.
const (
	MatchPerArgument MatcherKind = iota
	MatchExplicit
)

// RequestedMock is a parsed new_mock! macro.
type RequestedMock struct {
	Traits     []TraitRef
	Attributes []string
	TypeName   string
	Explicit   bool
	// Var is the variable the mock is assigned to, when the macro is the right
	// hand side of a short variable declaration or assignment.
	Var string
	Pos int
}

// DefaultMockName is the type name of a mock requested without "for Name".
func DefaultMockName(pos int) string {
	return "Mock" + strconv.Itoa(pos)
}

// Return says what a given behaviour produces.
type Return struct {
	Kind    ReturnKind
	Exprs   []string
	Keyword string
}

// String renders the then clause.
func (r Return) String() string {
	if len(r.Exprs) == 0 {
		return r.Keyword
	}

	return r.Keyword + " " + strings.Join(r.Exprs, ", ")
}

// ReturnKind enumerates the then clauses.
type ReturnKind int

// ReturnKind values.
const (
	ReturnFromValue ReturnKind = iota
	ReturnFromCall
	ReturnFromSpy
	ReturnPanic
)

// Target names the mock a statement applies to and, in the
// "<mock as Trait>::" form, the interface usage the method belongs to.
type Target struct {
	MockVar string
	Trait   *TraitRef
}

// String renders the target prefix, up to and including the separator.
func (t Target) String() string {
	if t.Trait == nil {
		return t.MockVar + "."
	}

	return "<" + t.MockVar + " as " + t.Trait.String() + ">::"
}

// TraitRef is a use-site reference to a mockable interface.
type TraitRef struct {
	Package  string
	Name     string
	Args     []string
	Bindings []TypeBinding
	Pos      int
}

// QualifiedName is the reference without type arguments.
func (r TraitRef) QualifiedName() string {
	if r.Package == "" {
		return r.Name
	}

	return r.Package + "." + r.Name
}

// String renders the reference as written.
func (r TraitRef) String() string {
	if len(r.Args) == 0 && len(r.Bindings) == 0 {
		return r.QualifiedName()
	}

	args := make([]string, 0, len(r.Args)+len(r.Bindings))
	args = append(args, r.Args...)

	for _, b := range r.Bindings {
		args = append(args, b.Name+"="+b.Type)
	}

	return r.QualifiedName() + "[" + strings.Join(args, ", ") + "]"
}

// TypeBinding binds a type parameter by name: the Name=Type form.
type TypeBinding struct {
	Name string
	Type string
}
