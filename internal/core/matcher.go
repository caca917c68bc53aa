package core

import (
	"errors"
	"fmt"
	"reflect"
)

// Matcher is the matcher protocol shared with gomega: any gomega matcher can be
// used as a predicate in a behaviour statement.
type Matcher interface {
	Match(actual any) (success bool, err error)
	FailureMessage(actual any) string
}

// Any returns a matcher that matches any value.
func Any() Matcher {
	return anyMatcher{}
}

// MatchArg reports whether a single argument satisfies a per-argument predicate.
//
// The predicate may be a bool, a Matcher, a func(T) bool, a func(T) error, any
// other single-parameter function accepting the argument (its results are
// interpreted by Truthy), or a plain value compared for equality after
// conversion to the argument's type. A bool predicate on a bool argument is a
// value and is compared for equality.
func MatchArg[T any](predicate any, actual T) bool {
	switch typed := predicate.(type) {
	case bool:
		if flag, ok := any(actual).(bool); ok {
			return flag == typed
		}

		return typed
	case func(T) bool:
		return typed(actual)
	case func(T) error:
		return typed(actual) == nil
	case Matcher:
		ok, err := typed.Match(actual)

		return err == nil && ok
	}

	fn := reflect.ValueOf(predicate)
	if fn.Kind() == reflect.Func && fn.Type().NumIn() == 1 && !fn.Type().IsVariadic() {
		arg, ok := assignable(actual, fn.Type().In(0))
		if ok {
			return truthyResults(fn.Call([]reflect.Value{arg}))
		}
	}

	ok, _ := MatchValue(actual, predicate)

	return ok
}

// MatchExplicit reports whether a call satisfies an explicit predicate.
//
// curried is the whole argument struct, args are the same arguments spread. The
// predicate may be a bool, a Matcher applied to the argument struct, a function
// taking the argument struct, or a function taking the spread arguments.
func MatchExplicit(predicate any, curried any, args ...any) bool {
	switch typed := predicate.(type) {
	case bool:
		return typed
	case Matcher:
		ok, err := typed.Match(curried)

		return err == nil && ok
	}

	fn := reflect.ValueOf(predicate)
	if fn.Kind() != reflect.Func {
		panic(fmt.Sprintf("%v: explicit matcher must be a bool, a Matcher or a function, got %T",
			errInvalidPredicate, predicate))
	}

	fnType := fn.Type()

	if fnType.NumIn() == 1 && !fnType.IsVariadic() {
		arg, ok := assignable(curried, fnType.In(0))
		if ok {
			return truthyResults(fn.Call([]reflect.Value{arg}))
		}
	}

	if fnType.NumIn() == len(args) && !fnType.IsVariadic() {
		in := make([]reflect.Value, len(args))

		for i, a := range args {
			v, ok := assignable(a, fnType.In(i))
			if !ok {
				panic(fmt.Sprintf("%v: argument %d of type %T cannot be passed as %v",
					errInvalidPredicate, i+1, a, fnType.In(i)))
			}

			in[i] = v
		}

		return truthyResults(fn.Call(in))
	}

	panic(fmt.Sprintf("%v: %v accepts neither the argument struct nor %d arguments",
		errInvalidPredicate, fnType, len(args)))
}

// MatchValue checks if actual matches expected.
// If expected implements the Matcher interface, uses its Match method.
// Otherwise expected is converted to actual's type when possible and compared
// with reflect.DeepEqual.
// Returns (success, errorMessage). If success is true, errorMessage is empty.
func MatchValue(actual, expected any) (bool, string) {
	if matcher, ok := expected.(Matcher); ok {
		success, err := matcher.Match(actual)
		if err != nil {
			return false, err.Error()
		}

		if !success {
			return false, matcher.FailureMessage(actual)
		}

		return true, ""
	}

	if expected == nil {
		if isNil(actual) {
			return true, ""
		}

		return false, fmt.Sprintf("expected nil, got %v", actual)
	}

	if actual != nil {
		want := reflect.ValueOf(expected)
		actualType := reflect.TypeOf(actual)

		if want.Type() != actualType && want.Type().ConvertibleTo(actualType) && convertibleKinds(want.Kind(), actualType.Kind()) {
			converted := want.Convert(actualType)
			// lossy conversions (2.5 -> 2) must not produce a match
			if converted.Convert(want.Type()).Interface() == expected {
				expected = converted.Interface()
			}
		}
	}

	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

// Satisfies returns a matcher that uses a predicate function to check for a match.
// The predicate should return nil if the value matches, or an error describing
// the mismatch if it does not.
func Satisfies[T any](predicate func(T) error) Matcher {
	return &satisfiesMatcher[T]{predicate: predicate}
}

// Truthy interprets the result of a predicate as a match decision.
// A bool is taken as is, a nil error (or nil) matches, a non-nil error does not.
// Anything else is a misuse of the DSL and panics.
func Truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case bool:
		return typed
	case error:
		return false
	}

	panic(fmt.Sprintf("%v: cannot interpret %T as a match result", errInvalidPredicate, value))
}

// unexported variables.
var (
	errInvalidPredicate = errors.New("invalid predicate")
	errTypeMismatch     = errors.New("type mismatch")
)

// anyMatcher is the implementation of the Any() matcher.
type anyMatcher struct{}

// FailureMessage returns an empty string since Any() always matches.
func (anyMatcher) FailureMessage(any) string {
	return ""
}

// Match always returns true - matches any value.
func (anyMatcher) Match(any) (bool, error) {
	return true, nil
}

type satisfiesMatcher[T any] struct {
	predicate func(T) error
	lastErr   error
}

func (m *satisfiesMatcher[T]) FailureMessage(actual any) string {
	if m.lastErr != nil {
		return fmt.Sprintf("value %v does not satisfy predicate: %v", actual, m.lastErr)
	}

	return fmt.Sprintf("value %v does not satisfy predicate", actual)
}

func (m *satisfiesMatcher[T]) Match(actual any) (bool, error) {
	val, ok := actual.(T)
	if !ok {
		return false, fmt.Errorf("%w: expected %T, got %T", errTypeMismatch, *new(T), actual)
	}

	m.lastErr = m.predicate(val)

	return m.lastErr == nil, nil
}

func assignable(value any, target reflect.Type) (reflect.Value, bool) {
	if value == nil {
		switch target.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(target), true
		default:
			return reflect.Value{}, false
		}
	}

	v := reflect.ValueOf(value)
	if !v.Type().AssignableTo(target) {
		return reflect.Value{}, false
	}

	return v, true
}

// convertibleKinds limits implicit conversion to the numeric and string
// families so that, for instance, an int literal never becomes a string.
func convertibleKinds(from, to reflect.Kind) bool {
	numeric := func(k reflect.Kind) bool {
		return k >= reflect.Int && k <= reflect.Complex128
	}

	if numeric(from) && numeric(to) {
		return true
	}

	return from == reflect.String && to == reflect.String
}

func isNil(value any) bool {
	if value == nil {
		return true
	}

	v := reflect.ValueOf(value)

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

func truthyResults(out []reflect.Value) bool {
	switch len(out) {
	case 1:
		return Truthy(out[0].Interface())
	case 2: //nolint:mnd // (bool, error) pairs
		if err, ok := out[1].Interface().(error); ok && err != nil {
			return false
		}

		return Truthy(out[0].Interface())
	default:
		panic(fmt.Sprintf("%v: predicate returns %d values", errInvalidPredicate, len(out)))
	}
}
