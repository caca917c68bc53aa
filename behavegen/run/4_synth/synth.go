// Package synth turns parsed given and expect statements into the Go code that
// builds their runtime behaviours.
package synth

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	dsl "github.com/toejough/behave/behavegen/run/1_dsl"
	registry "github.com/toejough/behave/behavegen/run/3_registry"
)

// Call says which mock method a statement is registered on.
type Call struct {
	// Mock is the expression of the mock the statement targets.
	Mock    string
	TraitID int
	Method  registry.Signature
	// Runtime is the name the runtime package is imported as.
	Runtime string
}

// Block wraps the behaviour registrations of one given! or
// expect_interactions! block, binding its values once for all of them.
func Block(binding dsl.Binding, registrations []string) string {
	var w codeWriter

	w.pf("{\n")
	w.pf("bound := &%s{", BindingType(binding.BlockID))

	for i, field := range binding.Fields {
		if i > 0 {
			w.pf(", ")
		}

		w.pf("%s: %s", field.Name, field.Init)
	}

	w.pf("}\n_ = bound\n")

	for _, registration := range registrations {
		w.pf("%s\n", registration)
	}

	w.pf("}")

	return w.String()
}

// BindingDecl declares the struct type of a block's bound values.
func BindingDecl(binding dsl.Binding) string {
	var w codeWriter

	w.pf("type %s struct {\n", BindingType(binding.BlockID))

	for _, field := range binding.Fields {
		w.pf("\t%s %s\n", field.Name, field.Type)
	}

	w.pf("}\n")

	return w.String()
}

// Expect renders the registration of an expectation.
func Expect(stmt dsl.ExpectStatement, call Call) (string, error) {
	matcher, err := matcherFunc(stmt.Matcher, call)
	if err != nil {
		return "", err
	}

	bounds := strings.Join(stmt.Repeat.Bounds, ", ")
	setter := map[dsl.ExpectRepeatKind]string{
		dsl.RepeatTimes:   "Times",
		dsl.RepeatAtLeast: "AtLeast",
		dsl.RepeatAtMost:  "AtMost",
		dsl.RepeatBetween: "Between",
	}[stmt.Repeat.Kind]

	var w codeWriter

	w.pf("%s.%s(%s.NewExpectBehaviour[%s](\n",
		call.Mock, AddExpectMethod(call.TraitID, call.Method.Name), call.Runtime, ArgsType(call.TraitID, call.Method.Name))
	w.pf("%d, %s, bound,\n", stmt.StmtID, strconv.Quote(stmt.String()))
	w.pf("%s,\n", matcher)
	w.pf(").%s(%s))", setter, bounds)

	return w.String(), nil
}

// Given renders the registration of a given behaviour.
func Given(stmt dsl.GivenStatement, call Call) (string, error) {
	matcher, err := matcherFunc(stmt.Matcher, call)
	if err != nil {
		return "", err
	}

	returner, err := returnFunc(stmt, call)
	if err != nil {
		return "", err
	}

	argsType := ArgsType(call.TraitID, call.Method.Name)
	resultsType := ResultsType(call.TraitID, call.Method.Name)

	var w codeWriter

	w.pf("%s.%s(%s.NewGivenBehaviour[%s, %s](\n",
		call.Mock, AddGivenMethod(call.TraitID, call.Method.Name), call.Runtime, argsType, resultsType)
	w.pf("%d, %s, bound,\n", stmt.StmtID, strconv.Quote(stmt.String()))
	w.pf("%s,\n", matcher)
	w.pf("%s,\n", returner)
	w.pf(")")

	if !stmt.Repeat.Always() {
		w.pf(".Times(%s)", stmt.Repeat.Times)
	}

	w.pf(")")

	return w.String(), nil
}

// Errors returned when a statement does not fit its method.
var (
	ErrMatcherArity      = errors.New("wrong number of argument matchers")
	ErrReturnArity       = errors.New("wrong number of return values")
	ErrSpyNotImplemented = errors.New("then_spy_on_object is not implemented yet")
)

type codeWriter struct {
	buf bytes.Buffer
}

// pf writes a formatted string to the buffer.
func (w *codeWriter) pf(format string, args ...any) {
	fmt.Fprintf(&w.buf, format, args...)
}

func (w *codeWriter) String() string {
	return w.buf.String()
}

// argList renders the curried arguments as call arguments, spreading a
// variadic tail.
func argList(method registry.Signature) string {
	args := make([]string, 0, len(method.Params))

	for i := range method.Params {
		arg := "args." + ArgField(i)
		if method.Variadic && i == len(method.Params)-1 {
			arg += "..."
		}

		args = append(args, arg)
	}

	return strings.Join(args, ", ")
}

func matcherFunc(matcher dsl.BehaviourMatcher, call Call) (string, error) {
	method := call.Method
	argsType := ArgsType(call.TraitID, method.Name)

	if matcher.Kind == dsl.MatchExplicit {
		args := []string{"args"}
		for i := range method.Params {
			args = append(args, "args."+ArgField(i))
		}

		return fmt.Sprintf("func(args %s) bool {\nreturn %s.MatchExplicit(%s, %s)\n}",
			argsType, call.Runtime, strings.Join(matcher.Exprs, ""), strings.Join(args, ", ")), nil
	}

	if len(matcher.Exprs) != len(method.Params) {
		return "", fmt.Errorf("%w: %s takes %d arguments, got %d matchers",
			ErrMatcherArity, method.Name, len(method.Params), len(matcher.Exprs))
	}

	if len(method.Params) == 0 {
		return fmt.Sprintf("func(%s) bool {\nreturn true\n}", argsType), nil
	}

	conds := make([]string, 0, len(matcher.Exprs))
	for i, expr := range matcher.Exprs {
		conds = append(conds, fmt.Sprintf("%s.MatchArg(%s, args.%s)", call.Runtime, expr, ArgField(i)))
	}

	return fmt.Sprintf("func(args %s) bool {\nreturn %s\n}", argsType, strings.Join(conds, " &&\n")), nil
}

// resultTemps names temporaries for n results.
func resultTemps(n int) []string {
	temps := make([]string, 0, n)
	for i := range n {
		temps = append(temps, "r"+strconv.Itoa(i+1))
	}

	return temps
}

func resultsLiteral(resultsType string, values []string) string {
	fields := make([]string, 0, len(values))
	for i, value := range values {
		fields = append(fields, ResultField(i)+": "+value)
	}

	return resultsType + "{" + strings.Join(fields, ", ") + "}"
}

//nolint:cyclop // One branch per return kind and result count
func returnFunc(stmt dsl.GivenStatement, call Call) (string, error) {
	method := call.Method
	argsType := ArgsType(call.TraitID, method.Name)
	resultsType := ResultsType(call.TraitID, method.Name)
	head := fmt.Sprintf("func(args %s) %s {\n", argsType, resultsType)
	results := len(method.Results)

	switch stmt.Return.Kind {
	case dsl.ReturnFromSpy:
		return "", ErrSpyNotImplemented
	case dsl.ReturnPanic:
		return head + fmt.Sprintf("panic(%s)\n}", strconv.Quote("given behaviour panicked: "+stmt.String())), nil
	case dsl.ReturnFromCall:
		invocation := fmt.Sprintf("(%s)(%s)", stmt.Return.Exprs[0], argList(method))

		switch results {
		case 0:
			return head + invocation + "\nreturn " + resultsType + "{}\n}", nil
		case 1:
			return head + "return " + invocation + "\n}", nil
		}

		temps := resultTemps(results)

		return head + strings.Join(temps, ", ") + " := " + invocation + "\nreturn " +
			resultsLiteral(resultsType, temps) + "\n}", nil
	}

	values := stmt.Return.Exprs

	switch {
	case results == 0 && len(values) == 0:
		return head + "return " + resultsType + "{}\n}", nil
	case results == 1 && len(values) == 1:
		return head + "return " + values[0] + "\n}", nil
	case results > 1 && len(values) == results:
		return head + "return " + resultsLiteral(resultsType, values) + "\n}", nil
	case results > 1 && len(values) == 1:
		temps := resultTemps(results)

		return head + strings.Join(temps, ", ") + " := " + values[0] + "\nreturn " +
			resultsLiteral(resultsType, temps) + "\n}", nil
	}

	return "", fmt.Errorf("%w: %s returns %d values, got %d", ErrReturnArity, method.Name, results, len(values))
}
