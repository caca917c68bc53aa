package synth

import "strconv"

// AddExpectMethod names the mock method registering an expectation.
func AddExpectMethod(traitID int, method string) string {
	return "AddExpectBehaviourForTrait" + strconv.Itoa(traitID) + method
}

// AddGivenMethod names the mock method registering a given behaviour.
func AddGivenMethod(traitID int, method string) string {
	return "AddGivenBehaviourForTrait" + strconv.Itoa(traitID) + method
}

// ArgsType names the struct holding a call's arguments.
func ArgsType(traitID int, method string) string {
	return "Trait" + strconv.Itoa(traitID) + method + "Args"
}

// ArgField names the field holding argument i, counted from 0.
func ArgField(i int) string {
	return "A" + strconv.Itoa(i+1)
}

// BindingType names the struct of a block's bound values.
func BindingType(blockID int) string {
	return "binding" + strconv.Itoa(blockID)
}

// Constructor names the function creating a mock.
func Constructor(mockType string) string {
	return "New" + mockType
}

// ExpectField names the mock field holding a method's expectations.
func ExpectField(traitID int, method string) string {
	return "expectBehavioursForTrait" + strconv.Itoa(traitID) + method
}

// GivenField names the mock field holding a method's given behaviours.
func GivenField(traitID int, method string) string {
	return "givenBehavioursForTrait" + strconv.Itoa(traitID) + method
}

// ResultField names the field holding result i, counted from 0, when a
// method has several results.
func ResultField(i int) string {
	return "R" + strconv.Itoa(i+1)
}

// ResultsType names the type of a call's results.
func ResultsType(traitID int, method string) string {
	return "Trait" + strconv.Itoa(traitID) + method + "Results"
}
