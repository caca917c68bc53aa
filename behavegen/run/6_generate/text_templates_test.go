//nolint:testpackage // Tests internal functions
package generate

import (
	"bytes"
	"strings"
	"testing"
)

//nolint:tparallel,paralleltest // Tests panic behavior which needs sequential execution per subtest
func TestTemplateRegistry_WritePanicPaths(t *testing.T) {
	t.Parallel()

	registry := NewTemplateRegistry()

	tests := []struct {
		name  string
		write func(buf *bytes.Buffer, data any)
	}{
		{"addMethods", registry.WriteAddMethods},
		{"assertions", registry.WriteAssertions},
		{"constructor", registry.WriteConstructor},
		{"header", registry.WriteHeader},
		{"interfaceMethod", registry.WriteInterfaceMethod},
		{"management", registry.WriteManagement},
		{"mockStruct", registry.WriteMockStruct},
		{"usageTypes", registry.WriteUsageTypes},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			defer func() {
				msg, isString := recover().(string)
				if !isString {
					t.Fatalf("%s: expected a string panic for invalid template data", testCase.name)
				}

				if !strings.Contains(msg, "failed to execute "+testCase.name+" template") {
					t.Errorf("%s: unexpected panic message: %s", testCase.name, msg)
				}
			}()

			testCase.write(&bytes.Buffer{}, 42)
		})
	}
}

func TestResultsDecl(t *testing.T) {
	t.Parallel()

	tests := map[string][]string{
		"":               nil,
		" int":           {"int"},
		" (int, error)":  {"int", "error"},
		" ([]byte, int)": {"[]byte", "int"},
	}

	for want, results := range tests {
		if got := resultsDecl(results); got != want {
			t.Errorf("resultsDecl(%v) = %q, want %q", results, got, want)
		}
	}
}

func TestIsReserved(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"Verify", "ResetGivenBehaviours", "AddGivenBehaviourForTrait1Get", "mockState"} {
		if !isReserved(name) {
			t.Errorf("%s should be reserved", name)
		}
	}

	for _, name := range []string{"Get", "Verifier", "AddGiven"} {
		if isReserved(name) {
			t.Errorf("%s should not be reserved", name)
		}
	}
}
