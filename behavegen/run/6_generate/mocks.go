// Package generate writes the mocks file of a package: the argument and result
// types of every interface usage and one struct per requested mock.
package generate

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"strconv"
	"strings"

	registry "github.com/toejough/behave/behavegen/run/3_registry"
	synth "github.com/toejough/behave/behavegen/run/4_synth"
	expand "github.com/toejough/behave/behavegen/run/5_expand"
)

// MocksCode renders the mocks file for everything a session collected.
func MocksCode(plan expand.Plan) ([]byte, error) {
	err := check(plan)
	if err != nil {
		return nil, err
	}

	if len(plan.Mocks) > 0 {
		plan.Imports.Touch(plan.RuntimeAlias)
	}

	templates := NewTemplateRegistry()

	var buf bytes.Buffer

	templates.WriteHeader(&buf, headerData{
		Header:      expand.GeneratedHeader,
		PackageName: plan.PackageName,
		Imports:     plan.Imports.All(),
	})

	for i, inst := range plan.Usages {
		templates.WriteUsageTypes(&buf, usageData{Type: inst.Type, Methods: methodsOf(i+1, inst, "")})
	}

	for _, mock := range plan.Mocks {
		writeMock(templates, &buf, mock, plan.RuntimeAlias)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMocks, err)
	}

	return formatted, nil
}

// Errors returned when the collected mocks cannot be generated.
var (
	ErrDuplicateMock    = errors.New("mock type is requested more than once")
	ErrInvalidMocks     = errors.New("generated mocks file is not valid Go")
	ErrReservedMethod   = errors.New("method name is reserved by the generated mock")
	ErrUnrequestedTrait = errors.New("no mock in the package implements the interface")
)

type headerData struct {
	Header      string
	PackageName string
	Imports     []registry.Import
}

type methodData struct {
	Mock        string
	Name        string
	Interface   string
	ArgsType    string
	ResultsType string
	GivenField  string
	ExpectField string
	AddGiven    string
	AddExpect   string
	Params      []paramData
	Results     []string
	ResultsDecl string
}

type mockData struct {
	TypeName    string
	Constructor string
	Runtime     string
	Interfaces  string
	Attributes  []string
	Methods     []methodData
	Assertions  []string
}

type paramData struct {
	Name  string
	Field string
	// FieldType is the type of the args field; a variadic parameter is a slice.
	FieldType string
	// Decl is the type as written in the method signature.
	Decl string
}

type usageData struct {
	Type    string
	Methods []methodData
}

// check rejects plans whose mocks could not compile or whose statements
// register on methods no mock has.
func check(plan expand.Plan) error {
	names := make(map[string]string)
	requested := make(map[int]bool)

	for _, mock := range plan.Mocks {
		if first, ok := names[mock.TypeName()]; ok {
			return fmt.Errorf("%s: %w: %s, first requested at %s", mock.Pos, ErrDuplicateMock, mock.TypeName(), first)
		}

		names[mock.TypeName()] = mock.Pos

		err := checkMethods(mock)
		if err != nil {
			return err
		}

		for _, id := range mock.IDs {
			requested[id] = true
		}
	}

	for _, target := range plan.Targets {
		if requested[target.TraitID] {
			continue
		}

		return fmt.Errorf("%s: %w: %s targets %s", target.Pos, ErrUnrequestedTrait, target.Desc,
			plan.Usages[target.TraitID-1].Type)
	}

	return nil
}

func checkMethods(mock *expand.Mock) error {
	owners := make(map[string]string)

	for _, inst := range mock.Instances {
		for _, method := range inst.Methods {
			if isReserved(method.Name) {
				return fmt.Errorf("%s: %w: %s.%s", mock.Pos, ErrReservedMethod, inst.Type, method.Name)
			}

			if owner, ok := owners[method.Name]; ok {
				return fmt.Errorf("%s: %w: %s is declared by %s and %s",
					mock.Pos, expand.ErrAmbiguousMethod, method.Name, owner, inst.Type)
			}

			owners[method.Name] = inst.Type
		}
	}

	return nil
}

func isReserved(name string) bool {
	switch name {
	case "AreExpectedBehavioursSatisfied", "ResetExpectedBehaviours", "ResetGivenBehaviours",
		"ShouldVerifyOnDrop", "Verify", "mockState":
		return true
	}

	return strings.HasPrefix(name, "AddGivenBehaviourForTrait") || strings.HasPrefix(name, "AddExpectBehaviourForTrait")
}

// methodsOf describes the methods of the usage numbered id, as implemented
// by mockType.
func methodsOf(id int, inst *registry.Instance, mockType string) []methodData {
	methods := make([]methodData, 0, len(inst.Methods))

	for _, sig := range inst.Methods {
		method := methodData{
			Mock:        mockType,
			Name:        sig.Name,
			Interface:   inst.Type,
			ArgsType:    synth.ArgsType(id, sig.Name),
			ResultsType: synth.ResultsType(id, sig.Name),
			GivenField:  synth.GivenField(id, sig.Name),
			ExpectField: synth.ExpectField(id, sig.Name),
			AddGiven:    synth.AddGivenMethod(id, sig.Name),
			AddExpect:   synth.AddExpectMethod(id, sig.Name),
			Results:     sig.Results,
			ResultsDecl: resultsDecl(sig.Results),
		}

		for i, typ := range sig.Params {
			param := paramData{Name: "arg" + strconv.Itoa(i+1), Field: synth.ArgField(i), FieldType: typ, Decl: typ}
			if sig.Variadic && i == len(sig.Params)-1 {
				param.FieldType, param.Decl = "[]"+typ, "..."+typ
			}

			method.Params = append(method.Params, param)
		}

		methods = append(methods, method)
	}

	return methods
}

func resultsDecl(results []string) string {
	switch len(results) {
	case 0:
		return ""
	case 1:
		return " " + results[0]
	}

	return " (" + strings.Join(results, ", ") + ")"
}

func writeMock(templates *TemplateRegistry, buf *bytes.Buffer, mock *expand.Mock, runtime string) {
	data := mockData{
		TypeName:    mock.TypeName(),
		Constructor: synth.Constructor(mock.TypeName()),
		Runtime:     runtime,
		Attributes:  mock.Request.Attributes,
	}

	interfaces := make([]string, 0, len(mock.Instances))

	for i, inst := range mock.Instances {
		interfaces = append(interfaces, inst.Type)
		data.Methods = append(data.Methods, methodsOf(mock.IDs[i], inst, data.TypeName)...)
	}

	data.Interfaces = strings.Join(interfaces, ", ")
	data.Assertions = interfaces

	templates.WriteMockStruct(buf, data)
	templates.WriteConstructor(buf, data)
	templates.WriteAddMethods(buf, data)
	templates.WriteManagement(buf, data)

	for _, method := range data.Methods {
		templates.WriteInterfaceMethod(buf, method)
	}

	if len(data.Assertions) > 0 {
		templates.WriteAssertions(buf, data)
	}
}
