package generate

import (
	"bytes"
	"fmt"
	"text/template"
)

// TemplateRegistry holds the parsed text templates of the mocks file.
// Create a registry using NewTemplateRegistry() to initialize all templates.
type TemplateRegistry struct {
	headerTmpl          *template.Template
	usageTypesTmpl      *template.Template
	mockStructTmpl      *template.Template
	constructorTmpl     *template.Template
	addMethodsTmpl      *template.Template
	managementTmpl      *template.Template
	interfaceMethodTmpl *template.Template
	assertionsTmpl      *template.Template
}

// NewTemplateRegistry creates a registry with all templates parsed.
// Templates are hardcoded constants, so parsing cannot fail at runtime.
func NewTemplateRegistry() *TemplateRegistry {
	registry := &TemplateRegistry{}

	templates := []struct {
		target  **template.Template
		name    string
		content string
	}{
		{&registry.headerTmpl, "header", tmplHeader},
		{&registry.usageTypesTmpl, "usageTypes", tmplUsageTypes},
		{&registry.mockStructTmpl, "mockStruct", tmplMockStruct},
		{&registry.constructorTmpl, "constructor", tmplConstructor},
		{&registry.addMethodsTmpl, "addMethods", tmplAddMethods},
		{&registry.managementTmpl, "management", tmplManagement},
		{&registry.interfaceMethodTmpl, "interfaceMethod", tmplInterfaceMethod},
		{&registry.assertionsTmpl, "assertions", tmplAssertions},
	}

	funcs := template.FuncMap{"inc": func(i int) int { return i + 1 }}

	for _, def := range templates {
		*def.target = template.Must(template.New(def.name).Funcs(funcs).Parse(def.content))
	}

	return registry
}

// WriteAddMethods writes the methods registering behaviours on a mock.
func (r *TemplateRegistry) WriteAddMethods(buf *bytes.Buffer, data any) {
	execute(r.addMethodsTmpl, buf, data)
}

// WriteAssertions writes the compile-time interface assertions of a mock.
func (r *TemplateRegistry) WriteAssertions(buf *bytes.Buffer, data any) {
	execute(r.assertionsTmpl, buf, data)
}

// WriteConstructor writes a mock constructor.
func (r *TemplateRegistry) WriteConstructor(buf *bytes.Buffer, data any) {
	execute(r.constructorTmpl, buf, data)
}

// WriteHeader writes the package clause and imports.
func (r *TemplateRegistry) WriteHeader(buf *bytes.Buffer, data any) {
	execute(r.headerTmpl, buf, data)
}

// WriteInterfaceMethod writes one mocked interface method.
func (r *TemplateRegistry) WriteInterfaceMethod(buf *bytes.Buffer, data any) {
	execute(r.interfaceMethodTmpl, buf, data)
}

// WriteManagement writes the verification and reset methods of a mock.
func (r *TemplateRegistry) WriteManagement(buf *bytes.Buffer, data any) {
	execute(r.managementTmpl, buf, data)
}

// WriteMockStruct writes a mock struct type.
func (r *TemplateRegistry) WriteMockStruct(buf *bytes.Buffer, data any) {
	execute(r.mockStructTmpl, buf, data)
}

// WriteUsageTypes writes the argument and result types of one interface usage.
func (r *TemplateRegistry) WriteUsageTypes(buf *bytes.Buffer, data any) {
	execute(r.usageTypesTmpl, buf, data)
}

const (
	tmplHeader = `{{.Header}}package {{.PackageName}}
{{if .Imports}}
import (
{{- range .Imports}}
	{{.Alias}} "{{.Path}}"
{{- end}}
)
{{end}}`

	tmplUsageTypes = `{{range .Methods}}
// {{.ArgsType}} holds the arguments of a call to {{$.Type}}.{{.Name}}.
type {{.ArgsType}} struct {
{{- range .Params}}
	{{.Field}} {{.FieldType}}
{{- end}}
}
{{if eq (len .Results) 1}}
// {{.ResultsType}} is the result of {{$.Type}}.{{.Name}}.
type {{.ResultsType}} = {{index .Results 0}}
{{else if .Results}}
// {{.ResultsType}} holds the results of {{$.Type}}.{{.Name}}.
type {{.ResultsType}} struct {
{{- range $i, $r := .Results}}
	R{{inc $i}} {{$r}}
{{- end}}
}
{{else}}
// {{.ResultsType}} is the empty result of {{$.Type}}.{{.Name}}.
type {{.ResultsType}} = struct{}
{{end}}{{end}}`

	tmplMockStruct = `
// {{.TypeName}} mocks {{.Interfaces}}. It is not safe for concurrent use.
{{- range .Attributes}}
//{{.}}
{{- end}}
type {{.TypeName}} struct {
	mockState *{{.Runtime}}.MockState
{{- range .Methods}}
	{{.GivenField}} *{{$.Runtime}}.GivenBehaviours[{{.ArgsType}}, {{.ResultsType}}]
	{{.ExpectField}} *{{$.Runtime}}.ExpectBehaviours[{{.ArgsType}}]
{{- end}}
}
`

	tmplConstructor = `
// {{.Constructor}} creates a {{.TypeName}} that reports failures to t.
func {{.Constructor}}(t {{.Runtime}}.TestReporter) *{{.TypeName}} {
	state := {{.Runtime}}.NewMockState(t, "{{.TypeName}}")

	return &{{.TypeName}}{
		mockState: state,
{{- range .Methods}}
		{{.GivenField}}: {{$.Runtime}}.TrackGivenBehaviours[{{.ArgsType}}, {{.ResultsType}}](state),
		{{.ExpectField}}: {{$.Runtime}}.TrackExpectBehaviours[{{.ArgsType}}](state),
{{- end}}
	}
}
`

	tmplAddMethods = `{{range .Methods}}
// {{.AddGiven}} adds a given behaviour for {{.Interface}}.{{.Name}}.
func (m *{{$.TypeName}}) {{.AddGiven}}(behaviour *{{$.Runtime}}.GivenBehaviour[{{.ArgsType}}, {{.ResultsType}}]) {
	m.{{.GivenField}}.Add(behaviour)
}

// {{.AddExpect}} adds an expected interaction with {{.Interface}}.{{.Name}}.
func (m *{{$.TypeName}}) {{.AddExpect}}(behaviour *{{$.Runtime}}.ExpectBehaviour[{{.ArgsType}}]) {
	m.{{.ExpectField}}.Add(behaviour)
}
{{end}}`

	tmplManagement = `
// AreExpectedBehavioursSatisfied reports whether every expectation is within its bounds.
func (m *{{.TypeName}}) AreExpectedBehavioursSatisfied() bool {
	return m.mockState.AreExpectedBehavioursSatisfied()
}

// ResetExpectedBehaviours drops all expectations.
func (m *{{.TypeName}}) ResetExpectedBehaviours() {
	m.mockState.ResetExpectedBehaviours()
}

// ResetGivenBehaviours drops all given behaviours.
func (m *{{.TypeName}}) ResetGivenBehaviours() {
	m.mockState.ResetGivenBehaviours()
}

// ShouldVerifyOnDrop sets whether expectations are verified when the test ends.
func (m *{{.TypeName}}) ShouldVerifyOnDrop(verify bool) {
	m.mockState.ShouldVerifyOnDrop(verify)
}

// Verify fails the test if any expectation is out of its bounds.
func (m *{{.TypeName}}) Verify() {
	m.mockState.Verify()
}
`

	tmplInterfaceMethod = `
func (m *{{.Mock}}) {{.Name}}({{range $i, $p := .Params}}{{if $i}}, {{end}}{{$p.Name}} {{$p.Decl}}{{end}}){{.ResultsDecl}} {
	args := {{.ArgsType}}{ {{- range $i, $p := .Params}}{{if $i}}, {{end}}{{$p.Field}}: {{$p.Name}}{{end -}} }
	m.{{.ExpectField}}.Record(args)
{{- if eq (len .Results) 0}}
	m.{{.GivenField}}.Dispatch(args)
{{- else if eq (len .Results) 1}}

	return m.{{.GivenField}}.Dispatch(args)
{{- else}}
	results := m.{{.GivenField}}.Dispatch(args)

	return {{range $i, $r := .Results}}{{if $i}}, {{end}}results.R{{inc $i}}{{end}}
{{- end}}
}
`

	tmplAssertions = `
var ({{range .Assertions}}
	_ {{.}} = (*{{$.TypeName}})(nil)
{{- end}}
)
`
)

func execute(tmpl *template.Template, buf *bytes.Buffer, data any) {
	err := tmpl.Execute(buf, data)
	if err != nil {
		panic(fmt.Sprintf("failed to execute %s template: %v", tmpl.Name(), err))
	}
}
