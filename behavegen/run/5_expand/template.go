package expand

import (
	"bytes"
	"errors"
	"fmt"
	"go/scanner"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"go.uber.org/zap"

	astutil "github.com/toejough/behave/behavegen/run/0_util"
	dsl "github.com/toejough/behave/behavegen/run/1_dsl"
	load "github.com/toejough/behave/behavegen/run/2_load"
	registry "github.com/toejough/behave/behavegen/run/3_registry"
	synth "github.com/toejough/behave/behavegen/run/4_synth"
)

// GeneratedHeader starts every file behavegen writes.
const GeneratedHeader = "// Code generated by behavegen. DO NOT EDIT.\n\n"

// Expanded is a template rewritten as Go source.
type Expanded struct {
	Template string
	// Path is where the expanded file goes.
	Path   string
	Source []byte
}

// OutputPath is the file a template expands into: generated_<base>_test.go
// next to the template.
func OutputPath(templatePath string) string {
	base := filepath.Base(templatePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSuffix(base, "_test")

	return filepath.Join(filepath.Dir(templatePath), "generated_"+base+"_test.go")
}

// Macro is one parsed macro of a template. Exactly one of NewMock, Given and
// Expect is set.
type Macro struct {
	Name    string
	Pos     string
	NewMock *dsl.RequestedMock
	Given   *dsl.GivenBlock
	Expect  *dsl.ExpectBlock
}

// ScanMacros parses the macros of a template without resolving any of them.
func ScanMacros(tmpl load.Template) ([]Macro, error) {
	fset := token.NewFileSet()
	file := fset.AddFile(tmpl.Path, -1, len(tmpl.Source))
	file.SetLinesForContent([]byte(tmpl.Source))

	var macros []Macro

	pos := 0

	for {
		found, ok := nextMacro(tmpl.Source, pos)
		if !ok {
			return macros, nil
		}

		abs := file.Base() + found.start
		src := tmpl.Source[found.start:]
		parsed := Macro{Name: found.name, Pos: astutil.Position(fset, token.Pos(abs))}

		var (
			rest string
			err  error
		)

		switch found.name {
		case dsl.MacroNewMock:
			parsed.NewMock, rest, err = dsl.ParseNewMock(src, abs)
			if err == nil {
				parsed.NewMock.Var = found.assignedTo
			}
		case dsl.MacroGiven:
			parsed.Given, rest, err = dsl.ParseGiven(src, abs)
		case dsl.MacroExpect:
			parsed.Expect, rest, err = dsl.ParseExpect(src, abs)
		}

		if err != nil {
			var grammarErr *dsl.GrammarError
			if errors.As(err, &grammarErr) {
				return nil, &positionedError{pos: astutil.Position(fset, token.Pos(grammarErr.Pos)), err: err}
			}

			return nil, &positionedError{pos: parsed.Pos, err: err}
		}

		macros = append(macros, parsed)
		pos = len(tmpl.Source) - len(rest)
	}
}

// macro is an occurrence of "name!" in template source.
type macro struct {
	name  string
	start int
	// assignedTo is the variable on the left of "v := name!(...)".
	assignedTo string
}

type templateExpander struct {
	session *Session
	tmpl    load.Template
	base    int
	scope   registry.Scope
	// vars maps variables assigned from new_mock! to their mocks.
	vars     map[string]*Mock
	runtime  string
	bindings []dsl.Binding
}

func (e *templateExpander) expandExpect(src string, abs int) (string, string, error) {
	block, rest, err := dsl.ParseExpect(src, abs)
	if err != nil {
		return "", "", err
	}

	registrations := make([]string, 0, len(block.Statements))

	for _, stmt := range block.Statements {
		call, err := e.resolve(stmt.Target, stmt.Method, stmt.Pos)
		if err != nil {
			return "", "", err
		}

		code, err := synth.Expect(stmt, call)
		if err != nil {
			return "", "", e.at(stmt.Pos, err)
		}

		registrations = append(registrations, code)
		e.session.expects = append(e.session.expects, stmt)
		e.session.targets = append(e.session.targets, Target{
			StmtID: stmt.StmtID, TraitID: call.TraitID, Pos: e.session.position(stmt.Pos), Desc: stmt.String(),
		})
	}

	e.addBinding(block.Binding)

	return synth.Block(block.Binding, registrations), rest, nil
}

func (e *templateExpander) expandGiven(src string, abs int) (string, string, error) {
	block, rest, err := dsl.ParseGiven(src, abs)
	if err != nil {
		return "", "", err
	}

	registrations := make([]string, 0, len(block.Statements))

	for _, stmt := range block.Statements {
		call, err := e.resolve(stmt.Target, stmt.Method, stmt.Pos)
		if err != nil {
			return "", "", err
		}

		code, err := synth.Given(stmt, call)
		if err != nil {
			return "", "", e.at(stmt.Pos, err)
		}

		registrations = append(registrations, code)
		e.session.givens = append(e.session.givens, stmt)
		e.session.targets = append(e.session.targets, Target{
			StmtID: stmt.StmtID, TraitID: call.TraitID, Pos: e.session.position(stmt.Pos), Desc: stmt.String(),
		})
	}

	e.addBinding(block.Binding)

	return synth.Block(block.Binding, registrations), rest, nil
}

func (e *templateExpander) expandMacro(found macro, src string) (string, string, error) {
	abs := e.base + found.start

	var (
		code, rest string
		err        error
	)

	switch found.name {
	case dsl.MacroNewMock:
		code, rest, err = e.expandNewMock(src, abs, found.assignedTo)
	case dsl.MacroGiven:
		code, rest, err = e.expandGiven(src, abs)
	case dsl.MacroExpect:
		code, rest, err = e.expandExpect(src, abs)
	}

	if err != nil {
		var grammarErr *dsl.GrammarError
		if errors.As(err, &grammarErr) {
			return "", "", e.at(grammarErr.Pos, err)
		}

		if isPositioned(err) {
			return "", "", err
		}

		return "", "", e.at(abs, err)
	}

	e.session.log.Debug("expanded macro", zap.String("macro", found.name), zap.String("pos", e.session.position(abs)))

	return code, rest, nil
}

func (e *templateExpander) expandNewMock(src string, abs int, assignedTo string) (string, string, error) {
	req, rest, err := dsl.ParseNewMock(src, abs)
	if err != nil {
		return "", "", err
	}

	req.Var = assignedTo

	mock, err := e.session.requestMock(*req, e.scope)
	if err != nil {
		return "", "", err
	}

	if assignedTo != "" {
		e.vars[assignedTo] = mock
	}

	return synth.Constructor(mock.TypeName()) + "(" + e.session.cfg.Reporter + ")", rest, nil
}

func (e *templateExpander) addBinding(binding dsl.Binding) {
	e.bindings = append(e.bindings, binding)
	e.session.bindings = append(e.session.bindings, binding)
}

// at positions an error at an absolute offset.
func (e *templateExpander) at(abs int, err error) error {
	return &positionedError{pos: e.session.position(abs), err: err}
}

// finish appends the binding types, imports the runtime when statements were
// expanded, and checks the result is Go.
func (e *templateExpander) finish(body string) ([]byte, error) {
	var src strings.Builder

	src.WriteString(GeneratedHeader)
	src.WriteString(body)

	for _, binding := range e.bindings {
		src.WriteString("\n")
		src.WriteString(synth.BindingDecl(binding))
	}

	file, err := decorator.Parse(src.String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", e.tmpl.Path, ErrInvalidExpansion, err)
	}

	if len(e.bindings) > 0 && !importsPath(file, e.session.cfg.RuntimePath) {
		addImport(file, e.runtime, e.session.cfg.RuntimePath)
	}

	var buf bytes.Buffer

	err = decorator.Fprint(&buf, file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", e.tmpl.Path, ErrInvalidExpansion, err)
	}

	return buf.Bytes(), nil
}

// resolve finds the mock method a statement registers on.
func (e *templateExpander) resolve(target dsl.Target, method string, pos int) (synth.Call, error) {
	call := synth.Call{Mock: target.MockVar, Runtime: e.runtime}

	if target.Trait != nil {
		id, inst, err := e.session.instantiate(*target.Trait, e.scope)
		if err != nil {
			return call, e.at(pos, err)
		}

		if mock, ok := e.vars[target.MockVar]; ok && !mock.Requests(id) {
			return call, e.at(pos, fmt.Errorf("%w: %s is a %s, which does not implement %s",
				ErrTraitNotRequested, target.MockVar, mock.TypeName(), inst.Type))
		}

		sig, ok := inst.Method(method)
		if !ok {
			return call, e.at(pos, fmt.Errorf("%w: %s has no method %s", ErrUnknownMethod, inst.Type, method))
		}

		call.TraitID, call.Method = id, sig

		return call, nil
	}

	mock, ok := e.vars[target.MockVar]
	if !ok {
		return call, e.at(pos, fmt.Errorf("%w: %s; write <%s as Interface>::%s",
			ErrUnknownMockVar, target.MockVar, target.MockVar, method))
	}

	var owners []string

	for i, inst := range mock.Instances {
		sig, found := inst.Method(method)
		if !found {
			continue
		}

		owners = append(owners, inst.Type)
		call.TraitID, call.Method = mock.IDs[i], sig
	}

	switch len(owners) {
	case 0:
		return call, e.at(pos, fmt.Errorf("%w: %s has no method %s", ErrUnknownMethod, mock.TypeName(), method))
	case 1:
		return call, nil
	}

	return call, e.at(pos, fmt.Errorf("%w: %s is declared by %s", ErrAmbiguousMethod, method, strings.Join(owners, ", ")))
}

func (e *templateExpander) run() (*Expanded, error) {
	src := e.tmpl.Source

	var out strings.Builder

	pos := 0

	for {
		found, ok := nextMacro(src, pos)
		if !ok {
			out.WriteString(src[pos:])

			break
		}

		out.WriteString(src[pos:found.start])

		code, rest, err := e.expandMacro(found, src[found.start:])
		if err != nil {
			return nil, err
		}

		out.WriteString(code)

		pos = len(src) - len(rest)
	}

	source, err := e.finish(out.String())
	if err != nil {
		return nil, err
	}

	return &Expanded{Template: e.tmpl.Path, Path: OutputPath(e.tmpl.Path), Source: source}, nil
}

// ErrInvalidExpansion reports a template whose expansion is not valid Go.
var ErrInvalidExpansion = errors.New("expanded template is not valid Go")

type positionedError struct {
	pos string
	err error
}

func (e *positionedError) Error() string {
	return e.pos + ": " + e.err.Error()
}

func (e *positionedError) Unwrap() error {
	return e.err
}

func addImport(file *dst.File, name, path string) {
	spec := &dst.ImportSpec{Path: &dst.BasicLit{Kind: token.STRING, Value: strconv.Quote(path)}}
	if name != astutil.ImportName(path) {
		spec.Name = dst.NewIdent(name)
	}

	for _, decl := range file.Decls {
		gen, ok := decl.(*dst.GenDecl)
		if !ok || gen.Tok != token.IMPORT {
			continue
		}

		gen.Specs = append(gen.Specs, spec)
		gen.Lparen = true

		return
	}

	file.Decls = append([]dst.Decl{&dst.GenDecl{Tok: token.IMPORT, Specs: []dst.Spec{spec}}}, file.Decls...)
}

func importsPath(file *dst.File, path string) bool {
	quoted := strconv.Quote(path)

	for _, spec := range file.Imports {
		if spec.Path.Value == quoted && (spec.Name == nil || spec.Name.Name != "_") {
			return true
		}
	}

	return false
}

func isPositioned(err error) bool {
	var positioned *positionedError

	return errors.As(err, &positioned)
}

// nextMacro finds the first macro at or after offset from, skipping comments
// and string literals.
func nextMacro(src string, from int) (macro, bool) {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src)-from)

	var scan scanner.Scanner

	scan.Init(file, []byte(src[from:]), nil, 0)

	// the two tokens before the current one
	var prev, prevPrev scanned

	for {
		pos, tok, lit := scan.Scan()
		if tok == token.EOF {
			return macro{}, false
		}

		offset := file.Offset(pos)

		if tok == token.IDENT && isMacroName(lit) {
			nextPos, next, _ := scan.Scan()
			if next == token.NOT && file.Offset(nextPos) == offset+len(lit) {
				found := macro{name: lit, start: from + offset}
				if (prev.tok == token.DEFINE || prev.tok == token.ASSIGN) && prevPrev.tok == token.IDENT {
					found.assignedTo = prevPrev.lit
				}

				return found, true
			}

			prevPrev, prev = prev, scanned{tok: tok, lit: lit}
			tok, lit = next, ""
		}

		prevPrev, prev = prev, scanned{tok: tok, lit: lit}
	}
}

type scanned struct {
	tok token.Token
	lit string
}

func isMacroName(name string) bool {
	return name == dsl.MacroNewMock || name == dsl.MacroGiven || name == dsl.MacroExpect
}
