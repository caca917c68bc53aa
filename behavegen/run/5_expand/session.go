// Package expand rewrites behaviour templates into Go test files and collects
// what the mocks file has to provide.
package expand

import (
	"errors"
	"fmt"
	"go/token"
	"sort"
	"strings"

	"go.uber.org/zap"

	astutil "github.com/toejough/behave/behavegen/run/0_util"
	dsl "github.com/toejough/behave/behavegen/run/1_dsl"
	load "github.com/toejough/behave/behavegen/run/2_load"
	registry "github.com/toejough/behave/behavegen/run/3_registry"
)

// Config holds what a session needs to know about the package it expands.
type Config struct {
	// PackagePath is the import path of the package directory.
	PackagePath string
	// RuntimePath is the import path of the behave runtime.
	RuntimePath string
	// Reporter is the expression passed to mock constructors.
	Reporter string
}

// Mock is a mock type requested by new_mock!.
type Mock struct {
	Request   dsl.RequestedMock
	Instances []*registry.Instance
	IDs       []int
	Pos       string
}

// Requests reports whether the mock implements the usage numbered id.
func (m *Mock) Requests(id int) bool {
	for _, requested := range m.IDs {
		if requested == id {
			return true
		}
	}

	return false
}

// TypeName is the name of the generated mock type.
func (m *Mock) TypeName() string {
	return m.Request.TypeName
}

// Plan is everything the mocks file is generated from. It is produced once per
// session by Drain.
type Plan struct {
	PackageName string
	// RuntimeAlias is the name the mocks file imports the runtime as.
	RuntimeAlias string
	Imports      *registry.Imports
	Mocks        []*Mock
	// Usages holds the instantiated usage of each trait id, at index id-1.
	Usages   []*registry.Instance
	Givens   []dsl.GivenStatement
	Expects  []dsl.ExpectStatement
	Bindings []dsl.Binding
	Targets  []Target
}

// Session is the state of generating one package: the interfaces it can mock,
// the usages numbered so far, and the mocks and statements collected from its
// templates. It is not safe for concurrent use.
type Session struct {
	registry     *registry.Registry
	unifier      *registry.Unifier
	imports      *registry.Imports
	runtimeAlias string
	cfg          Config
	fset         *token.FileSet
	log          *zap.Logger

	packageName string
	instances   map[int]*registry.Instance
	mocks       []*Mock
	givens      []dsl.GivenStatement
	expects     []dsl.ExpectStatement
	bindings    []dsl.Binding
	targets     []Target
}

// NewSession starts a session over the interfaces in reg.
func NewSession(reg *registry.Registry, cfg Config, log *zap.Logger) *Session {
	// names the generated mock code declares itself
	imports := registry.NewImports("m", "args", "results", "t", "state", "verify", "behaviour")

	return &Session{
		registry:     reg,
		unifier:      registry.NewUnifier(),
		imports:      imports,
		runtimeAlias: imports.Use(cfg.RuntimePath, "behave"),
		cfg:          cfg,
		fset:         token.NewFileSet(),
		log:          log,
		instances:    make(map[int]*registry.Instance),
	}
}

// Drain hands over the collected mocks and statements and clears them, so a
// session generates its mocks file once.
func (s *Session) Drain() Plan {
	plan := Plan{
		PackageName:  s.packageName,
		RuntimeAlias: s.runtimeAlias,
		Imports:      s.imports,
		Mocks:        s.mocks,
		Givens:       s.givens,
		Expects:      s.expects,
		Bindings:     s.bindings,
		Targets:      s.targets,
	}

	for id := 1; id <= s.unifier.Len(); id++ {
		plan.Usages = append(plan.Usages, s.instances[id])
	}

	s.mocks, s.givens, s.expects, s.bindings, s.targets = nil, nil, nil, nil, nil

	return plan
}

// Expand rewrites one template. Templates of a session must share a package
// clause, since they compile together with the mocks file.
func (s *Session) Expand(tmpl load.Template) (*Expanded, error) {
	if s.packageName == "" {
		s.packageName = tmpl.Package
	}

	if tmpl.Package != s.packageName {
		return nil, fmt.Errorf("%s: %w: %s and %s", tmpl.Path, ErrMixedPackages, s.packageName, tmpl.Package)
	}

	file := s.fset.AddFile(tmpl.Path, -1, len(tmpl.Source))
	file.SetLinesForContent([]byte(tmpl.Source))

	expander := &templateExpander{
		session: s,
		tmpl:    tmpl,
		base:    file.Base(),
		vars:    make(map[string]*Mock),
		scope: registry.Scope{
			Imports:     tmpl.Imports,
			PackagePath: s.cfg.PackagePath,
			External:    strings.HasSuffix(tmpl.Package, "_test"),
		},
		runtime: templateRuntimeAlias(tmpl.Imports, s.cfg.RuntimePath),
	}

	return expander.run()
}

// Known lists the interfaces the session can mock.
func (s *Session) Known() []string {
	return s.registry.Known()
}

// Usages lists the numbered usages seen so far, by id.
func (s *Session) Usages() []registry.Usage {
	usages := s.unifier.List()

	sort.Slice(usages, func(i, j int) bool {
		a, _ := s.unifier.ID(usages[i])
		b, _ := s.unifier.ID(usages[j])

		return a < b
	})

	return usages
}

// Target records which usage a statement was registered on.
type Target struct {
	StmtID  int
	TraitID int
	Pos     string
	Desc    string
}

// Errors returned while expanding templates.
var (
	ErrAmbiguousMethod   = errors.New("method is declared by more than one mocked interface")
	ErrMixedPackages     = errors.New("templates of one directory must share a package")
	ErrTraitNotRequested = errors.New("mock does not implement the interface")
	ErrUnknownMethod     = errors.New("no such method")
	ErrUnknownMockVar    = errors.New("mock variable is not assigned from new_mock! in this file")
)

func (s *Session) instantiate(ref dsl.TraitRef, scope registry.Scope) (int, *registry.Instance, error) {
	inst, err := s.registry.Instantiate(ref, scope, s.imports)
	if err != nil {
		return 0, nil, err
	}

	id := s.unifier.Register(inst.Usage)
	if _, ok := s.instances[id]; !ok {
		s.instances[id] = inst
		s.log.Debug("numbered interface usage", zap.Int("id", id), zap.Stringer("usage", inst.Usage))
	}

	return id, s.instances[id], nil
}

func (s *Session) position(abs int) string {
	return astutil.Position(s.fset, token.Pos(abs))
}

// requestMock instantiates every interface a new_mock! asks for.
func (s *Session) requestMock(req dsl.RequestedMock, scope registry.Scope) (*Mock, error) {
	mock := &Mock{Request: req, Pos: s.position(req.Pos)}

	for _, ref := range req.Traits {
		id, inst, err := s.instantiate(ref, scope)
		if err != nil {
			return nil, err
		}

		if mock.Requests(id) {
			continue
		}

		mock.IDs = append(mock.IDs, id)
		mock.Instances = append(mock.Instances, inst)
	}

	s.mocks = append(s.mocks, mock)
	s.log.Debug("requested mock", zap.String("type", mock.TypeName()), zap.Ints("traits", mock.IDs))

	return mock, nil
}

// templateRuntimeAlias finds how a template refers to the runtime, choosing a
// free name when it does not import it yet.
func templateRuntimeAlias(imports map[string]string, runtimePath string) string {
	for alias, path := range imports {
		if path == runtimePath && alias != "_" && alias != "." {
			return alias
		}
	}

	if _, taken := imports["behave"]; !taken {
		return "behave"
	}

	return "behaveruntime"
}
