package expand_test

import (
	"testing"

	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	dsl "github.com/toejough/behave/behavegen/run/1_dsl"
	load "github.com/toejough/behave/behavegen/run/2_load"
	registry "github.com/toejough/behave/behavegen/run/3_registry"
	synth "github.com/toejough/behave/behavegen/run/4_synth"
	expand "github.com/toejough/behave/behavegen/run/5_expand"
)

const (
	runtimePath = "github.com/toejough/behave"
	shopSource  = `package shop

//behave:mockable
type Store[K comparable, V any] interface {
	Get(key K) (V, error)
	Put(key K, value V)
}

//behave:mockable
type Named interface { Name() string }

//behave:mockable
type Labelled interface { Name() string }
`
	storeTemplate = `package shop_test

import (
	"testing"

	"example.com/shop"
)

func TestStore(t *testing.T) {
	// given! in a comment is left alone, and so is "new_mock!(" in a string
	m := new_mock!(shop.Store[string, int] for StoreMock)
	given! {
		bind limit: int = 2;
		<m as shop.Store[string, int]>::Get(func(k string) bool { return k == "a" }) then_return bound.limit, nil always
	}
	expect_interactions! {
		m.Put("a", 1) times 1
	}
	if 1 != 2 {
		_ = m
	}
}
`
)

func TestExpandTemplate(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	session := newSession(t)

	expanded, err := session.Expand(template("dir/store.behave", storeTemplate))
	g.Expect(err).NotTo(HaveOccurred())

	src := string(expanded.Source)
	g.Expect(expanded.Path).To(Equal("dir/generated_store_test.go"))
	g.Expect(src).To(HavePrefix(expand.GeneratedHeader))
	g.Expect(src).To(ContainSubstring("m := NewStoreMock(t)"))
	g.Expect(src).To(ContainSubstring("// given! in a comment is left alone, and so is \"new_mock!(\" in a string"))
	g.Expect(src).To(ContainSubstring("m.AddGivenBehaviourForTrait1Get(behave.NewGivenBehaviour[Trait1GetArgs, Trait1GetResults]("))
	g.Expect(src).To(ContainSubstring("return Trait1GetResults{R1: bound.limit, R2: nil}"))
	g.Expect(src).To(ContainSubstring("m.AddExpectBehaviourForTrait1Put(behave.NewExpectBehaviour[Trait1PutArgs]("))
	g.Expect(src).To(ContainSubstring(`"github.com/toejough/behave"`))
	g.Expect(src).To(MatchRegexp(`type binding\d+ struct \{\n\s+limit int\n\}`))
	g.Expect(src).To(ContainSubstring("if 1 != 2 {"))

	plan := session.Drain()
	g.Expect(plan.PackageName).To(Equal("shop_test"))
	g.Expect(plan.RuntimeAlias).To(Equal("behave"))
	g.Expect(plan.Mocks).To(HaveLen(1))
	g.Expect(plan.Mocks[0].TypeName()).To(Equal("StoreMock"))
	g.Expect(plan.Mocks[0].Request.Var).To(Equal("m"))
	g.Expect(plan.Mocks[0].IDs).To(Equal([]int{1}))
	g.Expect(plan.Usages).To(HaveLen(1))
	g.Expect(plan.Usages[0].Type).To(Equal("shop.Store[string, int]"))
	g.Expect(plan.Givens).To(HaveLen(1))
	g.Expect(plan.Expects).To(HaveLen(1))
	g.Expect(plan.Bindings).To(HaveLen(2))
	g.Expect(plan.Targets).To(HaveLen(2))
	g.Expect(plan.Targets[1].TraitID).To(Equal(1))
	g.Expect(plan.Targets[1].Pos).To(HavePrefix("store.behave:"))

	again := session.Drain()
	g.Expect(again.Mocks).To(BeEmpty())
	g.Expect(again.Usages).To(HaveLen(1))
}

func TestExpandDefaultMockNamesAreUniqueAcrossTemplates(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	session := newSession(t)
	body := "package shop_test\n\nimport \"example.com/shop\"\n\nvar m = new_mock!(shop.Named)\n"

	_, err := session.Expand(template("a.behave", body))
	g.Expect(err).NotTo(HaveOccurred())

	_, err = session.Expand(template("b.behave", body))
	g.Expect(err).NotTo(HaveOccurred())

	plan := session.Drain()
	g.Expect(plan.Mocks).To(HaveLen(2))
	g.Expect(plan.Mocks[0].TypeName()).NotTo(Equal(plan.Mocks[1].TypeName()))
	g.Expect(plan.Mocks[0].IDs).To(Equal(plan.Mocks[1].IDs))
}

func TestExpandErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want error
	}{
		{
			name: "unknown interface",
			body: "m := new_mock!(shop.Missing)",
			want: registry.ErrUnknownTrait,
		},
		{
			name: "grammar",
			body: "m := new_mock!(shop.Named)\ngiven! { <m as shop.Named>::Name() then_return \"x\" }",
			want: dsl.ErrGrammar,
		},
		{
			name: "method form on an unknown variable",
			body: "given! { x.Name() then_return \"a\" always }",
			want: expand.ErrUnknownMockVar,
		},
		{
			name: "ambiguous method",
			body: "m := new_mock!(shop.Named, shop.Labelled)\ngiven! { m.Name() then_return \"a\" always }",
			want: expand.ErrAmbiguousMethod,
		},
		{
			name: "interface not requested by the mock",
			body: "m := new_mock!(shop.Named)\ngiven! { <m as shop.Labelled>::Name() then_return \"a\" always }",
			want: expand.ErrTraitNotRequested,
		},
		{
			name: "unknown method",
			body: "m := new_mock!(shop.Named)\ngiven! { m.Nope() then_return 1 always }",
			want: expand.ErrUnknownMethod,
		},
		{
			name: "spy",
			body: "m := new_mock!(shop.Named)\ngiven! { m.Name() then_spy_on_object always }",
			want: synth.ErrSpyNotImplemented,
		},
		{
			name: "matcher count",
			body: "m := new_mock!(shop.Named)\ngiven! { m.Name(1) then_return \"a\" always }",
			want: synth.ErrMatcherArity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			src := "package shop_test\n\nimport \"example.com/shop\"\n\nfunc f() {\n" + tt.body + "\n}\n"

			_, err := newSession(t).Expand(template("x.behave", src))
			g.Expect(err).To(MatchError(tt.want))
			g.Expect(err.Error()).To(HavePrefix("x.behave:"))
		})
	}
}

func TestExpandRejectsMixedPackages(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	session := newSession(t)

	_, err := session.Expand(template("a.behave", "package shop_test\n"))
	g.Expect(err).NotTo(HaveOccurred())

	_, err = session.Expand(template("b.behave", "package shop\n"))
	g.Expect(err).To(MatchError(expand.ErrMixedPackages))
}

func TestExpandLeavesTemplatesWithoutStatementsUnimported(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	expanded, err := newSession(t).Expand(template("a.behave",
		"package shop_test\n\nimport \"example.com/shop\"\n\nvar m = new_mock!(shop.Named)\n"))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(expanded.Source)).NotTo(ContainSubstring(runtimePath))
}

func TestScanMacros(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	macros, err := expand.ScanMacros(template("dir/store.behave", storeTemplate))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(macros).To(HaveLen(3))

	g.Expect(macros[0].Name).To(Equal(dsl.MacroNewMock))
	g.Expect(macros[0].Pos).To(Equal("store.behave:11:7"))
	g.Expect(macros[0].NewMock.Var).To(Equal("m"))
	g.Expect(macros[0].NewMock.TypeName).To(Equal("StoreMock"))

	g.Expect(macros[1].Given.Binding.Fields).To(HaveLen(1))
	g.Expect(macros[1].Given.Statements[0].String()).To(HavePrefix("<m as shop.Store[string, int]>::Get("))

	g.Expect(macros[2].Expect.Statements[0].String()).To(Equal(`m.Put("a", 1) times 1`))

	_, err = expand.ScanMacros(template("bad.behave", "package p\n\nfunc f() {\n\tgiven! { m.X() }\n}\n"))
	g.Expect(err).To(MatchError(dsl.ErrGrammar))
	g.Expect(err.Error()).To(HavePrefix("bad.behave:4:"))
}

func TestOutputPath(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(expand.OutputPath("pkg/store.behave")).To(Equal("pkg/generated_store_test.go"))
	g.Expect(expand.OutputPath("pkg/store_test.behave")).To(Equal("pkg/generated_store_test.go"))
}

func newSession(t *testing.T) *expand.Session {
	t.Helper()

	pkg, err := load.PackageFromSource("example.com/shop", "shop.go", shopSource)
	if err != nil {
		t.Fatal(err)
	}

	reg := registry.New()

	_, err = reg.RegisterPackage(pkg)
	if err != nil {
		t.Fatal(err)
	}

	cfg := expand.Config{PackagePath: "example.com/shop", RuntimePath: runtimePath, Reporter: "t"}

	return expand.NewSession(reg, cfg, zap.NewNop())
}

func template(path, src string) load.Template {
	pkgName, imports, err := load.TemplateHeader(path, src)
	if err != nil {
		panic(err)
	}

	return load.Template{Path: path, Source: src, Package: pkgName, Imports: imports}
}
