package astutil_test

import (
	"errors"
	"testing"

	"github.com/dave/dst"
	. "github.com/onsi/gomega"
	"pgregory.net/rapid"

	astutil "github.com/toejough/behave/behavegen/run/0_util"
)

func TestStringifyExpr_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []string{
		"int",
		"*pkg.Thing",
		"[]map[string]chan<- int",
		"[4]<-chan error",
		"func(int, ...string) (bool, error)",
		"func()",
		"Store[K, V]",
		"List[int]",
		"interface{}",
		"interface{ Get(int) string; Len() int }",
		"struct{ A, B int; C string `json:\"c\"` }",
		"struct{}",
	}

	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			expr, err := astutil.ParseExpr(src)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(astutil.StringifyExpr(expr)).To(Equal(src))
		})
	}
}

func TestSubstitute_ReplacesTypePositionsOnly(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	expr := mustParse(t, "func(T T, xs []T) map[K]T")
	got := astutil.Substitute(expr, map[string]dst.Expr{
		"T": mustParse(t, "pkg.Item"),
		"K": mustParse(t, "string"),
	})

	g.Expect(astutil.StringifyExpr(got)).To(Equal("func(pkg.Item, []pkg.Item) map[string]pkg.Item"))
	// the original tree is untouched
	g.Expect(astutil.StringifyExpr(expr)).To(Equal("func(T, []T) map[K]T"))
}

func TestSubstitute_LeavesSelectorsAlone(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	got := astutil.Substitute(mustParse(t, "T.T"), map[string]dst.Expr{"T": mustParse(t, "int")})

	g.Expect(astutil.StringifyExpr(got)).To(Equal("T.T"))
}

func TestQualify(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	declared := func(name string) bool { return name == "Item" || name == "item" }

	got, err := astutil.Qualify(mustParse(t, "func(Item, io.Reader, T) *Item"), "store", declared)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(astutil.StringifyExpr(got)).To(Equal("func(store.Item, io.Reader, T) *store.Item"))

	_, err = astutil.Qualify(mustParse(t, "[]item"), "store", declared)
	g.Expect(errors.Is(err, astutil.ErrUnexportedType)).To(BeTrue())
}

func TestRenamePackages(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	rename := func(alias string) (string, bool) {
		if alias == "ctx" {
			return "context", true
		}

		return "", false
	}

	got, err := astutil.RenamePackages(mustParse(t, "func(ctx.Context) int"), rename)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(astutil.StringifyExpr(got)).To(Equal("func(context.Context) int"))

	_, err = astutil.RenamePackages(mustParse(t, "nope.Thing"), rename)
	g.Expect(errors.Is(err, astutil.ErrUnknownPackage)).To(BeTrue())
}

func TestImportName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"io":                           "io",
		"github.com/dave/dst":          "dst",
		"gopkg.in/yaml.v3":             "yaml",
		"github.com/fsnotify/fsnotify": "fsnotify",
		"github.com/foo/bar/v2":        "bar",
		"github.com/toejough/go-reorder": "reorder",
	}

	for importPath, want := range tests {
		t.Run(importPath, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			g.Expect(astutil.ImportName(importPath)).To(Equal(want))
		})
	}
}

func TestParseExpr_RejectsGarbage(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	_, err := astutil.ParseExpr("func(")
	g.Expect(errors.Is(err, astutil.ErrBadExpr)).To(BeTrue())
}

// TestIsExported_Property proves the first rune decides exportedness.
func TestIsExported_Property(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		upper := rapid.StringMatching(`[A-Z][A-Za-z0-9_]{0,10}`).Draw(rt, "upper")
		lower := rapid.StringMatching(`[a-z_][A-Za-z0-9_]{0,10}`).Draw(rt, "lower")

		if !astutil.IsExported(upper) {
			rt.Fatalf("%q should be exported", upper)
		}

		if astutil.IsExported(lower) {
			rt.Fatalf("%q should not be exported", lower)
		}
	})
}

func mustParse(t *testing.T, src string) dst.Expr {
	t.Helper()

	expr, err := astutil.ParseExpr(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}

	return expr
}
