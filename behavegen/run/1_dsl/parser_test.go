package dsl_test

import (
	"errors"
	"strconv"
	"testing"

	. "github.com/onsi/gomega"
	"pgregory.net/rapid"

	dsl "github.com/toejough/behave/behavegen/run/1_dsl"
)

func TestParseNewMock_Forms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		src      string
		traits   []string
		attrs    []string
		typeName string
		explicit bool
	}{
		{
			name:     "single trait gets default name",
			src:      "new_mock!(Store)",
			traits:   []string{"Store"},
			typeName: "Mock100",
		},
		{
			name:     "generic with binding and explicit name",
			src:      "new_mock!(store.Cache[string, Item=int] for MyCache)",
			traits:   []string{"store.Cache[string, Item=int]"},
			typeName: "MyCache",
			explicit: true,
		},
		{
			name:     "several traits and attributes",
			src:      "new_mock!(Reader, io.Closer, #[nolint:unused] #[x y])",
			traits:   []string{"Reader", "io.Closer"},
			attrs:    []string{"nolint:unused", "x y"},
			typeName: "Mock100",
		},
		{
			name:     "multiline",
			src:      "new_mock!(\n\tStore[map[string][]int],\n\tCloser,\n)",
			traits:   []string{"Store[map[string][]int]", "Closer"},
			typeName: "Mock100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			mock, rest, err := dsl.ParseNewMock(tt.src+"\nrest()", 100)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(rest).To(Equal("\nrest()"))

			traits := make([]string, 0, len(mock.Traits))
			for _, tr := range mock.Traits {
				traits = append(traits, tr.String())
			}

			g.Expect(traits).To(Equal(tt.traits))
			g.Expect(mock.Attributes).To(Equal(tt.attrs))
			g.Expect(mock.TypeName).To(Equal(tt.typeName))
			g.Expect(mock.Explicit).To(Equal(tt.explicit))
		})
	}
}

func TestParseNewMock_Errors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"no traits":             "new_mock!()",
		"missing bang":          "new_mock(Store)",
		"binding before arg":    "new_mock!(Store[K=int, string])",
		"name then more traits": "new_mock!(Store for M, Other)",
		"bad type argument":     "new_mock!(Store[func(])",
		"unterminated":          "new_mock!(Store",
	}

	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			_, _, err := dsl.ParseNewMock(src, 0)
			g.Expect(errors.Is(err, dsl.ErrGrammar)).To(BeTrue(), "error: %v", err)
		})
	}
}

func TestParseGiven_Statements(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := `given! {
		bind limit: int = 3;
		<m as Store[int]>::Get(func(k string) bool { return k != "" }) then_return bound.limit, nil times 2;
		<m as Store[int]>::{
			Len() then_return 7 always
			Put gomega.Equal(args) then_return once
		}
		m.Close() then_panic once
	} // trailing`

	block, rest, err := dsl.ParseGiven(src, 1000)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rest).To(Equal(" // trailing"))

	g.Expect(block.Binding).To(Equal(dsl.Binding{
		BlockID: 1000,
		Fields:  []dsl.BindingField{{Name: "limit", Type: "int", Init: "3"}},
	}))
	g.Expect(block.Statements).To(HaveLen(4))

	first := block.Statements[0]
	g.Expect(first.BlockID).To(Equal(1000))
	g.Expect(first.StmtID).To(Equal(1000))
	g.Expect(first.Target.MockVar).To(Equal("m"))
	g.Expect(first.Target.Trait.String()).To(Equal("Store[int]"))
	g.Expect(first.Method).To(Equal("Get"))
	g.Expect(first.Matcher).To(Equal(dsl.BehaviourMatcher{
		Kind:  dsl.MatchPerArgument,
		Exprs: []string{`func(k string) bool { return k != "" }`},
	}))
	g.Expect(first.Return.Exprs).To(Equal([]string{"bound.limit", "nil"}))
	g.Expect(first.Repeat).To(Equal(dsl.GivenRepeat{Times: "2", Keyword: "times"}))

	second := block.Statements[1]
	g.Expect(second.StmtID).To(Equal(1001))
	g.Expect(second.Matcher.Exprs).To(BeEmpty())
	g.Expect(second.Repeat.Always()).To(BeTrue())

	third := block.Statements[2]
	g.Expect(third.StmtID).To(Equal(1002))
	g.Expect(third.Matcher).To(Equal(dsl.BehaviourMatcher{Kind: dsl.MatchExplicit, Exprs: []string{"gomega.Equal(args)"}}))
	g.Expect(third.Return.Kind).To(Equal(dsl.ReturnFromValue))
	g.Expect(third.Return.Exprs).To(BeEmpty())

	fourth := block.Statements[3]
	g.Expect(fourth.Target.Trait).To(BeNil())
	g.Expect(fourth.Return.Kind).To(Equal(dsl.ReturnPanic))
	g.Expect(fourth.Repeat).To(Equal(dsl.GivenRepeat{Times: "1", Keyword: "once"}))
}

func TestParseGiven_ReturnForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		kind dsl.ReturnKind
		want []string
	}{
		{"value", "<m as T>::F(1) then_return 2 once", dsl.ReturnFromValue, []string{"2"}},
		{"call", "<m as T>::F(1) then_return_from func(a int) int { return a } once", dsl.ReturnFromCall, []string{"func(a int) int { return a }"}},
		{"ref alias", "<m as T>::F(1) then_return_ref &x once", dsl.ReturnFromValue, []string{"&x"}},
		{"ref from alias", "<m as T>::F(1) then_return_ref_from mk once", dsl.ReturnFromCall, []string{"mk"}},
		{"spy", "<m as T>::F(1) then_spy_on_object once", dsl.ReturnFromSpy, nil},
		{"multiline value", "<m as T>::F(1)\n\tthen_return []int{\n\t\t1,\n\t}\n\talways", dsl.ReturnFromValue, []string{"[]int{\n\t\t1,\n\t}"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			block, _, err := dsl.ParseGiven("given!{ "+tt.src+" }", 0)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(block.Statements).To(HaveLen(1))
			g.Expect(block.Statements[0].Return.Kind).To(Equal(tt.kind))
			g.Expect(block.Statements[0].Return.Exprs).To(Equal(tt.want))
		})
	}
}

func TestParseGiven_Errors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"missing then":          "given!{ <m as T>::F(1) once }",
		"missing repeat":        "given!{ <m as T>::F(1) then_return 1 }",
		"bind after statement":  "given!{ <m as T>::F(1) then_return 1 once; bind x: int = 1; }",
		"bind without init":     "given!{ bind x: int; }",
		"missing as":            "given!{ <m T>::F(1) then_return 1 once }",
		"missing separator":     "given!{ <m as T>F(1) then_return 1 once }",
		"two statements a line": "given!{ <m as T>::F(1) then_return 1 once <m as T>::F(2) then_return 1 once }",
		"invalid value":         "given!{ <m as T>::F(1) then_return 1 + once }",
		"expect repeat":         "given!{ <m as T>::F(1) then_return 1 at_least 2 }",
		"empty explicit":        "given!{ <m as T>::F then_return 1 once }",
	}

	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			_, _, err := dsl.ParseGiven(src, 0)
			g.Expect(errors.Is(err, dsl.ErrGrammar)).To(BeTrue(), "error: %v", err)

			var grammarErr *dsl.GrammarError
			g.Expect(errors.As(err, &grammarErr)).To(BeTrue())
			g.Expect(grammarErr.Expected).NotTo(BeEmpty())
		})
	}
}

func TestParseExpect_Repeats(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	src := `expect_interactions! {
		<m as T>::F(1) times 2
		<m as T>::F(2) at_least 1
		<m as T>::F(3) at_most n + 1
		<m as T>::F(4) between 1, 3
		<m as T>::F(5) never
		<m as T>::F(6) once
	}`

	block, rest, err := dsl.ParseExpect(src, 50)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(rest).To(BeEmpty())

	repeats := make([]dsl.ExpectRepeat, 0, len(block.Statements))
	for _, s := range block.Statements {
		repeats = append(repeats, s.Repeat)
	}

	g.Expect(repeats).To(Equal([]dsl.ExpectRepeat{
		{Kind: dsl.RepeatTimes, Bounds: []string{"2"}, Keyword: "times"},
		{Kind: dsl.RepeatAtLeast, Bounds: []string{"1"}, Keyword: "at_least"},
		{Kind: dsl.RepeatAtMost, Bounds: []string{"n + 1"}, Keyword: "at_most"},
		{Kind: dsl.RepeatBetween, Bounds: []string{"1", "3"}, Keyword: "between"},
		{Kind: dsl.RepeatTimes, Bounds: []string{"0"}, Keyword: "never"},
		{Kind: dsl.RepeatTimes, Bounds: []string{"1"}, Keyword: "once"},
	}))
	g.Expect(block.Statements[5].StmtID).To(Equal(55))
}

func TestStatementString_Renders(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	given, _, err := dsl.ParseGiven("given!{ <m as store.Cache[int]>::Get(2, true) then_return 1 times 3 }", 0)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(given.Statements[0].String()).To(Equal("<m as store.Cache[int]>::Get(2, true) then_return 1 times 3"))

	expect, _, err := dsl.ParseExpect("expect_interactions!{ m.Put matchAll between 2, 4 }", 0)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(expect.Statements[0].String()).To(Equal("m.Put matchAll between 2, 4"))
}

// TestStatementString_Stable proves rendering a parsed statement and parsing
// the rendering again yields the same statement text.
func TestStatementString_Stable(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		method := rapid.StringMatching(`[A-Z][a-z]{0,6}`).Draw(rt, "method")
		args := rapid.SliceOfN(rapid.IntRange(-50, 50), 0, 4).Draw(rt, "args")
		times := rapid.IntRange(0, 9).Draw(rt, "times")

		matcher := "("
		for i, a := range args {
			if i > 0 {
				matcher += ", "
			}

			matcher += strconv.Itoa(a)
		}

		matcher += ")"

		src := "given!{ <m as T>::" + method + matcher + " then_return 1 times " + strconv.Itoa(times) + " }"

		first, _, err := dsl.ParseGiven(src, 0)
		if err != nil {
			rt.Fatalf("parse %q: %v", src, err)
		}

		rendered := first.Statements[0].String()

		second, _, err := dsl.ParseGiven("given!{ "+rendered+" }", 0)
		if err != nil {
			rt.Fatalf("reparse %q: %v", rendered, err)
		}

		if second.Statements[0].String() != rendered {
			rt.Fatalf("unstable rendering: %q vs %q", rendered, second.Statements[0].String())
		}
	})
}

func TestIsKeyword(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	for _, kw := range []string{"then_return", "times", "always", "between", "never", "bind", "as"} {
		g.Expect(dsl.IsKeyword(kw)).To(BeTrue(), kw)
	}

	g.Expect(dsl.IsKeyword("limit")).To(BeFalse())
}
