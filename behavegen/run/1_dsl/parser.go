package dsl

import (
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"strings"
)

// Macro names.
const (
	MacroExpect  = "expect_interactions"
	MacroGiven   = "given"
	MacroNewMock = "new_mock"
)

// GrammarError is a DSL syntax error. Pos is the absolute position of the
// offending text.
type GrammarError struct {
	Pos      int
	Expected string
	Found    string
}

func (e *GrammarError) Error() string {
	return fmt.Sprintf("%v: expected %s, found %q", ErrGrammar, e.Expected, e.Found)
}

func (e *GrammarError) Unwrap() error {
	return ErrGrammar
}

// ErrGrammar is wrapped by every GrammarError.
var ErrGrammar = errors.New("behaviour DSL grammar error")

// IsKeyword reports whether name is reserved by the DSL and so cannot appear
// as a bare identifier at the top level of a DSL expression.
func IsKeyword(name string) bool {
	_, then := thenKeywords[name]
	_, given := givenRepeatKeywords[name]
	_, expect := expectRepeatKeywords[name]

	return then || given || expect || name == keywordBind || name == keywordAs
}

// ParseExpect parses an expect_interactions! macro at the start of src. base
// is the absolute position of src, which becomes the block id. The text after
// the macro is returned as the remainder.
func ParseExpect(src string, base int) (*ExpectBlock, string, error) {
	p := newParser(src, base)

	block := &ExpectBlock{}

	err := p.block(MacroExpect, &block.Binding, func(target Target, idx int, pos int) error {
		stmt, err := p.expectMethod(target)
		if err != nil {
			return err
		}

		stmt.BlockID, stmt.StmtID, stmt.Pos = base, base+idx, pos
		block.Statements = append(block.Statements, stmt)

		return nil
	})
	if err != nil {
		return nil, "", err
	}

	return block, p.remainder(), nil
}

// ParseGiven parses a given! macro at the start of src. base is the absolute
// position of src, which becomes the block id. The text after the macro is
// returned as the remainder.
func ParseGiven(src string, base int) (*GivenBlock, string, error) {
	p := newParser(src, base)

	block := &GivenBlock{}

	err := p.block(MacroGiven, &block.Binding, func(target Target, idx int, pos int) error {
		stmt, err := p.givenMethod(target)
		if err != nil {
			return err
		}

		stmt.BlockID, stmt.StmtID, stmt.Pos = base, base+idx, pos
		block.Statements = append(block.Statements, stmt)

		return nil
	})
	if err != nil {
		return nil, "", err
	}

	return block, p.remainder(), nil
}

// ParseNewMock parses a new_mock! macro at the start of src. base is the
// absolute position of src, used for the default type name.
//
//nolint:cyclop // One branch per element kind
func ParseNewMock(src string, base int) (*RequestedMock, string, error) {
	p := newParser(src, base)

	err := p.macroHead(MacroNewMock, token.LPAREN)
	if err != nil {
		return nil, "", err
	}

	mock := &RequestedMock{Pos: base, TypeName: DefaultMockName(base)}

	for {
		p.lex.skipAuto()

		next := p.lex.peek(0)

		switch {
		case next.tok == token.RPAREN:
			p.lex.advance()

			if len(mock.Traits) == 0 {
				return nil, "", p.errorAt(next, "at least one interface to mock")
			}

			return mock, p.remainder(), nil
		case next.tok == token.COMMA:
			p.lex.advance()
		case next.tok == token.ILLEGAL && next.lit == "#":
			attr, err := p.attribute()
			if err != nil {
				return nil, "", err
			}

			mock.Attributes = append(mock.Attributes, attr)
		case next.tok == token.FOR:
			p.lex.advance()

			name, err := p.ident("mock type name after 'for'")
			if err != nil {
				return nil, "", err
			}

			mock.TypeName, mock.Explicit = name, true

			p.lex.skipAuto()

			if p.lex.peek(0).tok != token.RPAREN {
				return nil, "", p.errorAt(p.lex.peek(0), "')' after the mock type name")
			}
		case next.tok == token.IDENT:
			ref, err := p.traitRef()
			if err != nil {
				return nil, "", err
			}

			mock.Traits = append(mock.Traits, ref)
		default:
			return nil, "", p.errorAt(next, "interface reference, attribute, 'for' or ')'")
		}
	}
}

// unexported constants.
const (
	keywordAlways            = "always"
	keywordAs                = "as"
	keywordAtLeast           = "at_least"
	keywordAtMost            = "at_most"
	keywordBetween           = "between"
	keywordBind              = "bind"
	keywordNever             = "never"
	keywordOnce              = "once"
	keywordThenPanic         = "then_panic"
	keywordThenReturn        = "then_return"
	keywordThenReturnFrom    = "then_return_from"
	keywordThenReturnRef     = "then_return_ref"
	keywordThenReturnRefFrom = "then_return_ref_from"
	keywordThenSpy           = "then_spy_on_object"
	keywordTimes             = "times"
)

// unexported variables.
var (
	//nolint:gochecknoglobals // Keyword tables
	expectRepeatKeywords = map[string]struct{}{
		keywordTimes: {}, keywordAtLeast: {}, keywordAtMost: {}, keywordBetween: {},
		keywordNever: {}, keywordOnce: {},
	}
	//nolint:gochecknoglobals // Keyword tables
	givenRepeatKeywords = map[string]struct{}{
		keywordOnce: {}, keywordTimes: {}, keywordAlways: {},
	}
	//nolint:gochecknoglobals // Keyword tables
	thenKeywords = map[string]struct{}{
		keywordThenReturn: {}, keywordThenReturnFrom: {}, keywordThenReturnRef: {},
		keywordThenReturnRefFrom: {}, keywordThenSpy: {}, keywordThenPanic: {},
	}
)

type dslParser struct {
	lex  *lexer
	base int
}

func newParser(src string, base int) *dslParser {
	return &dslParser{lex: newLexer(src), base: base}
}

// attribute parses #[...] and returns the text between the brackets.
func (p *dslParser) attribute() (string, error) {
	p.lex.advance()

	open := p.lex.peek(0)
	if open.tok != token.LBRACK {
		return "", p.errorAt(open, "'[' after '#'")
	}

	p.lex.advance()

	text, err := p.slice("attribute", func(lexeme) bool { return false })
	if err != nil {
		return "", err
	}

	if p.lex.peek(0).tok != token.RBRACK {
		return "", p.errorAt(p.lex.peek(0), "']' closing the attribute")
	}

	p.lex.advance()

	return text, nil
}

// binding parses "bind name: Type = init".
func (p *dslParser) binding() (BindingField, error) {
	p.lex.advance()

	name, err := p.ident("binding name")
	if err != nil {
		return BindingField{}, err
	}

	if next := p.lex.peek(0); next.tok != token.COLON {
		return BindingField{}, p.errorAt(next, "':' after the binding name")
	}

	p.lex.advance()

	typ, err := p.slice("binding type", func(l lexeme) bool { return l.tok == token.ASSIGN || l.tok == token.SEMICOLON })
	if err != nil {
		return BindingField{}, err
	}

	if next := p.lex.peek(0); next.tok != token.ASSIGN {
		return BindingField{}, p.errorAt(next, "'=' and an initializer for binding "+name)
	}

	p.lex.advance()

	init, err := p.expr("binding initializer", stopAtSemicolon)
	if err != nil {
		return BindingField{}, err
	}

	return BindingField{Name: name, Type: typ, Init: init}, p.terminator()
}

// block parses the body shared by given! and expect_interactions!: bindings
// followed by statements, each statement handed to method together with its
// index in the block.
//
//nolint:cyclop,funlen // Block grammar: bindings, targets, shorthand blocks
func (p *dslParser) block(macro string, binding *Binding, method func(Target, int, int) error) error {
	err := p.macroHead(macro, token.LBRACE)
	if err != nil {
		return err
	}

	binding.BlockID = p.base
	idx := 0

	for {
		p.lex.skipAuto()

		next := p.lex.peek(0)

		switch {
		case next.tok == token.RBRACE:
			p.lex.advance()

			return nil
		case next.tok == token.SEMICOLON:
			p.lex.advance()
		case next.isIdent(keywordBind):
			if idx > 0 {
				return p.errorAt(next, "statement (bindings must precede all statements)")
			}

			field, err := p.binding()
			if err != nil {
				return err
			}

			binding.Fields = append(binding.Fields, field)
		case next.tok == token.LSS || next.tok == token.IDENT:
			target, err := p.target()
			if err != nil {
				return err
			}

			p.lex.skipAuto()

			if p.lex.peek(0).tok != token.LBRACE {
				err = method(target, idx, p.base+p.lex.offset())
				if err != nil {
					return err
				}

				idx++

				continue
			}

			p.lex.advance()

			for {
				p.lex.skipAuto()

				inner := p.lex.peek(0)
				if inner.tok == token.RBRACE {
					p.lex.advance()

					break
				}

				if inner.tok == token.SEMICOLON {
					p.lex.advance()

					continue
				}

				err = method(target, idx, p.base+inner.start)
				if err != nil {
					return err
				}

				idx++
			}
		default:
			return p.errorAt(next, "'bind', a statement or '}'")
		}
	}
}

func (p *dslParser) errorAt(at lexeme, expected string) error {
	found := at.text()

	switch {
	case at.tok == token.EOF:
		found = "end of input"
	case at.auto:
		found = "newline"
	}

	return &GrammarError{Pos: p.base + at.start, Expected: expected, Found: found}
}

// expectMethod parses "Method matcher repeat" after a target.
func (p *dslParser) expectMethod(target Target) (ExpectStatement, error) {
	stmt := ExpectStatement{Target: target}

	name, err := p.ident("method name")
	if err != nil {
		return stmt, err
	}

	stmt.Method = name

	stmt.Matcher, err = p.matcher(expectRepeatKeywords)
	if err != nil {
		return stmt, err
	}

	stmt.Repeat, err = p.expectRepeat()
	if err != nil {
		return stmt, err
	}

	return stmt, p.terminator()
}

//nolint:cyclop // One branch per repeat keyword
func (p *dslParser) expectRepeat() (ExpectRepeat, error) {
	p.lex.skipAuto()

	next := p.lex.peek(0)
	if next.tok != token.IDENT {
		return ExpectRepeat{}, p.errorAt(next, "times, at_least, at_most, between, once or never")
	}

	switch next.lit {
	case keywordOnce:
		p.lex.advance()

		return ExpectRepeat{Kind: RepeatTimes, Bounds: []string{"1"}, Keyword: keywordOnce}, nil
	case keywordNever:
		p.lex.advance()

		return ExpectRepeat{Kind: RepeatTimes, Bounds: []string{"0"}, Keyword: keywordNever}, nil
	case keywordTimes, keywordAtLeast, keywordAtMost:
		p.lex.advance()

		bound, err := p.expr(next.lit+" bound", stopAtSemicolon)
		if err != nil {
			return ExpectRepeat{}, err
		}

		kind := map[string]ExpectRepeatKind{
			keywordTimes: RepeatTimes, keywordAtLeast: RepeatAtLeast, keywordAtMost: RepeatAtMost,
		}[next.lit]

		return ExpectRepeat{Kind: kind, Bounds: []string{bound}, Keyword: next.lit}, nil
	case keywordBetween:
		p.lex.advance()

		lo, err := p.expr("lower bound", stopAtComma)
		if err != nil {
			return ExpectRepeat{}, err
		}

		if comma := p.lex.peek(0); comma.tok != token.COMMA {
			return ExpectRepeat{}, p.errorAt(comma, "',' between the bounds")
		}

		p.lex.advance()

		hi, err := p.expr("upper bound", stopAtSemicolon)
		if err != nil {
			return ExpectRepeat{}, err
		}

		return ExpectRepeat{Kind: RepeatBetween, Bounds: []string{lo, hi}, Keyword: keywordBetween}, nil
	}

	return ExpectRepeat{}, p.errorAt(next, "times, at_least, at_most, between, once or never")
}

// expr slices one expression and validates it as Go.
func (p *dslParser) expr(what string, stop func(lexeme) bool) (string, error) {
	start := p.lex.peek(0)

	text, err := p.slice(what, stop)
	if err != nil {
		return "", err
	}

	_, parseErr := parser.ParseExpr(text)
	if parseErr != nil {
		return "", &GrammarError{Pos: p.base + start.start, Expected: what + " (a Go expression)", Found: text}
	}

	return text, nil
}

// exprList slices comma separated expressions up to a stop token.
func (p *dslParser) exprList(what string, stop func(lexeme) bool) ([]string, error) {
	var exprs []string

	for {
		e, err := p.expr(what, func(l lexeme) bool { return l.tok == token.COMMA || stop(l) })
		if err != nil {
			return nil, err
		}

		exprs = append(exprs, e)

		if p.lex.peek(0).tok != token.COMMA {
			return exprs, nil
		}

		p.lex.advance()
	}
}

// givenMethod parses "Method matcher then repeat" after a target.
func (p *dslParser) givenMethod(target Target) (GivenStatement, error) {
	stmt := GivenStatement{Target: target}

	name, err := p.ident("method name")
	if err != nil {
		return stmt, err
	}

	stmt.Method = name

	stmt.Matcher, err = p.matcher(thenKeywords)
	if err != nil {
		return stmt, err
	}

	stmt.Return, err = p.then()
	if err != nil {
		return stmt, err
	}

	stmt.Repeat, err = p.givenRepeat()
	if err != nil {
		return stmt, err
	}

	return stmt, p.terminator()
}

func (p *dslParser) givenRepeat() (GivenRepeat, error) {
	p.lex.skipAuto()

	next := p.lex.peek(0)

	switch {
	case next.isIdent(keywordOnce):
		p.lex.advance()

		return GivenRepeat{Times: "1", Keyword: keywordOnce}, nil
	case next.isIdent(keywordAlways):
		p.lex.advance()

		return GivenRepeat{Keyword: keywordAlways}, nil
	case next.isIdent(keywordTimes):
		p.lex.advance()

		times, err := p.expr("times bound", stopAtSemicolon)
		if err != nil {
			return GivenRepeat{}, err
		}

		return GivenRepeat{Times: times, Keyword: keywordTimes}, nil
	}

	return GivenRepeat{}, p.errorAt(next, "once, times or always")
}

func (p *dslParser) ident(what string) (string, error) {
	p.lex.skipAuto()

	next := p.lex.peek(0)
	if next.tok != token.IDENT || IsKeyword(next.lit) {
		return "", p.errorAt(next, what)
	}

	p.lex.advance()

	return next.lit, nil
}

// macroHead consumes "name ! open".
func (p *dslParser) macroHead(name string, open token.Token) error {
	head := p.lex.advance()
	if !head.isIdent(name) {
		return p.errorAt(head, name+"!")
	}

	if bang := p.lex.advance(); bang.tok != token.NOT {
		return p.errorAt(bang, "'!' after "+name)
	}

	if next := p.lex.advance(); next.tok != open {
		return p.errorAt(next, "'"+open.String()+"' after "+name+"!")
	}

	return nil
}

// matcher parses "(p1, p2)" as per-argument predicates, anything else up to
// one of the follow keywords as an explicit predicate.
func (p *dslParser) matcher(follow map[string]struct{}) (BehaviourMatcher, error) {
	next := p.lex.peek(0)
	if next.tok == token.LPAREN {
		p.lex.advance()

		if p.lex.peekSignificant().tok == token.RPAREN {
			p.lex.skipAuto()
			p.lex.advance()

			return BehaviourMatcher{Kind: MatchPerArgument}, nil
		}

		exprs, err := p.exprList("argument predicate", func(lexeme) bool { return false })
		if err != nil {
			return BehaviourMatcher{}, err
		}

		if closing := p.lex.peek(0); closing.tok != token.RPAREN {
			return BehaviourMatcher{}, p.errorAt(closing, "')' closing the argument predicates")
		}

		p.lex.advance()

		return BehaviourMatcher{Kind: MatchPerArgument, Exprs: exprs}, nil
	}

	explicit, err := p.expr("argument list or explicit predicate", func(l lexeme) bool {
		_, isFollow := follow[l.lit]

		return l.tok == token.IDENT && isFollow
	})
	if err != nil {
		return BehaviourMatcher{}, err
	}

	return BehaviourMatcher{Kind: MatchExplicit, Exprs: []string{explicit}}, nil
}

func (p *dslParser) remainder() string {
	return p.lex.src[p.lex.last:]
}

// slice collects source text up to a stop token at bracket depth zero or an
// unbalanced closing bracket, and leaves the lexer on that token. Inserted
// semicolons at depth zero are whitespace unless stop accepts them.
func (p *dslParser) slice(what string, stop func(lexeme) bool) (string, error) {
	start := p.lex.peek(0)
	end := start.start
	depth := 0

	for {
		next := p.lex.peek(0)

		if next.tok == token.EOF {
			break
		}

		if depth == 0 && (stop(next) || next.isClose()) {
			break
		}

		switch {
		case next.isOpen():
			depth++
		case next.isClose():
			depth--
		}

		if !next.auto {
			end = next.end
		}

		p.lex.advance()
	}

	text := strings.TrimSpace(p.lex.src[start.start:max(end, start.start)])
	if text == "" {
		return "", p.errorAt(p.lex.peek(0), what)
	}

	return text, nil
}

// target parses "<var as Trait>::" or "var.".
func (p *dslParser) target() (Target, error) {
	next := p.lex.peek(0)

	if next.tok == token.IDENT {
		p.lex.advance()

		if dot := p.lex.peek(0); dot.tok != token.PERIOD {
			return Target{}, p.errorAt(dot, "'.' after mock variable "+next.lit)
		}

		p.lex.advance()

		return Target{MockVar: next.lit}, nil
	}

	p.lex.advance()

	mockVar, err := p.ident("mock variable after '<'")
	if err != nil {
		return Target{}, err
	}

	if as := p.lex.peek(0); !as.isIdent(keywordAs) {
		return Target{}, p.errorAt(as, "'as' after the mock variable")
	}

	p.lex.advance()

	ref, err := p.traitRef()
	if err != nil {
		return Target{}, err
	}

	for _, want := range []token.Token{token.GTR, token.COLON, token.COLON} {
		if got := p.lex.peek(0); got.tok != want {
			return Target{}, p.errorAt(got, "'>::' after the interface reference")
		}

		p.lex.advance()
	}

	return Target{MockVar: mockVar, Trait: &ref}, nil
}

func (p *dslParser) terminator() error {
	next := p.lex.peek(0)

	switch next.tok {
	case token.SEMICOLON:
		p.lex.advance()

		return nil
	case token.RBRACE, token.EOF:
		return nil
	}

	return p.errorAt(next, "';' or newline after the statement")
}

// then parses the then clause of a given statement.
func (p *dslParser) then() (Return, error) {
	p.lex.skipAuto()

	next := p.lex.peek(0)
	if _, ok := thenKeywords[next.lit]; !ok || next.tok != token.IDENT {
		return Return{}, p.errorAt(next, "then_return, then_return_from, then_spy_on_object or then_panic")
	}

	p.lex.advance()

	isRepeat := func(l lexeme) bool {
		_, ok := givenRepeatKeywords[l.lit]

		return l.tok == token.IDENT && ok
	}

	switch next.lit {
	case keywordThenSpy:
		return Return{Kind: ReturnFromSpy, Keyword: next.lit}, nil
	case keywordThenPanic:
		return Return{Kind: ReturnPanic, Keyword: next.lit}, nil
	case keywordThenReturnFrom, keywordThenReturnRefFrom:
		fn, err := p.expr("function after "+next.lit, isRepeat)
		if err != nil {
			return Return{}, err
		}

		return Return{Kind: ReturnFromCall, Exprs: []string{fn}, Keyword: next.lit}, nil
	}

	if isRepeat(p.lex.peekSignificant()) {
		return Return{Kind: ReturnFromValue, Keyword: next.lit}, nil
	}

	values, err := p.exprList("return value", isRepeat)
	if err != nil {
		return Return{}, err
	}

	return Return{Kind: ReturnFromValue, Exprs: values, Keyword: next.lit}, nil
}

// traitRef parses "[pkg.]Name[[args]]".
func (p *dslParser) traitRef() (TraitRef, error) {
	start := p.lex.peek(0)

	name, err := p.ident("interface name")
	if err != nil {
		return TraitRef{}, err
	}

	ref := TraitRef{Name: name, Pos: p.base + start.start}

	if p.lex.peek(0).tok == token.PERIOD {
		p.lex.advance()

		qualified, err := p.ident("interface name after '" + name + ".'")
		if err != nil {
			return TraitRef{}, err
		}

		ref.Package, ref.Name = name, qualified
	}

	if p.lex.peek(0).tok != token.LBRACK {
		return ref, nil
	}

	p.lex.advance()

	for {
		arg := p.lex.peek(0)

		if arg.tok == token.IDENT && p.lex.peek(1).tok == token.ASSIGN {
			p.lex.advance()
			p.lex.advance()

			typ, err := p.typeArg()
			if err != nil {
				return TraitRef{}, err
			}

			ref.Bindings = append(ref.Bindings, TypeBinding{Name: arg.lit, Type: typ})
		} else {
			if len(ref.Bindings) > 0 {
				return TraitRef{}, p.errorAt(arg, "named type binding (positional arguments come first)")
			}

			typ, err := p.typeArg()
			if err != nil {
				return TraitRef{}, err
			}

			ref.Args = append(ref.Args, typ)
		}

		switch closing := p.lex.advance(); closing.tok {
		case token.COMMA:
			continue
		case token.RBRACK:
			return ref, nil
		default:
			return TraitRef{}, p.errorAt(closing, "',' or ']' in the type arguments")
		}
	}
}

func (p *dslParser) typeArg() (string, error) {
	return p.expr("type argument", func(l lexeme) bool { return l.tok == token.COMMA })
}

func stopAtComma(l lexeme) bool {
	return l.tok == token.COMMA || l.tok == token.SEMICOLON
}

func stopAtSemicolon(l lexeme) bool {
	return l.tok == token.SEMICOLON
}
