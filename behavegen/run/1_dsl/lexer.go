package dsl

import (
	"go/scanner"
	"go/token"
)

// lexeme is one scanned token with its byte range in the source.
type lexeme struct {
	tok   token.Token
	lit   string
	start int
	end   int
	// auto marks semicolons the scanner inserted at a newline.
	auto bool
}

func (l lexeme) text() string {
	if l.lit != "" {
		return l.lit
	}

	return l.tok.String()
}

func (l lexeme) isIdent(name string) bool {
	return l.tok == token.IDENT && l.lit == name
}

func (l lexeme) isOpen() bool {
	return l.tok == token.LPAREN || l.tok == token.LBRACK || l.tok == token.LBRACE
}

func (l lexeme) isClose() bool {
	return l.tok == token.RPAREN || l.tok == token.RBRACK || l.tok == token.RBRACE
}

// lexer scans Go tokens lazily so that parsing a macro never scans past its
// closing bracket.
type lexer struct {
	src     string
	file    *token.File
	scanner scanner.Scanner
	buf     []lexeme
	pos     int
	// last is the end of the last consumed token that was not inserted.
	last int
}

func newLexer(src string) *lexer {
	fset := token.NewFileSet()
	lex := &lexer{src: src, file: fset.AddFile("", fset.Base(), len(src))}

	// malformed tokens surface as ILLEGAL or fail expression validation
	lex.scanner.Init(lex.file, []byte(src), nil, 0)

	return lex
}

// advance consumes the current token.
func (l *lexer) advance() lexeme {
	current := l.peek(0)
	l.pos++

	if !current.auto {
		l.last = current.end
	}

	return current
}

// offset is the start of the current token.
func (l *lexer) offset() int {
	return l.peek(0).start
}

// peek looks k tokens ahead without consuming.
func (l *lexer) peek(k int) lexeme {
	for len(l.buf) <= l.pos+k {
		l.buf = append(l.buf, l.scan())
	}

	return l.buf[l.pos+k]
}

// peekSignificant looks at the next token that is not an inserted semicolon.
func (l *lexer) peekSignificant() lexeme {
	for k := 0; ; k++ {
		next := l.peek(k)
		if !next.auto {
			return next
		}
	}
}

func (l *lexer) scan() lexeme {
	pos, tok, lit := l.scanner.Scan()
	start := l.file.Offset(pos)

	if tok == token.EOF {
		return lexeme{tok: tok, start: len(l.src), end: len(l.src)}
	}

	if tok == token.SEMICOLON && lit == "\n" {
		return lexeme{tok: tok, lit: lit, start: start, end: start, auto: true}
	}

	end := start + len(lit)
	if lit == "" {
		end = start + len(tok.String())
	}

	return lexeme{tok: tok, lit: lit, start: start, end: end}
}

// skipAuto drops inserted semicolons, which are whitespace between clauses.
func (l *lexer) skipAuto() {
	for l.peek(0).auto {
		l.pos++
	}
}
