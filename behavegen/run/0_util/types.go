package astutil

import (
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"github.com/dave/dst/dstutil"
)

// ImportName guesses the package name of an import path the way goimports
// does: the last element, skipping major version suffixes, without "go-"
// prefixes or ".vN" suffixes.
func ImportName(importPath string) string {
	elems := strings.Split(importPath, "/")
	name := elems[len(elems)-1]

	if len(elems) > 1 && isMajorVersion(name) {
		name = elems[len(elems)-2]
	}

	name = strings.TrimPrefix(name, "go-")

	if i := strings.Index(name, ".v"); i > 0 {
		name = name[:i]
	}

	name = strings.NewReplacer("-", "_", ".", "_").Replace(name)

	return name
}

// IsBuiltinType reports whether name is a predeclared type or constraint.
func IsBuiltinType(name string) bool {
	switch name {
	case "bool", "byte", "complex64", "complex128",
		"error", "float32", "float64", "int",
		"int8", "int16", "int32", "int64",
		"rune", "string", "uint", "uint8",
		"uint16", "uint32", "uint64", "uintptr",
		"comparable", "any":
		return true
	}

	return false
}

// IsExported reports whether an identifier is exported.
func IsExported(name string) bool {
	if name == "" {
		return false
	}

	return unicode.IsUpper([]rune(name)[0])
}

// ParseExpr parses Go source text into a dst expression.
func ParseExpr(src string) (dst.Expr, error) {
	fset := token.NewFileSet()

	parsed, err := parser.ParseExprFrom(fset, "", src, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrBadExpr, src, err)
	}

	node, err := decorator.NewDecorator(fset).DecorateNode(parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrBadExpr, src, err)
	}

	expr, ok := node.(dst.Expr)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an expression", ErrBadExpr, src)
	}

	return expr, nil
}

// Qualify returns a copy of expr in which every identifier for which declared
// returns true is replaced by pkgAlias.Name. Unexported names cannot be
// referenced from another package and are an error.
func Qualify(expr dst.Expr, pkgAlias string, declared func(name string) bool) (dst.Expr, error) {
	var err error

	result := rewriteIdents(expr, func(ident *dst.Ident) dst.Expr {
		if !declared(ident.Name) {
			return nil
		}

		if !IsExported(ident.Name) {
			err = fmt.Errorf("%w: %s", ErrUnexportedType, ident.Name)

			return nil
		}

		return &dst.SelectorExpr{X: dst.NewIdent(pkgAlias), Sel: dst.NewIdent(ident.Name)}
	}, nil)

	return result, err
}

// RenamePackages returns a copy of expr with the package part of every
// qualified identifier passed through rename. An alias rename does not know is
// an error.
func RenamePackages(expr dst.Expr, rename func(alias string) (string, bool)) (dst.Expr, error) {
	var err error

	result := rewriteIdents(expr, nil, func(sel *dst.SelectorExpr) dst.Expr {
		pkg, ok := sel.X.(*dst.Ident)
		if !ok {
			return nil
		}

		renamed, known := rename(pkg.Name)
		if !known {
			err = fmt.Errorf("%w: %s", ErrUnknownPackage, pkg.Name)

			return nil
		}

		return &dst.SelectorExpr{X: dst.NewIdent(renamed), Sel: dst.NewIdent(sel.Sel.Name)}
	})

	return result, err
}

// Substitute returns a copy of expr in which every identifier named in subst
// is replaced by a copy of its substitution. Field and method names are left
// alone.
func Substitute(expr dst.Expr, subst map[string]dst.Expr) dst.Expr {
	return rewriteIdents(expr, func(ident *dst.Ident) dst.Expr {
		replacement, ok := subst[ident.Name]
		if !ok {
			return nil
		}

		cloned, _ := dst.Clone(replacement).(dst.Expr)

		return cloned
	}, nil)
}

// Errors returned by the type utilities.
var (
	ErrBadExpr        = errors.New("invalid Go expression")
	ErrUnexportedType = errors.New("unexported type cannot be referenced from another package")
	ErrUnknownPackage = errors.New("unknown package")
)

func isMajorVersion(elem string) bool {
	if len(elem) < 2 || elem[0] != 'v' { //nolint:mnd // "v" plus at least one digit
		return false
	}

	for _, r := range elem[1:] {
		if !unicode.IsDigit(r) {
			return false
		}
	}

	return true
}

// rewriteIdents clones expr and walks the copy, replacing type-position
// identifiers through onIdent and qualified identifiers through onSelector.
// A nil result from either callback keeps the node.
func rewriteIdents(
	expr dst.Expr,
	onIdent func(*dst.Ident) dst.Expr,
	onSelector func(*dst.SelectorExpr) dst.Expr,
) dst.Expr {
	if expr == nil {
		return nil
	}

	cloned, _ := dst.Clone(expr).(dst.Expr)
	root := &dst.ParenExpr{X: cloned}

	dstutil.Apply(root, func(cursor *dstutil.Cursor) bool {
		switch node := cursor.Node().(type) {
		case *dst.SelectorExpr:
			if onSelector != nil {
				if replacement := onSelector(node); replacement != nil {
					cursor.Replace(replacement)
				}
			}
			// package-qualified names never contain type parameters
			return false
		case *dst.Ident:
			if isNamePosition(cursor) || onIdent == nil {
				return false
			}

			if replacement := onIdent(node); replacement != nil {
				cursor.Replace(replacement)
			}

			return false
		}

		return true
	}, nil)

	return root.X
}

// isNamePosition reports whether the cursor sits on a field, parameter or
// method name rather than a type.
func isNamePosition(cursor *dstutil.Cursor) bool {
	_, inField := cursor.Parent().(*dst.Field)

	return inField && cursor.Name() == "Names"
}

// CloneExpr copies a dst expression.
func CloneExpr(expr dst.Expr) dst.Expr {
	if expr == nil {
		return nil
	}

	cloned, _ := dst.Clone(expr).(dst.Expr)

	return cloned
}

// ExprText renders an expression, reporting the package of any
// qualified identifier through seen.
func ExprText(expr dst.Expr, seen func(alias string)) string {
	if seen != nil {
		dst.Inspect(expr, func(node dst.Node) bool {
			sel, ok := node.(*dst.SelectorExpr)
			if !ok {
				return true
			}

			if pkg, isIdent := sel.X.(*dst.Ident); isIdent {
				seen(pkg.Name)
			}

			return false
		})
	}

	return StringifyExpr(expr)
}

// Position renders a token position as file:line:col.
func Position(fset *token.FileSet, pos token.Pos) string {
	if fset == nil || !pos.IsValid() {
		return "<unknown>"
	}

	p := fset.Position(pos)

	return fmt.Sprintf("%s:%d:%d", filepath.Base(p.Filename), p.Line, p.Column)
}
