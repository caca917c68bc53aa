// Package astutil provides shared utilities for type expression manipulation
// and rendering.
package astutil

import (
	"fmt"
	"strings"

	"github.com/dave/dst"
)

// ExpandFieldListTypes expands a field list into individual type strings.
// For fields with multiple names (e.g., "a, b int"), outputs the type once per name.
// For unnamed fields, outputs the type once.
func ExpandFieldListTypes(fields []*dst.Field, typeFormatter func(dst.Expr) string) []string {
	var parts []string

	for _, f := range fields {
		typeStr := typeFormatter(f.Type)

		count := max(len(f.Names), 1)
		for range count {
			parts = append(parts, typeStr)
		}
	}

	return parts
}

// StringifyExpr renders a type expression as Go source.
func StringifyExpr(expr dst.Expr) string {
	var w typeWriter

	w.expr(expr)

	return w.String()
}

// typeWriter renders dst type expressions. decorator.Restorer only prints
// whole files, so expressions are rendered by hand.
type typeWriter struct {
	strings.Builder
}

//nolint:cyclop,funlen // Type-switch dispatcher over dst expression kinds
func (w *typeWriter) expr(expr dst.Expr) {
	switch typed := expr.(type) {
	case nil:
	case *dst.Ident:
		w.WriteString(typed.Name)
	case *dst.BasicLit:
		w.WriteString(typed.Value)
	case *dst.SelectorExpr:
		w.expr(typed.X)
		w.WriteString(".")
		w.WriteString(typed.Sel.Name)
	case *dst.StarExpr:
		w.WriteString("*")
		w.expr(typed.X)
	case *dst.UnaryExpr:
		w.WriteString(typed.Op.String())
		w.expr(typed.X)
	case *dst.BinaryExpr:
		w.expr(typed.X)
		w.WriteString(" " + typed.Op.String() + " ")
		w.expr(typed.Y)
	case *dst.ArrayType:
		w.WriteString("[")
		w.expr(typed.Len)
		w.WriteString("]")
		w.expr(typed.Elt)
	case *dst.MapType:
		w.WriteString("map[")
		w.expr(typed.Key)
		w.WriteString("]")
		w.expr(typed.Value)
	case *dst.ChanType:
		switch typed.Dir {
		case dst.SEND:
			w.WriteString("chan<- ")
		case dst.RECV:
			w.WriteString("<-chan ")
		default:
			w.WriteString("chan ")
		}

		w.expr(typed.Value)
	case *dst.FuncType:
		w.WriteString("func")
		w.signature(typed)
	case *dst.InterfaceType:
		w.interfaceType(typed)
	case *dst.StructType:
		w.structType(typed)
	case *dst.Ellipsis:
		w.WriteString("...")
		w.expr(typed.Elt)
	case *dst.IndexExpr:
		w.expr(typed.X)
		w.WriteString("[")
		w.expr(typed.Index)
		w.WriteString("]")
	case *dst.IndexListExpr:
		w.expr(typed.X)
		w.WriteString("[")
		w.list(typed.Indices)
		w.WriteString("]")
	case *dst.ParenExpr:
		w.WriteString("(")
		w.expr(typed.X)
		w.WriteString(")")
	default:
		_, _ = fmt.Fprintf(w, "%T", expr)
	}
}

func (w *typeWriter) interfaceType(iface *dst.InterfaceType) {
	if iface.Methods == nil || len(iface.Methods.List) == 0 {
		w.WriteString("interface{}")

		return
	}

	elems := make([]string, 0, len(iface.Methods.List))

	for _, method := range iface.Methods.List {
		var inner typeWriter

		funcType, isMethod := method.Type.(*dst.FuncType)
		if isMethod && len(method.Names) > 0 {
			inner.WriteString(method.Names[0].Name)
			inner.signature(funcType)
		} else {
			inner.expr(method.Type)
		}

		elems = append(elems, inner.String())
	}

	w.WriteString("interface{ " + strings.Join(elems, "; ") + " }")
}

func (w *typeWriter) list(exprs []dst.Expr) {
	for i, e := range exprs {
		if i > 0 {
			w.WriteString(", ")
		}

		w.expr(e)
	}
}

// signature writes "(params) results" without the func keyword.
func (w *typeWriter) signature(funcType *dst.FuncType) {
	var params []*dst.Field
	if funcType.Params != nil {
		params = funcType.Params.List
	}

	w.WriteString("(" + strings.Join(ExpandFieldListTypes(params, StringifyExpr), ", ") + ")")

	if funcType.Results == nil || len(funcType.Results.List) == 0 {
		return
	}

	results := ExpandFieldListTypes(funcType.Results.List, StringifyExpr)
	if len(results) == 1 {
		w.WriteString(" " + results[0])

		return
	}

	w.WriteString(" (" + strings.Join(results, ", ") + ")")
}

func (w *typeWriter) structType(structType *dst.StructType) {
	if structType.Fields == nil || len(structType.Fields.List) == 0 {
		w.WriteString("struct{}")

		return
	}

	fields := make([]string, 0, len(structType.Fields.List))

	for _, field := range structType.Fields.List {
		var inner typeWriter

		names := make([]string, len(field.Names))
		for i, name := range field.Names {
			names[i] = name.Name
		}

		if len(names) > 0 {
			inner.WriteString(strings.Join(names, ", ") + " ")
		}

		inner.expr(field.Type)

		if field.Tag != nil {
			inner.WriteString(" " + field.Tag.Value)
		}

		fields = append(fields, inner.String())
	}

	w.WriteString("struct{ " + strings.Join(fields, "; ") + " }")
}
