// Package registry keeps the mockable interfaces known to a generation
// session, instantiates them for concrete type arguments, and numbers the
// distinct interface usages.
package registry

import (
	"fmt"

	"github.com/dave/dst"

	load "github.com/toejough/behave/behavegen/run/2_load"
)

// Method is one method of a mockable interface, with types as declared.
type Method struct {
	Name    string
	Params  []dst.Expr
	Results []dst.Expr
	// Variadic marks the last parameter as "...T"; Params holds T.
	Variadic bool
}

// TraitInfo is the shape of a mockable interface. It is immutable once
// registered.
type TraitInfo struct {
	Key         string
	Name        string
	ImportPath  string
	PackageName string
	TypeParams  []TypeParam
	Embeds      []dst.Expr
	Methods     []Method
	Imports     map[string]string
	Declared    map[string]bool
	Pos         string
}

// TypeParam is a declared type parameter and its constraint.
type TypeParam struct {
	Name       string
	Constraint dst.Expr
}

// NewTraitInfo builds the registry form of a discovered interface.
func NewTraitInfo(iface load.Interface) (TraitInfo, error) {
	info := TraitInfo{
		Key:         iface.Key,
		Name:        iface.Name,
		ImportPath:  iface.ImportPath,
		PackageName: iface.PackageName,
		Embeds:      iface.Embeds,
		Imports:     iface.Imports,
		Declared:    iface.Declared,
		Pos:         iface.Pos,
	}

	for _, field := range iface.TypeParams {
		for _, name := range field.Names {
			info.TypeParams = append(info.TypeParams, TypeParam{Name: name.Name, Constraint: field.Type})
		}
	}

	for _, field := range iface.Methods {
		funcType, ok := field.Type.(*dst.FuncType)
		if !ok {
			return TraitInfo{}, fmt.Errorf("%s: %w: %s", iface.Pos, errNotAMethod, iface.Name)
		}

		for _, name := range field.Names {
			info.Methods = append(info.Methods, newMethod(name.Name, funcType))
		}
	}

	return info, nil
}

func fieldTypes(list *dst.FieldList) []dst.Expr {
	if list == nil {
		return nil
	}

	var types []dst.Expr

	for _, field := range list.List {
		for range max(len(field.Names), 1) {
			types = append(types, field.Type)
		}
	}

	return types
}

func newMethod(name string, funcType *dst.FuncType) Method {
	method := Method{
		Name:    name,
		Params:  fieldTypes(funcType.Params),
		Results: fieldTypes(funcType.Results),
	}

	if last := len(method.Params) - 1; last >= 0 {
		if ellipsis, ok := method.Params[last].(*dst.Ellipsis); ok {
			method.Params[last] = ellipsis.Elt
			method.Variadic = true
		}
	}

	return method
}

// builtinSources declares the standard library interfaces mocks can embed
// without them being marked mockable.
//
//nolint:gochecknoglobals // read-only table
var builtinSources = map[string]string{
	"fmt": `package fmt

//behave:mockable
type Stringer interface { String() string }
`,
	"io": `package io

//behave:mockable
type Reader interface { Read(p []byte) (n int, err error) }

//behave:mockable
type Writer interface { Write(p []byte) (n int, err error) }

//behave:mockable
type Closer interface { Close() error }

//behave:mockable
type ReadWriter interface { Reader; Writer }

//behave:mockable
type ReadCloser interface { Reader; Closer }

//behave:mockable
type WriteCloser interface { Writer; Closer }

//behave:mockable
type ReadWriteCloser interface { Reader; Writer; Closer }
`,
}
