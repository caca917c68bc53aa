package load

import (
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"

	astutil "github.com/toejough/behave/behavegen/run/0_util"
)

// Directive marks an interface as mockable. An optional argument names the
// import path the interface is registered under, for interfaces re-exported
// from another package.
const Directive = "//behave:mockable"

// Interface is a mockable interface found in a package.
type Interface struct {
	// Key is the registry key: the registered import path, a dot, and Name.
	Key         string
	Name        string
	ImportPath  string
	PackageName string
	TypeParams  []*dst.Field
	Methods     []*dst.Field
	Embeds      []dst.Expr
	// Imports maps the names the declaring file refers to packages by to their
	// import paths.
	Imports map[string]string
	// Declared holds the type and constant names declared at the top level of
	// the package.
	Declared map[string]bool
	Pos      string
}

// LoadPackage parses the non-test files of the package in dir and works out
// its import path.
func LoadPackage(fsys FileSystem, dir string) (*Package, error) {
	pkg, err := PackageDST(fsys, dir, false)
	if err != nil {
		return nil, err
	}

	pkg.ImportPath, err = ImportPathOf(fsys, dir)
	if err != nil {
		return nil, err
	}

	return pkg, nil
}

// Mockables returns the interfaces of pkg carrying the mockable directive, in
// declaration order.
func Mockables(pkg *Package) ([]Interface, error) {
	declared := declaredNames(pkg.Files)

	var found []Interface

	for _, file := range pkg.Files {
		imports, err := fileImports(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pkg.Dir, err)
		}

		for _, decl := range file.Decls {
			genDecl, ok := decl.(*dst.GenDecl)
			if !ok {
				continue
			}

			for _, spec := range genDecl.Specs {
				typeSpec, ok := spec.(*dst.TypeSpec)
				if !ok {
					continue
				}

				path, marked := directive(typeSpec.Decs.Start.All())
				if !marked && len(genDecl.Specs) == 1 {
					path, marked = directive(genDecl.Decs.Start.All())
				}

				if !marked {
					continue
				}

				iface, err := newInterface(pkg, typeSpec, path, imports, declared)
				if err != nil {
					return nil, err
				}

				found = append(found, iface)
			}
		}
	}

	return found, nil
}

// unexported variables.
var (
	errBadDirective = errors.New("malformed mockable directive")
	errNotInterface = errors.New("mockable directive on a type that is not an interface")
	errTypeSetIface = errors.New("interfaces with type sets cannot be mocked")
)

func declaredNames(files []*dst.File) map[string]bool {
	declared := make(map[string]bool)

	for _, file := range files {
		for _, decl := range file.Decls {
			genDecl, ok := decl.(*dst.GenDecl)
			if !ok {
				continue
			}

			for _, spec := range genDecl.Specs {
				switch typed := spec.(type) {
				case *dst.TypeSpec:
					declared[typed.Name.Name] = true
				case *dst.ValueSpec:
					for _, name := range typed.Names {
						declared[name.Name] = true
					}
				}
			}
		}
	}

	return declared
}

// directive looks for the mockable directive among comment lines, returning
// its argument.
func directive(comments []string) (string, bool) {
	for _, comment := range comments {
		rest, ok := strings.CutPrefix(comment, Directive)
		if !ok {
			continue
		}

		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			continue
		}

		return strings.TrimSpace(rest), true
	}

	return "", false
}

func fileImports(file *dst.File) (map[string]string, error) {
	imports := make(map[string]string, len(file.Imports))

	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			return nil, fmt.Errorf("bad import %s: %w", spec.Path.Value, err)
		}

		name := astutil.ImportName(path)
		if spec.Name != nil {
			name = spec.Name.Name
		}

		imports[name] = path
	}

	return imports, nil
}

func newInterface(
	pkg *Package,
	spec *dst.TypeSpec,
	path string,
	imports map[string]string,
	declared map[string]bool,
) (Interface, error) {
	pos := pkg.Position(spec)

	ifaceType, ok := spec.Type.(*dst.InterfaceType)
	if !ok {
		return Interface{}, fmt.Errorf("%s: %w: %s", pos, errNotInterface, spec.Name.Name)
	}

	if strings.ContainsAny(path, " \t\"") {
		return Interface{}, fmt.Errorf("%s: %w: %q", pos, errBadDirective, path)
	}

	if path == "" {
		path = pkg.ImportPath
	}

	iface := Interface{
		Key:         path + "." + spec.Name.Name,
		Name:        spec.Name.Name,
		ImportPath:  pkg.ImportPath,
		PackageName: pkg.Name,
		Imports:     imports,
		Declared:    declared,
		Pos:         pos,
	}

	if spec.TypeParams != nil {
		iface.TypeParams = spec.TypeParams.List
	}

	for _, field := range ifaceType.Methods.List {
		if len(field.Names) > 0 {
			iface.Methods = append(iface.Methods, field)

			continue
		}

		switch field.Type.(type) {
		case *dst.Ident, *dst.SelectorExpr, *dst.IndexExpr, *dst.IndexListExpr:
			iface.Embeds = append(iface.Embeds, field.Type)
		default:
			return Interface{}, fmt.Errorf("%s: %w: %s", pos, errTypeSetIface, spec.Name.Name)
		}
	}

	return iface, nil
}

// PackageFromSource parses a single in-memory file as the package importPath.
func PackageFromSource(importPath, filename, src string) (*Package, error) {
	fset := token.NewFileSet()
	dec := decorator.NewDecorator(fset)

	file, err := dec.ParseFile(filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	return &Package{
		Dir:        filename,
		ImportPath: importPath,
		Name:       file.Name.Name,
		Files:      []*dst.File{file},
		Fset:       fset,
		Decorator:  dec,
	}, nil
}
