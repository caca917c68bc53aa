// Package load reads the Go packages and templates behavegen works on.
package load

import (
	"errors"
	"fmt"
	"go/build"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dave/dst"
	"github.com/dave/dst/decorator"
	"golang.org/x/mod/modfile"

	astutil "github.com/toejough/behave/behavegen/run/0_util"
)

// FileSystem is the file access load needs.
type FileSystem interface {
	ReadDir(dir string) ([]os.DirEntry, error)
	ReadFile(path string) ([]byte, error)
	Stat(path string) (os.FileInfo, error)
}

// OSFileSystem implements FileSystem on the local disk.
type OSFileSystem struct{}

// ReadDir lists a directory.
func (OSFileSystem) ReadDir(dir string) ([]os.DirEntry, error) {
	return os.ReadDir(dir)
}

// ReadFile reads a whole file.
func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat describes a file.
func (OSFileSystem) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// Package is a parsed Go package directory.
type Package struct {
	Dir        string
	ImportPath string
	Name       string
	Files      []*dst.File
	Fset       *token.FileSet
	// Decorator maps dst nodes back to their go/ast originals for positions.
	Decorator *decorator.Decorator
}

// Position renders where node was declared as file:line:col.
func (p *Package) Position(node dst.Node) string {
	astNode, ok := p.Decorator.Ast.Nodes[node]
	if !ok {
		return p.Dir
	}

	return astutil.Position(p.Fset, astNode.Pos())
}

// FindModuleRoot locates the nearest directory at or above dir containing a
// go.mod file.
func FindModuleRoot(fsys FileSystem, dir string) (string, error) {
	curr, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	for {
		_, err = fsys.Stat(filepath.Join(curr, "go.mod"))
		if err == nil {
			return curr, nil
		}

		parent := filepath.Dir(curr)
		if parent == curr {
			return "", fmt.Errorf("%w: from %s", errModuleRootNotFound, dir)
		}

		curr = parent
	}
}

// ImportPathOf derives the import path of the package in dir from the module
// path declared in the enclosing go.mod.
func ImportPathOf(fsys FileSystem, dir string) (string, error) {
	root, err := FindModuleRoot(fsys, dir)
	if err != nil {
		return "", err
	}

	content, err := fsys.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}

	modulePath := modfile.ModulePath(content)
	if modulePath == "" {
		return "", fmt.Errorf("%w: %s", errNoModulePath, filepath.Join(root, "go.mod"))
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("failed to relate %s to %s: %w", dir, root, err)
	}

	if rel == "." {
		return modulePath, nil
	}

	return modulePath + "/" + filepath.ToSlash(rel), nil
}

// PackageDST parses the Go files of the package in dir. Test files are
// included when includeTests is set; generated files never are, so that stale
// output cannot affect regeneration.
func PackageDST(fsys FileSystem, dir string, includeTests bool) (*Package, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	fset := token.NewFileSet()
	dec := decorator.NewDecorator(fset)
	pkg := &Package{Dir: dir, Fset: fset, Decorator: dec}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasPrefix(name, "generated_") {
			continue
		}

		if !includeTests && strings.HasSuffix(name, "_test.go") {
			continue
		}

		path := filepath.Join(dir, name)

		src, err := fsys.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		file, err := dec.ParseFile(path, src, parser.ParseComments)
		if err != nil {
			// a broken file elsewhere in the package should not block generation
			continue
		}

		if strings.HasSuffix(file.Name.Name, "_test") {
			continue
		}

		pkg.Name = file.Name.Name
		pkg.Files = append(pkg.Files, file)
	}

	if len(pkg.Files) == 0 {
		return nil, fmt.Errorf("%w: no .go files in %s", ErrNoPackagesFound, dir)
	}

	return pkg, nil
}

// ResolvePackageDir finds the directory of an import path, relative to srcDir
// for local paths ("./x", ".").
func ResolvePackageDir(importPath, srcDir string) (string, error) {
	if importPath == "." || strings.HasPrefix(importPath, "./") || strings.HasPrefix(importPath, "../") {
		return filepath.Join(srcDir, importPath), nil
	}

	if filepath.IsAbs(importPath) {
		return importPath, nil
	}

	pkg, err := build.Import(importPath, srcDir, build.FindOnly)
	if err != nil {
		return "", fmt.Errorf("failed to find package %q: %w", importPath, err)
	}

	return pkg.Dir, nil
}

// Template is a DSL template file: Go test source with behaviour macros.
type Template struct {
	Path    string
	Source  string
	Package string
	// Imports maps the name each import is referred by to its path.
	Imports map[string]string
}

// Templates reads every file in dir ending in ext, sorted by name.
func Templates(fsys FileSystem, dir, ext string) ([]Template, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var templates []Template

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		src, err := fsys.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		pkgName, imports, err := TemplateHeader(path, string(src))
		if err != nil {
			return nil, err
		}

		templates = append(templates, Template{Path: path, Source: string(src), Package: pkgName, Imports: imports})
	}

	sort.Slice(templates, func(i, j int) bool { return templates[i].Path < templates[j].Path })

	return templates, nil
}

// TemplateHeader reads the package clause and imports of a template. Parsing
// stops after the imports, so the DSL in the body does not matter.
func TemplateHeader(path, src string) (string, map[string]string, error) {
	file, err := parser.ParseFile(token.NewFileSet(), path, src, parser.ImportsOnly)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read the header of %s: %w", path, err)
	}

	imports := make(map[string]string, len(file.Imports))

	for _, spec := range file.Imports {
		importPath, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			return "", nil, fmt.Errorf("bad import %s in %s: %w", spec.Path.Value, path, err)
		}

		name := astutil.ImportName(importPath)
		if spec.Name != nil {
			name = spec.Name.Name
		}

		imports[name] = importPath
	}

	return file.Name.Name, imports, nil
}

// ErrNoPackagesFound reports a directory without non-generated Go files.
var ErrNoPackagesFound = errors.New("no packages found")

// unexported variables.
var (
	errModuleRootNotFound = errors.New("could not find module root (go.mod)")
	errNoModulePath       = errors.New("no module path")
)
