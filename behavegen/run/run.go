// Package run implements the main logic for the behavegen tool in a testable way.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	load "github.com/toejough/behave/behavegen/run/2_load"
	registry "github.com/toejough/behave/behavegen/run/3_registry"
	expand "github.com/toejough/behave/behavegen/run/5_expand"
	generate "github.com/toejough/behave/behavegen/run/6_generate"
	output "github.com/toejough/behave/behavegen/run/7_output"
)

// FileSystem is everything behavegen reads and writes.
type FileSystem interface {
	load.FileSystem
	WriteFile(name string, data []byte, perm os.FileMode) error
}

// OSFileSystem is the FileSystem of the running process.
type OSFileSystem struct {
	load.OSFileSystem
}

// WriteFile implements FileSystem.
func (OSFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

// Config holds the settings of a run.
type Config struct {
	TemplateExt string
	MocksFile   string
	Reporter    string
	// RuntimeImport is the import path of the behave runtime package.
	RuntimeImport string
	// MockablePackages are scanned for mockable interfaces in addition to the
	// package itself and the module packages its templates import.
	MockablePackages []string
	Check            bool
	// Parallel bounds how many packages are generated at once; 0 is unbounded.
	Parallel int
	Dump     io.Writer
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		TemplateExt:   ".behave",
		MocksFile:     "generated_behave_mocks_test.go",
		Reporter:      "t",
		RuntimeImport: "github.com/toejough/behave",
	}
}

// Run generates the package in each directory and writes the results. Nothing
// is written unless every package generated cleanly.
func Run(ctx context.Context, dirs []string, cfg Config, fsys FileSystem, log *zap.Logger, out io.Writer) error {
	results := make([][]output.File, len(dirs))

	group, ctx := errgroup.WithContext(ctx)
	if cfg.Parallel > 0 {
		group.SetLimit(cfg.Parallel)
	}

	for i, dir := range dirs {
		group.Go(func() error {
			files, err := Package(ctx, dir, cfg, fsys, log)
			results[i] = files

			return err
		})
	}

	err := group.Wait()
	if err != nil {
		return err
	}

	var files []output.File
	for _, result := range results {
		files = append(files, result...)
	}

	return output.WriteGeneratedCode(files, fsys, output.Options{Check: cfg.Check, Dump: cfg.Dump}, log, out)
}

// Package expands the templates of the package in dir and generates its mocks
// file. A directory without templates generates nothing.
func Package(ctx context.Context, dir string, cfg Config, fsys FileSystem, log *zap.Logger) ([]output.File, error) {
	log = log.With(zap.String("dir", dir))

	templates, err := load.Templates(fsys, dir, cfg.TemplateExt)
	if err != nil {
		return nil, err
	}

	if len(templates) == 0 {
		log.Debug("no templates")

		return nil, nil
	}

	reg, importPath, err := Registry(fsys, dir, templates, cfg.MockablePackages, log)
	if err != nil {
		return nil, err
	}

	session := expand.NewSession(reg, expand.Config{
		PackagePath: importPath,
		RuntimePath: cfg.RuntimeImport,
		Reporter:    cfg.Reporter,
	}, log)

	files := make([]output.File, 0, len(templates)+1)

	for _, tmpl := range templates {
		err = ctx.Err()
		if err != nil {
			return nil, err
		}

		expanded, err := session.Expand(tmpl)
		if err != nil {
			return nil, err
		}

		files = append(files, output.File{Path: expanded.Path, Source: expanded.Source})
	}

	plan := session.Drain()

	mocks, err := generate.MocksCode(plan)
	if err != nil {
		return nil, err
	}

	log.Info("generated package",
		zap.Int("templates", len(templates)), zap.Int("mocks", len(plan.Mocks)), zap.Int("usages", len(plan.Usages)))

	return append(files, output.File{Path: filepath.Join(dir, cfg.MocksFile), Source: mocks}), nil
}

// Registry collects the mockable interfaces visible to the templates of dir:
// those of the package itself, of the module packages the templates import,
// and of the extra packages. It also returns the import path of dir.
func Registry(
	fsys FileSystem, dir string, templates []load.Template, extra []string, log *zap.Logger,
) (*registry.Registry, string, error) {
	importPath, err := load.ImportPathOf(fsys, dir)
	if err != nil {
		return nil, "", err
	}

	reg := registry.New()
	loaded := make(map[string]bool)

	scan := func(dir string) error {
		pkgDir, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", dir, err)
		}

		if loaded[pkgDir] {
			return nil
		}

		loaded[pkgDir] = true

		pkg, err := load.LoadPackage(fsys, pkgDir)
		if errors.Is(err, load.ErrNoPackagesFound) {
			return nil
		}

		if err != nil {
			return err
		}

		count, err := reg.RegisterPackage(pkg)
		if err != nil {
			return err
		}

		log.Debug("registered mockable interfaces", zap.String("package", pkg.ImportPath), zap.Int("count", count))

		return nil
	}

	err = scan(dir)
	if err != nil {
		return nil, "", err
	}

	imported, err := moduleImports(fsys, dir, templates)
	if err != nil {
		return nil, "", err
	}

	for _, pkgDir := range imported {
		err = scan(pkgDir)
		if err != nil {
			return nil, "", err
		}
	}

	for _, path := range extra {
		pkgDir, err := load.ResolvePackageDir(path, dir)
		if err != nil {
			return nil, "", err
		}

		err = scan(pkgDir)
		if err != nil {
			return nil, "", fmt.Errorf("mockable package %s: %w", path, err)
		}
	}

	return reg, importPath, nil
}

// moduleImports lists the directories of the packages in dir's module that
// the templates import, sorted.
func moduleImports(fsys FileSystem, dir string, templates []load.Template) ([]string, error) {
	root, err := load.FindModuleRoot(fsys, dir)
	if err != nil {
		return nil, err
	}

	modulePath, err := load.ImportPathOf(fsys, root)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)

	var dirs []string

	for _, tmpl := range templates {
		for _, path := range tmpl.Imports {
			rel, ok := strings.CutPrefix(path, modulePath)
			if !ok || (rel != "" && !strings.HasPrefix(rel, "/")) {
				continue
			}

			pkgDir := filepath.Join(root, filepath.FromSlash(rel))
			if !seen[pkgDir] {
				seen[pkgDir] = true
				dirs = append(dirs, pkgDir)
			}
		}
	}

	sort.Strings(dirs)

	return dirs, nil
}

// Listing is what behavegen sees in one package.
type Listing struct {
	Dir        string
	Interfaces []*registry.TraitInfo
	Usages     []Usage
}

// Usage is a numbered interface usage and the mocks implementing it.
type Usage struct {
	ID    int
	Type  string
	Mocks []string
}

// List expands the templates of dir without writing anything and reports the
// interfaces it can mock and the usages its templates number.
func List(dir string, cfg Config, fsys FileSystem, log *zap.Logger) (Listing, error) {
	listing := Listing{Dir: dir}

	templates, err := load.Templates(fsys, dir, cfg.TemplateExt)
	if err != nil {
		return listing, err
	}

	reg, importPath, err := Registry(fsys, dir, templates, cfg.MockablePackages, log)
	if err != nil {
		return listing, err
	}

	for _, key := range reg.Known() {
		info, _ := reg.Lookup(key)
		listing.Interfaces = append(listing.Interfaces, info)
	}

	session := expand.NewSession(reg, expand.Config{
		PackagePath: importPath,
		RuntimePath: cfg.RuntimeImport,
		Reporter:    cfg.Reporter,
	}, log)

	for _, tmpl := range templates {
		_, err = session.Expand(tmpl)
		if err != nil {
			return listing, err
		}
	}

	plan := session.Drain()

	for i, inst := range plan.Usages {
		usage := Usage{ID: i + 1, Type: inst.Type}

		for _, mock := range plan.Mocks {
			if mock.Requests(usage.ID) {
				usage.Mocks = append(usage.Mocks, mock.TypeName())
			}
		}

		listing.Usages = append(listing.Usages, usage)
	}

	return listing, nil
}
