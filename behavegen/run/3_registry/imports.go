package registry

import (
	"sort"
	"strconv"

	astutil "github.com/toejough/behave/behavegen/run/0_util"
)

// Import is one import of the generated mocks file.
type Import struct {
	Alias string
	Path  string
}

// Imports assigns the names the mocks file uses for the packages it refers
// to. Every import gets an explicit alias; clashing names are numbered. An
// alias is only imported once something rendered with it has been touched.
type Imports struct {
	byPath  map[string]string
	byAlias map[string]string
	used    map[string]bool
}

// NewImports returns an empty import set. Reserved names are never handed out
// as aliases.
func NewImports(reserved ...string) *Imports {
	imports := &Imports{
		byPath:  make(map[string]string),
		byAlias: make(map[string]string),
		used:    make(map[string]bool),
	}

	for _, name := range reserved {
		imports.byAlias[name] = ""
	}

	return imports
}

// All lists the imports that were touched, sorted by path.
func (i *Imports) All() []Import {
	all := make([]Import, 0, len(i.byPath))

	for path, alias := range i.byPath {
		if i.used[alias] {
			all = append(all, Import{Alias: alias, Path: path})
		}
	}

	sort.Slice(all, func(a, b int) bool { return all[a].Path < all[b].Path })

	return all
}

// Path returns the import path an alias stands for.
func (i *Imports) Path(alias string) (string, bool) {
	path, ok := i.byAlias[alias]

	return path, ok && path != ""
}

// Use returns the alias for path, allocating one derived from name, or from
// the path when name is empty, on first use.
func (i *Imports) Use(path, name string) string {
	if alias, ok := i.byPath[path]; ok {
		return alias
	}

	if name == "" {
		name = astutil.ImportName(path)
	}

	alias := name
	for n := 2; ; n++ {
		if _, taken := i.byAlias[alias]; !taken {
			break
		}

		alias = name + strconv.Itoa(n)
	}

	i.byPath[path] = alias
	i.byAlias[alias] = path

	return alias
}

// Touch marks an alias as referenced by generated code. Unknown aliases are
// ignored.
func (i *Imports) Touch(alias string) {
	if _, ok := i.Path(alias); ok {
		i.used[alias] = true
	}
}
