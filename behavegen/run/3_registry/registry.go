package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dave/dst"

	astutil "github.com/toejough/behave/behavegen/run/0_util"
	dsl "github.com/toejough/behave/behavegen/run/1_dsl"
	load "github.com/toejough/behave/behavegen/run/2_load"
)

// Instance is an interface instantiated for one usage, with every type
// rendered the way the mocks file refers to it.
type Instance struct {
	Usage Usage
	Trait *TraitInfo
	// Type is the interface type expression, type arguments included.
	Type    string
	Methods []Signature
}

// Method returns the instantiated method called name.
func (in *Instance) Method(name string) (Signature, bool) {
	for _, method := range in.Methods {
		if method.Name == name {
			return method, true
		}
	}

	return Signature{}, false
}

// Registry holds the mockable interfaces of a session, keyed by
// "<import path>.<Name>".
type Registry struct {
	traits    map[string]*TraitInfo
	builtins  map[string]*TraitInfo
	locations map[string]string
}

// New returns a registry that knows only the standard library interfaces mocks
// may embed.
func New() *Registry {
	registry := &Registry{
		traits:    make(map[string]*TraitInfo),
		builtins:  make(map[string]*TraitInfo),
		locations: make(map[string]string),
	}

	for path, src := range builtinSources {
		pkg, err := load.PackageFromSource(path, path+".go", src)
		if err != nil {
			panic(fmt.Sprintf("failed to parse builtin interfaces of %s: %v", path, err))
		}

		ifaces, err := load.Mockables(pkg)
		if err != nil {
			panic(fmt.Sprintf("failed to read builtin interfaces of %s: %v", path, err))
		}

		for _, iface := range ifaces {
			info, err := NewTraitInfo(iface)
			if err != nil {
				panic(fmt.Sprintf("failed to read builtin interface %s: %v", iface.Key, err))
			}

			registry.builtins[info.Key] = &info
		}
	}

	return registry
}

// Instantiate resolves ref against the registry and instantiates it. Use-site
// type arguments are written in the terms of scope; every rendered type uses
// the aliases of imports.
func (r *Registry) Instantiate(ref dsl.TraitRef, scope Scope, imports *Imports) (*Instance, error) {
	info, err := r.resolve(ref, scope)
	if err != nil {
		return nil, err
	}

	args, err := useSiteArgs(ref, info, scope, imports)
	if err != nil {
		return nil, err
	}

	inst := &instantiator{registry: r, scope: scope, imports: imports}

	subst := make(map[string]dst.Expr, len(args))
	for i, param := range info.TypeParams {
		subst[param.Name] = args[i]
	}

	methods, err := inst.methods(info, subst)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}

	usage := Usage{Key: info.Key}

	texts := make([]string, 0, len(args))
	for _, arg := range args {
		texts = append(texts, astutil.ExprText(arg, imports.Touch))
		usage.Args = append(usage.Args, canonical(arg, imports))
	}

	typeName := info.Name
	if inst.qualifies(info) {
		alias := imports.Use(info.ImportPath, info.PackageName)
		imports.Touch(alias)
		typeName = alias + "." + info.Name
	}

	if len(texts) > 0 {
		typeName += "[" + strings.Join(texts, ", ") + "]"
	}

	return &Instance{Usage: usage, Trait: info, Type: typeName, Methods: methods}, nil
}

// Known lists the keys of every registered interface, sorted.
func (r *Registry) Known() []string {
	keys := make([]string, 0, len(r.traits))

	for key := range r.traits {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// Lookup finds a registered interface by key.
func (r *Registry) Lookup(key string) (*TraitInfo, bool) {
	info, ok := r.traits[key]

	return info, ok
}

// Register adds an interface. Registering a key again keeps the first entry.
func (r *Registry) Register(info TraitInfo) {
	if _, ok := r.traits[info.Key]; ok {
		return
	}

	r.traits[info.Key] = &info
	r.locations[info.ImportPath+"."+info.Name] = info.Key
}

// RegisterPackage registers every mockable interface of pkg and returns how
// many were found.
func (r *Registry) RegisterPackage(pkg *load.Package) (int, error) {
	ifaces, err := load.Mockables(pkg)
	if err != nil {
		return 0, err
	}

	for _, iface := range ifaces {
		info, err := NewTraitInfo(iface)
		if err != nil {
			return 0, err
		}

		r.Register(info)
	}

	return len(ifaces), nil
}

// find looks an interface up by registered key, then by where it was declared,
// then among the builtins.
func (r *Registry) find(path, name string) (*TraitInfo, bool) {
	key := path + "." + name

	if info, ok := r.traits[key]; ok {
		return info, true
	}

	if registered, ok := r.locations[key]; ok {
		return r.traits[registered], true
	}

	info, ok := r.builtins[key]

	return info, ok
}

func (r *Registry) resolve(ref dsl.TraitRef, scope Scope) (*TraitInfo, error) {
	path := scope.PackagePath

	if ref.Package != "" {
		imported, ok := scope.Imports[ref.Package]
		if !ok {
			return nil, fmt.Errorf("%w: %s: package %s is not imported (known: %s)",
				ErrUnknownTrait, ref.QualifiedName(), ref.Package, r.knownList())
		}

		path = imported
	}

	info, ok := r.find(path, ref.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s (known: %s)", ErrUnknownTrait, path, ref.Name, r.knownList())
	}

	return info, nil
}

func (r *Registry) knownList() string {
	known := r.Known()
	if len(known) == 0 {
		return "none"
	}

	return strings.Join(known, ", ")
}

// Scope describes where an interface is used: the imports of the template it
// is referenced from and the package the mocks are generated into.
type Scope struct {
	Imports     map[string]string
	PackagePath string
	// External is set when the mocks live in the package's _test package.
	External bool
}

// Signature is an instantiated method.
type Signature struct {
	Name    string
	Params  []string
	Results []string
	// Variadic marks the last parameter as "...T"; Params holds T.
	Variadic bool
	// Trait is the key of the interface declaring the method.
	Trait string
}

// Equal reports whether two signatures have the same name and types.
func (s Signature) Equal(other Signature) bool {
	return s.Name == other.Name && s.Variadic == other.Variadic &&
		strings.Join(s.Params, ",") == strings.Join(other.Params, ",") &&
		strings.Join(s.Results, ",") == strings.Join(other.Results, ",")
}

// Errors returned while resolving and instantiating interfaces.
var (
	ErrConflictingMethod = errors.New("method declared with different signatures")
	ErrMissingTypeArgs   = errors.New("missing type arguments")
	ErrTypeArgs          = errors.New("bad type arguments")
	ErrUnexportedMethod  = errors.New("unexported method cannot be implemented outside its package")
	ErrUnknownTrait      = errors.New("unknown mockable interface")
	ErrUnresolvedEmbed   = errors.New("embedded interface is not mockable")
)

// unexported variables.
var (
	errNotAMethod = errors.New("interface element is not a method")
)

// instantiator rewrites declared types into the terms of the mocks file.
type instantiator struct {
	registry *Registry
	scope    Scope
	imports  *Imports
}

func (in *instantiator) embedded(info *TraitInfo, embed dst.Expr, subst map[string]dst.Expr) ([]Signature, error) {
	base := embed

	var args []dst.Expr

	switch typed := embed.(type) {
	case *dst.IndexExpr:
		base, args = typed.X, []dst.Expr{typed.Index}
	case *dst.IndexListExpr:
		base, args = typed.X, typed.Indices
	}

	var path, name string

	switch typed := base.(type) {
	case *dst.Ident:
		if typed.Name == "error" && !info.Declared["error"] {
			return []Signature{{Name: "Error", Results: []string{"string"}, Trait: "error"}}, nil
		}

		path, name = info.ImportPath, typed.Name
	case *dst.SelectorExpr:
		pkg, _ := typed.X.(*dst.Ident)
		if pkg == nil || info.Imports[pkg.Name] == "" {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedEmbed, astutil.StringifyExpr(embed))
		}

		path, name = info.Imports[pkg.Name], typed.Sel.Name
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedEmbed, astutil.StringifyExpr(embed))
	}

	embeddedInfo, ok := in.registry.find(path, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s embeds %s", ErrUnresolvedEmbed, info.Key, astutil.StringifyExpr(embed))
	}

	if len(args) != len(embeddedInfo.TypeParams) {
		return nil, fmt.Errorf("%w: %s embeds %s with %d type arguments, want %d",
			ErrTypeArgs, info.Key, astutil.StringifyExpr(embed), len(args), len(embeddedInfo.TypeParams))
	}

	embeddedSubst := make(map[string]dst.Expr, len(args))

	for i, arg := range args {
		localized, err := in.localize(info, arg, subst)
		if err != nil {
			return nil, err
		}

		embeddedSubst[embeddedInfo.TypeParams[i].Name] = localized
	}

	return in.methods(embeddedInfo, embeddedSubst)
}

// localize renders a type declared in info's file in the terms of the mocks
// file: package aliases renamed, package-level names qualified, type
// parameters substituted.
func (in *instantiator) localize(info *TraitInfo, expr dst.Expr, subst map[string]dst.Expr) (dst.Expr, error) {
	renamed, err := astutil.RenamePackages(expr, func(alias string) (string, bool) {
		path, ok := info.Imports[alias]
		if !ok {
			return "", false
		}

		return in.imports.Use(path, alias), true
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", info.Key, err)
	}

	if in.qualifies(info) {
		alias := in.imports.Use(info.ImportPath, info.PackageName)

		renamed, err = astutil.Qualify(renamed, alias, func(name string) bool {
			_, isParam := subst[name]

			return info.Declared[name] && !isParam
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", info.Key, err)
		}
	}

	return astutil.Substitute(renamed, subst), nil
}

func (in *instantiator) methods(info *TraitInfo, subst map[string]dst.Expr) ([]Signature, error) {
	var methods []Signature

	for _, embed := range info.Embeds {
		embedded, err := in.embedded(info, embed, subst)
		if err != nil {
			return nil, err
		}

		methods = append(methods, embedded...)
	}

	for _, method := range info.Methods {
		if in.qualifies(info) && !astutil.IsExported(method.Name) {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnexportedMethod, info.Key, method.Name)
		}

		sig := Signature{Name: method.Name, Variadic: method.Variadic, Trait: info.Key}

		for _, param := range method.Params {
			text, err := in.render(info, param, subst)
			if err != nil {
				return nil, err
			}

			sig.Params = append(sig.Params, text)
		}

		for _, result := range method.Results {
			text, err := in.render(info, result, subst)
			if err != nil {
				return nil, err
			}

			sig.Results = append(sig.Results, text)
		}

		methods = append(methods, sig)
	}

	return dedupe(methods)
}

// qualifies reports whether names declared in info's package need a package
// qualifier in the mocks file.
func (in *instantiator) qualifies(info *TraitInfo) bool {
	return info.ImportPath != in.scope.PackagePath || in.scope.External
}

func (in *instantiator) render(info *TraitInfo, expr dst.Expr, subst map[string]dst.Expr) (string, error) {
	localized, err := in.localize(info, expr, subst)
	if err != nil {
		return "", err
	}

	return astutil.ExprText(localized, in.imports.Touch), nil
}

// canonical renders a type with package aliases replaced by import paths.
func canonical(expr dst.Expr, imports *Imports) string {
	renamed, err := astutil.RenamePackages(expr, imports.Path)
	if err != nil {
		return astutil.StringifyExpr(expr)
	}

	return astutil.StringifyExpr(renamed)
}

// dedupe drops repeated methods, which embedding may introduce; a repeated
// name with a different signature is an error.
func dedupe(methods []Signature) ([]Signature, error) {
	seen := make(map[string]Signature, len(methods))
	result := methods[:0]

	for _, method := range methods {
		previous, ok := seen[method.Name]
		if !ok {
			seen[method.Name] = method
			result = append(result, method)

			continue
		}

		if !previous.Equal(method) {
			return nil, fmt.Errorf("%w: %s in %s and %s", ErrConflictingMethod, method.Name, previous.Trait, method.Trait)
		}
	}

	return result, nil
}

func useSiteArgs(ref dsl.TraitRef, info *TraitInfo, scope Scope, imports *Imports) ([]dst.Expr, error) {
	params := info.TypeParams
	supplied := len(ref.Args) + len(ref.Bindings)

	if len(params) == 0 {
		if supplied > 0 {
			return nil, fmt.Errorf("%w: %s takes no type arguments", ErrTypeArgs, info.Key)
		}

		return nil, nil
	}

	if supplied == 0 {
		names := make([]string, 0, len(params))
		for _, param := range params {
			names = append(names, param.Name)
		}

		return nil, fmt.Errorf("%w: %s has type parameters [%s]; write %s[...]",
			ErrMissingTypeArgs, info.Key, strings.Join(names, ", "), ref.QualifiedName())
	}

	if len(ref.Args) > len(params) {
		return nil, fmt.Errorf("%w: %s takes %d type arguments, got %d", ErrTypeArgs, info.Key, len(params), len(ref.Args))
	}

	texts := make([]string, len(params))
	copy(texts, ref.Args)

	for _, binding := range ref.Bindings {
		idx := -1

		for i, param := range params {
			if param.Name == binding.Name {
				idx = i
			}
		}

		if idx < 0 {
			return nil, fmt.Errorf("%w: %s has no type parameter %s", ErrTypeArgs, info.Key, binding.Name)
		}

		if texts[idx] != "" {
			return nil, fmt.Errorf("%w: type parameter %s of %s bound twice", ErrTypeArgs, binding.Name, info.Key)
		}

		texts[idx] = binding.Type
	}

	args := make([]dst.Expr, 0, len(params))

	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("%w: missing type argument for %s of %s", ErrTypeArgs, params[i].Name, info.Key)
		}

		expr, err := astutil.ParseExpr(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTypeArgs, err)
		}

		expr, err = astutil.RenamePackages(expr, func(alias string) (string, bool) {
			path, ok := scope.Imports[alias]
			if !ok {
				return "", false
			}

			return imports.Use(path, alias), true
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTypeArgs, text, err)
		}

		args = append(args, expr)
	}

	return args, nil
}
