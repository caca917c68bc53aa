package registry

import "strings"

// Usage is an interface together with the type arguments it is instantiated
// with. Args are canonical: package qualifiers are full import paths and
// arguments are in declaration order, so structurally equal usages render
// equal.
type Usage struct {
	Key  string
	Args []string
}

// String renders the usage canonically.
func (u Usage) String() string {
	if len(u.Args) == 0 {
		return u.Key
	}

	return u.Key + "[" + strings.Join(u.Args, ", ") + "]"
}

// Unifier numbers distinct interface usages from 1 in the order they are first
// seen. The numbering is append-only.
type Unifier struct {
	ids    map[string]int
	usages map[string]Usage
}

// NewUnifier returns an empty unifier.
func NewUnifier() *Unifier {
	return &Unifier{ids: make(map[string]int), usages: make(map[string]Usage)}
}

// ID returns the number of a registered usage.
func (u *Unifier) ID(usage Usage) (int, bool) {
	id, ok := u.ids[usage.String()]

	return id, ok
}

// Len is the number of distinct usages registered.
func (u *Unifier) Len() int {
	return len(u.ids)
}

// List returns every registered usage in no particular order.
func (u *Unifier) List() []Usage {
	list := make([]Usage, 0, len(u.usages))

	for _, usage := range u.usages {
		list = append(list, usage)
	}

	return list
}

// Register numbers usage if it has not been seen, and returns its number.
func (u *Unifier) Register(usage Usage) int {
	key := usage.String()

	if id, ok := u.ids[key]; ok {
		return id
	}

	id := len(u.ids) + 1
	u.ids[key] = id
	u.usages[key] = usage

	return id
}
