// behavegen expands behaviour templates into Go tests and generates the mocks
// they request. Install it with `go install github.com/toejough/behave/behavegen@latest`
// and run it from the package holding the .behave templates, or wire it up
// with a `//go:generate behavegen` comment.
package main

import "github.com/toejough/behave/behavegen/cmd"

func main() {
	cmd.Execute()
}
