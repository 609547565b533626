// Package denylist names the stdlib / meta-programming modules that the
// compiler-trace and xref extractors must not report as call targets or
// dependency edges; they are noise relative to a project's own call graph.
package denylist

import "regexp"

var modules = map[string]bool{
	"Kernel":               true,
	"Kernel.SpecialForms":  true,
}

var accessPattern = regexp.MustCompile(`^Access$`)

// Contains reports whether module is on the denylist.
func Contains(module string) bool {
	if modules[module] {
		return true
	}
	return accessPattern.MatchString(module)
}
