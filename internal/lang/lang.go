// Package lang describes the single source language this indexer
// understands: an Elixir-like, module-based, macro-capable dynamic
// language with Phoenix-style routing and an Ecto-style ORM DSL.
package lang

// Language identifies a source language. The registry below only ever
// holds one entry, Elixir, but keeps the lookup-by-extension shape the
// rest of the pipeline already expects.
type Language string

// Elixir is the only language this indexer extracts from; cross-language
// indexing is out of scope.
const Elixir Language = "elixir"

// AllLanguages returns every registered language.
func AllLanguages() []Language {
	return []Language{Elixir}
}

// LanguageSpec names the tree-sitter node kinds the extractors key off.
// Elixir is homoiconic: most forms of interest are generic "call" nodes
// distinguished only by their target identifier, so the node-type lists
// below are deliberately short: the real discrimination happens in
// internal/extract/syntactic by inspecting call targets.
type LanguageSpec struct {
	Language          Language
	FileExtensions    []string
	ModuleNodeTypes   []string // root node kind representing a whole file
	CallNodeTypes     []string // node kinds that may be function application
	PackageIndicators []string
}

var registry = map[string]*LanguageSpec{}

// Register adds a LanguageSpec to the global registry, keyed by extension.
func Register(spec *LanguageSpec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the LanguageSpec for a file extension (e.g. ".ex").
func ForExtension(ext string) *LanguageSpec {
	return registry[ext]
}

// ForLanguage returns the LanguageSpec for a Language.
func ForLanguage(l Language) *LanguageSpec {
	for _, spec := range registry {
		if spec.Language == l {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language registered for an extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := registry[ext]
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}
