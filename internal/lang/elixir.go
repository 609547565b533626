package lang

func init() {
	Register(&LanguageSpec{
		Language:       Elixir,
		FileExtensions: []string{".ex", ".exs"},
		// Elixir uses "call" for everything (homoiconic): def, defp,
		// defmacro, defmodule, alias/import/require/use, defstruct, and
		// the router/schema DSL macros all arrive as call nodes. The
		// syntactic extractor classifies them by call target, not by
		// dedicated node kinds.
		ModuleNodeTypes:   []string{"source"},
		CallNodeTypes:     []string{"call", "binary_operator"}, // binary_operator covers |>
		PackageIndicators: []string{"mix.exs"},
	})
}
