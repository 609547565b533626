package lang

import "testing"

func TestForExtension(t *testing.T) {
	tests := []struct {
		ext  string
		lang Language
	}{
		{".ex", Elixir},
		{".exs", Elixir},
	}
	for _, tt := range tests {
		spec := ForExtension(tt.ext)
		if spec == nil {
			t.Errorf("ForExtension(%q) = nil, want %s", tt.ext, tt.lang)
			continue
		}
		if spec.Language != tt.lang {
			t.Errorf("ForExtension(%q).Language = %s, want %s", tt.ext, spec.Language, tt.lang)
		}
	}
}

func TestForLanguage(t *testing.T) {
	for _, l := range AllLanguages() {
		spec := ForLanguage(l)
		if spec == nil {
			t.Errorf("ForLanguage(%s) = nil", l)
		}
	}
}

func TestUnknownExtension(t *testing.T) {
	if spec := ForExtension(".xyz"); spec != nil {
		t.Errorf("ForExtension(.xyz) should be nil, got %v", spec)
	}
}

func TestElixirSpec(t *testing.T) {
	spec := ForLanguage(Elixir)
	if spec == nil {
		t.Fatal("Elixir spec not registered")
	}
	if spec.PackageIndicators[0] != "mix.exs" {
		t.Errorf("Elixir PackageIndicators: got %v, want [mix.exs]", spec.PackageIndicators)
	}
	if len(spec.ModuleNodeTypes) == 0 || spec.ModuleNodeTypes[0] != "source" {
		t.Errorf("Elixir ModuleNodeTypes: got %v, want [source]", spec.ModuleNodeTypes)
	}
}
