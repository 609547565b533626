package tracer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kodemap/exgraph/internal/record"
)

func TestDedupeDropsLowLineNumbers(t *testing.T) {
	events := []Event{
		{File: "a.ex", Line: 0, Module: "Foo", Fun: "bar", Arity: 1},
		{File: "a.ex", Line: 1, Module: "Foo", Fun: "bar", Arity: 1},
		{File: "a.ex", Line: 5, Module: "Foo", Fun: "bar", Arity: 1},
	}
	out := dedupe(events)
	require.Len(t, out, 1)
	require.Equal(t, 5, out[0].Line)
}

func TestDedupeFiltersDenylistedModules(t *testing.T) {
	events := []Event{
		{File: "a.ex", Line: 3, Module: "Kernel", Fun: "inspect", Arity: 1},
		{File: "a.ex", Line: 4, Module: "App.Foo", Fun: "bar", Arity: 0},
	}
	out := dedupe(events)
	require.Len(t, out, 1)
	require.Equal(t, "App.Foo.bar/0", out[0].Callee)
}

func TestDedupeCollapsesDuplicateSiteKeys(t *testing.T) {
	events := []Event{
		{File: "a.ex", Line: 3, Module: "App.Foo", Fun: "bar", Arity: 0},
		{File: "a.ex", Line: 3, Module: "App.Foo", Fun: "bar", Arity: 0},
	}
	out := dedupe(events)
	require.Len(t, out, 1)
	require.Equal(t, record.SourceCompiler, out[0].Source)
	require.Equal(t, record.ConfidenceHigh, out[0].Confidence)
}

func TestDedupePopulatesCallerFromEnv(t *testing.T) {
	events := []Event{
		{
			File: "a.ex", Line: 3, Module: "App.Foo", Fun: "bar", Arity: 0,
			CallerModule: "App.Baz", CallerFun: "qux", CallerArity: 2,
		},
	}
	out := dedupe(events)
	require.Len(t, out, 1)
	require.Equal(t, "App.Baz.qux/2", out[0].Caller)
	require.Equal(t, "App.Foo.bar/0", out[0].Callee)
}

func TestDedupeLeavesCallerEmptyOutsideFunction(t *testing.T) {
	events := []Event{
		{File: "a.ex", Line: 3, Module: "App.Foo", Fun: "bar", Arity: 0},
	}
	out := dedupe(events)
	require.Len(t, out, 1)
	require.Empty(t, out[0].Caller)
}
