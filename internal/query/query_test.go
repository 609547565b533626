package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kodemap/exgraph/internal/record"
	"github.com/kodemap/exgraph/internal/store"
)

func newTestStore(t *testing.T, lines []store.Line) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.WriteRecords(lines))
	return s
}

func mustLine(t *testing.T, kind record.Kind, data any) store.Line {
	t.Helper()
	l, err := store.NewLine(kind, data, record.SourceSyntactic, record.ConfidenceHigh)
	require.NoError(t, err)
	return l
}

func TestDefinitionReturnsAtMostOne(t *testing.T) {
	s := newTestStore(t, []store.Line{
		mustLine(t, record.KindFunction, record.FunctionDef{Module: "A", Name: "foo", Arity: 0}),
	})
	e := New(s)

	got, err := e.Definition("A.foo/0")
	require.NoError(t, err)
	require.Len(t, got, 1)

	none, err := e.Definition("A.missing/0")
	require.NoError(t, err)
	require.Empty(t, none)

	invalid, err := e.Definition("not-an-mfa")
	require.NoError(t, err)
	require.Empty(t, invalid)
}

func TestReferencesSortedByFileLine(t *testing.T) {
	s := newTestStore(t, []store.Line{
		mustLine(t, record.KindCall, record.CallRef{Caller: "A.a/0", Callee: "B.bar/0", File: "b.ex", Line: 2}),
		mustLine(t, record.KindCall, record.CallRef{Caller: "A.b/0", Callee: "B.bar/0", File: "a.ex", Line: 9}),
	})
	e := New(s)

	refs, err := e.References("B.bar/0")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, "a.ex", refs[0].File)
	require.Equal(t, "b.ex", refs[1].File)
}

func TestCallersAndCalleesScenarioS4(t *testing.T) {
	s := newTestStore(t, []store.Line{
		mustLine(t, record.KindCall, record.CallRef{Caller: "A.foo/0", Callee: "B.bar/0", File: "a.ex", Line: 1}),
	})
	e := New(s)

	callers, err := e.Callers("B.bar/0", 1)
	require.NoError(t, err)
	require.Equal(t, []Hop{{MFA: "A.foo/0", Depth: 1}}, callers)

	callees, err := e.Callees("A.foo/0", 1)
	require.NoError(t, err)
	require.Equal(t, []Hop{{MFA: "B.bar/0", Depth: 1}}, callees)
}

func TestCallersNoDuplicatesAtDepth(t *testing.T) {
	s := newTestStore(t, []store.Line{
		mustLine(t, record.KindCall, record.CallRef{Caller: "A.x/0", Callee: "C.z/0", File: "a.ex", Line: 1}),
		mustLine(t, record.KindCall, record.CallRef{Caller: "A.x/0", Callee: "C.z/0", File: "a.ex", Line: 2}),
		mustLine(t, record.KindCall, record.CallRef{Caller: "B.y/0", Callee: "C.z/0", File: "b.ex", Line: 1}),
	})
	e := New(s)

	callers, err := e.Callers("C.z/0", 1)
	require.NoError(t, err)
	require.Len(t, callers, 2)
	seen := map[string]bool{}
	for _, h := range callers {
		require.False(t, seen[h.MFA], "duplicate mfa at same depth")
		seen[h.MFA] = true
	}
}

func TestCallersDepthZeroIsEmpty(t *testing.T) {
	s := newTestStore(t, []store.Line{
		mustLine(t, record.KindCall, record.CallRef{Caller: "A.foo/0", Callee: "B.bar/0", File: "a.ex", Line: 1}),
	})
	e := New(s)

	callers, err := e.Callers("B.bar/0", 0)
	require.NoError(t, err)
	require.Empty(t, callers)
}

func TestRoutesSorted(t *testing.T) {
	s := newTestStore(t, []store.Line{
		mustLine(t, record.KindRoute, record.Route{Verb: "POST", Path: "/users"}),
		mustLine(t, record.KindRoute, record.Route{Verb: "GET", Path: "/users"}),
		mustLine(t, record.KindRoute, record.Route{Verb: "GET", Path: "/about"}),
	})
	e := New(s)

	routes, err := e.Routes()
	require.NoError(t, err)
	require.Len(t, routes, 3)
	require.Equal(t, "/about", routes[0].Path)
	require.Equal(t, "/users", routes[1].Path)
	require.Equal(t, "POST", routes[2].Verb)
}

func TestImpactScenarioS5(t *testing.T) {
	s := newTestStore(t, []store.Line{
		mustLine(t, record.KindModule, record.ModuleDef{Module: "Accounts", File: "lib/accounts.ex"}),
		mustLine(t, record.KindModule, record.ModuleDef{Module: "UserController", File: "lib/user_controller.ex"}),
		mustLine(t, record.KindDepEdge, record.DepEdge{From: "UserController", To: "Accounts", Type: record.DepCompile}),
		mustLine(t, record.KindDirective, record.DirectiveRef{
			Kind: record.DirectiveAlias, Module: "AccountsTest", Target: "Accounts", File: "test/accounts_test.exs",
		}),
	})
	e := New(s)

	impact, err := e.Impact([]string{"lib/accounts.ex"}, "test/")
	require.NoError(t, err)
	require.Equal(t, []string{"Accounts"}, impact.ChangedModules)
	require.ElementsMatch(t, []string{"Accounts", "UserController"}, impact.AffectedModules)
	require.Equal(t, []string{"test/accounts_test.exs"}, impact.TestFiles)
}
