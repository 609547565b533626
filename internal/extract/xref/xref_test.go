package xref

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kodemap/exgraph/internal/record"
)

func TestEdgesFromDocument(t *testing.T) {
	doc := graphDocument{
		Sources: []struct {
			Source  string   `json:"source"`
			Compile []string `json:"compile"`
			Export  []string `json:"export"`
			Runtime []string `json:"runtime"`
		}{
			{
				Source:  "lib/app/user_controller.ex",
				Compile: []string{"lib/app/accounts.ex"},
				Runtime: []string{"lib/app/repo.ex"},
			},
		},
	}

	edges := edgesFromDocument(doc)
	require.Len(t, edges, 2)

	byType := map[record.DepEdgeType]record.DepEdge{}
	for _, e := range edges {
		byType[e.Type] = e
	}
	require.Equal(t, "App.UserController", byType[record.DepCompile].From)
	require.Equal(t, "App.Accounts", byType[record.DepCompile].To)
	require.Equal(t, "App.Repo", byType[record.DepRuntime].To)
}

func TestEdgesFromDocumentFiltersDenylistedModules(t *testing.T) {
	doc := graphDocument{
		Sources: []struct {
			Source  string   `json:"source"`
			Compile []string `json:"compile"`
			Export  []string `json:"export"`
			Runtime []string `json:"runtime"`
		}{
			{
				Source:  "lib/app/user_controller.ex",
				Compile: []string{"Kernel"},
				Runtime: []string{"Access", "lib/app/repo.ex"},
			},
			{
				Source:  "Kernel.SpecialForms",
				Runtime: []string{"lib/app/repo.ex"},
			},
		},
	}

	edges := edgesFromDocument(doc)
	require.Len(t, edges, 1)
	require.Equal(t, "App.UserController", edges[0].From)
	require.Equal(t, "App.Repo", edges[0].To)
}

func TestModuleFromPath(t *testing.T) {
	require.Equal(t, "App.UserController", moduleFromPath("lib/app/user_controller.ex"))
	require.Equal(t, "App.Accounts", moduleFromPath("lib/app/accounts.ex"))
	require.Equal(t, "Already.Qualified", moduleFromPath("Already.Qualified"))
}
