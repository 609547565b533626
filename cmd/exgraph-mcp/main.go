// Command exgraph-mcp indexes a single project and serves its code
// graph over MCP, or answers one query from the command line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kodemap/exgraph/internal/pipeline"
	"github.com/kodemap/exgraph/internal/store"
	"github.com/kodemap/exgraph/internal/tools"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var code int
	switch os.Args[1] {
	case "index":
		code = runIndex(os.Args[2:])
	case "query":
		code = runQuery(os.Args[2:])
	case "mcp":
		code = runMCP(os.Args[2:])
	case "--version":
		fmt.Println("exgraph-mcp", version)
		code = 0
	default:
		usage()
		code = 1
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: exgraph-mcp <index|query|mcp> [flags]")
}

func runIndex(args []string) int {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	path := fs.String("path", ".", "project root to index")
	fs.Parse(args)

	s, err := store.Open(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	p := pipeline.New(context.Background(), s, *path)
	if err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	manifest, err := s.ReadManifest()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	b, _ := json.MarshalIndent(manifest, "", "  ")
	fmt.Println(string(b))
	return 0
}

func runQuery(args []string) int {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	path := fs.String("path", ".", "project root")
	mfa := fs.String("mfa", "", "Module.name/arity")
	module := fs.String("module", "", "module name")
	depth := fs.Int("depth", 1, "BFS depth for callers/callees")
	filesFlag := fs.String("files", "", "comma-separated changed files, for impact_analysis")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: exgraph-mcp query <type> [--mfa|--module|--files|--depth|--path]")
		return 1
	}
	queryType := fs.Arg(0)

	s, err := store.Open(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	srv := tools.NewServer(s, *path)

	toolArgs := map[string]any{}
	if *mfa != "" {
		toolArgs["mfa"] = *mfa
	}
	if *module != "" {
		toolArgs["module"] = *module
	}
	if *filesFlag != "" {
		toolArgs["files"] = splitCSV(*filesFlag)
	}
	toolArgs["depth"] = *depth

	argsJSON, err := json.Marshal(toolArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	result, err := srv.CallTool(context.Background(), queryType, argsJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	var text string
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			text = tc.Text
			break
		}
	}

	if result.IsError {
		fmt.Fprintln(os.Stderr, "error:", text)
		return 1
	}
	fmt.Println(text)
	return 0
}

func runMCP(args []string) int {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	path := fs.String("path", ".", "project root")
	transport := fs.String("transport", "stdio", "transport to serve over (stdio only)")
	fs.Parse(args)

	if *transport != "stdio" {
		fmt.Fprintf(os.Stderr, "error: unsupported transport %q\n", *transport)
		return 1
	}

	s, err := store.Open(*path)
	if err != nil {
		log.Printf("store open err=%v", err)
		return 1
	}
	srv := tools.NewServer(s, *path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.MCPServer().Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Printf("server err=%v", err)
		return 1
	}
	return 0
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
