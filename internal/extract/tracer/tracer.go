// Package tracer implements the compiler-trace extraction phase: it
// generates a tracer adapter script, invokes the project's build tool
// as a subprocess, and decodes the newline-delimited JSON trace events
// the adapter writes.
package tracer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kodemap/exgraph/internal/extract/denylist"
	"github.com/kodemap/exgraph/internal/record"
)

const adapterScript = `
defmodule ExgraphTracer do
  def trace(event, env) do
    file = Path.relative_to_cwd(env.file)
    caller_module = if env.module, do: inspect(env.module), else: nil
    {caller_fun, caller_arity} = case env.function do
      {name, arity} -> {Atom.to_string(name), arity}
      nil -> {nil, nil}
    end
    case event do
      {:remote_function, meta, module, fun, arity} ->
        emit(%{file: file, line: meta[:line] || env.line, module: inspect(module), fun: Atom.to_string(fun), arity: arity, caller_module: caller_module, caller_fun: caller_fun, caller_arity: caller_arity})
      {:remote_macro, meta, module, fun, arity} ->
        emit(%{file: file, line: meta[:line] || env.line, module: inspect(module), fun: Atom.to_string(fun), arity: arity, caller_module: caller_module, caller_fun: caller_fun, caller_arity: caller_arity})
      _ ->
        :ok
    end
    :ok
  end

  defp emit(map) do
    path = System.get_env("EXGRAPH_TRACE_OUT")
    File.write!(path, Jason.encode!(map) <> "\n", [:append])
  end
end
`

// Event is one decoded tracer line. CallerFun/CallerArity are empty/zero
// when the call site sits outside any function body (module attributes,
// the module body itself), matching env.function being nil in the
// adapter.
type Event struct {
	File         string `json:"file"`
	Line         int    `json:"line"`
	Module       string `json:"module"`
	Fun          string `json:"fun"`
	Arity        int    `json:"arity"`
	CallerModule string `json:"caller_module"`
	CallerFun    string `json:"caller_fun"`
	CallerArity  int    `json:"caller_arity"`
}

// Extract compiles the project under the tracer adapter and returns the
// resolved call edges it observed, deduped by (file, line, callee) and
// filtered through the denylist. Any subprocess failure yields an empty
// result rather than an error, matching the "best-effort" nature of the
// compiler-trace phase.
func Extract(ctx context.Context, projectRoot string) ([]record.CallRef, error) {
	scriptPath, outPath, err := writeAdapter(projectRoot)
	if err != nil {
		return nil, nil
	}
	defer os.Remove(scriptPath)
	defer os.Remove(outPath)

	if err := runTracer(ctx, projectRoot, scriptPath, outPath); err != nil {
		slog.Debug("tracer.run_failed", "error", err)
		return nil, nil
	}

	events, err := readEvents(outPath)
	if err != nil {
		return nil, nil
	}
	return dedupe(events), nil
}

func writeAdapter(projectRoot string) (scriptPath, outPath string, err error) {
	script, err := os.CreateTemp(projectRoot, "exgraph_tracer_*.exs")
	if err != nil {
		return "", "", err
	}
	if _, err := script.WriteString(adapterScript); err != nil {
		script.Close()
		return "", "", err
	}
	script.Close()

	out, err := os.CreateTemp("", "exgraph_trace_*.jsonl")
	if err != nil {
		os.Remove(script.Name())
		return "", "", err
	}
	out.Close()

	return script.Name(), out.Name(), nil
}

func runTracer(ctx context.Context, projectRoot, scriptPath, outPath string) error {
	mixPath, err := exec.LookPath("mix")
	if err != nil {
		return fmt.Errorf("mix not found in PATH: install elixir to enable compiler-trace extraction")
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, mixPath, "compile", "--force", "--tracer", "ExgraphTracer", "-r", scriptPath)
	cmd.Dir = projectRoot
	cmd.Env = append(os.Environ(), "EXGRAPH_TRACE_OUT="+outPath)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mix compile --tracer: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func readEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, scanner.Err()
}

// dedupe filters macro-expansion noise (events on line <= 1 carry no
// useful call-site location), applies the module denylist, and
// collapses duplicate (file, line, callee) triples.
func dedupe(events []Event) []record.CallRef {
	seen := make(map[[3]string]bool)
	var out []record.CallRef
	for _, e := range events {
		if e.Line <= 1 {
			continue
		}
		if denylist.Contains(e.Module) {
			continue
		}
		callee := record.Format(e.Module, e.Fun, e.Arity)
		key := [3]string{e.File, fmt.Sprint(e.Line), callee}
		if seen[key] {
			continue
		}
		seen[key] = true
		var caller string
		if e.CallerModule != "" && e.CallerFun != "" {
			caller = record.Format(e.CallerModule, e.CallerFun, e.CallerArity)
		}
		out = append(out, record.CallRef{
			Caller:     caller,
			Callee:     callee,
			File:       e.File,
			Line:       e.Line,
			Source:     record.SourceCompiler,
			Confidence: record.ConfidenceHigh,
		})
	}
	return out
}
