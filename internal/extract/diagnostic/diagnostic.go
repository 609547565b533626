// Package diagnostic implements the diagnostic extraction phase: it
// runs a compilation wrapped in a diagnostic-capturing scope and
// collects severity/message/location tuples. Any failure - missing
// compiler, timeout, unparsable output - yields an empty result.
package diagnostic

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kodemap/exgraph/internal/record"
)

const collectorScript = `
Code.compiler_options(ignore_module_conflict: true)
diagnostics = []

{result, diagnostics} =
  try do
    Kernel.ParallelCompiler.compile_to_path(
      Path.wildcard("lib/**/*.ex"),
      Mix.Project.compile_path(),
      [
        return_diagnostics: true,
        each_cycle: fn _ -> {:runtime, []} end
      ]
    )
  rescue
    _ -> {:error, diagnostics}
  end

path = System.get_env("EXGRAPH_DIAG_OUT")
file = File.open!(path, [:write])

case result do
  {:ok, _, diags} -> Enum.each(diags, fn d -> IO.puts(file, Jason.encode!(d)) end)
  {:error, diags, _} -> Enum.each(diags, fn d -> IO.puts(file, Jason.encode!(d)) end)
  _ -> :ok
end

File.close(file)
`

type rawDiagnostic struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
	File     string `json:"file"`
	Position int    `json:"position"`
	Source   string `json:"compiler_name"`
}

var severities = map[string]record.Severity{
	"error":   record.SeverityError,
	"warning": record.SeverityWarning,
	"info":    record.SeverityInfo,
	"hint":    record.SeverityHint,
}

// Extract compiles projectRoot under a diagnostic-capturing script and
// returns whatever diagnostics it collected. Only runs if `mix` and
// `elixir` are on PATH; any subprocess error collapses to an empty
// result rather than propagating.
func Extract(ctx context.Context, projectRoot string) ([]record.Diagnostic, error) {
	elixirPath, err := exec.LookPath("elixir")
	if err != nil {
		return nil, nil
	}

	scriptPath, outPath, err := writeCollector(projectRoot)
	if err != nil {
		return nil, nil
	}
	defer os.Remove(scriptPath)
	defer os.Remove(outPath)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, elixirPath, "-S", "mix", "run", scriptPath)
	cmd.Dir = projectRoot
	cmd.Env = append(os.Environ(), "EXGRAPH_DIAG_OUT="+outPath)

	if output, err := cmd.CombinedOutput(); err != nil {
		slog.Debug("diagnostic.run_failed", "error", err, "output", strings.TrimSpace(string(output)))
		return nil, nil
	}

	return readDiagnostics(outPath, projectRoot)
}

func writeCollector(projectRoot string) (scriptPath, outPath string, err error) {
	script, err := os.CreateTemp(projectRoot, "exgraph_diag_*.exs")
	if err != nil {
		return "", "", err
	}
	if _, err := script.WriteString(collectorScript); err != nil {
		script.Close()
		return "", "", err
	}
	script.Close()

	out, err := os.CreateTemp("", "exgraph_diag_*.jsonl")
	if err != nil {
		os.Remove(script.Name())
		return "", "", err
	}
	out.Close()

	return script.Name(), out.Name(), nil
}

func readDiagnostics(path, projectRoot string) ([]record.Diagnostic, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil
	}
	defer f.Close()

	var out []record.Diagnostic
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var raw rawDiagnostic
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			continue
		}
		sev, ok := severities[raw.Severity]
		if !ok {
			continue
		}
		out = append(out, record.Diagnostic{
			Severity: sev,
			Message:  raw.Message,
			File:     strings.TrimPrefix(raw.File, projectRoot+"/"),
			Line:     raw.Position,
			Tag:      raw.Source,
		})
	}
	return out, nil
}
