package preflight

import (
	"context"

	"mixlingo/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	// Skipped marks a check for a capability with no credentials configured.
	Skipped bool   `json:"skipped,omitempty"`
	Detail  string `json:"detail"`
}

// RunAll executes every applicable check for cfg. Capability checks make a
// network round trip only when credentials are configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Server.StateDir),
		CheckDirectoryAccess("Audio temp directory", cfg.STT.TempDir),
	}

	if cfg.LLMConfigured() {
		results = append(results, CheckLLM(ctx, cfg.LLM))
	} else {
		results = append(results, skipped("Text generation"))
	}

	if cfg.STTConfigured() {
		results = append(results, CheckSpeech(ctx, cfg.STT))
	} else {
		results = append(results, skipped("Speech to text"))
	}

	return results
}

func skipped(name string) Result {
	return Result{Name: name, Passed: true, Skipped: true, Detail: "not configured (fallback)"}
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
