package main

import (
	"fmt"

	"github.com/lancet-ai/lancet/internal/catalog"
	"github.com/lancet-ai/lancet/internal/config"
	"github.com/lancet-ai/lancet/internal/model/providers/openai"
	"github.com/lancet-ai/lancet/internal/orchestrator"
	"github.com/lancet-ai/lancet/internal/reasoning"
	"github.com/lancet-ai/lancet/internal/sandbox"
	"github.com/lancet-ai/lancet/internal/tool/builtin"
)

// buildOrchestrator wires the provider, tool registry and parser from the
// loaded config. The sandbox client is nil when no base URL is configured;
// execute_code then reports the sandbox as unavailable instead of failing
// startup.
func buildOrchestrator(cfg *config.Config) (*orchestrator.Orchestrator, *sandbox.Client, error) {
	provider, err := openai.New(openai.Config{
		APIKey:  cfg.Model.APIKey,
		BaseURL: cfg.Model.BaseURL,
		Model:   cfg.Model.Name,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("configure model provider: %w", err)
	}

	cat, err := catalog.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load example catalog: %w", err)
	}

	var sandboxClient *sandbox.Client
	if cfg.Sandbox.BaseURL != "" {
		timeout, err := config.DurationOrDefault(cfg.Sandbox.Timeout, config.DefaultSandboxTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("parse sandbox timeout: %w", err)
		}
		sandboxClient = sandbox.NewClient(cfg.Sandbox.BaseURL, timeout)
	}

	registry := builtin.NewRegistry(sandboxClient, cat)
	parser := reasoning.NewParser(cfg.Reasoning.OpenMarker, cfg.Reasoning.CloseMarker)

	return orchestrator.New(provider, registry, parser, cfg.Orchestrator.MaxTurns), sandboxClient, nil
}
