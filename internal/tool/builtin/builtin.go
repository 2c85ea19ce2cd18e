// Package builtin holds the tools the clinical assistant exposes to the
// model: remote code execution plus pure data-shaping helpers.
package builtin

import (
	"github.com/lancet-ai/lancet/internal/catalog"
	"github.com/lancet-ai/lancet/internal/sandbox"
	"github.com/lancet-ai/lancet/internal/tool"
)

// NewRegistry assembles the per-turn tool registry. The returned registry is
// treated as read-only once a turn starts.
func NewRegistry(client *sandbox.Client, cat *catalog.Catalog) *tool.Registry {
	return tool.NewRegistry(
		&ExecuteCodeTool{Client: client},
		&AnalyzeCodeTool{},
		&FindExamplesTool{Catalog: cat},
		&CreateChartTool{},
		&CreateTableTool{},
	)
}
