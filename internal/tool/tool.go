package tool

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/lancet-ai/lancet/internal/model/contract"
)

// Tool is one executable capability the model may call mid-generation.
// Execute is invoked at most once per tool call, only after the input has
// passed schema validation. Tools without external I/O must be total: any
// failure on schema-valid input is a defect, not a modeled error path.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error)
}

// Registry maps tool names to implementations. It is built once before a
// turn starts and is read-only for the lifetime of that turn.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

func (r *Registry) Register(t Tool) {
	name := strings.TrimSpace(t.Name())
	if name == "" {
		panic("tool: empty tool name")
	}
	r.tools[name] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[strings.TrimSpace(name)]
	return t, ok
}

// Definitions returns the declarations sent to the model, sorted by name so
// the prompt stays deterministic across runs.
func (r *Registry) Definitions() []contract.ToolDef {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]contract.ToolDef, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		defs = append(defs, contract.ToolDef{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}
