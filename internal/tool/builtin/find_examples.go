package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lancet-ai/lancet/internal/catalog"
)

type findExamplesArgs struct {
	Query  string `json:"query"`
	Domain string `json:"domain"`
	Limit  int    `json:"limit"`
}

// FindExamplesTool looks up clinical derivation snippets from the bundled
// catalog. Pure: the index is in-memory and the embedding is local.
type FindExamplesTool struct {
	Catalog *catalog.Catalog
}

func (t *FindExamplesTool) Name() string { return "find_examples" }

func (t *FindExamplesTool) Description() string {
	return "Search a curated catalog of SDTM-to-ADaM derivation examples (ADSL, ADAE, ADLB, ADTTE) by free-text description and return matching R snippets."
}

func (t *FindExamplesTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "What the derivation should do, in plain language",
			},
			"domain": map[string]interface{}{
				"type":        "string",
				"description": "Restrict results to one dataset domain",
				"enum":        []string{"adsl", "adae", "adlb", "adtte", "sdtm"},
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of examples to return (default 3)",
				"minimum":     1,
				"maximum":     10,
			},
		},
		"required": []string{"query"},
	}
}

func (t *FindExamplesTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args findExamplesArgs
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	matches, err := t.Catalog.Search(ctx, args.Query, args.Domain, args.Limit)
	if err != nil {
		return nil, fmt.Errorf("example lookup: %w", err)
	}

	return json.Marshal(map[string]interface{}{
		"query":   args.Query,
		"matches": matches,
	})
}
