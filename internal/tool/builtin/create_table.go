package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type createTableArgs struct {
	Title   string          `json:"title"`
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// CreateTableTool shapes tabular results for the table widget. Ragged rows
// are padded or truncated to the declared column count.
type CreateTableTool struct{}

func (t *CreateTableTool) Name() string { return "create_table" }

func (t *CreateTableTool) Description() string {
	return "Prepare a data table for display from column headers and rows of cells."
}

func (t *CreateTableTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"title": map[string]interface{}{"type": "string"},
			"columns": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
			"rows": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "array"},
			},
		},
		"required": []string{"columns", "rows"},
	}
}

func (t *CreateTableTool) Execute(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args createTableArgs
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	if len(args.Columns) == 0 {
		return nil, fmt.Errorf("at least one column is required")
	}

	width := len(args.Columns)
	rows := make([][]interface{}, 0, len(args.Rows))
	for _, row := range args.Rows {
		normalized := make([]interface{}, width)
		for i := 0; i < width; i++ {
			if i < len(row) {
				normalized[i] = row[i]
			} else {
				normalized[i] = ""
			}
		}
		rows = append(rows, normalized)
	}

	return json.Marshal(map[string]interface{}{
		"title":     strings.TrimSpace(args.Title),
		"columns":   args.Columns,
		"rows":      rows,
		"row_count": len(rows),
	})
}
