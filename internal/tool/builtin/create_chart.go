package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type chartPoint struct {
	X interface{} `json:"x"`
	Y float64     `json:"y"`
}

type chartSeries struct {
	Name   string       `json:"name"`
	Points []chartPoint `json:"points"`
}

type createChartArgs struct {
	ChartType string        `json:"chart_type"`
	Title     string        `json:"title"`
	XLabel    string        `json:"x_label"`
	YLabel    string        `json:"y_label"`
	Series    []chartSeries `json:"series"`
}

// CreateChartTool shapes model-provided data into the payload the chart
// widget renders. It validates and normalizes; it draws nothing.
type CreateChartTool struct{}

func (t *CreateChartTool) Name() string { return "create_chart" }

func (t *CreateChartTool) Description() string {
	return "Prepare a chart for display from one or more named data series. Supports line, bar, scatter, and box charts."
}

func (t *CreateChartTool) Parameters() map[string]interface{} {
	pointSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"x": map[string]interface{}{"description": "Category label or numeric x value"},
			"y": map[string]interface{}{"type": "number"},
		},
		"required": []string{"x", "y"},
	}

	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"chart_type": map[string]interface{}{
				"type": "string",
				"enum": []string{"line", "bar", "scatter", "box"},
			},
			"title":   map[string]interface{}{"type": "string"},
			"x_label": map[string]interface{}{"type": "string"},
			"y_label": map[string]interface{}{"type": "string"},
			"series": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"name": map[string]interface{}{"type": "string"},
						"points": map[string]interface{}{
							"type":  "array",
							"items": pointSchema,
						},
					},
					"required": []string{"name", "points"},
				},
			},
		},
		"required": []string{"chart_type", "title", "series"},
	}
}

func (t *CreateChartTool) Execute(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args createChartArgs
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	series := make([]chartSeries, 0, len(args.Series))
	pointCount := 0
	for _, s := range args.Series {
		name := strings.TrimSpace(s.Name)
		if name == "" || len(s.Points) == 0 {
			continue
		}
		pointCount += len(s.Points)
		series = append(series, chartSeries{Name: name, Points: s.Points})
	}

	return json.Marshal(map[string]interface{}{
		"chart_type":  args.ChartType,
		"title":       strings.TrimSpace(args.Title),
		"x_label":     args.XLabel,
		"y_label":     args.YLabel,
		"series":      series,
		"point_count": pointCount,
	})
}
