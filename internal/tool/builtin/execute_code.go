package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lancet-ai/lancet/internal/sandbox"
)

const defaultExecutionSeconds = 30

type executeCodeArgs struct {
	Code          string `json:"code"`
	Timeout       int    `json:"timeout"`
	InputFileURL  string `json:"input_file_url"`
	OutputFileURL string `json:"output_file_url"`
	FileType      string `json:"file_type"`
}

// ExecuteCodeTool runs Python in the remote sandbox. Every failure mode of
// the sandbox (non-success run, non-2xx, transport error) is returned as the
// tool's result payload so the model can see it and adjust; only argument
// validation upstream of this tool produces a tool error.
type ExecuteCodeTool struct {
	Client *sandbox.Client
}

func (t *ExecuteCodeTool) Name() string { return "execute_code" }

func (t *ExecuteCodeTool) Description() string {
	return "Execute Python code in a remote sandbox with common data-science and clinical packages preinstalled (pandas, numpy, scipy, matplotlib, pyreadstat). Returns captured stdout, the error message if the run failed, and wall-clock execution time."
}

func (t *ExecuteCodeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"code": map[string]interface{}{
				"type":        "string",
				"description": "Python source to execute",
			},
			"timeout": map[string]interface{}{
				"type":        "integer",
				"description": "Execution timeout in seconds (default 30)",
				"minimum":     sandbox.MinExecutionSeconds,
				"maximum":     sandbox.MaxExecutionSeconds,
			},
			"input_file_url": map[string]interface{}{
				"type":        "string",
				"description": "Optional presigned GET URL for an input file",
			},
			"output_file_url": map[string]interface{}{
				"type":        "string",
				"description": "Optional presigned PUT URL for an output file",
			},
			"file_type": map[string]interface{}{
				"type":        "string",
				"description": "Input file type",
				"enum":        []string{"csv", "xpt", "pdf"},
			},
		},
		"required": []string{"code"},
	}
}

func (t *ExecuteCodeTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args executeCodeArgs
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	if args.Timeout == 0 {
		args.Timeout = defaultExecutionSeconds
	}

	if t.Client == nil {
		msg := "Code execution sandbox is not configured"
		return json.Marshal(sandbox.ExecuteResult{Success: false, Error: &msg})
	}

	result := t.Client.Execute(ctx, sandbox.ExecuteRequest{
		Code:          args.Code,
		Timeout:       args.Timeout,
		InputFileURL:  args.InputFileURL,
		OutputFileURL: args.OutputFileURL,
		FileType:      args.FileType,
	})

	return json.Marshal(result)
}
