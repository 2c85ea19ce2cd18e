// Package sandbox is the HTTP client for the remote code-execution service
// (the Modal server). Execution failures of any kind come back as result
// data, never as Go errors: the model needs to see failed runs in-conversation
// and react to them.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout = 330 * time.Second

	// Bounds on the per-execution timeout the model may request.
	MinExecutionSeconds = 1
	MaxExecutionSeconds = 300
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ExecuteRequest mirrors the sandbox's POST /execute body. The file URL
// fields are presigned S3 URLs handed through from the surrounding app.
type ExecuteRequest struct {
	Code          string `json:"code"`
	Timeout       int    `json:"timeout"`
	InputFileURL  string `json:"input_file_url,omitempty"`
	OutputFileURL string `json:"output_file_url,omitempty"`
	FileType      string `json:"file_type,omitempty"`
}

type ExecuteResult struct {
	Success       bool     `json:"success"`
	Output        string   `json:"output"`
	Error         *string  `json:"error"`
	ExecutionTime *float64 `json:"execution_time"`
}

type HealthStatus struct {
	Status         string `json:"status"`
	ModalConnected bool   `json:"modal_connected"`
	Message        string `json:"message"`
}

func failure(msg string) ExecuteResult {
	return ExecuteResult{
		Success: false,
		Output:  "",
		Error:   &msg,
	}
}

// Execute runs code in the remote sandbox. Transport failures and non-2xx
// responses are mapped into a failed ExecuteResult.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) ExecuteResult {
	if req.Timeout < MinExecutionSeconds {
		req.Timeout = MinExecutionSeconds
	}
	if req.Timeout > MaxExecutionSeconds {
		req.Timeout = MaxExecutionSeconds
	}

	body, err := json.Marshal(req)
	if err != nil {
		return failure(fmt.Sprintf("encode request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return failure(fmt.Sprintf("build request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		slog.Warn("Sandbox request failed", "error", err, "code_len", len(req.Code))
		return failure(fmt.Sprintf("sandbox unreachable: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return failure(fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return failure(fmt.Sprintf("Server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	var result ExecuteResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return failure(fmt.Sprintf("decode response: %v", err))
	}

	slog.Debug("Sandbox execution finished",
		"success", result.Success,
		"duration", time.Since(start),
		"code_len", len(req.Code),
	)
	return result
}

// Health reports sandbox availability. Used for display only; a degraded
// sandbox never gates the orchestration protocol.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return HealthStatus{}, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("sandbox health: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return HealthStatus{}, err
	}

	var status HealthStatus
	if err := json.Unmarshal(respBody, &status); err != nil {
		return HealthStatus{}, fmt.Errorf("decode sandbox health: %w", err)
	}
	return status, nil
}
