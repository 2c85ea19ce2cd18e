package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	lancetErrors "github.com/lancet-ai/lancet/internal/errors"
	"github.com/lancet-ai/lancet/internal/model/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func collect(t *testing.T, events <-chan contract.Event) []contract.Event {
	t.Helper()
	var out []contract.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Model: "deepseek-chat"})
	require.NoError(t, err)
}

func TestStream_TextDeltas(t *testing.T) {
	server := sseServer(t, []string{
		`{"choices":[{"index":0,"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"index":0,"delta":{"content":"lo"}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
	})
	defer server.Close()

	p, err := New(Config{APIKey: "test", BaseURL: server.URL, Model: "m"})
	require.NoError(t, err)

	events, err := p.Stream(context.Background(), contract.CompletionRequest{
		Messages: []contract.Message{{Role: contract.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 3)
	assert.Equal(t, contract.EventTextDelta, got[0].Type)
	assert.Equal(t, "Hel", got[0].Text)
	assert.Equal(t, "lo", got[1].Text)
	assert.Equal(t, contract.EventFinish, got[2].Type)
	assert.Equal(t, "stop", got[2].FinishReason)
}

func TestStream_ReasoningContent(t *testing.T) {
	server := sseServer(t, []string{
		`{"choices":[{"index":0,"delta":{"reasoning_content":"thinking"}}]}`,
		`{"choices":[{"index":0,"delta":{"content":"answer"}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
	})
	defer server.Close()

	p, err := New(Config{APIKey: "test", BaseURL: server.URL, Model: "m"})
	require.NoError(t, err)

	events, err := p.Stream(context.Background(), contract.CompletionRequest{})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 3)
	assert.Equal(t, contract.EventReasoningDelta, got[0].Type)
	assert.Equal(t, "thinking", got[0].Text)
	assert.Equal(t, contract.EventTextDelta, got[1].Type)
}

func TestStream_ToolCallFragments(t *testing.T) {
	server := sseServer(t, []string{
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"execute_code","arguments":"{\"code\":"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"x\"}"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	})
	defer server.Close()

	p, err := New(Config{APIKey: "test", BaseURL: server.URL, Model: "m"})
	require.NoError(t, err)

	events, err := p.Stream(context.Background(), contract.CompletionRequest{})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 5)

	assert.Equal(t, contract.EventToolCallStart, got[0].Type)
	assert.Equal(t, "call_1", got[0].ToolCallID)
	assert.Equal(t, "execute_code", got[0].ToolName)

	assert.Equal(t, contract.EventToolCallInputDelta, got[1].Type)
	assert.Equal(t, `{"code":`, got[1].Args)
	assert.Equal(t, contract.EventToolCallInputDelta, got[2].Type)

	complete := got[3]
	assert.Equal(t, contract.EventToolCallInputComplete, complete.Type)
	assert.Equal(t, "call_1", complete.ToolCallID)
	assert.JSONEq(t, `{"code":"x"}`, complete.Args)

	assert.Equal(t, contract.EventFinish, got[4].Type)
	assert.Equal(t, "tool_calls", got[4].FinishReason)
}

func TestStream_ParallelToolCallsClosedInStartOrder(t *testing.T) {
	server := sseServer(t, []string{
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"a","type":"function","function":{"name":"create_table","arguments":"{}"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"b","type":"function","function":{"name":"analyze_code","arguments":"{}"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	})
	defer server.Close()

	p, err := New(Config{APIKey: "test", BaseURL: server.URL, Model: "m"})
	require.NoError(t, err)

	events, err := p.Stream(context.Background(), contract.CompletionRequest{})
	require.NoError(t, err)

	var completes []string
	for ev := range events {
		if ev.Type == contract.EventToolCallInputComplete {
			completes = append(completes, ev.ToolCallID)
		}
	}
	// Index 0 is closed when index 1 starts; the rest close at finish.
	assert.Equal(t, []string{"a", "b"}, completes)
}

func TestStream_EOFWithoutFinishStillTerminates(t *testing.T) {
	server := sseServer(t, []string{
		`{"choices":[{"index":0,"delta":{"content":"partial"}}]}`,
	})
	defer server.Close()

	p, err := New(Config{APIKey: "test", BaseURL: server.URL, Model: "m"})
	require.NoError(t, err)

	events, err := p.Stream(context.Background(), contract.CompletionRequest{})
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, contract.EventFinish, got[1].Type)
	assert.Equal(t, "stop", got[1].FinishReason)
}

func TestStream_UpstreamRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	p, err := New(Config{APIKey: "test", BaseURL: server.URL, Model: "m"})
	require.NoError(t, err)

	_, err = p.Stream(context.Background(), contract.CompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, lancetErrors.ErrUpstreamUnavailable)
}
