package tool

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	lancetErrors "github.com/lancet-ai/lancet/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name    string
	params  map[string]interface{}
	calls   atomic.Int64
	result  json.RawMessage
	execErr error
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }

func (s *stubTool) Parameters() map[string]interface{} {
	if s.params != nil {
		return s.params
	}
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"value": map[string]interface{}{"type": "number", "minimum": 1, "maximum": 300},
		},
		"required": []string{"value"},
	}
}

func (s *stubTool) Execute(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	s.calls.Add(1)
	if s.execErr != nil {
		return nil, s.execErr
	}
	if s.result != nil {
		return s.result, nil
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func TestRunner_Execute(t *testing.T) {
	stub := &stubTool{name: "probe"}
	runner := NewRunner(NewRegistry(stub))

	result, err := runner.Execute(context.Background(), "probe", json.RawMessage(`{"value":42}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestRunner_UnknownTool(t *testing.T) {
	runner := NewRunner(NewRegistry())

	_, err := runner.Execute(context.Background(), "ghost", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, lancetErrors.ErrNotFound)
}

func TestRunner_ValidationFailureNeverInvokesHandler(t *testing.T) {
	stub := &stubTool{name: "probe"}
	runner := NewRunner(NewRegistry(stub))

	_, err := runner.Execute(context.Background(), "probe", json.RawMessage(`{"value":400}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, lancetErrors.ErrInvalidInput)
	assert.Equal(t, int64(0), stub.calls.Load(), "handler must not run on invalid input")
}

func TestRunner_EmptyInputTreatedAsEmptyObject(t *testing.T) {
	stub := &stubTool{
		name:   "noargs",
		params: map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
	}
	runner := NewRunner(NewRegistry(stub))

	_, err := runner.Execute(context.Background(), "noargs", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stub.calls.Load())
}

func TestRegistry_DefinitionsSorted(t *testing.T) {
	registry := NewRegistry(
		&stubTool{name: "zeta"},
		&stubTool{name: "alpha"},
	)

	defs := registry.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "zeta", defs[1].Name)
}
