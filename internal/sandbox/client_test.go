package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/execute", r.URL.Path)

		var req ExecuteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "print(1+1)", req.Code)
		assert.Equal(t, 30, req.Timeout)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"output":"2\n","error":null,"execution_time":0.01}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	result := client.Execute(context.Background(), ExecuteRequest{Code: "print(1+1)", Timeout: 30})

	assert.True(t, result.Success)
	assert.Equal(t, "2\n", result.Output)
	assert.Nil(t, result.Error)
	require.NotNil(t, result.ExecutionTime)
	assert.InDelta(t, 0.01, *result.ExecutionTime, 1e-9)
}

func TestExecute_ServerErrorIsData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	result := client.Execute(context.Background(), ExecuteRequest{Code: "x", Timeout: 30})

	assert.False(t, result.Success)
	assert.Equal(t, "", result.Output)
	require.NotNil(t, result.Error)
	assert.Equal(t, "Server error (500): boom", *result.Error)
	assert.Nil(t, result.ExecutionTime)
}

func TestExecute_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	result := client.Execute(context.Background(), ExecuteRequest{Code: "x", Timeout: 5})

	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Contains(t, *result.Error, "sandbox unreachable")
}

func TestExecute_TimeoutClamped(t *testing.T) {
	var seen ExecuteRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&seen)
		_, _ = w.Write([]byte(`{"success":true,"output":"","error":null,"execution_time":0}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)

	client.Execute(context.Background(), ExecuteRequest{Code: "x", Timeout: 4000})
	assert.Equal(t, MaxExecutionSeconds, seen.Timeout)

	client.Execute(context.Background(), ExecuteRequest{Code: "x", Timeout: 0})
	assert.Equal(t, MinExecutionSeconds, seen.Timeout)
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy","modal_connected":true,"message":"API is running and Modal is connected"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	status, err := client.Health(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
	assert.True(t, status.ModalConnected)
}

func TestHealth_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := client.Health(context.Background())
	require.Error(t, err)
}
