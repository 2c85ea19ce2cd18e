package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lancet-ai/lancet/internal/catalog"
	"github.com/lancet-ai/lancet/internal/config"
	"github.com/lancet-ai/lancet/internal/model/contract"
	"github.com/lancet-ai/lancet/internal/orchestrator"
	"github.com/lancet-ai/lancet/internal/render"
	"github.com/lancet-ai/lancet/internal/sandbox"
	"github.com/lancet-ai/lancet/internal/store"
	"github.com/lancet-ai/lancet/internal/tool/builtin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedProvider struct {
	events []contract.Event
}

func (p *fixedProvider) Name() string { return "fixed" }

func (p *fixedProvider) Stream(_ context.Context, _ contract.CompletionRequest) (<-chan contract.Event, error) {
	ch := make(chan contract.Event, len(p.events))
	for _, ev := range p.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func newTestServer(t *testing.T, events []contract.Event, sessions *store.Store) *Server {
	t.Helper()
	cat, err := catalog.Load()
	require.NoError(t, err)

	orch := orchestrator.New(&fixedProvider{events: events}, builtin.NewRegistry(nil, cat), nil, 0)
	srv, err := New(&config.ServerConfig{Port: 0}, orch, nil, sessions)
	require.NoError(t, err)
	return srv
}

type frame struct {
	Type    string          `json:"type"`
	Event   *contract.Event `json:"event"`
	Message *render.Message `json:"message"`
}

func readFrames(t *testing.T, body string) []frame {
	t.Helper()
	var frames []frame
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f frame
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f))
		frames = append(frames, f)
	}
	return frames
}

func TestChat_StreamsEventsThenMessageSnapshot(t *testing.T) {
	srv := newTestServer(t, []contract.Event{
		contract.TextDelta("Hello "),
		contract.TextDelta("world"),
		contract.Finish("stop"),
	}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/chat", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var buf strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		buf.WriteString(scanner.Text() + "\n")
	}
	frames := readFrames(t, buf.String())

	require.Len(t, frames, 4)
	assert.Equal(t, "event", frames[0].Type)
	assert.Equal(t, contract.EventTextDelta, frames[0].Event.Type)
	assert.Equal(t, "Hello ", frames[0].Event.Text)
	assert.Equal(t, contract.EventFinish, frames[2].Event.Type)

	terminal := frames[3]
	assert.Equal(t, "message", terminal.Type)
	require.NotNil(t, terminal.Message)
	assert.Equal(t, render.MessageStateComplete, terminal.Message.State)
	assert.Equal(t, "Hello world", terminal.Message.Text())
}

func TestChat_RejectsEmptyMessages(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{"messages":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/chat")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestChat_PersistsTurnToSession(t *testing.T) {
	sessions, err := store.Open(t.TempDir(), time.Second)
	require.NoError(t, err)
	defer sessions.Close()

	meta, err := sessions.CreateSession("persisted chat")
	require.NoError(t, err)

	srv := newTestServer(t, []contract.Event{
		contract.TextDelta("answer"),
		contract.Finish("stop"),
	}, sessions)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body := `{"session_id":"` + meta.ID + `","messages":[{"role":"user","content":"question"}]}`
	resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	records, err := sessions.Records(meta.ID, 0)
	require.NoError(t, err)
	require.Len(t, records, 2, "user message plus assistant snapshot")

	var user struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(records[0], &user))
	assert.Equal(t, "user", user.Role)

	var assistant render.Message
	require.NoError(t, json.Unmarshal(records[1], &assistant))
	assert.Equal(t, "answer", assistant.Text())
}

func TestHealth_WithoutSandbox(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Nil(t, health.Sandbox)
}

func TestHealth_SandboxPassthrough(t *testing.T) {
	sandboxServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy","modal_connected":true,"message":"ready"}`))
	}))
	defer sandboxServer.Close()

	srv := newTestServer(t, nil, nil)
	srv.sandbox = sandbox.NewClient(sandboxServer.URL, time.Second)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	require.NotNil(t, health.Sandbox)
	assert.Equal(t, "healthy", health.Sandbox.Status)
	assert.True(t, health.Sandbox.ModalConnected)
}

func TestHealth_SandboxUnreachableStaysOK(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	srv.sandbox = sandbox.NewClient("http://127.0.0.1:1", time.Second)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode, "sandbox state never gates service health")
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	require.NotNil(t, health.Sandbox)
	assert.Equal(t, "unreachable", health.Sandbox.Status)
}

func TestSessions_CreateAndList(t *testing.T) {
	sessions, err := store.Open(t.TempDir(), time.Second)
	require.NoError(t, err)
	defer sessions.Close()

	srv := newTestServer(t, nil, sessions)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", strings.NewReader(`{"title":"sdtm questions"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var meta store.SessionMeta
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&meta))
	assert.Equal(t, "sdtm questions", meta.Title)

	listResp, err := http.Get(ts.URL + "/api/sessions")
	require.NoError(t, err)
	defer listResp.Body.Close()

	var listing struct {
		Sessions []store.SessionMeta `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&listing))
	require.Len(t, listing.Sessions, 1)
	assert.Equal(t, meta.ID, listing.Sessions[0].ID)
}
