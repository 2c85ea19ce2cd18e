// Package contract holds the provider-neutral types exchanged between the
// model gateway, the tool runner, and the stream renderer.
package contract

import "encoding/json"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type Message struct {
	Role       string      `json:"role"`
	Content    string      `json:"content"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []*ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a model-initiated request to invoke a named tool. Input is the
// raw argument JSON exactly as the model produced it.
type ToolCall struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Input string `json:"input"`
}

type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type CompletionRequest struct {
	Model           string    `json:"model"`
	Messages        []Message `json:"messages"`
	Tools           []ToolDef `json:"tools,omitempty"`
	Temperature     *float32  `json:"temperature,omitempty"`
	MaxOutputTokens int       `json:"max_output_tokens,omitempty"`
}

type EventType string

const (
	EventTextDelta             EventType = "text-delta"
	EventReasoningDelta        EventType = "reasoning-delta"
	EventToolCallStart         EventType = "tool-call-start"
	EventToolCallInputDelta    EventType = "tool-call-input-delta"
	EventToolCallInputComplete EventType = "tool-call-input-complete"
	EventToolCallResult        EventType = "tool-call-result"
	EventFinish                EventType = "finish"
	EventError                 EventType = "error"
)

// Event is one element of the ordered, append-only stream a turn produces.
// Which fields are meaningful depends on Type. Tool lifecycle events are
// correlated purely by ToolCallID, never by position.
type Event struct {
	Type EventType `json:"type"`

	// text-delta / reasoning-delta
	Text string `json:"text,omitempty"`

	// tool-call-* events
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	// Args carries an argument fragment for input-delta and the final
	// argument JSON for input-complete.
	Args string `json:"args,omitempty"`

	// tool-call-result
	Result  json.RawMessage `json:"result,omitempty"`
	IsError bool            `json:"is_error,omitempty"`

	// finish
	FinishReason string `json:"finish_reason,omitempty"`

	// error: a turn-terminal transport or protocol failure
	ErrorMessage string `json:"error,omitempty"`
	Err          error  `json:"-"`
}

func TextDelta(text string) Event {
	return Event{Type: EventTextDelta, Text: text}
}

func ReasoningDelta(text string) Event {
	return Event{Type: EventReasoningDelta, Text: text}
}

func ToolCallStart(id, name string) Event {
	return Event{Type: EventToolCallStart, ToolCallID: id, ToolName: name}
}

func ToolCallInputDelta(id, fragment string) Event {
	return Event{Type: EventToolCallInputDelta, ToolCallID: id, Args: fragment}
}

func ToolCallInputComplete(id, name, args string) Event {
	return Event{Type: EventToolCallInputComplete, ToolCallID: id, ToolName: name, Args: args}
}

func ToolCallResult(id string, result json.RawMessage, isError bool) Event {
	return Event{Type: EventToolCallResult, ToolCallID: id, Result: result, IsError: isError}
}

func Finish(reason string) Event {
	return Event{Type: EventFinish, FinishReason: reason}
}

func StreamError(err error) Event {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Event{Type: EventError, Err: err, ErrorMessage: msg}
}
