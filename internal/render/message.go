// Package render projects the ordered turn event stream into a UI-ready
// message: an ordered list of parts with explicit streaming/completed states.
package render

import "encoding/json"

type MessageState string

const (
	MessageStateStreaming MessageState = "streaming"
	MessageStateComplete  MessageState = "complete"
	MessageStateErrored   MessageState = "errored"
)

type PartType string

const (
	PartText      PartType = "text"
	PartReasoning PartType = "reasoning"
	PartToolCall  PartType = "tool-call"
)

type ToolCallState string

const (
	ToolInputStreaming  ToolCallState = "input-streaming"
	ToolInputComplete   ToolCallState = "input-complete"
	ToolOutputAvailable ToolCallState = "output-available"
	ToolOutputError     ToolCallState = "output-error"
)

// Part is one ordered segment of a message's renderable content. Which
// fields are set depends on Type; tool-call parts additionally carry a
// monotonic lifecycle state.
type Part struct {
	Type PartType `json:"type"`

	// text / reasoning
	Text     string `json:"text,omitempty"`
	Complete bool   `json:"complete"`

	// tool-call
	ToolCallID   string          `json:"tool_call_id,omitempty"`
	ToolName     string          `json:"tool_name,omitempty"`
	State        ToolCallState   `json:"state,omitempty"`
	InputText    string          `json:"input_text,omitempty"`
	Input        json.RawMessage `json:"input,omitempty"`
	Output       json.RawMessage `json:"output,omitempty"`
	ErrorMessage string          `json:"error,omitempty"`
}

type Message struct {
	ID           string       `json:"id"`
	Role         string       `json:"role"`
	State        MessageState `json:"state"`
	Parts        []Part       `json:"parts"`
	FinishReason string       `json:"finish_reason,omitempty"`
	ErrorMessage string       `json:"error,omitempty"`
}

// Text returns the user-visible answer text: all completed-or-streaming text
// parts, reasoning excluded.
func (m *Message) Text() string {
	out := ""
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// ToolCalls returns the tool-call parts in arrival order.
func (m *Message) ToolCalls() []Part {
	var calls []Part
	for _, p := range m.Parts {
		if p.Type == PartToolCall {
			calls = append(calls, p)
		}
	}
	return calls
}
