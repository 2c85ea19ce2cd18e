package render

import (
	"encoding/json"
	"strings"

	"github.com/lancet-ai/lancet/internal/model/contract"
	"github.com/lancet-ai/lancet/internal/reasoning"
)

// Renderer consumes turn events in arrival order and maintains one assistant
// message. Events are applied one at a time; tool lifecycle events are routed
// by tool-call ID only, so results may interleave freely with text deltas.
// Applying the same event log to a fresh renderer reproduces the same parts.
type Renderer struct {
	parser *reasoning.Parser
	msg    *Message

	// Current text run: the contiguous stretch of parts rebuilt from the
	// sentinel segmentation of buffer. A tool-call start closes the run;
	// later text opens a new one after the tool part.
	buffer   strings.Builder
	runStart int

	// Transport-level reasoning (reasoning-delta events) appends to a
	// dedicated trailing part instead of going through the segmenter.
	reasoningIdx int

	callIndex map[string]int
	frozen    bool
}

func NewRenderer(id string, parser *reasoning.Parser) *Renderer {
	if parser == nil {
		parser = reasoning.NewParser("", "")
	}
	return &Renderer{
		parser: parser,
		msg: &Message{
			ID:    id,
			Role:  contract.RoleAssistant,
			State: MessageStateStreaming,
			Parts: []Part{},
		},
		runStart:     -1,
		reasoningIdx: -1,
		callIndex:    make(map[string]int),
	}
}

// Message exposes the in-progress message. Callers must treat it as
// read-only; it keeps mutating until a terminal event arrives.
func (r *Renderer) Message() *Message {
	return r.msg
}

// Apply folds one event into the message. Events after a terminal state are
// dropped: abort and turn errors are final.
func (r *Renderer) Apply(ev contract.Event) {
	if r.frozen {
		return
	}

	switch ev.Type {
	case contract.EventTextDelta:
		r.applyText(ev.Text)
	case contract.EventReasoningDelta:
		r.applyReasoning(ev.Text)
	case contract.EventToolCallStart:
		r.applyToolStart(ev.ToolCallID, ev.ToolName)
	case contract.EventToolCallInputDelta:
		r.applyToolInputDelta(ev.ToolCallID, ev.Args)
	case contract.EventToolCallInputComplete:
		r.applyToolInputComplete(ev.ToolCallID, ev.ToolName, ev.Args)
	case contract.EventToolCallResult:
		r.applyToolResult(ev.ToolCallID, ev.Result, ev.IsError)
	case contract.EventFinish:
		r.finish(ev.FinishReason)
	case contract.EventError:
		r.fail(ev.ErrorMessage)
	}
}

// Abort terminates the message without applying any further events. Tool
// calls still awaiting input or output are left in place for inspection.
func (r *Renderer) Abort() {
	if r.frozen {
		return
	}
	r.msg.State = MessageStateErrored
	r.msg.ErrorMessage = "turn aborted"
	r.frozen = true
}

func (r *Renderer) applyText(text string) {
	if text == "" {
		return
	}
	r.closeDirectReasoning()

	if r.runStart < 0 {
		r.runStart = len(r.msg.Parts)
		r.buffer.Reset()
	}
	r.buffer.WriteString(text)

	// Re-derive the run's segmentation from the full buffer. Only parts
	// belonging to the current run are replaced; everything before
	// runStart (earlier runs, tool parts) is untouched.
	segments := r.parser.Segment(r.buffer.String())
	parts := r.msg.Parts[:r.runStart]
	for _, seg := range segments {
		partType := PartText
		if seg.Kind == reasoning.SegmentReasoning {
			partType = PartReasoning
		}
		parts = append(parts, Part{
			Type:     partType,
			Text:     seg.Text,
			Complete: seg.Complete,
		})
	}
	r.msg.Parts = parts
}

func (r *Renderer) applyReasoning(text string) {
	if text == "" {
		return
	}
	r.closeRun()

	if r.reasoningIdx < 0 {
		r.msg.Parts = append(r.msg.Parts, Part{Type: PartReasoning})
		r.reasoningIdx = len(r.msg.Parts) - 1
	}
	r.msg.Parts[r.reasoningIdx].Text += text
}

func (r *Renderer) applyToolStart(id, name string) {
	if _, exists := r.callIndex[id]; exists {
		return
	}
	r.closeRun()
	r.closeDirectReasoning()

	r.msg.Parts = append(r.msg.Parts, Part{
		Type:       PartToolCall,
		ToolCallID: id,
		ToolName:   name,
		State:      ToolInputStreaming,
	})
	r.callIndex[id] = len(r.msg.Parts) - 1
}

func (r *Renderer) applyToolInputDelta(id, fragment string) {
	part := r.toolPart(id, "")
	if part.State != ToolInputStreaming {
		return
	}
	part.InputText += fragment
}

func (r *Renderer) applyToolInputComplete(id, name, args string) {
	part := r.toolPart(id, name)
	if part.ToolName == "" && name != "" {
		part.ToolName = name
	}

	if json.Valid([]byte(args)) {
		part.Input = json.RawMessage(args)
	} else {
		// Keep malformed argument text renderable rather than embedding
		// invalid JSON into the part.
		part.InputText = args
	}

	if part.State == ToolInputStreaming {
		part.State = ToolInputComplete
	}
}

func (r *Renderer) applyToolResult(id string, result json.RawMessage, isError bool) {
	part := r.toolPart(id, "")
	if part.State == ToolOutputAvailable || part.State == ToolOutputError {
		return // terminal states never regress
	}

	if isError {
		part.State = ToolOutputError
		part.ErrorMessage = string(result)
		var diag struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(result, &diag); err == nil && diag.Error != "" {
			part.ErrorMessage = diag.Error
		}
	} else {
		part.State = ToolOutputAvailable
		part.Output = result
	}
}

func (r *Renderer) finish(reason string) {
	r.closeRun()
	r.closeDirectReasoning()

	// Freeze: anything still streaming is marked complete as-is.
	for i := range r.msg.Parts {
		if r.msg.Parts[i].Type != PartToolCall {
			r.msg.Parts[i].Complete = true
		}
	}

	r.msg.State = MessageStateComplete
	r.msg.FinishReason = reason
	r.frozen = true
}

func (r *Renderer) fail(message string) {
	r.msg.State = MessageStateErrored
	r.msg.ErrorMessage = message
	r.frozen = true
}

// toolPart finds the part for a tool-call ID, creating a generically
// renderable one for IDs never announced by a start event. Unknown tool
// names still render; they are never dropped.
func (r *Renderer) toolPart(id, name string) *Part {
	if idx, ok := r.callIndex[id]; ok {
		return &r.msg.Parts[idx]
	}

	r.closeRun()
	r.closeDirectReasoning()
	r.msg.Parts = append(r.msg.Parts, Part{
		Type:       PartToolCall,
		ToolCallID: id,
		ToolName:   name,
		State:      ToolInputStreaming,
	})
	r.callIndex[id] = len(r.msg.Parts) - 1
	return &r.msg.Parts[len(r.msg.Parts)-1]
}

func (r *Renderer) closeRun() {
	r.runStart = -1
	r.buffer.Reset()
}

func (r *Renderer) closeDirectReasoning() {
	if r.reasoningIdx >= 0 {
		r.msg.Parts[r.reasoningIdx].Complete = true
		r.reasoningIdx = -1
	}
}
