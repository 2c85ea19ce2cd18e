// Package orchestrator drives one client turn: it streams model events,
// projects them into the rendered message, executes tool calls, feeds the
// results back into the generation context, and loops until the model
// finishes without requesting tools.
package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	lancetErrors "github.com/lancet-ai/lancet/internal/errors"
	"github.com/lancet-ai/lancet/internal/logger"
	"github.com/lancet-ai/lancet/internal/model"
	"github.com/lancet-ai/lancet/internal/model/contract"
	"github.com/lancet-ai/lancet/internal/reasoning"
	"github.com/lancet-ai/lancet/internal/render"
	"github.com/lancet-ai/lancet/internal/tool"

	"github.com/oklog/ulid/v2"
)

const DefaultMaxTurns = 8

type Orchestrator struct {
	provider model.StreamProvider
	registry *tool.Registry
	runner   *tool.Runner
	parser   *reasoning.Parser
	maxTurns int
}

func New(provider model.StreamProvider, registry *tool.Registry, parser *reasoning.Parser, maxTurns int) *Orchestrator {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if parser == nil {
		parser = reasoning.NewParser("", "")
	}
	return &Orchestrator{
		provider: provider,
		registry: registry,
		runner:   tool.NewRunner(registry),
		parser:   parser,
		maxTurns: maxTurns,
	}
}

// Options are pass-through generation knobs plus an optional event tap.
// OnEvent observes every event in the order it was applied to the message;
// it runs on the orchestration goroutine and must not block for long.
type Options struct {
	Model           string
	Temperature     *float32
	MaxOutputTokens int
	OnEvent         func(contract.Event)
}

// RunTurn executes one full client turn against the given history. The
// returned message is terminal: complete, errored, or aborted. A non-nil
// error is returned only for turn-level failures (transport, protocol,
// cancellation); tool failures are data inside the message.
func (o *Orchestrator) RunTurn(ctx context.Context, history []contract.Message, opts Options) (*render.Message, error) {
	turnID := ulid.Make().String()
	ctx = logger.WithTurnID(ctx, turnID)

	renderer := render.NewRenderer(turnID, o.parser)
	defs := o.registry.Definitions()

	conv := make([]contract.Message, len(history))
	copy(conv, history)

	apply := func(ev contract.Event) {
		renderer.Apply(ev)
		if opts.OnEvent != nil {
			opts.OnEvent(ev)
		}
	}

	for turn := 0; turn < o.maxTurns; turn++ {
		if ctx.Err() != nil {
			renderer.Abort()
			return renderer.Message(), lancetErrors.ErrAborted
		}

		req := contract.CompletionRequest{
			Model:           opts.Model,
			Messages:        conv,
			Tools:           defs,
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxOutputTokens,
		}

		outcome, err := o.modelTurn(ctx, req, apply)
		if err != nil {
			if lancetErrors.Is(err, lancetErrors.ErrAborted) {
				renderer.Abort()
			} else {
				apply(contract.StreamError(err))
			}
			return renderer.Message(), err
		}

		if len(outcome.calls) == 0 {
			apply(contract.Finish(outcome.finishReason))
			slog.Debug("Turn complete", "turn_id", turnID, "model_turns", turn+1)
			return renderer.Message(), nil
		}

		conv = append(conv, outcome.feedbackMessages()...)
	}

	// The model kept requesting tools past the budget; close the message
	// out with what we have.
	slog.Warn("Turn exceeded model-turn budget", "turn_id", turnID, "max_turns", o.maxTurns)
	apply(contract.Finish("max_turns"))
	return renderer.Message(), nil
}

// turnOutcome captures one model turn: the calls it made (in start order,
// with their results) and how the upstream stream finished.
type turnOutcome struct {
	assistantText string
	finishReason  string
	calls         []*contract.ToolCall
	results       map[string]contract.Event
}

// feedbackMessages converts the turn's tool activity into the messages the
// next model turn needs: the assistant's tool-call message followed by one
// tool result message per call.
func (t *turnOutcome) feedbackMessages() []contract.Message {
	messages := []contract.Message{{
		Role:      contract.RoleAssistant,
		Content:   t.assistantText,
		ToolCalls: t.calls,
	}}

	for _, call := range t.calls {
		content := ""
		if res, ok := t.results[call.ID]; ok {
			content = string(res.Result)
		}
		messages = append(messages, contract.Message{
			Role:       contract.RoleTool,
			ToolCallID: call.ID,
			Content:    content,
		})
	}
	return messages
}

// modelTurn consumes one provider stream. Tool calls are dispatched the
// moment their input completes and run concurrently with continued event
// delivery; their results are merged back into the single applied stream
// and matched by tool-call ID. The intermediate finish event is withheld
// from the renderer: only the final model turn may freeze the message.
func (o *Orchestrator) modelTurn(ctx context.Context, req contract.CompletionRequest, apply func(contract.Event)) (*turnOutcome, error) {
	events, err := o.provider.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	outcome := &turnOutcome{
		finishReason: "stop",
		results:      make(map[string]contract.Event),
	}

	var text strings.Builder
	results := make(chan contract.Event, 16)
	var wg sync.WaitGroup
	pending := 0
	var terminalErr error

	providerOpen := true
	for providerOpen || pending > 0 {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, lancetErrors.ErrAborted

		case ev, ok := <-events:
			if !ok {
				providerOpen = false
				continue
			}

			switch ev.Type {
			case contract.EventFinish:
				outcome.finishReason = ev.FinishReason
				continue
			case contract.EventError:
				// Recorded, not applied: the caller surfaces exactly one
				// terminal error event after in-flight calls drain.
				terminalErr = ev.Err
				if terminalErr == nil {
					terminalErr = lancetErrors.UpstreamProtocol(ev.ErrorMessage)
				}
				continue
			case contract.EventTextDelta:
				text.WriteString(ev.Text)
			case contract.EventToolCallInputComplete:
				outcome.calls = append(outcome.calls, &contract.ToolCall{
					ID:    ev.ToolCallID,
					Name:  ev.ToolName,
					Input: ev.Args,
				})
				pending++
				wg.Add(1)
				go o.execute(ctx, &wg, results, ev.ToolCallID, ev.ToolName, ev.Args)
			}
			apply(ev)

		case res := <-results:
			pending--
			outcome.results[res.ToolCallID] = res
			apply(res)
		}
	}
	wg.Wait()

	if terminalErr != nil {
		return nil, terminalErr
	}

	outcome.assistantText = o.visibleText(text.String())
	return outcome, nil
}

// execute runs one tool call and posts exactly one terminal result event.
// Validation failures become output-error results; everything a handler
// returns successfully (including failed sandbox runs) is ordinary data.
func (o *Orchestrator) execute(ctx context.Context, wg *sync.WaitGroup, results chan<- contract.Event, id, name, args string) {
	defer wg.Done()

	result, err := o.runner.Execute(ctx, name, json.RawMessage(args))

	var ev contract.Event
	if err != nil {
		diag, _ := json.Marshal(map[string]string{"error": err.Error()})
		ev = contract.ToolCallResult(id, diag, true)
	} else {
		ev = contract.ToolCallResult(id, result, false)
	}

	select {
	case results <- ev:
	case <-ctx.Done():
	}
}

// visibleText strips sentinel-delimited reasoning before the text is fed
// back as assistant content: the model's own thinking is not part of the
// conversation record.
func (o *Orchestrator) visibleText(raw string) string {
	var out strings.Builder
	for _, seg := range o.parser.Segment(raw) {
		if seg.Kind == reasoning.SegmentText {
			out.WriteString(seg.Text)
		}
	}
	return out.String()
}
