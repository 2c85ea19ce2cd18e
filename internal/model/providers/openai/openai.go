// Package openai adapts an OpenAI-compatible chat-completion endpoint
// (OpenAI proper, vLLM, LiteLLM) to the gateway event stream.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	lancetErrors "github.com/lancet-ai/lancet/internal/errors"
	"github.com/lancet-ai/lancet/internal/model/contract"

	goopenai "github.com/sashabaranov/go-openai"
)

// Config is resolved once at construction. No package-level state.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model name is required")
	}
	return nil
}

type Provider struct {
	client *goopenai.Client
	model  string
}

func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("openai provider config: %w", err)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	clientCfg := goopenai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &Provider{
		client: goopenai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

func (p *Provider) Name() string {
	return "openai"
}

// Stream opens a streaming completion and demultiplexes the delta fragments
// into gateway events. Tool-call argument fragments are keyed by the
// upstream tool-call index; a pending call is closed when a different index
// starts streaming or when the turn finishes.
func (p *Provider) Stream(ctx context.Context, req contract.CompletionRequest) (<-chan contract.Event, error) {
	chatReq := p.buildRequest(req)

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, lancetErrors.UpstreamUnavailable(err.Error())
	}

	events := make(chan contract.Event, 32)

	go func() {
		defer close(events)
		defer stream.Close()
		p.pump(ctx, stream, events)
	}()

	return events, nil
}

// pendingCall accumulates one tool call's streamed fragments.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

func (p *Provider) pump(ctx context.Context, stream *goopenai.ChatCompletionStream, events chan<- contract.Event) {
	calls := make(map[int]*pendingCall)
	order := []int{}
	openIndex := -1

	emit := func(ev contract.Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	closeCall := func(index int) bool {
		pc, ok := calls[index]
		if !ok {
			return true
		}
		delete(calls, index)
		return emit(contract.ToolCallInputComplete(pc.id, pc.name, pc.args.String()))
	}

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			// Upstream closed without a finish_reason chunk.
			for _, idx := range order {
				if !closeCall(idx) {
					return
				}
			}
			emit(contract.Finish("stop"))
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var apiErr *goopenai.APIError
			if errors.As(err, &apiErr) {
				emit(contract.StreamError(lancetErrors.UpstreamUnavailable(apiErr.Message)))
			} else {
				emit(contract.StreamError(lancetErrors.UpstreamProtocol(err.Error())))
			}
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		delta := choice.Delta

		if delta.ReasoningContent != "" {
			if !emit(contract.ReasoningDelta(delta.ReasoningContent)) {
				return
			}
		}
		if delta.Content != "" {
			if !emit(contract.TextDelta(delta.Content)) {
				return
			}
		}

		for _, tc := range delta.ToolCalls {
			index := len(order)
			if tc.Index != nil {
				index = *tc.Index
			}

			pc, known := calls[index]
			if !known {
				if openIndex >= 0 && openIndex != index {
					if !closeCall(openIndex) {
						return
					}
				}
				pc = &pendingCall{id: tc.ID, name: tc.Function.Name}
				if pc.id == "" {
					pc.id = fmt.Sprintf("call_%d", index)
				}
				calls[index] = pc
				order = append(order, index)
				openIndex = index
				if !emit(contract.ToolCallStart(pc.id, pc.name)) {
					return
				}
			} else if pc.name == "" && tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}

			if tc.Function.Arguments != "" {
				pc.args.WriteString(tc.Function.Arguments)
				if !emit(contract.ToolCallInputDelta(pc.id, tc.Function.Arguments)) {
					return
				}
			}
		}

		if choice.FinishReason != "" {
			for _, idx := range order {
				if !closeCall(idx) {
					return
				}
			}
			slog.Debug("Model stream finished", "provider", p.Name(), "reason", choice.FinishReason)
			emit(contract.Finish(string(choice.FinishReason)))
			return
		}
	}
}

func (p *Provider) buildRequest(req contract.CompletionRequest) goopenai.ChatCompletionRequest {
	var messages []goopenai.ChatCompletionMessage
	for _, m := range req.Messages {
		msg := goopenai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}

		if len(m.ToolCalls) > 0 {
			var tcs []goopenai.ToolCall
			for _, tc := range m.ToolCalls {
				tcs = append(tcs, goopenai.ToolCall{
					ID:   tc.ID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Input,
					},
				})
			}
			msg.ToolCalls = tcs
		}

		messages = append(messages, msg)
	}

	var tools []goopenai.Tool
	for _, t := range req.Tools {
		params := t.Parameters
		if params == nil {
			params = map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			}
		}
		tools = append(tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Tools:    tools,
	}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	}
	if req.MaxOutputTokens > 0 {
		chatReq.MaxTokens = req.MaxOutputTokens
	}
	return chatReq
}
