package main

import (
	"encoding/json"
	"fmt"

	"github.com/lancet-ai/lancet/internal/model/contract"
	"github.com/lancet-ai/lancet/internal/render"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

// streamUI prints orchestration events as they are applied and renders tool
// call cards once the turn settles. Text deltas pass through verbatim so the
// answer streams the way the model produced it.
type streamUI struct {
	reasoning lipgloss.Style
	toolLine  lipgloss.Style
	errLine   lipgloss.Style
	title     lipgloss.Style
	border    lipgloss.Style
	header    lipgloss.Style
	cell      lipgloss.Style
}

func newStreamUI() *streamUI {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")

	return &streamUI{
		reasoning: lipgloss.NewStyle().Foreground(gray).Italic(true),
		toolLine:  lipgloss.NewStyle().Foreground(purple),
		errLine:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		title:     lipgloss.NewStyle().Bold(true),
		border:    lipgloss.NewStyle().Foreground(purple),
		header:    lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1),
		cell:      lipgloss.NewStyle().Padding(0, 1),
	}
}

func (u *streamUI) handleEvent(ev contract.Event) {
	switch ev.Type {
	case contract.EventTextDelta:
		fmt.Print(ev.Text)
	case contract.EventReasoningDelta:
		fmt.Print(u.reasoning.Render(ev.Text))
	case contract.EventToolCallStart:
		fmt.Println()
		fmt.Println(u.toolLine.Render(fmt.Sprintf("… %s", ev.ToolName)))
	case contract.EventToolCallResult:
		if ev.IsError {
			fmt.Println(u.errLine.Render(fmt.Sprintf("✗ %s", ev.ToolCallID)))
		} else {
			fmt.Println(u.toolLine.Render(fmt.Sprintf("✓ %s", ev.ToolCallID)))
		}
	}
}

// finishTurn renders the settled tool calls: data tables get a bordered
// table widget, errors a red diagnostic line.
func (u *streamUI) finishTurn(msg *render.Message) {
	fmt.Println()
	for _, part := range msg.ToolCalls() {
		switch part.State {
		case render.ToolOutputError:
			fmt.Println(u.errLine.Render(fmt.Sprintf("%s failed: %s", part.ToolName, part.ErrorMessage)))
		case render.ToolOutputAvailable:
			if part.ToolName == "create_table" {
				fmt.Println(u.renderDataTable(part.Output))
			}
		}
	}
	if msg.State == render.MessageStateErrored {
		fmt.Println(u.errLine.Render(msg.ErrorMessage))
	}
}

type tablePayload struct {
	Title   string          `json:"title"`
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

func (u *streamUI) renderDataTable(output json.RawMessage) string {
	var payload tablePayload
	if err := json.Unmarshal(output, &payload); err != nil || len(payload.Columns) == 0 {
		return string(output)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(u.border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return u.header
			}
			return u.cell
		}).
		Headers(payload.Columns...)

	for _, row := range payload.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprintf("%v", cell)
		}
		t.Row(cells...)
	}

	out := t.String()
	if payload.Title != "" {
		out = u.title.Render(payload.Title) + "\n" + out
	}
	return out
}
