package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lancet-ai/lancet/internal/config"
	lancetErrors "github.com/lancet-ai/lancet/internal/errors"
	"github.com/lancet-ai/lancet/internal/model/contract"
	"github.com/lancet-ai/lancet/internal/orchestrator"
	"github.com/lancet-ai/lancet/internal/store"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat session in the terminal",
	Long:  `Starts an interactive turn loop: each prompt streams the model's answer, reasoning, and tool activity as it happens.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		orch, _, err := buildOrchestrator(cfg)
		if err != nil {
			return err
		}

		lockTimeout, err := config.DurationOrDefault(cfg.Store.LockTimeout, config.DefaultStoreLockTimeout)
		if err != nil {
			return fmt.Errorf("parse store lock timeout: %w", err)
		}
		sessions, err := store.Open(cfg.Store.Path, lockTimeout)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		defer sessions.Close()

		meta, err := sessions.CreateSession("Terminal session")
		if err != nil {
			return err
		}

		handler := NewSignalHandler(cmd.Context())
		handler.Start()
		defer handler.Stop()

		fmt.Printf("Lancet session %s (model %s)\n", meta.ID, cfg.Model.Name)
		fmt.Println("Type '/exit' to quit.")

		ui := newStreamUI()
		reader := bufio.NewReader(os.Stdin)
		var history []contract.Message

		for {
			select {
			case <-handler.Context().Done():
				return nil
			default:
			}

			fmt.Print("> ")
			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "/exit" {
				return nil
			}

			userMsg := contract.Message{Role: contract.RoleUser, Content: line}
			history = append(history, userMsg)
			if err := sessions.AppendRecord(meta.ID, userMsg); err != nil {
				fmt.Fprintln(os.Stderr, "warning: failed to persist message:", err)
			}

			msg, err := orch.RunTurn(handler.Context(), history, buildTurnOptions(ui))
			ui.finishTurn(msg)

			if err != nil {
				if lancetErrors.Is(err, lancetErrors.ErrAborted) {
					return nil
				}
				// Turn-level failure: keep the session alive, drop the
				// failed exchange from the generation context.
				history = history[:len(history)-1]
				continue
			}

			history = append(history, contract.Message{
				Role:    contract.RoleAssistant,
				Content: msg.Text(),
			})
			if err := sessions.AppendRecord(meta.ID, msg); err != nil {
				fmt.Fprintln(os.Stderr, "warning: failed to persist message:", err)
			}
		}
	},
}

func buildTurnOptions(ui *streamUI) orchestrator.Options {
	return orchestrator.Options{
		Model:           cfg.Model.Name,
		Temperature:     cfg.Model.Temperature,
		MaxOutputTokens: cfg.Model.MaxOutputTokens,
		OnEvent:         ui.handleEvent,
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
