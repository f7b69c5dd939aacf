// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	muse "github.com/jeranaias/muse-tui/internal/chat"
)

func (app *App) newAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Ask one question and print the answer",
		Long: `Ask sends a single prompt and streams the answer to stdout.

When no prompt is given and stdin is not a terminal, the prompt is read
from stdin:

  git diff | muse ask "review this change"
  echo "what is a monad" | muse ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := app.readPrompt(args)
			if err != nil {
				return err
			}
			return app.runAsk(cmd.Context(), prompt)
		},
	}
}

// readPrompt joins args and appends piped stdin, if any.
func (app *App) readPrompt(args []string) (string, error) {
	prompt := strings.Join(args, " ")
	if isTerminal(app.Stdin) {
		if strings.TrimSpace(prompt) == "" {
			return "", errors.New("no prompt given")
		}
		return prompt, nil
	}

	data, err := io.ReadAll(app.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	piped := strings.TrimSpace(string(data))
	switch {
	case piped == "" && strings.TrimSpace(prompt) == "":
		return "", errors.New("no prompt given")
	case piped == "":
		return prompt, nil
	case prompt == "":
		return piped, nil
	default:
		return prompt + "\n\n" + piped, nil
	}
}

// answerPrinter writes the newly revealed part of each content event.
type answerPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	status  io.Writer
	printed string
	err     error

	done chan struct{}
	once sync.Once
}

func newAnswerPrinter(out, status io.Writer) *answerPrinter {
	return &answerPrinter{out: out, status: status, done: make(chan struct{})}
}

func (p *answerPrinter) notify(ev muse.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case muse.EventContent:
		if strings.HasPrefix(ev.Content, p.printed) {
			fmt.Fprint(p.out, ev.Content[len(p.printed):])
			p.printed = ev.Content
		}
	case muse.EventResearch:
		if ev.Status != "" {
			fmt.Fprintln(p.status, DimStyle.Render(ev.Status))
		}
	case muse.EventError:
		p.err = ev.Err
		p.once.Do(func() { close(p.done) })
	case muse.EventFinished:
		p.once.Do(func() { close(p.done) })
	}
}

func (p *answerPrinter) result() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed, p.err
}

// runAsk streams one answer through the same pipeline the chat view uses.
func (app *App) runAsk(ctx context.Context, prompt string) error {
	initial, err := app.initialModes()
	if err != nil {
		return err
	}

	st, closeStore, err := app.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	printer := newAnswerPrinter(app.Stdout, app.Stderr)
	sess := muse.New(muse.Options{
		Config: app.cfg,
		Source: app.newClient(),
		Store:  st,
		Modes:  initial,
		Notify: printer.notify,
		Logger: app.logger,
	})
	defer sess.Close()

	if err := sess.Send(ctx, prompt); err != nil {
		return err
	}
	select {
	case <-printer.done:
	case <-ctx.Done():
		sess.Cancel()
		return ctx.Err()
	}

	text, streamErr := printer.result()
	if text != "" && !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(app.Stdout)
	}
	if streamErr != nil {
		return streamErr
	}

	if conv := sess.CurrentConversation(); conv != nil {
		if last := conv.LastMessage(); last != nil && len(last.Suggestions) > 0 {
			fmt.Fprintln(app.Stdout)
			for i, s := range last.Suggestions {
				fmt.Fprintln(app.Stdout, DimStyle.Render(fmt.Sprintf("  %d. %s", i+1, s)))
			}
		}
	}
	return nil
}
