// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	muse "github.com/jeranaias/muse-tui/internal/chat"
	"github.com/jeranaias/muse-tui/internal/config"
	"github.com/jeranaias/muse-tui/internal/storage"
	"github.com/jeranaias/muse-tui/internal/store"
	"github.com/jeranaias/muse-tui/internal/ui/chat"
	"github.com/jeranaias/muse-tui/internal/ui/components"
	"github.com/jeranaias/muse-tui/internal/ui/styles"
)

// historyLoadLimit caps how many archived conversations start in the sidebar.
const historyLoadLimit = 200

// openStore creates the conversation store, backed by the archive when
// history is enabled. The returned func closes the archive.
func (app *App) openStore(ctx context.Context) (*store.Store, func(), error) {
	opts := []store.Option{store.WithLogger(app.logger)}
	if !app.cfg.History.Enabled {
		return store.New(opts...), func() {}, nil
	}

	path, err := app.cfg.HistoryPath()
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.Open(path)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(append(opts, store.WithArchiver(db))...)

	convs, err := db.LoadConversations(ctx, historyLoadLimit)
	if err != nil {
		app.logger.Warn("could not load history", "path", path, "err", err)
	} else {
		st.Load(convs)
		app.logger.Debug("history loaded", "conversations", len(convs))
	}
	return st, func() { _ = db.Close() }, nil
}

// runTUI starts the interactive chat.
func (app *App) runTUI(ctx context.Context) error {
	initial, err := app.initialModes()
	if err != nil {
		return err
	}

	st, closeStore, err := app.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	events := chat.NewEvents(256)
	sess := muse.New(muse.Options{
		Config:         app.cfg,
		Source:         app.newClient(),
		Store:          st,
		Modes:          initial,
		Notify:         events.Notify,
		Persist:        app.persist,
		ExternalFrames: true,
		Logger:         app.logger,
	})
	defer sess.Close()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go app.watchConfig(watchCtx, sess)

	style := components.StyleAuto
	if app.NoColor {
		style = components.StylePlain
	}
	view := chat.New(chat.Options{
		Session:       sess,
		Events:        events,
		Theme:         styles.NewTheme(),
		MarkdownStyle: style,
		FrameInterval: app.cfg.Stream.FrameInterval(),
		Context:       ctx,
	})

	p := tea.NewProgram(view,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	app.logger.Info("starting chat", "model", app.cfg.Model.Name, "modes", initial.String())
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat view failed: %w", err)
	}
	return nil
}

// persist saves settings changed from inside the session.
func (app *App) persist(cfg *config.Config) error {
	return config.SaveTOML(cfg, app.cfgPath)
}

// watchConfig applies edits to the config file while the chat runs.
// Command-line flags keep precedence over the file.
func (app *App) watchConfig(ctx context.Context, sess *muse.Session) {
	err := config.Watch(ctx, app.cfgPath, func(cfg *config.Config, err error) {
		if err != nil {
			app.logger.Warn("config reload failed", "path", app.cfgPath, "err", err)
			return
		}
		app.applyFlags(cfg)
		if err := cfg.Validate(); err != nil {
			app.logger.Warn("reloaded config is invalid", "err", err)
			return
		}
		sess.ReplaceSettings(cfg)
		app.logger.Info("config reloaded", "path", app.cfgPath)
	})
	if err != nil && ctx.Err() == nil {
		app.logger.Debug("config watch stopped", "err", err)
	}
}
