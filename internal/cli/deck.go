// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lokalchat/internal/config"
	"github.com/jeranaias/lokalchat/internal/deck"
	"github.com/jeranaias/lokalchat/internal/ui/chat"
	"github.com/jeranaias/lokalchat/internal/ui/styles"
)

// loadDeck rebuilds the deck from the last sent prompt and restores each
// row's saved variants.
func (a *App) loadDeck() (*deck.Deck, error) {
	ws := a.workspace()
	msgs, err := ws.Memory.Load()
	if err != nil {
		return nil, fmt.Errorf("load prompt memory: %w", err)
	}
	d := deck.FromMessages(msgs)
	restored := d.Restore(ws)
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("restore deck: %w", err)
	}
	slog.Info("deck loaded", "rows", d.Len(), "restored", restored)
	return d, nil
}

// runDeck opens the full-screen deck UI.
func (a *App) runDeck(ctx context.Context) error {
	d, err := a.loadDeck()
	if err != nil {
		return err
	}

	responder, release := a.responder()
	defer release()

	theme := styles.NewTheme()
	theme.ApplyThemeName(a.cfg.UI.Theme)

	opts := chat.Options{
		Deck:         d,
		Responder:    responder,
		Theme:        theme,
		WordsPerLine: a.cfg.UI.WordsPerLine,
		MaxTextLines: a.cfg.UI.MaxTextLines,
		ShowHelp:     a.cfg.UI.ShowHelp,
		Context:      ctx,
	}
	if a.cfg.Storage.SavePrompts {
		opts.Store = a.workspace()
	}

	p := tea.NewProgram(chat.New(opts), tea.WithAltScreen(), tea.WithContext(ctx))

	if w := a.watchConfig(p); w != nil {
		defer w.Close()
	}

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("deck UI: %w", err)
	}
	return nil
}

// watchConfig forwards model changes in the config file to the UI. A model
// given with --model is not overridden.
func (a *App) watchConfig(p *tea.Program) *config.Watcher {
	if a.cfg.Path() == "" {
		return nil
	}
	w, err := config.NewWatcher(a.cfg.Path(),
		func(cfg *config.Config) {
			if a.Model != "" {
				return
			}
			p.Send(chat.ModelChangedMsg{Model: cfg.Ollama.Model})
		},
		func(err error) {
			p.Send(chat.StatusMsg{Text: "Config reload failed: " + err.Error(), Error: true})
		},
	)
	if err != nil {
		slog.Warn("config watch disabled", "error", err)
		return nil
	}
	return w
}
