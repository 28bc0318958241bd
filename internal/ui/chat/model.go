// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the Bubble Tea view of the prompt deck.
//
// Rows are listed top to bottom in a scrolling viewport. The focused row is
// edited in a textarea; the others are rendered read-only. Submitting a row
// runs the model call in a tea.Cmd and files the reply when it arrives.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lokalchat/internal/bot"
	"github.com/jeranaias/lokalchat/internal/deck"
	"github.com/jeranaias/lokalchat/internal/ui/styles"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configure the deck view.
type Options struct {
	Deck      *deck.Deck
	Responder bot.Responder

	// Store receives rows and prompts on submit. Nil disables saving.
	Store deck.Store

	Theme        *styles.Theme
	WordsPerLine int
	MaxTextLines int
	ShowHelp     bool

	// Context is the parent of every request; it defaults to Background.
	Context context.Context

	// Clipboard writes copied text; it defaults to the system clipboard.
	Clipboard func(string) error
}

// =============================================================================
// CANCEL MANAGEMENT
// =============================================================================

// cancelManager guards the cancel function of the pending request. It is
// shared by pointer because Bubble Tea copies the model on every update.
type cancelManager struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (cm *cancelManager) set(fn context.CancelFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.cancel = fn
}

// stop cancels the pending request, if any. Safe to call repeatedly.
func (cm *cancelManager) stop() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancel != nil {
		cm.cancel()
		cm.cancel = nil
	}
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the deck view.
type Model struct {
	deck      *deck.Deck
	responder bot.Responder
	store     deck.Store
	theme     *styles.Theme
	ctx       context.Context
	copyText  func(string) error

	wordsPerLine int
	maxTextLines int

	// Focused row position
	focus int

	// UI components
	editor   textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	keys     KeyMap

	// Request state
	pending    bool
	pendingPos int
	started    time.Time
	cancelMgr  *cancelManager

	// Status line
	modelName string
	status    string
	statusErr bool
	statusAt  time.Time
	showHelp  bool

	width  int
	height int
	ready  bool
}

// New creates the deck view. The deck must hold at least one row.
func New(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	if opts.WordsPerLine < 1 {
		opts.WordsPerLine = 26
	}
	if opts.MaxTextLines < 1 {
		opts.MaxTextLines = 20
	}
	if opts.Deck == nil || opts.Deck.Len() == 0 {
		opts.Deck = deck.FromMessages(nil)
	}

	ed := textarea.New()
	ed.Placeholder = "Type a prompt..."
	ed.ShowLineNumbers = false
	ed.Prompt = ""
	ed.CharLimit = 0
	ed.Focus()

	sp := spinner.New(
		spinner.WithSpinner(styles.ThinkingSpinner),
		spinner.WithStyle(opts.Theme.Spinner),
	)

	m := Model{
		deck:         opts.Deck,
		responder:    opts.Responder,
		store:        opts.Store,
		theme:        opts.Theme,
		ctx:          opts.Context,
		copyText:     opts.Clipboard,
		wordsPerLine: opts.WordsPerLine,
		maxTextLines: opts.MaxTextLines,
		editor:       ed,
		viewport:     viewport.New(0, 0),
		spinner:      sp,
		help:         help.New(),
		keys:         DefaultKeyMap(),
		cancelMgr:    &cancelManager{},
		modelName:    bot.ModelName(opts.Responder),
		showHelp:     opts.ShowHelp,
	}
	m.loadEditor()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Deck returns the deck being edited.
func (m Model) Deck() *deck.Deck {
	return m.deck
}

// Focus returns the focused row position.
func (m Model) Focus() int {
	return m.focus
}

// Pending reports whether a request is in flight.
func (m Model) Pending() bool {
	return m.pending
}

// ModelName returns the model shown in the header.
func (m Model) ModelName() string {
	return m.modelName
}

// Status returns the current status line text.
func (m Model) Status() string {
	return m.status
}

// =============================================================================
// EDITOR SYNC
// =============================================================================

// commitEditor writes the editor text into the focused row's variant.
func (m *Model) commitEditor() {
	_ = m.deck.SetContent(m.focus, m.editor.Value())
}

// loadEditor shows the focused row's variant in the editor and sizes it.
func (m *Model) loadEditor() {
	row, err := m.deck.Row(m.focus)
	if err != nil {
		return
	}
	m.editor.SetValue(row.Content())
	m.resizeEditor()
}

func (m *Model) resizeEditor() {
	m.editor.SetHeight(deck.TextHeight(m.editor.Value(), m.wordsPerLine, m.maxTextLines))
}
