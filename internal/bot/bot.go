// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bot answers a conversation with a single reply.
//
// A Responder is what the deck and the console talk to. OllamaBot asks the
// local Ollama server, TestBot answers offline, and Journaled records every
// exchange of another Responder.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/lokalchat/internal/journal"
	"github.com/jeranaias/lokalchat/internal/ollama"
)

// Responder turns a message list into the model's reply text.
type Responder interface {
	Respond(ctx context.Context, messages []ollama.Message) (string, error)
}

// Streamer is implemented by responders that can hand over the reply as it
// is generated. onChunk receives each non-empty piece in order.
type Streamer interface {
	RespondStream(ctx context.Context, messages []ollama.Message, onChunk func(string)) (string, error)
}

// Stream asks r for a reply, passing pieces to onChunk as they arrive. A
// responder that cannot stream delivers its whole reply as one piece.
func Stream(ctx context.Context, r Responder, messages []ollama.Message, onChunk func(string)) (string, error) {
	if s, ok := r.(Streamer); ok {
		return s.RespondStream(ctx, messages, onChunk)
	}
	reply, err := r.Respond(ctx, messages)
	if err == nil && reply != "" {
		onChunk(reply)
	}
	return reply, err
}

// Named is implemented by responders that know which model they use.
type Named interface {
	ModelName() string
}

// ModelName returns r's model name, or "" when r does not report one.
func ModelName(r Responder) string {
	if n, ok := r.(Named); ok {
		return n.ModelName()
	}
	return ""
}

// SwitchModel sets the model on r or on the first responder it wraps that
// accepts one. It reports false when none does.
func SwitchModel(r Responder, model string) bool {
	for r != nil {
		if s, ok := r.(interface{ SetModel(string) }); ok {
			s.SetModel(model)
			return true
		}
		u, ok := r.(interface{ Unwrap() Responder })
		if !ok {
			return false
		}
		r = u.Unwrap()
	}
	return false
}

// =============================================================================
// OLLAMA
// =============================================================================

// chatter is the part of *ollama.Client that OllamaBot needs.
type chatter interface {
	Chat(ctx context.Context, model string, messages []ollama.Message) (*ollama.ChatResponse, error)
	ChatStream(ctx context.Context, model string, messages []ollama.Message, callback ollama.StreamCallback) error
}

// OllamaBot sends the message list verbatim to /api/chat. Respond waits for
// the whole reply; RespondStream streams it.
type OllamaBot struct {
	client chatter

	mu    sync.RWMutex
	model string
}

// NewOllamaBot creates a responder backed by client using model.
func NewOllamaBot(client *ollama.Client, model string) *OllamaBot {
	return &OllamaBot{client: client, model: model}
}

// Respond implements Responder.
func (b *OllamaBot) Respond(ctx context.Context, messages []ollama.Message) (string, error) {
	model := b.ModelName()
	resp, err := b.client.Chat(ctx, model, messages)
	if err != nil {
		return "", err
	}
	slog.Debug("reply received", "model", model, "tokens", resp.EvalCount, "total", resp.TotalTime())
	return resp.Message.Content, nil
}

// RespondStream implements Streamer.
func (b *OllamaBot) RespondStream(ctx context.Context, messages []ollama.Message, onChunk func(string)) (string, error) {
	model := b.ModelName()
	var reply strings.Builder
	err := b.client.ChatStream(ctx, model, messages, func(chunk ollama.StreamChunk) {
		if chunk.Content != "" {
			reply.WriteString(chunk.Content)
			onChunk(chunk.Content)
		}
		if chunk.Done {
			slog.Debug("stream finished", "model", model, "tokens", chunk.CompletionTokens, "total", chunk.TotalDuration)
		}
	})
	return reply.String(), err
}

// ModelName implements Named.
func (b *OllamaBot) ModelName() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel switches the model used for later requests.
func (b *OllamaBot) SetModel(model string) {
	b.mu.Lock()
	b.model = model
	b.mu.Unlock()
}

// =============================================================================
// TEST MODE
// =============================================================================

// TestBot answers without any network access. Its replies carry a random
// number so that consecutive answers differ.
type TestBot struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewTestBot creates an offline responder.
func NewTestBot() *TestBot {
	return &TestBot{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Respond implements Responder.
func (b *TestBot) Respond(ctx context.Context, _ []ollama.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	n := b.rnd.Float64()
	b.mu.Unlock()
	return fmt.Sprintf("Test reply no: %v", n), nil
}

// ModelName implements Named.
func (b *TestBot) ModelName() string {
	return "test"
}

// =============================================================================
// JOURNAL DECORATOR
// =============================================================================

// Recorder stores exchanges; *journal.Journal satisfies it.
type Recorder interface {
	Record(ctx context.Context, ex journal.Exchange) (string, error)
}

// JournaledBot records every exchange of the wrapped responder.
type JournaledBot struct {
	next     Responder
	recorder Recorder
}

// Journaled wraps next so that each prompt and its reply or error is
// recorded. Recording failures are logged and never change the result.
func Journaled(next Responder, recorder Recorder) *JournaledBot {
	return &JournaledBot{next: next, recorder: recorder}
}

type rowKey struct{}

// WithRow tags ctx with the deck row that triggered a request so the
// journal can file it.
func WithRow(ctx context.Context, pos int) context.Context {
	return context.WithValue(ctx, rowKey{}, pos)
}

// RowFrom returns the deck row stored by WithRow, or journal.NoRow.
func RowFrom(ctx context.Context) int {
	if pos, ok := ctx.Value(rowKey{}).(int); ok {
		return pos
	}
	return journal.NoRow
}

// Respond implements Responder.
func (b *JournaledBot) Respond(ctx context.Context, messages []ollama.Message) (string, error) {
	started := time.Now()
	reply, err := b.next.Respond(ctx, messages)
	b.record(ctx, messages, reply, err, started)
	return reply, err
}

// RespondStream implements Streamer. The wrapped responder streams when it
// can; the exchange is recorded once the reply is complete.
func (b *JournaledBot) RespondStream(ctx context.Context, messages []ollama.Message, onChunk func(string)) (string, error) {
	started := time.Now()
	reply, err := Stream(ctx, b.next, messages, onChunk)
	b.record(ctx, messages, reply, err, started)
	return reply, err
}

func (b *JournaledBot) record(ctx context.Context, messages []ollama.Message, reply string, err error, started time.Time) {
	ex := journal.Exchange{
		Model:     ModelName(b.next),
		RowPos:    RowFrom(ctx),
		Prompt:    messages,
		Reply:     reply,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	if err != nil {
		ex.Error = err.Error()
	}

	// Record even when the request context was cancelled.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, recErr := b.recorder.Record(recCtx, ex); recErr != nil {
		slog.Warn("failed to journal exchange", "error", recErr)
	}
}

// ModelName implements Named.
func (b *JournaledBot) ModelName() string {
	return ModelName(b.next)
}

// Unwrap returns the decorated responder.
func (b *JournaledBot) Unwrap() Responder {
	return b.next
}
