// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient points a client at srv with pacing disabled and fast retries.
func newTestClient(srv *httptest.Server, retries int) *Client {
	return NewClientWithConfig(&ClientConfig{
		BaseURL:      srv.URL,
		Timeout:      5 * time.Second,
		DefaultModel: "mistral",
		MaxRetries:   retries,
		RetryDelay:   time.Millisecond,
	})
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessageConstructors(t *testing.T) {
	tests := []struct {
		msg  Message
		role string
	}{
		{NewUserMessage("hi"), "user"},
		{NewAssistantMessage("hi"), "assistant"},
	}
	for _, tt := range tests {
		if tt.msg.Role != tt.role {
			t.Errorf("Role = %q, want %q", tt.msg.Role, tt.role)
		}
		if tt.msg.Content != "hi" {
			t.Errorf("Content = %q, want 'hi'", tt.msg.Content)
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{4_100_000_000, "3.8 GB"},
	}
	for _, tt := range tests {
		m := ModelInfo{Size: tt.size}
		if got := m.FormatSize(); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestTokensPerSecond(t *testing.T) {
	r := ChatResponse{EvalCount: 50, EvalDuration: int64(2 * time.Second)}
	if got := r.TokensPerSecond(); got != 25 {
		t.Errorf("TokensPerSecond = %v, want 25", got)
	}
	if got := (&ChatResponse{}).TokensPerSecond(); got != 0 {
		t.Errorf("TokensPerSecond with no duration = %v, want 0", got)
	}
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestClientErrorMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ClientError{Type: ErrTypeNotRunning, Message: "x", Cause: errors.New("dial")})

	if !IsNotRunning(err) {
		t.Error("IsNotRunning should match a wrapped not-running error")
	}
	if IsTimeout(err) || IsModelNotFound(err) {
		t.Error("predicates should not cross categories")
	}
	if !strings.Contains(err.Error(), "dial") {
		t.Errorf("cause missing from message: %q", err.Error())
	}
	if errors.Is(&ClientError{Message: "plain"}, &ClientError{Message: "plain"}) {
		t.Error("unknown-type errors should not match by category")
	}
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestChat_SendsNonStreamingRequest(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Model:   got.Model,
			Message: Message{Role: "assistant", Content: "Hallo!"},
			Done:    true,
		})
	}))
	defer srv.Close()

	c := newTestClient(srv, 0)
	msgs := []Message{{Role: RoleSystem, Content: "be brief"}, NewUserMessage("hi")}
	resp, err := c.Chat(context.Background(), "", msgs)
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}

	if got.Stream {
		t.Error("Chat must request stream=false")
	}
	if got.Model != "mistral" {
		t.Errorf("model = %q, want default 'mistral'", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[1].Content != "hi" {
		t.Errorf("messages not sent verbatim: %+v", got.Messages)
	}
	if resp.Message.Content != "Hallo!" {
		t.Errorf("reply = %q", resp.Message.Content)
	}
}

func TestChat_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model \"nope\" not found, try pulling it first"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 0).Chat(context.Background(), "nope", nil)
	if !IsModelNotFound(err) {
		t.Fatalf("expected model-not-found, got %v", err)
	}
	if !strings.Contains(err.Error(), "try pulling it first") {
		t.Errorf("server message lost: %v", err)
	}
}

func TestChat_ServerErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"out of memory"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 0).Chat(context.Background(), "", nil)
	var ce *ClientError
	if !errors.As(err, &ce) || ce.Type != ErrTypeInvalidResponse {
		t.Fatalf("expected invalid-response ClientError, got %v", err)
	}
	if ce.Message != "out of memory" {
		t.Errorf("Message = %q", ce.Message)
	}
}

func TestChat_NotRunningAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: url, MaxRetries: 2, RetryDelay: time.Millisecond})
	_, err := c.Chat(context.Background(), "", nil)
	if !IsNotRunning(err) {
		t.Fatalf("expected not-running, got %v", err)
	}
}

func TestChat_RetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// Drop the connection to simulate the server restarting.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("hijacking not supported")
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"ok"},"done":true}`)
	}))
	defer srv.Close()

	resp, err := newTestClient(srv, 2).Chat(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("Chat error: %v", err)
	}
	if resp.Message.Content != "ok" {
		t.Errorf("reply = %q", resp.Message.Content)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestChat_CanceledContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := newTestClient(srv, 3).Chat(ctx, "", nil)
	if !IsCanceled(err) {
		t.Fatalf("expected cancelled, got %v", err)
	}
}

func TestCheckRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Ollama is running")
	}))
	c := newTestClient(srv, 0)
	if err := c.CheckRunning(context.Background()); err != nil {
		t.Errorf("CheckRunning error: %v", err)
	}
	srv.Close()

	if err := c.CheckRunning(context.Background()); !IsNotRunning(err) {
		t.Errorf("expected not-running after close, got %v", err)
	}
}

func TestEnsureRunning_AlreadyRunning(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, "Ollama is running")
	}))
	defer srv.Close()

	if err := newTestClient(srv, 0).EnsureRunning(context.Background()); err != nil {
		t.Fatalf("EnsureRunning error: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("health checks = %d, want 1", n)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"models":[{"name":"mistral:latest","size":4100000000},{"name":"llama3:8b","size":1}]}`)
	}))
	defer srv.Close()

	models, err := newTestClient(srv, 0).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels error: %v", err)
	}
	if len(models) != 2 || models[0].Name != "mistral:latest" {
		t.Errorf("models = %+v", models)
	}
}

func TestModelExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ShowModelRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Name != "mistral" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"details":{"family":"llama"}}`)
	}))
	defer srv.Close()

	c := newTestClient(srv, 0)
	if !c.ModelExists(context.Background(), "mistral") {
		t.Error("mistral should exist")
	}
	if c.ModelExists(context.Background(), "ghost") {
		t.Error("ghost should not exist")
	}
}

func TestSetModel(t *testing.T) {
	c := NewClient()
	if c.Model() != "mistral" {
		t.Errorf("default model = %q", c.Model())
	}
	c.SetModel("llama3")
	if c.Model() != "llama3" {
		t.Errorf("model = %q after SetModel", c.Model())
	}
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

const streamBody = `{"model":"mistral","message":{"role":"assistant","content":"Hel"},"done":false}

not json
{"model":"mistral","message":{"role":"assistant","content":"lo"},"done":false}
{"model":"mistral","message":{"role":"assistant","content":""},"done":true,"eval_count":2,"eval_duration":1000000}
`

func TestStreamReader(t *testing.T) {
	r := NewStreamReader(strings.NewReader(streamBody))

	var chunks []StreamChunk
	if err := r.Process(context.Background(), func(c StreamChunk) { chunks = append(chunks, c) }); err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if !chunks[2].Done || chunks[2].CompletionTokens != 2 {
		t.Errorf("final chunk = %+v", chunks[2])
	}
	if chunks[0].Content != "Hel" || chunks[1].Content != "lo" {
		t.Errorf("contents = %q, %q", chunks[0].Content, chunks[1].Content)
	}
	if chunks[2].Model != "mistral" {
		t.Errorf("model = %q", chunks[2].Model)
	}
}

func TestStreamReader_ErrorLine(t *testing.T) {
	r := NewStreamReader(strings.NewReader(`{"error":"model crashed"}` + "\n"))
	err := r.Process(context.Background(), func(StreamChunk) {})
	if err == nil || !strings.Contains(err.Error(), "model crashed") {
		t.Fatalf("expected stream error, got %v", err)
	}
}

func TestChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			t.Error("ChatStream must request stream=true")
		}
		fmt.Fprint(w, streamBody)
	}))
	defer srv.Close()

	var sb strings.Builder
	err := newTestClient(srv, 0).ChatStream(context.Background(), "", nil, func(chunk StreamChunk) {
		sb.WriteString(chunk.Content)
	})
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if sb.String() != "Hello" {
		t.Errorf("streamed = %q", sb.String())
	}
}

func TestChatStream_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	err := newTestClient(srv, 0).ChatStream(context.Background(), "nope", nil, func(StreamChunk) {
		t.Error("no chunks expected")
	})
	if !IsModelNotFound(err) {
		t.Fatalf("expected model not found, got %v", err)
	}
}

// =============================================================================
// PULL TESTS
// =============================================================================

func TestPull(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pull" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"status":"downloading","digest":"sha256:abc","total":200,"completed":50}`)
		fmt.Fprintln(w, `{"status":"success"}`)
	}))
	defer srv.Close()

	var got []PullProgress
	err := newTestClient(srv, 0).Pull(context.Background(), "mistral", func(p PullProgress) {
		got = append(got, p)
	})
	if err != nil {
		t.Fatalf("Pull error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d progress lines, want 3", len(got))
	}
	if got[1].Digest != "sha256:abc" || got[1].Percent() != 25 {
		t.Errorf("progress = %+v (%.0f%%)", got[1], got[1].Percent())
	}
	if got[0].Percent() != -1 {
		t.Errorf("unknown total should report -1, got %v", got[0].Percent())
	}
	if got[2].Status != "success" {
		t.Errorf("last status = %q", got[2].Status)
	}
}

func TestPull_ErrorLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"error":"pull model manifest: file does not exist"}`)
	}))
	defer srv.Close()

	err := newTestClient(srv, 0).Pull(context.Background(), "ghost", nil)
	if err == nil || !strings.Contains(err.Error(), "file does not exist") {
		t.Fatalf("expected pull error, got %v", err)
	}
}
