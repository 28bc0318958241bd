// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/jeranaias/lokalchat/internal/util"
)

// =============================================================================
// LINE EDITOR
// =============================================================================

// LinerReader reads lines with history and line editing.
type LinerReader struct {
	line        *liner.State
	historyFile string
}

// NewLinerReader starts line editing on the terminal and loads history from
// historyFile when it exists. An empty historyFile disables history.
func NewLinerReader(historyFile string) *LinerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &LinerReader{line: line, historyFile: historyFile}
	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

// Prompt implements LineReader. Ctrl+C and Ctrl+D both end input.
func (r *LinerReader) Prompt(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", io.EOF
		}
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close writes the history file (mode 0600) and restores the terminal.
func (r *LinerReader) Close() error {
	defer r.line.Close()
	if r.historyFile == "" {
		return nil
	}
	var sb strings.Builder
	if _, err := r.line.WriteHistory(&sb); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return util.AtomicWriteFile(r.historyFile, []byte(sb.String()), 0600)
}

// =============================================================================
// PLAIN INPUT
// =============================================================================

// ScanReader reads lines from a non-interactive source such as a pipe. The
// prompt is written to out when out is non-nil.
type ScanReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// MaxLineSize is the longest input line a ScanReader accepts.
const MaxLineSize = 4 * 1024 * 1024

// NewScanReader reads lines from in.
func NewScanReader(in io.Reader, out io.Writer) *ScanReader {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &ScanReader{scanner: scanner, out: out}
}

// Prompt implements LineReader.
func (r *ScanReader) Prompt(prompt string) (string, error) {
	if r.out != nil {
		fmt.Fprint(r.out, prompt)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewReader picks line editing for an interactive stdin and plain scanning
// otherwise. The returned close function must be called when done.
func NewReader(historyFile string) (LineReader, func() error) {
	if IsTerminal(os.Stdin) {
		r := NewLinerReader(historyFile)
		return r, r.Close
	}
	return NewScanReader(os.Stdin, nil), func() error { return nil }
}
