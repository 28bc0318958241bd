// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"context"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// PullCallback receives each progress line of a download.
type PullCallback func(PullProgress)

// Pull downloads a model, reporting progress for every status line.
// The final status from Ollama is "success".
func (c *Client) Pull(ctx context.Context, model string, progress PullCallback) error {
	reqBody := PullRequest{Name: c.resolveModel(model), Stream: true}

	resp, err := c.do(ctx, &http.Client{}, http.MethodPost, "/api/pull", reqBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "pull")
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return classify(err)
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !gjson.Valid(line) {
			continue
		}

		p, err := parsePullLine(line)
		if err != nil {
			return err
		}
		if progress != nil {
			progress(p)
		}
	}
	if err := scanner.Err(); err != nil {
		return classify(err)
	}
	return nil
}

// parsePullLine extracts a PullProgress from one NDJSON status object.
func parsePullLine(line string) (PullProgress, error) {
	parsed := gjson.Parse(line)
	if msg := parsed.Get("error"); msg.Exists() {
		return PullProgress{}, &ClientError{Type: ErrTypeInvalidResponse, Message: msg.String()}
	}
	return PullProgress{
		Status:    parsed.Get("status").String(),
		Digest:    parsed.Get("digest").String(),
		Total:     parsed.Get("total").Int(),
		Completed: parsed.Get("completed").Int(),
	}, nil
}
