/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lektra/internal/doc"
)

// Client is the HTTP client the viewer uses to talk to the sync server.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a sync client. baseURL may include a trailing slash; it
// will be normalized.
func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Fingerprint derives the server-side document key from file content, so the
// same document syncs regardless of where each machine stores it. Directory
// documents hash their path instead.
func Fingerprint(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	h := sha256.New()
	if info.IsDir() {
		_, _ = io.WriteString(h, "dir:"+info.Name())
	} else {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", path, err)
		}
		defer f.Close()
		if _, err := io.Copy(h, f); err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", path, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// Authenticate fetches a bearer token for the subject and stores it on the
// client.
func (c *Client) Authenticate(ctx context.Context, subject string) error {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]any{"subject": subject}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", body, &resp); err != nil {
		return err
	}
	if resp.Token == "" {
		return fmt.Errorf("server returned empty token")
	}
	c.Token = resp.Token
	return nil
}

// ListDocuments returns the documents known to the server.
func (c *Client) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	var list []DocumentInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/documents", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// PullHighlights fetches all highlights stored for a document.
func (c *Client) PullHighlights(ctx context.Context, fingerprint string) ([]Highlight, error) {
	var list []Highlight
	path := "/api/highlights?doc=" + url.QueryEscape(fingerprint)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SearchHighlights asks the server for highlights matching a text query.
func (c *Client) SearchHighlights(ctx context.Context, fingerprint, query string) ([]Highlight, error) {
	var list []Highlight
	path := "/api/highlights?doc=" + url.QueryEscape(fingerprint) + "&q=" + url.QueryEscape(query)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// PushHighlights uploads a batch of highlights for a document and returns how
// many the server stored.
func (c *Client) PushHighlights(ctx context.Context, fingerprint, name string, hs []Highlight) (int, error) {
	body := map[string]any{"fingerprint": fingerprint, "name": name, "highlights": hs}
	var resp struct {
		Stored int `json:"stored"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/highlights", body, &resp); err != nil {
		return 0, err
	}
	return resp.Stored, nil
}

// PushFromModel collects the model's highlight annotations and pushes them.
func (c *Client) PushFromModel(ctx context.Context, m doc.Model) (int, error) {
	fp, err := Fingerprint(m.FilePath())
	if err != nil {
		return 0, err
	}
	var hs []Highlight
	for _, h := range m.HighlightTexts() {
		hs = append(hs, Highlight{Pageno: h.Pageno, Color: h.Color, Text: h.Text})
	}
	if len(hs) == 0 {
		return 0, nil
	}
	return c.PushHighlights(ctx, fp, filepath.Base(m.FilePath()), hs)
}
