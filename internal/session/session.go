/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package session persists the set of open documents and their view state so
// the next start can restore where the reader left off. The file is JSON,
// validated against an embedded schema on load; writes are transactional with
// a timestamped backup of the previous session kept alongside.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"lektra/internal/config"
)

const (
	FileName       = "session.json"
	BackupsDirName = "session-backups"

	// sessionVersion is bumped on incompatible structure changes.
	sessionVersion = 1
)

// DocumentState is the restorable view state of one open document.
type DocumentState struct {
	Path     string  `json:"path"`
	Page     int     `json:"page"`
	Zoom     float64 `json:"zoom"`
	Fit      string  `json:"fit,omitempty"`
	Layout   string  `json:"layout,omitempty"`
	Rotation int     `json:"rotation,omitempty"`
	Invert   bool    `json:"invert,omitempty"`
	// Current marks the document that had focus.
	Current bool `json:"current,omitempty"`
}

// Session is the persisted application session.
type Session struct {
	SessionVersion int             `json:"session_version"`
	SavedAt        string          `json:"saved_at"`
	Documents      []DocumentState `json:"documents"`
}

// schemaJSON is the validation contract for session files. Unknown fields are
// tolerated so newer files still load.
const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["session_version", "documents"],
  "properties": {
    "session_version": {"type": "integer", "minimum": 1},
    "saved_at": {"type": "string"},
    "documents": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["path", "page"],
        "properties": {
          "path": {"type": "string", "minLength": 1},
          "page": {"type": "integer", "minimum": 0},
          "zoom": {"type": "number", "exclusiveMinimum": 0},
          "fit": {"type": "string"},
          "layout": {"type": "string"},
          "rotation": {"type": "integer", "enum": [0, 90, 180, 270]},
          "invert": {"type": "boolean"},
          "current": {"type": "boolean"}
        }
      }
    }
  }
}`

var schema = gojsonschema.NewStringLoader(schemaJSON)

// New returns an empty session of the current version.
func New() Session {
	return Session{SessionVersion: sessionVersion}
}

// Path returns the per-user session file location, next to the config file.
func Path() (string, error) {
	cfgPath, err := config.ConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(cfgPath), FileName), nil
}

// Validate checks raw session JSON against the schema.
func Validate(data []byte) error {
	res, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate session: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid session: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Load reads and validates the session at path. A missing file yields an
// empty session; an unreadable or invalid one falls back to the latest backup
// before giving up.
func Load(path string) (Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err == nil {
		if s, perr := parse(data); perr == nil {
			return s, nil
		} else {
			err = perr
		}
	}
	s, berr := loadFromLatestBackup(filepath.Dir(path))
	if berr != nil {
		return New(), fmt.Errorf("load session: %w; backup attempt: %v", err, berr)
	}
	return s, nil
}

func parse(data []byte) (Session, error) {
	if err := Validate(data); err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("parse session: %w", err)
	}
	return s, nil
}

// Save writes the session transactionally and keeps a timestamped backup of
// the file being replaced.
func Save(path string, s Session) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("session path is required")
	}
	s.SessionVersion = sessionVersion
	s.SavedAt = time.Now().UTC().Format(time.RFC3339)
	if s.Documents == nil {
		s.Documents = []DocumentState{}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure session dir: %w", err)
	}
	bdir := filepath.Join(dir, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		stamp := time.Now().Format("20060102-150405")
		bname := fmt.Sprintf("%s.%s.bak", FileName, stamp)
		if cerr := copyFile(path, filepath.Join(bdir, bname)); cerr != nil {
			return fmt.Errorf("backup session: %w", cerr)
		}
	}

	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", FileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp session: %w", werr)
	}
	// replace-by-rename; Windows needs the destination gone first
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace session: %w", rerr)
	}
	return nil
}

// Current returns the focused document state, or the first one.
func (s Session) Current() (DocumentState, bool) {
	for _, d := range s.Documents {
		if d.Current {
			return d, true
		}
	}
	if len(s.Documents) > 0 {
		return s.Documents[0], true
	}
	return DocumentState{}, false
}

func loadFromLatestBackup(dir string) (Session, error) {
	bdir := filepath.Join(dir, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return Session{}, fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, FileName+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return Session{}, errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	latest := candidates[len(candidates)-1]
	data, err := os.ReadFile(latest)
	if err != nil {
		return Session{}, fmt.Errorf("read latest backup: %w", err)
	}
	return parse(data)
}

func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
