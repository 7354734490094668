/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package view

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"lektra/internal/config"
	"lektra/internal/doc"
	"lektra/internal/geom"
	"lektra/internal/render"
)

// OpenAsync opens a document off the view goroutine. The outcome lands back
// on the view goroutine as one of the open lifecycle events.
func (v *View) OpenAsync(path, password string) {
	if v.state == StateOpening || v.state == StateReloading {
		return
	}
	v.state = StateOpening
	v.path = path
	go func() {
		m, st, err := doc.Open(path, password)
		v.post(func() { v.finishOpen(m, st, err) })
	}()
}

// SubmitPassword retries an open that stopped at the password handshake.
func (v *View) SubmitPassword(password string) {
	if v.state != StatePasswordRequired {
		return
	}
	v.state = StateIdle
	v.OpenAsync(v.path, password)
}

func (v *View) finishOpen(m doc.Model, st doc.OpenStatus, err error) {
	if v.state == StateClosed {
		if m != nil {
			_ = m.Close()
		}
		return
	}
	switch st {
	case doc.OpenReady:
		v.installModel(m)
		v.state = StateReady
		v.log.Info("document opened",
			slog.String("path", v.path), slog.Int("pages", m.NumPages()))
		if v.Events.TotalPageCountChanged != nil {
			v.Events.TotalPageCountChanged(m.NumPages())
		}
		if v.Events.FileNameChanged != nil {
			v.Events.FileNameChanged(baseName(v.path))
		}
		if v.fit != FitCustom {
			v.applyFit()
		}
		v.updateVisible()
		if v.pendingJump != nil {
			jump := *v.pendingJump
			v.pendingJump = nil
			v.GotoLocation(jump)
		}
		if v.autoReload {
			v.startWatcher()
		}
		if v.Events.OpenFileFinished != nil {
			v.Events.OpenFileFinished(v)
		}
	case doc.OpenPasswordRequired:
		v.state = StatePasswordRequired
		if v.Events.PasswordRequired != nil {
			v.Events.PasswordRequired(v)
		}
	case doc.OpenWrongPassword:
		v.state = StatePasswordRequired
		if v.Events.WrongPassword != nil {
			v.Events.WrongPassword(v)
		}
	default:
		v.state = StateFailed
		v.log.Warn("document open failed", slog.String("path", v.path), slog.Any("err", err))
		if v.Events.OpenFileFailed != nil {
			v.Events.OpenFileFailed(v, err)
		}
	}
}

// installModel swaps in a freshly opened model and resets per-document state.
func (v *View) installModel(m doc.Model) {
	if v.pipe != nil {
		v.pipe.Stop()
	}
	if v.model != nil {
		_ = v.model.Close()
	}
	v.model = m
	m.SetInvertColor(v.invert)
	if c, ok := m.(interface{ SetCachePages(int) }); ok {
		c.SetCachePages(v.cfg.Behavior.CachePages)
	}
	v.pipe = render.New(m, v.workers, v.post, v.onRenderResult, v.log)

	v.applyPageSizes()

	v.scn.Clear()
	v.entries = make(map[int]*pageEntry)
	v.hist = history{limit: v.cfg.Behavior.PageHistoryLimit, cursor: -1}
	v.search = searchState{index: -1}
	v.sel = selectionState{}
	v.currentPage = 0
	v.clampViewport()
}

func (v *View) applyPageSizes() {
	ptScale := v.cfg.Rendering.DPI / 72.0
	sizes := make([]geom.Size, v.model.NumPages())
	for i := range sizes {
		sizes[i] = v.model.PageSize(i).Scale(ptScale)
	}
	v.lay.SetPageSizes(sizes)
}

// Reload re-opens the current document while preserving page, zoom, fit, and
// rotation. Transient failures retry with bounded backoff.
func (v *View) Reload() {
	if v.state != StateReady || v.model == nil {
		return
	}
	v.state = StateReloading
	v.pipe.Bump()
	keepPage := v.currentPage

	path := v.path
	password, _ := config.LookupPassword(path)
	go func() {
		m, st, err := doc.Open(path, password)
		v.post(func() { v.finishReload(m, st, err, keepPage) })
	}()
}

func (v *View) finishReload(m doc.Model, st doc.OpenStatus, err error, keepPage int) {
	if v.state != StateReloading {
		if m != nil {
			_ = m.Close()
		}
		return
	}
	if st != doc.OpenReady {
		if m != nil {
			_ = m.Close()
		}
		v.retries++
		if v.retries <= reloadMaxRetries {
			v.log.Debug("reload not ready, retrying",
				slog.String("path", v.path), slog.Int("attempt", v.retries), slog.Any("err", err))
			retry := v.retries
			time.AfterFunc(reloadRetryDelay*time.Duration(retry), func() {
				v.post(func() {
					if v.state == StateReloading {
						v.state = StateReady
						v.Reload()
					}
				})
			})
			return
		}
		// give up; the old model stays usable
		v.retries = 0
		v.state = StateReady
		v.log.Warn("reload failed", slog.String("path", v.path), slog.Any("err", err))
		v.postMessage("reload failed: " + baseName(v.path))
		return
	}

	v.retries = 0
	keepSel := v.sel
	v.installModel(m)
	v.state = StateReady
	if v.Events.TotalPageCountChanged != nil {
		v.Events.TotalPageCountChanged(m.NumPages())
	}
	if v.fit != FitCustom {
		v.applyFit()
	}
	v.GotoPage(keepPage)
	v.updateVisible()
	// the selection survives a reload while its pages still exist
	if keepSel.text != "" && keepSel.startPage < m.NumPages() && keepSel.endPage < m.NumPages() {
		v.sel.startPage, v.sel.endPage = keepSel.startPage, keepSel.endPage
		v.sel.quads = keepSel.quads
		v.sel.text = keepSel.text
		v.scn.SetSelection(v.sel.quads, v.cfg.Colors.Selection)
	}
	v.log.Info("document reloaded", slog.String("path", v.path))
}

// CloseFile tears the view down: renders drained, scene cleared, model
// closed, portal bond broken.
func (v *View) CloseFile() {
	if v.state == StateClosed {
		return
	}
	v.stopWatcher()
	v.resizeTimer.Stop()
	v.pageTimer.Stop()
	v.reloadTimer.Stop()
	if v.pipe != nil {
		v.pipe.Stop()
	}
	v.scn.Clear()
	v.entries = make(map[int]*pageEntry)
	v.search = searchState{index: -1}
	v.sel = selectionState{}
	v.pendingJump = nil
	if v.model != nil {
		_ = v.model.Close()
		v.model = nil
	}
	v.clearBond()
	v.state = StateClosed
	if v.Events.Closed != nil {
		v.Events.Closed(v)
	}
}

// fileWatcher drives auto-reload. The parent directory is watched so that
// replace-by-rename (the common save pattern) is still observed.
type fileWatcher struct {
	fsw  *fsnotify.Watcher
	done chan struct{}
}

func (v *View) startWatcher() {
	v.stopWatcher()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		v.log.Warn("file watcher unavailable", slog.Any("err", err))
		return
	}
	target := v.path
	dir := filepath.Dir(target)
	if err := fsw.Add(dir); err != nil {
		v.log.Warn("file watcher add failed", slog.String("dir", dir), slog.Any("err", err))
		_ = fsw.Close()
		return
	}
	// directory documents also need events for files inside them
	_ = fsw.Add(target)
	w := &fileWatcher{fsw: fsw, done: make(chan struct{})}
	v.watcher = w
	reload := v.reloadTimer
	go func() {
		defer close(w.done)
		for {
			select {
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if !watchHit(ev, target) {
					continue
				}
				reload.Trigger()
			case _, ok := <-fsw.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

// watchHit reports whether the event touches the open document. Directory
// documents match any write inside them.
func watchHit(ev fsnotify.Event, target string) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if ev.Name == target {
		return true
	}
	return filepath.Dir(ev.Name) == target
}

func (v *View) stopWatcher() {
	if v.watcher == nil {
		return
	}
	_ = v.watcher.fsw.Close()
	<-v.watcher.done
	v.watcher = nil
}
