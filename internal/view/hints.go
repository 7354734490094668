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
	"sort"
	"strings"

	"lektra/internal/doc"
	"lektra/internal/geom"
	"lektra/internal/scene"
)

// HintAction is what committing a keyboard hint does.
type HintAction int

const (
	HintVisit HintAction = iota
	HintCopy
)

// hintAlphabet is the home-row-first label alphabet.
const hintAlphabet = "fdsagjklh"

type hintTarget struct {
	link   doc.Link
	pageno int
	rect   geom.Rect // scene coords
}

type hintState struct {
	active  bool
	action  HintAction
	targets map[string]hintTarget
	typed   string
}

// hintLabels yields n distinct labels, single characters first, then pairs.
func hintLabels(n int) []string {
	alpha := strings.Split(hintAlphabet, "")
	if n <= len(alpha) {
		return alpha[:n]
	}
	labels := make([]string, 0, n)
	for _, a := range alpha {
		for _, b := range alpha {
			labels = append(labels, a+b)
			if len(labels) == n {
				return labels
			}
		}
	}
	return labels
}

// ShowLinkHints overlays labels on every link of the pages currently in the
// scene and starts consuming keystrokes.
func (v *View) ShowLinkHints(action HintAction) {
	if v.model == nil {
		return
	}
	var targets []hintTarget
	pages := make([]int, 0, len(v.entries))
	for n := range v.entries {
		pages = append(pages, n)
	}
	sort.Ints(pages)
	for _, pageno := range pages {
		for _, link := range v.pageLinks(pageno) {
			targets = append(targets, hintTarget{
				link:   link,
				pageno: pageno,
				rect:   v.pageRectToScene(pageno, link.Rect),
			})
		}
	}
	if len(targets) == 0 {
		return
	}
	labels := hintLabels(len(targets))
	v.hints = hintState{active: true, action: action, targets: make(map[string]hintTarget, len(targets))}
	for i, tgt := range targets {
		v.hints.targets[labels[i]] = tgt
	}
	v.renderHints()
}

// HintsActive reports whether keystrokes are being consumed by the overlay.
func (v *View) HintsActive() bool { return v.hints.active }

// HintKey narrows the hint set with one typed character. It returns true
// while the overlay consumes input; a unique match commits, a dead prefix
// cancels.
func (v *View) HintKey(r rune) bool {
	if !v.hints.active {
		return false
	}
	typed := v.hints.typed + string(r)
	var match *hintTarget
	prefixes := 0
	for label, tgt := range v.hints.targets {
		if !strings.HasPrefix(label, typed) {
			continue
		}
		prefixes++
		if label == typed {
			tgt := tgt
			match = &tgt
		}
	}
	if prefixes == 0 {
		v.CancelHints()
		return true
	}
	if match != nil && prefixes == 1 {
		v.commitHint(*match)
		return true
	}
	v.hints.typed = typed
	v.renderHints()
	return true
}

func (v *View) commitHint(tgt hintTarget) {
	action := v.hints.action
	v.CancelHints()
	switch action {
	case HintCopy:
		text := tgt.link.URI
		if tgt.link.Kind == doc.LinkGoto {
			text = v.model.TextInRegion(tgt.pageno, tgt.link.Rect)
		}
		if v.Events.ClipboardContentChanged != nil {
			v.Events.ClipboardContentChanged(text)
		}
	default:
		v.activateLink(tgt.link, false)
	}
}

// CancelHints clears the overlay and stops consuming input.
func (v *View) CancelHints() {
	if !v.hints.active {
		return
	}
	v.hints = hintState{}
	v.scn.ClearLinkHints()
}

// renderHints shows the labels still matching the typed prefix. Label boxes
// sit on the target's top-left corner, sized by link_hints.size.
func (v *View) renderHints() {
	size := v.cfg.LinkHints.Size
	if size <= 0 {
		size = 12
	}
	rects := make(map[string]geom.Rect)
	for label, tgt := range v.hints.targets {
		if !strings.HasPrefix(label, v.hints.typed) {
			continue
		}
		w := size * (0.6*float64(len(label)) + 0.6)
		rects[label] = geom.R(
			tgt.rect.Min.X, tgt.rect.Min.Y,
			tgt.rect.Min.X+w, tgt.rect.Min.Y+size*1.2)
	}
	v.scn.SetLinkHints(rects, v.cfg.Colors.LinkHintFg, v.cfg.Colors.LinkHintBg)
}

// vlineState is the visual-line cursor: a line index on a page.
type vlineState struct {
	active bool
	pageno int
	line   int
	itemID int64
}

func (v *View) enterVisualLine() {
	v.vline = vlineState{active: true, pageno: v.currentPage}
	v.snapVisualLineToPage(v.currentPage)
}

func (v *View) exitVisualLine() {
	if !v.vline.active {
		return
	}
	if v.vline.itemID != 0 {
		v.scn.Remove(v.vline.itemID)
	}
	v.vline = vlineState{}
}

// snapVisualLineToPage moves the cursor to the first line of a page.
func (v *View) snapVisualLineToPage(pageno int) {
	if !v.vline.active || v.model == nil {
		return
	}
	v.vline.pageno = pageno
	v.vline.line = 0
	v.drawVisualLine()
}

// MoveVisualLine steps the cursor to an adjacent line, crossing page
// boundaries, and keeps it in view.
func (v *View) MoveVisualLine(delta int) {
	if !v.vline.active || v.model == nil {
		return
	}
	pageno, line := v.vline.pageno, v.vline.line+delta
	// bounded walk; pages without text are skipped
	for steps := 0; steps <= v.model.NumPages(); steps++ {
		lines := v.model.TextLines(pageno)
		if line >= 0 && line < len(lines) {
			break
		}
		if line < 0 {
			if pageno == 0 {
				line = 0
				break
			}
			pageno--
			line = len(v.model.TextLines(pageno)) - 1
			if line < 0 {
				line = 0
			}
		} else {
			if pageno >= v.model.NumPages()-1 {
				if n := len(lines); n > 0 {
					line = n - 1
				} else {
					line = 0
				}
				break
			}
			pageno++
			line = 0
		}
	}
	v.vline.pageno = pageno
	v.vline.line = line
	v.drawVisualLine()

	lines := v.model.TextLines(pageno)
	if v.vline.line < len(lines) {
		r := lines[v.vline.line].Rect
		sceneR := v.pageRectToScene(pageno, r)
		if !v.viewport.Overlaps(sceneR) {
			v.GotoLocation(doc.Location{Pageno: pageno, Y: r.Min.Y})
		}
	}
}

// VisualLine returns the cursor position for status display.
func (v *View) VisualLine() (pageno, line int, active bool) {
	return v.vline.pageno, v.vline.line, v.vline.active
}

func (v *View) drawVisualLine() {
	if v.vline.itemID != 0 {
		v.scn.Remove(v.vline.itemID)
		v.vline.itemID = 0
	}
	lines := v.model.TextLines(v.vline.pageno)
	if v.vline.line >= len(lines) {
		return
	}
	r := v.pageRectToScene(v.vline.pageno, lines[v.vline.line].Rect)
	v.vline.itemID = v.scn.Add(scene.Item{
		Kind:   scene.KindRect,
		Z:      scene.ZSelection,
		Pageno: v.vline.pageno,
		Rect:   r,
		Stroke: v.cfg.Colors.Selection,
	})
}
