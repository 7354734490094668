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
	"strings"
	"time"
	"unicode"

	"lektra/internal/doc"
	"lektra/internal/geom"
)

// selectionState carries the in-progress pointer gesture and the committed
// text selection.
type selectionState struct {
	pressed bool
	dragged bool
	anchor  geom.Point // scene coords
	current geom.Point

	startPage, endPage int
	quads              []geom.Quad
	text               string

	clickCount   int
	lastClickAt  time.Time
	lastClickPos geom.Point
}

// PressPrimary starts a pointer gesture. Click counting follows the usual
// multi-click window: 400 ms and 5 px, capped at four.
func (v *View) PressPrimary(pt geom.Point, mods Mods) {
	now := v.now()
	s := &v.sel
	if now.Sub(s.lastClickAt) <= multiClickWindow && pt.Manhattan(s.lastClickPos) <= multiClickRadius {
		if s.clickCount < 4 {
			s.clickCount++
		}
	} else {
		s.clickCount = 1
	}
	s.lastClickAt = now
	s.lastClickPos = pt
	s.pressed = true
	s.dragged = false
	s.anchor = pt
	s.current = pt

	if v.hints.active {
		v.CancelHints()
	}
}

// DragPrimary extends the gesture. Below the drag threshold nothing happens;
// beyond it text mode grows the selection and the region modes grow the
// rubber band.
func (v *View) DragPrimary(pt geom.Point) {
	s := &v.sel
	if !s.pressed {
		return
	}
	s.current = pt
	threshold := float64(v.cfg.Selection.DragThreshold)
	if !s.dragged && s.anchor.Manhattan(pt) < threshold {
		return
	}
	s.dragged = true
	switch v.mode {
	case ModeText:
		v.extendSelection(s.anchor, pt)
	case ModeRegion, ModeAnnotRect, ModeAnnotSelect:
		band := geom.R(s.anchor.X, s.anchor.Y, pt.X, pt.Y)
		v.scn.SetSelection([]geom.Quad{geom.QuadFromRect(band)}, v.cfg.Colors.Selection)
	}
}

// ReleasePrimary finishes the gesture: click dispatch without a drag, commit
// with one.
func (v *View) ReleasePrimary(pt geom.Point, mods Mods) {
	s := &v.sel
	if !s.pressed {
		return
	}
	s.pressed = false

	if !s.dragged {
		v.handleClick(pt, mods)
		return
	}

	switch v.mode {
	case ModeText:
		v.commitSelection()
	case ModeRegion:
		v.commitRegion(pt)
	case ModeAnnotRect:
		v.commitAnnotRect(pt)
	case ModeAnnotSelect:
		v.scn.SetSelection(nil, "")
		v.commitRegion(pt)
	}
}

func (v *View) handleClick(pt geom.Point, mods Mods) {
	switch v.mode {
	case ModeText:
		switch v.sel.clickCount {
		case 2:
			v.selectWordAt(pt)
		case 3:
			v.selectLineAt(pt)
		case 4:
			v.selectParagraphAt(pt)
		default:
			if link, ok := v.linkAt(pt); ok {
				v.activateLink(link, mods.Ctrl)
				return
			}
			v.clearSelection(true)
		}
	case ModeAnnotSelect:
		v.selectAnnotationAt(pt)
	}
}

// activateLink follows a link. Ctrl asks the container for a mirror view
// instead.
func (v *View) activateLink(link doc.Link, ctrl bool) {
	if ctrl {
		if v.Events.CtrlLinkClickRequested != nil {
			v.Events.CtrlLinkClickRequested(v, link)
		}
		return
	}
	switch link.Kind {
	case doc.LinkGoto:
		v.GotoLocationWithHistory(link.Target)
	case doc.LinkURI:
		if v.Events.OpenURIRequested != nil {
			v.Events.OpenURIRequested(link.URI)
		}
	}
}

// extendSelection rebuilds the selection between two scene points. Pages are
// traversed in axis order regardless of drag direction.
func (v *View) extendSelection(a, b geom.Point) {
	axisA, axisB := a.Y, b.Y
	if v.lay.Horizontal() {
		axisA, axisB = a.X, b.X
	}
	if axisB < axisA {
		a, b = b, a
	}
	startPage, startPt := v.sceneToPage(a)
	endPage, endPt := v.sceneToPage(b)

	s := &v.sel
	s.startPage, s.endPage = startPage, endPage
	s.quads = s.quads[:0]
	var parts []string
	for page := startPage; page <= endPage; page++ {
		from := geom.Pt(0, 0)
		to := geom.Pt(v.model.PageSize(page).W, v.model.PageSize(page).H)
		if page == startPage {
			from = startPt
		}
		if page == endPage {
			to = endPt
		}
		quads, text := v.selectOnPage(page, from, to, page == startPage, page == endPage)
		for _, q := range quads {
			s.quads = append(s.quads, v.pageQuadToScene(page, q))
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	s.text = strings.Join(parts, "\n")
	v.scn.SetSelection(s.quads, v.cfg.Colors.Selection)
}

// selectOnPage computes line quads between two page-local points: partial
// first and last lines, full lines between.
func (v *View) selectOnPage(pageno int, from, to geom.Point, clipStart, clipEnd bool) ([]geom.Quad, string) {
	lines := v.model.TextLines(pageno)
	var quads []geom.Quad
	var parts []string
	for _, line := range lines {
		r := line.Rect
		if clipStart && r.Max.Y <= from.Y {
			continue
		}
		if clipEnd && r.Min.Y >= to.Y {
			continue
		}
		sel := r
		firstLine := clipStart && from.Y >= r.Min.Y && from.Y < r.Max.Y
		lastLine := clipEnd && to.Y >= r.Min.Y && to.Y < r.Max.Y
		if firstLine {
			sel.Min.X = geom.Clamp(from.X, r.Min.X, r.Max.X)
		}
		if lastLine {
			sel.Max.X = geom.Clamp(to.X, sel.Min.X, r.Max.X)
		}
		if sel.Empty() {
			continue
		}
		quads = append(quads, geom.QuadFromRect(sel))
		if text := lineTextInSpan(line, sel.Min.X, sel.Max.X); text != "" {
			parts = append(parts, text)
		}
	}
	return quads, strings.Join(parts, "\n")
}

// lineTextInSpan approximates the covered substring by proportional column
// widths.
func lineTextInSpan(line doc.LineBox, x0, x1 float64) string {
	n := len([]rune(line.Text))
	if n == 0 || line.Rect.W() <= 0 {
		return ""
	}
	runes := []rune(line.Text)
	cw := line.Rect.W() / float64(n)
	lo := int((x0 - line.Rect.Min.X) / cw)
	hi := int((x1-line.Rect.Min.X)/cw + 0.5)
	lo = geom.ClampInt(lo, 0, n)
	hi = geom.ClampInt(hi, lo, n)
	return strings.TrimSpace(string(runes[lo:hi]))
}

// commitSelection fixes the drag result and publishes the text.
func (v *View) commitSelection() {
	if v.sel.text == "" {
		return
	}
	if v.Events.ClipboardContentChanged != nil {
		v.Events.ClipboardContentChanged(v.sel.text)
	}
}

// SelectedText returns the committed selection.
func (v *View) SelectedText() string { return v.sel.text }

func (v *View) clearSelection(emit bool) {
	v.sel.quads = nil
	v.sel.text = ""
	v.scn.SetSelection(nil, "")
	if emit && v.Events.ClipboardContentChanged != nil {
		v.Events.ClipboardContentChanged("")
	}
}

// ClearSelection drops the current selection and its overlay.
func (v *View) ClearSelection() { v.clearSelection(false) }

// selectWordAt selects the word under the point by proportional columns.
func (v *View) selectWordAt(pt geom.Point) {
	pageno, local := v.sceneToPage(pt)
	line, ok := lineAtPoint(v.model.TextLines(pageno), local)
	if !ok {
		return
	}
	runes := []rune(line.Text)
	if len(runes) == 0 || line.Rect.W() <= 0 {
		return
	}
	cw := line.Rect.W() / float64(len(runes))
	col := geom.ClampInt(int((local.X-line.Rect.Min.X)/cw), 0, len(runes)-1)
	lo, hi := col, col
	for lo > 0 && !unicode.IsSpace(runes[lo-1]) {
		lo--
	}
	for hi < len(runes) && !unicode.IsSpace(runes[hi]) {
		hi++
	}
	if lo == hi {
		return
	}
	word := string(runes[lo:hi])
	r := geom.R(
		line.Rect.Min.X+float64(lo)*cw, line.Rect.Min.Y,
		line.Rect.Min.X+float64(hi)*cw, line.Rect.Max.Y)
	v.setSelectionQuads(pageno, []geom.Quad{geom.QuadFromRect(r)}, word)
}

// selectLineAt selects the whole line under the point.
func (v *View) selectLineAt(pt geom.Point) {
	pageno, local := v.sceneToPage(pt)
	line, ok := lineAtPoint(v.model.TextLines(pageno), local)
	if !ok {
		return
	}
	v.setSelectionQuads(pageno, []geom.Quad{geom.QuadFromRect(line.Rect)}, line.Text)
}

// selectParagraphAt selects the block of consecutive lines around the point.
// A vertical gap above 1.5 line heights breaks the block.
func (v *View) selectParagraphAt(pt geom.Point) {
	pageno, local := v.sceneToPage(pt)
	lines := v.model.TextLines(pageno)
	idx := -1
	for i, line := range lines {
		if local.Y >= line.Rect.Min.Y && local.Y < line.Rect.Max.Y {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	gap := lines[idx].Rect.H() * 1.5
	lo, hi := idx, idx
	for lo > 0 && lines[lo].Rect.Min.Y-lines[lo-1].Rect.Max.Y <= gap {
		lo--
	}
	for hi+1 < len(lines) && lines[hi+1].Rect.Min.Y-lines[hi].Rect.Max.Y <= gap {
		hi++
	}
	var quads []geom.Quad
	var parts []string
	for i := lo; i <= hi; i++ {
		quads = append(quads, geom.QuadFromRect(lines[i].Rect))
		parts = append(parts, lines[i].Text)
	}
	v.setSelectionQuads(pageno, quads, strings.Join(parts, "\n"))
}

func lineAtPoint(lines []doc.LineBox, p geom.Point) (doc.LineBox, bool) {
	for _, line := range lines {
		if p.Y >= line.Rect.Min.Y && p.Y < line.Rect.Max.Y {
			return line, true
		}
	}
	return doc.LineBox{}, false
}

func (v *View) setSelectionQuads(pageno int, quads []geom.Quad, text string) {
	s := &v.sel
	s.startPage, s.endPage = pageno, pageno
	s.quads = v.pageQuadsToScene(pageno, quads)
	s.text = text
	v.scn.SetSelection(s.quads, v.cfg.Colors.Selection)
	if v.Events.ClipboardContentChanged != nil && text != "" {
		v.Events.ClipboardContentChanged(text)
	}
}

// commitRegion finishes a rubber band and reports the page-local rectangle.
func (v *View) commitRegion(pt geom.Point) {
	band := geom.R(v.sel.anchor.X, v.sel.anchor.Y, pt.X, pt.Y)
	v.scn.SetSelection(nil, "")
	pageno, a := v.sceneToPage(band.Min)
	_, b := v.sceneToPage(band.Max)
	if v.Events.RegionSelected != nil {
		v.Events.RegionSelected(pageno, geom.R(a.X, a.Y, b.X, b.Y))
	}
}

// commitAnnotRect turns the rubber band into a rectangle annotation.
func (v *View) commitAnnotRect(pt geom.Point) {
	band := geom.R(v.sel.anchor.X, v.sel.anchor.Y, pt.X, pt.Y)
	v.scn.SetSelection(nil, "")
	pageno, a := v.sceneToPage(band.Min)
	endPage, b := v.sceneToPage(band.Max)
	if endPage != pageno {
		// rectangle annotations stay on one page
		b = geom.Pt(v.model.PageSize(pageno).W, v.model.PageSize(pageno).H)
	}
	v.model.AddAnnotation(doc.Annotation{
		Pageno: pageno,
		Kind:   doc.AnnotRect,
		Rect:   geom.R(a.X, a.Y, b.X, b.Y),
		Color:  v.cfg.Colors.AnnotRect,
	})
	v.refreshPageOverlays(pageno)
}

// selectAnnotationAt picks the annotation under a click in annot-select mode.
func (v *View) selectAnnotationAt(pt geom.Point) {
	pageno, local := v.sceneToPage(pt)
	for _, a := range v.model.AnnotationsOnPage(pageno) {
		hit := a.Rect
		if len(a.Quads) > 0 {
			hit = a.Quads[0].Bounds()
			for _, q := range a.Quads[1:] {
				hit = hit.Union(q.Bounds())
			}
		}
		if hit.Contains(local) {
			if v.Events.AnnotationSelected != nil {
				v.Events.AnnotationSelected(a)
			}
			return
		}
	}
}

// HighlightSelection turns the current text selection into a highlight
// annotation in the given color.
func (v *View) HighlightSelection(color string) {
	s := &v.sel
	if len(s.quads) == 0 || s.startPage != s.endPage {
		return
	}
	pageQuads := make([]geom.Quad, 0, len(s.quads))
	for _, q := range s.quads {
		b := q.Bounds()
		pa, lo := v.sceneToPage(b.Min)
		if pa != s.startPage {
			continue
		}
		_, hi := v.sceneToPage(b.Max)
		pageQuads = append(pageQuads, geom.QuadFromRect(geom.R(lo.X, lo.Y, hi.X, hi.Y)))
	}
	if len(pageQuads) == 0 {
		return
	}
	v.model.AddAnnotation(doc.Annotation{
		Pageno:   s.startPage,
		Kind:     doc.AnnotHighlight,
		Quads:    pageQuads,
		Color:    color,
		Contents: s.text,
	})
	if v.Events.HighlightColorChanged != nil {
		v.Events.HighlightColorChanged(color)
	}
	v.refreshPageOverlays(s.startPage)
	v.clearSelection(false)
}
