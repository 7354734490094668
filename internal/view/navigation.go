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
	"time"

	"lektra/internal/doc"
	"lektra/internal/geom"
	"lektra/internal/layout"
)

// history is the back/forward location list. The cursor points at the entry
// GoBack would return to, or -1 when there is nothing behind.
//
// A with-history jump records the location left behind; GoBack swaps the
// cursor entry with the current location so GoForward can return.
type history struct {
	entries []doc.Location
	cursor  int
	limit   int
}

func (h *history) push(loc doc.Location) {
	h.entries = h.entries[:h.cursor+1]
	h.entries = append(h.entries, loc)
	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
	h.cursor = len(h.entries) - 1
}

func (h *history) canBack() bool    { return h.cursor >= 0 }
func (h *history) canForward() bool { return h.cursor+1 < len(h.entries) }

// currentLocation captures the viewing position for history entries.
func (v *View) currentLocation() doc.Location {
	loc := doc.Location{Pageno: v.currentPage}
	if v.model == nil {
		return loc
	}
	a0, _ := v.axisWindow()
	within := (a0 - v.lay.PageOffset(v.currentPage)) / v.pointScale()
	if within > 0 {
		loc.Y = within
	}
	return loc
}

// GotoPage jumps to the top of a page. Out-of-range pages clamp silently.
func (v *View) GotoPage(n int) {
	v.GotoLocation(doc.Location{Pageno: n})
}

// GotoLocation scrolls so the location sits at the viewport top. When the
// document is not ready yet the jump is deferred until it is.
func (v *View) GotoLocation(loc doc.Location) {
	if v.model == nil || v.state != StateReady {
		v.pendingJump = &loc
		return
	}
	numPages := v.model.NumPages()
	if numPages == 0 {
		return
	}
	loc.Pageno = geom.ClampInt(loc.Pageno, 0, numPages-1)

	axis := v.lay.PageOffset(loc.Pageno) + loc.Y*v.pointScale()
	if v.lay.Horizontal() {
		v.SetViewportOrigin(axis, v.viewport.Min.Y)
	} else {
		v.SetViewportOrigin(v.viewport.Min.X, axis)
	}
	// an explicit jump lands immediately, not on the scroll debounce
	v.currentPage = loc.Pageno
	v.pageTimer.Stop()
	v.emitPageChanged()

	if v.cfg.Markers.JumpMarker {
		at := v.pageToScene(loc.Pageno, geom.Pt(loc.X, loc.Y))
		v.scn.ShowJumpMarker(at, v.cfg.Colors.JumpMarker, jumpMarkerTTL, v.now())
	}
	v.updateVisible()
}

// GotoPageWithHistory jumps and records the location left behind.
func (v *View) GotoPageWithHistory(n int) {
	v.GotoLocationWithHistory(doc.Location{Pageno: n})
}

func (v *View) GotoLocationWithHistory(loc doc.Location) {
	prev := v.currentLocation()
	v.GotoLocation(loc)
	v.hist.push(prev)
}

// GoBack returns to the previous history location. The spot being left is
// kept so GoForward can undo the move.
func (v *View) GoBack() bool {
	if !v.hist.canBack() {
		return false
	}
	target := v.hist.entries[v.hist.cursor]
	v.hist.entries[v.hist.cursor] = v.currentLocation()
	v.hist.cursor--
	v.GotoLocation(target)
	return true
}

func (v *View) GoForward() bool {
	if !v.hist.canForward() {
		return false
	}
	v.hist.cursor++
	target := v.hist.entries[v.hist.cursor]
	v.hist.entries[v.hist.cursor] = v.currentLocation()
	v.GotoLocation(target)
	return true
}

func (v *View) CanGoBack() bool    { return v.hist.canBack() }
func (v *View) CanGoForward() bool { return v.hist.canForward() }

func (v *View) NextPage() { v.GotoPage(v.currentPage + 1) }
func (v *View) PrevPage() { v.GotoPage(v.currentPage - 1) }
func (v *View) FirstPage() { v.GotoPageWithHistory(0) }

func (v *View) LastPage() {
	if v.model != nil {
		v.GotoPageWithHistory(v.model.NumPages() - 1)
	}
}

// SetZoom sets an absolute zoom. Setting the current zoom again is a no-op;
// otherwise fit mode resets to custom and visible pages re-render.
func (v *View) SetZoom(z float64) {
	z = geom.Clamp(z, zoomMin, zoomMax)
	if z == v.zoom {
		return
	}
	v.applyZoom(z, FitCustom)
}

func (v *View) ZoomIn()  { v.SetZoom(v.zoom * v.zoomFactor()) }
func (v *View) ZoomOut() { v.SetZoom(v.zoom / v.zoomFactor()) }

func (v *View) zoomFactor() float64 {
	if f := v.cfg.Zoom.Factor; f > 1 {
		return f
	}
	return 1.25
}

// applyZoom rescales around the viewport origin so the reading position is
// preserved proportionally.
func (v *View) applyZoom(z float64, fit FitMode) {
	ratio := z / v.zoom
	v.zoom = z
	fitChanged := fit != v.fit
	v.fit = fit
	v.lay.SetZoom(z)
	v.viewport = geom.R(
		v.viewport.Min.X*ratio, v.viewport.Min.Y*ratio,
		v.viewport.Min.X*ratio+v.viewSize.W, v.viewport.Min.Y*ratio+v.viewSize.H)
	v.relayout(true)
	if v.Events.ZoomChanged != nil {
		v.Events.ZoomChanged(z)
	}
	if fitChanged && v.Events.FitModeChanged != nil {
		v.Events.FitModeChanged(fit)
	}
}

// SetFitMode selects a fit policy and applies it to the current page.
func (v *View) SetFitMode(m FitMode) {
	if m == v.fit {
		return
	}
	if m == FitCustom {
		v.fit = m
		if v.Events.FitModeChanged != nil {
			v.Events.FitModeChanged(m)
		}
		return
	}
	v.fit = m
	v.applyFit()
	if v.Events.FitModeChanged != nil {
		v.Events.FitModeChanged(m)
	}
}

// applyFit recomputes zoom from the viewport and the current page extent.
func (v *View) applyFit() {
	if v.fit == FitCustom || v.model == nil || v.viewSize.W <= 0 {
		return
	}
	base := v.model.PageSize(geom.ClampInt(v.currentPage, 0, v.model.NumPages()-1))
	base = base.Scale(v.cfg.Rendering.DPI / 72.0)
	if v.rotation == 90 || v.rotation == 270 {
		base = base.Swap()
	}
	if base.W <= 0 || base.H <= 0 {
		return
	}
	var z float64
	switch v.fit {
	case FitWidth:
		z = v.viewSize.W / base.W
	case FitHeight:
		z = v.viewSize.H / base.H
	case FitWindow:
		zw, zh := v.viewSize.W/base.W, v.viewSize.H/base.H
		z = zw
		if zh < zw {
			z = zh
		}
	}
	z = geom.Clamp(z, zoomMin, zoomMax)
	if z == v.zoom {
		return
	}
	page := v.currentPage
	v.applyZoom(z, v.fit)
	v.GotoPage(page)
}

// SetRotation rotates the whole view in 90° steps and re-renders.
func (v *View) SetRotation(degrees int) {
	norm := ((degrees/90)%4 + 4) % 4 * 90
	if norm == v.rotation {
		return
	}
	v.rotation = norm
	v.lay.SetRotation(norm)
	page := v.currentPage
	v.relayout(true)
	if v.fit != FitCustom {
		v.applyFit()
	}
	v.GotoPage(page)
}

func (v *View) RotateClockwise()        { v.SetRotation(v.rotation + 90) }
func (v *View) RotateCounterClockwise() { v.SetRotation(v.rotation - 90) }

// SetLayoutMode switches page arrangement. Setting the current mode again is
// a no-op.
func (v *View) SetLayoutMode(m layout.Mode) {
	if m == v.lay.Mode() {
		return
	}
	page := v.currentPage
	v.lay.SetMode(m)
	v.relayout(true)
	v.GotoPage(page)
}

// TickOverlays advances time-based overlay state (jump marker fade). The UI
// calls this from its frame driver; it reports whether another tick is
// needed.
func (v *View) TickOverlays(now time.Time) bool {
	return v.scn.TickJumpMarker(now)
}
