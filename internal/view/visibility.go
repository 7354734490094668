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
	"lektra/internal/doc"
	"lektra/internal/geom"
	"lektra/internal/layout"
	"lektra/internal/render"
	"lektra/internal/scene"
)

// pageEntry tracks the scene presence of one page. An entry exists exactly
// for the pages of the current preload set; eviction removes the entry and
// all its scene items.
type pageEntry struct {
	pageno      int
	rect        geom.Rect
	placeholder bool
	linkIDs     []int64
	annotIDs    []int64
}

// pageRect places a page inside the scene from the layout's axis offset and
// cross-axis centering.
func (v *View) pageRect(n int) geom.Rect {
	axis := v.lay.PageOffset(n)
	sz := v.lay.PageSceneSize(n)
	cross := v.lay.PageXOffset(n, v.sceneCross())
	if v.lay.Horizontal() {
		return geom.R(axis, cross, axis+sz.W, cross+sz.H)
	}
	return geom.R(cross, axis, cross+sz.W, axis+sz.H)
}

// preloadSet is the visible pages expanded by preload_pages on each side.
func (v *View) preloadSet() map[int]struct{} {
	set := make(map[int]struct{})
	numPages := v.lay.NumPages()
	if numPages == 0 {
		return set
	}
	var visible []int
	if v.lay.Mode() == layout.Single {
		visible = []int{v.currentPage}
	} else {
		a0, a1 := v.axisWindow()
		visible = v.lay.PagesInInterval(a0, a1)
	}
	if len(visible) == 0 {
		visible = []int{geom.ClampInt(v.currentPage, 0, numPages-1)}
	}
	first, last := visible[0], visible[len(visible)-1]
	pad := v.cfg.Behavior.PreloadPages
	first = geom.ClampInt(first-pad, 0, numPages-1)
	last = geom.ClampInt(last+pad, 0, numPages-1)
	for p := first; p <= last; p++ {
		set[p] = struct{}{}
	}
	return set
}

// updateVisible reconciles the scene with the preload set: placeholders and
// renders for entering pages, eviction and queue pruning for leaving ones.
func (v *View) updateVisible() {
	if v.model == nil || (v.state != StateReady && v.state != StateReloading) {
		return
	}
	set := v.preloadSet()

	for n := range v.entries {
		if _, keep := set[n]; !keep {
			v.scn.RemovePage(n)
			delete(v.entries, n)
		}
	}
	v.pipe.PruneQueue(func(pageno int) bool {
		_, keep := set[pageno]
		return keep
	})

	for n := range set {
		entry := v.entries[n]
		if entry == nil {
			entry = &pageEntry{pageno: n, rect: v.pageRect(n), placeholder: true}
			v.entries[n] = entry
			v.scn.SetPagePixmap(n, nil, entry.rect)
			v.buildPageOverlays(entry)
		}
		if entry.placeholder && !v.pipe.Pending(n) {
			v.pipe.Enqueue(n, v.renderOpts())
		}
	}

	v.updateCurrentPage()
}

// updateCurrentPage tracks the page under the viewport centre. The change
// signal is debounced so rapid scrolling does not thrash listeners.
func (v *View) updateCurrentPage() {
	if v.lay.Mode() == layout.Single {
		return
	}
	a0, a1 := v.axisWindow()
	page := v.lay.PageAtAxisCoord((a0 + a1) / 2)
	if page == v.currentPage {
		return
	}
	v.currentPage = page
	v.pageTimer.Trigger()
	if v.mode == ModeVisualLine {
		v.snapVisualLineToPage(page)
	}
}

// onRenderResult installs a finished render. The pipeline has already
// filtered stale generations; an evicted page simply drops the image.
func (v *View) onRenderResult(res render.Result) {
	entry := v.entries[res.Pageno]
	if entry == nil {
		return
	}
	if res.Err != nil {
		// placeholder stays; rendering is best-effort
		entry.placeholder = true
		return
	}
	v.scn.SetPagePixmap(res.Pageno, res.Image, entry.rect)
	entry.placeholder = false
}

// buildPageOverlays creates the link and annotation items of a page.
func (v *View) buildPageOverlays(entry *pageEntry) {
	for _, id := range entry.linkIDs {
		v.scn.Remove(id)
	}
	for _, id := range entry.annotIDs {
		v.scn.Remove(id)
	}
	entry.linkIDs, entry.annotIDs = nil, nil

	if v.cfg.Links.Boundary {
		for _, link := range v.pageLinks(entry.pageno) {
			r := v.pageRectToScene(entry.pageno, link.Rect)
			id := v.scn.Add(scene.Item{Kind: scene.KindRect, Z: scene.ZLink, Pageno: entry.pageno, Rect: r, Stroke: v.cfg.Colors.AnnotRect})
			entry.linkIDs = append(entry.linkIDs, id)
		}
	}
	for _, a := range v.model.AnnotationsOnPage(entry.pageno) {
		it := scene.Item{Kind: scene.KindRect, Z: scene.ZAnnotation, Pageno: entry.pageno, Fill: a.Color}
		if len(a.Quads) > 0 {
			it.Kind = scene.KindQuads
			it.Quads = v.pageQuadsToScene(entry.pageno, a.Quads)
			it.Rect = boundsOfQuads(it.Quads)
		} else {
			it.Rect = v.pageRectToScene(entry.pageno, a.Rect)
		}
		entry.annotIDs = append(entry.annotIDs, v.scn.Add(it))
	}
}

// refreshPageOverlays rebuilds overlays for a page, e.g. after an
// annotation edit.
func (v *View) refreshPageOverlays(pageno int) {
	if entry := v.entries[pageno]; entry != nil {
		v.buildPageOverlays(entry)
	}
}

// pageToScene maps a page-local point (in points) to scene coordinates,
// honouring the view rotation.
func (v *View) pageToScene(pageno int, p geom.Point) geom.Point {
	r := v.pageRect(pageno)
	if entry := v.entries[pageno]; entry != nil {
		r = entry.rect
	}
	s := v.pointScale()
	sz := v.model.PageSize(pageno)
	switch v.rotation {
	case 90:
		return geom.Pt(r.Min.X+(sz.H-p.Y)*s, r.Min.Y+p.X*s)
	case 180:
		return geom.Pt(r.Min.X+(sz.W-p.X)*s, r.Min.Y+(sz.H-p.Y)*s)
	case 270:
		return geom.Pt(r.Min.X+p.Y*s, r.Min.Y+(sz.W-p.X)*s)
	default:
		return geom.Pt(r.Min.X+p.X*s, r.Min.Y+p.Y*s)
	}
}

// sceneToPage is the inverse of pageToScene; the point is clamped into the
// page.
func (v *View) sceneToPage(pt geom.Point) (int, geom.Point) {
	axis := pt.Y
	if v.lay.Horizontal() {
		axis = pt.X
	}
	pageno := v.lay.PageAtAxisCoord(axis)
	if v.lay.Mode() == layout.Book && pageno > 0 {
		// a spread shares the axis slot; the cross coordinate picks the side
		row := v.lay.RowPages(pageno)
		if len(row) == 2 && pt.X >= v.sceneCross()/2 {
			pageno = row[1]
		} else if len(row) == 2 {
			pageno = row[0]
		}
	}
	r := v.pageRect(pageno)
	if entry := v.entries[pageno]; entry != nil {
		r = entry.rect
	}
	s := v.pointScale()
	sz := v.model.PageSize(pageno)
	dx, dy := (pt.X-r.Min.X)/s, (pt.Y-r.Min.Y)/s
	var local geom.Point
	switch v.rotation {
	case 90:
		local = geom.Pt(dy, sz.H-dx)
	case 180:
		local = geom.Pt(sz.W-dx, sz.H-dy)
	case 270:
		local = geom.Pt(sz.W-dy, dx)
	default:
		local = geom.Pt(dx, dy)
	}
	local.X = geom.Clamp(local.X, 0, sz.W)
	local.Y = geom.Clamp(local.Y, 0, sz.H)
	return pageno, local
}

// pageRectToScene maps a page-local rectangle; under rotation the result is
// the bounding box of the mapped corners.
func (v *View) pageRectToScene(pageno int, r geom.Rect) geom.Rect {
	a := v.pageToScene(pageno, r.Min)
	b := v.pageToScene(pageno, r.Max)
	return geom.R(a.X, a.Y, b.X, b.Y)
}

func (v *View) pageQuadToScene(pageno int, q geom.Quad) geom.Quad {
	return geom.Quad{
		UL: v.pageToScene(pageno, q.UL),
		UR: v.pageToScene(pageno, q.UR),
		LL: v.pageToScene(pageno, q.LL),
		LR: v.pageToScene(pageno, q.LR),
	}
}

func (v *View) pageQuadsToScene(pageno int, quads []geom.Quad) []geom.Quad {
	out := make([]geom.Quad, len(quads))
	for i, q := range quads {
		out[i] = v.pageQuadToScene(pageno, q)
	}
	return out
}

func boundsOfQuads(quads []geom.Quad) geom.Rect {
	if len(quads) == 0 {
		return geom.Rect{}
	}
	r := quads[0].Bounds()
	for _, q := range quads[1:] {
		r = r.Union(q.Bounds())
	}
	return r
}

// pageLinks is the document links of a page plus URIs detected in its text.
// Detected link rectangles come from proportional column widths, like
// selection spans.
func (v *View) pageLinks(pageno int) []doc.Link {
	links := v.model.LinksOnPage(pageno)
	if v.urlRx == nil {
		return links
	}
	out := append([]doc.Link(nil), links...)
	for _, line := range v.model.TextLines(pageno) {
		n := len([]rune(line.Text))
		if n == 0 || line.Rect.W() <= 0 {
			continue
		}
		cw := line.Rect.W() / float64(n)
		for _, m := range v.urlRx.FindAllStringIndex(line.Text, -1) {
			lo := len([]rune(line.Text[:m[0]]))
			hi := len([]rune(line.Text[:m[1]]))
			out = append(out, doc.Link{
				Kind: doc.LinkURI,
				Rect: geom.R(
					line.Rect.Min.X+float64(lo)*cw, line.Rect.Min.Y,
					line.Rect.Min.X+float64(hi)*cw, line.Rect.Max.Y),
				URI: line.Text[m[0]:m[1]],
			})
		}
	}
	return out
}

// linkAt finds a link under a scene point.
func (v *View) linkAt(pt geom.Point) (doc.Link, bool) {
	if v.model == nil {
		return doc.Link{}, false
	}
	pageno, local := v.sceneToPage(pt)
	for _, link := range v.pageLinks(pageno) {
		if link.Rect.Contains(local) {
			return link, true
		}
	}
	return doc.Link{}, false
}
