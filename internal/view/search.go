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

	"lektra/internal/doc"
	"lektra/internal/geom"
)

// hitRef addresses one hit as (page, in-page index) for O(1) next/prev in
// page-major order.
type hitRef struct {
	pageno int
	idx    int
}

type searchState struct {
	term  string
	regex bool
	hits  map[int][]doc.SearchHit
	refs  []hitRef
	index int // into refs; -1 when no hit is current
	gen   uint64
}

// Search scans the document off the view goroutine, posting per-page batches
// back so the hit count grows while the scan runs. A new search supersedes a
// running one.
func (v *View) Search(term string, regex bool) {
	v.ClearSearch()
	if v.model == nil || term == "" {
		return
	}
	v.search.term = term
	v.search.regex = regex
	v.search.gen++
	gen := v.search.gen
	model := v.model
	numPages := model.NumPages()

	go func() {
		for pageno := 0; pageno < numPages; pageno++ {
			hits, err := model.SearchPage(pageno, term, regex)
			if err != nil {
				v.post(func() {
					if gen == v.search.gen {
						v.log.Warn("search failed", slog.String("term", term), slog.Any("err", err))
						v.postMessage("search failed: " + err.Error())
					}
				})
				return
			}
			if len(hits) == 0 {
				continue
			}
			pageno, hits := pageno, hits
			v.post(func() { v.addSearchHits(gen, pageno, hits) })
		}
		v.post(func() { v.finishSearch(gen) })
	}()
}

// addSearchHits folds one page's batch into the state. The first batch makes
// its first hit current and scrolls to it.
func (v *View) addSearchHits(gen uint64, pageno int, hits []doc.SearchHit) {
	if gen != v.search.gen {
		return
	}
	if v.search.hits == nil {
		v.search.hits = make(map[int][]doc.SearchHit)
	}
	v.search.hits[pageno] = hits
	for i := range hits {
		v.search.refs = append(v.search.refs, hitRef{pageno: pageno, idx: i})
	}
	first := v.search.index < 0
	if first {
		v.search.index = 0
	}
	v.refreshSearchOverlay()
	if v.Events.SearchCountChanged != nil {
		v.Events.SearchCountChanged(len(v.search.refs))
	}
	if first {
		if v.Events.SearchIndexChanged != nil {
			v.Events.SearchIndexChanged(0)
		}
		v.scrollToHit(v.search.refs[0])
	}
}

func (v *View) finishSearch(gen uint64) {
	if gen != v.search.gen {
		return
	}
	if len(v.search.refs) == 0 && v.Events.SearchCountChanged != nil {
		v.Events.SearchCountChanged(0)
	}
}

// ClearSearch drops hits and overlays; the current index resets to none.
func (v *View) ClearSearch() {
	had := len(v.search.refs) > 0
	gen := v.search.gen + 1
	v.search = searchState{index: -1, gen: gen}
	v.scn.ClearSearchHits()
	if had {
		if v.Events.SearchCountChanged != nil {
			v.Events.SearchCountChanged(0)
		}
		if v.Events.SearchIndexChanged != nil {
			v.Events.SearchIndexChanged(-1)
		}
	}
}

func (v *View) SearchTerm() string { return v.search.term }
func (v *View) SearchCount() int   { return len(v.search.refs) }
func (v *View) SearchIndex() int   { return v.search.index }

// NextHit advances in page-major order, wrapping past the end.
func (v *View) NextHit() {
	if len(v.search.refs) == 0 {
		return
	}
	v.GotoHit((v.search.index + 1) % len(v.search.refs))
}

// PrevHit steps back, wrapping before the start.
func (v *View) PrevHit() {
	n := len(v.search.refs)
	if n == 0 {
		return
	}
	v.GotoHit((v.search.index - 1 + n) % n)
}

// GotoHit makes hit i current, re-emphasizes the overlay, and scrolls to it.
func (v *View) GotoHit(i int) {
	n := len(v.search.refs)
	if n == 0 {
		return
	}
	i = ((i % n) + n) % n
	v.search.index = i
	v.refreshSearchOverlay()
	if v.Events.SearchIndexChanged != nil {
		v.Events.SearchIndexChanged(i)
	}
	v.scrollToHit(v.search.refs[i])
}

func (v *View) scrollToHit(ref hitRef) {
	hit := v.search.hits[ref.pageno][ref.idx]
	b := hit.Quad.Bounds()
	v.GotoLocation(doc.Location{Pageno: ref.pageno, X: b.Min.X, Y: b.Min.Y})
}

// refreshSearchOverlay rebuilds the two hit layers (all hits, current hit)
// as single scene items.
func (v *View) refreshSearchOverlay() {
	if len(v.search.refs) == 0 {
		v.scn.ClearSearchHits()
		return
	}
	quads := make([]geom.Quad, 0, len(v.search.refs))
	for _, ref := range v.search.refs {
		hit := v.search.hits[ref.pageno][ref.idx]
		quads = append(quads, v.pageQuadToScene(ref.pageno, hit.Quad))
	}
	var current geom.Quad
	if v.search.index >= 0 && v.search.index < len(v.search.refs) {
		ref := v.search.refs[v.search.index]
		hit := v.search.hits[ref.pageno][ref.idx]
		current = v.pageQuadToScene(ref.pageno, hit.Quad)
	}
	v.scn.SetSearchHits(quads, v.cfg.Colors.SearchMatch, current, v.cfg.Colors.SearchIndex)
}
