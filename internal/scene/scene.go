/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package scene keeps the renderer-agnostic item store behind the document
// view: page pixmaps plus the overlay layers stacked above them. The UI layer
// walks ItemsByZ each frame; the view mutates the store from its own
// goroutine only, so readers take a snapshot under the lock.
package scene

import (
	"image"
	"sort"
	"sync"
	"time"

	"lektra/internal/geom"
)

// Z is the stacking order of an item. Higher draws later.
type Z int

const (
	ZPage       Z = 0
	ZAnnotation Z = 5
	ZLink       Z = 10
	ZJumpMarker Z = 15
	ZSearchHits Z = 20
	ZLinkHints  Z = 25
	ZSelection  Z = 30
)

// Kind tells the renderer how to draw an item.
type Kind int

const (
	KindPixmap Kind = iota
	KindRect
	KindQuads
	KindLabel
	KindMarker
)

// Item is one drawable entry. Rect is in scene coordinates; Quads, when
// present, carry the exact outline (rotated page regions are not axis
// aligned). Colors are #RRGGBBAA strings resolved by the renderer.
type Item struct {
	ID      int64
	Kind    Kind
	Z       Z
	Pageno  int // -1 when not tied to a page
	Rect    geom.Rect
	Quads   []geom.Quad
	Fill    string
	Stroke  string
	Text    string
	Image   image.Image
	Opacity float64 // 0 means fully opaque (unset)

	seq int64 // insertion order within a Z level
}

// Scene is the item store. Singleton layers (selection, search hits, jump
// marker, hint set) are rebuilt wholesale on change rather than edited in
// place.
type Scene struct {
	mu      sync.RWMutex
	items   map[int64]Item
	nextID  int64
	version uint64

	pagePixmaps map[int]int64 // pageno -> item id
	selectionID int64
	searchID    int64
	currentHit  int64
	markerID    int64
	markerOff   time.Time
	hintIDs     []int64
}

func New() *Scene {
	return &Scene{
		items:       make(map[int64]Item),
		pagePixmaps: make(map[int]int64),
	}
}

// Version increments on every mutation; the UI uses it to skip redraws.
func (s *Scene) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Scene) addLocked(it Item) int64 {
	s.nextID++
	it.ID = s.nextID
	it.seq = s.nextID
	s.items[it.ID] = it
	s.version++
	return it.ID
}

func (s *Scene) removeLocked(id int64) {
	if id == 0 {
		return
	}
	if _, ok := s.items[id]; ok {
		delete(s.items, id)
		s.version++
	}
}

// Add inserts a free-form item and returns its id.
func (s *Scene) Add(it Item) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(it)
}

func (s *Scene) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

// SetPagePixmap places or replaces the rendered image of a page.
func (s *Scene) SetPagePixmap(pageno int, img image.Image, rect geom.Rect) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(s.pagePixmaps[pageno])
	id := s.addLocked(Item{Kind: KindPixmap, Z: ZPage, Pageno: pageno, Rect: rect, Image: img})
	s.pagePixmaps[pageno] = id
	return id
}

// PagePixmap returns the pixmap item of a page, if present.
func (s *Scene) PagePixmap(pageno int) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[s.pagePixmaps[pageno]]
	return it, ok
}

// RemovePage drops the page pixmap and every overlay tied to the page.
func (s *Scene) RemovePage(pageno int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(s.pagePixmaps[pageno])
	delete(s.pagePixmaps, pageno)
	for id, it := range s.items {
		if it.Pageno == pageno {
			s.removeLocked(id)
		}
	}
}

// Pages lists the pages that currently have a pixmap in the scene.
func (s *Scene) Pages() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := make([]int, 0, len(s.pagePixmaps))
	for p := range s.pagePixmaps {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// SetSelection rebuilds the single selection overlay from the given quads.
// Empty quads clear it.
func (s *Scene) SetSelection(quads []geom.Quad, fill string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(s.selectionID)
	s.selectionID = 0
	if len(quads) == 0 {
		return
	}
	s.selectionID = s.addLocked(Item{Kind: KindQuads, Z: ZSelection, Pageno: -1, Quads: quads, Fill: fill, Rect: boundsOf(quads)})
}

// SetSearchHits rebuilds the hit overlay plus the emphasized current hit.
// A zero current quad leaves only the plain hits.
func (s *Scene) SetSearchHits(quads []geom.Quad, fill string, current geom.Quad, currentFill string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(s.searchID)
	s.removeLocked(s.currentHit)
	s.searchID, s.currentHit = 0, 0
	if len(quads) > 0 {
		s.searchID = s.addLocked(Item{Kind: KindQuads, Z: ZSearchHits, Pageno: -1, Quads: quads, Fill: fill, Rect: boundsOf(quads)})
	}
	if current.Bounds().Empty() {
		return
	}
	s.currentHit = s.addLocked(Item{Kind: KindQuads, Z: ZSearchHits, Pageno: -1, Quads: []geom.Quad{current}, Fill: currentFill, Rect: current.Bounds()})
}

// ClearSearchHits removes both hit layers.
func (s *Scene) ClearSearchHits() {
	s.SetSearchHits(nil, "", geom.Quad{}, "")
}

// ShowJumpMarker places the marker at a scene point with a fade deadline.
// Any previous marker is replaced.
func (s *Scene) ShowJumpMarker(at geom.Point, stroke string, ttl time.Duration, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(s.markerID)
	s.markerID = s.addLocked(Item{Kind: KindMarker, Z: ZJumpMarker, Pageno: -1, Rect: geom.R(at.X, at.Y, at.X, at.Y), Stroke: stroke, Opacity: 1})
	s.markerOff = now.Add(ttl)
}

// TickJumpMarker updates the marker opacity toward the deadline. It reports
// whether the marker is still alive; past the deadline it is removed.
func (s *Scene) TickJumpMarker(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markerID == 0 {
		return false
	}
	remaining := s.markerOff.Sub(now)
	if remaining <= 0 {
		s.removeLocked(s.markerID)
		s.markerID = 0
		return false
	}
	it := s.items[s.markerID]
	// linear fade over the final second
	if remaining < time.Second {
		it.Opacity = float64(remaining) / float64(time.Second)
	} else {
		it.Opacity = 1
	}
	s.items[s.markerID] = it
	s.version++
	return true
}

// SetLinkHints rebuilds the keyboard hint labels. Keys are the hint strings
// typed to follow the link.
func (s *Scene) SetLinkHints(hints map[string]geom.Rect, fg, bg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.hintIDs {
		s.removeLocked(id)
	}
	s.hintIDs = s.hintIDs[:0]
	labels := make([]string, 0, len(hints))
	for label := range hints {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		id := s.addLocked(Item{Kind: KindLabel, Z: ZLinkHints, Pageno: -1, Rect: hints[label], Text: label, Fill: bg, Stroke: fg})
		s.hintIDs = append(s.hintIDs, id)
	}
}

func (s *Scene) ClearLinkHints() {
	s.SetLinkHints(nil, "", "")
}

// ItemsByZ snapshots the scene sorted by Z, then insertion order.
func (s *Scene) ItemsByZ() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z < out[j].Z
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// ItemAt returns the topmost item whose rect contains the point.
func (s *Scene) ItemAt(pt geom.Point) (Item, bool) {
	items := s.ItemsByZ()
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Rect.Contains(pt) {
			return items[i], true
		}
	}
	return Item{}, false
}

// Clear drops everything, including singleton layers.
func (s *Scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int64]Item)
	s.pagePixmaps = make(map[int]int64)
	s.selectionID, s.searchID, s.currentHit, s.markerID = 0, 0, 0, 0
	s.hintIDs = nil
	s.version++
}

func boundsOf(quads []geom.Quad) geom.Rect {
	if len(quads) == 0 {
		return geom.Rect{}
	}
	r := quads[0].Bounds()
	for _, q := range quads[1:] {
		r = r.Union(q.Bounds())
	}
	return r
}
