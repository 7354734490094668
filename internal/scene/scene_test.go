/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package scene

import (
	"image"
	"reflect"
	"testing"
	"time"

	"lektra/internal/geom"
)

func TestPagePixmapReplace(t *testing.T) {
	s := New()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	id1 := s.SetPagePixmap(0, img, geom.R(0, 0, 4, 4))
	id2 := s.SetPagePixmap(0, img, geom.R(0, 0, 8, 8))
	if id1 == id2 {
		t.Fatalf("replacement should mint a new id")
	}
	it, ok := s.PagePixmap(0)
	if !ok || it.Rect.W() != 8 {
		t.Fatalf("pixmap = %+v ok=%v", it, ok)
	}
	if got := s.Pages(); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("pages = %v", got)
	}
	if n := len(s.ItemsByZ()); n != 1 {
		t.Fatalf("stale pixmap kept: %d items", n)
	}
}

func TestRemovePageDropsTiedOverlays(t *testing.T) {
	s := New()
	s.SetPagePixmap(2, image.NewRGBA(image.Rect(0, 0, 1, 1)), geom.R(0, 0, 10, 10))
	s.Add(Item{Kind: KindRect, Z: ZAnnotation, Pageno: 2, Rect: geom.R(1, 1, 2, 2)})
	s.Add(Item{Kind: KindRect, Z: ZAnnotation, Pageno: 3, Rect: geom.R(1, 1, 2, 2)})

	s.RemovePage(2)
	items := s.ItemsByZ()
	if len(items) != 1 || items[0].Pageno != 3 {
		t.Fatalf("items after remove = %+v", items)
	}
	if _, ok := s.PagePixmap(2); ok {
		t.Fatalf("pixmap survived RemovePage")
	}
}

func TestZOrdering(t *testing.T) {
	s := New()
	s.Add(Item{Kind: KindQuads, Z: ZSelection, Pageno: -1})
	s.Add(Item{Kind: KindRect, Z: ZAnnotation, Pageno: 0})
	s.SetPagePixmap(0, image.NewRGBA(image.Rect(0, 0, 1, 1)), geom.R(0, 0, 5, 5))
	s.Add(Item{Kind: KindQuads, Z: ZSearchHits, Pageno: -1})

	var zs []Z
	for _, it := range s.ItemsByZ() {
		zs = append(zs, it.Z)
	}
	want := []Z{ZPage, ZAnnotation, ZSearchHits, ZSelection}
	if !reflect.DeepEqual(zs, want) {
		t.Fatalf("z order = %v, want %v", zs, want)
	}
}

func TestSelectionSingleton(t *testing.T) {
	s := New()
	q1 := geom.QuadFromRect(geom.R(0, 0, 10, 5))
	q2 := geom.QuadFromRect(geom.R(0, 10, 10, 15))
	s.SetSelection([]geom.Quad{q1}, "#3390FF55")
	s.SetSelection([]geom.Quad{q1, q2}, "#3390FF55")

	items := s.ItemsByZ()
	if len(items) != 1 {
		t.Fatalf("selection not singleton: %d items", len(items))
	}
	if len(items[0].Quads) != 2 || items[0].Z != ZSelection {
		t.Fatalf("selection item = %+v", items[0])
	}
	if b := items[0].Rect; b != geom.R(0, 0, 10, 15) {
		t.Fatalf("selection bounds = %+v", b)
	}

	s.SetSelection(nil, "")
	if n := len(s.ItemsByZ()); n != 0 {
		t.Fatalf("clear left %d items", n)
	}
}

func TestSearchHitsWithCurrent(t *testing.T) {
	s := New()
	q := geom.QuadFromRect(geom.R(0, 0, 4, 2))
	cur := geom.QuadFromRect(geom.R(10, 0, 14, 2))
	s.SetSearchHits([]geom.Quad{q, cur}, "#9EF7A066", cur, "#9EF7A0CC")
	if n := len(s.ItemsByZ()); n != 2 {
		t.Fatalf("expected hits + current, got %d items", n)
	}

	// rebuilding without a current hit drops the emphasis layer
	s.SetSearchHits([]geom.Quad{q}, "#9EF7A066", geom.Quad{}, "")
	if n := len(s.ItemsByZ()); n != 1 {
		t.Fatalf("expected plain hits only, got %d items", n)
	}

	s.ClearSearchHits()
	if n := len(s.ItemsByZ()); n != 0 {
		t.Fatalf("clear left %d items", n)
	}
}

func TestJumpMarkerFade(t *testing.T) {
	s := New()
	t0 := time.Now()
	s.ShowJumpMarker(geom.Pt(50, 60), "#FF0000FF", 2*time.Second, t0)

	if !s.TickJumpMarker(t0.Add(500 * time.Millisecond)) {
		t.Fatalf("marker should be alive")
	}
	items := s.ItemsByZ()
	if len(items) != 1 || items[0].Opacity != 1 {
		t.Fatalf("marker before fade window = %+v", items)
	}

	if !s.TickJumpMarker(t0.Add(1500 * time.Millisecond)) {
		t.Fatalf("marker should still be fading")
	}
	if op := s.ItemsByZ()[0].Opacity; op <= 0 || op >= 1 {
		t.Fatalf("fading opacity = %v", op)
	}

	if s.TickJumpMarker(t0.Add(3 * time.Second)) {
		t.Fatalf("marker should have expired")
	}
	if n := len(s.ItemsByZ()); n != 0 {
		t.Fatalf("expired marker kept: %d items", n)
	}
	if s.TickJumpMarker(t0.Add(4 * time.Second)) {
		t.Fatalf("tick after expiry should stay false")
	}
}

func TestLinkHintsRebuild(t *testing.T) {
	s := New()
	s.SetLinkHints(map[string]geom.Rect{
		"f": geom.R(0, 0, 10, 10),
		"a": geom.R(20, 0, 30, 10),
	}, "#EA3EE9FF", "#000000AA")
	items := s.ItemsByZ()
	if len(items) != 2 {
		t.Fatalf("hint items = %d", len(items))
	}
	// deterministic label order
	if items[0].Text != "a" || items[1].Text != "f" {
		t.Fatalf("hint order = %q, %q", items[0].Text, items[1].Text)
	}

	s.SetLinkHints(map[string]geom.Rect{"j": geom.R(0, 0, 5, 5)}, "#EA3EE9FF", "#000000AA")
	items = s.ItemsByZ()
	if len(items) != 1 || items[0].Text != "j" {
		t.Fatalf("rebuild hints = %+v", items)
	}

	s.ClearLinkHints()
	if n := len(s.ItemsByZ()); n != 0 {
		t.Fatalf("clear left %d items", n)
	}
}

func TestItemAtPicksTopmost(t *testing.T) {
	s := New()
	s.SetPagePixmap(0, image.NewRGBA(image.Rect(0, 0, 1, 1)), geom.R(0, 0, 100, 100))
	s.Add(Item{Kind: KindRect, Z: ZLink, Pageno: 0, Rect: geom.R(10, 10, 30, 20)})

	it, ok := s.ItemAt(geom.Pt(15, 15))
	if !ok || it.Z != ZLink {
		t.Fatalf("top item = %+v ok=%v", it, ok)
	}
	it, ok = s.ItemAt(geom.Pt(90, 90))
	if !ok || it.Z != ZPage {
		t.Fatalf("page item = %+v ok=%v", it, ok)
	}
	if _, ok := s.ItemAt(geom.Pt(500, 500)); ok {
		t.Fatalf("miss should report false")
	}
}

func TestVersionBumpsAndClear(t *testing.T) {
	s := New()
	v0 := s.Version()
	s.Add(Item{Kind: KindRect, Z: ZAnnotation, Pageno: 0})
	if s.Version() == v0 {
		t.Fatalf("version did not bump on add")
	}
	s.Clear()
	if n := len(s.ItemsByZ()); n != 0 {
		t.Fatalf("clear left %d items", n)
	}
	// singleton bookkeeping survives a clear
	s.SetSelection([]geom.Quad{geom.QuadFromRect(geom.R(0, 0, 1, 1))}, "#FFFFFF55")
	if n := len(s.ItemsByZ()); n != 1 {
		t.Fatalf("selection after clear = %d items", n)
	}
}
