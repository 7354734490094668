/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package layout

import (
	"math"
	"reflect"
	"testing"

	"lektra/internal/geom"
)

func uniformSizes(n int, w, h float64) []geom.Size {
	sizes := make([]geom.Size, n)
	for i := range sizes {
		sizes[i] = geom.Sz(w, h)
	}
	return sizes
}

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestTopToBottomOffsets(t *testing.T) {
	e := New()
	e.SetMode(TopToBottom)
	e.SetSpacing(10)
	e.SetPageSizes(uniformSizes(10, 600, 800))

	for i := 0; i < 10; i++ {
		want := float64(i) * 810
		if got := e.PageOffset(i); !almost(got, want) {
			t.Fatalf("offset[%d] = %v, want %v", i, got, want)
		}
	}
	if got := e.TotalExtent(); !almost(got, 8100) {
		t.Fatalf("total extent = %v, want 8100", got)
	}
	if got := e.PageAtAxisCoord(1700); got != 2 {
		t.Fatalf("page at 1700 = %d, want 2", got)
	}
	if got := e.PageAtAxisCoord(-50); got != 0 {
		t.Fatalf("page at -50 = %d, want 0", got)
	}
	if got := e.PageAtAxisCoord(99999); got != 9 {
		t.Fatalf("page past end = %d, want 9", got)
	}
	if got := e.MaxCrossExtent(); !almost(got, 600) {
		t.Fatalf("max cross = %v, want 600", got)
	}
}

func TestZoomScalesOffsetsAndSpacing(t *testing.T) {
	e := New()
	e.SetMode(TopToBottom)
	e.SetSpacing(10)
	e.SetPageSizes(uniformSizes(3, 600, 800))
	e.SetZoom(2)

	if got := e.PageOffset(1); !almost(got, 1620) {
		t.Fatalf("zoomed offset[1] = %v, want 1620", got)
	}
	if sz := e.PageSceneSize(0); !almost(sz.W, 1200) || !almost(sz.H, 1600) {
		t.Fatalf("zoomed page size = %+v", sz)
	}
}

func TestRotationSwapsExtents(t *testing.T) {
	e := New()
	e.SetMode(TopToBottom)
	e.SetPageSizes(uniformSizes(2, 600, 800))
	e.SetRotation(90)

	if sz := e.PageSceneSize(0); !almost(sz.W, 800) || !almost(sz.H, 600) {
		t.Fatalf("rotated page size = %+v", sz)
	}
	if got := e.PageOffset(1); !almost(got, 600) {
		t.Fatalf("rotated offset[1] = %v, want 600", got)
	}
	// 180 keeps extents, 270 swaps again, negative normalizes
	e.SetRotation(180)
	if sz := e.PageSceneSize(0); !almost(sz.W, 600) {
		t.Fatalf("180 size = %+v", sz)
	}
	e.SetRotation(-90)
	if e.Rotation() != 270 {
		t.Fatalf("normalized rotation = %d, want 270", e.Rotation())
	}
	if sz := e.PageSceneSize(0); !almost(sz.W, 800) {
		t.Fatalf("-90 size = %+v", sz)
	}
}

func TestLeftToRightAxis(t *testing.T) {
	e := New()
	e.SetMode(LeftToRight)
	e.SetSpacing(10)
	e.SetPageSizes(uniformSizes(4, 600, 800))

	if !e.Horizontal() {
		t.Fatalf("left_to_right should scroll on X")
	}
	if got := e.PageOffset(1); !almost(got, 610) {
		t.Fatalf("offset[1] = %v, want 610", got)
	}
	if got := e.MaxCrossExtent(); !almost(got, 800) {
		t.Fatalf("max cross = %v, want 800", got)
	}
	if got := e.PageAtAxisCoord(1300); got != 2 {
		t.Fatalf("page at 1300 = %d, want 2", got)
	}
}

func TestBookRows(t *testing.T) {
	e := New()
	e.SetMode(Book)
	e.SetSpacing(10)
	e.SetPageSizes(uniformSizes(5, 600, 800))

	// cover alone, then (1,2) and (3,4) as spreads
	if got := e.PageOffset(0); !almost(got, 0) {
		t.Fatalf("cover offset = %v", got)
	}
	if a, b := e.PageOffset(1), e.PageOffset(2); !almost(a, 810) || !almost(a, b) {
		t.Fatalf("spread offsets = %v, %v", a, b)
	}
	if a, b := e.PageOffset(3), e.PageOffset(4); !almost(a, 1620) || !almost(a, b) {
		t.Fatalf("second spread offsets = %v, %v", a, b)
	}
	if got := e.TotalExtent(); !almost(got, 2430) {
		t.Fatalf("total = %v, want 2430", got)
	}
	if got := e.MaxCrossExtent(); !almost(got, 1200) {
		t.Fatalf("max cross = %v, want 1200", got)
	}

	if got := e.RowPages(0); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("cover row = %v", got)
	}
	if got := e.RowPages(2); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("row of page 2 = %v", got)
	}
	if got := e.RowPages(4); !reflect.DeepEqual(got, []int{3, 4}) {
		t.Fatalf("row of page 4 = %v", got)
	}

	// both pages of a spread resolve to the row start
	if got := e.PageAtAxisCoord(900); got != 1 {
		t.Fatalf("page at 900 = %d, want 1", got)
	}
	if got := e.PageStride(1); !almost(got, 810) {
		t.Fatalf("spread stride = %v", got)
	}
	if got := e.PageStride(0); !almost(got, 810) {
		t.Fatalf("cover stride = %v", got)
	}
}

func TestBookOddTailPage(t *testing.T) {
	e := New()
	e.SetMode(Book)
	e.SetSpacing(10)
	// even page count: cover, spread (1,2), then page 3 sits alone
	e.SetPageSizes(uniformSizes(4, 600, 800))

	if got := e.RowPages(3); !reflect.DeepEqual(got, []int{3}) {
		t.Fatalf("tail row = %v", got)
	}
	if got := e.PageOffset(3); !almost(got, 1620) {
		t.Fatalf("tail offset = %v", got)
	}
}

func TestPageXOffsetCentersAndPairs(t *testing.T) {
	e := New()
	e.SetMode(TopToBottom)
	e.SetPageSizes(uniformSizes(2, 600, 800))
	if got := e.PageXOffset(0, 1000); !almost(got, 200) {
		t.Fatalf("centered x = %v, want 200", got)
	}
	if got := e.PageXOffset(0, 100); !almost(got, 0) {
		t.Fatalf("narrow scene x = %v, want 0", got)
	}

	e.SetMode(Book)
	e.SetPageSizes(uniformSizes(3, 600, 800))
	// left page ends at the spine, right page starts there
	if got := e.PageXOffset(1, 1400); !almost(got, 100) {
		t.Fatalf("left page x = %v, want 100", got)
	}
	if got := e.PageXOffset(2, 1400); !almost(got, 700) {
		t.Fatalf("right page x = %v, want 700", got)
	}
	// cover stays centered across the full row
	if got := e.PageXOffset(0, 1400); !almost(got, 400) {
		t.Fatalf("cover x = %v, want 400", got)
	}
}

func TestPagesInInterval(t *testing.T) {
	e := New()
	e.SetMode(TopToBottom)
	e.SetSpacing(10)
	e.SetPageSizes(uniformSizes(10, 600, 800))

	if got := e.PagesInInterval(0, 900); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("interval [0,900) = %v", got)
	}
	if got := e.PagesInInterval(1700, 2500); !reflect.DeepEqual(got, []int{2, 3}) {
		t.Fatalf("interval [1700,2500) = %v", got)
	}
	// a viewport inside the spacing gap still resolves to neighbors only
	if got := e.PagesInInterval(805, 808); got != nil {
		t.Fatalf("gap interval = %v", got)
	}
	if got := e.PagesInInterval(500, 100); got != nil {
		t.Fatalf("inverted interval = %v", got)
	}

	e.SetMode(Book)
	e.Recompute()
	if got := e.PagesInInterval(0, 900); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Fatalf("book interval = %v", got)
	}
}

func TestEmptyEngine(t *testing.T) {
	e := New()
	if e.TotalExtent() != 0 || e.PageOffset(3) != 0 || e.PageAtAxisCoord(100) != 0 {
		t.Fatalf("empty engine should be inert")
	}
	if e.PagesInInterval(0, 100) != nil {
		t.Fatalf("empty engine interval should be nil")
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"single":        Single,
		"left_to_right": LeftToRight,
		"top_to_bottom": TopToBottom,
		"book":          Book,
		"bogus":         TopToBottom,
	}
	for in, want := range cases {
		if got := ParseMode(in); got != want {
			t.Fatalf("ParseMode(%q) = %v, want %v", in, got, want)
		}
	}
	if Book.String() != "book" || Mode(99).String() != "unknown" {
		t.Fatalf("mode strings wrong")
	}
}
