/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package layout maps per-page sizes, layout mode, rotation, zoom, and
// spacing onto a monotonic sequence of page offsets along the scroll axis.
// The engine is pure apart from the cached offset array; Recompute rebuilds
// it after any input change.
package layout

import (
	"sort"

	"lektra/internal/geom"
)

// Mode selects how pages are arranged in the scene.
type Mode int

const (
	Single Mode = iota
	LeftToRight
	TopToBottom
	Book
)

func (m Mode) String() string {
	switch m {
	case Single:
		return "single"
	case LeftToRight:
		return "left_to_right"
	case TopToBottom:
		return "top_to_bottom"
	case Book:
		return "book"
	}
	return "unknown"
}

// ParseMode maps a config string to a Mode; unknown input yields TopToBottom.
func ParseMode(s string) Mode {
	switch s {
	case "single":
		return Single
	case "left_to_right":
		return LeftToRight
	case "book":
		return Book
	default:
		return TopToBottom
	}
}

// Engine holds the layout inputs and the cached offset array.
//
// Page sizes are in base scene units (points already scaled by DPI/72); zoom
// multiplies them uniformly, spacing is in base units and scales with zoom,
// rotation swaps width and height for odd multiples of 90°.
type Engine struct {
	mode     Mode
	sizes    []geom.Size
	zoom     float64
	rotation int // degrees, multiple of 90
	spacing  float64

	offsets  []float64 // len = numPages+1; offsets[n] = total extent
	maxCross float64
}

func New() *Engine {
	return &Engine{zoom: 1}
}

func (e *Engine) SetPageSizes(sizes []geom.Size) {
	e.sizes = sizes
	e.Recompute()
}

func (e *Engine) SetMode(m Mode) {
	e.mode = m
	e.Recompute()
}

func (e *Engine) Mode() Mode { return e.mode }

func (e *Engine) SetZoom(z float64) {
	if z <= 0 {
		z = 1
	}
	e.zoom = z
	e.Recompute()
}

func (e *Engine) Zoom() float64 { return e.zoom }

// SetRotation normalizes to [0,360) in 90° steps.
func (e *Engine) SetRotation(degrees int) {
	e.rotation = ((degrees/90)%4 + 4) % 4 * 90
	e.Recompute()
}

func (e *Engine) Rotation() int { return e.rotation }

func (e *Engine) SetSpacing(s float64) {
	if s < 0 {
		s = 0
	}
	e.spacing = s
	e.Recompute()
}

func (e *Engine) Spacing() float64 { return e.spacing }

func (e *Engine) NumPages() int { return len(e.sizes) }

// Horizontal reports whether the scroll axis is X.
func (e *Engine) Horizontal() bool { return e.mode == LeftToRight }

// PageSceneSize returns the zoomed, rotation-adjusted extent of a page.
func (e *Engine) PageSceneSize(n int) geom.Size {
	if n < 0 || n >= len(e.sizes) {
		return geom.Size{}
	}
	sz := e.sizes[n].Scale(e.zoom)
	if e.rotation == 90 || e.rotation == 270 {
		sz = sz.Swap()
	}
	return sz
}

// Recompute rebuilds the offset prefix array and the cross-axis maximum.
// O(numPages).
func (e *Engine) Recompute() {
	n := len(e.sizes)
	e.offsets = make([]float64, n+1)
	e.maxCross = 0
	if n == 0 {
		return
	}

	spacing := e.spacing * e.zoom
	cursor := 0.0

	if e.mode == Book {
		for i := 0; i < n; {
			if i == 0 { // cover row
				sz := e.PageSceneSize(i)
				e.offsets[i] = cursor
				if w := sz.W * 2; w > e.maxCross {
					e.maxCross = w
				}
				cursor += sz.H + spacing
				i++
				continue
			}
			// spread rows share one offset
			a := e.PageSceneSize(i)
			var b geom.Size
			if i+1 < n {
				b = e.PageSceneSize(i + 1)
			}
			e.offsets[i] = cursor
			if i+1 < n {
				e.offsets[i+1] = cursor
			}
			if w := a.W + b.W; w > e.maxCross {
				e.maxCross = w
			}
			h := a.H
			if b.H > h {
				h = b.H
			}
			cursor += h + spacing
			i += 2
		}
	} else {
		horizontal := e.mode == LeftToRight
		for i := 0; i < n; i++ {
			e.offsets[i] = cursor
			sz := e.PageSceneSize(i)
			if horizontal {
				cursor += sz.W + spacing
				if sz.H > e.maxCross {
					e.maxCross = sz.H
				}
			} else {
				cursor += sz.H + spacing
				if sz.W > e.maxCross {
					e.maxCross = sz.W
				}
			}
		}
	}
	e.offsets[n] = cursor
}

// PageOffset returns the axis coordinate where page n starts.
func (e *Engine) PageOffset(n int) float64 {
	if len(e.offsets) == 0 {
		return 0
	}
	n = geom.ClampInt(n, 0, len(e.offsets)-1)
	return e.offsets[n]
}

// PageStride is the distance from page n's start to the next row's start.
func (e *Engine) PageStride(n int) float64 {
	numPages := len(e.sizes)
	if numPages == 0 {
		return 0
	}
	n = geom.ClampInt(n, 0, numPages-1)
	if e.mode == Book {
		row := rowEnd(n, numPages)
		if row < numPages {
			return e.offsets[row] - e.offsets[rowStart(n)]
		}
		return e.offsets[numPages] - e.offsets[rowStart(n)]
	}
	return e.offsets[n+1] - e.offsets[n]
}

// rowStart returns the first page of the Book row containing n.
func rowStart(n int) int {
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return n
	}
	return n - 1
}

// rowEnd returns one past the last page of the Book row containing n.
func rowEnd(n, numPages int) int {
	if n == 0 {
		return 1
	}
	end := rowStart(n) + 2
	if end > numPages {
		end = numPages
	}
	return end
}

// PageXOffset returns the cross-axis placement of page n inside a scene of
// the given cross extent: centered, or paired for Book spreads.
func (e *Engine) PageXOffset(n int, sceneCross float64) float64 {
	sz := e.PageSceneSize(n)
	cross := sz.W
	if e.Horizontal() {
		cross = sz.H
	}
	if e.mode == Book && n > 0 {
		mid := sceneCross / 2
		if n%2 == 1 { // left-hand page, right-aligned against the spine
			off := mid - sz.W
			if off < 0 {
				off = 0
			}
			return off
		}
		return mid
	}
	off := (sceneCross - cross) / 2
	if off < 0 {
		off = 0
	}
	return off
}

// PageAtAxisCoord finds the page whose slot contains the axis coordinate.
// Binary search over the strictly-increasing row starts; clamped to range.
func (e *Engine) PageAtAxisCoord(coord float64) int {
	n := len(e.sizes)
	if n == 0 {
		return 0
	}
	// first offset strictly greater than coord, then one slot back
	idx := sort.Search(n+1, func(i int) bool { return e.offsets[i] > coord })
	page := idx - 1
	if e.mode == Book && page > 0 {
		// duplicate offsets within a spread: sort.Search lands past the pair,
		// normalize to the row start
		page = rowStart(page)
		// the right-hand page shares the slot; callers resolve by cross axis
	}
	return geom.ClampInt(page, 0, n-1)
}

// TotalExtent is the scene length along the scroll axis.
func (e *Engine) TotalExtent() float64 {
	if len(e.offsets) == 0 {
		return 0
	}
	return e.offsets[len(e.offsets)-1]
}

// MaxCrossExtent is the widest row across the scroll axis.
func (e *Engine) MaxCrossExtent() float64 { return e.maxCross }

// Offsets exposes the raw offset array for diagnostics and tests.
func (e *Engine) Offsets() []float64 { return e.offsets }

// RowPages lists the pages sharing page n's row (one page outside Book mode).
func (e *Engine) RowPages(n int) []int {
	numPages := len(e.sizes)
	if numPages == 0 {
		return nil
	}
	n = geom.ClampInt(n, 0, numPages-1)
	if e.mode != Book {
		return []int{n}
	}
	start, end := rowStart(n), rowEnd(n, numPages)
	pages := make([]int, 0, 2)
	for p := start; p < end; p++ {
		pages = append(pages, p)
	}
	return pages
}

// PagesInInterval returns the pages whose slots overlap [a0, a1) on the
// scroll axis, in ascending order.
func (e *Engine) PagesInInterval(a0, a1 float64) []int {
	n := len(e.sizes)
	if n == 0 || a1 <= a0 {
		return nil
	}
	spacing := e.spacing * e.zoom
	var pages []int

	if e.mode == Book {
		for i := 0; i < n; {
			end := rowEnd(i, n)
			rowA0 := e.offsets[i]
			var rowA1 float64
			if end < n {
				rowA1 = e.offsets[end]
			} else {
				rowA1 = e.offsets[n]
			}
			if rowA0 < a1 && rowA1 > a0 {
				for p := i; p < end; p++ {
					pages = append(pages, p)
				}
			}
			if rowA0 >= a1 {
				break
			}
			i = end
		}
		return pages
	}

	first := e.PageAtAxisCoord(a0)
	for p := first; p < n; p++ {
		start := e.offsets[p]
		stop := e.offsets[p+1] - spacing
		if stop <= start {
			stop = e.offsets[p+1]
		}
		if start >= a1 {
			break
		}
		if stop > a0 {
			pages = append(pages, p)
		}
	}
	return pages
}
