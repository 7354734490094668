/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package geom provides float64 scene geometry shared by the layout engine,
// the scene store, and the view.
package geom

import "math"

type Point struct {
	X, Y float64
}

type Size struct {
	W, H float64
}

// Rect is an axis-aligned rectangle. Min is the top-left corner.
type Rect struct {
	Min, Max Point
}

func Pt(x, y float64) Point { return Point{X: x, Y: y} }

func Sz(w, h float64) Size { return Size{W: w, H: h} }

func R(x0, y0, x1, y1 float64) Rect {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return Rect{Min: Point{x0, y0}, Max: Point{x1, y1}}
}

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Manhattan returns |dx| + |dy| between two points.
func (p Point) Manhattan(q Point) float64 {
	return math.Abs(p.X-q.X) + math.Abs(p.Y-q.Y)
}

func (s Size) Swap() Size { return Size{W: s.H, H: s.W} }

func (s Size) Scale(f float64) Size { return Size{W: s.W * f, H: s.H * f} }

func (r Rect) W() float64 { return r.Max.X - r.Min.X }
func (r Rect) H() float64 { return r.Max.Y - r.Min.Y }

func (r Rect) Empty() bool { return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y }

func (r Rect) Contains(p Point) bool {
	return p.X >= r.Min.X && p.X < r.Max.X && p.Y >= r.Min.Y && p.Y < r.Max.Y
}

func (r Rect) Overlaps(o Rect) bool {
	return r.Min.X < o.Max.X && o.Min.X < r.Max.X && r.Min.Y < o.Max.Y && o.Min.Y < r.Max.Y
}

func (r Rect) Translate(d Point) Rect {
	return Rect{Min: r.Min.Add(d), Max: r.Max.Add(d)}
}

// Union returns the smallest rectangle containing both r and o.
// An empty rectangle does not contribute.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return Rect{
		Min: Point{math.Min(r.Min.X, o.Min.X), math.Min(r.Min.Y, o.Min.Y)},
		Max: Point{math.Max(r.Max.X, o.Max.X), math.Max(r.Max.Y, o.Max.Y)},
	}
}

func (r Rect) Center() Point {
	return Point{(r.Min.X + r.Max.X) / 2, (r.Min.Y + r.Max.Y) / 2}
}

// Quad is a (possibly rotated) quadrilateral, used for text line boxes
// and selection regions.
type Quad struct {
	UL, UR, LL, LR Point
}

// QuadFromRect builds an axis-aligned quad.
func QuadFromRect(r Rect) Quad {
	return Quad{
		UL: r.Min,
		UR: Point{r.Max.X, r.Min.Y},
		LL: Point{r.Min.X, r.Max.Y},
		LR: r.Max,
	}
}

// Bounds returns the bounding rectangle of the quad.
func (q Quad) Bounds() Rect {
	minX := math.Min(math.Min(q.UL.X, q.UR.X), math.Min(q.LL.X, q.LR.X))
	maxX := math.Max(math.Max(q.UL.X, q.UR.X), math.Max(q.LL.X, q.LR.X))
	minY := math.Min(math.Min(q.UL.Y, q.UR.Y), math.Min(q.LL.Y, q.LR.Y))
	maxY := math.Max(math.Max(q.UL.Y, q.UR.Y), math.Max(q.LL.Y, q.LR.Y))
	return R(minX, minY, maxX, maxY)
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
