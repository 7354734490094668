/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package doc defines the Model abstraction the view engine renders from,
// plus the built-in raster-document implementation and the encrypted
// container format.
package doc

import (
	"context"
	"image"

	"lektra/internal/geom"
)

// Location addresses a point on a page in page-local coordinates (points).
type Location struct {
	Pageno int
	X, Y   float64
}

// SearchHit is one match on a page. Quad is in page-local points.
type SearchHit struct {
	Pageno int
	Quad   geom.Quad
	Text   string
}

// LinkKind discriminates what activating a link does.
type LinkKind int

const (
	LinkNone LinkKind = iota
	LinkGoto          // jump inside the document
	LinkURI           // open an external URI
)

// Link is a clickable region on a page. Rect is in page-local points.
type Link struct {
	Kind   LinkKind
	Rect   geom.Rect
	Target Location // valid when Kind == LinkGoto
	URI    string   // valid when Kind == LinkURI
}

// AnnotationKind enumerates the annotation variants the viewer creates.
type AnnotationKind int

const (
	AnnotRect AnnotationKind = iota
	AnnotHighlight
	AnnotText
)

// Annotation is a per-page markup object. Rect and Quads are page-local points.
type Annotation struct {
	ID       int64
	Pageno   int
	Kind     AnnotationKind
	Rect     geom.Rect
	Quads    []geom.Quad // highlight quads; empty for rect/text annotations
	Color    string      // "#RRGGBBAA"
	Contents string
}

// LineBox is a text line on a page, used by visual-line mode and selection.
type LineBox struct {
	Rect geom.Rect
	Text string
}

// OutlineItem is one entry of the document outline tree, flattened with Depth.
type OutlineItem struct {
	Title  string
	Depth  int
	Target Location
}

// Highlight pairs a highlight annotation with its covered text, for the
// cross-document highlight search.
type Highlight struct {
	Pageno int
	Color  string
	Text   string
}

// RenderOpts describes one page raster request.
type RenderOpts struct {
	// Scale is the page-points to device-pixels factor (zoom * DPI/72 * DPR).
	Scale float64
	// Rotation in degrees, a multiple of 90.
	Rotation int
	// Invert recolors the page for dark viewing.
	Invert bool
}

// OpenStatus is the outcome of an open attempt.
type OpenStatus int

const (
	OpenReady OpenStatus = iota
	OpenPasswordRequired
	OpenWrongPassword
	OpenFailed
)

// Model is the document handle the view engine talks to.
//
// Read-side calls (NumPages, PageSize, RenderPage, SearchPage, LinksOnPage,
// AnnotationsOnPage, TextLines, TextInRegion, HighlightTexts, Outline) must be
// safe for concurrent use; render workers invoke them off the view goroutine.
// Mutating calls (AddAnnotation, RemoveAnnotation, SetAnnotationColor, Undo,
// Redo, Save, SaveAs, SetInvertColor) are view-goroutine only.
type Model interface {
	FilePath() string
	NumPages() int
	// PageSize returns the page extent in points (1/72 inch units), unrotated.
	PageSize(pageno int) geom.Size
	// RenderPage rasterizes a page. It honours ctx cancellation at safe points
	// and returns ctx.Err() when cancelled.
	RenderPage(ctx context.Context, pageno int, opts RenderOpts) (image.Image, error)
	SearchPage(pageno int, term string, regex bool) ([]SearchHit, error)
	LinksOnPage(pageno int) []Link
	AnnotationsOnPage(pageno int) []Annotation
	TextLines(pageno int) []LineBox
	// TextInRegion returns the text covered by a page-local rectangle.
	TextInRegion(pageno int, r geom.Rect) string
	HighlightTexts() []Highlight
	Outline() []OutlineItem

	AddAnnotation(a Annotation) int64
	RemoveAnnotation(id int64) bool
	SetAnnotationColor(id int64, color string) bool
	CanUndo() bool
	CanRedo() bool
	Undo() bool
	Redo() bool
	// Modified reports whether annotations changed since the last save.
	Modified() bool

	InvertColor() bool
	SetInvertColor(invert bool)

	Save() error
	SaveAs(path string) error
	Close() error
}
