/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export renders document pages and regions into portable formats:
// single-region PNG, per-page PNG, page-range PDF, and a ZIP archive of page
// images. All exporters pull pixels through the same doc.Model render path
// the viewer uses, so output matches what is on screen.
package export

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"lektra/internal/doc"
)

// Options controls export rasterization.
// Units follow the document model: page geometry is in points (1pt = 1/72").
//
//nolint:revive // keep fields grouped and explicit for clarity
type Options struct {
	// DPI sets the output resolution; 0 means 150.
	DPI int
	// Rotation in degrees, a multiple of 90, applied to every page.
	Rotation int
	// Invert exports the dark-mode rendition.
	Invert bool
	// Pages selects zero-based page numbers; empty means all pages.
	Pages []int
}

const defaultDPI = 150

func (o Options) dpi() int {
	if o.DPI > 0 {
		return o.DPI
	}
	return defaultDPI
}

// scale is the page-points to pixels factor.
func (o Options) scale() float64 { return float64(o.dpi()) / 72.0 }

func (o Options) renderOpts() doc.RenderOpts {
	return doc.RenderOpts{Scale: o.scale(), Rotation: o.Rotation, Invert: o.Invert}
}

// pageIndexes expands an empty selection to all pages and drops out-of-range
// entries from an explicit one.
func pageIndexes(total int, specific []int) []int {
	if len(specific) == 0 {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, len(specific))
	for _, n := range specific {
		if n >= 0 && n < total {
			out = append(out, n)
		}
	}
	return out
}

// renderPage rasterizes one page with the export options.
func renderPage(ctx context.Context, m doc.Model, pageno int, opt Options) (image.Image, error) {
	if m == nil {
		return nil, fmt.Errorf("document model is nil")
	}
	if pageno < 0 || pageno >= m.NumPages() {
		return nil, fmt.Errorf("page %d out of range", pageno)
	}
	img, err := m.RenderPage(ctx, pageno, opt.renderOpts())
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", pageno, err)
	}
	return img, nil
}

// ensureOutDir creates the parent directory of an output file.
func ensureOutDir(outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	return nil
}
