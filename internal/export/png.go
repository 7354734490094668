/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"lektra/internal/doc"
	"lektra/internal/geom"
)

// RegionImage renders the part of a page covered by a page-local rectangle
// (points). Rotation is not applied to region grabs; the region is defined on
// the unrotated page.
func RegionImage(ctx context.Context, m doc.Model, pageno int, region geom.Rect, opt Options) (image.Image, error) {
	if region.Empty() {
		return nil, fmt.Errorf("region is empty")
	}
	opt.Rotation = 0
	full, err := renderPage(ctx, m, pageno, opt)
	if err != nil {
		return nil, err
	}
	s := opt.scale()
	crop := image.Rect(
		int(math.Floor(region.Min.X*s)), int(math.Floor(region.Min.Y*s)),
		int(math.Ceil(region.Max.X*s)), int(math.Ceil(region.Max.Y*s)))
	crop = crop.Intersect(full.Bounds())
	if crop.Empty() {
		return nil, fmt.Errorf("region outside page %d", pageno)
	}
	out := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(out, out.Bounds(), full, crop.Min, draw.Src)
	return out, nil
}

// ExportRegionPNG writes a page region to a PNG file.
func ExportRegionPNG(ctx context.Context, m doc.Model, pageno int, region geom.Rect, outPath string, opt Options) error {
	img, err := RegionImage(ctx, m, pageno, region, opt)
	if err != nil {
		return err
	}
	if err := ensureOutDir(outPath); err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

// ExportPagePNGs writes the selected pages as page-<n>.png files under outDir.
// Page numbers in file names are one-based.
func ExportPagePNGs(ctx context.Context, m doc.Model, outDir string, opt Options) error {
	if m == nil {
		return fmt.Errorf("document model is nil")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	for _, pageno := range pageIndexes(m.NumPages(), opt.Pages) {
		img, err := renderPage(ctx, m, pageno, opt)
		if err != nil {
			return err
		}
		name := filepath.Join(outDir, fmt.Sprintf("page-%d.png", pageno+1))
		f, err := os.Create(name)
		if err != nil {
			return fmt.Errorf("create png: %w", err)
		}
		if err := png.Encode(f, img); err != nil {
			_ = f.Close()
			return fmt.Errorf("encode png: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close png: %w", err)
		}
	}
	return nil
}
