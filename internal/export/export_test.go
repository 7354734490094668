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
	"archive/zip"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"lektra/internal/doc"
	"lektra/internal/geom"
)

// openTestDoc builds a raster document directory with solid 144x216pt pages
// (at 72 DPI the source images are 144x216 px).
func openTestDoc(t *testing.T, pages int) doc.Model {
	t.Helper()
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 144, 216))
	for y := 0; y < 216; y++ {
		for x := 0; x < 144; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	for i := 0; i < pages; i++ {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("page-%03d.png", i)))
		if err != nil {
			t.Fatalf("create page: %v", err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatalf("encode page: %v", err)
		}
		_ = f.Close()
	}
	m, status, err := doc.Open(dir, "")
	if err != nil || status != doc.OpenReady {
		t.Fatalf("open doc: status=%v err=%v", status, err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestRegionImageCropsToRegion(t *testing.T) {
	m := openTestDoc(t, 1)
	img, err := RegionImage(context.Background(), m, 0, geom.R(10, 20, 60, 70), Options{DPI: 72})
	if err != nil {
		t.Fatalf("region image: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 50 || b.Dy() != 50 {
		t.Fatalf("region size = %dx%d", b.Dx(), b.Dy())
	}
	r, g, _, _ := img.At(25, 25).RGBA()
	if r>>8 != 200 || g>>8 != 100 {
		t.Fatalf("region pixel = %v", img.At(25, 25))
	}
}

func TestRegionImageScalesWithDPI(t *testing.T) {
	m := openTestDoc(t, 1)
	img, err := RegionImage(context.Background(), m, 0, geom.R(0, 0, 50, 40), Options{DPI: 144})
	if err != nil {
		t.Fatalf("region image: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 100 || b.Dy() != 80 {
		t.Fatalf("scaled region = %dx%d", b.Dx(), b.Dy())
	}
}

func TestRegionOutsidePageFails(t *testing.T) {
	m := openTestDoc(t, 1)
	if _, err := RegionImage(context.Background(), m, 0, geom.R(500, 500, 600, 600), Options{DPI: 72}); err == nil {
		t.Fatalf("out-of-page region succeeded")
	}
	if _, err := RegionImage(context.Background(), m, 0, geom.Rect{}, Options{}); err == nil {
		t.Fatalf("empty region succeeded")
	}
}

func TestExportRegionPNGWritesFile(t *testing.T) {
	m := openTestDoc(t, 1)
	out := filepath.Join(t.TempDir(), "nested", "region.png")
	if err := ExportRegionPNG(context.Background(), m, 0, geom.R(0, 0, 40, 40), out, Options{DPI: 72}); err != nil {
		t.Fatalf("export region: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open out: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode out: %v", err)
	}
	if img.Bounds().Dx() != 40 {
		t.Fatalf("out width = %d", img.Bounds().Dx())
	}
}

func TestExportPagePNGsHonorsSelection(t *testing.T) {
	m := openTestDoc(t, 5)
	outDir := t.TempDir()
	if err := ExportPagePNGs(context.Background(), m, outDir, Options{DPI: 72, Pages: []int{0, 3}}); err != nil {
		t.Fatalf("export pages: %v", err)
	}
	for _, name := range []string{"page-1.png", "page-4.png"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "page-2.png")); err == nil {
		t.Fatalf("unselected page exported")
	}
}

func TestExportPDFWritesDocument(t *testing.T) {
	m := openTestDoc(t, 3)
	out := filepath.Join(t.TempDir(), "doc.pdf")
	if err := ExportPDF(context.Background(), m, out, Options{DPI: 72, Pages: []int{0, 2}}); err != nil {
		t.Fatalf("export pdf: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat pdf: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("pdf is empty")
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if len(data) < 5 || string(data[:5]) != "%PDF-" {
		t.Fatalf("pdf header = %q", data[:min(len(data), 8)])
	}
}

func TestExportArchivePackagesPages(t *testing.T) {
	m := openTestDoc(t, 3)
	out := filepath.Join(t.TempDir(), "doc") // extension is added
	if err := ExportArchive(context.Background(), m, out, Options{DPI: 72}); err != nil {
		t.Fatalf("export archive: %v", err)
	}
	zr, err := zip.OpenReader(out + ".zip")
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()
	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"1.png", "2.png", "3.png", "info.txt"} {
		if !names[want] {
			t.Fatalf("archive missing %s, has %v", want, names)
		}
	}
}

func TestBatchExportPresets(t *testing.T) {
	m := openTestDoc(t, 2)
	outDir := t.TempDir()
	if err := BatchExport(context.Background(), m, BatchOptions{
		Preset: PresetWeb, OutDir: outDir, DPIOverride: 72,
	}); err != nil {
		t.Fatalf("batch export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "png", "page-1.png")); err != nil {
		t.Fatalf("missing png output: %v", err)
	}
	ents, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("read out dir: %v", err)
	}
	foundZip := false
	for _, e := range ents {
		if filepath.Ext(e.Name()) == ".zip" {
			foundZip = true
		}
	}
	if !foundZip {
		t.Fatalf("missing archive output in %v", ents)
	}

	if err := BatchExport(context.Background(), m, BatchOptions{
		Preset: PresetPrint, OutDir: outDir, DPIOverride: 72,
	}); err != nil {
		t.Fatalf("print preset: %v", err)
	}
	foundPDF := false
	ents, _ = os.ReadDir(outDir)
	for _, e := range ents {
		if filepath.Ext(e.Name()) == ".pdf" {
			foundPDF = true
		}
	}
	if !foundPDF {
		t.Fatalf("missing pdf output")
	}
}

func TestUnknownFormatRejected(t *testing.T) {
	m := openTestDoc(t, 1)
	err := BatchExport(context.Background(), m, BatchOptions{
		Formats: []string{"docx"}, OutDir: t.TempDir(),
	})
	if err == nil {
		t.Fatalf("unknown format accepted")
	}
}
