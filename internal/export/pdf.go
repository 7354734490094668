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
	"bytes"
	"context"
	"fmt"
	"image/png"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"lektra/internal/doc"
	"lektra/internal/geom"
)

// ExportPDF writes the selected pages to a single multi-page PDF. Pages keep
// their point dimensions, so the PDF page size matches the document; pixels
// come from the model at Options.DPI.
func ExportPDF(ctx context.Context, m doc.Model, outPath string, opt Options) error {
	if m == nil {
		return fmt.Errorf("document model is nil")
	}
	pages := pageIndexes(m.NumPages(), opt.Pages)
	if len(pages) == 0 {
		return fmt.Errorf("no pages to export")
	}

	// Units are points for 1:1 mapping from page geometry to PDF.
	first := pageSizeRotated(m, pages[0], opt.Rotation)
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: first.W, Ht: first.H},
		OrientationStr: "",
	})
	pdf.SetTitle(filepath.Base(m.FilePath()), true)

	var buf bytes.Buffer
	for _, pageno := range pages {
		img, err := renderPage(ctx, m, pageno, opt)
		if err != nil {
			return err
		}
		buf.Reset()
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("encode page %d: %w", pageno, err)
		}

		size := pageSizeRotated(m, pageno, opt.Rotation)
		pdf.AddPageFormat("", gofpdf.SizeType{Wd: size.W, Ht: size.H})
		name := fmt.Sprintf("page-%d", pageno)
		imgOpt := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(name, imgOpt, bytes.NewReader(buf.Bytes()))
		pdf.ImageOptions(name, 0, 0, size.W, size.H, false, imgOpt, 0, "")
		if pdf.Err() {
			return fmt.Errorf("place page %d: %s", pageno, pdf.Error())
		}
	}

	if err := ensureOutDir(outPath); err != nil {
		return err
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// pageSizeRotated returns a page's point extent with the export rotation
// applied.
func pageSizeRotated(m doc.Model, pageno, rotation int) geom.Size {
	sz := m.PageSize(pageno)
	if rotation == 90 || rotation == 270 {
		sz = sz.Swap()
	}
	return sz
}
