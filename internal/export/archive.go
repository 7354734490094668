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
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"context"

	"lektra/internal/doc"
)

// ExportArchive packages the selected pages as PNG images into a ZIP archive
// with zero-padded names so archive readers keep page order, plus a small
// info.txt manifest.
func ExportArchive(ctx context.Context, m doc.Model, outPath string, opt Options) error {
	if m == nil {
		return fmt.Errorf("document model is nil")
	}
	pages := pageIndexes(m.NumPages(), opt.Pages)
	if len(pages) == 0 {
		return fmt.Errorf("no pages to export")
	}
	if !strings.HasSuffix(strings.ToLower(outPath), ".zip") {
		outPath += ".zip"
	}

	zw, f, err := createZip(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	pad := 1
	for n := len(pages); n >= 10; n /= 10 {
		pad++
	}

	imgBuf := &bytes.Buffer{}
	for i, pageno := range pages {
		img, err := renderPage(ctx, m, pageno, opt)
		if err != nil {
			return err
		}
		imgBuf.Reset()
		if err := png.Encode(imgBuf, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
		name := fmt.Sprintf("%0*d.png", pad, i+1)
		if err := addZipFile(zw, name, imgBuf.Bytes()); err != nil {
			return fmt.Errorf("zip add image: %w", err)
		}
	}

	manifest := fmt.Sprintf("source: %s\npages: %d\ndpi: %d\n",
		filepath.Base(m.FilePath()), len(pages), opt.dpi())
	if err := addZipFile(zw, "info.txt", []byte(manifest)); err != nil {
		return fmt.Errorf("zip add manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func createZip(outPath string) (*zip.Writer, *os.File, error) {
	if err := ensureOutDir(outPath); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create archive: %w", err)
	}
	return zip.NewWriter(f), f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
