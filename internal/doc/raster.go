/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package doc

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	_ "image/gif"
	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"

	"lektra/internal/geom"
	applog "lektra/internal/log"
)

// MetaFileName is the optional per-document sidecar (inside the directory or
// archive) carrying extracted text lines and links per page. Raster sources
// have no intrinsic text layer; OCR or authoring tools produce this file.
const MetaFileName = "lektra-meta.json"

// annotationsSuffix is appended to the document path for the saved-annotations
// sidecar file.
const annotationsSuffix = ".annotations.json"

type pageSource struct {
	name string
	size geom.Size // pixel extent, exposed as points (72 dpi)
	open func() (io.ReadCloser, error)
}

type pageMeta struct {
	Lines []metaLine `json:"lines"`
	Links []metaLink `json:"links"`
}

type metaLine struct {
	X, Y, W, H float64 `json:",omitempty"`
	Text       string  `json:"text"`
}

type metaLink struct {
	X, Y, W, H float64
	URI        string  `json:"uri,omitempty"`
	Page       int     `json:"page,omitempty"`
	TX, TY     float64 `json:",omitempty"`
}

type docMeta struct {
	Pages   []pageMeta `json:"pages"`
	Outline []struct {
		Title string  `json:"title"`
		Depth int     `json:"depth"`
		Page  int     `json:"page"`
		Y     float64 `json:"y"`
	} `json:"outline"`
}

// RasterDocument is a Model over a directory or zip archive of page images.
// Read-side operations are safe for concurrent use.
type RasterDocument struct {
	path   string
	pages  []pageSource
	meta   docMeta
	closer io.Closer // archive handle, nil for directories

	mu          sync.Mutex // guards decoded cache
	decoded     map[int]image.Image
	decodedKeys []int // FIFO eviction order
	cacheCap    int

	annotMu sync.RWMutex // annotations are read from workers, mutated on the view goroutine
	annots  []Annotation
	nextID  int64
	undo    *undoStack
	dirty   bool

	invert bool
	log    *slog.Logger
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
}

// openDir builds a RasterDocument from a directory of page images.
func openDir(path string) (*RasterDocument, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	d := newRasterDocument(path)
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
		if e.Name() == MetaFileName {
			if data, err := os.ReadFile(filepath.Join(path, MetaFileName)); err == nil {
				_ = json.Unmarshal(data, &d.meta)
			}
		}
	}
	sort.Strings(names)
	for _, name := range names {
		full := filepath.Join(path, name)
		size, err := probeImageSize(func() (io.ReadCloser, error) { return os.Open(full) })
		if err != nil {
			d.log.Warn("skipping unreadable page image", slog.String("file", name), slog.Any("err", err))
			continue
		}
		d.pages = append(d.pages, pageSource{
			name: name,
			size: size,
			open: func() (io.ReadCloser, error) { return os.Open(full) },
		})
	}
	if len(d.pages) == 0 {
		return nil, fmt.Errorf("no page images in %s", path)
	}
	d.loadAnnotations()
	return d, nil
}

// openZipReader builds a RasterDocument from an archive (plain or decrypted).
func openZipReader(path string, zr *zip.Reader, closer io.Closer) (*RasterDocument, error) {
	d := newRasterDocument(path)
	d.closer = closer
	var files []*zip.File
	for _, f := range zr.File {
		if imageExts[strings.ToLower(filepath.Ext(f.Name))] {
			files = append(files, f)
		}
		if filepath.Base(f.Name) == MetaFileName {
			if rc, err := f.Open(); err == nil {
				data, _ := io.ReadAll(rc)
				_ = rc.Close()
				_ = json.Unmarshal(data, &d.meta)
			}
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	for _, f := range files {
		f := f
		size, err := probeImageSize(func() (io.ReadCloser, error) { return f.Open() })
		if err != nil {
			d.log.Warn("skipping unreadable page image", slog.String("file", f.Name), slog.Any("err", err))
			continue
		}
		d.pages = append(d.pages, pageSource{
			name: f.Name,
			size: size,
			open: func() (io.ReadCloser, error) { return f.Open() },
		})
	}
	if len(d.pages) == 0 {
		return nil, fmt.Errorf("no page images in archive %s", path)
	}
	d.loadAnnotations()
	return d, nil
}

func newRasterDocument(path string) *RasterDocument {
	return &RasterDocument{
		path:     path,
		decoded:  make(map[int]image.Image),
		cacheCap: 4,
		nextID:   1,
		undo:     newUndoStack(64),
		log:      applog.WithComponent("doc"),
	}
}

func probeImageSize(open func() (io.ReadCloser, error)) (geom.Size, error) {
	rc, err := open()
	if err != nil {
		return geom.Size{}, err
	}
	defer func() { _ = rc.Close() }()
	cfg, _, err := image.DecodeConfig(rc)
	if err != nil {
		return geom.Size{}, err
	}
	return geom.Sz(float64(cfg.Width), float64(cfg.Height)), nil
}

func (d *RasterDocument) FilePath() string { return d.path }

func (d *RasterDocument) NumPages() int { return len(d.pages) }

func (d *RasterDocument) PageSize(pageno int) geom.Size {
	if pageno < 0 || pageno >= len(d.pages) {
		return geom.Size{}
	}
	return d.pages[pageno].size
}

// SetCachePages bounds the decoded-image cache.
func (d *RasterDocument) SetCachePages(n int) {
	if n < 1 {
		n = 1
	}
	d.mu.Lock()
	d.cacheCap = n
	d.mu.Unlock()
}

// CachePages reports the decoded-image cache bound.
func (d *RasterDocument) CachePages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cacheCap
}

func (d *RasterDocument) sourceImage(pageno int) (image.Image, error) {
	d.mu.Lock()
	if img, ok := d.decoded[pageno]; ok {
		d.mu.Unlock()
		return img, nil
	}
	d.mu.Unlock()

	rc, err := d.pages[pageno].open()
	if err != nil {
		return nil, fmt.Errorf("open page %d: %w", pageno, err)
	}
	defer func() { _ = rc.Close() }()
	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode page %d: %w", pageno, err)
	}

	d.mu.Lock()
	if _, ok := d.decoded[pageno]; !ok {
		d.decoded[pageno] = img
		d.decodedKeys = append(d.decodedKeys, pageno)
		for len(d.decodedKeys) > d.cacheCap {
			evict := d.decodedKeys[0]
			d.decodedKeys = d.decodedKeys[1:]
			delete(d.decoded, evict)
		}
	}
	d.mu.Unlock()
	return img, nil
}

// RenderPage decodes, scales, rotates, and optionally inverts a page image.
func (d *RasterDocument) RenderPage(ctx context.Context, pageno int, opts RenderOpts) (image.Image, error) {
	if pageno < 0 || pageno >= len(d.pages) {
		return nil, fmt.Errorf("page %d out of range", pageno)
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	src, err := d.sourceImage(pageno)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := src.Bounds()
	w := int(float64(b.Dx())*opts.Scale + 0.5)
	h := int(float64(b.Dy())*opts.Scale + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := rotateQuadrant(dst, opts.Rotation)
	if opts.Invert {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		invertRGBA(out)
	}
	return out, nil
}

// rotateQuadrant rotates by a multiple of 90 degrees clockwise.
func rotateQuadrant(src *image.RGBA, degrees int) *image.RGBA {
	q := ((degrees/90)%4 + 4) % 4
	if q == 0 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	var dst *image.RGBA
	if q == 2 {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.RGBAAt(b.Min.X+x, b.Min.Y+y)
			switch q {
			case 1:
				dst.SetRGBA(h-1-y, x, c)
			case 2:
				dst.SetRGBA(w-1-x, h-1-y, c)
			case 3:
				dst.SetRGBA(y, w-1-x, c)
			}
		}
	}
	return dst
}

func invertRGBA(img *image.RGBA) {
	p := img.Pix
	for i := 0; i < len(p); i += 4 {
		p[i] = 255 - p[i]
		p[i+1] = 255 - p[i+1]
		p[i+2] = 255 - p[i+2]
	}
}

func (d *RasterDocument) pageMeta(pageno int) *pageMeta {
	if pageno < 0 || pageno >= len(d.meta.Pages) {
		return nil
	}
	return &d.meta.Pages[pageno]
}

// SearchPage scans the page's text lines for term. Hit quads are located
// proportionally within the matched line box.
func (d *RasterDocument) SearchPage(pageno int, term string, useRegex bool) ([]SearchHit, error) {
	pm := d.pageMeta(pageno)
	if pm == nil || term == "" {
		return nil, nil
	}
	var re *regexp.Regexp
	if useRegex {
		var err error
		re, err = regexp.Compile("(?i)" + term)
		if err != nil {
			return nil, fmt.Errorf("search pattern: %w", err)
		}
	}
	lower := strings.ToLower(term)
	var hits []SearchHit
	for _, ln := range pm.Lines {
		if ln.Text == "" || ln.W <= 0 {
			continue
		}
		var spans [][2]int
		if re != nil {
			for _, m := range re.FindAllStringIndex(ln.Text, -1) {
				spans = append(spans, [2]int{m[0], m[1]})
			}
		} else {
			lt := strings.ToLower(ln.Text)
			for from := 0; ; {
				i := strings.Index(lt[from:], lower)
				if i < 0 {
					break
				}
				start := from + i
				spans = append(spans, [2]int{start, start + len(lower)})
				from = start + len(lower)
			}
		}
		for _, sp := range spans {
			frac0 := float64(sp[0]) / float64(len(ln.Text))
			frac1 := float64(sp[1]) / float64(len(ln.Text))
			r := geom.R(ln.X+frac0*ln.W, ln.Y, ln.X+frac1*ln.W, ln.Y+ln.H)
			hits = append(hits, SearchHit{Pageno: pageno, Quad: geom.QuadFromRect(r), Text: ln.Text[sp[0]:sp[1]]})
		}
	}
	return hits, nil
}

func (d *RasterDocument) LinksOnPage(pageno int) []Link {
	pm := d.pageMeta(pageno)
	if pm == nil {
		return nil
	}
	links := make([]Link, 0, len(pm.Links))
	for _, ml := range pm.Links {
		l := Link{Rect: geom.R(ml.X, ml.Y, ml.X+ml.W, ml.Y+ml.H)}
		if ml.URI != "" {
			l.Kind = LinkURI
			l.URI = ml.URI
		} else {
			l.Kind = LinkGoto
			l.Target = Location{Pageno: ml.Page, X: ml.TX, Y: ml.TY}
		}
		links = append(links, l)
	}
	return links
}

func (d *RasterDocument) TextLines(pageno int) []LineBox {
	pm := d.pageMeta(pageno)
	if pm == nil {
		return nil
	}
	lines := make([]LineBox, 0, len(pm.Lines))
	for _, ln := range pm.Lines {
		lines = append(lines, LineBox{Rect: geom.R(ln.X, ln.Y, ln.X+ln.W, ln.Y+ln.H), Text: ln.Text})
	}
	return lines
}

func (d *RasterDocument) TextInRegion(pageno int, r geom.Rect) string {
	pm := d.pageMeta(pageno)
	if pm == nil {
		return ""
	}
	var b strings.Builder
	for _, ln := range pm.Lines {
		if geom.R(ln.X, ln.Y, ln.X+ln.W, ln.Y+ln.H).Overlaps(r) {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(ln.Text)
		}
	}
	return b.String()
}

func (d *RasterDocument) Outline() []OutlineItem {
	items := make([]OutlineItem, 0, len(d.meta.Outline))
	for _, o := range d.meta.Outline {
		items = append(items, OutlineItem{
			Title:  o.Title,
			Depth:  o.Depth,
			Target: Location{Pageno: o.Page, Y: o.Y},
		})
	}
	return items
}

func (d *RasterDocument) InvertColor() bool { return d.invert }

func (d *RasterDocument) SetInvertColor(invert bool) { d.invert = invert }

func (d *RasterDocument) Close() error {
	d.mu.Lock()
	d.decoded = make(map[int]image.Image)
	d.decodedKeys = nil
	d.mu.Unlock()
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// WritePagePNG encodes one rendered page as PNG, used by the export layer.
func WritePagePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// SubImage crops a rectangle out of a rendered page image.
func SubImage(img image.Image, r image.Rectangle) image.Image {
	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// SolidImage returns a uniformly filled image, used for placeholder fills in
// front ends that need a concrete raster.
func SolidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// zipReaderAt adapts an in-memory payload to archive/zip.
func zipReaderAt(data []byte) (*zip.Reader, error) {
	return zip.NewReader(bytes.NewReader(data), int64(len(data)))
}
