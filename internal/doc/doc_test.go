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
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"lektra/internal/geom"
)

func writeTestPage(t *testing.T, dir string, name string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	defer func() { _ = f.Close() }()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode page: %v", err)
	}
}

func makeTestDoc(t *testing.T, pages int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < pages; i++ {
		writeTestPage(t, dir, fmt.Sprintf("page-%03d.png", i), 60, 80, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	}
	meta := `{"pages":[{"lines":[{"X":10,"Y":10,"W":40,"H":5,"text":"hello world"},{"X":10,"Y":20,"W":40,"H":5,"text":"foo bar foo"}],` +
		`"links":[{"X":5,"Y":5,"W":10,"H":5,"uri":"https://example.org"},{"X":5,"Y":40,"W":10,"H":5,"page":2,"TY":12}]}]}`
	if err := os.WriteFile(filepath.Join(dir, MetaFileName), []byte(meta), 0o644); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	return dir
}

func TestOpenDirectory(t *testing.T) {
	dir := makeTestDoc(t, 3)
	m, st, err := Open(dir, "")
	if err != nil || st != OpenReady {
		t.Fatalf("open: status=%v err=%v", st, err)
	}
	defer func() { _ = m.Close() }()
	if m.NumPages() != 3 {
		t.Fatalf("expected 3 pages, got %d", m.NumPages())
	}
	if sz := m.PageSize(0); sz != geom.Sz(60, 80) {
		t.Fatalf("page size = %+v", sz)
	}
	if sz := m.PageSize(99); sz != (geom.Size{}) {
		t.Fatalf("out-of-range page size should be zero, got %+v", sz)
	}
}

func TestRenderPageScaleRotateInvert(t *testing.T) {
	dir := makeTestDoc(t, 1)
	m, _, err := Open(dir, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = m.Close() }()

	img, err := m.RenderPage(context.Background(), 0, RenderOpts{Scale: 2})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 120 || b.Dy() != 160 {
		t.Fatalf("scaled bounds = %v", b)
	}

	img, err = m.RenderPage(context.Background(), 0, RenderOpts{Scale: 1, Rotation: 90})
	if err != nil {
		t.Fatalf("render rotated: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 80 || b.Dy() != 60 {
		t.Fatalf("rotated bounds = %v", b)
	}

	img, err = m.RenderPage(context.Background(), 0, RenderOpts{Scale: 1, Invert: true})
	if err != nil {
		t.Fatalf("render inverted: %v", err)
	}
	r, g, b, _ := img.At(10, 10).RGBA()
	if r>>8 != 55 || g>>8 != 155 || b>>8 != 205 {
		t.Fatalf("inverted pixel = %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestRenderPageCancelled(t *testing.T) {
	dir := makeTestDoc(t, 1)
	m, _, err := Open(dir, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = m.Close() }()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.RenderPage(ctx, 0, RenderOpts{Scale: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSearchPage(t *testing.T) {
	dir := makeTestDoc(t, 1)
	m, _, err := Open(dir, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = m.Close() }()

	hits, err := m.SearchPage(0, "foo", false)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits for 'foo', got %d", len(hits))
	}
	// first occurrence sits at the line start
	if b := hits[0].Quad.Bounds(); b.Min.X != 10 || b.Min.Y != 20 {
		t.Fatalf("hit quad bounds = %+v", b)
	}
	if hits[0].Quad.Bounds().Max.X >= hits[1].Quad.Bounds().Min.X {
		t.Fatalf("hits not ordered within line")
	}

	hits, err = m.SearchPage(0, "HELLO", false)
	if err != nil || len(hits) != 1 {
		t.Fatalf("case-insensitive search failed: %d hits, err=%v", len(hits), err)
	}

	hits, err = m.SearchPage(0, `fo+`, true)
	if err != nil || len(hits) != 2 {
		t.Fatalf("regex search failed: %d hits, err=%v", len(hits), err)
	}
	if _, err := m.SearchPage(0, `fo(`, true); err == nil {
		t.Fatalf("bad regex should error")
	}
}

func TestLinksAndText(t *testing.T) {
	dir := makeTestDoc(t, 1)
	m, _, err := Open(dir, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = m.Close() }()

	links := m.LinksOnPage(0)
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	if links[0].Kind != LinkURI || links[0].URI != "https://example.org" {
		t.Fatalf("link 0 = %+v", links[0])
	}
	if links[1].Kind != LinkGoto || links[1].Target.Pageno != 2 || links[1].Target.Y != 12 {
		t.Fatalf("link 1 = %+v", links[1])
	}

	if got := m.TextInRegion(0, geom.R(0, 0, 60, 15)); got != "hello world" {
		t.Fatalf("region text = %q", got)
	}
	if lines := m.TextLines(0); len(lines) != 2 || lines[1].Text != "foo bar foo" {
		t.Fatalf("text lines = %+v", lines)
	}
}

func TestAnnotationsUndoRedoAndSave(t *testing.T) {
	dir := makeTestDoc(t, 2)
	m, _, err := Open(dir, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	id := m.AddAnnotation(Annotation{Pageno: 1, Kind: AnnotRect, Rect: geom.R(1, 2, 3, 4), Color: "#E01B2466"})
	if id == 0 {
		t.Fatalf("no id assigned")
	}
	if !m.Modified() {
		t.Fatalf("document should be modified")
	}
	if n := len(m.AnnotationsOnPage(1)); n != 1 {
		t.Fatalf("expected 1 annotation, got %d", n)
	}

	if !m.Undo() {
		t.Fatalf("undo failed")
	}
	if n := len(m.AnnotationsOnPage(1)); n != 0 {
		t.Fatalf("undo left %d annotations", n)
	}
	if !m.Redo() {
		t.Fatalf("redo failed")
	}
	if n := len(m.AnnotationsOnPage(1)); n != 1 {
		t.Fatalf("redo restored %d annotations", n)
	}

	if !m.SetAnnotationColor(id, "#00FF00FF") {
		t.Fatalf("recolor failed")
	}
	if m.AnnotationsOnPage(1)[0].Color != "#00FF00FF" {
		t.Fatalf("color not applied")
	}
	m.Undo()
	if m.AnnotationsOnPage(1)[0].Color != "#E01B2466" {
		t.Fatalf("recolor undo not applied")
	}

	if err := m.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if m.Modified() {
		t.Fatalf("save should clear modified")
	}
	_ = m.Close()

	// a fresh open sees the persisted annotations
	m2, _, err := Open(dir, "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = m2.Close() }()
	if n := len(m2.AnnotationsOnPage(1)); n != 1 {
		t.Fatalf("persisted annotations = %d", n)
	}
}

func TestHighlightTexts(t *testing.T) {
	dir := makeTestDoc(t, 1)
	m, _, err := Open(dir, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = m.Close() }()

	m.AddAnnotation(Annotation{
		Pageno: 0,
		Kind:   AnnotHighlight,
		Quads:  []geom.Quad{geom.QuadFromRect(geom.R(10, 10, 50, 15))},
		Color:  "#FFEB3B80",
	})
	hl := m.HighlightTexts()
	if len(hl) != 1 || hl[0].Text != "hello world" {
		t.Fatalf("highlights = %+v", hl)
	}
}

func TestEncryptedContainerRoundTrip(t *testing.T) {
	dir := makeTestDoc(t, 2)
	enc := filepath.Join(t.TempDir(), "doc.lek")
	if err := Encrypt(dir, enc, "hunter2"); err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	// no password: handshake asks for one
	if _, st, _ := Open(enc, ""); st != OpenPasswordRequired {
		t.Fatalf("expected OpenPasswordRequired, got %v", st)
	}
	// wrong password
	if _, st, _ := Open(enc, "nope"); st != OpenWrongPassword {
		t.Fatalf("expected OpenWrongPassword, got %v", st)
	}
	// correct password
	m, st, err := Open(enc, "hunter2")
	if err != nil || st != OpenReady {
		t.Fatalf("open encrypted: status=%v err=%v", st, err)
	}
	defer func() { _ = m.Close() }()
	if m.NumPages() != 2 {
		t.Fatalf("pages = %d", m.NumPages())
	}
	// metadata travels inside the container
	if hits, _ := m.SearchPage(0, "hello", false); len(hits) != 1 {
		t.Fatalf("meta not carried into container: %d hits", len(hits))
	}

	// decrypt back to a plain archive
	plain := filepath.Join(t.TempDir(), "doc.zip")
	if err := Decrypt(enc, plain, "hunter2"); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	m2, st, err := Open(plain, "")
	if err != nil || st != OpenReady {
		t.Fatalf("open decrypted: status=%v err=%v", st, err)
	}
	defer func() { _ = m2.Close() }()
	if m2.NumPages() != 2 {
		t.Fatalf("decrypted pages = %d", m2.NumPages())
	}
}

func TestOpenFailures(t *testing.T) {
	if _, st, err := Open(filepath.Join(t.TempDir(), "missing"), ""); st != OpenFailed || err == nil {
		t.Fatalf("missing path should fail, got %v err=%v", st, err)
	}
	bad := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(bad, []byte("not a doc"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, st, err := Open(bad, ""); st != OpenFailed || err == nil {
		t.Fatalf("unsupported type should fail, got %v err=%v", st, err)
	}
}
