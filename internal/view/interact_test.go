/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package view

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"lektra/internal/config"
	"lektra/internal/doc"
	"lektra/internal/geom"
	"lektra/internal/scene"
)

func TestGotoPageClampsSilently(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 10, ""))

	h.v.GotoPage(-1)
	if h.v.CurrentPage() != 0 {
		t.Fatalf("page after GotoPage(-1) = %d", h.v.CurrentPage())
	}
	h.v.GotoPage(10)
	if h.v.CurrentPage() != 9 {
		t.Fatalf("page after GotoPage(10) = %d", h.v.CurrentPage())
	}
}

func TestHistoryBackForwardRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 10, ""))

	h.v.GotoPageWithHistory(5)
	if !h.v.CanGoBack() || h.v.CanGoForward() {
		t.Fatalf("history flags after jump: back=%v fwd=%v", h.v.CanGoBack(), h.v.CanGoForward())
	}
	if h.v.hist.cursor != len(h.v.hist.entries)-1 {
		t.Fatalf("cursor = %d, len = %d", h.v.hist.cursor, len(h.v.hist.entries))
	}

	if !h.v.GoBack() || h.v.CurrentPage() != 0 {
		t.Fatalf("GoBack landed on %d", h.v.CurrentPage())
	}
	if !h.v.GoForward() || h.v.CurrentPage() != 5 {
		t.Fatalf("GoForward landed on %d", h.v.CurrentPage())
	}
	if h.v.GoForward() {
		t.Fatalf("GoForward past the end should fail")
	}
}

func TestHistoryTruncatesForwardTail(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 10, ""))

	h.v.GotoPageWithHistory(3)
	h.v.GotoPageWithHistory(6)
	h.v.GoBack() // at 3, forward tail holds 6
	h.v.GotoPageWithHistory(8)
	if h.v.CanGoForward() {
		t.Fatalf("forward tail survived a new jump")
	}
	if !h.v.GoBack() || h.v.CurrentPage() != 3 {
		t.Fatalf("GoBack after truncation landed on %d", h.v.CurrentPage())
	}
}

func searchMeta(pages int, hitPages ...int) string {
	hits := make(map[int]bool)
	for _, p := range hitPages {
		hits[p] = true
	}
	var entries []string
	for i := 0; i < pages; i++ {
		if hits[i] {
			entries = append(entries,
				`{"lines":[{"X":10,"Y":30,"W":40,"H":5,"text":"foo marker"}]}`)
		} else {
			entries = append(entries, `{}`)
		}
	}
	return fmt.Sprintf(`{"pages":[%s]}`, strings.Join(entries, ","))
}

func TestSearchCyclesPageMajor(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 8, searchMeta(8, 2, 5, 7)))

	var count, index int
	h.v.Events.SearchCountChanged = func(n int) { count = n }
	h.v.Events.SearchIndexChanged = func(i int) { index = i }

	h.v.Search("foo", false)
	h.wait("search", func() bool { return h.v.SearchCount() == 3 })
	if count != 3 {
		t.Fatalf("searchCountChanged = %d", count)
	}
	if h.v.SearchIndex() != 0 || h.v.CurrentPage() != 2 {
		t.Fatalf("first hit: index=%d page=%d", h.v.SearchIndex(), h.v.CurrentPage())
	}

	h.v.NextHit()
	if index != 1 || h.v.CurrentPage() != 5 {
		t.Fatalf("second hit: index=%d page=%d", index, h.v.CurrentPage())
	}
	h.v.NextHit()
	h.v.NextHit() // wraps past the end
	if index != 0 || h.v.CurrentPage() != 2 {
		t.Fatalf("wrap: index=%d page=%d", index, h.v.CurrentPage())
	}
	h.v.PrevHit() // wraps before the start
	if index != 2 || h.v.CurrentPage() != 7 {
		t.Fatalf("prev wrap: index=%d page=%d", index, h.v.CurrentPage())
	}

	// hit overlay plus the emphasized current hit
	var hitItems int
	for _, it := range h.v.Scene().ItemsByZ() {
		if it.Z == scene.ZSearchHits {
			hitItems++
		}
	}
	if hitItems != 2 {
		t.Fatalf("search hit items = %d", hitItems)
	}
}

func TestClearSearchResetsIndex(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 8, searchMeta(8, 2)))

	h.v.Search("foo", false)
	h.wait("search", func() bool { return h.v.SearchCount() == 1 })

	var index = 99
	h.v.Events.SearchIndexChanged = func(i int) { index = i }
	h.v.ClearSearch()
	if h.v.SearchCount() != 0 || h.v.SearchIndex() != -1 || index != -1 {
		t.Fatalf("after clear: count=%d index=%d event=%d", h.v.SearchCount(), h.v.SearchIndex(), index)
	}
	for _, it := range h.v.Scene().ItemsByZ() {
		if it.Z == scene.ZSearchHits {
			t.Fatalf("search overlay survived clear")
		}
	}
}

func TestDragSelectionCommitsText(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 3, ""))

	var clip string
	h.v.Events.ClipboardContentChanged = func(s string) { clip = s }

	h.v.PressPrimary(geom.Pt(10, 11), Mods{})
	h.v.DragPrimary(geom.Pt(50, 13))
	h.v.ReleasePrimary(geom.Pt(50, 13), Mods{})

	if h.v.SelectedText() != "hello world" {
		t.Fatalf("selected text = %q", h.v.SelectedText())
	}
	if clip != "hello world" {
		t.Fatalf("clipboard = %q", clip)
	}
	found := false
	for _, it := range h.v.Scene().ItemsByZ() {
		if it.Z == scene.ZSelection {
			found = true
		}
	}
	if !found {
		t.Fatalf("selection overlay missing")
	}

	// a plain click on empty space clears the selection
	h.v.now = func() time.Time { return time.Now().Add(time.Hour) }
	h.v.PressPrimary(geom.Pt(300, 500), Mods{})
	h.v.ReleasePrimary(geom.Pt(300, 500), Mods{})
	if h.v.SelectedText() != "" {
		t.Fatalf("selection survived click-away")
	}
}

func TestDragBelowThresholdSelectsNothing(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 3, ""))

	h.v.PressPrimary(geom.Pt(200, 300), Mods{})
	h.v.DragPrimary(geom.Pt(201, 301)) // below the 5 px threshold
	h.v.ReleasePrimary(geom.Pt(201, 301), Mods{})
	if h.v.SelectedText() != "" {
		t.Fatalf("sub-threshold drag selected %q", h.v.SelectedText())
	}
}

func TestMultiClickSelection(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 3, ""))

	clock := time.Now()
	h.v.now = func() time.Time { return clock }
	var clip string
	h.v.Events.ClipboardContentChanged = func(s string) { clip = s }

	click := func(pt geom.Point) {
		h.v.PressPrimary(pt, Mods{})
		h.v.ReleasePrimary(pt, Mods{})
		clock = clock.Add(100 * time.Millisecond)
	}
	at := geom.Pt(15, 12) // inside "hello" on line one

	click(at)
	click(at) // double: word
	if clip != "hello" {
		t.Fatalf("double-click selected %q", clip)
	}
	click(at) // triple: line
	if clip != "hello world" {
		t.Fatalf("triple-click selected %q", clip)
	}
	click(at) // quadruple: paragraph
	if clip != "hello world\nfoo bar foo" {
		t.Fatalf("quadruple-click selected %q", clip)
	}
	click(at) // the counter caps at four
	if h.v.sel.clickCount != 4 {
		t.Fatalf("click count = %d", h.v.sel.clickCount)
	}

	// a click far away resets the counter
	click(geom.Pt(400, 600))
	if h.v.sel.clickCount != 1 {
		t.Fatalf("distant click count = %d", h.v.sel.clickCount)
	}
	// so does letting the window lapse
	clock = clock.Add(time.Second)
	click(geom.Pt(400, 600))
	if h.v.sel.clickCount != 1 {
		t.Fatalf("late click count = %d", h.v.sel.clickCount)
	}
}

func TestLinkClickNavigatesWithHistory(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 5, ""))

	// the goto link sits at page-local (100,100)-(120,110)
	h.v.PressPrimary(geom.Pt(110, 105), Mods{})
	h.v.ReleasePrimary(geom.Pt(110, 105), Mods{})
	if h.v.CurrentPage() != 2 {
		t.Fatalf("link jump landed on %d", h.v.CurrentPage())
	}
	if !h.v.GoBack() || h.v.CurrentPage() != 0 {
		t.Fatalf("link jump missing from history")
	}
}

func TestCtrlLinkClickRequestsMirror(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 5, ""))

	var requested *doc.Link
	h.v.Events.CtrlLinkClickRequested = func(_ *View, l doc.Link) { requested = &l }
	h.v.PressPrimary(geom.Pt(110, 105), Mods{Ctrl: true})
	h.v.ReleasePrimary(geom.Pt(110, 105), Mods{Ctrl: true})
	if requested == nil || requested.Target.Pageno != 2 {
		t.Fatalf("ctrl-click request = %+v", requested)
	}
	if h.v.CurrentPage() != 0 {
		t.Fatalf("ctrl-click must not navigate, page = %d", h.v.CurrentPage())
	}
}

func TestURILinkEmitsOpenRequest(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 5, ""))

	var uri string
	h.v.Events.OpenURIRequested = func(s string) { uri = s }
	h.v.PressPrimary(geom.Pt(110, 205), Mods{})
	h.v.ReleasePrimary(geom.Pt(110, 205), Mods{})
	if uri != "https://example.org" {
		t.Fatalf("uri = %q", uri)
	}
}

func TestDetectedURLIsClickable(t *testing.T) {
	// 31 columns over 62 points: 2 points per column, URL at columns 4..27
	meta := `{"pages":[{"lines":[{"X":10,"Y":10,"W":62,"H":5,"text":"see https://lektra.dev/docs now"}]}]}`

	h := newHarness(t, func(cfg *config.AppConfig) { cfg.Links.DetectURLs = true })
	h.open(makeDoc(t, 1, meta))

	var uri string
	h.v.Events.OpenURIRequested = func(s string) { uri = s }
	h.v.PressPrimary(geom.Pt(30, 12), Mods{})
	h.v.ReleasePrimary(geom.Pt(30, 12), Mods{})
	if uri != "https://lektra.dev/docs" {
		t.Fatalf("uri = %q", uri)
	}

	// words outside the match are not links
	uri = ""
	h.v.PressPrimary(geom.Pt(12, 12), Mods{})
	h.v.ReleasePrimary(geom.Pt(12, 12), Mods{})
	if uri != "" {
		t.Fatalf("click on plain text opened %q", uri)
	}
}

func TestURLDetectionOffByDefault(t *testing.T) {
	meta := `{"pages":[{"lines":[{"X":10,"Y":10,"W":62,"H":5,"text":"see https://lektra.dev/docs now"}]}]}`

	h := newHarness(t, nil)
	h.open(makeDoc(t, 1, meta))

	var uri string
	h.v.Events.OpenURIRequested = func(s string) { uri = s }
	h.v.PressPrimary(geom.Pt(30, 12), Mods{})
	h.v.ReleasePrimary(geom.Pt(30, 12), Mods{})
	if uri != "" {
		t.Fatalf("detection fired while disabled: %q", uri)
	}
}

func TestHintLabelsSizedFromConfig(t *testing.T) {
	h := newHarness(t, func(cfg *config.AppConfig) { cfg.LinkHints.Size = 20 })
	h.open(makeDoc(t, 5, ""))

	h.v.ShowLinkHints(HintVisit)
	labels := 0
	for _, it := range h.v.Scene().ItemsByZ() {
		if it.Z != scene.ZLinkHints {
			continue
		}
		labels++
		if math.Abs(it.Rect.H()-24) > 1e-9 { // size * 1.2
			t.Fatalf("hint label height = %v", it.Rect.H())
		}
	}
	if labels != 2 {
		t.Fatalf("hint labels = %d", labels)
	}
	h.v.CancelHints()
}

func TestRegionSelectEmitsPageRect(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 3, ""))
	h.v.SetInteractionMode(ModeRegion)

	var page int
	var region geom.Rect
	h.v.Events.RegionSelected = func(p int, r geom.Rect) { page, region = p, r }

	h.v.PressPrimary(geom.Pt(20, 30), Mods{})
	h.v.DragPrimary(geom.Pt(120, 130))
	h.v.ReleasePrimary(geom.Pt(120, 130), Mods{})
	if page != 0 || region != geom.R(20, 30, 120, 130) {
		t.Fatalf("region = page %d %+v", page, region)
	}
}

func TestAnnotRectModeCreatesAnnotation(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 3, ""))
	h.v.SetInteractionMode(ModeAnnotRect)

	h.v.PressPrimary(geom.Pt(20, 30), Mods{})
	h.v.DragPrimary(geom.Pt(80, 90))
	h.v.ReleasePrimary(geom.Pt(80, 90), Mods{})

	annots := h.v.Model().AnnotationsOnPage(0)
	if len(annots) != 1 || annots[0].Kind != doc.AnnotRect {
		t.Fatalf("annotations = %+v", annots)
	}
	if annots[0].Rect != geom.R(20, 30, 80, 90) {
		t.Fatalf("annotation rect = %+v", annots[0].Rect)
	}
	var overlays int
	for _, it := range h.v.Scene().ItemsByZ() {
		if it.Z == scene.ZAnnotation {
			overlays++
		}
	}
	if overlays != 1 {
		t.Fatalf("annotation overlays = %d", overlays)
	}
}

func TestHighlightSelectionCreatesHighlight(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 3, ""))

	h.v.PressPrimary(geom.Pt(10, 11), Mods{})
	h.v.DragPrimary(geom.Pt(50, 13))
	h.v.ReleasePrimary(geom.Pt(50, 13), Mods{})
	h.v.HighlightSelection("#FFEB3B80")

	annots := h.v.Model().AnnotationsOnPage(0)
	if len(annots) != 1 || annots[0].Kind != doc.AnnotHighlight {
		t.Fatalf("annotations = %+v", annots)
	}
	if annots[0].Contents != "hello world" {
		t.Fatalf("highlight contents = %q", annots[0].Contents)
	}
	if h.v.SelectedText() != "" {
		t.Fatalf("selection should clear after highlighting")
	}
}

func TestLinkHintsVisitAndCopy(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 5, ""))

	h.v.ShowLinkHints(HintVisit)
	if !h.v.HintsActive() {
		t.Fatalf("hints not active")
	}
	var labels int
	for _, it := range h.v.Scene().ItemsByZ() {
		if it.Z == scene.ZLinkHints {
			labels++
		}
	}
	if labels != 2 {
		t.Fatalf("hint labels = %d", labels)
	}

	// a dead prefix cancels the overlay
	h.v.HintKey('z')
	if h.v.HintsActive() {
		t.Fatalf("dead prefix did not cancel")
	}
	for _, it := range h.v.Scene().ItemsByZ() {
		if it.Z == scene.ZLinkHints {
			t.Fatalf("hint overlay survived cancel")
		}
	}

	var clip string
	h.v.Events.ClipboardContentChanged = func(s string) { clip = s }
	h.v.ShowLinkHints(HintCopy)
	h.v.HintKey('d') // second target, the URI link
	if clip != "https://example.org" {
		t.Fatalf("hint copy = %q", clip)
	}

	// "f" is the first target, the goto link
	h.v.ShowLinkHints(HintVisit)
	if !h.v.HintKey('f') {
		t.Fatalf("hint key not consumed")
	}
	if h.v.HintsActive() || h.v.CurrentPage() != 2 {
		t.Fatalf("hint visit: active=%v page=%d", h.v.HintsActive(), h.v.CurrentPage())
	}
}

func TestVisualLineCursor(t *testing.T) {
	h := newHarness(t, nil)
	h.open(makeDoc(t, 1, ""))

	h.v.SetInteractionMode(ModeVisualLine)
	page, line, active := h.v.VisualLine()
	if !active || page != 0 || line != 0 {
		t.Fatalf("visual line start = %d/%d active=%v", page, line, active)
	}
	h.v.MoveVisualLine(1)
	if _, line, _ := h.v.VisualLine(); line != 1 {
		t.Fatalf("line after down = %d", line)
	}
	h.v.MoveVisualLine(1) // already at the last line of the last page
	if _, line, _ := h.v.VisualLine(); line != 1 {
		t.Fatalf("line past end = %d", line)
	}
	h.v.MoveVisualLine(-1)
	h.v.MoveVisualLine(-1) // clamps at the first line
	if _, line, _ := h.v.VisualLine(); line != 0 {
		t.Fatalf("line before start = %d", line)
	}

	h.v.SetInteractionMode(ModeText)
	if _, _, active := h.v.VisualLine(); active {
		t.Fatalf("visual line survived mode switch")
	}
}

func TestPortalBondLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := h.v
	b := New(&h.cfg, h.post, logger)
	c := New(&h.cfg, h.post, logger)

	a.SetPortal(b)
	if b.Source() != a || a.Portal() != b {
		t.Fatalf("bond not symmetric")
	}

	// re-bonding moves the mirror atomically
	a.SetPortal(c)
	if b.Source() != nil || c.Source() != a || a.Portal() != c {
		t.Fatalf("re-bond left stale references")
	}

	// destroying the mirror clears the source side
	c.CloseFile()
	if a.Portal() != nil {
		t.Fatalf("portal reference survived mirror teardown")
	}

	// destroying the source clears the mirror side
	a.SetPortal(b)
	a.CloseFile()
	if b.Source() != nil {
		t.Fatalf("source reference survived teardown")
	}
	b.CloseFile()
}

func TestSelfPortalRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.v.SetPortal(h.v)
	if h.v.Portal() != nil || h.v.Source() != nil {
		t.Fatalf("self-bond must not form")
	}
}
