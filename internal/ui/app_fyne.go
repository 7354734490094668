//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"lektra/internal/config"
	"lektra/internal/crash"
	"lektra/internal/doc"
	"lektra/internal/geom"
	applog "lektra/internal/log"
	"lektra/internal/recents"
	"lektra/internal/scene"
	"lektra/internal/session"
	"lektra/internal/view"
)

const (
	overlayTickInterval = 33 * time.Millisecond
	scrollStep          = 48.0
)

// Run starts the Fyne-based viewer shell. Documents given on the command line
// open immediately; otherwise the previous session is restored.
func Run(paths ...string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting viewer")

	cfg, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
	}

	sess := session.New()
	if p, perr := session.Path(); perr == nil {
		if s, lerr := session.Load(p); lerr == nil {
			sess = s
		} else {
			l.Warn("session restore failed", slog.Any("err", lerr))
		}
	}
	defer func() { crash.Recover(&sess) }()

	var store *recents.Store
	if dbPath, derr := recents.DBPath(); derr == nil {
		if s, oerr := recents.Open(dbPath); oerr == nil {
			store = s
			defer store.Close()
		} else {
			l.Warn("recent files store unavailable", slog.Any("err", oerr))
		}
	}

	fyneApp := app.NewWithID("lektra")
	w := fyneApp.NewWindow("Lektra")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1000)
	winH := prefs.IntWithFallback("window.height", 800)
	if winW < 600 {
		winW = 600
	}
	if winH < 400 {
		winH = 400
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	sh := newShell(fyneApp, w, &cfg, store, l)
	sh.sess = &sess

	w.SetCloseIntercept(func() {
		sh.persist()
		w.Close()
	})

	// one document window for now; extra paths are queued into the recents
	// store so they show under Open Recent
	switch {
	case len(paths) > 0:
		abs, _ := filepath.Abs(paths[0])
		sh.openDocument(abs, 0)
		for _, p := range paths[1:] {
			extra, _ := filepath.Abs(p)
			sh.touchRecent(extra)
		}
	default:
		if cur, ok := sess.Current(); ok {
			sh.restoreDocument(cur)
		}
	}

	w.ShowAndRun()
	sh.stop()
	return nil
}

// shell wires one main window: the document canvas, toolbar, status bar,
// dialogs, and the optional portal window.
type shell struct {
	app   fyne.App
	win   fyne.Window
	cfg   *config.AppConfig
	store *recents.Store
	sess  *session.Session
	log   *slog.Logger

	dc     *DocCanvas
	status *widget.Label
	pageLb *widget.Label
	zoomLb *widget.Label
	search *widget.Entry

	portalWin fyne.Window
	portalDC  *DocCanvas

	ticker *time.Ticker
	done   chan struct{}
}

func newShell(a fyne.App, w fyne.Window, cfg *config.AppConfig, store *recents.Store, l *slog.Logger) *shell {
	sh := &shell{app: a, win: w, cfg: cfg, store: store, log: l, done: make(chan struct{})}
	sh.dc = NewDocCanvas(cfg, l)
	v := sh.dc.View()

	sh.status = widget.NewLabel("Ready")
	sh.pageLb = widget.NewLabel("- / -")
	sh.zoomLb = widget.NewLabel("100%")

	sh.search = widget.NewEntry()
	sh.search.SetPlaceHolder("Search…")
	sh.search.OnSubmitted = func(term string) {
		if term == "" {
			v.ClearSearch()
			return
		}
		v.Search(term, false)
	}

	fitSel := widget.NewSelect([]string{"custom", "width", "height", "window"}, func(s string) {
		v.SetFitMode(view.ParseFitMode(s))
	})
	fitSel.SetSelected(v.Fit().String())

	modeSel := widget.NewSelect([]string{"text", "region", "annot_rect", "annot_select", "visual_line"}, func(s string) {
		v.SetInteractionMode(view.ParseMode(s))
	})
	modeSel.SetSelected(v.InteractionMode().String())

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.FolderOpenIcon(), sh.showOpenDialog),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.NavigateBackIcon(), func() { v.GoBack() }),
		widget.NewToolbarAction(theme.NavigateNextIcon(), func() { v.GoForward() }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.MoveUpIcon(), v.PrevPage),
		widget.NewToolbarAction(theme.MoveDownIcon(), v.NextPage),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ZoomInIcon(), v.ZoomIn),
		widget.NewToolbarAction(theme.ZoomOutIcon(), v.ZoomOut),
		widget.NewToolbarAction(theme.ViewRefreshIcon(), v.RotateClockwise),
	)

	top := container.NewBorder(nil, nil, toolbar, container.NewHBox(fitSel, modeSel), sh.search)
	bottom := container.NewHBox(sh.status, widget.NewSeparator(), sh.pageLb, widget.NewSeparator(), sh.zoomLb)
	w.SetContent(container.NewBorder(top, bottom, nil, nil, sh.dc))

	sh.buildMainMenu()
	sh.wireEvents(v)
	sh.wireKeys(v)

	// overlay ticker drives the jump marker fade and scene refresh
	sh.ticker = time.NewTicker(overlayTickInterval)
	go func() {
		for {
			select {
			case <-sh.ticker.C:
				fyne.Do(func() {
					now := time.Now()
					sh.dc.View().TickOverlays(now)
					sh.dc.maybeRefresh()
					if sh.portalDC != nil {
						sh.portalDC.View().TickOverlays(now)
						sh.portalDC.maybeRefresh()
					}
				})
			case <-sh.done:
				return
			}
		}
	}()
	return sh
}

func (sh *shell) stop() {
	sh.ticker.Stop()
	close(sh.done)
}

func (sh *shell) buildMainMenu() {
	openItem := fyne.NewMenuItem("Open…", sh.showOpenDialog)
	reloadItem := fyne.NewMenuItem("Reload", func() { sh.dc.View().Reload() })
	closeItem := fyne.NewMenuItem("Close Document", func() { sh.dc.View().CloseFile() })

	recentMenu := fyne.NewMenu("Open Recent")
	if sh.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		entries, err := sh.store.List(ctx, recents.DefaultLimit)
		if err != nil {
			sh.log.Warn("recent files list failed", slog.Any("err", err))
		}
		for _, e := range entries {
			path := e.Path
			page := e.Page
			recentMenu.Items = append(recentMenu.Items, fyne.NewMenuItem(filepath.Base(path), func() {
				sh.openDocument(path, page)
			}))
		}
	}
	recentItem := fyne.NewMenuItem("Open Recent", nil)
	recentItem.ChildMenu = recentMenu

	fileMenu := fyne.NewMenu("File", openItem, recentItem, reloadItem, closeItem)
	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", sh.dc.View().ZoomIn),
		fyne.NewMenuItem("Zoom Out", sh.dc.View().ZoomOut),
		fyne.NewMenuItem("Rotate Clockwise", sh.dc.View().RotateClockwise),
		fyne.NewMenuItem("Rotate Counter-Clockwise", sh.dc.View().RotateCounterClockwise),
		fyne.NewMenuItem("Invert Colors", func() { sh.dc.View().SetInvertColor(!sh.dc.View().InvertColor()) }),
	)
	sh.win.SetMainMenu(fyne.NewMainMenu(fileMenu, viewMenu))
}

func (sh *shell) wireEvents(v *view.View) {
	v.Events.FileNameChanged = func(name string) {
		if name == "" {
			sh.win.SetTitle("Lektra")
			return
		}
		sh.win.SetTitle(name + " - Lektra")
	}
	v.Events.PageChanged = func(n int) {
		sh.pageLb.SetText(fmt.Sprintf("%d / %d", n+1, pageCount(v)))
		sh.rememberPosition(v)
	}
	v.Events.TotalPageCountChanged = func(n int) {
		sh.pageLb.SetText(fmt.Sprintf("%d / %d", v.CurrentPage()+1, n))
	}
	v.Events.ZoomChanged = func(z float64) {
		sh.zoomLb.SetText(strconv.Itoa(int(z*100+0.5)) + "%")
	}
	v.Events.SearchCountChanged = func(n int) {
		if n == 0 && v.SearchTerm() == "" {
			sh.status.SetText("Ready")
			return
		}
		sh.status.SetText(fmt.Sprintf("%d matches", n))
	}
	v.Events.SearchIndexChanged = func(i int) {
		if i >= 0 {
			sh.status.SetText(fmt.Sprintf("Match %d of %d", i+1, v.SearchCount()))
		}
	}
	v.Events.OpenFileFinished = func(v *view.View) {
		sh.status.SetText("Ready")
		sh.touchRecent(v.FilePath())
		sh.dc.maybeRefresh()
	}
	v.Events.OpenFileFailed = func(v *view.View, err error) {
		sh.status.SetText("Open failed")
		dialog.ShowError(err, sh.win)
	}
	v.Events.PasswordRequired = func(v *view.View) { sh.askPassword(v, false) }
	v.Events.WrongPassword = func(v *view.View) { sh.askPassword(v, true) }
	v.Events.ClipboardContentChanged = func(text string) {
		sh.win.Clipboard().SetContent(text)
		sh.status.SetText("Copied to clipboard")
	}
	v.Events.OpenURIRequested = func(uri string) {
		u, err := url.Parse(uri)
		if err != nil {
			sh.log.Warn("bad link URI", slog.String("uri", uri), slog.Any("err", err))
			return
		}
		if err := sh.app.OpenURL(u); err != nil {
			sh.log.Warn("open URI failed", slog.String("uri", uri), slog.Any("err", err))
		}
	}
	v.Events.CtrlLinkClickRequested = func(v *view.View, link doc.Link) {
		sh.openPortal(v, link)
	}
	v.Events.MessagePosted = func(text string) { sh.status.SetText(text) }
	v.Events.Closed = func(v *view.View) {
		sh.win.SetTitle("Lektra")
		sh.pageLb.SetText("- / -")
		sh.status.SetText("Ready")
		sh.dc.maybeRefresh()
	}
}

func pageCount(v *view.View) int {
	if m := v.Model(); m != nil {
		return m.NumPages()
	}
	return 0
}

// wireKeys installs the canvas-level key handling used when no widget has
// focus. Link hint keys take priority while a hint session is active.
func (sh *shell) wireKeys(v *view.View) {
	sh.win.Canvas().SetOnTypedRune(func(r rune) {
		if v.HintsActive() {
			v.HintKey(r)
			return
		}
		switch r {
		case '+', '=':
			v.ZoomIn()
		case '-':
			v.ZoomOut()
		case 'r':
			v.RotateClockwise()
		case 'f':
			v.ShowLinkHints(view.HintVisit)
		case 'y':
			v.ShowLinkHints(view.HintCopy)
		case 'n':
			v.NextHit()
		case 'N':
			v.PrevHit()
		case 'b':
			v.GoBack()
		case '/':
			sh.win.Canvas().Focus(sh.search)
		}
	})
	sh.win.Canvas().SetOnTypedKey(func(e *fyne.KeyEvent) {
		switch e.Name {
		case fyne.KeyEscape:
			switch {
			case v.HintsActive():
				v.CancelHints()
			case v.SearchTerm() != "":
				v.ClearSearch()
				sh.search.SetText("")
			default:
				v.ClearSelection()
			}
		case fyne.KeyPageDown, fyne.KeySpace:
			v.NextPage()
		case fyne.KeyPageUp:
			v.PrevPage()
		case fyne.KeyHome:
			v.FirstPage()
		case fyne.KeyEnd:
			v.LastPage()
		case fyne.KeyDown:
			if v.InteractionMode() == view.ModeVisualLine {
				v.MoveVisualLine(1)
			} else {
				v.ScrollBy(0, scrollStep)
			}
		case fyne.KeyUp:
			if v.InteractionMode() == view.ModeVisualLine {
				v.MoveVisualLine(-1)
			} else {
				v.ScrollBy(0, -scrollStep)
			}
		case fyne.KeyLeft:
			v.ScrollBy(-scrollStep, 0)
		case fyne.KeyRight:
			v.ScrollBy(scrollStep, 0)
		}
	})
}

func (sh *shell) showOpenDialog() {
	dialog.ShowFileOpen(func(rd fyne.URIReadCloser, err error) {
		if err != nil || rd == nil {
			return
		}
		path := rd.URI().Path()
		_ = rd.Close()
		sh.openDocument(path, 0)
	}, sh.win)
}

// openDocument starts an async open, seeding the password from the keyring
// when one was remembered for this path.
func (sh *shell) openDocument(path string, page int) {
	v := sh.dc.View()
	sh.status.SetText("Opening " + filepath.Base(path))
	password, _ := config.LookupPassword(path)
	if page > 0 {
		prev := v.Events.OpenFileFinished
		v.Events.OpenFileFinished = func(v *view.View) {
			v.Events.OpenFileFinished = prev
			if prev != nil {
				prev(v)
			}
			v.GotoPage(page)
		}
	}
	v.OpenAsync(path, password)
}

// restoreDocument reopens a session document at its saved location.
func (sh *shell) restoreDocument(st session.DocumentState) {
	v := sh.dc.View()
	prev := v.Events.OpenFileFinished
	v.Events.OpenFileFinished = func(v *view.View) {
		v.Events.OpenFileFinished = prev
		if prev != nil {
			prev(v)
		}
		if st.Rotation != 0 {
			v.SetRotation(st.Rotation)
		}
		if st.Invert {
			v.SetInvertColor(true)
		}
		if st.Fit != "" {
			v.SetFitMode(view.ParseFitMode(st.Fit))
		}
		if st.Zoom > 0 && view.ParseFitMode(st.Fit) == view.FitCustom {
			v.SetZoom(st.Zoom)
		}
		v.GotoPage(st.Page)
	}
	password, _ := config.LookupPassword(st.Path)
	sh.status.SetText("Opening " + filepath.Base(st.Path))
	v.OpenAsync(st.Path, password)
}

func (sh *shell) askPassword(v *view.View, retry bool) {
	pw := widget.NewPasswordEntry()
	remember := widget.NewCheck("Remember password", nil)
	items := []*widget.FormItem{
		widget.NewFormItem("Password", pw),
		widget.NewFormItem("", remember),
	}
	title := "Password required"
	if retry {
		title = "Wrong password, try again"
	}
	dialog.ShowForm(title, "Unlock", "Cancel", items, func(ok bool) {
		if !ok {
			v.CloseFile()
			return
		}
		if remember.Checked {
			if err := config.RememberPassword(v.FilePath(), pw.Text); err != nil {
				sh.log.Warn("keyring store failed", slog.Any("err", err))
			}
		}
		v.SubmitPassword(pw.Text)
	}, sh.win)
}

// openPortal opens (or reuses) the mirror window and sends it to the link
// target.
func (sh *shell) openPortal(src *view.View, link doc.Link) {
	if sh.portalWin == nil {
		sh.portalDC = NewDocCanvas(sh.cfg, sh.log)
		sh.portalWin = sh.app.NewWindow("Lektra Portal")
		sh.portalWin.Resize(fyne.NewSize(600, 800))
		sh.portalWin.SetContent(sh.portalDC)
		sh.portalWin.SetCloseIntercept(func() {
			sh.portalDC.View().CloseFile()
			sh.portalWin.Close()
			sh.portalWin = nil
			sh.portalDC = nil
		})
	}
	p := sh.portalDC.View()
	src.SetPortal(p)
	if p.FilePath() != src.FilePath() || p.State() != view.StateReady {
		prev := p.Events.OpenFileFinished
		p.Events.OpenFileFinished = func(p *view.View) {
			p.Events.OpenFileFinished = prev
			if prev != nil {
				prev(p)
			}
			if link.Kind == doc.LinkGoto {
				p.GotoLocation(link.Target)
			}
		}
		password, _ := config.LookupPassword(src.FilePath())
		p.OpenAsync(src.FilePath(), password)
	} else if link.Kind == doc.LinkGoto {
		p.GotoLocation(link.Target)
	}
	sh.portalWin.Show()
}

// rememberPosition records the current page in the recent files store.
func (sh *shell) rememberPosition(v *view.View) {
	if sh.store == nil || v.FilePath() == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sh.store.SavePosition(ctx, v.FilePath(), v.CurrentPage(), v.Zoom(), v.Fit().String()); err != nil {
		sh.log.Warn("save position failed", slog.Any("err", err))
	}
}

func (sh *shell) touchRecent(path string) {
	if sh.store == nil || path == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sh.store.Touch(ctx, path); err != nil {
		sh.log.Warn("touch recent failed", slog.Any("err", err))
	}
}

// persist saves the session, the current document position, and the window
// size before the main window closes.
func (sh *shell) persist() {
	v := sh.dc.View()
	sh.rememberPosition(v)

	if sh.sess != nil {
		var docs []session.DocumentState
		if v.FilePath() != "" && v.State() == view.StateReady {
			docs = append(docs, session.DocumentState{
				Path:     v.FilePath(),
				Page:     v.CurrentPage(),
				Zoom:     v.Zoom(),
				Fit:      v.Fit().String(),
				Layout:   v.LayoutMode().String(),
				Rotation: v.Rotation(),
				Invert:   v.InvertColor(),
				Current:  true,
			})
		}
		sh.sess.Documents = docs
		if p, err := session.Path(); err == nil {
			if err := session.Save(p, *sh.sess); err != nil {
				sh.log.Warn("session save failed", slog.Any("err", err))
			}
		}
	}

	sz := sh.win.Canvas().Size()
	prefs := sh.app.Preferences()
	prefs.SetInt("window.width", int(sz.Width))
	prefs.SetInt("window.height", int(sz.Height))
}

// DocCanvas hosts one View and paints its scene. Pointer events map to the
// view's scene coordinates through the viewport origin.
type DocCanvas struct {
	widget.BaseWidget
	v   *view.View
	cfg *config.AppConfig

	lastVersion uint64
	lastSize    fyne.Size
	dragging    bool

	lastScroll time.Time
	barsShown  bool
}

func NewDocCanvas(cfg *config.AppConfig, l *slog.Logger) *DocCanvas {
	dc := &DocCanvas{cfg: cfg}
	dc.v = view.New(cfg, func(f func()) { fyne.Do(f) }, l)
	dc.ExtendBaseWidget(dc)
	return dc
}

func (dc *DocCanvas) View() *view.View { return dc.v }

// maybeRefresh redraws when the scene advanced since the last paint or the
// scrollbar auto-hide state flipped.
func (dc *DocCanvas) maybeRefresh() {
	ver := dc.v.Scene().Version()
	shown := dc.scrollbarsShown()
	if ver == dc.lastVersion && shown == dc.barsShown {
		return
	}
	dc.lastVersion = ver
	dc.barsShown = shown
	dc.Refresh()
}

// scrollbarsShown applies the scrollbars config: hidden entirely, always on,
// or visible for timeout_ms after the last scroll.
func (dc *DocCanvas) scrollbarsShown() bool {
	sb := dc.cfg.Scrollbars
	if !sb.Visible {
		return false
	}
	if !sb.AutoHide {
		return true
	}
	timeout := time.Duration(sb.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return time.Since(dc.lastScroll) <= timeout
}

// scenePoint maps a widget-local position to scene coordinates.
func (dc *DocCanvas) scenePoint(pos fyne.Position) geom.Point {
	vp := dc.v.Viewport()
	return geom.Pt(float64(pos.X)+vp.Min.X, float64(pos.Y)+vp.Min.Y)
}

func (dc *DocCanvas) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	dc.dragging = true
	dc.v.RequestFocus()
	dc.v.PressPrimary(dc.scenePoint(e.Position), modsOf(e.Modifier))
}

func (dc *DocCanvas) MouseUp(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	dc.dragging = false
	dc.v.ReleasePrimary(dc.scenePoint(e.Position), modsOf(e.Modifier))
}

func (dc *DocCanvas) Dragged(e *fyne.DragEvent) {
	if !dc.dragging {
		return
	}
	dc.v.DragPrimary(dc.scenePoint(e.Position))
}

func (dc *DocCanvas) DragEnd() {}

func (dc *DocCanvas) Scrolled(e *fyne.ScrollEvent) {
	dc.v.ScrollBy(float64(-e.Scrolled.DX), float64(-e.Scrolled.DY))
	dc.lastScroll = time.Now()
	dc.barsShown = dc.scrollbarsShown()
	dc.Refresh()
}

func modsOf(m fyne.KeyModifier) view.Mods {
	return view.Mods{Ctrl: m&fyne.KeyModifierControl != 0}
}

func (dc *DocCanvas) MinSize() fyne.Size { return fyne.NewSize(400, 300) }

func (dc *DocCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 40, G: 40, B: 44, A: 255})
	thumb := color.NRGBA{R: 128, G: 128, B: 136, A: 160}
	return &docCanvasRenderer{
		dc:      dc,
		bg:      bg,
		vbar:    canvas.NewRectangle(thumb),
		hbar:    canvas.NewRectangle(thumb),
		objects: []fyne.CanvasObject{bg},
	}
}

// docCanvasRenderer rebuilds its object list from the scene on every layout.
// Items come back z-sorted already; the renderer only translates them by the
// viewport origin.
type docCanvasRenderer struct {
	dc         *DocCanvas
	bg         *canvas.Rectangle
	vbar, hbar *canvas.Rectangle
	objects    []fyne.CanvasObject
}

func (r *docCanvasRenderer) Destroy()                     {}
func (r *docCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *docCanvasRenderer) MinSize() fyne.Size           { return r.dc.MinSize() }

func (r *docCanvasRenderer) Refresh() {
	r.Layout(r.dc.Size())
	canvas.Refresh(r.dc)
}

func (r *docCanvasRenderer) Layout(size fyne.Size) {
	if size != r.dc.lastSize && size.Width > 0 && size.Height > 0 {
		r.dc.lastSize = size
		r.dc.v.Resize(float64(size.Width), float64(size.Height))
	}

	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))

	vp := r.dc.v.Viewport()
	objs := []fyne.CanvasObject{r.bg}
	for _, it := range r.dc.v.Scene().ItemsByZ() {
		for _, obj := range itemObjects(it, vp) {
			objs = append(objs, obj)
		}
	}

	if r.dc.scrollbarsShown() {
		barW := float32(r.dc.cfg.Scrollbars.Size)
		if barW <= 0 {
			barW = 10
		}
		total := r.dc.v.SceneSize()
		if pos, length, ok := thumbSpan(vp.Min.Y, vp.H(), total.H); ok {
			r.vbar.Resize(fyne.NewSize(barW, float32(length)))
			r.vbar.Move(fyne.NewPos(size.Width-barW, float32(pos)))
			objs = append(objs, r.vbar)
		}
		if pos, length, ok := thumbSpan(vp.Min.X, vp.W(), total.W); ok {
			r.hbar.Resize(fyne.NewSize(float32(length), barW))
			r.hbar.Move(fyne.NewPos(float32(pos), size.Height-barW))
			objs = append(objs, r.hbar)
		}
	}
	r.objects = objs
}

// thumbSpan places a scrollbar thumb: given the viewport offset and extent
// against the total scene extent, it returns the thumb position and length
// along a track as long as the viewport. Content that fits has no thumb.
func thumbSpan(offset, viewLen, totalLen float64) (pos, length float64, ok bool) {
	if totalLen <= viewLen || viewLen <= 0 {
		return 0, 0, false
	}
	length = viewLen * viewLen / totalLen
	if length < 24 {
		length = 24
	}
	if length > viewLen {
		length = viewLen
	}
	pos = offset / (totalLen - viewLen) * (viewLen - length)
	return pos, length, true
}

// itemObjects turns one scene item into positioned canvas objects.
func itemObjects(it scene.Item, vp geom.Rect) []fyne.CanvasObject {
	place := func(obj fyne.CanvasObject, rc geom.Rect) {
		obj.Resize(fyne.NewSize(float32(rc.W()), float32(rc.H())))
		obj.Move(fyne.NewPos(float32(rc.Min.X-vp.Min.X), float32(rc.Min.Y-vp.Min.Y)))
	}
	switch it.Kind {
	case scene.KindPixmap:
		if it.Image == nil {
			return nil
		}
		img := canvas.NewImageFromImage(it.Image)
		img.FillMode = canvas.ImageFillStretch
		img.ScaleMode = canvas.ImageScaleFastest
		place(img, it.Rect)
		return []fyne.CanvasObject{img}
	case scene.KindRect:
		rect := canvas.NewRectangle(toRGBA(it.Fill))
		if it.Stroke != "" {
			rect.StrokeColor = toRGBA(it.Stroke)
			rect.StrokeWidth = 1
		}
		place(rect, it.Rect)
		return []fyne.CanvasObject{rect}
	case scene.KindQuads:
		objs := make([]fyne.CanvasObject, 0, len(it.Quads))
		for _, q := range it.Quads {
			rect := canvas.NewRectangle(toRGBA(it.Fill))
			place(rect, q.Bounds())
			objs = append(objs, rect)
		}
		return objs
	case scene.KindLabel:
		bgRect := canvas.NewRectangle(toRGBA(it.Fill))
		place(bgRect, it.Rect)
		txt := canvas.NewText(it.Text, toRGBA(it.Stroke))
		txt.TextSize = float32(it.Rect.H()) * 0.8
		txt.TextStyle = fyne.TextStyle{Bold: true}
		txt.Move(fyne.NewPos(float32(it.Rect.Min.X-vp.Min.X)+2, float32(it.Rect.Min.Y-vp.Min.Y)))
		return []fyne.CanvasObject{bgRect, txt}
	case scene.KindMarker:
		c := canvas.NewCircle(color.RGBA{})
		c.StrokeColor = toRGBA(it.Stroke)
		c.StrokeWidth = 2
		place(c, it.Rect)
		return []fyne.CanvasObject{c}
	}
	return nil
}

func toRGBA(s string) color.RGBA {
	c := config.ParseColor(s)
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}
