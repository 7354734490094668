/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package view is the document view engine: it owns a loaded Model, the page
// layout, the scene, the render pipeline, navigation state, search state, and
// the interaction machinery above them.
//
// A View is confined to one goroutine. Off-goroutine work (rendering, opening)
// returns through the injected post function; nothing else may call into the
// View concurrently.
package view

import (
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"lektra/internal/config"
	"lektra/internal/doc"
	"lektra/internal/geom"
	"lektra/internal/layout"
	"lektra/internal/render"
	"lektra/internal/scene"
)

const (
	zoomMin = 0.01
	zoomMax = 100.0

	multiClickWindow = 400 * time.Millisecond
	multiClickRadius = 5.0

	resizeDebounceInterval = 150 * time.Millisecond
	pageDebounceInterval   = 50 * time.Millisecond
	reloadDebounceInterval = 200 * time.Millisecond
	reloadMaxRetries       = 5
	reloadRetryDelay       = 250 * time.Millisecond

	jumpMarkerTTL = time.Second
)

// FitMode is the zoom computation policy.
type FitMode int

const (
	FitCustom FitMode = iota
	FitWidth
	FitHeight
	FitWindow
)

func (m FitMode) String() string {
	switch m {
	case FitWidth:
		return "width"
	case FitHeight:
		return "height"
	case FitWindow:
		return "window"
	}
	return "custom"
}

// ParseFitMode maps a config string; anything unrecognized is FitCustom.
func ParseFitMode(s string) FitMode {
	switch strings.ToLower(s) {
	case "width":
		return FitWidth
	case "height":
		return FitHeight
	case "window":
		return FitWindow
	}
	return FitCustom
}

// Mode is the pointer interaction mode.
type Mode int

const (
	ModeText Mode = iota
	ModeRegion
	ModeAnnotRect
	ModeAnnotSelect
	ModeVisualLine
)

func (m Mode) String() string {
	switch m {
	case ModeRegion:
		return "region"
	case ModeAnnotRect:
		return "annot_rect"
	case ModeAnnotSelect:
		return "annot_select"
	case ModeVisualLine:
		return "visual_line"
	}
	return "text"
}

func ParseMode(s string) Mode {
	switch strings.ToLower(s) {
	case "region":
		return ModeRegion
	case "annot_rect":
		return ModeAnnotRect
	case "annot_select":
		return ModeAnnotSelect
	case "visual_line":
		return ModeVisualLine
	}
	return ModeText
}

// OpenState is the document lifecycle state.
type OpenState int

const (
	StateIdle OpenState = iota
	StateOpening
	StateReady
	StatePasswordRequired
	StateReloading
	StateFailed
	StateClosed
)

// Mods carries the modifier keys of a pointer event.
type Mods struct {
	Ctrl bool
}

// Events are the observable signals of a View. Unset callbacks are skipped.
// All callbacks fire on the view goroutine.
type Events struct {
	PageChanged             func(n int)
	ZoomChanged             func(z float64)
	FitModeChanged          func(m FitMode)
	SelectionModeChanged    func(m Mode)
	TotalPageCountChanged   func(n int)
	FileNameChanged         func(name string)
	PanelNameChanged        func(name string)
	SearchCountChanged      func(n int)
	SearchIndexChanged      func(i int)
	OpenFileFinished        func(v *View)
	OpenFileFailed          func(v *View, err error)
	PasswordRequired        func(v *View)
	WrongPassword           func(v *View)
	ClipboardContentChanged func(text string)
	CtrlLinkClickRequested  func(v *View, link doc.Link)
	OpenURIRequested        func(uri string)
	RegionSelected          func(pageno int, r geom.Rect)
	AnnotationSelected      func(a doc.Annotation)
	RequestFocus            func(v *View)
	HighlightColorChanged   func(color string)
	MessagePosted           func(text string)
	Closed                  func(v *View)
}

var viewIDs atomic.Int64

// View is one logical document presentation.
type View struct {
	id   int64
	cfg  *config.AppConfig
	log  *slog.Logger
	post func(func())

	Events Events

	model doc.Model
	lay   *layout.Engine
	scn   *scene.Scene
	pipe  *render.Pipeline

	state OpenState
	path  string

	viewSize geom.Size // viewport extent in scene units
	viewport geom.Rect // window into the scene
	screen   string    // per-screen DPR key

	fit        FitMode
	zoom       float64
	rotation   int
	mode       Mode
	invert     bool
	autoResize bool
	autoReload bool
	panelName  string

	currentPage int
	pendingJump *doc.Location
	entries     map[int]*pageEntry
	hist        history
	search      searchState
	sel         selectionState
	hints       hintState
	vline       vlineState

	source *View // the view this one mirrors
	portal *View // the mirror of this view

	resizeTimer *debouncer
	pageTimer   *debouncer
	reloadTimer *debouncer
	watcher     *fileWatcher
	retries     int

	urlRx *regexp.Regexp // nil unless links.detect_urls is on

	workers int // render worker override; 0 selects the default

	now func() time.Time
}

// New builds an idle View. post must marshal the given function onto the
// goroutine the View lives on.
func New(cfg *config.AppConfig, post func(func()), logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	v := &View{
		id:         viewIDs.Add(1),
		cfg:        cfg,
		log:        logger,
		post:       post,
		state:      StateIdle,
		zoom:       geom.Clamp(cfg.Zoom.Level, zoomMin, zoomMax),
		fit:        ParseFitMode(cfg.Layout.InitialFit),
		mode:       ParseMode(cfg.Behavior.InitialMode),
		invert:     cfg.Behavior.InvertMode,
		autoResize: cfg.Layout.AutoResize,
		autoReload: cfg.Behavior.AutoReload,
		lay:        layout.New(),
		scn:        scene.New(),
		entries:    make(map[int]*pageEntry),
		hist:       history{limit: cfg.Behavior.PageHistoryLimit, cursor: -1},
		search:     searchState{index: -1},
		now:        time.Now,
	}
	if cfg.Links.DetectURLs {
		pattern := cfg.Links.URLRegex
		if pattern == "" {
			pattern = config.Defaults().Links.URLRegex
		}
		if rx, err := regexp.Compile(pattern); err != nil {
			logger.Warn("invalid url regex, detection disabled", slog.Any("err", err))
		} else {
			v.urlRx = rx
		}
	}
	v.lay.SetMode(layout.ParseMode(cfg.Layout.Mode))
	v.lay.SetSpacing(cfg.Layout.Spacing)
	v.lay.SetZoom(v.zoom)
	v.resizeTimer = newDebouncer(resizeDebounceInterval, post, v.applyFit)
	v.pageTimer = newDebouncer(pageDebounceInterval, post, v.emitPageChanged)
	v.reloadTimer = newDebouncer(reloadDebounceInterval, post, v.Reload)
	return v
}

func (v *View) ID() int64            { return v.id }
func (v *View) FilePath() string     { return v.path }
func (v *View) State() OpenState     { return v.state }
func (v *View) Model() doc.Model     { return v.model }
func (v *View) Scene() *scene.Scene  { return v.scn }
func (v *View) CurrentPage() int     { return v.currentPage }
func (v *View) Zoom() float64        { return v.zoom }
func (v *View) Rotation() int        { return v.rotation }
func (v *View) Fit() FitMode         { return v.fit }
func (v *View) InteractionMode() Mode { return v.mode }
func (v *View) LayoutMode() layout.Mode { return v.lay.Mode() }
func (v *View) Viewport() geom.Rect  { return v.viewport }
func (v *View) InvertColor() bool    { return v.invert }

// PanelName is the display name used by the enclosing container.
func (v *View) PanelName() string { return v.panelName }

func (v *View) SetPanelName(name string) {
	if name == v.panelName {
		return
	}
	v.panelName = name
	if v.Events.PanelNameChanged != nil {
		v.Events.PanelNameChanged(name)
	}
}

// SetInteractionMode switches the pointer mode and resets transient
// interaction state.
func (v *View) SetInteractionMode(m Mode) {
	if m == v.mode {
		return
	}
	v.exitVisualLine()
	v.CancelHints()
	v.mode = m
	if m == ModeVisualLine {
		v.enterVisualLine()
	}
	if v.Events.SelectionModeChanged != nil {
		v.Events.SelectionModeChanged(m)
	}
}

// pointScale converts page points to scene units at the current zoom.
func (v *View) pointScale() float64 {
	return v.zoom * v.cfg.Rendering.DPI / 72.0
}

// renderScale is pointScale times the device pixel ratio of the screen.
func (v *View) renderScale() float64 {
	return v.pointScale() * v.cfg.Rendering.DPRForScreen(v.screen)
}

func (v *View) renderOpts() doc.RenderOpts {
	return doc.RenderOpts{Scale: v.renderScale(), Rotation: v.rotation, Invert: v.invert}
}

// SetScreen selects the per-screen DPR entry; a DPR change re-renders.
func (v *View) SetScreen(name string) {
	if name == v.screen {
		return
	}
	old := v.cfg.Rendering.DPRForScreen(v.screen)
	v.screen = name
	if v.cfg.Rendering.DPRForScreen(name) != old {
		v.relayout(true)
	}
}

// Resize sets the viewport extent. Fit recomputation is debounced so rapid
// resizes coalesce into one re-layout.
func (v *View) Resize(w, h float64) {
	if w <= 0 || h <= 0 {
		return
	}
	v.viewSize = geom.Sz(w, h)
	v.viewport = geom.R(v.viewport.Min.X, v.viewport.Min.Y, v.viewport.Min.X+w, v.viewport.Min.Y+h)
	if v.fit != FitCustom && v.autoResize {
		v.resizeTimer.Trigger()
	}
	v.clampViewport()
	v.updateVisible()
}

// SetViewportOrigin scrolls the window to the given scene origin.
func (v *View) SetViewportOrigin(x, y float64) {
	v.viewport = geom.R(x, y, x+v.viewSize.W, y+v.viewSize.H)
	v.clampViewport()
	v.updateVisible()
}

// ScrollBy moves the viewport relative to its current origin.
func (v *View) ScrollBy(dx, dy float64) {
	v.SetViewportOrigin(v.viewport.Min.X+dx, v.viewport.Min.Y+dy)
}

func (v *View) clampViewport() {
	total := v.lay.TotalExtent()
	cross := v.sceneCross()
	var maxX, maxY float64
	if v.lay.Horizontal() {
		maxX, maxY = total-v.viewSize.W, cross-v.viewSize.H
	} else {
		maxX, maxY = cross-v.viewSize.W, total-v.viewSize.H
	}
	if maxX < 0 {
		maxX = 0
	}
	if maxY < 0 {
		maxY = 0
	}
	x := geom.Clamp(v.viewport.Min.X, 0, maxX)
	y := geom.Clamp(v.viewport.Min.Y, 0, maxY)
	v.viewport = geom.R(x, y, x+v.viewSize.W, y+v.viewSize.H)
}

// sceneCross is the cross-axis extent of the scene, never narrower than the
// viewport so lone pages stay centered.
func (v *View) sceneCross() float64 {
	cross := v.lay.MaxCrossExtent()
	viewCross := v.viewSize.W
	if v.lay.Horizontal() {
		viewCross = v.viewSize.H
	}
	if viewCross > cross {
		return viewCross
	}
	return cross
}

// SceneSize is the full scene extent at the current layout and zoom.
func (v *View) SceneSize() geom.Size {
	total := v.lay.TotalExtent()
	cross := v.sceneCross()
	if v.lay.Horizontal() {
		return geom.Sz(total, cross)
	}
	return geom.Sz(cross, total)
}

// axisWindow is the viewport interval along the scroll axis.
func (v *View) axisWindow() (float64, float64) {
	if v.lay.Horizontal() {
		return v.viewport.Min.X, v.viewport.Max.X
	}
	return v.viewport.Min.Y, v.viewport.Max.Y
}

// relayout rebuilds page geometry after zoom, rotation, layout-mode, or
// invert changes. bump discards queued and in-flight renders.
func (v *View) relayout(bump bool) {
	if v.model == nil {
		return
	}
	if bump && v.pipe != nil {
		v.pipe.Bump()
	}
	for n := range v.entries {
		v.scn.RemovePage(n)
	}
	v.entries = make(map[int]*pageEntry)
	v.clearSelection(false)
	v.exitVisualLine()
	v.CancelHints()
	v.clampViewport()
	v.updateVisible()
	v.refreshSearchOverlay()
}

func (v *View) emitPageChanged() {
	if v.Events.PageChanged != nil {
		v.Events.PageChanged(v.currentPage)
	}
}

func (v *View) postMessage(text string) {
	if v.Events.MessagePosted != nil {
		v.Events.MessagePosted(text)
	}
}

// RequestFocus asks the container to focus this view.
func (v *View) RequestFocus() {
	if v.Events.RequestFocus != nil {
		v.Events.RequestFocus(v)
	}
}

// SetInvertColor toggles dark-view recoloring and re-renders.
func (v *View) SetInvertColor(invert bool) {
	if invert == v.invert {
		return
	}
	v.invert = invert
	if v.model != nil {
		v.model.SetInvertColor(invert)
	}
	v.relayout(true)
}

// baseName is the display name of the open file.
func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}
