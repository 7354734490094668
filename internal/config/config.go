/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package config holds the user-editable viewer configuration, persisted to a
// YAML file in the user scope. Environment variables are treated as read-only
// overrides at runtime. Remembered document passwords are not stored on disk;
// they live in the OS keyring.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type LayoutConfig struct {
	// Mode is one of "single", "left_to_right", "top_to_bottom", "book".
	Mode       string  `yaml:"mode"`
	InitialFit string  `yaml:"initial_fit"` // "width" | "height" | "window" | "none"
	AutoResize bool    `yaml:"auto_resize"`
	Spacing    float64 `yaml:"spacing"`
}

type ZoomConfig struct {
	Level  float64 `yaml:"level"`
	Factor float64 `yaml:"factor"` // multiplicative step for zoom in/out
}

type SelectionConfig struct {
	DragThreshold int `yaml:"drag_threshold"` // px of manhattan motion before a drag counts
}

type BehaviorConfig struct {
	CachePages       int    `yaml:"cache_pages"`
	PreloadPages     int    `yaml:"preload_pages"`
	AutoReload       bool   `yaml:"auto_reload"`
	PageHistoryLimit int    `yaml:"page_history_limit"`
	InvertMode       bool   `yaml:"invert_mode"`
	InitialMode      string `yaml:"initial_mode"` // selection mode at startup
}

type RenderingConfig struct {
	DPI float64 `yaml:"dpi"`
	// DPR is the device pixel ratio. PerScreenDPR overrides it per screen name.
	DPR                   float64            `yaml:"dpr"`
	PerScreenDPR          map[string]float64 `yaml:"per_screen_dpr"`
	Antialiasing          bool               `yaml:"antialiasing"`
	TextAntialiasing      bool               `yaml:"text_antialiasing"`
	SmoothPixmapTransform bool               `yaml:"smooth_pixmap_transform"`
	AntialiasingBits      int                `yaml:"antialiasing_bits"`
}

// ColorsConfig values are "#RRGGBB" or "#RRGGBBAA" strings.
type ColorsConfig struct {
	SearchMatch string `yaml:"search_match"`
	SearchIndex string `yaml:"search_index"`
	Selection   string `yaml:"selection"`
	Highlight   string `yaml:"highlight"`
	JumpMarker  string `yaml:"jump_marker"`
	AnnotRect   string `yaml:"annot_rect"`
	AnnotPopup  string `yaml:"annot_popup"`
	LinkHintBg  string `yaml:"link_hint_bg"`
	LinkHintFg  string `yaml:"link_hint_fg"`
}

type MarkersConfig struct {
	JumpMarker bool `yaml:"jump_marker"`
}

type LinksConfig struct {
	Boundary   bool   `yaml:"boundary"` // draw link boundary rectangles
	DetectURLs bool   `yaml:"detect_urls"`
	URLRegex   string `yaml:"url_regex"`
}

type LinkHintsConfig struct {
	Size float64 `yaml:"size"` // hint label font size
}

type ScrollbarsConfig struct {
	Visible   bool `yaml:"visible"`
	AutoHide  bool `yaml:"auto_hide"`
	Size      int  `yaml:"size"`
	TimeoutMs int  `yaml:"timeout_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is the root of the YAML config file.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int              `yaml:"config_version"`
	Layout        LayoutConfig     `yaml:"layout"`
	Zoom          ZoomConfig       `yaml:"zoom"`
	Selection     SelectionConfig  `yaml:"selection"`
	Behavior      BehaviorConfig   `yaml:"behavior"`
	Rendering     RenderingConfig  `yaml:"rendering"`
	Colors        ColorsConfig     `yaml:"colors"`
	Markers       MarkersConfig    `yaml:"markers"`
	Links         LinksConfig      `yaml:"links"`
	LinkHints     LinkHintsConfig  `yaml:"link_hints"`
	Scrollbars    ScrollbarsConfig `yaml:"scrollbars"`
	Logging       LoggingConfig    `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Layout:        LayoutConfig{Mode: "top_to_bottom", InitialFit: "width", AutoResize: false, Spacing: 10},
		Zoom:          ZoomConfig{Level: 1.0, Factor: 1.25},
		Selection:     SelectionConfig{DragThreshold: 50},
		Behavior: BehaviorConfig{
			CachePages:       4,
			PreloadPages:     1,
			AutoReload:       true,
			PageHistoryLimit: 100,
			InvertMode:       false,
			InitialMode:      "text_selection",
		},
		Rendering: RenderingConfig{
			DPI:                   72,
			DPR:                   1.0,
			Antialiasing:          true,
			TextAntialiasing:      true,
			SmoothPixmapTransform: true,
			AntialiasingBits:      8,
		},
		Colors: ColorsConfig{
			SearchMatch: "#FFFF00AA",
			SearchIndex: "#FF8800AA",
			Selection:   "#3584E455",
			Highlight:   "#FFEB3B80",
			JumpMarker:  "#FF0000FF",
			AnnotRect:   "#E01B2466",
			AnnotPopup:  "#FFFFE0FF",
			LinkHintBg:  "#000000FF",
			LinkHintFg:  "#EA3EE9FF",
		},
		Markers:    MarkersConfig{JumpMarker: true},
		Links:      LinksConfig{Boundary: false, DetectURLs: false, URLRegex: `(https?://|www\.)[^\s<>()"']+`},
		LinkHints:  LinkHintsConfig{Size: 12},
		Scrollbars: ScrollbarsConfig{Visible: true, AutoHide: true, Size: 10, TimeoutMs: 1500},
		Logging:    LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvDPI        = "LEKTRA_DPI"
	EnvDPR        = "LEKTRA_DPR"
	EnvAutoReload = "LEKTRA_AUTO_RELOAD"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "LEKTRA_LOG_LEVEL"
	EnvLogFormat = "LEKTRA_LOG_FORMAT"
	EnvLogSource = "LEKTRA_LOG_SOURCE"
	EnvLogFile   = "LEKTRA_LOG_FILE"
)

// Service for the OS keyring; keys are derived from the document path.
const keyringService = "Lektra"

// passwordStore abstracts keyring, so we can stub in tests.
var passwordStore PasswordStore = &osKeyring{}

type PasswordStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements PasswordStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (k *osKeyring) Get(service, key string) (string, error) { return keyringGet(service, key) }
func (k *osKeyring) Set(service, key, value string) error    { return keyringSet(service, key, value) }
func (k *osKeyring) Delete(service, key string) error        { return keyringDelete(service, key) }

// passwordKey derives a stable keyring key from a document path.
func passwordKey(docPath string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(docPath)))
	return "doc_" + hex.EncodeToString(sum[:8])
}

// RememberPassword stores the password for a document in the OS keyring.
func RememberPassword(docPath, password string) error {
	if strings.TrimSpace(docPath) == "" {
		return errors.New("document path is required")
	}
	return passwordStore.Set(keyringService, passwordKey(docPath), password)
}

// LookupPassword returns the remembered password for a document, if any.
func LookupPassword(docPath string) (string, bool) {
	pw, err := passwordStore.Get(keyringService, passwordKey(docPath))
	if err != nil || pw == "" {
		return "", false
	}
	return pw, true
}

// ForgetPassword removes a remembered password.
func ForgetPassword(docPath string) error {
	return passwordStore.Delete(keyringService, passwordKey(docPath))
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Lektra")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Lektra")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "lektra")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present) over the defaults and applies
// environment overrides. Absent YAML fields keep their default values.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	cfg.Normalize()
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Normalize clamps values the rest of the application assumes to be sane.
func (c *AppConfig) Normalize() {
	if c.Zoom.Factor <= 1.0 {
		c.Zoom.Factor = Defaults().Zoom.Factor
	}
	if c.Zoom.Level <= 0 {
		c.Zoom.Level = 1.0
	}
	if c.Behavior.PreloadPages < 0 {
		c.Behavior.PreloadPages = 0
	}
	if c.Behavior.CachePages < 1 {
		c.Behavior.CachePages = 1
	}
	if c.Behavior.PageHistoryLimit <= 0 {
		c.Behavior.PageHistoryLimit = Defaults().Behavior.PageHistoryLimit
	}
	if c.Rendering.DPI <= 0 {
		c.Rendering.DPI = Defaults().Rendering.DPI
	}
	if c.Rendering.DPR <= 0 {
		c.Rendering.DPR = 1.0
	}
	if c.Layout.Spacing < 0 {
		c.Layout.Spacing = 0
	}
	if c.Selection.DragThreshold < 0 {
		c.Selection.DragThreshold = 0
	}
}

// DPRForScreen resolves the device pixel ratio for a named screen.
func (r RenderingConfig) DPRForScreen(name string) float64 {
	if v, ok := r.PerScreenDPR[name]; ok && v > 0 {
		return v
	}
	return r.DPR
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvDPI)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Rendering.DPI = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvDPR)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Rendering.DPR = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvAutoReload)); v != "" {
		lv := strings.ToLower(v)
		cfg.Behavior.AutoReload = lv == "1" || lv == "true" || lv == "on" || lv == "yes"
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		lv := strings.ToLower(v)
		cfg.Logging.Source = lv == "1" || lv == "true" || lv == "on" || lv == "yes"
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

// Color is an RGBA color parsed from a config string.
type Color struct {
	R, G, B, A uint8
}

// ParseColor parses "#RRGGBB" or "#RRGGBBAA". Invalid input returns opaque black.
func ParseColor(s string) Color {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 && len(s) != 8 {
		return Color{A: 0xFF}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Color{A: 0xFF}
	}
	c := Color{R: b[0], G: b[1], B: b[2], A: 0xFF}
	if len(b) == 4 {
		c.A = b[3]
	}
	return c
}
