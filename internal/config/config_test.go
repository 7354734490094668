/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestDefaultsAreSane(t *testing.T) {
	cfg := Defaults()
	if cfg.Zoom.Factor <= 1.0 {
		t.Fatalf("zoom factor must be > 1, got %v", cfg.Zoom.Factor)
	}
	if cfg.Behavior.PreloadPages < 0 || cfg.Behavior.PageHistoryLimit <= 0 {
		t.Fatalf("bad behavior defaults: %+v", cfg.Behavior)
	}
	if cfg.Rendering.DPI <= 0 || cfg.Rendering.DPR <= 0 {
		t.Fatalf("bad rendering defaults: %+v", cfg.Rendering)
	}
}

func TestYAMLOverlaysDefaults(t *testing.T) {
	cfg := Defaults()
	src := []byte("layout:\n  mode: book\n  spacing: 4\nzoom:\n  factor: 1.5\nbehavior:\n  preload_pages: 3\n")
	if err := yaml.Unmarshal(src, &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.Layout.Mode != "book" || cfg.Layout.Spacing != 4 {
		t.Fatalf("layout not overlaid: %+v", cfg.Layout)
	}
	if cfg.Zoom.Factor != 1.5 {
		t.Fatalf("zoom factor not overlaid: %v", cfg.Zoom.Factor)
	}
	if cfg.Behavior.PreloadPages != 3 {
		t.Fatalf("preload_pages not overlaid: %v", cfg.Behavior.PreloadPages)
	}
	// untouched sections keep their defaults
	if cfg.Colors.JumpMarker != Defaults().Colors.JumpMarker {
		t.Fatalf("colors should keep defaults, got %q", cfg.Colors.JumpMarker)
	}
}

func TestNormalizeClamps(t *testing.T) {
	cfg := AppConfig{}
	cfg.Zoom.Factor = 0.5
	cfg.Behavior.PreloadPages = -1
	cfg.Rendering.DPI = -10
	cfg.Normalize()
	if cfg.Zoom.Factor <= 1.0 {
		t.Fatalf("factor not clamped: %v", cfg.Zoom.Factor)
	}
	if cfg.Behavior.PreloadPages != 0 {
		t.Fatalf("preload not clamped: %v", cfg.Behavior.PreloadPages)
	}
	if cfg.Rendering.DPI <= 0 {
		t.Fatalf("dpi not clamped: %v", cfg.Rendering.DPI)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvDPI, "144")
	t.Setenv(EnvAutoReload, "off")
	cfg := Defaults()
	applyEnvOverrides(&cfg)
	if cfg.Rendering.DPI != 144 {
		t.Fatalf("dpi override not applied: %v", cfg.Rendering.DPI)
	}
	if cfg.Behavior.AutoReload {
		t.Fatalf("auto_reload override not applied")
	}
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want Color
	}{
		{"#FF0000FF", Color{0xFF, 0, 0, 0xFF}},
		{"#00FF00", Color{0, 0xFF, 0, 0xFF}},
		{"  #EA3EE9FF ", Color{0xEA, 0x3E, 0xE9, 0xFF}},
		{"garbage", Color{0, 0, 0, 0xFF}},
		{"", Color{0, 0, 0, 0xFF}},
	}
	for _, c := range cases {
		if got := ParseColor(c.in); got != c.want {
			t.Fatalf("ParseColor(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

type fakeStore struct{ m map[string]string }

func (f *fakeStore) Get(_, key string) (string, error) { return f.m[key], nil }
func (f *fakeStore) Set(_, key, value string) error    { f.m[key] = value; return nil }
func (f *fakeStore) Delete(_, key string) error        { delete(f.m, key); return nil }

func TestPasswordRoundTrip(t *testing.T) {
	orig := passwordStore
	passwordStore = &fakeStore{m: map[string]string{}}
	defer func() { passwordStore = orig }()

	if err := RememberPassword("/tmp/a.lek", "s3cret"); err != nil {
		t.Fatalf("remember: %v", err)
	}
	pw, ok := LookupPassword("/tmp/a.lek")
	if !ok || pw != "s3cret" {
		t.Fatalf("lookup got %q ok=%v", pw, ok)
	}
	if _, ok := LookupPassword("/tmp/other.lek"); ok {
		t.Fatalf("unexpected password for other path")
	}
	if err := ForgetPassword("/tmp/a.lek"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, ok := LookupPassword("/tmp/a.lek"); ok {
		t.Fatalf("password not forgotten")
	}
}
