/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lektra/internal/backend"
	"lektra/internal/crash"
	"lektra/internal/doc"
	"lektra/internal/export"
	applog "lektra/internal/log"
	"lektra/internal/recents"
	"lektra/internal/ui"
	"lektra/internal/version"
)

func usage() {
	fmt.Println("Lektra — document viewer")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  lektra [<document>...]                      Launch the viewer (build with -tags fyne for full UI)")
	fmt.Println("  lektra version|-v|--version                 Show version")
	fmt.Println("  lektra export <document> [flags]            Export pages (see lektra export -h)")
	fmt.Println("  lektra encrypt <src> <dst>                  Wrap a document in an encrypted container")
	fmt.Println("  lektra decrypt <src> <dst>                  Unwrap an encrypted container")
	fmt.Println("  lektra recents                              List recently opened documents")
	fmt.Println("  lektra serve                                Run the highlight sync server")
	fmt.Println()
	fmt.Println("Passwords for encrypt/decrypt/export come from the LEKTRA_PASSWORD environment variable.")
}

func main() {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	defer func() { crash.Recover(nil) }()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println(version.String())
			return
		case "export":
			if err := runExport(args[2:]); err != nil {
				l.Error("export failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "encrypt", "decrypt":
			if len(args) < 4 {
				fmt.Printf("%s requires <src> and <dst>\n", args[1])
				usage()
				os.Exit(2)
			}
			password := os.Getenv("LEKTRA_PASSWORD")
			var err error
			if args[1] == "encrypt" {
				err = doc.Encrypt(args[2], args[3], password)
			} else {
				err = doc.Decrypt(args[2], args[3], password)
			}
			if err != nil {
				l.Error(args[1]+" failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println("Wrote", args[3])
			return
		case "recents":
			if err := runRecents(); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "serve":
			if err := backend.Start(); err != nil {
				l.Error("sync server failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "help", "-h", "--help":
			usage()
			return
		}
	}

	// anything else is a list of documents for the viewer
	if err := ui.Run(args[1:]...); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	preset := fs.String("preset", "print", "export preset: web or print")
	formats := fs.String("format", "", "comma-separated formats: pdf,png,zip (empty uses the preset defaults)")
	pages := fs.String("pages", "", "page selection, 1-based, e.g. 1,3-5 (empty exports all)")
	dpi := fs.Int("dpi", 0, "override the preset DPI")
	out := fs.String("out", ".", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("export requires a document path")
	}
	path, _ := filepath.Abs(fs.Arg(0))

	m, status, err := doc.Open(path, os.Getenv("LEKTRA_PASSWORD"))
	if err != nil {
		return err
	}
	if status != doc.OpenReady {
		return fmt.Errorf("cannot open %s: %v", path, status)
	}
	defer m.Close()

	sel, err := parsePages(*pages)
	if err != nil {
		return err
	}
	var names []string
	if *formats != "" {
		names = strings.Split(*formats, ",")
	}
	opt := export.BatchOptions{
		Preset:      export.PresetName(*preset),
		Formats:     names,
		Pages:       sel,
		DPIOverride: *dpi,
		OutDir:      *out,
	}
	if err := export.BatchExport(context.Background(), m, opt); err != nil {
		return err
	}
	fmt.Println("Exported to", *out)
	return nil
}

// parsePages expands "1,3-5" into zero-based page indexes.
func parsePages(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			a, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("bad page range %q", part)
			}
			b, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || b < a {
				return nil, fmt.Errorf("bad page range %q", part)
			}
			for n := a; n <= b; n++ {
				out = append(out, n-1)
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("bad page number %q", part)
		}
		out = append(out, n-1)
	}
	return out, nil
}

func runRecents() error {
	dbPath, err := recents.DBPath()
	if err != nil {
		return err
	}
	store, err := recents.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(context.Background(), recents.DefaultLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No recent documents.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s (page %d)\n", e.Path, e.Page+1)
	}
	return nil
}
