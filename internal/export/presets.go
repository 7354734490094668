/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"lektra/internal/doc"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"   // screen-resolution PNG + archive
	PresetPrint PresetName = "print" // high-resolution PDF
)

// BatchOptions controls batch export across multiple formats.
//
// Path semantics:
//   - Single-file outputs (pdf, zip) are named after the document in OutDir.
//   - Per-page PNG output goes into a png/ subfolder of OutDir.
//
//nolint:revive // keep fields explicit for clarity
type BatchOptions struct {
	Preset      PresetName
	Formats     []string // allowed: pdf, png, zip; empty means preset defaults
	Pages       []int    // zero-based; empty means all pages
	DPIOverride int      // when > 0 overrides the preset DPI
	OutDir      string
}

// BatchExport runs exports according to the given preset.
func BatchExport(ctx context.Context, m doc.Model, opt BatchOptions) error {
	if m == nil {
		return fmt.Errorf("document model is nil")
	}
	if opt.OutDir == "" {
		return fmt.Errorf("output directory is required")
	}

	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	for i := range formats {
		formats[i] = strings.ToLower(strings.TrimSpace(formats[i]))
	}

	base := strings.TrimSuffix(filepath.Base(m.FilePath()), filepath.Ext(m.FilePath()))
	if base == "" {
		base = "document"
	}
	o := Options{DPI: presetDPI(opt.Preset), Pages: opt.Pages}
	if opt.DPIOverride > 0 {
		o.DPI = opt.DPIOverride
	}

	for _, f := range formats {
		switch f {
		case "pdf":
			out := filepath.Join(opt.OutDir, base+".pdf")
			if err := ExportPDF(ctx, m, out, o); err != nil {
				return fmt.Errorf("pdf export: %w", err)
			}
		case "png":
			outDir := filepath.Join(opt.OutDir, "png")
			if err := ExportPagePNGs(ctx, m, outDir, o); err != nil {
				return fmt.Errorf("png export: %w", err)
			}
		case "zip":
			out := filepath.Join(opt.OutDir, base+".zip")
			if err := ExportArchive(ctx, m, out, o); err != nil {
				return fmt.Errorf("archive export: %w", err)
			}
		default:
			return fmt.Errorf("unknown format: %s", f)
		}
	}
	return nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png", "zip"}
	case PresetPrint:
		return []string{"pdf"}
	default:
		return []string{"pdf"}
	}
}

func presetDPI(p PresetName) int {
	switch p {
	case PresetWeb:
		return 96
	case PresetPrint:
		return 300
	default:
		return defaultDPI
	}
}
