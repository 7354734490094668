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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Annotations persist in a JSON sidecar next to the document so the source
// images stay untouched.

func (d *RasterDocument) annotationsPath() string { return d.path + annotationsSuffix }

func (d *RasterDocument) loadAnnotations() {
	data, err := os.ReadFile(d.annotationsPath())
	if err != nil {
		return
	}
	var annots []Annotation
	if err := json.Unmarshal(data, &annots); err != nil {
		d.log.Warn("bad annotations sidecar", slog.String("path", d.annotationsPath()), slog.Any("err", err))
		return
	}
	d.annots = annots
	for _, a := range annots {
		if a.ID >= d.nextID {
			d.nextID = a.ID + 1
		}
	}
}

func (d *RasterDocument) AnnotationsOnPage(pageno int) []Annotation {
	d.annotMu.RLock()
	defer d.annotMu.RUnlock()
	var out []Annotation
	for _, a := range d.annots {
		if a.Pageno == pageno {
			out = append(out, a)
		}
	}
	return out
}

func (d *RasterDocument) HighlightTexts() []Highlight {
	d.annotMu.RLock()
	defer d.annotMu.RUnlock()
	var out []Highlight
	for _, a := range d.annots {
		if a.Kind != AnnotHighlight {
			continue
		}
		text := a.Contents
		if text == "" {
			var r = a.Rect
			for _, q := range a.Quads {
				r = r.Union(q.Bounds())
			}
			text = d.TextInRegion(a.Pageno, r)
		}
		out = append(out, Highlight{Pageno: a.Pageno, Color: a.Color, Text: text})
	}
	return out
}

// AddAnnotation assigns an id, stores the annotation, and records the change
// for undo. Returns the assigned id.
func (d *RasterDocument) AddAnnotation(a Annotation) int64 {
	d.annotMu.Lock()
	a.ID = d.nextID
	d.nextID++
	d.annots = append(d.annots, a)
	d.annotMu.Unlock()
	d.undo.push(annotOp{kind: opAdd, annot: a})
	d.dirty = true
	return a.ID
}

func (d *RasterDocument) RemoveAnnotation(id int64) bool {
	d.annotMu.Lock()
	idx := -1
	for i, a := range d.annots {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.annotMu.Unlock()
		return false
	}
	removed := d.annots[idx]
	d.annots = append(d.annots[:idx], d.annots[idx+1:]...)
	d.annotMu.Unlock()
	d.undo.push(annotOp{kind: opRemove, annot: removed})
	d.dirty = true
	return true
}

func (d *RasterDocument) SetAnnotationColor(id int64, color string) bool {
	d.annotMu.Lock()
	for i := range d.annots {
		if d.annots[i].ID == id {
			prev := d.annots[i].Color
			d.annots[i].Color = color
			d.annotMu.Unlock()
			d.undo.push(annotOp{kind: opRecolor, annot: d.annotByID(id), prevColor: prev})
			d.dirty = true
			return true
		}
	}
	d.annotMu.Unlock()
	return false
}

func (d *RasterDocument) annotByID(id int64) Annotation {
	d.annotMu.RLock()
	defer d.annotMu.RUnlock()
	for _, a := range d.annots {
		if a.ID == id {
			return a
		}
	}
	return Annotation{}
}

func (d *RasterDocument) CanUndo() bool { return d.undo.canUndo() }
func (d *RasterDocument) CanRedo() bool { return d.undo.canRedo() }

func (d *RasterDocument) Undo() bool {
	op, ok := d.undo.undo()
	if !ok {
		return false
	}
	d.applyInverse(op)
	d.dirty = true
	return true
}

func (d *RasterDocument) Redo() bool {
	op, ok := d.undo.redo()
	if !ok {
		return false
	}
	d.applyForward(op)
	d.dirty = true
	return true
}

func (d *RasterDocument) applyInverse(op annotOp) {
	d.annotMu.Lock()
	defer d.annotMu.Unlock()
	switch op.kind {
	case opAdd:
		for i, a := range d.annots {
			if a.ID == op.annot.ID {
				d.annots = append(d.annots[:i], d.annots[i+1:]...)
				return
			}
		}
	case opRemove:
		d.annots = append(d.annots, op.annot)
	case opRecolor:
		for i := range d.annots {
			if d.annots[i].ID == op.annot.ID {
				d.annots[i].Color = op.prevColor
				return
			}
		}
	}
}

func (d *RasterDocument) applyForward(op annotOp) {
	d.annotMu.Lock()
	defer d.annotMu.Unlock()
	switch op.kind {
	case opAdd:
		d.annots = append(d.annots, op.annot)
	case opRemove:
		for i, a := range d.annots {
			if a.ID == op.annot.ID {
				d.annots = append(d.annots[:i], d.annots[i+1:]...)
				return
			}
		}
	case opRecolor:
		for i := range d.annots {
			if d.annots[i].ID == op.annot.ID {
				d.annots[i].Color = op.annot.Color
				return
			}
		}
	}
}

func (d *RasterDocument) Modified() bool { return d.dirty }

// Save writes the annotations sidecar.
func (d *RasterDocument) Save() error { return d.SaveAs(d.path) }

// SaveAs writes the annotations sidecar for the given document path.
func (d *RasterDocument) SaveAs(path string) error {
	d.annotMu.RLock()
	data, err := json.MarshalIndent(d.annots, "", "  ")
	d.annotMu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode annotations: %w", err)
	}
	if err := os.WriteFile(path+annotationsSuffix, data, 0o644); err != nil {
		return fmt.Errorf("write annotations: %w", err)
	}
	d.dirty = false
	return nil
}
