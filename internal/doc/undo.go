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

import "sync"

type opKind int

const (
	opAdd opKind = iota
	opRemove
	opRecolor
)

// annotOp is one reversible annotation change.
type annotOp struct {
	kind      opKind
	annot     Annotation
	prevColor string // for opRecolor
}

// undoStack keeps a bounded undo/redo history of annotation operations.
// A new push invalidates the redo tail. Safe for concurrent use.
type undoStack struct {
	mu       sync.Mutex
	ops      []annotOp
	redoTail []annotOp
	depth    int // max entries kept; oldest dropped beyond this
}

func newUndoStack(depth int) *undoStack {
	if depth <= 0 {
		depth = 64
	}
	return &undoStack{depth: depth}
}

func (s *undoStack) push(op annotOp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, op)
	if len(s.ops) > s.depth {
		s.ops = append([]annotOp(nil), s.ops[len(s.ops)-s.depth:]...)
	}
	s.redoTail = nil
}

// undo pops the most recent operation and moves it to the redo tail.
func (s *undoStack) undo() (annotOp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ops) == 0 {
		return annotOp{}, false
	}
	op := s.ops[len(s.ops)-1]
	s.ops = s.ops[:len(s.ops)-1]
	s.redoTail = append(s.redoTail, op)
	return op, true
}

// redo pops from the redo tail and pushes back onto the undo stack.
func (s *undoStack) redo() (annotOp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.redoTail) == 0 {
		return annotOp{}, false
	}
	op := s.redoTail[len(s.redoTail)-1]
	s.redoTail = s.redoTail[:len(s.redoTail)-1]
	s.ops = append(s.ops, op)
	return op, true
}

func (s *undoStack) canUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ops) > 0
}

func (s *undoStack) canRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redoTail) > 0
}
