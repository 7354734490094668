/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package render runs page rasterization off the view goroutine. Requests
// queue FIFO with per-page dedupe, a bounded worker pool drains the queue,
// and completions are handed back through the injected post function so the
// view never sees a result on a foreign goroutine.
//
// Generations make cancellation cheap: bumping cancels the generation's
// context, clears the queue, and stamps later requests with the new number.
// A result whose stamp no longer matches is dropped before delivery.
package render

import (
	"context"
	"image"
	"log/slog"
	"runtime"
	"sync"

	"lektra/internal/doc"
)

// Request names one page render at given options.
type Request struct {
	Pageno     int
	Opts       doc.RenderOpts
	Generation uint64
}

// Result is a finished render. Err is non-nil for failed renders; cancelled
// renders are dropped inside the pipeline and never delivered.
type Result struct {
	Pageno     int
	Opts       doc.RenderOpts
	Generation uint64
	Image      image.Image
	Err        error
}

// DefaultWorkers leaves one CPU for the UI.
func DefaultWorkers() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

// Pipeline dispatches renders against a single Model. Safe for use from one
// goroutine (the view's); completions arrive via post.
type Pipeline struct {
	model   doc.Model
	post    func(func())
	deliver func(Result)
	workers int
	log     *slog.Logger

	mu         sync.Mutex
	queue      []Request
	pending    map[int]struct{}
	inFlight   int
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	stopped    bool
	wg         sync.WaitGroup
}

// New builds a pipeline. deliver runs on the post goroutine for every
// completed, still-current render. workers <= 0 selects DefaultWorkers.
func New(model doc.Model, workers int, post func(func()), deliver func(Result), logger *slog.Logger) *Pipeline {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		model:   model,
		post:    post,
		deliver: deliver,
		workers: workers,
		log:     logger,
		pending: make(map[int]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Generation returns the current generation number.
func (p *Pipeline) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Pending reports whether the page is queued or in flight.
func (p *Pipeline) Pending(pageno int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[pageno]
	return ok
}

// QueueLen returns the number of queued, not-yet-started requests.
func (p *Pipeline) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// InFlight returns the number of renders currently running.
func (p *Pipeline) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Enqueue schedules a page render. A page already queued or in flight is not
// scheduled twice; the duplicate is dropped.
func (p *Pipeline) Enqueue(pageno int, opts doc.RenderOpts) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if _, dup := p.pending[pageno]; dup {
		p.mu.Unlock()
		return
	}
	p.pending[pageno] = struct{}{}
	p.queue = append(p.queue, Request{Pageno: pageno, Opts: opts, Generation: p.generation})
	p.pumpLocked()
	p.mu.Unlock()
}

// PruneQueue drops queued requests whose page fails the keep predicate.
// In-flight renders are left alone; their completions still land.
func (p *Pipeline) PruneQueue(keep func(pageno int) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.queue[:0]
	for _, req := range p.queue {
		if keep(req.Pageno) {
			kept = append(kept, req)
		} else {
			delete(p.pending, req.Pageno)
		}
	}
	p.queue = kept
}

// Bump starts a new generation: the old generation's context is cancelled,
// queued requests are discarded, and in-flight renders finish into the void.
func (p *Pipeline) Bump() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return p.generation
	}
	p.cancel()
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.generation++
	p.queue = nil
	p.pending = make(map[int]struct{})
	return p.generation
}

// Stop cancels everything and waits for in-flight renders to unwind. The
// pipeline accepts no work afterwards.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.cancel()
	p.queue = nil
	p.pending = make(map[int]struct{})
	p.mu.Unlock()
	p.wg.Wait()
}

// pumpLocked starts workers while capacity and work remain. Callers hold mu.
func (p *Pipeline) pumpLocked() {
	for p.inFlight < p.workers && len(p.queue) > 0 {
		req := p.queue[0]
		p.queue = p.queue[1:]
		p.inFlight++
		ctx := p.ctx
		p.wg.Add(1)
		go p.run(ctx, req)
	}
}

func (p *Pipeline) run(ctx context.Context, req Request) {
	defer p.wg.Done()
	img, err := p.model.RenderPage(ctx, req.Pageno, req.Opts)

	p.mu.Lock()
	p.inFlight--
	stale := req.Generation != p.generation || p.stopped
	// a stale completion must not unmark a page re-queued under the new
	// generation
	if !stale {
		delete(p.pending, req.Pageno)
	}
	p.pumpLocked()
	p.mu.Unlock()

	if stale || ctx.Err() != nil {
		return
	}
	res := Result{Pageno: req.Pageno, Opts: req.Opts, Generation: req.Generation, Image: img, Err: err}
	if err != nil {
		p.log.Warn("page render failed", slog.Int("pageno", req.Pageno), slog.Any("err", err))
	}
	p.post(func() {
		// the generation may have moved while the completion sat in the
		// post queue; re-check before placing the pixmap
		p.mu.Lock()
		current := req.Generation == p.generation && !p.stopped
		p.mu.Unlock()
		if current {
			p.deliver(res)
		}
	})
}
