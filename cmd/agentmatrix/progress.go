package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/agentmatrix/synthesis"
)

// progressMonitor reports synthesis progress on a terminal.
type progressMonitor struct {
	writer    io.Writer
	mu        sync.Mutex
	total     int
	done      int
	failed    int
	startTime time.Time
}

var _ synthesis.Monitor = (*progressMonitor)(nil)

func newProgressMonitor(writer io.Writer) *progressMonitor {
	return &progressMonitor{writer: writer}
}

func (p *progressMonitor) Start(req synthesis.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.total, p.done, p.failed = 0, 0, 0
	fmt.Fprintf(p.writer, "Synthesizing %q from %d documents and %d URLs\n", req.Specialty, len(req.Docs), len(req.URLs))
}

func (p *progressMonitor) URLResolved(url string, _ bool, err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.writer, "  ! %s: %v\n", url, err)
}

func (p *progressMonitor) Chunked(chunks, droppedChunks int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = chunks
	if droppedChunks > 0 {
		fmt.Fprintf(p.writer, "  %d chunks over the cap were dropped\n", droppedChunks)
	}
	if chunks > 0 {
		p.report()
	}
}

func (p *progressMonitor) PartialDone(_ int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if err != nil {
		p.failed++
	}
	p.report()
}

func (p *progressMonitor) Finish(result *synthesis.Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total > 0 {
		fmt.Fprintln(p.writer)
	}
	elapsed := time.Since(p.startTime).Round(time.Millisecond)
	switch {
	case err != nil:
		fmt.Fprintf(p.writer, "Synthesis failed after %s: %v\n", elapsed, err)
	case result.DroppedURLs > 0 || result.URLFailures > 0:
		fmt.Fprintf(p.writer, "Synthesis finished in %s (%d URLs dropped, %d failed)\n", elapsed, result.DroppedURLs, result.URLFailures)
	default:
		fmt.Fprintf(p.writer, "Synthesis finished in %s\n", elapsed)
	}
}

// report prints the current progress. Must be called with lock held.
func (p *progressMonitor) report() {
	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.done) / float64(p.total) * 100.0
	}
	fmt.Fprintf(p.writer, "\rPartials: %d/%d (%.1f%%)", p.done, p.total, percentage)
	if p.failed > 0 {
		fmt.Fprintf(p.writer, " - %d failed", p.failed)
	}
}
