package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/agentmatrix/ai"
	"github.com/poiesic/agentmatrix/core"
	"github.com/poiesic/agentmatrix/fetch"
	"github.com/poiesic/agentmatrix/governor"
)

const (
	// DefaultMaxURLs is the number of URLs resolved per request. Extra URLs are dropped.
	DefaultMaxURLs = 10

	// DefaultMaxItemChars is the per-document and per-URL ceiling.
	DefaultMaxItemChars = 120000

	// DefaultModel is used when no model is configured.
	DefaultModel = "llama-3.3-70b-versatile"
)

// Request is the input of one synthesis run.
type Request struct {
	Specialty   string
	Docs        []string
	URLs        []string
	Temperature float64
}

// Result is the outcome of a synthesis run.
// The dropped counters make the silent caps visible to callers.
type Result struct {
	Matrix        string
	Chunks        int
	DroppedURLs   int
	DroppedChunks int
	URLFailures   int
	FailedChunks  int
	CorpusDigest  string
}

// Synthesizer turns raw documents and URLs into a knowledge matrix.
// It is safe for concurrent use.
type Synthesizer struct {
	completer    ai.Completer
	fetcher      fetch.Fetcher
	pool         *ants.Pool
	budgets      governor.Budgets
	model        string
	maxURLs      int
	maxItemChars int
	tolerate     bool
	deadline     time.Duration
	monitor      Monitor
	logger       *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer) error

// WithPoolSize sets the worker pool size shared by URL resolution and the map phase.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *Synthesizer) error {
		if size < 1 {
			return fmt.Errorf("pool size must be positive, got %d", size)
		}
		if s.pool != nil {
			s.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithBudgets sets the size budgets. They are validated.
func WithBudgets(b governor.Budgets) Option {
	return func(s *Synthesizer) error {
		if err := b.Validate(); err != nil {
			return err
		}
		s.budgets = b
		return nil
	}
}

// WithModel sets the model used for both phases.
func WithModel(model string) Option {
	return func(s *Synthesizer) error {
		if model == "" {
			return errors.New("model cannot be empty")
		}
		s.model = model
		return nil
	}
}

// WithMonitor installs observation hooks.
func WithMonitor(m Monitor) Option {
	return func(s *Synthesizer) error {
		if m == nil {
			m = &noopMonitor{}
		}
		s.monitor = m
		return nil
	}
}

// WithTolerateMapFailures makes a failed chunk degrade to a gap marker instead of
// aborting the run. The consolidation call failing still aborts.
func WithTolerateMapFailures(tolerate bool) Option {
	return func(s *Synthesizer) error {
		s.tolerate = tolerate
		return nil
	}
}

// WithDeadline bounds a whole run. Zero means no deadline.
func WithDeadline(d time.Duration) Option {
	return func(s *Synthesizer) error {
		if d < 0 {
			return errors.New("deadline cannot be negative")
		}
		s.deadline = d
		return nil
	}
}

// WithMaxURLs sets how many URLs are resolved per request.
func WithMaxURLs(n int) Option {
	return func(s *Synthesizer) error {
		if n < 0 {
			return errors.New("max URLs cannot be negative")
		}
		s.maxURLs = n
		return nil
	}
}

// WithMaxItemChars sets the per-document and per-URL ceiling.
func WithMaxItemChars(n int) Option {
	return func(s *Synthesizer) error {
		if n < 1 {
			return errors.New("max item chars must be positive")
		}
		s.maxItemChars = n
		return nil
	}
}

// NewSynthesizer creates a synthesizer. Call Release when done.
func NewSynthesizer(completer ai.Completer, fetcher fetch.Fetcher, opts ...Option) (*Synthesizer, error) {
	if completer == nil {
		return nil, ErrCompleterRequired
	}
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	s := &Synthesizer{
		completer:    completer,
		fetcher:      fetcher,
		pool:         pool,
		budgets:      governor.DefaultBudgets(),
		model:        DefaultModel,
		maxURLs:      DefaultMaxURLs,
		maxItemChars: DefaultMaxItemChars,
		monitor:      &noopMonitor{},
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(s); optErr != nil {
			s.Release()
			return nil, optErr
		}
	}
	s.logger = s.logger.With("component", "synthesizer")
	return s, nil
}

// Release releases the worker pool.
// The synthesizer should not be used after calling Release.
func (s *Synthesizer) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// Budgets returns the budgets in effect.
func (s *Synthesizer) Budgets() governor.Budgets {
	return s.budgets
}

// Synthesize runs the full map-reduce and returns the matrix.
// It returns governor.ErrPayloadTooLarge before any completion call when the corpus
// exceeds the hard ceiling, and ErrSynthesisFailed when a completion call fails.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (result *Result, err error) {
	if s.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deadline)
		defer cancel()
	}

	s.monitor.Start(req)
	defer func() {
		s.monitor.Finish(result, err)
	}()

	result = &Result{}

	urls := req.URLs
	if len(urls) > s.maxURLs {
		result.DroppedURLs = len(urls) - s.maxURLs
		urls = urls[:s.maxURLs]
		s.logger.Warn("dropping URLs over the cap", "dropped", result.DroppedURLs, "cap", s.maxURLs)
	}

	s.logger.Info("synthesis started", "specialty", req.Specialty, "docs", len(req.Docs), "urls", len(urls))

	urlTexts, failures, err := s.resolveURLs(ctx, urls)
	if err != nil {
		return nil, err
	}
	result.URLFailures = failures

	corpus, segments := s.assemble(req.Specialty, req.Docs, urlTexts)
	if segments == 0 {
		s.logger.Info("nothing to synthesize")
		result.Matrix = EmptyCorpusMatrix
		return result, nil
	}

	if err := s.budgets.GuardPayloadSize(governor.Len(corpus)); err != nil {
		s.logger.Warn("corpus rejected", "chars", governor.Len(corpus), "ceiling", s.budgets.HardCeiling())
		return nil, err
	}

	corpus = governor.Truncate(corpus, s.budgets.MaxTotalChars)
	result.CorpusDigest = core.Digest([]byte(corpus))

	chunks, dropped := governor.Chunk(corpus, s.budgets.ChunkChars, s.budgets.MaxPartials)
	result.Chunks = len(chunks)
	result.DroppedChunks = dropped
	s.monitor.Chunked(len(chunks), dropped)
	if dropped > 0 {
		s.logger.Warn("dropping chunks over the cap", "dropped", dropped, "cap", s.budgets.MaxPartials)
	}
	if len(chunks) == 0 {
		result.Matrix = EmptyCorpusMatrix
		return result, nil
	}

	partials, failed, err := s.mapChunks(ctx, req, chunks)
	if err != nil {
		return nil, err
	}
	result.FailedChunks = failed

	matrix, err := s.reduce(ctx, req, partials)
	if err != nil {
		return nil, err
	}
	result.Matrix = matrix

	s.logger.Info("synthesis finished",
		"specialty", req.Specialty,
		"chunks", result.Chunks,
		"dropped_urls", result.DroppedURLs,
		"dropped_chunks", result.DroppedChunks,
		"url_failures", result.URLFailures,
		"digest", result.CorpusDigest,
	)
	return result, nil
}

// resolveURLs fetches every URL on the pool. Position i of the output always
// belongs to urls[i], whatever order the fetches complete in.
func (s *Synthesizer) resolveURLs(ctx context.Context, urls []string) ([]string, int, error) {
	texts := make([]string, len(urls))
	failed := make([]bool, len(urls))

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer wg.Done()
			texts[i], failed[i] = s.resolveURL(ctx, u)
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, 0, fmt.Errorf("scheduling fetch of %s: %w", u, submitErr)
		}
	}
	wg.Wait()

	failures := 0
	for _, f := range failed {
		if f {
			failures++
		}
	}
	return texts, failures, nil
}

func (s *Synthesizer) resolveURL(ctx context.Context, u string) (string, bool) {
	doc, err := s.fetcher.Fetch(ctx, u)
	if err != nil {
		s.logger.Warn("url fetch failed", "url", u, "err", err)
		s.monitor.URLResolved(u, false, err)
		return fetchFailureText(u, err), true
	}
	if !fetch.IsTextual(doc.ContentType) {
		s.logger.Debug("non-textual url", "url", u, "content_type", doc.ContentType)
		s.monitor.URLResolved(u, false, nil)
		return nonTextualText(doc.ContentType), false
	}
	s.monitor.URLResolved(u, true, nil)
	return doc.Body, false
}

// assemble builds the corpus: framing block, then documents, then URLs, each in
// input order. It also reports how many document or URL segments survived.
func (s *Synthesizer) assemble(specialty string, docs, urlTexts []string) (string, int) {
	parts := []string{framingPrompt(specialty)}

	add := func(tag, text string) {
		text = governor.EnforceMaxChars(text, s.maxItemChars)
		if text == "" {
			return
		}
		parts = append(parts, tag+text)
	}
	for _, d := range docs {
		add(docTag, d)
	}
	for _, t := range urlTexts {
		add(urlTag, t)
	}

	return strings.Join(parts, segmentSeparator), len(parts) - 1
}

// mapChunks summarizes every chunk on the pool. partials[i] always comes from chunks[i].
func (s *Synthesizer) mapChunks(ctx context.Context, req Request, chunks []string) ([]string, int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	partials := make([]string, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer wg.Done()
			text, err := s.completer.Complete(ctx, ai.CompletionRequest{
				Model: s.model,
				Messages: []ai.Message{
					ai.SystemMessage(mapSystemPrompt),
					ai.UserMessage(mapUserPrompt(req.Specialty, chunk)),
				},
				Temperature: req.Temperature,
				MaxTokens:   mapMaxTokens,
			})
			s.monitor.PartialDone(i, err)
			if err != nil {
				errs[i] = err
				if !s.tolerate {
					cancel()
				}
				return
			}
			partials[i] = text
		})
		if submitErr != nil {
			wg.Done()
			cancel()
			wg.Wait()
			return nil, 0, fmt.Errorf("scheduling chunk %d: %w", i, submitErr)
		}
	}
	wg.Wait()

	if !s.tolerate {
		if i, err := firstFailure(errs); err != nil {
			s.logger.Error("map phase failed", "chunk", i, "err", err)
			return nil, 1, fmt.Errorf("%w: chunk %d of %d: %w", ErrSynthesisFailed, i+1, len(chunks), err)
		}
		return partials, 0, nil
	}

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		s.logger.Warn("partial unavailable", "chunk", i, "err", err)
		partials[i] = mapGapText(i, err)
	}
	if failed == len(chunks) {
		return nil, failed, fmt.Errorf("%w: every chunk failed: %w", ErrSynthesisFailed, errs[0])
	}
	return partials, failed, nil
}

// firstFailure returns the lowest-index error, preferring one that is not the
// cancellation a sibling failure triggered.
func firstFailure(errs []error) (int, error) {
	first := -1
	for i, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return i, err
		}
		if first < 0 {
			first = i
		}
	}
	if first < 0 {
		return -1, nil
	}
	return first, errs[first]
}

func (s *Synthesizer) reduce(ctx context.Context, req Request, partials []string) (string, error) {
	text, err := s.completer.Complete(ctx, ai.CompletionRequest{
		Model: s.model,
		Messages: []ai.Message{
			ai.SystemMessage(reduceSystemPrompt),
			ai.UserMessage(reduceUserPrompt(req.Specialty, partials)),
		},
		Temperature: req.Temperature,
		MaxTokens:   reduceMaxTokens,
	})
	if err != nil {
		s.logger.Error("reduce phase failed", "partials", len(partials), "err", err)
		return "", fmt.Errorf("%w: consolidating %d partials: %w", ErrSynthesisFailed, len(partials), err)
	}
	return text, nil
}
