package studio

import (
	"context"
	"sync"
	"time"
)

// Pipeline accepts lifecycle events and ships them to a single bound
// provider, either immediately or in batches with retry. It is an explicit
// value with its own lifecycle: construct one per composition root, never
// share hidden package state.
//
// Emit is fire and forget by contract: provider failures are logged, maybe
// retried, and never surfaced to the code path that triggered the lifecycle
// action.
type Pipeline struct {
	mu sync.Mutex

	provider EventIngestionProvider
	config   EventsConfig
	queue    []*AuthEvent

	initialized  bool
	shuttingDown bool

	ticker     *time.Ticker
	tickerDone chan struct{}

	logger Logger
}

// PipelineOption customizes a Pipeline at construction time.
type PipelineOption func(*Pipeline)

// WithPipelineLogger replaces the default stdout logger.
func WithPipelineLogger(logger Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline returns an uninitialized pipeline. Emit is a no-op until
// Initialize succeeds with an enabled config that resolves a provider.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{logger: defLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Initialize binds a provider and, when batching, starts the periodic flush.
// Calling it again before Shutdown is an idempotent no-op. A config that is
// disabled or resolves no provider leaves the pipeline dormant without error;
// the dashboard must keep working without an events backend.
func (p *Pipeline) Initialize(cfg EventsConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized || !cfg.Enabled {
		return nil
	}

	provider, err := p.resolveProvider(cfg)
	if err != nil {
		return err
	}
	if provider == nil {
		p.logger.Debug("Event ingestion left disabled, no provider resolved")
		return nil
	}

	p.provider = provider
	p.config = cfg
	p.initialized = true
	p.shuttingDown = false

	if cfg.BatchSize > 1 {
		p.startFlushTimerLocked(cfg.flushInterval())
	}
	return nil
}

func (p *Pipeline) resolveProvider(cfg EventsConfig) (EventIngestionProvider, error) {
	if cfg.Provider != nil {
		return cfg.Provider, nil
	}
	if cfg.Client == nil || cfg.Resolver == nil {
		return nil, nil
	}
	return cfg.Resolver(cfg.ClientKind, cfg.Client)
}

// Emit records one lifecycle event. When the pipeline is dormant and a config
// is supplied, it initializes lazily first. Filters are applied before any
// provider work; the display message and severity are resolved for everything
// that passes. Errors never propagate to the caller.
func (p *Pipeline) Emit(ctx context.Context, kind EventKind, data EventData, cfg ...EventsConfig) {
	p.mu.Lock()
	if !p.initialized && len(cfg) > 0 {
		p.mu.Unlock()
		if err := p.Initialize(cfg[0]); err != nil {
			p.logger.Error("Event pipeline lazy initialize failed: %v", err)
			return
		}
		p.mu.Lock()
	}

	if !p.initialized || p.shuttingDown || p.provider == nil {
		p.mu.Unlock()
		return
	}

	provider := p.provider
	config := p.config
	p.mu.Unlock()

	if !eventAllowed(kind, config.Include, config.Exclude) {
		return
	}

	event := newAuthEvent(kind, data)
	display := ResolveDisplay(kind, event.Status, event.Metadata)
	event.Display = &display

	p.runIngestCallback(ctx, config, event)

	if config.BatchSize > 1 {
		if _, ok := provider.(BatchIngester); ok {
			p.enqueue(event)
			if p.queueLen() >= config.BatchSize {
				p.flush(ctx)
			}
			return
		}
	}

	if err := provider.Ingest(ctx, event); err != nil {
		p.logger.Error("Event ingest failed for %s: %v", kind, err)
		if config.RetryOnError {
			p.enqueue(event)
		}
	}
}

// Flush drains the queue to the provider: one IngestBatch when the provider
// supports it, otherwise concurrent per-event ingests. A failed batch is
// requeued at the front, preserving order relative to later events, when
// RetryOnError is set. No-op while shutting down or when the queue is empty.
func (p *Pipeline) Flush(ctx context.Context) error {
	p.mu.Lock()
	if p.shuttingDown {
		p.mu.Unlock()
		return ErrPipelineShuttingDown
	}
	p.mu.Unlock()
	return p.flush(ctx)
}

func (p *Pipeline) flush(ctx context.Context) error {
	p.mu.Lock()
	if len(p.queue) == 0 || p.provider == nil {
		p.mu.Unlock()
		return nil
	}
	batch := p.queue
	p.queue = nil
	provider := p.provider
	retry := p.config.RetryOnError
	p.mu.Unlock()

	err := p.dispatch(ctx, provider, batch)
	if err == nil {
		return nil
	}

	p.logger.Error("Event flush of %d events failed: %v", len(batch), err)
	if retry {
		p.requeueFront(batch)
	}
	return err
}

func (p *Pipeline) dispatch(ctx context.Context, provider EventIngestionProvider, batch []*AuthEvent) error {
	if batcher, ok := provider.(BatchIngester); ok {
		return batcher.IngestBatch(ctx, batch)
	}

	// Best-effort per-item resend for providers without batch support.
	var wg sync.WaitGroup
	errs := make([]error, len(batch))
	for i, event := range batch {
		wg.Add(1)
		go func(i int, event *AuthEvent) {
			defer wg.Done()
			errs[i] = provider.Ingest(ctx, event)
		}(i, event)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops the flush timer, drains the queue once, releases the
// provider, and resets the pipeline so a later Initialize starts fresh.
// In-flight provider calls are allowed to complete; only future work is
// cancelled.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return nil
	}
	p.shuttingDown = true
	p.stopFlushTimerLocked()
	provider := p.provider
	p.mu.Unlock()

	flushErr := p.flush(ctx)

	var shutdownErr error
	if closer, ok := provider.(Shutdowner); ok {
		shutdownErr = closer.Shutdown(ctx)
	}

	p.mu.Lock()
	p.provider = nil
	p.config = EventsConfig{}
	p.queue = nil
	p.initialized = false
	p.shuttingDown = false
	p.mu.Unlock()

	if flushErr != nil {
		return flushErr
	}
	return shutdownErr
}

// QueueLen reports how many events are waiting for the next flush.
func (p *Pipeline) QueueLen() int {
	return p.queueLen()
}

func (p *Pipeline) queueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Pipeline) enqueue(event *AuthEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shuttingDown {
		return
	}
	p.queue = append(p.queue, event)
	p.enforceBoundLocked()
}

func (p *Pipeline) requeueFront(batch []*AuthEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(batch, p.queue...)
	p.enforceBoundLocked()
}

// enforceBoundLocked drops the oldest events once the configured cap is hit.
// An unbounded queue (MaxQueue == 0) is the documented default: sustained
// provider failure with retry enabled grows memory without limit.
func (p *Pipeline) enforceBoundLocked() {
	max := p.config.MaxQueue
	if max <= 0 || len(p.queue) <= max {
		return
	}
	dropped := len(p.queue) - max
	p.queue = p.queue[dropped:]
	p.logger.Warn("Event queue over capacity, dropped %d oldest events (max %d)", dropped, max)
}

func (p *Pipeline) runIngestCallback(ctx context.Context, cfg EventsConfig, event *AuthEvent) {
	if cfg.OnEventIngest == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("onEventIngest callback panicked for %s: %v", event.Kind, r)
		}
	}()
	if err := cfg.OnEventIngest(ctx, event); err != nil {
		p.logger.Error("onEventIngest callback failed for %s: %v", event.Kind, err)
	}
}

func (p *Pipeline) startFlushTimerLocked(interval time.Duration) {
	p.ticker = time.NewTicker(interval)
	p.tickerDone = make(chan struct{})

	go func(ticker *time.Ticker, done chan struct{}) {
		for {
			select {
			case <-ticker.C:
				p.flush(context.Background())
			case <-done:
				return
			}
		}
	}(p.ticker, p.tickerDone)
}

func (p *Pipeline) stopFlushTimerLocked() {
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
	if p.tickerDone != nil {
		close(p.tickerDone)
		p.tickerDone = nil
	}
}

func eventAllowed(kind EventKind, include, exclude []EventKind) bool {
	if len(include) > 0 {
		for _, k := range include {
			if k == kind {
				return true
			}
		}
		return false
	}
	for _, k := range exclude {
		if k == kind {
			return false
		}
	}
	return true
}
