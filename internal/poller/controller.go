package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/pulsemeter/internal/settings"
	"github.com/jpalmerr/pulsemeter/internal/store"
)

// State is the controller's polling state.
type State int32

const (
	// StateIdle means no timer is scheduled.
	StateIdle State = iota

	// StateArmed means the timer is scheduled and no request is outstanding.
	StateArmed

	// StateInFlight means a request is outstanding.
	StateInFlight
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateInFlight:
		return "in_flight"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Ticker is the recurring timer used by a [Controller].
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Options configures a [Controller]. Zero fields take defaults.
type Options struct {
	// Fetcher performs requests. Defaults to a new [Client].
	Fetcher Fetcher

	// Store receives outcomes. Defaults to a new [store.MemoryStore].
	Store store.Store

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Timeout is the per-request timeout. Defaults to [DefaultTimeout].
	Timeout time.Duration

	// Extractor overrides the built-in value resolution.
	Extractor ValueExtractor

	// Metrics may be nil.
	Metrics *Metrics

	// NewTicker creates the recurring timer. Defaults to time.NewTicker.
	NewTicker func(time.Duration) Ticker

	// Now defaults to time.Now.
	Now func() time.Time
}

type applyRequest struct {
	snap settings.Snapshot
	done chan struct{}
}

type completion struct {
	gen     uint64
	attempt attempt
}

// Controller owns the polling cadence for one endpoint.
//
// A single loop goroutine serialises configuration changes, timer ticks and
// request completions. Every request carries the generation it was issued
// under; a completion is applied to the store only if its generation is
// still current. Ticks and disarms advance the generation, so a superseded
// request can never write state even if its cancellation is not observed.
//
// All exported methods are safe for concurrent use.
type Controller struct {
	fetcher    Fetcher
	ownsClient bool
	store      store.Store
	logger     *slog.Logger
	timeout    time.Duration
	extractor  ValueExtractor
	metrics    *Metrics
	newTicker  func(time.Duration) Ticker
	now        func() time.Time

	state atomic.Int32

	applyCh  chan applyRequest
	doneCh   chan completion
	loopDone chan struct{}

	mu         sync.Mutex
	started    bool
	stopped    bool
	cancel     context.CancelFunc
	pending    settings.Snapshot
	hasPending bool
	wg         sync.WaitGroup

	// owned by the loop goroutine
	snap      settings.Snapshot
	applied   bool
	ticker    Ticker
	gen       uint64
	cancelReq context.CancelFunc
}

// NewController creates a [Controller]. It does nothing until [Controller.Start].
func NewController(opts Options) *Controller {
	c := &Controller{
		fetcher:   opts.Fetcher,
		store:     opts.Store,
		logger:    opts.Logger,
		timeout:   opts.Timeout,
		extractor: opts.Extractor,
		metrics:   opts.Metrics,
		newTicker: opts.NewTicker,
		now:       opts.Now,
		applyCh:   make(chan applyRequest),
		doneCh:    make(chan completion),
		loopDone:  make(chan struct{}),
	}
	if c.fetcher == nil {
		c.fetcher = NewClient()
		c.ownsClient = true
	}
	if c.store == nil {
		c.store = store.NewMemoryStore()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.newTicker == nil {
		c.newTicker = newTimeTicker
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.metrics.observeState(StateIdle)
	return c
}

// Store returns the store outcomes are written to.
func (c *Controller) Store() store.Store {
	return c.store
}

// State returns the current polling state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Start runs the controller loop in a background goroutine.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started || c.stopped {
		c.mu.Unlock()
		return
	}
	c.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	initial, hasInitial := c.pending, c.hasPending
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer close(c.loopDone)
		c.run(loopCtx, initial, hasInitial)
	}()
}

// Stop halts the loop, cancels any outstanding request and waits for all
// goroutines to complete.
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		if c.cancel != nil {
			c.cancel()
		}
	}
	c.mu.Unlock()

	c.wg.Wait()

	if c.ownsClient {
		if client, ok := c.fetcher.(*Client); ok {
			client.Close()
		}
	}
}

// Apply hands a configuration snapshot to the controller.
//
// Once the loop is running, Apply blocks until the snapshot has been
// processed: after Apply returns with monitoring disabled, no further outcome
// is recorded. Before Start the snapshot is kept and applied when the loop
// starts. After Stop, Apply is a no-op.
func (c *Controller) Apply(snap settings.Snapshot) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if !c.started {
		c.pending, c.hasPending = snap, true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	req := applyRequest{snap: snap, done: make(chan struct{})}
	select {
	case c.applyCh <- req:
	case <-c.loopDone:
		return
	}
	select {
	case <-req.done:
	case <-c.loopDone:
	}
}

// TestOnce issues a single request for snap outside the polling cadence.
//
// It appends an info entry announcing the probe and then the outcome entry to
// the log history, and returns the outcome. Samples, statistics and the timer
// are not touched.
func (c *Controller) TestOnce(ctx context.Context, snap settings.Snapshot) store.LogEntry {
	snap = snap.Normalize()

	if snap.Endpoint == "" {
		entry := store.LogEntry{
			ID:        uuid.NewString(),
			Timestamp: c.now(),
			Outcome:   store.OutcomeWarning,
			Status:    store.ErrorCode(ErrCodeBadRequest),
			Message:   "Endpoint URL is required",
		}
		c.store.AppendLog(entry)
		return entry
	}

	c.store.AppendLog(store.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: c.now(),
		Outcome:   store.OutcomeInfo,
		Status:    store.ErrorCode("INFO"),
		Message:   fmt.Sprintf(msgTestingConnFmt, snap.Endpoint),
	})

	resp := c.fetcher.Fetch(ctx, c.request(snap))
	entry := c.finish(resp).probeEntry()
	c.store.AppendLog(entry)

	c.logger.Info("connection test",
		"endpoint", snap.Endpoint,
		"outcome", entry.Outcome,
		"status", entry.Status.String(),
		"latency_ms", entry.LatencyMs,
	)
	return entry
}

func (c *Controller) run(ctx context.Context, initial settings.Snapshot, hasInitial bool) {
	defer c.disarm()

	if hasInitial {
		c.apply(ctx, initial)
	}

	for {
		var tick <-chan time.Time
		if c.ticker != nil {
			tick = c.ticker.C()
		}

		select {
		case <-ctx.Done():
			return
		case req := <-c.applyCh:
			c.apply(ctx, req.snap)
			close(req.done)
		case <-tick:
			c.poll(ctx)
		case done := <-c.doneCh:
			c.complete(done)
		}
	}
}

// apply diffs next against the current snapshot and re-arms as needed.
func (c *Controller) apply(ctx context.Context, next settings.Snapshot) {
	next = next.Normalize()
	prev, first := c.snap, !c.applied
	c.snap, c.applied = next, true

	armed := c.ticker != nil
	endpointChanged := !first && prev.Endpoint != "" && prev.Endpoint != next.Endpoint

	switch {
	case !next.Active():
		if armed {
			c.disarm()
			c.logger.Info("monitoring stopped", "endpoint", prev.Endpoint)
		}
	case armed && !prev.SameTarget(next):
		c.disarm()
	}

	if endpointChanged {
		c.store.ResetSession()
	}

	if next.Active() && c.ticker == nil {
		c.arm(ctx)
	}
}

func (c *Controller) arm(ctx context.Context) {
	c.ticker = c.newTicker(c.snap.Interval)
	c.setState(StateArmed)
	c.logger.Info("monitoring started",
		"endpoint", c.snap.Endpoint,
		"method", c.snap.Method,
		"interval", c.snap.Interval,
	)
	c.poll(ctx)
}

func (c *Controller) disarm() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.cancelReq != nil {
		c.cancelReq()
		c.cancelReq = nil
	}
	c.gen++
	c.setState(StateIdle)
}

// poll supersedes any outstanding request and issues a new one.
func (c *Controller) poll(ctx context.Context) {
	if c.cancelReq != nil {
		c.cancelReq()
	}
	c.gen++
	gen := c.gen

	reqCtx, cancel := context.WithCancel(ctx)
	c.cancelReq = cancel
	c.setState(StateInFlight)

	req := c.request(c.snap)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		resp := c.fetcher.Fetch(reqCtx, req)
		done := completion{gen: gen, attempt: c.finish(resp)}
		select {
		case c.doneCh <- done:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) complete(done completion) {
	if done.gen != c.gen {
		c.metrics.observeStale()
		c.logger.Debug("discarding stale completion",
			"generation", done.gen,
			"current", c.gen,
		)
		return
	}

	if c.cancelReq != nil {
		c.cancelReq()
		c.cancelReq = nil
	}
	c.setState(StateArmed)

	rec := done.attempt.record()
	c.store.Record(rec)

	c.metrics.observePoll(string(rec.Entry.Outcome), done.attempt.resp.Latency)
	if rec.Value != nil {
		c.metrics.observeValue(*rec.Value)
	}

	if rec.Entry.Outcome == store.OutcomeError {
		c.logger.Warn("poll failed",
			"endpoint", c.snap.Endpoint,
			"status", rec.Entry.Status.String(),
			"message", rec.Entry.Message,
			"latency_ms", rec.Entry.LatencyMs,
		)
		return
	}
	c.logger.Debug("poll succeeded",
		"endpoint", c.snap.Endpoint,
		"status", rec.Entry.Status.String(),
		"message", rec.Entry.Message,
		"latency_ms", rec.Entry.LatencyMs,
	)
}

func (c *Controller) request(snap settings.Snapshot) Request {
	return Request{
		Method:    snap.Method,
		URL:       snap.Endpoint,
		AuthToken: snap.AuthToken,
		Timeout:   c.timeout,
	}
}

// finish resolves the reading of a completed response.
func (c *Controller) finish(resp Response) attempt {
	a := attempt{resp: resp, timeout: c.timeout, at: c.now()}
	if resp.OK() {
		a.value, a.timestamp = c.safeDecode(resp.Body, a.at)
	}
	return a
}

// safeDecode calls the extractor with panic recovery.
// If the extractor panics, it logs the full stack trace with a correlation ID
// and reports an extraction miss.
func (c *Controller) safeDecode(body []byte, now time.Time) (value *float64, ts time.Time) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			c.logger.Error("extractor panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			value, ts = nil, now
		}
	}()
	return decodeReading(body, c.extractor, now)
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
	c.metrics.observeState(s)
}
