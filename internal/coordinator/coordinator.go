package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/scan-io-git/mettalint/internal/config"
	"github.com/scan-io-git/mettalint/internal/decoder"
	"github.com/scan-io-git/mettalint/internal/diagnostics"
	"github.com/scan-io-git/mettalint/internal/host"
	"github.com/scan-io-git/mettalint/internal/invoker"
	"github.com/scan-io-git/mettalint/internal/metrics"
	sharederrors "github.com/scan-io-git/mettalint/pkg/shared/errors"
)

const eventBuffer = 64

// Options configures a Coordinator.
type Options struct {
	Language       host.Language
	Source         string // Tag attached to every published diagnostic
	Invoker        Invoker
	Decoder        *decoder.Decoder
	Sink           diagnostics.Sink
	Notifier       Notifier
	Finder         Finder
	ActiveDocument ActiveDocumentFunc
	Jobs           int // Concurrent documents during a workspace scan
	MaxProcesses   int // Global cap on concurrent analyzer processes
	Metrics        *metrics.Metrics
	Logger         hclog.Logger
}

// OptionsFromConfig fills the pipeline parts of Options from the configuration.
// Host specific fields (Sink, Notifier, Finder, ActiveDocument) are left to the caller.
func OptionsFromConfig(cfg *config.Config, m *metrics.Metrics, logger hclog.Logger) Options {
	dec := decoder.New(cfg.Analyzer.FailureMarkers, logger.Named("decoder"))
	if m != nil {
		dec.OnSkip(m.SkippedFinding)
	}
	return Options{
		Language: host.Language{
			ID:         cfg.Language.ID,
			Name:       cfg.Language.Name,
			Extensions: cfg.Language.Extensions,
		},
		Source:       cfg.Analyzer.Name,
		Invoker:      invoker.NewFromConfig(cfg, logger.Named("invoker")),
		Decoder:      dec,
		Jobs:         config.GetJobs(cfg),
		MaxProcesses: config.GetMaxProcesses(cfg),
		Metrics:      m,
		Logger:       logger,
	}
}

type eventKind int

const (
	eventTrigger eventKind = iota
	eventClose
	eventCompleted
	eventQuery
)

type completion struct {
	req      Request
	findings []decoder.Finding
	err      error
}

type stateReply struct {
	state   State
	tracked bool
}

type event struct {
	kind   eventKind
	doc    host.Document
	waiter chan Outcome
	done   *completion
	reply  chan stateReply
}

// docState is owned by the loop goroutine and never touched elsewhere.
type docState struct {
	doc     host.Document
	running bool
	rerun   bool
	current string
	cancel  context.CancelFunc
	waiters []chan Outcome // served by the running request
	pending []chan Outcome // served by the queued rerun
}

// Coordinator serializes lint requests per document, runs them concurrently across
// documents and publishes only results that are still current.
type Coordinator struct {
	lang       host.Language
	invoker    Invoker
	decoder    *decoder.Decoder
	reconciler *diagnostics.Reconciler
	notifier   Notifier
	finder     Finder
	active     ActiveDocumentFunc
	jobs       int
	procs      *semaphore.Weighted
	metrics    *metrics.Metrics
	logger     hclog.Logger

	events  chan event
	stopped chan struct{}
	docs    map[string]*docState
	workers sync.WaitGroup
	runOnce sync.Once
}

// New creates a Coordinator. Run must be started before requests are served.
func New(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	sink := opts.Sink
	if sink == nil {
		sink = diagnostics.DiscardSink{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	dec := opts.Decoder
	if dec == nil {
		dec = decoder.New(nil, logger.Named("decoder"))
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = 1
	}
	procs := opts.MaxProcesses
	if procs <= 0 {
		procs = jobs
	}

	return &Coordinator{
		lang:       opts.Language,
		invoker:    opts.Invoker,
		decoder:    dec,
		reconciler: diagnostics.NewReconciler(opts.Source, sink, logger.Named("reconciler")),
		notifier:   notifier,
		finder:     opts.Finder,
		active:     opts.ActiveDocument,
		jobs:       jobs,
		procs:      semaphore.NewWeighted(int64(procs)),
		metrics:    m,
		logger:     logger,
		events:     make(chan event, eventBuffer),
		stopped:    make(chan struct{}),
		docs:       make(map[string]*docState),
	}
}

// Store exposes the published diagnostics.
func (c *Coordinator) Store() *diagnostics.Store {
	return c.reconciler.Store()
}

// Language returns the language handled by the coordinator.
func (c *Coordinator) Language() host.Language {
	return c.lang
}

// Run processes events until ctx is cancelled. Running analyzers are killed and
// pending callers are released before Run returns. Run may only be called once.
func (c *Coordinator) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("coordinator is already running")
	}

	defer func() {
		close(c.stopped)
		for key, st := range c.docs {
			if st.cancel != nil {
				st.cancel()
			}
			discard(st.doc, st.waiters)
			discard(st.doc, st.pending)
			delete(c.docs, key)
		}
		c.workers.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

// Open requests a lint of a newly opened document.
func (c *Coordinator) Open(doc host.Document) {
	c.trigger(doc, "open")
}

// Save requests a lint of a saved document.
func (c *Coordinator) Save(doc host.Document) {
	c.trigger(doc, "save")
}

// Close forgets a document, cancels its running analyzer and clears its diagnostics.
func (c *Coordinator) Close(doc host.Document) {
	c.send(event{kind: eventClose, doc: doc})
}

// Lint requests a lint of doc and waits for the outcome. The language check is
// the caller's responsibility.
func (c *Coordinator) Lint(ctx context.Context, doc host.Document) Outcome {
	waiter := make(chan Outcome, 1)
	if !c.send(event{kind: eventTrigger, doc: doc, waiter: waiter}) {
		return Outcome{Err: ErrStopped}
	}
	select {
	case out := <-waiter:
		return out
	case <-ctx.Done():
		return Outcome{Err: ctx.Err()}
	case <-c.stopped:
		return Outcome{Err: ErrStopped}
	}
}

// LintActive lints the document currently focused in the host.
func (c *Coordinator) LintActive(ctx context.Context) error {
	var (
		doc host.Document
		ok  bool
	)
	if c.active != nil {
		doc, ok = c.active()
	}
	if !ok {
		c.notifier.Warn("No active editor found")
		return ErrNoActiveDocument
	}
	if !c.lang.Recognizes(doc) {
		c.notifier.Warn(fmt.Sprintf("Current file is not a %s file", c.lang.Name))
		return ErrNotRecognized
	}
	return c.Lint(ctx, doc).Err
}

// LintWorkspace lints every file the Finder returns, with at most Jobs documents
// in flight, and waits for all of them.
func (c *Coordinator) LintWorkspace(ctx context.Context) (ScanSummary, error) {
	var summary ScanSummary
	if c.finder == nil {
		return summary, errors.New("no workspace finder configured")
	}
	if checker, ok := c.invoker.(analyzerChecker); ok {
		if err := checker.CheckAnalyzer(); err != nil {
			c.notifyFailure(err)
			return summary, err
		}
	}

	c.notifier.Info(fmt.Sprintf("Linting all %s files in workspace...", c.lang.Name))
	paths, err := c.finder.Find(ctx)
	if err != nil {
		c.notifier.Error(fmt.Sprintf("Failed to find %s files: %v", c.lang.Name, err))
		return summary, err
	}
	summary.Files = len(paths)
	c.logger.Debug("workspace scan started", "files", len(paths), "jobs", c.jobs)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.jobs)
	for _, path := range paths {
		doc := host.DocumentFromPath(path, c.lang.ID)
		g.Go(func() error {
			out := c.Lint(ctx, doc)
			mu.Lock()
			summary.add(out)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	c.notifier.Info(fmt.Sprintf("Finished linting all %s files", c.lang.Name))
	c.logger.Debug("workspace scan finished",
		"succeeded", summary.Succeeded, "failed", summary.Failed, "discarded", summary.Discarded)
	return summary, ctx.Err()
}

// ExecuteCommand runs a host command by identifier.
func (c *Coordinator) ExecuteCommand(ctx context.Context, name string) error {
	switch name {
	case CommandLint:
		return c.LintActive(ctx)
	case CommandLintAll:
		_, err := c.LintWorkspace(ctx)
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}

// State reports the lifecycle state of doc and whether the coordinator tracks it.
func (c *Coordinator) State(doc host.Document) (State, bool) {
	reply := make(chan stateReply, 1)
	if !c.send(event{kind: eventQuery, doc: doc, reply: reply}) {
		return StateRemoved, false
	}
	select {
	case r := <-reply:
		return r.state, r.tracked
	case <-c.stopped:
		return StateRemoved, false
	}
}

func (c *Coordinator) trigger(doc host.Document, reason string) {
	if !c.lang.Recognizes(doc) {
		c.logger.Trace("ignoring document", "uri", doc.URI, "reason", reason)
		return
	}
	c.send(event{kind: eventTrigger, doc: doc})
}

func (c *Coordinator) send(ev event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.stopped:
		return false
	}
}

func (c *Coordinator) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case eventTrigger:
		c.handleTrigger(ctx, ev.doc, ev.waiter)
	case eventClose:
		c.handleClose(ev.doc)
	case eventCompleted:
		c.handleCompleted(ctx, ev.done)
	case eventQuery:
		ev.reply <- c.query(ev.doc)
	}
}

func (c *Coordinator) handleTrigger(ctx context.Context, doc host.Document, waiter chan Outcome) {
	key := doc.Key()
	st, ok := c.docs[key]
	if !ok {
		st = &docState{}
		c.docs[key] = st
	}
	st.doc = doc

	if st.running {
		st.rerun = true
		if waiter != nil {
			st.pending = append(st.pending, waiter)
		}
		c.logger.Trace("lint already running, rerun queued", "uri", key)
		return
	}

	var waiters []chan Outcome
	if waiter != nil {
		waiters = append(waiters, waiter)
	}
	c.start(ctx, st, waiters)
}

func (c *Coordinator) start(ctx context.Context, st *docState, waiters []chan Outcome) {
	req := Request{
		ID:          uuid.NewString(),
		Document:    st.doc,
		Path:        st.doc.Path,
		RequestedAt: time.Now(),
	}
	runCtx, cancel := context.WithCancel(ctx)
	st.running = true
	st.current = req.ID
	st.cancel = cancel
	st.waiters = waiters

	c.logger.Debug("lint request issued", "uri", req.Document.URI, "request", req.ID)
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		findings, err := c.execute(runCtx, req)
		c.send(event{kind: eventCompleted, done: &completion{req: req, findings: findings, err: err}})
	}()
}

// execute runs on a worker goroutine and touches no coordinator state.
func (c *Coordinator) execute(ctx context.Context, req Request) ([]decoder.Finding, error) {
	if err := c.procs.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.procs.Release(1)

	c.metrics.Started()
	defer c.metrics.Finished()

	started := time.Now()
	res, err := c.invoker.Invoke(ctx, req.Path)
	if err != nil {
		c.metrics.ObserveInvocation(outcomeLabel(err), time.Since(started))
		return nil, err
	}
	findings, err := c.decoder.DecodeResult(res)
	c.metrics.ObserveInvocation(outcomeLabel(err), res.Duration)
	return findings, err
}

func (c *Coordinator) handleCompleted(ctx context.Context, done *completion) {
	key := done.req.Document.Key()
	st, ok := c.docs[key]
	if !ok || st.current != done.req.ID {
		c.metrics.Discarded()
		c.logger.Debug("discarding stale result", "uri", key, "request", done.req.ID)
		return
	}

	st.cancel()
	st.running = false
	st.current = ""
	st.cancel = nil

	out := c.apply(done)
	for _, w := range st.waiters {
		w <- out
	}
	st.waiters = nil

	if st.rerun {
		st.rerun = false
		pending := st.pending
		st.pending = nil
		c.start(ctx, st, pending)
	}
}

func (c *Coordinator) apply(done *completion) Outcome {
	doc := done.req.Document
	out := Outcome{Request: done.req, Err: done.err}

	switch {
	case done.err == nil:
		diags := c.reconciler.Reconcile(doc, done.findings)
		c.metrics.Published()
		out.Diagnostics = len(diags)
		c.logger.Debug("diagnostics published", "uri", doc.URI, "count", len(diags))
	case errors.Is(done.err, context.Canceled):
		out.Discarded = true
	case sharederrors.KeepsPriorDiagnostics(done.err):
		c.logger.Warn("lint failed, keeping previous diagnostics", "uri", doc.URI, "error", done.err)
		c.notifyFailure(done.err)
	default:
		c.logger.Warn("lint failed, clearing diagnostics", "uri", doc.URI, "error", done.err)
		c.reconciler.Remove(doc)
		c.notifyFailure(done.err)
	}
	return out
}

func (c *Coordinator) handleClose(doc host.Document) {
	key := doc.Key()
	if st, ok := c.docs[key]; ok {
		if st.cancel != nil {
			st.cancel()
		}
		discard(doc, st.waiters)
		discard(doc, st.pending)
		delete(c.docs, key)
		c.logger.Debug("document closed", "uri", key, "running", st.running)
	}
	c.reconciler.Remove(doc)
}

func (c *Coordinator) query(doc host.Document) stateReply {
	st, ok := c.docs[doc.Key()]
	switch {
	case !ok:
		return stateReply{state: StateIdle}
	case st.running:
		return stateReply{state: StateRunning, tracked: true}
	default:
		return stateReply{state: StateIdle, tracked: true}
	}
}

func (c *Coordinator) notifyFailure(err error) {
	var (
		missing   *sharederrors.AnalyzerMissingError
		execution *sharederrors.AnalyzerExecutionError
		malformed *sharederrors.MalformedOutputError
	)
	switch {
	case errors.As(err, &missing):
		c.notifier.Error(fmt.Sprintf("%s linter script not found at: %s", c.lang.Name, missing.Path))
	case errors.As(err, &execution):
		c.notifier.Error(fmt.Sprintf("%s linter error: %s", c.lang.Name, execution.Stderr))
	case errors.As(err, &malformed):
		c.notifier.Error(fmt.Sprintf("Failed to parse %s linter output: %s", c.lang.Name, malformed.Reason))
	default:
		c.notifier.Error(fmt.Sprintf("%s linter failed: %v", c.lang.Name, err))
	}
}

func discard(doc host.Document, waiters []chan Outcome) {
	for _, w := range waiters {
		w <- Outcome{Request: Request{Document: doc}, Discarded: true}
	}
}

func outcomeLabel(err error) string {
	var (
		missing   *sharederrors.AnalyzerMissingError
		invalid   *sharederrors.InvalidTargetError
		spawn     *sharederrors.SpawnError
		timeout   *sharederrors.TimeoutError
		execution *sharederrors.AnalyzerExecutionError
		malformed *sharederrors.MalformedOutputError
	)
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &missing):
		return metrics.OutcomeMissing
	case errors.As(err, &invalid):
		return metrics.OutcomeInvalid
	case errors.As(err, &timeout):
		return metrics.OutcomeTimeout
	case errors.As(err, &spawn):
		return metrics.OutcomeSpawn
	case errors.As(err, &execution):
		return metrics.OutcomeExecution
	case errors.As(err, &malformed):
		return metrics.OutcomeMalformed
	default:
		return metrics.OutcomeCancelled
	}
}
