package bootstrap

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"balgil/core"
	"balgil/metrics"
	"balgil/util/goroutine"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTimings overrides the bootstrap delays
func WithTimings(t Timings) Option {
	return func(o *Orchestrator) { o.timings = t }
}

// WithTracer sets the tracer used for bootstrap spans
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// Orchestrator sequences client startup. Run brings the subsystems up
// behind the splash hold, DecideAndTransition picks the first screen, and
// the connectivity watcher installed by Run keeps triggering syncs until
// Close.
type Orchestrator struct {
	subs    Subsystems
	timings Timings
	logger  *zap.SugaredLogger
	tracer  trace.Tracer

	state atomic.Int32

	runOnce  sync.Once
	joined   chan struct{}
	outcomes []InitOutcome

	decideOnce sync.Once
	decision   StartupDecision

	mu          sync.Mutex
	late        []InitOutcome
	timers      []*time.Timer
	debounce    *time.Timer
	unsubscribe func()
	closed      bool
}

// NewOrchestrator creates an idle orchestrator
func NewOrchestrator(subs Subsystems, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		subs:    subs,
		timings: DefaultTimings(),
		logger:  zap.NewNop().Sugar(),
		tracer:  noop.NewTracerProvider().Tracer(tracerName),
		joined:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current bootstrap state
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Joined is closed once Run's splash hold and subsystem init have both settled
func (o *Orchestrator) Joined() <-chan struct{} {
	return o.joined
}

// Run holds the splash screen while initializing the subsystems, waits for
// both to settle and installs the connectivity watcher. Only the first call
// does any work; every call returns the outcomes of that first run.
// Cancelling ctx does not abort the sequence.
func (o *Orchestrator) Run(ctx context.Context) []InitOutcome {
	o.runOnce.Do(func() {
		o.run(context.WithoutCancel(ctx))
	})
	<-o.joined
	out := make([]InitOutcome, len(o.outcomes))
	copy(out, o.outcomes)
	return out
}

func (o *Orchestrator) run(ctx context.Context) {
	o.state.Store(int32(StateInitializing))
	ctx, span := o.tracer.Start(ctx, "bootstrap.run")
	defer span.End()

	start := time.Now()
	o.logger.Infow("Bootstrap started",
		"splash", o.timings.Splash,
		"data_store_timeout", o.timings.DataStoreTimeout)

	splashDone := make(chan struct{})
	go func() {
		defer close(splashDone)
		hold := time.NewTimer(o.timings.Splash)
		defer hold.Stop()
		<-hold.C
	}()

	initDone := make(chan []InitOutcome, 1)
	go func() {
		initDone <- o.initSubsystems(ctx)
	}()

	<-splashDone
	outcomes := <-initDone

	elapsed := time.Since(start)
	metrics.BootstrapDuration.Observe(elapsed.Seconds())
	span.SetAttributes(attribute.Int64("bootstrap.join_ms", elapsed.Milliseconds()))
	o.logger.Infow("Bootstrap join complete", "elapsed", elapsed, "outcomes", summarize(outcomes))

	o.installWatcher()

	o.outcomes = outcomes
	close(o.joined)
}

// initSubsystems starts each initializer in priority order. Nothing an
// initializer does can stop the ones after it.
func (o *Orchestrator) initSubsystems(ctx context.Context) []InitOutcome {
	outcomes := make([]InitOutcome, 0, 4)

	var telemetryInit, socialInit, uiInit func(context.Context) error
	if o.subs.Telemetry != nil {
		telemetryInit = o.subs.Telemetry.Init
	}
	if o.subs.Social != nil {
		socialInit = o.subs.Social.Init
	}
	if o.subs.UI != nil {
		uiInit = o.subs.UI.Init
	}

	outcomes = append(outcomes,
		o.attempt(ctx, SubsystemTelemetry, telemetryInit),
		o.attempt(ctx, SubsystemSocial, socialInit),
		o.attempt(ctx, SubsystemUI, uiInit),
		o.attemptDataStore(ctx),
	)
	return outcomes
}

// attempt runs one initializer behind a failure boundary
func (o *Orchestrator) attempt(ctx context.Context, name string, init func(context.Context) error) InitOutcome {
	if init == nil {
		return o.settle(InitOutcome{Subsystem: name, Status: StatusSkipped})
	}

	spanCtx, span := o.tracer.Start(ctx, "bootstrap.init."+name)
	defer span.End()

	start := time.Now()
	err := goroutine.Guard(func() error { return init(spanCtx) })
	outcome := outcomeFor(name, err, time.Since(start))
	recordSpan(span, outcome)
	return o.settle(outcome)
}

// attemptDataStore races the data store initializer against
// DataStoreTimeout. The loser is abandoned, not cancelled: a late
// initializer keeps running and its outcome is recorded as late.
func (o *Orchestrator) attemptDataStore(ctx context.Context) InitOutcome {
	if o.subs.Data == nil {
		return o.settle(InitOutcome{Subsystem: SubsystemData, Status: StatusSkipped})
	}

	spanCtx, span := o.tracer.Start(ctx, "bootstrap.init."+SubsystemData)
	defer span.End()

	data := o.subs.Data
	start := time.Now()
	result := make(chan error, 1)
	go func() {
		result <- goroutine.Guard(func() error { return data.Init(spanCtx) })
	}()

	timeout := time.NewTimer(o.timings.DataStoreTimeout)
	defer timeout.Stop()

	select {
	case err := <-result:
		outcome := outcomeFor(SubsystemData, err, time.Since(start))
		recordSpan(span, outcome)
		return o.settle(outcome)

	case <-timeout.C:
		outcome := InitOutcome{
			Subsystem: SubsystemData,
			Status:    StatusTimedOut,
			Err:       fmt.Errorf("%w: %s after %s", ErrSubsystemInitTimeout, SubsystemData, o.timings.DataStoreTimeout),
			Duration:  time.Since(start),
		}
		recordSpan(span, outcome)
		go o.awaitLate(start, result)
		return o.settle(outcome)
	}
}

func (o *Orchestrator) awaitLate(start time.Time, result <-chan error) {
	outcome := outcomeFor(SubsystemData, <-result, time.Since(start))
	metrics.LateInits.WithLabelValues(outcome.Subsystem, string(outcome.Status)).Inc()

	if outcome.Err != nil {
		o.logger.Warnw("Abandoned initializer failed after timeout",
			"subsystem", outcome.Subsystem,
			"duration", outcome.Duration,
			"error", outcome.Err)
	} else {
		o.logger.Infow("Abandoned initializer completed after timeout",
			"subsystem", outcome.Subsystem,
			"duration", outcome.Duration)
	}

	o.mu.Lock()
	o.late = append(o.late, outcome)
	o.mu.Unlock()
}

// LateOutcomes returns outcomes of abandoned initializers that settled
// after the orchestrator moved on
func (o *Orchestrator) LateOutcomes() []InitOutcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]InitOutcome, len(o.late))
	copy(out, o.late)
	return out
}

func (o *Orchestrator) settle(outcome InitOutcome) InitOutcome {
	metrics.SubsystemInits.WithLabelValues(outcome.Subsystem, string(outcome.Status)).Inc()
	if outcome.Status != StatusSkipped {
		metrics.SubsystemInitDuration.WithLabelValues(outcome.Subsystem).Observe(outcome.Duration.Seconds())
	}

	switch outcome.Status {
	case StatusSuccess:
		o.logger.Infow("Subsystem initialized", "subsystem", outcome.Subsystem, "duration", outcome.Duration)
	case StatusFailed:
		o.logger.Errorw("Subsystem init failed", "subsystem", outcome.Subsystem, "error", outcome.Err)
	case StatusTimedOut:
		o.logger.Warnw("Subsystem init timed out, continuing without it",
			"subsystem", outcome.Subsystem,
			"timeout", o.timings.DataStoreTimeout)
	case StatusSkipped:
		o.logger.Debugw("Subsystem absent", "subsystem", outcome.Subsystem)
	}
	return outcome
}

func outcomeFor(name string, err error, d time.Duration) InitOutcome {
	if err != nil {
		return InitOutcome{
			Subsystem: name,
			Status:    StatusFailed,
			Err:       fmt.Errorf("%w: %s: %w", ErrSubsystemInit, name, err),
			Duration:  d,
		}
	}
	return InitOutcome{Subsystem: name, Status: StatusSuccess, Duration: d}
}

func recordSpan(span trace.Span, outcome InitOutcome) {
	span.SetAttributes(
		attribute.String("subsystem", outcome.Subsystem),
		attribute.String("status", string(outcome.Status)),
	)
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, string(outcome.Status))
	}
}

func summarize(outcomes []InitOutcome) map[string]string {
	out := make(map[string]string, len(outcomes))
	for _, oc := range outcomes {
		out[oc.Subsystem] = string(oc.Status)
	}
	return out
}

// DecideAndTransition reads the onboarding flag and shows the first screen.
// It waits for Run's join and decides only once; later calls return the
// first decision. If ctx ends while the join is still pending, it returns
// a decision carrying ctx's error without deciding. A completed join always
// decides, even under an already cancelled ctx.
func (o *Orchestrator) DecideAndTransition(ctx context.Context) StartupDecision {
	if !o.awaitJoin(ctx) {
		return StartupDecision{Err: ctx.Err()}
	}

	o.decideOnce.Do(func() {
		o.decision = o.decide(context.WithoutCancel(ctx))
	})
	return o.decision
}

// awaitJoin reports whether Run's join has completed. The join wins over a
// ctx that is done at the same time.
func (o *Orchestrator) awaitJoin(ctx context.Context) bool {
	select {
	case <-o.joined:
		return true
	default:
	}
	select {
	case <-o.joined:
		return true
	case <-ctx.Done():
	}
	select {
	case <-o.joined:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) decide(ctx context.Context) StartupDecision {
	o.state.Store(int32(StateDeciding))
	defer o.state.Store(int32(StateSettled))

	ctx, span := o.tracer.Start(ctx, "bootstrap.decide")
	defer span.End()

	var (
		decision StartupDecision
		shown    core.ScreenID
	)

	err := goroutine.Guard(func() error {
		decision.OnboardingComplete = o.loadOnboarding(ctx)
		if !decision.OnboardingComplete {
			decision.TargetScreen = core.ScreenPermission
			shown = core.ScreenPermission
			return o.show(core.ScreenPermission)
		}

		decision.TargetScreen = core.ScreenMain
		shown = core.ScreenMain
		if err := o.show(core.ScreenMain); err != nil {
			return err
		}
		return o.enterMain(ctx)
	})

	reason := "not_onboarded"
	if decision.OnboardingComplete {
		reason = "onboarded"
	}

	if err != nil {
		reason = "fallback"
		decision.Err = fmt.Errorf("%w: %w", ErrDecision, err)
		decision.TargetScreen = core.ScreenMain
		span.RecordError(decision.Err)
		span.SetStatus(codes.Error, "fallback to main screen")
		o.logger.Errorw("Startup decision failed, falling back to main screen", "error", err)

		if shown != core.ScreenMain {
			fallbackErr := goroutine.Guard(func() error { return o.show(core.ScreenMain) })
			if fallbackErr != nil {
				o.logger.Errorw("Fallback screen transition failed", "error", fallbackErr)
			}
		}
	}

	metrics.StartupDecisions.WithLabelValues(string(decision.TargetScreen), reason).Inc()
	span.SetAttributes(
		attribute.Bool("onboarding_complete", decision.OnboardingComplete),
		attribute.String("screen", string(decision.TargetScreen)),
	)
	o.logger.Infow("Startup decision",
		"screen", decision.TargetScreen,
		"onboarding_complete", decision.OnboardingComplete,
		"reason", reason)
	return decision
}

// loadOnboarding treats an absent UI or a failed read as not onboarded
func (o *Orchestrator) loadOnboarding(ctx context.Context) bool {
	if o.subs.UI == nil {
		return false
	}
	onboarded, err := o.subs.UI.LoadSavedSettings(ctx)
	if err != nil {
		o.logger.Warnw("Treating user as not onboarded",
			"error", fmt.Errorf("%w: %w", ErrSettingsLoad, err))
		return false
	}
	return onboarded
}

func (o *Orchestrator) enterMain(ctx context.Context) error {
	if o.subs.Map != nil {
		if err := o.subs.Map.Init(ctx); err != nil {
			return fmt.Errorf("map init: %w", err)
		}
	}
	if o.subs.UI != nil {
		o.subs.UI.UpdateModeIndicator()
	}

	if o.subs.Data != nil {
		o.schedule(o.timings.SyncDelay, "deferred_sync", func(ctx context.Context) error {
			metrics.SyncTriggers.WithLabelValues("deferred").Inc()
			return o.subs.Data.SyncToServer(ctx)
		})
	}
	if o.subs.Restorer != nil {
		o.schedule(o.timings.RestoreDelay, "session_restore", o.subs.Restorer.RestoreSession)
	}
	return nil
}

func (o *Orchestrator) show(id core.ScreenID) error {
	if o.subs.Screens == nil {
		o.logger.Debugw("No screen navigator, recording decision only", "screen", id)
		return nil
	}
	if err := o.subs.Screens.ShowScreen(id); err != nil {
		return fmt.Errorf("show %s: %w", id, err)
	}
	return nil
}

// schedule runs fn once after delay on a detached context. The result is
// logged and otherwise discarded.
func (o *Orchestrator) schedule(delay time.Duration, name string, fn func(context.Context) error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}

	t := time.AfterFunc(delay, func() {
		if err := goroutine.Guard(func() error { return fn(context.Background()) }); err != nil {
			o.logger.Warnw("Scheduled task failed", "task", name, "error", err)
		}
	})
	o.timers = append(o.timers, t)
}

// Close unsubscribes the connectivity watcher and stops pending timers. It
// is meant for host teardown and does not interrupt Run.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true

	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
	for _, t := range o.timers {
		t.Stop()
	}
	o.timers = nil
	if o.debounce != nil {
		o.debounce.Stop()
		o.debounce = nil
	}
	return nil
}
