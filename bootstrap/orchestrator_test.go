package bootstrap

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"balgil/connectivity"
	"balgil/core"
	"balgil/util/goroutine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

var fastTimings = Timings{
	Splash:                60 * time.Millisecond,
	DataStoreTimeout:      150 * time.Millisecond,
	SyncDelay:             80 * time.Millisecond,
	RestoreDelay:          40 * time.Millisecond,
	NetworkChangeDebounce: 50 * time.Millisecond,
}

// callLog records initializer start order across fakes
type callLog struct {
	mu    sync.Mutex
	names []string
}

func (l *callLog) add(name string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.names = append(l.names, name)
	l.mu.Unlock()
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

type fakeInit struct {
	name   string
	log    *callLog
	err    error
	panics any
	goexit bool
	block  chan struct{}
	calls  atomic.Int32
	done   atomic.Bool
}

func (f *fakeInit) Init(ctx context.Context) error {
	f.calls.Add(1)
	f.log.add(f.name)
	if f.block != nil {
		<-f.block
	}
	if f.panics != nil {
		panic(f.panics)
	}
	if f.goexit {
		runtime.Goexit()
	}
	if f.err != nil {
		return f.err
	}
	f.done.Store(true)
	return nil
}

type fakeUI struct {
	fakeInit
	onboarded  bool
	loadErr    error
	loadPanics bool
	loads      atomic.Int32
	indicators atomic.Int32
}

func (f *fakeUI) LoadSavedSettings(context.Context) (bool, error) {
	f.loads.Add(1)
	if f.loadPanics {
		var settings map[string]bool
		settings["onboardingComplete"] = true
	}
	return f.onboarded, f.loadErr
}

func (f *fakeUI) UpdateModeIndicator() { f.indicators.Add(1) }

type fakeData struct {
	fakeInit
	syncs    atomic.Int32
	eligible atomic.Bool
}

func (f *fakeData) SyncToServer(context.Context) error {
	f.syncs.Add(1)
	return nil
}

func (f *fakeData) CheckSyncEligibility(force bool) bool {
	return force || f.eligible.Load()
}

type fakeScreens struct {
	mu     sync.Mutex
	shown  []core.ScreenID
	reject core.ScreenID
}

func (f *fakeScreens) ShowScreen(id core.ScreenID) error {
	if id == f.reject {
		return errors.New("screen element missing")
	}
	f.mu.Lock()
	f.shown = append(f.shown, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeScreens) list() []core.ScreenID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.ScreenID(nil), f.shown...)
}

type fakeRestorer struct{ calls atomic.Int32 }

func (f *fakeRestorer) RestoreSession(context.Context) error {
	f.calls.Add(1)
	return nil
}

type fixture struct {
	log       *callLog
	telemetry *fakeInit
	social    *fakeInit
	ui        *fakeUI
	data      *fakeData
	mapInit   *fakeInit
	screens   *fakeScreens
	network   *connectivity.Broadcaster
	restorer  *fakeRestorer
}

func newFixture() *fixture {
	log := &callLog{}
	return &fixture{
		log:       log,
		telemetry: &fakeInit{name: SubsystemTelemetry, log: log},
		social:    &fakeInit{name: SubsystemSocial, log: log},
		ui:        &fakeUI{fakeInit: fakeInit{name: SubsystemUI, log: log}},
		data:      &fakeData{fakeInit: fakeInit{name: SubsystemData, log: log}},
		mapInit:   &fakeInit{name: "map"},
		screens:   &fakeScreens{},
		network:   connectivity.NewBroadcaster(false),
		restorer:  &fakeRestorer{},
	}
}

func (f *fixture) subsystems() Subsystems {
	return Subsystems{
		Telemetry: f.telemetry,
		Social:    f.social,
		UI:        f.ui,
		Data:      f.data,
		Map:       f.mapInit,
		Screens:   f.screens,
		Network:   f.network,
		Restorer:  f.restorer,
	}
}

func newTestOrchestrator(t *testing.T, subs Subsystems, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t).Sugar()), WithTimings(fastTimings)}, opts...)
	o := NewOrchestrator(subs, opts...)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func statuses(outcomes []InitOutcome) map[string]Status {
	out := make(map[string]Status, len(outcomes))
	for _, oc := range outcomes {
		out[oc.Subsystem] = oc.Status
	}
	return out
}

func TestRun_AllCollaboratorsAbsent(t *testing.T) {
	o := newTestOrchestrator(t, Subsystems{})
	assert.Equal(t, StateIdle, o.State())

	start := time.Now()
	outcomes := o.Run(context.Background())
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, fastTimings.Splash)
	assert.Less(t, elapsed, fastTimings.Splash+500*time.Millisecond)
	for _, oc := range outcomes {
		assert.Equal(t, StatusSkipped, oc.Status, oc.Subsystem)
		assert.NoError(t, oc.Err)
	}

	decision := o.DecideAndTransition(context.Background())
	assert.Equal(t, core.ScreenPermission, decision.TargetScreen)
	assert.False(t, decision.OnboardingComplete)
	assert.NoError(t, decision.Err)
	assert.Equal(t, StateSettled, o.State())
}

func TestRun_InitOrderAndOutcomes(t *testing.T) {
	goroutine.AssertNoLeaks(t)
	f := newFixture()
	o := newTestOrchestrator(t, f.subsystems())

	outcomes := o.Run(context.Background())

	assert.Equal(t, []string{SubsystemTelemetry, SubsystemSocial, SubsystemUI, SubsystemData}, f.log.list())
	require.Len(t, outcomes, 4)
	for i, name := range []string{SubsystemTelemetry, SubsystemSocial, SubsystemUI, SubsystemData} {
		assert.Equal(t, name, outcomes[i].Subsystem)
		assert.Equal(t, StatusSuccess, outcomes[i].Status)
	}
	assert.Equal(t, int32(0), f.mapInit.calls.Load(), "map waits for the decision")
}

func TestRun_GoexitIsAFailure(t *testing.T) {
	f := newFixture()
	f.social.goexit = true
	f.data.goexit = true
	f.ui.onboarded = true

	o := newTestOrchestrator(t, f.subsystems())
	outcomes := o.Run(context.Background())

	got := statuses(outcomes)
	assert.Equal(t, StatusSuccess, got[SubsystemTelemetry])
	assert.Equal(t, StatusFailed, got[SubsystemSocial])
	assert.Equal(t, StatusSuccess, got[SubsystemUI], "initializers after a Goexit still run")
	assert.Equal(t, StatusFailed, got[SubsystemData])
	for _, oc := range outcomes {
		if oc.Status == StatusFailed {
			assert.ErrorIs(t, oc.Err, goroutine.ErrGoexit)
		}
	}

	decision := o.DecideAndTransition(context.Background())
	assert.Equal(t, core.ScreenMain, decision.TargetScreen)
	assert.NoError(t, decision.Err)
}

func TestRun_FailureIsolation(t *testing.T) {
	f := newFixture()
	f.telemetry.err = errors.New("overlay element missing")
	f.social.panics = "chat socket exploded"
	f.ui.err = errors.New("handler bind failed")

	o := newTestOrchestrator(t, f.subsystems())
	outcomes := o.Run(context.Background())

	assert.Equal(t, int32(1), f.telemetry.calls.Load())
	assert.Equal(t, int32(1), f.social.calls.Load())
	assert.Equal(t, int32(1), f.ui.calls.Load())
	assert.Equal(t, int32(1), f.data.calls.Load())

	got := statuses(outcomes)
	assert.Equal(t, StatusFailed, got[SubsystemTelemetry])
	assert.Equal(t, StatusFailed, got[SubsystemSocial])
	assert.Equal(t, StatusFailed, got[SubsystemUI])
	assert.Equal(t, StatusSuccess, got[SubsystemData])

	for _, oc := range outcomes[:3] {
		assert.ErrorIs(t, oc.Err, ErrSubsystemInit)
	}
	var pe *goroutine.PanicError
	require.ErrorAs(t, outcomes[1].Err, &pe)
	assert.Equal(t, "chat socket exploded", pe.Value)

	decision := o.DecideAndTransition(context.Background())
	assert.Contains(t, []core.ScreenID{core.ScreenMain, core.ScreenPermission}, decision.TargetScreen)
}

func TestRun_DataStoreTimeoutIsAbandonedNotCancelled(t *testing.T) {
	f := newFixture()
	f.data.block = make(chan struct{})

	o := newTestOrchestrator(t, f.subsystems())

	start := time.Now()
	outcomes := o.Run(context.Background())
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, fastTimings.DataStoreTimeout)
	assert.Less(t, elapsed, fastTimings.DataStoreTimeout+500*time.Millisecond)

	data := outcomes[3]
	assert.Equal(t, StatusTimedOut, data.Status)
	assert.ErrorIs(t, data.Err, ErrSubsystemInitTimeout)
	assert.Empty(t, o.LateOutcomes())

	decision := o.DecideAndTransition(context.Background())
	assert.Equal(t, StateSettled, o.State())
	assert.False(t, f.data.done.Load())

	// the abandoned initializer finishes after the orchestrator moved on
	close(f.data.block)
	require.Eventually(t, func() bool { return len(o.LateOutcomes()) == 1 }, time.Second, 10*time.Millisecond)

	late := o.LateOutcomes()[0]
	assert.Equal(t, SubsystemData, late.Subsystem)
	assert.Equal(t, StatusSuccess, late.Status)
	assert.True(t, f.data.done.Load(), "late side effects still happen")
	assert.Equal(t, decision, o.DecideAndTransition(context.Background()), "late completion does not change the decision")
}

func TestRun_AbandonedInitializerFailingLate(t *testing.T) {
	f := newFixture()
	f.data.block = make(chan struct{})
	f.data.err = errors.New("disk full")

	o := newTestOrchestrator(t, f.subsystems())
	o.Run(context.Background())
	close(f.data.block)

	require.Eventually(t, func() bool { return len(o.LateOutcomes()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, StatusFailed, o.LateOutcomes()[0].Status)
	assert.ErrorIs(t, o.LateOutcomes()[0].Err, ErrSubsystemInit)
}

func TestRun_SlowUnboundedInitExtendsJoin(t *testing.T) {
	f := newFixture()
	f.social.block = make(chan struct{})
	go func() {
		time.Sleep(fastTimings.Splash + 100*time.Millisecond)
		close(f.social.block)
	}()

	o := newTestOrchestrator(t, f.subsystems())
	start := time.Now()
	o.Run(context.Background())

	assert.GreaterOrEqual(t, time.Since(start), fastTimings.Splash+100*time.Millisecond)
}

func TestRun_CancelledContextDoesNotAbort(t *testing.T) {
	f := newFixture()
	o := newTestOrchestrator(t, f.subsystems())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := o.Run(ctx)
	assert.Equal(t, StatusSuccess, statuses(outcomes)[SubsystemData])
}

func TestRun_OnlyOnce(t *testing.T) {
	f := newFixture()
	o := newTestOrchestrator(t, f.subsystems())

	var wg sync.WaitGroup
	results := make([][]InitOutcome, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = o.Run(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.telemetry.calls.Load())
	assert.Equal(t, int32(1), f.data.calls.Load())
	assert.Equal(t, results[0], results[1])
	assert.Equal(t, results[0], results[2])
	assert.Equal(t, 1, f.network.Subscribers(), "watcher installed exactly once")
}

func TestDecide_Onboarded(t *testing.T) {
	f := newFixture()
	f.ui.onboarded = true
	o := newTestOrchestrator(t, f.subsystems())

	o.Run(context.Background())
	decision := o.DecideAndTransition(context.Background())

	assert.Equal(t, StartupDecision{OnboardingComplete: true, TargetScreen: core.ScreenMain}, decision)
	assert.Equal(t, []core.ScreenID{core.ScreenMain}, f.screens.list())
	assert.Equal(t, int32(1), f.mapInit.calls.Load())
	assert.Equal(t, int32(1), f.ui.indicators.Load())
	assert.Equal(t, int32(0), f.data.syncs.Load(), "sync is deferred")

	require.Eventually(t, func() bool { return f.restorer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return f.data.syncs.Load() == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(2 * fastTimings.SyncDelay)
	assert.Equal(t, int32(1), f.data.syncs.Load(), "deferred sync fires once")
	assert.Equal(t, int32(1), f.restorer.calls.Load())
}

func TestDecide_DeferredSyncWaitsForDelay(t *testing.T) {
	f := newFixture()
	f.ui.onboarded = true
	timings := fastTimings
	timings.SyncDelay = 300 * time.Millisecond
	o := newTestOrchestrator(t, f.subsystems(), WithTimings(timings))

	o.Run(context.Background())
	decided := time.Now()
	o.DecideAndTransition(context.Background())

	require.Eventually(t, func() bool { return f.data.syncs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(decided), timings.SyncDelay)
}

func TestDecide_NotOnboarded(t *testing.T) {
	f := newFixture()
	o := newTestOrchestrator(t, f.subsystems())

	o.Run(context.Background())
	decision := o.DecideAndTransition(context.Background())

	assert.Equal(t, StartupDecision{TargetScreen: core.ScreenPermission}, decision)
	assert.Equal(t, []core.ScreenID{core.ScreenPermission}, f.screens.list())

	time.Sleep(3 * fastTimings.SyncDelay)
	assert.Equal(t, int32(0), f.mapInit.calls.Load())
	assert.Equal(t, int32(0), f.ui.indicators.Load())
	assert.Equal(t, int32(0), f.data.syncs.Load())
	assert.Equal(t, int32(0), f.restorer.calls.Load())
}

func TestDecide_SettingsLoadFailureMeansNotOnboarded(t *testing.T) {
	f := newFixture()
	f.ui.onboarded = true
	f.ui.loadErr = errors.New("storage quota exceeded")
	o := newTestOrchestrator(t, f.subsystems())

	o.Run(context.Background())
	decision := o.DecideAndTransition(context.Background())

	assert.Equal(t, core.ScreenPermission, decision.TargetScreen)
	assert.False(t, decision.OnboardingComplete)
	assert.NoError(t, decision.Err)
}

func TestDecide_PanicFallsBackToMain(t *testing.T) {
	f := newFixture()
	f.ui.loadPanics = true
	o := newTestOrchestrator(t, f.subsystems())

	o.Run(context.Background())
	decision := o.DecideAndTransition(context.Background())

	assert.Equal(t, core.ScreenMain, decision.TargetScreen)
	assert.ErrorIs(t, decision.Err, ErrDecision)
	assert.Equal(t, []core.ScreenID{core.ScreenMain}, f.screens.list())
	assert.Equal(t, StateSettled, o.State())
}

func TestDecide_MapFailureKeepsMainWithoutSync(t *testing.T) {
	f := newFixture()
	f.ui.onboarded = true
	f.mapInit.err = errors.New("tile source unreachable")
	o := newTestOrchestrator(t, f.subsystems())

	o.Run(context.Background())
	decision := o.DecideAndTransition(context.Background())

	assert.Equal(t, core.ScreenMain, decision.TargetScreen)
	assert.ErrorIs(t, decision.Err, ErrDecision)
	assert.Equal(t, []core.ScreenID{core.ScreenMain}, f.screens.list(), "main shown once")

	time.Sleep(3 * fastTimings.SyncDelay)
	assert.Equal(t, int32(0), f.data.syncs.Load())
}

func TestDecide_ScreenErrorFallsBackToMain(t *testing.T) {
	f := newFixture()
	f.screens.reject = core.ScreenPermission
	o := newTestOrchestrator(t, f.subsystems())

	o.Run(context.Background())
	decision := o.DecideAndTransition(context.Background())

	assert.Equal(t, core.ScreenMain, decision.TargetScreen)
	assert.ErrorIs(t, decision.Err, ErrDecision)
	assert.Equal(t, []core.ScreenID{core.ScreenMain}, f.screens.list())
}

func TestDecide_OnlyOnce(t *testing.T) {
	f := newFixture()
	f.ui.onboarded = true
	o := newTestOrchestrator(t, f.subsystems())

	o.Run(context.Background())
	first := o.DecideAndTransition(context.Background())
	second := o.DecideAndTransition(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.ui.loads.Load())
	assert.Equal(t, int32(1), f.mapInit.calls.Load())
	assert.Len(t, f.screens.list(), 1)
}

func TestDecide_WaitsForJoin(t *testing.T) {
	f := newFixture()
	f.ui.onboarded = true
	o := newTestOrchestrator(t, f.subsystems())

	decided := make(chan StartupDecision, 1)
	go func() { decided <- o.DecideAndTransition(context.Background()) }()

	select {
	case <-decided:
		t.Fatal("decided before Run")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Empty(t, f.screens.list())

	o.Run(context.Background())
	select {
	case d := <-decided:
		assert.Equal(t, core.ScreenMain, d.TargetScreen)
	case <-time.After(time.Second):
		t.Fatal("decision never happened")
	}
}

func TestDecide_ContextEndsBeforeJoin(t *testing.T) {
	o := newTestOrchestrator(t, Subsystems{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	decision := o.DecideAndTransition(ctx)
	assert.ErrorIs(t, decision.Err, context.Canceled)
	assert.Empty(t, decision.TargetScreen)
	assert.Equal(t, StateIdle, o.State())
}

func TestDecide_CancelledContextAfterJoinStillDecides(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// select picks randomly among ready cases; repeat so a lost race shows up
	for i := 0; i < 200; i++ {
		o := newTestOrchestrator(t, Subsystems{}, WithTimings(Timings{DataStoreTimeout: 10 * time.Millisecond}))
		o.Run(ctx)

		decision := o.DecideAndTransition(ctx)
		require.NoError(t, decision.Err, "iteration %d", i)
		require.Equal(t, core.ScreenPermission, decision.TargetScreen, "iteration %d", i)
		require.Equal(t, StateSettled, o.State())
	}
}

// withPresent keeps the collaborators whose bit is set in mask
func (f *fixture) withPresent(mask int) Subsystems {
	var subs Subsystems
	if mask&(1<<0) != 0 {
		subs.Telemetry = f.telemetry
	}
	if mask&(1<<1) != 0 {
		subs.Social = f.social
	}
	if mask&(1<<2) != 0 {
		subs.UI = f.ui
	}
	if mask&(1<<3) != 0 {
		subs.Data = f.data
	}
	if mask&(1<<4) != 0 {
		subs.Map = f.mapInit
	}
	if mask&(1<<5) != 0 {
		subs.Screens = f.screens
	}
	if mask&(1<<6) != 0 {
		subs.Network = f.network
	}
	if mask&(1<<7) != 0 {
		subs.Restorer = f.restorer
	}
	return subs
}

func TestDecide_EveryCollaboratorSubset(t *testing.T) {
	timings := Timings{
		DataStoreTimeout:      50 * time.Millisecond,
		SyncDelay:             time.Millisecond,
		RestoreDelay:          time.Millisecond,
		NetworkChangeDebounce: time.Millisecond,
	}
	for mask := 0; mask < 1<<8; mask++ {
		for _, onboarded := range []bool{false, true} {
			f := newFixture()
			f.ui.onboarded = onboarded
			subs := f.withPresent(mask)
			o := newTestOrchestrator(t, subs, WithTimings(timings))

			o.Run(context.Background())
			decision := o.DecideAndTransition(context.Background())

			want := core.ScreenPermission
			if subs.UI != nil && onboarded {
				want = core.ScreenMain
			}
			require.NoError(t, decision.Err, "mask %08b onboarded %v", mask, onboarded)
			require.Equal(t, want, decision.TargetScreen, "mask %08b onboarded %v", mask, onboarded)
			require.Equal(t, StateSettled, o.State())
			if subs.Screens != nil {
				require.Equal(t, []core.ScreenID{want}, f.screens.list(), "mask %08b onboarded %v", mask, onboarded)
			}
			require.NoError(t, o.Close())
		}
	}
}

func TestWatcher_OnlineAlwaysSyncs(t *testing.T) {
	f := newFixture()
	f.ui.onboarded = true
	o := newTestOrchestrator(t, f.subsystems())

	o.Run(context.Background())
	o.DecideAndTransition(context.Background())

	// online sync is independent of the deferred one
	require.True(t, f.network.SetOnline(true))
	require.Eventually(t, func() bool { return f.data.syncs.Load() >= 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return f.data.syncs.Load() == 2 }, time.Second, 5*time.Millisecond)

	f.network.SetOnline(false)
	f.network.SetOnline(true)
	require.Eventually(t, func() bool { return f.data.syncs.Load() == 3 }, time.Second, 5*time.Millisecond)
}

func TestWatcher_OnlineBeforeDecision(t *testing.T) {
	f := newFixture()
	o := newTestOrchestrator(t, f.subsystems())
	o.Run(context.Background())

	f.network.SetOnline(true)
	require.Eventually(t, func() bool { return f.data.syncs.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWatcher_NotInstalledBeforeJoin(t *testing.T) {
	f := newFixture()
	f.data.block = make(chan struct{})
	defer close(f.data.block)

	o := newTestOrchestrator(t, f.subsystems())
	go o.Run(context.Background())

	time.Sleep(fastTimings.Splash / 2)
	assert.Equal(t, 0, f.network.Subscribers())

	<-o.Joined()
	assert.Equal(t, 1, f.network.Subscribers())
}

func TestWatcher_NetworkChangeIsDebounced(t *testing.T) {
	f := newFixture()
	f.data.eligible.Store(true)
	o := newTestOrchestrator(t, f.subsystems())
	o.Run(context.Background())

	for i := 0; i < 5; i++ {
		f.network.Publish(connectivity.Event{Kind: connectivity.TypeChange, NetworkType: "4g"})
		time.Sleep(fastTimings.NetworkChangeDebounce / 5)
	}
	assert.Equal(t, int32(0), f.data.syncs.Load())

	require.Eventually(t, func() bool { return f.data.syncs.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * fastTimings.NetworkChangeDebounce)
	assert.Equal(t, int32(1), f.data.syncs.Load())
}

func TestWatcher_NetworkChangeRespectsEligibility(t *testing.T) {
	f := newFixture()
	o := newTestOrchestrator(t, f.subsystems())
	o.Run(context.Background())

	f.network.Publish(connectivity.Event{Kind: connectivity.TypeChange, NetworkType: "cellular"})
	time.Sleep(3 * fastTimings.NetworkChangeDebounce)
	assert.Equal(t, int32(0), f.data.syncs.Load())
}

func TestWatcher_Foreground(t *testing.T) {
	f := newFixture()
	o := newTestOrchestrator(t, f.subsystems())
	o.Run(context.Background())

	f.network.Publish(connectivity.Event{Kind: connectivity.Foreground})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), f.data.syncs.Load())

	f.data.eligible.Store(true)
	f.network.Publish(connectivity.Event{Kind: connectivity.Foreground})
	require.Eventually(t, func() bool { return f.data.syncs.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWatcher_WithoutDataStore(t *testing.T) {
	f := newFixture()
	subs := f.subsystems()
	subs.Data = nil
	o := newTestOrchestrator(t, subs)

	o.Run(context.Background())
	assert.NotPanics(t, func() { f.network.SetOnline(true) })
}

func TestClose_StopsWatcherAndPendingTimers(t *testing.T) {
	goroutine.AssertNoLeaks(t)
	f := newFixture()
	f.ui.onboarded = true
	timings := fastTimings
	timings.SyncDelay = 200 * time.Millisecond
	timings.RestoreDelay = 200 * time.Millisecond
	o := newTestOrchestrator(t, f.subsystems(), WithTimings(timings))

	o.Run(context.Background())
	o.DecideAndTransition(context.Background())
	require.NoError(t, o.Close())
	require.NoError(t, o.Close())

	assert.Equal(t, 0, f.network.Subscribers())
	f.network.SetOnline(true)

	time.Sleep(2 * timings.SyncDelay)
	assert.Equal(t, int32(0), f.data.syncs.Load())
	assert.Equal(t, int32(0), f.restorer.calls.Load())
}

func TestTracing_SpansPerPhase(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	f := newFixture()
	f.social.err = errors.New("boom")
	o := newTestOrchestrator(t, f.subsystems(), WithTracer(tp.Tracer("test")))

	o.Run(context.Background())
	o.DecideAndTransition(context.Background())

	names := map[string]bool{}
	for _, s := range exporter.GetSpans() {
		names[s.Name] = true
		if s.Name == "bootstrap.init.social" {
			assert.Equal(t, "Error", s.Status.Code.String())
		}
	}
	for _, want := range []string{
		"bootstrap.run",
		"bootstrap.init.telemetry",
		"bootstrap.init.social",
		"bootstrap.init.ui",
		"bootstrap.init.data",
		"bootstrap.decide",
	} {
		assert.True(t, names[want], "missing span %s", want)
	}
}

func TestNewTracerProvider_LogsSpans(t *testing.T) {
	tp := NewTracerProvider(zaptest.NewLogger(t).Sugar())
	defer func() { _ = tp.Shutdown(context.Background()) }()

	o := newTestOrchestrator(t, Subsystems{}, WithTracer(tp.Tracer(tracerName)))
	o.Run(context.Background())
	assert.Equal(t, core.ScreenPermission, o.DecideAndTransition(context.Background()).TargetScreen)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "deciding", StateDeciding.String())
	assert.Equal(t, "settled", StateSettled.String())
	assert.Equal(t, "unknown", State(42).String())
}
