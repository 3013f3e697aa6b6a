package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/guregu/null/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/apihealth/internal/domain"
	"github.com/hamed0406/apihealth/internal/metrics"
	"github.com/hamed0406/apihealth/internal/notify"
	"github.com/hamed0406/apihealth/internal/probe"
	"github.com/hamed0406/apihealth/internal/repo/memory"
)

// --- fakes ---

type fakeProber struct {
	mu       sync.Mutex
	outcomes map[string]domain.ProbeOutcome
	calls    []string
}

func (f *fakeProber) check(ctx context.Context, spec domain.EndpointSpec) domain.ProbeOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, spec.ID)
	if out, ok := f.outcomes[spec.ID]; ok {
		return out
	}
	return up200()
}

func (f *fakeProber) set(id string, out domain.ProbeOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[id] = out
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (n *recordingNotifier) Send(ctx context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

// flakyStore wraps a memory store and fails Get or Put for selected ids.
type flakyStore struct {
	*memory.Store
	failGet map[string]bool
	failPut map[string]bool
}

func (f *flakyStore) Get(ctx context.Context, id string) (*domain.HealthRecord, error) {
	if f.failGet[id] {
		return nil, errors.New("get unavailable")
	}
	return f.Store.Get(ctx, id)
}

func (f *flakyStore) Put(ctx context.Context, rec *domain.HealthRecord) error {
	if f.failPut[rec.EndpointID] {
		return errors.New("put unavailable")
	}
	return f.Store.Put(ctx, rec)
}

type failingSource struct{}

func (failingSource) ListEndpoints(context.Context) ([]domain.EndpointSpec, error) {
	return nil, errors.New("table not found")
}

func up200() domain.ProbeOutcome {
	return domain.ProbeOutcome{State: domain.StateUp, StatusCode: null.IntFrom(200), LatencyMillis: null.IntFrom(12)}
}

func down503() domain.ProbeOutcome {
	return domain.ProbeOutcome{
		State:         domain.StateDown,
		StatusCode:    null.IntFrom(503),
		LatencyMillis: null.IntFrom(40),
		Error:         null.StringFrom("Unexpected status code 503"),
	}
}

type harness struct {
	runner   *Runner
	store    *memory.Store
	prober   *fakeProber
	notifier *recordingNotifier
	clock    time.Time
}

func newHarness(t *testing.T, specs ...domain.EndpointSpec) *harness {
	t.Helper()
	h := &harness{
		store:    memory.New(specs...),
		prober:   &fakeProber{outcomes: map[string]domain.ProbeOutcome{}},
		notifier: &recordingNotifier{},
		clock:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	h.runner = NewRunner(zap.NewNop(), h.store, h.store, probe.ProberFunc(h.prober.check),
		notify.NewPublisher(h.notifier, time.Second), metrics.New(), RunnerConfig{Environment: "test"})
	h.runner.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) run(t *testing.T) Summary {
	t.Helper()
	sum, err := h.runner.RunOnce(context.Background())
	require.NoError(t, err)
	return sum
}

func (h *harness) record(t *testing.T, id string) *domain.HealthRecord {
	t.Helper()
	rec, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec, "no record for %s", id)
	return rec
}

// --- tests ---

func TestRunOnce_FirstObservationNotifies(t *testing.T) {
	h := newHarness(t, domain.NewEndpointSpec("users-api", "https://example.com/health"))

	sum := h.run(t)

	require.Len(t, h.notifier.msgs, 1)
	assert.Equal(t, "[API Health] users-api is UP", h.notifier.msgs[0].Subject)
	assert.Contains(t, h.notifier.msgs[0].Body, "Previous state: UNKNOWN")

	rec := h.record(t, "users-api")
	assert.Equal(t, domain.StateUp, rec.State)
	assert.Equal(t, h.clock, rec.CheckedAt)
	assert.Equal(t, null.TimeFrom(h.clock), rec.ChangedAt)

	assert.Equal(t, 1, sum.Endpoints)
	assert.Equal(t, 1, sum.Up)
	assert.Equal(t, 1, sum.Changed)
	assert.Equal(t, 1, sum.Notified)
	assert.NoError(t, sum.Err())
	assert.NotEmpty(t, sum.RunID)
}

func TestRunOnce_FirstObservationDownNotifies(t *testing.T) {
	h := newHarness(t, domain.NewEndpointSpec("a", "https://a.example.com"))
	h.prober.set("a", down503())

	h.run(t)

	require.Len(t, h.notifier.msgs, 1)
	assert.Equal(t, "[API Health] a is DOWN", h.notifier.msgs[0].Subject)
	assert.Equal(t, domain.StateDown, h.record(t, "a").State)
}

func TestRunOnce_StableStateDoesNotNotify(t *testing.T) {
	h := newHarness(t, domain.NewEndpointSpec("a", "https://a.example.com"))
	first := h.clock
	h.run(t)

	h.clock = first.Add(time.Minute)
	sum := h.run(t)

	assert.Len(t, h.notifier.msgs, 1, "second UP run must be silent")
	rec := h.record(t, "a")
	assert.Equal(t, h.clock, rec.CheckedAt)
	assert.Equal(t, null.TimeFrom(first), rec.ChangedAt)
	assert.Zero(t, sum.Changed)
	assert.Zero(t, sum.Notified)
}

func TestRunOnce_StableDownDoesNotNotify(t *testing.T) {
	h := newHarness(t, domain.NewEndpointSpec("a", "https://a.example.com"))
	h.prober.set("a", down503())
	h.run(t)
	h.clock = h.clock.Add(time.Minute)
	h.run(t)
	assert.Len(t, h.notifier.msgs, 1)
}

func TestRunOnce_TransitionNotifiesWithBothStates(t *testing.T) {
	h := newHarness(t, domain.NewEndpointSpec("a", "https://a.example.com"))
	h.run(t)

	h.clock = h.clock.Add(time.Minute)
	h.prober.set("a", down503())
	h.run(t)

	require.Len(t, h.notifier.msgs, 2)
	down := h.notifier.msgs[1]
	assert.Equal(t, "[API Health] a changed from UP to DOWN", down.Subject)
	assert.Equal(t, domain.StateDown, down.State)
	rec := h.record(t, "a")
	assert.Equal(t, h.clock, rec.CheckedAt)
	assert.Equal(t, null.TimeFrom(h.clock), rec.ChangedAt)
	assert.Equal(t, null.StringFrom("Unexpected status code 503"), rec.Error)

	h.clock = h.clock.Add(time.Minute)
	h.prober.set("a", up200())
	h.run(t)

	require.Len(t, h.notifier.msgs, 3)
	assert.Equal(t, "[API Health] a changed from DOWN to UP", h.notifier.msgs[2].Subject)
	rec = h.record(t, "a")
	assert.False(t, rec.Error.Valid, "recovered record must not keep the old error")
	assert.Equal(t, null.TimeFrom(h.clock), rec.ChangedAt)
}

func TestRunOnce_MissingChangedAtFallsBackToCheckedAt(t *testing.T) {
	h := newHarness(t, domain.NewEndpointSpec("a", "https://a.example.com"))
	require.NoError(t, h.store.Put(context.Background(), &domain.HealthRecord{
		EndpointID: "a",
		State:      domain.StateUp,
		CheckedAt:  h.clock.Add(-time.Hour),
	}))

	h.run(t)

	assert.Empty(t, h.notifier.msgs)
	assert.Equal(t, null.TimeFrom(h.clock), h.record(t, "a").ChangedAt)
}

func TestRunOnce_AlertBody(t *testing.T) {
	spec := domain.NewEndpointSpec("a", "https://a.example.com/health")
	spec.NotifyTargets = []string{"ops@example.com", "dev@example.com"}
	h := newHarness(t, spec)
	h.run(t)
	h.clock = h.clock.Add(time.Minute)
	h.prober.set("a", down503())
	h.run(t)

	want := strings.Join([]string{
		"API ID: a",
		"URL: https://a.example.com/health",
		"Previous state: UP",
		"Current state: DOWN",
		"HTTP status code: 503",
		"Latency (ms): 40",
		"Error: Unexpected status code 503",
		"Checked at (UTC): 2024-06-01T12:01:00Z",
		"Environment: test",
		"Notify targets: ops@example.com, dev@example.com",
	}, "\n")
	if diff := cmp.Diff(want, h.notifier.msgs[1].Body); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, spec.NotifyTargets, h.notifier.msgs[1].Targets)
}

func TestRunOnce_DisabledEndpointIsUp(t *testing.T) {
	spec := domain.NewEndpointSpec("off", "https://off.example.com")
	spec.Enabled = false
	h := newHarness(t, spec)
	h.prober.set("off", domain.DisabledOutcome())

	h.run(t)

	rec := h.record(t, "off")
	assert.Equal(t, domain.StateUp, rec.State)
	assert.False(t, rec.StatusCode.Valid)
	assert.False(t, rec.LatencyMillis.Valid)
	require.Len(t, h.notifier.msgs, 1)
	assert.NotContains(t, h.notifier.msgs[0].Body, "HTTP status code")
	assert.NotContains(t, h.notifier.msgs[0].Body, "Latency")
}

func TestRunOnce_NotifierFailureIsIsolated(t *testing.T) {
	h := newHarness(t,
		domain.NewEndpointSpec("a", "https://a.example.com"),
		domain.NewEndpointSpec("b", "https://b.example.com"),
	)
	h.notifier.err = errors.New("sns unavailable")

	sum := h.run(t)

	assert.Len(t, h.notifier.msgs, 2, "second endpoint still processed")
	h.record(t, "a")
	h.record(t, "b")
	assert.Equal(t, 2, sum.NotifyFailures)
	assert.Zero(t, sum.Notified)
	assert.NoError(t, sum.Err())
}

func TestRunOnce_PanickingNotifierIsIsolated(t *testing.T) {
	h := newHarness(t, domain.NewEndpointSpec("a", "https://a.example.com"))
	h.runner.Publisher = notify.NewPublisher(notifierFunc(func(context.Context, notify.Message) error {
		panic("nil map")
	}), time.Second)

	sum := h.run(t)
	assert.Equal(t, 1, sum.NotifyFailures)
	h.record(t, "a")
}

type notifierFunc func(context.Context, notify.Message) error

func (f notifierFunc) Send(ctx context.Context, msg notify.Message) error { return f(ctx, msg) }

func TestRunOnce_StoreFailureIsIsolated(t *testing.T) {
	specs := []domain.EndpointSpec{
		domain.NewEndpointSpec("get-fails", "https://a.example.com"),
		domain.NewEndpointSpec("put-fails", "https://b.example.com"),
		domain.NewEndpointSpec("ok", "https://c.example.com"),
	}
	h := newHarness(t, specs...)
	store := &flakyStore{
		Store:   h.store,
		failGet: map[string]bool{"get-fails": true},
		failPut: map[string]bool{"put-fails": true},
	}
	h.runner.States = store

	sum := h.run(t)

	assert.Equal(t, 2, sum.StoreFailures)
	assert.Len(t, sum.ErrorMessages(), 2)
	assert.Error(t, sum.Err())
	h.record(t, "ok")
	// get failed: nothing decided, nothing sent
	for _, m := range h.notifier.msgs {
		assert.NotEqual(t, "get-fails", m.EndpointID)
	}
	assert.Len(t, h.notifier.msgs, 2)
}

func TestRunOnce_ConfigFailureTouchesNothing(t *testing.T) {
	h := newHarness(t)
	h.runner.Endpoints = failingSource{}

	_, err := h.runner.RunOnce(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "table not found")
	assert.Empty(t, h.prober.calls)
	assert.Empty(t, h.notifier.msgs)
	assert.Zero(t, h.store.Len())
}

func TestRunOnce_DuplicateIDFailsRun(t *testing.T) {
	h := newHarness(t,
		domain.NewEndpointSpec("a", "https://a.example.com"),
		domain.NewEndpointSpec("a", "https://b.example.com"),
	)
	_, err := h.runner.RunOnce(context.Background())
	assert.ErrorIs(t, err, domain.ErrDuplicateEndpoint)
	assert.Empty(t, h.prober.calls)
}

func TestRunOnce_InvalidSpecSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	h := newHarness(t,
		domain.NewEndpointSpec("a", "https://a.example.com"),
		domain.EndpointSpec{ID: "no-url", Enabled: true},
	)
	h.runner.Logger = zap.New(core)

	sum := h.run(t)

	assert.Equal(t, []string{"a"}, h.prober.calls)
	assert.Equal(t, 1, sum.Invalid)
	assert.Equal(t, 1, sum.Endpoints)
	assert.Equal(t, 1, logs.FilterMessage("endpoint_invalid").Len())
}

func TestRunOnce_ChangedAtNeverAfterCheckedAt(t *testing.T) {
	h := newHarness(t, domain.NewEndpointSpec("a", "https://a.example.com"))
	pattern := []domain.ProbeOutcome{up200(), up200(), down503(), down503(), up200()}
	for _, out := range pattern {
		h.prober.set("a", out)
		h.run(t)
		rec := h.record(t, "a")
		assert.Equal(t, h.clock, rec.CheckedAt)
		assert.False(t, rec.ChangedAt.Time.After(rec.CheckedAt))
		h.clock = h.clock.Add(time.Minute)
	}
	assert.Len(t, h.notifier.msgs, 3)
}

func TestRunOnce_ConcurrentMatchesSequential(t *testing.T) {
	var specs []domain.EndpointSpec
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		specs = append(specs, domain.NewEndpointSpec(id, "https://"+id+".example.com"))
	}
	h := newHarness(t, specs...)
	h.runner.cfg.Concurrency = 3
	h.prober.set("c", down503())

	sum := h.run(t)

	assert.Equal(t, 6, sum.Endpoints)
	assert.Equal(t, 5, sum.Up)
	assert.Equal(t, 1, sum.Down)
	assert.Equal(t, 6, sum.Notified)
	assert.Equal(t, 6, h.store.Len())
}

func TestRunOnce_CancelledContextStopsDispatch(t *testing.T) {
	h := newHarness(t,
		domain.NewEndpointSpec("a", "https://a.example.com"),
		domain.NewEndpointSpec("b", "https://b.example.com"),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.runner.RunOnce(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.prober.calls)
	assert.Zero(t, h.store.Len())
}

func TestRunOnce_NoNotifierConfigured(t *testing.T) {
	h := newHarness(t, domain.NewEndpointSpec("a", "https://a.example.com"))
	h.runner.Publisher = nil

	sum := h.run(t)

	assert.Zero(t, sum.Notified)
	assert.Zero(t, sum.NotifyFailures)
	assert.Equal(t, 1, sum.Changed)
	h.record(t, "a")
}
