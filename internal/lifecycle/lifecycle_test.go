package lifecycle_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/attendmesh/internal/lifecycle"
	"github.com/yndnr/attendmesh/internal/lifecycle/fake"
)

const testToken = "attk_ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopq"

type harness struct {
	markers   *fake.MarkerStore
	transport *fake.Transport
	tokens    *fake.Tokens
	clock     *fake.Clock
}

func newHarness() *harness {
	return &harness{
		markers:   fake.NewMarkerStore(),
		transport: &fake.Transport{},
		tokens:    fake.NewTokens(testToken),
		clock:     fake.NewClock(time.Date(2024, 3, 14, 17, 30, 0, 0, time.UTC)),
	}
}

// instance builds a fresh page instance sharing the harness state.
func (h *harness) instance(t *testing.T) *lifecycle.Instance {
	t.Helper()
	inst, err := lifecycle.NewInstance(&lifecycle.Context{
		Tokens:    h.tokens,
		Markers:   h.markers,
		Transport: h.transport,
		Grace:     time.Second,
		Now:       h.clock.Now,
	})
	if err != nil {
		t.Fatalf("NewInstance() error = %v", err)
	}
	return inst
}

func TestScenarioA_FastReloadRevivesOnce(t *testing.T) {
	h := newHarness()

	if d := h.instance(t).Unload(); d != lifecycle.DispatchBeacon {
		t.Fatalf("Unload() = %s, want %s", d, lifecycle.DispatchBeacon)
	}
	h.clock.Advance(400 * time.Millisecond)

	out := <-h.instance(t).Load(context.Background())
	if out.Result != lifecycle.ResultRevived {
		t.Fatalf("Result = %s, want %s", out.Result, lifecycle.ResultRevived)
	}
	if out.Elapsed != 400*time.Millisecond {
		t.Errorf("Elapsed = %v, want 400ms", out.Elapsed)
	}
	if got := h.transport.Count("call"); got != 1 {
		t.Errorf("revive calls = %d, want 1", got)
	}
	req := h.transport.Requests()[1]
	if req.Path != lifecycle.DefaultRevivePath || req.Token != testToken {
		t.Errorf("revive request = %+v", req)
	}
}

func TestScenarioB_SlowReopenDoesNotRevive(t *testing.T) {
	h := newHarness()

	h.instance(t).Unload()
	h.clock.Advance(5 * time.Second)

	out := h.instance(t).Reconcile(context.Background())
	if out.Result != lifecycle.ResultExpired {
		t.Fatalf("Result = %s, want %s", out.Result, lifecycle.ResultExpired)
	}
	if got := h.transport.Count("call"); got != 0 {
		t.Errorf("revive calls = %d, want 0", got)
	}
	if _, ok := h.markers.Peek(); ok {
		t.Error("marker should be cleared")
	}
}

func TestScenarioC_DoubleUnloadSendsOneNotification(t *testing.T) {
	h := newHarness()
	inst := h.instance(t)

	first := inst.Unload()
	h.clock.Advance(5 * time.Millisecond)
	second := inst.Unload()

	if first != lifecycle.DispatchBeacon || second != lifecycle.DispatchDuplicate {
		t.Errorf("Unload() = %s, %s; want beacon, duplicate", first, second)
	}
	if got := h.transport.Count("beacon") + h.transport.Count("keepalive"); got != 1 {
		t.Errorf("end notifications = %d, want 1", got)
	}

	// Latest unload wins for the marker.
	ms, _ := h.markers.Peek()
	if ms != h.clock.Now().UnixMilli() {
		t.Errorf("marker = %d, want latest unload %d", ms, h.clock.Now().UnixMilli())
	}
}

func TestScenarioD_FirstVisitDoesNothing(t *testing.T) {
	h := newHarness()

	out := h.instance(t).Reconcile(context.Background())
	if out.Result != lifecycle.ResultNoMarker {
		t.Fatalf("Result = %s, want %s", out.Result, lifecycle.ResultNoMarker)
	}
	if out.Err != nil {
		t.Errorf("Err = %v, want nil", out.Err)
	}
	if len(h.transport.Requests()) != 0 {
		t.Errorf("requests = %d, want 0", len(h.transport.Requests()))
	}
}

func TestReconcile_GraceBoundary(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    lifecycle.Result
	}{
		{0, lifecycle.ResultRevived},
		{1 * time.Millisecond, lifecycle.ResultRevived},
		{999 * time.Millisecond, lifecycle.ResultRevived},
		{1000 * time.Millisecond, lifecycle.ResultExpired},
		{1001 * time.Millisecond, lifecycle.ResultExpired},
		{time.Hour, lifecycle.ResultExpired},
	}

	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			h := newHarness()
			h.markers.Set(h.clock.Now().UnixMilli())
			h.clock.Advance(tt.elapsed)

			out := h.instance(t).Reconcile(context.Background())
			if out.Result != tt.want {
				t.Errorf("Result = %s, want %s", out.Result, tt.want)
			}
			wantCalls := 0
			if tt.want == lifecycle.ResultRevived {
				wantCalls = 1
			}
			if got := h.transport.Count("call"); got != wantCalls {
				t.Errorf("revive calls = %d, want %d", got, wantCalls)
			}
		})
	}
}

func TestReconcile_SecondLoadDoesNotReviveAgain(t *testing.T) {
	h := newHarness()
	h.instance(t).Unload()
	h.clock.Advance(100 * time.Millisecond)

	first := h.instance(t).Reconcile(context.Background())
	h.clock.Advance(100 * time.Millisecond)
	second := h.instance(t).Reconcile(context.Background())

	if first.Result != lifecycle.ResultRevived {
		t.Errorf("first Result = %s, want %s", first.Result, lifecycle.ResultRevived)
	}
	if second.Result != lifecycle.ResultNoMarker {
		t.Errorf("second Result = %s, want %s", second.Result, lifecycle.ResultNoMarker)
	}
	if got := h.transport.Count("call"); got != 1 {
		t.Errorf("revive calls = %d, want 1", got)
	}
}

func TestUnload_NoTokenHasNoSideEffects(t *testing.T) {
	h := newHarness()
	h.tokens.Set("")

	if d := h.instance(t).Unload(); d != lifecycle.DispatchSkipped {
		t.Errorf("Unload() = %s, want %s", d, lifecycle.DispatchSkipped)
	}
	if h.markers.Stores != 0 {
		t.Errorf("marker writes = %d, want 0", h.markers.Stores)
	}
	if len(h.transport.Requests()) != 0 {
		t.Errorf("requests = %d, want 0", len(h.transport.Requests()))
	}
}

func TestUnload_FallsBackToKeepAlive(t *testing.T) {
	h := newHarness()
	h.transport.BeaconUnavailable = true

	if d := h.instance(t).Unload(); d != lifecycle.DispatchKeepAlive {
		t.Fatalf("Unload() = %s, want %s", d, lifecycle.DispatchKeepAlive)
	}

	reqs := h.transport.Requests()
	if len(reqs) != 1 || reqs[0].Kind != "keepalive" {
		t.Fatalf("requests = %+v, want one keepalive", reqs)
	}
	req := reqs[0]
	if req.Path != lifecycle.DefaultEndPath || req.ContentType != lifecycle.ContentTypeJSON {
		t.Errorf("keepalive request = %+v", req)
	}
	if req.Token != testToken {
		t.Errorf("keepalive should carry the bearer token")
	}

	var body lifecycle.EndPayload
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Token != testToken {
		t.Errorf("body token = %q", body.Token)
	}
	if body.LogoutTime != "2024-03-14T17:30:00Z" {
		t.Errorf("body logout_time = %q", body.LogoutTime)
	}
}

func TestUnload_BeaconAndFallbackCarrySamePayload(t *testing.T) {
	beacon := newHarness()
	beacon.instance(t).Unload()

	fallback := newHarness()
	fallback.transport.BeaconUnavailable = true
	fallback.instance(t).Unload()

	b := beacon.transport.Requests()[0]
	k := fallback.transport.Requests()[0]
	if string(b.Body) != string(k.Body) || b.ContentType != k.ContentType || b.Path != k.Path {
		t.Errorf("beacon %+v and keepalive %+v differ", b, k)
	}
	if b.Token != "" {
		t.Error("beacon must not carry custom headers")
	}
}

func TestUnload_TransportPanicIsContained(t *testing.T) {
	h := newHarness()
	h.transport.PanicOnBeacon = true
	inst := h.instance(t)

	if d := inst.Unload(); d != lifecycle.DispatchFailed {
		t.Errorf("Unload() = %s, want %s", d, lifecycle.DispatchFailed)
	}
	if d := inst.Unload(); d != lifecycle.DispatchDuplicate {
		t.Errorf("second Unload() = %s, want %s", d, lifecycle.DispatchDuplicate)
	}
	if _, ok := h.markers.Peek(); !ok {
		t.Error("marker should still be written")
	}
}

func TestUnload_MarkerErrorStillNotifies(t *testing.T) {
	h := newHarness()
	h.markers.StoreErr = fake.ErrInjected

	if d := h.instance(t).Unload(); d != lifecycle.DispatchBeacon {
		t.Errorf("Unload() = %s, want %s", d, lifecycle.DispatchBeacon)
	}
}

func TestReconcile_MarkerErrorsCountAsAbsent(t *testing.T) {
	h := newHarness()
	h.markers.Set(h.clock.Now().UnixMilli())
	h.markers.LoadErr = fake.ErrInjected
	h.markers.ClearErr = fake.ErrInjected

	out := h.instance(t).Reconcile(context.Background())
	if out.Result != lifecycle.ResultNoMarker {
		t.Errorf("Result = %s, want %s", out.Result, lifecycle.ResultNoMarker)
	}
	if h.markers.Clears != 1 {
		t.Errorf("Clears = %d, want 1", h.markers.Clears)
	}
	if h.transport.Count("call") != 0 {
		t.Error("no revive expected")
	}
}

func TestReconcile_ClearsMarkerOnEveryBranch(t *testing.T) {
	h := newHarness()
	h.markers.Set(h.clock.Now().UnixMilli())
	h.tokens.Set("")

	out := h.instance(t).Reconcile(context.Background())
	if out.Result != lifecycle.ResultNoToken {
		t.Errorf("Result = %s, want %s", out.Result, lifecycle.ResultNoToken)
	}
	if _, ok := h.markers.Peek(); ok {
		t.Error("marker should be cleared")
	}
}

func TestReconcile_ReviveCarriesUnloadInstant(t *testing.T) {
	h := newHarness()
	unload := h.clock.Now().UnixMilli()
	h.markers.Set(unload)
	h.clock.Advance(300 * time.Millisecond)

	if out := h.instance(t).Reconcile(context.Background()); !out.Revived() {
		t.Fatalf("Result = %s, want revived", out.Result)
	}
	reqs := h.transport.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if req.Path != lifecycle.DefaultRevivePath || req.ContentType != lifecycle.ContentTypeJSON {
		t.Errorf("request = %s %q", req.Path, req.ContentType)
	}
	var body lifecycle.RevivePayload
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	at, err := time.Parse(time.RFC3339Nano, body.UnloadTime)
	if err != nil {
		t.Fatalf("unload_time %q: %v", body.UnloadTime, err)
	}
	if at.UnixMilli() != unload {
		t.Errorf("unload_time = %d, want the consumed marker %d", at.UnixMilli(), unload)
	}
}

func TestReconcile_ReviveFailureIsReported(t *testing.T) {
	h := newHarness()
	h.transport.CallErr = fake.ErrInjected
	h.markers.Set(h.clock.Now().UnixMilli())

	out := h.instance(t).Reconcile(context.Background())
	if out.Result != lifecycle.ResultReviveFailed || out.Err == nil {
		t.Errorf("Outcome = %+v, want revive_failed with error", out)
	}
}

func TestReconcile_ConcurrentLoadsShareOneRevive(t *testing.T) {
	h := newHarness()
	h.transport.CallDelay = 50 * time.Millisecond
	inst := h.instance(t)

	// A store without atomic take: both goroutines may see the marker.
	h.markers.Set(h.clock.Now().UnixMilli())

	var wg sync.WaitGroup
	results := make([]lifecycle.Outcome, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = inst.Reconcile(context.Background())
		}(i)
	}
	wg.Wait()

	if got := h.transport.Count("call"); got != 1 {
		t.Errorf("revive calls = %d, want 1", got)
	}
}

func TestNewInstance_Validation(t *testing.T) {
	if _, err := lifecycle.NewInstance(nil); err == nil {
		t.Error("nil context should fail")
	}
	if _, err := lifecycle.NewInstance(&lifecycle.Context{}); err == nil {
		t.Error("empty context should fail")
	}

	h := newHarness()
	c := &lifecycle.Context{Tokens: h.tokens, Markers: h.markers, Transport: h.transport}
	if _, err := lifecycle.NewInstance(c); err != nil {
		t.Fatalf("NewInstance() error = %v", err)
	}
	if c.Grace != time.Second || c.EndPath != lifecycle.DefaultEndPath || c.Now == nil {
		t.Errorf("defaults not applied: %+v", c)
	}
}
