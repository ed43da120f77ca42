package lifecycle

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

// Result classifies a reconciliation.
type Result string

const (
	// ResultNoMarker: no previous unload was recorded (first run).
	ResultNoMarker Result = "no_marker"

	// ResultExpired: the previous unload is at least the grace window old.
	ResultExpired Result = "expired"

	// ResultNoToken: the unload was recent but the client is logged out.
	ResultNoToken Result = "no_token"

	// ResultRevived: the revive request was accepted by the server.
	ResultRevived Result = "revived"

	// ResultReviveFailed: the revive request failed; the attendance may
	// stay ended.
	ResultReviveFailed Result = "revive_failed"
)

// Outcome is the result of one reconciliation.
type Outcome struct {
	Result Result

	// Elapsed is the time since the recorded unload (zero without marker).
	Elapsed time.Duration

	// Err is the revive error for ResultReviveFailed.
	Err error
}

// Revived reports whether a revive request was accepted.
func (o Outcome) Revived() bool {
	return o.Result == ResultRevived
}

// RevivePayload is the body of the revive request. UnloadTime is the
// consumed marker, the same client-clock instant the end notification
// carried, so the server can fence that notification without comparing
// clocks.
type RevivePayload struct {
	UnloadTime string `json:"unload_time"`
}

// NewRevivePayload encodes a revive request for the unload at ms.
func NewRevivePayload(ms int64) ([]byte, error) {
	return json.Marshal(RevivePayload{
		UnloadTime: time.UnixMilli(ms).UTC().Format(time.RFC3339Nano),
	})
}

// ReloadReconciler consumes the Last-Unload Marker at load and revives
// the attendance when the previous unload was a fast reload.
type ReloadReconciler struct {
	ctx *Context
	sf  singleflight.Group
}

// NewReloadReconciler returns a reconciler for c.
func NewReloadReconciler(c *Context) (*ReloadReconciler, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &ReloadReconciler{ctx: c}, nil
}

// Start runs Reconcile on its own goroutine. The channel receives exactly
// one Outcome and is then closed.
func (r *ReloadReconciler) Start(ctx context.Context) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		ch <- r.Reconcile(ctx)
	}()
	return ch
}

// Reconcile consumes the marker and revives when it is younger than the
// grace window. Elapsed equal to the grace window does not revive.
func (r *ReloadReconciler) Reconcile(ctx context.Context) Outcome {
	c := r.ctx
	log := c.Logger

	ms, ok := r.consume()
	if !ok {
		return Outcome{Result: ResultNoMarker}
	}

	elapsed := time.Duration(c.Now().UnixMilli()-ms) * time.Millisecond
	if elapsed >= c.Grace {
		log.Debug("previous unload is a close", "elapsed", elapsed, "grace", c.Grace)
		return Outcome{Result: ResultExpired, Elapsed: elapsed}
	}

	token, ok := c.Tokens.Token()
	if !ok {
		log.Debug("reload detected without token", "elapsed", elapsed)
		return Outcome{Result: ResultNoToken, Elapsed: elapsed}
	}

	body, err := NewRevivePayload(ms)
	if err != nil {
		log.Warn("encode revive request failed", "error", err)
		return Outcome{Result: ResultReviveFailed, Elapsed: elapsed, Err: err}
	}

	// A Taker hands the marker to one caller only. Stores without Take can
	// give the same marker to concurrent reconciliations; they share one
	// request per marker value.
	_, err, _ = r.sf.Do(strconv.FormatInt(ms, 10), func() (interface{}, error) {
		return nil, c.Transport.Call(ctx, c.RevivePath, token, ContentTypeJSON, body)
	})
	if err != nil {
		log.Warn("revive request failed", "elapsed", elapsed, "error", err)
		return Outcome{Result: ResultReviveFailed, Elapsed: elapsed, Err: err}
	}

	log.Info("reload detected, attendance revive requested", "elapsed", elapsed)
	return Outcome{Result: ResultRevived, Elapsed: elapsed}
}

// consume reads the marker and clears it in every case. Read errors count
// as "no marker".
func (r *ReloadReconciler) consume() (int64, bool) {
	log := r.ctx.Logger
	store := r.ctx.Markers

	if t, ok := store.(Taker); ok {
		ms, found, err := t.Take()
		if err != nil {
			log.Warn("read unload marker failed", "error", err)
			return 0, false
		}
		return ms, found
	}

	ms, found, err := store.Load()
	if cerr := store.Clear(); cerr != nil {
		log.Warn("clear unload marker failed", "error", cerr)
	}
	if err != nil {
		log.Warn("read unload marker failed", "error", err)
		return 0, false
	}
	return ms, found
}
