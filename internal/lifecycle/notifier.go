package lifecycle

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// Dispatch reports what one Unload call did.
type Dispatch string

const (
	// DispatchBeacon: the end notification was queued as a beacon.
	DispatchBeacon Dispatch = "beacon"

	// DispatchKeepAlive: the beacon was unavailable; a keep-alive request
	// was started instead.
	DispatchKeepAlive Dispatch = "keepalive"

	// DispatchSkipped: no token, nothing recorded or sent.
	DispatchSkipped Dispatch = "skipped"

	// DispatchDuplicate: the marker was refreshed but the notification had
	// already been dispatched by this instance.
	DispatchDuplicate Dispatch = "duplicate"

	// DispatchFailed: the transport panicked; the notification is lost.
	DispatchFailed Dispatch = "failed"
)

// EndPayload is the body of the end notification.
type EndPayload struct {
	LogoutTime string `json:"logout_time"`
	Token      string `json:"token"`
}

// NewEndPayload encodes an end notification stamped at t.
func NewEndPayload(t time.Time, token string) ([]byte, error) {
	return json.Marshal(EndPayload{
		LogoutTime: t.UTC().Format(time.RFC3339Nano),
		Token:      token,
	})
}

// UnloadNotifier writes the Last-Unload Marker and dispatches the end
// notification at most once per instance.
type UnloadNotifier struct {
	ctx  *Context
	sent atomic.Bool
}

// NewUnloadNotifier returns a notifier for c.
func NewUnloadNotifier(c *Context) (*UnloadNotifier, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &UnloadNotifier{ctx: c}, nil
}

// Sent reports whether the notification has been dispatched.
func (n *UnloadNotifier) Sent() bool {
	return n.sent.Load()
}

// Notify handles one unload trigger. It never blocks on the network and
// never panics.
func (n *UnloadNotifier) Notify() (d Dispatch) {
	c := n.ctx
	log := c.Logger

	token, ok := c.Tokens.Token()
	if !ok {
		log.Debug("unload without token, nothing to notify")
		return DispatchSkipped
	}

	now := c.Now()
	if err := c.Markers.Store(now.UnixMilli()); err != nil {
		log.Warn("write unload marker failed", "error", err)
	}

	if !n.sent.CompareAndSwap(false, true) {
		return DispatchDuplicate
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("end notification panicked", "panic", fmt.Sprint(r))
			d = DispatchFailed
		}
	}()

	body, err := NewEndPayload(now, token)
	if err != nil {
		log.Error("encode end notification failed", "error", err)
		return DispatchFailed
	}

	if c.Transport.Beacon(c.EndPath, ContentTypeJSON, body) {
		log.Debug("end notification queued", "via", DispatchBeacon)
		return DispatchBeacon
	}

	c.Transport.KeepAlive(c.EndPath, token, ContentTypeJSON, body)
	log.Debug("end notification queued", "via", DispatchKeepAlive)
	return DispatchKeepAlive
}
