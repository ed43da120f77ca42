// Package livefeed streams attendance events to staff dashboards over
// WebSocket.
//
// The Broadcaster is a service.Observer: every attendance event is encoded
// once and queued to each connected client. Clients that cannot keep up
// are disconnected instead of slowing down the attendance service.
package livefeed
