// Package shutdown runs named cleanup hooks when the process is told to stop.
//
// The server registers listener, feed, saver and storage hooks; the CLI
// "watch" command registers the unload notification and the transport
// drain. Hooks run once, in reverse registration order, under a shared
// deadline:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown("storage", engine.Close)
//	err := h.WaitContext(ctx) // returns after SIGINT/SIGTERM or ctx done
package shutdown
