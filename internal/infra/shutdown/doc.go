// Package shutdown coordinates graceful process termination.
//
// Components register named hooks as they start. When SIGINT or SIGTERM
// arrives, or the parent context ends, the hooks run in reverse order of
// registration under a shared timeout:
//
//	h := shutdown.NewHandler(10*time.Second, log)
//	h.OnShutdown("redis", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
