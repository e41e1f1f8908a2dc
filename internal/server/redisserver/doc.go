// Package redisserver serves the minikv key-value protocol over TCP.
//
// A connection is driven by one goroutine through a small state machine:
//
//	AwaitFrame -> Dispatch -> Reply -> AwaitFrame
//	    |            |          |
//	    v            v          v
//	 Closed       Failed     Failed
//
// Requests are processed strictly in arrival order per connection. The only
// state shared between connections is the store, whose lock is held for a
// single map access and never across network I/O.
//
// Files:
//
//   - conn.go: FrameConn and its buffered and raw write variants
//   - command.go: request parsing into Get, Set and Reserved commands
//   - dispatch.go: command execution against the store
//   - handler.go: per-connection state machine
//   - server.go: listener, accept loop, connection registry, shutdown
package redisserver
