// Package localserver serves the key-value protocol on a Unix domain socket.
//
// The listener hands connections to the same redisserver.Server as the TCP
// listener, so local clients share the store, the connection registry and
// the metrics. Access control is the socket file's permissions (0600).
//
//	minikv-cli -s unix:/run/minikv/minikv.sock get hello
package localserver
