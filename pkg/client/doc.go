// Package client is a minimal minikv client.
//
// A Client holds one TCP connection and sends one request at a time, so
// replies always match requests. Requests are encoded and replies decoded
// with github.com/tidwall/resp.
//
//	c, err := client.Dial(ctx, "127.0.0.1:6379")
//	if err != nil { ... }
//	defer c.Close()
//	_ = c.Set(ctx, "hello", []byte("world"))
//	v, ok, err := c.Get(ctx, "hello")
package client
