// Package buildinfo exposes version information for minikv binaries.
//
// Values are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/minikv/internal/infra/buildinfo.Version=v0.1.0 \
//	  -X github.com/yndnr/minikv/internal/infra/buildinfo.Commit=$(git rev-parse --short HEAD)"
//
// When Commit is not injected, the VCS revision recorded by the Go toolchain
// is used if present.
package buildinfo
