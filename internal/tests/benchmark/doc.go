// Package benchmark provides performance benchmarks for minikv.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Compare write modes end to end:
//
//	go test -bench=BenchmarkServer -benchmem -count=5 ./internal/tests/benchmark/... | tee bench.txt
//
// Compare results:
//
//	benchstat old.txt new.txt
package benchmark
