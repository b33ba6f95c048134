// Package integration provides integration tests that verify location cache
// state in real databases via testcontainers.
//
// Run with: go test -tags=integration ./tests/integration/...
package integration
