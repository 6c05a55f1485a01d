// Package memory configures the Go runtime soft memory limit and derives the
// working-memory budget used to reject images before they are decoded.
//
// # Configuration
//
// Call [ConfigureFromEnv] first thing in main:
//
//   - GOMEMLIMIT: standard Go variable, takes precedence when set.
//   - MEMORY_LIMIT: container limit in bytes (Kubernetes Downward API).
//   - MEMORY_RATIO: fraction of MEMORY_LIMIT given to the Go heap, default 0.85.
//
// # Decode budget
//
// A decoded image costs roughly width*height*4 bytes, and a filter chain holds
// up to three copies at once. [Budget] compares that estimate to the runtime
// soft limit, or to a configured fallback when no limit is set.
package memory
