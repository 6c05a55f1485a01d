// Package ratelimit throttles editor requests with fixed-window counters.
//
// Each (client IP, user, action) triple has its own counter. The first request
// in a window creates the counter with a lifetime of one window; later
// requests increment it without extending that lifetime. A request is
// throttled once its increment pushes the count past the action's limit.
//
// Counters live in a Store: MemoryStore for a single process, SQLiteStore to
// survive restarts, RedisStore to share limits across replicas. A failing
// store never blocks traffic; the request is allowed and the failure logged.
package ratelimit
