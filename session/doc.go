// Package session persists session records in Redis. The primary record is
// keyed by session ID with a TTL equal to the refresh-token lifetime; a
// user-to-sessions secondary index (a Redis set) supports multi-device
// visibility, logout-all, and the abuse heuristics. The store never caches:
// every read goes to Redis so concurrent invalidation is observed at the
// next decision point.
package session
