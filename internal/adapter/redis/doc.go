// Package redis implements the profile store and the venue cache on Redis.
//
// Profile records live at "users/{sessionID}" as JSON strings. Every write publishes the new
// record on "profile:users/{sessionID}", which is what Observe subscribes to. The client is
// wrapped in a circuit breaker hook so that a Redis outage fails fast instead of stalling
// callers until their timeouts.
package redis
