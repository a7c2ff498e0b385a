// Package memory provides an in-process profile store with the same observation semantics
// as the Redis store. It backs local development and tests.
package memory
