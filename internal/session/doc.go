// Package session owns the authentication/profile bootstrap state machine.
//
// A Manager follows the identity service's session changes and guarantees that, for the
// current session, exactly one Profile is adopted within a bounded wait: the first of
// "record arrived", "no record", "store error" or "timer fired" settles the bootstrap and
// every later arrival for the same bootstrap is ignored.
package session
