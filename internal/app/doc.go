// Package app provides the application service layer.
//
// Orchestrates the use cases of a signed-in user: venue setup, event posting, the feed,
// following and favoriting venues, and role-based shell resolution. Every operation acts
// on the session manager's READY snapshot and branches on the profile's role only.
// Depends on domain interfaces, not concrete implementations.
package app
