// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (session.go, profile.go, venue.go, errors.go, ...) hold shared types
// and the contracts of the external collaborators. No implementation code, just contracts.
// Interfaces live here so adapters and the session/app layers never import each other.
package domain
