// Package identity is the email/password identity service. Accounts live in Postgres,
// passwords are bcrypt hashes and sessions are HS256 JWTs whose expiry is enforced by a
// clock timer. Session changes are pushed to registered listeners.
package identity
