// Package resilience provides retry, bulkhead, and rate-limiting primitives
// for calls to external analysis collaborators.
//
// All blocking waits are timer-based and select against the caller's
// context, so cancelling a session aborts a pending retry wait instead of
// blocking a goroutine until the backoff expires.
package resilience
