// Package webhooks verifies and dispatches payment callbacks.
//
// Every callback body is signed with RSA-SHA256 by the provider and the
// base64 signature travels in the CB-SIGNATURE header. CallbackVerifier
// checks it against the provider public key supplied by the caller.
//
// Processor adds delivery bookkeeping on top of verification:
// pending -> processed | retry_ready -> ... -> dead.
// A redelivered notification that already reached processed is acknowledged
// without running the handler again.
package webhooks
