// Package identity defines the persisted account record and the Store
// contract every backend implements.
//
// Backends live under store/: memory (tests and single-process use),
// redisstore and sqlstore. The conformance suite in identity/storetest runs
// the same checks against each of them.
package identity
