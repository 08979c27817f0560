// Package flows contains the orchestration behind every Engine operation.
//
// Each Run* function takes a typed dependency struct and touches the world
// only through it, so the Engine stays a thin delegator and flows can be
// tested with in-memory collaborators.
//
// Flows own ordering and error mapping: lookup before lock check, lock check
// before password verification, credential minting before the success
// write. They do not own the store, hasher, signer or mail queue.
package flows
