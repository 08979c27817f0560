// Package password implements salted password hashing and verification.
//
// # Output format
//
// New hashes are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Legacy bcrypt hashes ($2a$, $2b$, $2y$) are still accepted through [Chain].
// [Chain.NeedsUpgrade] reports true for them and for argon2id hashes produced
// with weaker parameters, so the caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy is enforced
// by the engine.
//
//   - No storage: callers supply plaintext and receive hashes.
//   - No imports of other authcore packages.
//   - Never logs plaintext or hash material.
package password
