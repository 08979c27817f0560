// Package stores holds short-lived security records that do not belong on
// the identity itself. Today that is the session revocation list written by
// logout and read by strict-mode validation.
//
// Entries expire with the credential they revoke, so the list never grows
// past the number of live sessions.
package stores
