// Package jwt issues and verifies the signed session credential handed out on
// login. Expired and tampered credentials are reported as distinct errors.
package jwt
