// Package internal contains helper utilities that are intentionally private
// to the module: secure random generation for registration tokens, OTP
// codes, and refresh secrets, plus the digest helpers the stores compare.
//
// The rate sub-package holds the Redis-backed rate limit primitives (token
// bucket, fixed window).
//
// Nothing here may be imported from outside the module or appear in the
// public API.
package internal
