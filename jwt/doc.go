// Package jwt issues and validates the signed access tokens the engine
// mints at login and refresh. Signing-algorithm pinning and a bounded
// acceptance window guard against alg-swap and far-future tokens.
package jwt
