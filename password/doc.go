// Package password hashes and verifies credentials with argon2id, encoded
// in PHC string format so parameters travel with each hash. Verification is
// constant time; plaintext never leaves the call stack.
package password
