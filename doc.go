// Package advancedauth implements the authentication and session lifecycle
// engine behind a multi-step account-creation flow: staged registration
// sessions, one-time-passcode email verification, password login, and signed
// access tokens paired with rotating single-use refresh tokens.
//
// The engine keeps all ephemeral state (registration sessions, OTP records,
// rate counters) in a shared Redis instance so that multiple service
// instances enforce the same limits and see the same sessions. Durable state
// (verified accounts, refresh tokens) lives behind the [UserDirectory] and
// [RefreshTokenStore] interfaces; mail delivery goes through [Mailer].
//
// Construct an [Engine] with the fluent [Builder]:
//
//	engine, err := advancedauth.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithUserDirectory(directory).
//		WithRefreshTokenStore(tokens).
//		WithMailer(mailer).
//		Build()
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
package advancedauth
