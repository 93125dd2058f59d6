package advancedauth

import "errors"

var (
	// ErrRateLimited is returned when the global per-address request budget
	// is exhausted. Nothing downstream of the guard runs.
	ErrRateLimited = errors.New("rate limited")
	// ErrTooManyRequests is returned when the per-identity OTP request
	// budget is exhausted. No code is generated and no mail is dispatched.
	ErrTooManyRequests = errors.New("too many otp requests")
	// ErrGuardUnavailable is returned when a rate guard cannot reach its
	// backing store. The request is denied, never waved through.
	ErrGuardUnavailable = errors.New("rate guard backend unavailable")

	// ErrEmailTaken is returned when a verified account already exists for
	// the submitted email address.
	ErrEmailTaken = errors.New("email already registered")
	// ErrRegistrationNotFound is returned when a registration token does not
	// resolve to a live session (never issued, abandoned, or expired).
	ErrRegistrationNotFound = errors.New("registration session not found")

	// ErrOTPNotFound is returned when no live OTP record exists for the
	// identity.
	ErrOTPNotFound = errors.New("otp not found")
	// ErrOTPInvalid is returned on an OTP mismatch while attempts remain.
	ErrOTPInvalid = errors.New("invalid otp")
	// ErrAttemptsExhausted is returned when the final OTP attempt fails; the
	// record is deleted and a fresh code must be requested.
	ErrAttemptsExhausted = errors.New("otp attempts exhausted")
	// ErrDeliveryFailed is returned when mail dispatch fails; any state
	// staged for the delivery is rolled back.
	ErrDeliveryFailed = errors.New("mail delivery failed")

	// ErrInvalidCredentials is the uniform login failure for unknown email
	// and wrong password alike. The distinction is logged, never surfaced.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountUnverified is returned when the account exists but email
	// verification never completed.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrUserNotFound is the sentinel [UserDirectory] implementations return
	// from lookups that match no account.
	ErrUserNotFound = errors.New("user not found")
	// ErrPasswordPolicy is returned when a submitted password violates the
	// configured length policy.
	ErrPasswordPolicy = errors.New("password policy violation")

	// ErrRefreshInvalid is returned when a presented refresh token matches
	// no stored record, including tokens already spent by rotation.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshExpired is returned when the presented refresh token existed
	// but outlived its expiry; the stale record is deleted.
	ErrRefreshExpired = errors.New("refresh token expired")

	// ErrStoreUnavailable wraps unexpected backing-store failures. Callers
	// see this generic sentinel; the cause is logged with context.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrEngineNotReady is returned when an Engine method is called on an
	// engine missing a required collaborator.
	ErrEngineNotReady = errors.New("engine not initialized")
)
