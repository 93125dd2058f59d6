package advancedauth

import (
	"context"
	"errors"
	"time"

	"github.com/DevDad-Main/advanced-auth/internal"
	"github.com/DevDad-Main/advanced-auth/mail"
)

// checkOTPBudget spends one unit of email's request budget. Callers run
// this before staging anything, so abusive registration attempts cannot
// reach code generation or mail dispatch.
func (e *Engine) checkOTPBudget(ctx context.Context, email string) error {
	if err := e.otpLimiter.Check(ctx, email); err != nil {
		if errors.Is(err, errOTPRateLimited) {
			e.logger.Warn(ctx, "otp request budget exhausted", "email", email)
			return ErrTooManyRequests
		}
		e.logger.Error(ctx, "otp limiter backend failed", "email", email, "error", err)
		return ErrGuardUnavailable
	}
	return nil
}

// issueOTP generates, stores, and dispatches one passcode for email. The
// request budget is the caller's concern. A failed dispatch rolls the
// stored record back; a record must never outlive its deliverability.
func (e *Engine) issueOTP(ctx context.Context, email, displayName string) error {
	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return err
	}

	now := time.Now()
	record := &otpRecord{
		CodeHash:  internal.HashOTP(code),
		ExpiresAt: now.Add(e.config.OTP.TTL).Unix(),
	}

	if err := e.otpStore.Save(ctx, email, record, e.config.OTP.TTL); err != nil {
		e.logger.Error(ctx, "otp store save failed", "email", email, "error", err)
		return ErrStoreUnavailable
	}

	subject, body := mail.OTPMessage(displayName, code, e.config.OTP.TTL)
	if err := e.mailer.Send(ctx, email, subject, body); err != nil {
		e.logger.Error(ctx, "otp mail dispatch failed, rolling back record", "email", email, "error", err)
		if delErr := e.otpStore.Delete(ctx, email); delErr != nil {
			e.logger.Error(ctx, "otp rollback failed", "email", email, "error", delErr)
		}
		return ErrDeliveryFailed
	}

	e.logger.Info(ctx, "otp issued", "email", email)
	return nil
}

// verifyOTP consumes the live code for email. Exactly one concurrent caller
// with the correct code can succeed; the losers see ErrOTPNotFound.
func (e *Engine) verifyOTP(ctx context.Context, email, code string) error {
	if len(code) != e.config.OTP.Digits || !isNumericString(code) {
		return ErrOTPInvalid
	}

	_, err := e.otpStore.Consume(ctx, email, internal.HashOTP(code), e.config.OTP.MaxAttempts)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errOTPMissing):
		return ErrOTPNotFound
	case errors.Is(err, errOTPMismatch):
		return ErrOTPInvalid
	case errors.Is(err, errOTPAttemptsExceeded):
		e.logger.Warn(ctx, "otp attempts exhausted", "email", email)
		return ErrAttemptsExhausted
	default:
		e.logger.Error(ctx, "otp store consume failed", "email", email, "error", err)
		return ErrStoreUnavailable
	}
}

func isNumericString(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
