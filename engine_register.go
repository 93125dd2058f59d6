package advancedauth

import (
	"context"
	"errors"
	"time"

	"github.com/DevDad-Main/advanced-auth/internal"
	"github.com/DevDad-Main/advanced-auth/mail"
)

// Register stages a signup and sends the verification passcode. Order
// matters: the OTP request budget is spent first, then the directory
// pre-check, and only then is anything staged. If the passcode cannot be
// delivered, the staged session is rolled back and the failure propagates.
//
// The returned token is the caller's handle for [Engine.VerifyRegistration];
// it never collides with or revives a previous session.
func (e *Engine) Register(ctx context.Context, input RegistrationInput) (string, error) {
	if e.directory == nil || e.mailer == nil {
		return "", ErrEngineNotReady
	}

	policy := e.config.Password.Policy
	if len(input.Password) < policy.MinLength || len(input.Password) > policy.MaxLength {
		return "", ErrPasswordPolicy
	}

	if err := e.checkOTPBudget(ctx, input.Email); err != nil {
		return "", err
	}

	if err := e.ensureEmailFree(ctx, input.Email); err != nil {
		return "", err
	}

	// Hash before staging so plaintext never reaches Redis.
	hash, err := e.passwordHash.Hash(input.Password)
	if err != nil {
		return "", err
	}

	token, err := internal.NewRegistrationToken()
	if err != nil {
		return "", err
	}

	now := time.Now()
	record := &registrationRecord{
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PasswordHash: hash,
		CreatedAt:    now.Unix(),
		ExpiresAt:    now.Add(e.config.Registration.SessionTTL).Unix(),
	}

	if err := e.registrations.Save(ctx, token, record, e.config.Registration.SessionTTL); err != nil {
		e.logger.Error(ctx, "registration session save failed", "email", input.Email, "error", err)
		return "", ErrStoreUnavailable
	}

	if err := e.issueOTP(ctx, input.Email, record.fullName()); err != nil {
		// The session and the code stand or fall together.
		if delErr := e.registrations.Delete(ctx, token); delErr != nil {
			e.logger.Error(ctx, "registration rollback failed", "email", input.Email, "error", delErr)
		}
		return "", err
	}

	e.logger.Info(ctx, "registration staged", "email", input.Email)
	return token, nil
}

// ResendOTP issues a fresh passcode for a staged registration, replacing
// the previous one, subject to the same request budget. The session itself
// survives a failed resend; only the undeliverable code is rolled back.
func (e *Engine) ResendOTP(ctx context.Context, token string) error {
	record, err := e.getRegistration(ctx, token)
	if err != nil {
		return err
	}

	if err := e.checkOTPBudget(ctx, record.Email); err != nil {
		return err
	}

	return e.issueOTP(ctx, record.Email, record.fullName())
}

// VerifyRegistration consumes the passcode and, on success, creates the
// durable account and tears the session down. Exhausting the attempt budget
// tears the session down too; the email must be re-registered from scratch.
func (e *Engine) VerifyRegistration(ctx context.Context, token, code string) (UserRecord, error) {
	if e.directory == nil {
		return UserRecord{}, ErrEngineNotReady
	}

	record, err := e.getRegistration(ctx, token)
	if err != nil {
		return UserRecord{}, err
	}

	if err := e.verifyOTP(ctx, record.Email, code); err != nil {
		if errors.Is(err, ErrAttemptsExhausted) {
			if delErr := e.registrations.Delete(ctx, token); delErr != nil {
				e.logger.Error(ctx, "registration teardown failed", "email", record.Email, "error", delErr)
			}
		}
		return UserRecord{}, err
	}

	user, err := e.directory.Create(ctx, NewUser{
		Email:        record.Email,
		FullName:     record.fullName(),
		PasswordHash: record.PasswordHash,
		Verified:     true,
	})
	if err != nil {
		// The directory uniqueness constraint closes the race the pre-check
		// leaves open. Either way the session is spent.
		if delErr := e.registrations.Delete(ctx, token); delErr != nil {
			e.logger.Error(ctx, "registration teardown failed", "email", record.Email, "error", delErr)
		}
		if errors.Is(err, ErrEmailTaken) {
			e.logger.Warn(ctx, "registration lost creation race", "email", record.Email)
			return UserRecord{}, ErrEmailTaken
		}
		e.logger.Error(ctx, "user creation failed", "email", record.Email, "error", err)
		return UserRecord{}, ErrStoreUnavailable
	}

	if err := e.registrations.Delete(ctx, token); err != nil {
		// The account exists; the sweep will collect the leftover session.
		e.logger.Error(ctx, "registration finalize failed", "email", record.Email, "error", err)
	}

	// Post-success side effect: logged on failure, never failing the signup.
	subject, body := mail.WelcomeMessage(user.FullName)
	if err := e.mailer.Send(ctx, user.Email, subject, body); err != nil {
		e.logger.Warn(ctx, "welcome mail failed", "userId", user.ID, "error", err)
	}

	e.logger.Info(ctx, "registration verified", "userId", user.ID, "email", user.Email)
	return user, nil
}

// AbandonRegistration deletes a staged session. Abandoning an absent or
// already-finalized token is not an error.
func (e *Engine) AbandonRegistration(ctx context.Context, token string) error {
	if !internal.ValidRegistrationToken(token) {
		return nil
	}

	if err := e.registrations.Delete(ctx, token); err != nil {
		e.logger.Error(ctx, "registration abandon failed", "error", err)
		return ErrStoreUnavailable
	}
	return nil
}

func (e *Engine) getRegistration(ctx context.Context, token string) (*registrationRecord, error) {
	if !internal.ValidRegistrationToken(token) {
		return nil, ErrRegistrationNotFound
	}

	record, err := e.registrations.Get(ctx, token)
	if err != nil {
		if errors.Is(err, errRegistrationMissing) {
			return nil, ErrRegistrationNotFound
		}
		e.logger.Error(ctx, "registration session load failed", "error", err)
		return nil, ErrStoreUnavailable
	}
	return record, nil
}

func (e *Engine) ensureEmailFree(ctx context.Context, email string) error {
	_, err := e.directory.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrEmailTaken
	case errors.Is(err, ErrUserNotFound):
		return nil
	default:
		e.logger.Error(ctx, "user directory lookup failed", "email", email, "error", err)
		return ErrStoreUnavailable
	}
}
