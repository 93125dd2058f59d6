package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	registrationTokenSize = 32
	refreshSecretSize     = 40
)

// RefreshSecret is the raw entropy behind an opaque refresh token.
type RefreshSecret [refreshSecretSize]byte

// NewRegistrationToken returns a fresh high-entropy registration token:
// 32 random bytes, base64url without padding.
func NewRegistrationToken() (string, error) {
	var raw [registrationTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ValidRegistrationToken reports whether token decodes to the expected raw
// size. Malformed tokens are rejected before any store lookup.
func ValidRegistrationToken(token string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil && len(raw) == registrationTokenSize
}

// NewRefreshSecret generates the random value behind one refresh token.
func NewRefreshSecret() (RefreshSecret, error) {
	var secret RefreshSecret
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashRefreshSecret returns the digest stores persist in place of the
// secret itself.
func HashRefreshSecret(secret RefreshSecret) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeRefreshToken renders the secret as the opaque token handed to
// clients.
func EncodeRefreshToken(secret RefreshSecret) string {
	return base64.RawURLEncoding.EncodeToString(secret[:])
}

// DecodeRefreshToken parses a presented token back into its secret.
func DecodeRefreshToken(token string) (RefreshSecret, error) {
	var secret RefreshSecret

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return secret, err
	}
	if len(raw) != refreshSecretSize {
		return secret, errors.New("invalid refresh token size")
	}

	copy(secret[:], raw)
	return secret, nil
}

// NewOTP generates a uniformly random numeric code of the given length.
// Leading zeros are valid; "0041" is a distinct 4-digit code.
func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}

// HashOTP returns the digest stored and compared in place of the code.
func HashOTP(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}
