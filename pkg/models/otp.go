package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// OTPCodeLength is the number of digits in a verification code.
const OTPCodeLength = 6

// OTP is a one-time email verification code. Delivery is handled by an
// external mailer; this model only covers generation and validity.
type OTP struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Email     string    `json:"email"`
	Code      string    `json:"-"`
	IsUsed    bool      `json:"is_used"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// NewOTP generates a fresh random code for an account with the given TTL.
func NewOTP(accountID uuid.UUID, email string, ttl time.Duration) (*OTP, error) {
	code, err := randomDigits(OTPCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate otp code: %w", err)
	}
	now := time.Now().UTC()
	return &OTP{
		AccountID: accountID,
		Email:     email,
		Code:      code,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

// IsValid reports whether the code can still be redeemed.
func (o *OTP) IsValid() bool {
	return !o.IsUsed && time.Now().UTC().Before(o.ExpiresAt)
}

func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits), nil
}
