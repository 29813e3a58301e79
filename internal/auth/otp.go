package auth

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const otpDigits = 4

// NewOTP returns a fresh 4-digit code. Every call derives the code from a
// new random TOTP secret, so successive codes are independent.
func NewOTP(account string, now time.Time) (string, error) {
	const op = "auth.NewOTP"

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "QuickTix",
		AccountName: account,
	})
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	code, err := totp.GenerateCodeCustom(key.Secret(), now, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.Digits(otpDigits),
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return code, nil
}
