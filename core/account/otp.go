package account

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"time"
)

var NowFunc = time.Now // mockable

// GenerateOTP returns a random numeric one-time code of n digits.
// The first digit is never zero so the code always has n visible digits.
func GenerateOTP(n int) (string, error) {
	if n < 1 {
		n = 6
	}
	digits := make([]byte, n)
	for i := range digits {
		max := int64(10)
		if i == 0 {
			max = 9
		}
		v, err := rand.Int(rand.Reader, big.NewInt(max))
		if err != nil {
			return "", err
		}
		if i == 0 {
			digits[i] = byte('1' + v.Int64())
		} else {
			digits[i] = byte('0' + v.Int64())
		}
	}
	return string(digits), nil
}

// OTPExpired reports whether the account's one-time code can no longer be
// used. A cleared code counts as expired.
func (a *Account) OTPExpired() bool {
	if a.OTP == "" {
		return true
	}
	return NowFunc().After(a.OTPExpiry)
}

// CheckOTP compares the submitted code against the stored one in constant
// time. A consumed (cleared) code never matches.
func (a *Account) CheckOTP(code string) bool {
	if a.OTP == "" || code == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.OTP), []byte(code)) == 1
}

// clearOTP consumes the one-time code so it cannot validate again.
func (a *Account) clearOTP() {
	a.OTP = ""
	a.OTPExpiry = time.Time{}
}
