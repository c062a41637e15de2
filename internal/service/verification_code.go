package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	verificationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	verificationLength   = 8
	codeAttempts         = 5
)

func randomVerificationCode() (string, error) {
	max := big.NewInt(int64(len(verificationAlphabet)))
	buf := make([]byte, verificationLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate verification code: %w", err)
		}
		buf[i] = verificationAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// uniqueVerificationCode draws codes until taken reports a free one.
func uniqueVerificationCode(newCode func() (string, error), taken func(string) (bool, error)) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code, err := newCode()
		if err != nil {
			return "", err
		}
		used, err := taken(code)
		if err != nil {
			return "", err
		}
		if !used {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free verification code after %d attempts", codeAttempts)
}
