package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// JoinCodeAlphabet omits characters that are easy to misread (0/O, 1/I).
const JoinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// JoinCodeLength is the length of codes handed out to new households.
const JoinCodeLength = 8

// GenerateJoinCode returns a random code of the given length drawn from JoinCodeAlphabet.
func GenerateJoinCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("join code length must be positive, got %d", length)
	}

	max := big.NewInt(int64(len(JoinCodeAlphabet)))
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate join code: %w", err)
		}
		code[i] = JoinCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
