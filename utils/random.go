package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateCode returns 2n lowercase hex characters from crypto/rand.
func GenerateCode(n int) (string, error) {
	byt := make([]byte, n)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return hex.EncodeToString(byt), nil
}

// GenerateAddress returns a synthetic wallet address (0x + 40 hex chars).
func GenerateAddress() (string, error) {
	code, err := GenerateCode(20)
	if err != nil {
		return "", err
	}
	return "0x" + code, nil
}

// GenerateTxHash returns a synthetic transaction hash (0x + 64 hex chars).
func GenerateTxHash() (string, error) {
	code, err := GenerateCode(32)
	if err != nil {
		return "", err
	}
	return "0x" + code, nil
}
