package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// GenerateUniqueID creates a secure random hex string of length bytes.
func GenerateUniqueID(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateTxHash builds "<hex epoch millis>-<hex random>" for orders
// completed without a caller-supplied hash.
func GenerateTxHash(now time.Time) (string, error) {
	suffix, err := GenerateUniqueID(8)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(now.UnixMilli(), 16) + "-" + suffix, nil
}
