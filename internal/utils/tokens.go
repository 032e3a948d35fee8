package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// NewSecureToken returns a hex-encoded opaque token from a cryptographically
// strong source. 32 bytes -> 64 characters.
func NewSecureToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32 // 256 бит по умолчанию
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewNumericCode returns a uniformly random fixed-width digit string,
// leading zeros preserved ("000000".."999999" for n=6).
func NewNumericCode(n int) (string, error) {
	if n <= 0 {
		n = 6
	}
	max := big.NewInt(1)
	for i := 0; i < n; i++ {
		max.Mul(max, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v), nil
}

const lowerAlnum = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewTempPassword returns a human-typable random credential
// (lowercase letters and digits).
func NewTempPassword(n int) (string, error) {
	if n <= 0 {
		n = 8
	}
	out := make([]byte, n)
	for i := range out {
		v, err := rand.Int(rand.Reader, big.NewInt(int64(len(lowerAlnum))))
		if err != nil {
			return "", err
		}
		out[i] = lowerAlnum[v.Int64()]
	}
	return string(out), nil
}
