package store

import (
	"crypto/rand"
	"math/big"
)

const (
	secretCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789)(*&^%$#@!~"
	digitCharset  = "0123456789"
)

// GenerateSecret returns a random token signing secret of 80 to 99 characters.
func GenerateSecret() string {
	n := 80 + randomIndex(20)
	return randomString(secretCharset, n)
}

// RandomDigits returns n uniformly random decimal digits.
func RandomDigits(n int) string {
	return randomString(digitCharset, n)
}

func randomString(charset string, n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = charset[randomIndex(len(charset))]
	}
	return string(buf)
}

func randomIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is unusable.
		panic("store: crypto/rand failed: " + err.Error())
	}
	return int(v.Int64())
}
