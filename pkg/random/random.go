package random

import (
	"crypto/rand"
	"errors"
)

// Alphabet is the 62-character set used for generated identifiers.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// maxUnbiased is the largest multiple of len(Alphabet) that fits in a byte.
const maxUnbiased = 256 - (256 % len(Alphabet))

// NewRandomString returns a string of the given length drawn uniformly from Alphabet
// using crypto/rand. Bytes above maxUnbiased are discarded to avoid modulo bias.
func NewRandomString(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}
