package credentials

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*()-_=+[]{}:,.?"
)

const (
	MinPasswordLength      = 12
	DefaultPasswordLength  = 16
	MinSecretKeyLength     = 20
	MaxSecretKeyLength     = 40
	DefaultSecretKeyLength = 40
	MinAccessKeyLength     = 16
	DefaultAccessKeyLength = 20
)

// GenerateSecurePassword returns a password containing every character class.
// Lengths below MinPasswordLength are raised to it.
func GenerateSecurePassword(length int) (string, error) {
	if length < MinPasswordLength {
		length = MinPasswordLength
	}
	return generate(length, lowerChars, upperChars, digitChars, symbolChars)
}

// GenerateSecretKey returns an object-store secret key of letters and digits,
// clamped to [MinSecretKeyLength, MaxSecretKeyLength].
func GenerateSecretKey(length int) (string, error) {
	if length < MinSecretKeyLength {
		length = MinSecretKeyLength
	}
	if length > MaxSecretKeyLength {
		length = MaxSecretKeyLength
	}
	return generate(length, lowerChars, upperChars, digitChars)
}

// GenerateAccessKey returns an access key of uppercase letters and digits.
func GenerateAccessKey(length int) (string, error) {
	if length < MinAccessKeyLength {
		length = MinAccessKeyLength
	}
	return generate(length, upperChars, digitChars)
}

// generate places one character from each class, fills the rest from the
// union of all classes and shuffles the result.
func generate(length int, classes ...string) (string, error) {
	var alphabet string
	for _, c := range classes {
		alphabet += c
	}

	buf := make([]byte, 0, length)
	for _, class := range classes {
		ch, err := pick(class)
		if err != nil {
			return "", err
		}
		buf = append(buf, ch)
	}
	for len(buf) < length {
		ch, err := pick(alphabet)
		if err != nil {
			return "", err
		}
		buf = append(buf, ch)
	}

	for i := len(buf) - 1; i > 0; i-- {
		j, err := randIndex(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf), nil
}

func pick(chars string) (byte, error) {
	i, err := randIndex(len(chars))
	if err != nil {
		return 0, err
	}
	return chars[i], nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return int(v.Int64()), nil
}
