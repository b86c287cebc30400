package torrc

import (
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // tor's S2K control password format is defined over SHA-1
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const (
	// SaltSize is the length of the random salt of a hashed control password.
	SaltSize = 8

	// s2kIndicator encodes the iteration count of tor's RFC 2440 style
	// secret-to-key. 0x60 yields 65536 bytes, the value tor itself uses.
	s2kIndicator byte = 0x60
)

// s2kCount returns the number of bytes hashed for an indicator byte.
func s2kCount(indicator byte) int {
	return (16 + int(indicator&0x0F)) << ((indicator >> 4) + 6)
}

// HashPassword returns a value for HashedControlPassword, salted with random
// bytes from crypto/rand.
func HashPassword(password string) (string, error) {
	return hashPasswordFrom(rand.Reader, password)
}

func hashPasswordFrom(r io.Reader, password string) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(r, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return HashPasswordWithSalt(salt, password)
}

// HashPasswordWithSalt computes the hashed control password for a fixed salt.
// The result has the form "16:" + HEX(salt) + HEX(indicator) + HEX(digest)
// and matches `tor --hash-password` byte for byte.
func HashPasswordWithSalt(salt []byte, password string) (string, error) {
	if len(salt) != SaltSize {
		return "", ErrInvalidSalt
	}

	seed := make([]byte, 0, SaltSize+len(password))
	seed = append(seed, salt...)
	seed = append(seed, password...)

	count := s2kCount(s2kIndicator)
	buf := make([]byte, count)
	for n := 0; n < count; {
		n += copy(buf[n:], seed)
	}
	digest := sha1.Sum(buf) //nolint:gosec // see import

	var sb strings.Builder
	sb.WriteString("16:")
	sb.WriteString(hex.EncodeToString(salt))
	sb.WriteString(hex.EncodeToString([]byte{s2kIndicator}))
	sb.WriteString(hex.EncodeToString(digest[:]))
	return strings.ToUpper(sb.String()), nil
}
