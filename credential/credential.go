// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package credential hashes and verifies user passwords.
//
// Hashes use PBKDF2-HMAC-SHA256 and the modular crypt format of passlib's
// pbkdf2_sha256 scheme:
//
//	$pbkdf2-sha256$<rounds>$<salt>$<checksum>
//
// where salt and checksum are "adapted base64" (standard alphabet, '+'
// replaced by '.', no padding). Hashes produced elsewhere in that format
// verify here and vice versa.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultRounds matches passlib's default for pbkdf2_sha256.
	DefaultRounds = 29000

	saltSize = 16
	keySize  = 32
	scheme   = "pbkdf2-sha256"
)

var (
	// ErrMalformedHash indicates a stored hash that cannot be parsed.
	ErrMalformedHash = errors.New("malformed password hash")

	// ErrUnsupportedScheme indicates a hash produced by another algorithm.
	ErrUnsupportedScheme = errors.New("unsupported password hash scheme")

	// ErrEmptyPassword indicates an attempt to hash an empty password.
	ErrEmptyPassword = errors.New("password cannot be empty")
)

var ab64 = base64.RawStdEncoding

func encodeAB64(b []byte) string {
	return strings.ReplaceAll(ab64.EncodeToString(b), "+", ".")
}

func decodeAB64(s string) ([]byte, error) {
	return ab64.DecodeString(strings.ReplaceAll(s, ".", "+"))
}

// Hash derives a fresh salted hash with DefaultRounds.
func Hash(password string) (string, error) {
	return HashWithRounds(password, DefaultRounds)
}

// HashWithRounds derives a fresh salted hash with a custom iteration count.
func HashWithRounds(password string, rounds int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if rounds < 1 {
		return "", fmt.Errorf("rounds must be positive, got %d", rounds)
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, rounds, keySize, sha256.New)
	return fmt.Sprintf("$%s$%d$%s$%s", scheme, rounds, encodeAB64(salt), encodeAB64(key)), nil
}

// Verify reports whether password matches encoded. A malformed or foreign
// hash is an error, a wrong password is not.
func Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "" {
		return false, ErrMalformedHash
	}
	if parts[1] != scheme {
		return false, fmt.Errorf("%w: %q", ErrUnsupportedScheme, parts[1])
	}
	rounds, err := strconv.Atoi(parts[2])
	if err != nil || rounds < 1 {
		return false, fmt.Errorf("%w: rounds %q", ErrMalformedHash, parts[2])
	}
	salt, err := decodeAB64(parts[3])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %w", ErrMalformedHash, err)
	}
	want, err := decodeAB64(parts[4])
	if err != nil || len(want) == 0 {
		return false, fmt.Errorf("%w: checksum", ErrMalformedHash)
	}

	got := pbkdf2.Key([]byte(password), salt, rounds, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
