package core

import (
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
)

// Digest returns a 128-bit BLAKE2b fingerprint of data as lowercase hex.
// Identical content always yields the identical digest.
func Digest(data []byte) string {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
