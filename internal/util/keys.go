// Package util holds small helpers shared across cascache's internal
// packages: hashing a FormattedKey into a filesystem-safe filename.
package util

import (
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashKey returns the 16-byte BLAKE2b-128 digest of the UTF-8
// FormattedKey, per spec.md §3's on-disk filename rule.
func HashKey(formattedKey string) [16]byte {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// blake2b.New only fails for invalid size/key combinations; 16
		// bytes with a nil key is always valid.
		panic(err)
	}
	_, _ = h.Write([]byte(formattedKey))
	var out [16]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HexFilename returns the lowercase-hex encoding of the key's digest.
func HexFilename(formattedKey string) string {
	d := HashKey(formattedKey)
	return hex.EncodeToString(d[:])
}

// Base64Filename returns the URL-safe, unpadded base64 encoding of the
// key's digest.
func Base64Filename(formattedKey string) string {
	d := HashKey(formattedKey)
	return base64.RawURLEncoding.EncodeToString(d[:])
}
