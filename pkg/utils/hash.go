package utils

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"os"
)

// CalculateStringSHA1 computes the SHA-1 hash of the concatenated parts.
// Used for request fingerprints, where collision resistance is not a concern.
func CalculateStringSHA1(parts ...string) string {
	hash := sha1.New()
	for _, p := range parts {
		hash.Write([]byte(p))
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// FileHasContent reports whether the file at filePath already holds exactly content.
func FileHasContent(filePath string, content []byte) bool {
	info, err := os.Stat(filePath)
	if err != nil || !info.Mode().IsRegular() || info.Size() != int64(len(content)) {
		return false
	}
	existing, err := os.ReadFile(filePath)
	if err != nil {
		return false
	}
	return bytes.Equal(existing, content)
}
