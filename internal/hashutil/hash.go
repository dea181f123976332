// Package hashutil provides canonical content hashing for the provenance store.
// Every hash produced here has the shape "sha256:<64 lowercase hex chars>";
// callers are responsible for canonicalizing bytes before hashing (see the
// per-type canonical forms in internal/index).
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
)

// Prefix is prepended to every hash this package produces.
const Prefix = "sha256:"

// streamBufferSize bounds memory use when hashing files from disk.
const streamBufferSize = 32 * 1024

var hashFormatRE = regexp.MustCompile(`^sha256:[a-f0-9]{64}$`)

// ComputeHash hashes raw bytes and returns "sha256:<hex>".
func ComputeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return Prefix + hex.EncodeToString(sum[:])
}

// ComputeHashString hashes the UTF-8 bytes of s and returns "sha256:<hex>".
func ComputeHashString(s string) string {
	return ComputeHash([]byte(s))
}

// HashFile streams a file through sha256 in fixed-size buffers, bounding
// memory use for arbitrarily large documents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hashutil: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, streamBufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hashutil: read %s: %w", path, err)
	}

	return Prefix + hex.EncodeToString(h.Sum(nil)), nil
}

// IsValidHashFormat reports whether s matches ^sha256:[a-f0-9]{64}$ exactly.
// No locale-aware normalization is performed.
func IsValidHashFormat(s string) bool {
	return hashFormatRE.MatchString(s)
}
