// Package hashing computes the content digest that identifies an image
// regardless of its name or location.
package hashing

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/skyglow/skyglow-go/internal/errors"
)

const (
	// DefaultBlockSize is the read size used to stream files through the digest
	DefaultBlockSize = 64 * 1024

	// Size is the digest length in bytes
	Size = sha256.Size
)

// Hasher streams files through SHA-256 in fixed-size blocks
type Hasher struct {
	blockSize int
}

// New returns a Hasher reading blockSize bytes at a time. Non-positive
// sizes fall back to DefaultBlockSize.
func New(blockSize int) *Hasher {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Hasher{blockSize: blockSize}
}

// File returns the SHA-256 digest of the file at path
func (h *Hasher) File(path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from a directory listing
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "hash-open").
			Context("path", path).
			Build()
	}
	defer f.Close()

	sum, err := h.Reader(f)
	if err != nil {
		return nil, errors.New(fmt.Errorf("hash %s: %w", path, err)).
			Category(errors.CategoryFileIO).
			Context("operation", "hash-read").
			Build()
	}
	return sum, nil
}

// Reader returns the SHA-256 digest of everything read from r
func (h *Hasher) Reader(r io.Reader) ([]byte, error) {
	digest := sha256.New()
	buf := make([]byte, h.blockSize)
	if _, err := io.CopyBuffer(digest, r, buf); err != nil {
		return nil, err
	}
	return digest.Sum(nil), nil
}

// File hashes path with the default block size
func File(path string) ([]byte, error) {
	return New(DefaultBlockSize).File(path)
}

// Hex renders a digest as lowercase hexadecimal
func Hex(sum []byte) string {
	return hex.EncodeToString(sum)
}

// Base64 renders a digest in standard padded base64
func Base64(sum []byte) string {
	return base64.StdEncoding.EncodeToString(sum)
}

// ParseHex decodes a hexadecimal digest and checks its length
func ParseHex(s string) ([]byte, error) {
	sum, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.New(err).Category(errors.CategoryValidation).Build()
	}
	if len(sum) != Size {
		return nil, errors.Newf("digest has %d bytes, want %d", len(sum), Size).
			Category(errors.CategoryValidation).
			Build()
	}
	return sum, nil
}
