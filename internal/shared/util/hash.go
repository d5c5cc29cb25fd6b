package util

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// HashHex returns the hex-encoded SHA-256 of b.
func HashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Digest accumulates a SHA-256 over everything written to it.
type Digest struct {
	h hash.Hash
}

func NewDigest() *Digest {
	return &Digest{h: sha256.New()}
}

func (d *Digest) Write(p []byte) (int, error) {
	return d.h.Write(p)
}

// Hex returns the hex-encoded digest of the bytes written so far.
func (d *Digest) Hex() string {
	return hex.EncodeToString(d.h.Sum(nil))
}
