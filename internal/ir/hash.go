package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content digests.
// The version suffix allows the digest scheme to change without collisions.
const (
	DomainPipeline = "pipetest/pipeline/v1"
	DomainElement  = "pipetest/element/v1"
)

// Digest computes SHA-256 over domain + 0x00 + data.
// The null separator keeps domain and data boundaries unambiguous.
func Digest(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Key returns the identity of an element: two elements with the same Key
// are equal. Used for multiset comparison in assertion checkpoints.
func Key(v Value) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return Digest(DomainElement, b), nil
}
