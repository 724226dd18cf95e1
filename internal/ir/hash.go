package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainDocument   = "pinsync/document/v1"
	DomainDescriptor = "pinsync/descriptor/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest computes a domain-separated digest of v's canonical JSON
// encoding. A struct and a map that encode to the same document digest
// alike.
func Digest(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}

// RandomHash draws 32 bytes from r and returns their SHA-256 as hex.
// Used for the update gate: the value only has to differ between dirty
// cycles, it carries no content.
func RandomHash(r io.Reader) (string, error) {
	var buf [32]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", fmt.Errorf("random hash: %w", err)
	}
	sum := sha256.Sum256(buf[:])
	return hex.EncodeToString(sum[:]), nil
}
