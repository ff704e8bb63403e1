package sink

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainBlob     = "phantom/blob/v1"
	DomainDecision = "phantom/decision/v1"
)

// HashSize is the digest length in bytes; hex rendering is 64 lowercase
// characters.
const HashSize = sha256.Size

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// BlobHash computes the content-addressed identity of raw bytes.
// Equal hashes imply equal bytes.
func BlobHash(data []byte) string {
	return hashWithDomain(DomainBlob, data)
}

// recordHash chains a decision record: the previous record's hash is part
// of the canonical bytes, so the chain breaks if any record is altered.
func recordHash(canonical []byte) string {
	return hashWithDomain(DomainDecision, canonical)
}
