package oidc

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// 43 characters over the unreserved charset is the RFC 7636 minimum length
// and carries well over the 256 bits of entropy the RFC recommends.
const verifierLength = 43

// RFC 3986 unreserved characters, the set RFC 7636 permits for verifiers.
const verifierCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// NewVerifier returns a cryptographically random PKCE code verifier.
func NewVerifier() (string, error) {
	b := make([]byte, verifierLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes for code verifier: %w", err)
	}
	for i := range b {
		b[i] = verifierCharset[int(b[i])%len(verifierCharset)]
	}
	return string(b), nil
}

// ChallengeS256 derives the S256 code challenge for a verifier:
// the unpadded URL-safe base64 encoding of the verifier's SHA-256 digest.
// Pure function, deterministic for a given verifier.
func ChallengeS256(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
