package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrSignatureMismatch is returned for any signature that does not verify.
var ErrSignatureMismatch = errors.New("auth: signature mismatch")

// HMACSigner produces and checks hex encoded HMAC-SHA256 signatures.
type HMACSigner struct {
	secret []byte
}

// NewHMACSigner returns a signer for secret.
func NewHMACSigner(secret string) (*HMACSigner, error) {
	if secret == "" {
		return nil, errors.New("auth: hmac secret is required")
	}
	return &HMACSigner{secret: []byte(secret)}, nil
}

// Sign returns hex(HMAC-SHA256(secret, message)).
func (s *HMACSigner) Sign(message []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignParts signs the parts joined with "|".
func (s *HMACSigner) SignParts(parts ...string) string {
	return s.Sign([]byte(strings.Join(parts, "|")))
}

// Verify compares signature against the expected value in constant time.
func (s *HMACSigner) Verify(message []byte, signature string) error {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) != sha256.Size {
		return ErrSignatureMismatch
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(message)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrSignatureMismatch
	}
	return nil
}

// VerifyParts verifies a signature over parts joined with "|".
func (s *HMACSigner) VerifyParts(signature string, parts ...string) error {
	return s.Verify([]byte(strings.Join(parts, "|")), signature)
}
