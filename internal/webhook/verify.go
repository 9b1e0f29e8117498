// Package webhook guards and normalizes inbound webhook deliveries from
// project-management backends: signature verification first, then
// per-backend event normalization via a dispatch registry.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader is the header webhook senders put the HMAC digest in,
// GitHub-style.
const SignatureHeader = "X-Hub-Signature-256"

// signaturePrefix is the only accepted algorithm tag.
const signaturePrefix = "sha256="

// Verifier checks webhook payload signatures with a shared secret.
//
// SECURITY: an empty secret disables verification entirely — Verify accepts
// every payload. That is an explicit opt-out for backends that cannot sign
// deliveries; never leave the secret empty when the endpoint is reachable
// from the open internet.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier. A nil or empty secret disables
// verification (see the type comment).
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify checks signatureHeader against the HMAC-SHA256 of the exact raw
// request bytes. The header format is "sha256=<hexdigest>"; only sha256 is
// accepted. Comparison is constant time. The result is a boolean, never an
// error: rejecting the request is the caller's decision.
func (v *Verifier) Verify(rawBody []byte, signatureHeader string) bool {
	if !v.Enabled() {
		return true
	}
	if signatureHeader == "" {
		return false
	}

	hexDigest, ok := strings.CutPrefix(strings.TrimSpace(signatureHeader), signaturePrefix)
	if !ok {
		return false
	}
	provided, err := hex.DecodeString(hexDigest)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write(rawBody)
	expected := mac.Sum(nil)

	// hmac.Equal is constant time: length check first, then every byte pair
	// is XOR-accumulated with no early exit.
	return hmac.Equal(expected, provided)
}

// Sign computes the signature header value for rawBody. Test servers and
// outbound delivery both use this.
func (v *Verifier) Sign(rawBody []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write(rawBody)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
