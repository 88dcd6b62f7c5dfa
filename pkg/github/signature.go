package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	// ErrMalformedSignature reports a signature header that is not
	// "sha256=" followed by a hex digest of the right length.
	ErrMalformedSignature = errors.New("malformed signature header")

	// ErrInvalidSignature reports a well-formed signature that does not
	// match the request body.
	ErrInvalidSignature = errors.New("invalid signature")
)

const signaturePrefix = "sha256="

// VerifySignature checks an X-Hub-Signature-256 header value against the
// HMAC-SHA256 of the raw request body. The digest comparison is constant
// time. It must run before the body is parsed; an unverified body never
// reaches the decoder.
func VerifySignature(body, secret []byte, header string) error {
	encoded, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return ErrMalformedSignature
	}
	claimed, err := hex.DecodeString(encoded)
	if err != nil || len(claimed) != sha256.Size {
		return ErrMalformedSignature
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(claimed, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}
