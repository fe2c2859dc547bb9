// Package token issues and verifies cancellation capability tokens.
//
// A token is "<reservationID>:<hex(HMAC-SHA256(secret, reservationID))>".
// Tokens carry no expiry and no server-side state; rotating the secret
// invalidates every outstanding token.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/Domenick1991/tablebooking/internal/domain"
)

const separator = ":"

func Issue(reservationID, secret string) string {
	return reservationID + separator + sign(reservationID, secret)
}

// Verify returns the reservation id bound to token, or domain.ErrInvalidToken.
func Verify(token, secret string) (string, error) {
	id, sig, ok := strings.Cut(token, separator)
	if !ok || id == "" || sig == "" {
		return "", domain.ErrInvalidToken
	}

	// Compared as lowercase hex text so that a case flip in the signature is
	// a different token.
	expected := sign(id, secret)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", domain.ErrInvalidToken
	}
	return id, nil
}

func sign(reservationID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(reservationID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Signer binds the token functions to one secret.
type Signer struct {
	secret string
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: secret}
}

func (s *Signer) Issue(reservationID string) string {
	return Issue(reservationID, s.secret)
}

func (s *Signer) Verify(token string) (string, error) {
	return Verify(token, s.secret)
}
