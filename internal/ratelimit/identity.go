package ratelimit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hasher turns client identities (IP, phone) into keyed digests so they are
// never stored in the clear.
type Hasher struct {
	secret []byte
}

func NewHasher(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

func (h *Hasher) Hash(value string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashPhone hashes the digits and '+' of a phone number. A value without any
// digit is hashed as entered so unrelated inputs do not share one bucket.
func (h *Hasher) HashPhone(phone string) string {
	normalized := NormalizePhone(phone)
	if !strings.ContainsAny(normalized, "0123456789") {
		return h.Hash(strings.TrimSpace(phone))
	}
	return h.Hash(normalized)
}

// NormalizePhone keeps only digits and '+'.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9', r == '+':
			b.WriteRune(r)
		}
	}
	return b.String()
}
