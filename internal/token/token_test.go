package token

import (
	"strings"
	"testing"

	"github.com/Domenick1991/tablebooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssue_Format(t *testing.T) {
	tok := Issue("R-AB3D2", "secret")

	id, sig, ok := strings.Cut(tok, ":")
	require.True(t, ok)
	assert.Equal(t, "R-AB3D2", id)
	assert.Len(t, sig, 64)
	assert.Equal(t, strings.ToLower(sig), sig)
	assert.Equal(t, tok, Issue("R-AB3D2", "secret"), "issue is deterministic")
}

func TestVerify_RoundTrip(t *testing.T) {
	ids := []string{"R-AB3D2", "R-ZZZZZ", "R-23456", "x"}
	secrets := []string{"secret", "default-dev-secret", "a much longer secret with spaces and ünïcode"}

	for _, id := range ids {
		for _, secret := range secrets {
			got, err := Verify(Issue(id, secret), secret)
			require.NoError(t, err)
			assert.Equal(t, id, got)
		}
	}
}

func TestVerify_RejectsEverySingleBitMutation(t *testing.T) {
	const secret = "secret"
	tok := Issue("R-AB3D2", secret)

	for i := 0; i < len(tok); i++ {
		for bit := 0; bit < 8; bit++ {
			mutated := []byte(tok)
			mutated[i] ^= 1 << bit
			_, err := Verify(string(mutated), secret)
			assert.ErrorIs(t, err, domain.ErrInvalidToken, "byte %d bit %d", i, bit)
		}
	}
}

func TestVerify_TamperedHexCharacter(t *testing.T) {
	const secret = "secret"
	tok := Issue("R-AB3D2", secret)

	last := tok[len(tok)-1]
	replacement := byte('0')
	if last == '0' {
		replacement = '1'
	}
	tampered := tok[:len(tok)-1] + string(replacement)

	_, err := Verify(tampered, secret)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerify_Invalid(t *testing.T) {
	valid := Issue("R-AB3D2", "secret")

	testCases := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "no separator", token: "R-AB3D2"},
		{name: "empty id", token: ":" + strings.SplitN(valid, ":", 2)[1]},
		{name: "empty signature", token: "R-AB3D2:"},
		{name: "not hex", token: "R-AB3D2:zz"},
		{name: "uppercase signature", token: strings.ToUpper(valid)},
		{name: "signature for other id", token: "R-XXXXX:" + strings.SplitN(valid, ":", 2)[1]},
		{name: "truncated", token: valid[:len(valid)-2]},
		{name: "extra separator", token: valid + ":00"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Verify(tc.token, "secret")
			assert.ErrorIs(t, err, domain.ErrInvalidToken)
		})
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	_, err := Verify(Issue("R-AB3D2", "old-secret"), "new-secret")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestSigner(t *testing.T) {
	s := NewSigner("secret")

	id, err := s.Verify(s.Issue("R-AB3D2"))
	require.NoError(t, err)
	assert.Equal(t, "R-AB3D2", id)
	assert.Equal(t, Issue("R-AB3D2", "secret"), s.Issue("R-AB3D2"))
}
