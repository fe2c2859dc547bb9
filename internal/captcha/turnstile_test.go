package captcha

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/tablebooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTurnstileVerifier_Success(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		form = map[string]string{
			"secret":   r.PostForm.Get("secret"),
			"response": r.PostForm.Get("response"),
			"remoteip": r.PostForm.Get("remoteip"),
		}
		_, _ = io.WriteString(w, `{"success":true,"hostname":"example.com"}`)
	}))
	defer srv.Close()

	v := NewTurnstileVerifier(srv.URL, "s3cret", time.Second, discardLogger())
	require.NoError(t, v.Verify(context.Background(), "token-123", "203.0.113.7"))

	assert.Equal(t, map[string]string{"secret": "s3cret", "response": "token-123", "remoteip": "203.0.113.7"}, form)
}

func TestTurnstileVerifier_OmitsUnknownRemoteIP(t *testing.T) {
	var hasRemoteIP bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		_, hasRemoteIP = r.PostForm["remoteip"]
		_, _ = io.WriteString(w, `{"success":true}`)
	}))
	defer srv.Close()

	v := NewTurnstileVerifier(srv.URL, "s3cret", time.Second, discardLogger())
	require.NoError(t, v.Verify(context.Background(), "token-123", ""))
	assert.False(t, hasRemoteIP)
}

func TestTurnstileVerifier_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"rejected", http.StatusOK, `{"success":false,"error-codes":["invalid-input-response"]}`, "invalid-input-response"},
		{"rejected without codes", http.StatusOK, `{"success":false}`, "unknown-error"},
		{"server error", http.StatusBadGateway, ``, "server returned 502"},
		{"garbage", http.StatusOK, `<html>`, "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			v := NewTurnstileVerifier(srv.URL, "s3cret", time.Second, discardLogger())
			err := v.Verify(context.Background(), "token-123", "")
			assert.ErrorIs(t, err, domain.ErrCaptchaFailed)
			assert.ErrorContains(t, err, tt.wantMsg)
		})
	}
}

func TestTurnstileVerifier_EmptyResponseSkipsNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	v := NewTurnstileVerifier(srv.URL, "s3cret", time.Second, discardLogger())
	assert.ErrorIs(t, v.Verify(context.Background(), " ", ""), domain.ErrCaptchaFailed)
	assert.False(t, called)
}

func TestTurnstileVerifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	v := NewTurnstileVerifier(url, "s3cret", time.Second, discardLogger())
	err := v.Verify(context.Background(), "token-123", "")
	assert.ErrorIs(t, err, domain.ErrCaptchaFailed)
	assert.ErrorContains(t, err, "network error")
}

func TestNewTurnstileVerifier_DefaultURL(t *testing.T) {
	v := NewTurnstileVerifier("", "s3cret", time.Second, discardLogger())
	assert.Equal(t, DefaultVerifyURL, v.verifyURL)
}

func TestDisabled(t *testing.T) {
	assert.NoError(t, Disabled{}.Verify(context.Background(), "", ""))
}
