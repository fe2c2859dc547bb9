// Package captcha verifies Cloudflare Turnstile responses server side.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Domenick1991/tablebooking/internal/domain"
)

const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Verifier checks a widget response for the client at remoteIP. remoteIP may
// be empty when unknown. Any failure is reported as domain.ErrCaptchaFailed.
type Verifier interface {
	Verify(ctx context.Context, response, remoteIP string) error
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
}

type TurnstileVerifier struct {
	client    *http.Client
	verifyURL string
	secret    string
	logger    *slog.Logger
}

func NewTurnstileVerifier(verifyURL, secret string, timeout time.Duration, logger *slog.Logger) *TurnstileVerifier {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	return &TurnstileVerifier{
		client:    &http.Client{Timeout: timeout},
		verifyURL: verifyURL,
		secret:    secret,
		logger:    logger,
	}
}

func (v *TurnstileVerifier) Verify(ctx context.Context, response, remoteIP string) error {
	if strings.TrimSpace(response) == "" {
		return fmt.Errorf("%w: empty response", domain.ErrCaptchaFailed)
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", response)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCaptchaFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.WarnContext(ctx, "turnstile unreachable", "error", err)
		return fmt.Errorf("%w: network error", domain.ErrCaptchaFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		v.logger.WarnContext(ctx, "turnstile server error", "status", resp.StatusCode)
		return fmt.Errorf("%w: server returned %d", domain.ErrCaptchaFailed, resp.StatusCode)
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("%w: decode: %v", domain.ErrCaptchaFailed, err)
	}
	if !out.Success {
		codes := out.ErrorCodes
		if len(codes) == 0 {
			codes = []string{"unknown-error"}
		}
		return fmt.Errorf("%w: %s", domain.ErrCaptchaFailed, strings.Join(codes, ","))
	}
	return nil
}

// Disabled accepts every response. Used for local development.
type Disabled struct{}

func (Disabled) Verify(context.Context, string, string) error { return nil }

var (
	_ Verifier = (*TurnstileVerifier)(nil)
	_ Verifier = Disabled{}
)
