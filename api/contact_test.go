package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/Domenick1991/tablebooking/internal/domain"
	"github.com/Domenick1991/tablebooking/internal/service/contact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockContactUseCase struct {
	mock.Mock
}

func (m *MockContactUseCase) Submit(ctx context.Context, input contact.SubmitInput) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

func contactBody() map[string]any {
	return map[string]any{
		"name":            "Alex Doe",
		"email":           "alex@example.com",
		"subject":         "Private function",
		"message":         "Do you cater for groups of twenty?",
		"captchaResponse": "captcha-ok",
	}
}

func TestContactHandler_submit(t *testing.T) {
	mockService := &MockContactUseCase{}
	router := NewRouter(discardLogger(), nil, NewContactHandler(mockService, discardLogger()))

	mockService.On("Submit", mock.Anything, contact.SubmitInput{
		Name:            "Alex Doe",
		Email:           "alex@example.com",
		Subject:         "Private function",
		Message:         "Do you cater for groups of twenty?",
		CaptchaResponse: "captcha-ok",
		ClientIP:        "198.51.100.4",
	}).Return(nil).Once()

	w := doJSON(t, router, http.MethodPost, "/contact", contactBody(), map[string]string{
		"X-Forwarded-For": "198.51.100.4, 10.0.0.1",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	mockService.AssertExpectations(t)
}

func TestContactHandler_submit_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(map[string]any)
		serviceErr error
		wantStatus int
	}{
		{"honeypot", func(b map[string]any) { b["honeypot"] = "x" }, nil, http.StatusBadRequest},
		{"short message", func(b map[string]any) { b["message"] = "hi" }, nil, http.StatusUnprocessableEntity},
		{"bad email", func(b map[string]any) { b["email"] = "alex" }, nil, http.StatusUnprocessableEntity},
		{"rate limited", func(map[string]any) {}, &domain.RateLimitedError{Scope: "contact", RetryAfter: 200}, http.StatusTooManyRequests},
		{"captcha", func(map[string]any) {}, domain.ErrCaptchaFailed, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockContactUseCase{}
			router := NewRouter(discardLogger(), nil, NewContactHandler(mockService, discardLogger()))
			if tt.serviceErr != nil {
				mockService.On("Submit", mock.Anything, mock.Anything).Return(tt.serviceErr).Once()
			}
			body := contactBody()
			tt.mutate(body)

			w := doJSON(t, router, http.MethodPost, "/contact", body, nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.serviceErr == nil {
				mockService.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestContactHandler_submit_RateLimitMessage(t *testing.T) {
	mockService := &MockContactUseCase{}
	router := NewRouter(discardLogger(), nil, NewContactHandler(mockService, discardLogger()))
	mockService.On("Submit", mock.Anything, mock.Anything).
		Return(&domain.RateLimitedError{Scope: "contact", RetryAfter: 200}).Once()

	w := doJSON(t, router, http.MethodPost, "/contact", contactBody(), nil)

	assert.Equal(t, "200", w.Header().Get("Retry-After"))
	assert.Equal(t, rateLimitMessages["contact"], decodeError(t, w).Error)
}
