package api

import (
	"log/slog"
	"net/http"

	"github.com/Domenick1991/tablebooking/internal/service/contact"
	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	service contact.ContactUseCase
	logger  *slog.Logger
}

type contactRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Subject         string `json:"subject" validate:"required,min=2,max=200"`
	Message         string `json:"message" validate:"required,min=10,max=2000"`
	CaptchaResponse string `json:"captchaResponse" validate:"required"`
	Honeypot        string `json:"honeypot"`
}

func NewContactHandler(service contact.ContactUseCase, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{service: service, logger: logger}
}

func (h *ContactHandler) Register(router *gin.RouterGroup) {
	router.POST("/contact", h.submit)
}

func (h *ContactHandler) submit(c *gin.Context) {
	var req contactRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Honeypot != "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: msgBotDetected})
		return
	}
	if !validateRequest(c, &req) {
		return
	}

	err := h.service.Submit(c.Request.Context(), contact.SubmitInput{
		Name:            req.Name,
		Email:           req.Email,
		Subject:         req.Subject,
		Message:         req.Message,
		CaptchaResponse: req.CaptchaResponse,
		ClientIP:        clientIP(c),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
