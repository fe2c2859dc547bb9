package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Domenick1991/tablebooking/internal/availability"
	"github.com/Domenick1991/tablebooking/internal/domain"
	"github.com/Domenick1991/tablebooking/internal/service/reservation"
	"github.com/gin-gonic/gin"
)

const availabilityCacheControl = "public, max-age=30, s-maxage=30"

type ReservationHandler struct {
	service reservation.ReservationUseCase
	logger  *slog.Logger
}

type createReservationRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=100"`
	Phone           string `json:"phone" validate:"required,min=6,max=30"`
	Email           string `json:"email" validate:"required,email"`
	PartySize       int    `json:"partySize" validate:"required,min=1,max=12"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string `json:"time" validate:"required,len=5,datetime=15:04"`
	Note            string `json:"note" validate:"max=500"`
	CaptchaResponse string `json:"captchaResponse" validate:"required"`
	// Honeypot is a hidden form field; people leave it empty.
	Honeypot string `json:"honeypot"`
}

type reservationResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type cancelReservationRequest struct {
	Token string `json:"token" validate:"required"`
}

type cancelReservationResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

type availabilityResponse struct {
	Date  string              `json:"date"`
	Slots []availability.Slot `json:"slots"`
}

func NewReservationHandler(service reservation.ReservationUseCase, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{service: service, logger: logger}
}

func (h *ReservationHandler) Register(router *gin.RouterGroup) {
	router.GET("/availability", h.availability)
	router.POST("/reservations", h.create)
	router.POST("/reservations/cancel", h.cancel)
}

func (h *ReservationHandler) availability(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Missing required query parameter: date"})
		return
	}

	slots, err := h.service.Availability(c.Request.Context(), date)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, errorResponse{Error: fieldMessages["date"]})
			return
		}
		writeError(c, h.logger, err)
		return
	}

	c.Header("Cache-Control", availabilityCacheControl)
	c.JSON(http.StatusOK, availabilityResponse{Date: date, Slots: slots})
}

func (h *ReservationHandler) create(c *gin.Context) {
	var req createReservationRequest
	if !bindJSON(c, &req) {
		return
	}
	// Checked before validation so bots learn nothing and consume no quota.
	if req.Honeypot != "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: msgBotDetected})
		return
	}
	if !validateRequest(c, &req) {
		return
	}

	res, err := h.service.CreateReservation(c.Request.Context(), reservation.CreateReservationInput{
		Name:            req.Name,
		Phone:           req.Phone,
		Email:           req.Email,
		PartySize:       req.PartySize,
		Date:            req.Date,
		Time:            req.Time,
		Note:            req.Note,
		CaptchaResponse: req.CaptchaResponse,
		ClientIP:        clientIP(c),
		RequestID:       requestID(c),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, reservationResponse{ID: res.ID, Status: string(res.Status)})
}

func (h *ReservationHandler) cancel(c *gin.Context) {
	var req cancelReservationRequest
	if !bindJSON(c, &req) {
		return
	}
	if !validateRequest(c, &req) {
		return
	}

	res, err := h.service.CancelReservation(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, cancelReservationResponse{OK: true, ID: res.ID})
}
