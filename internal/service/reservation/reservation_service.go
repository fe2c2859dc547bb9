package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/tablebooking/internal/availability"
	"github.com/Domenick1991/tablebooking/internal/calendar"
	"github.com/Domenick1991/tablebooking/internal/captcha"
	"github.com/Domenick1991/tablebooking/internal/domain"
	"github.com/Domenick1991/tablebooking/internal/notify"
	"github.com/Domenick1991/tablebooking/internal/ratelimit"
	"github.com/Domenick1991/tablebooking/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ReservationUseCase interface {
	Availability(ctx context.Context, date string) ([]availability.Slot, error)
	CreateReservation(ctx context.Context, input CreateReservationInput) (*domain.Reservation, error)
	CancelReservation(ctx context.Context, token string) (*domain.Reservation, error)
}

type AvailabilityChecker interface {
	Slots(ctx context.Context, date string) ([]availability.Slot, error)
	IsAvailable(ctx context.Context, date, hhmm string) (bool, error)
}

type Limiter interface {
	Allow(ctx context.Context, p ratelimit.Policy, hashedIdentity string) ratelimit.Result
}

type TokenSigner interface {
	Issue(reservationID string) string
	Verify(token string) (string, error)
}

type CreateReservationInput struct {
	Name            string
	Phone           string
	Email           string
	PartySize       int
	Date            string
	Time            string
	Note            string
	CaptchaResponse string
	ClientIP        string
	RequestID       string
}

type Policies struct {
	IP    ratelimit.Policy
	Phone ratelimit.Policy
}

func DefaultPolicies() Policies {
	return Policies{
		IP:    ratelimit.Policy{Scope: "ip", Limit: 10, Window: 10 * time.Minute},
		Phone: ratelimit.Policy{Scope: "phone", Limit: 3, Window: time.Hour},
	}
}

type ReservationService struct {
	reservations   repository.ReservationRepository
	availability   AvailabilityChecker
	limiter        Limiter
	hasher         *ratelimit.Hasher
	captcha        captcha.Verifier
	tokens         TokenSigner
	publisher      notify.Publisher
	logger         *slog.Logger
	loc            *time.Location
	siteURL        string
	policies       Policies
	idAttempts     int
	publishTimeout time.Duration
	now            func() time.Time
	newID          func() (string, error)
	tracer         trace.Tracer

	pending sync.WaitGroup
}

type ReservationServiceOption func(*ReservationService)

func WithPublisher(p notify.Publisher) ReservationServiceOption {
	return func(s *ReservationService) {
		s.publisher = p
	}
}

func WithPolicies(p Policies) ReservationServiceOption {
	return func(s *ReservationService) {
		s.policies = p
	}
}

func WithSiteURL(siteURL string) ReservationServiceOption {
	return func(s *ReservationService) {
		s.siteURL = strings.TrimRight(siteURL, "/")
	}
}

func WithIDAttempts(n int) ReservationServiceOption {
	return func(s *ReservationService) {
		if n > 0 {
			s.idAttempts = n
		}
	}
}

func WithPublishTimeout(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

func WithClock(now func() time.Time) ReservationServiceOption {
	return func(s *ReservationService) {
		s.now = now
	}
}

func WithIDGenerator(gen func() (string, error)) ReservationServiceOption {
	return func(s *ReservationService) {
		s.newID = gen
	}
}

func NewReservationService(
	reservations repository.ReservationRepository,
	slots AvailabilityChecker,
	limiter Limiter,
	hasher *ratelimit.Hasher,
	verifier captcha.Verifier,
	tokens TokenSigner,
	logger *slog.Logger,
	loc *time.Location,
	opts ...ReservationServiceOption,
) *ReservationService {
	s := &ReservationService{
		reservations:   reservations,
		availability:   slots,
		limiter:        limiter,
		hasher:         hasher,
		captcha:        verifier,
		tokens:         tokens,
		logger:         logger,
		loc:            loc,
		policies:       DefaultPolicies(),
		idAttempts:     3,
		publishTimeout: 10 * time.Second,
		now:            time.Now,
		newID:          domain.NewReservationID,
		tracer:         otel.Tracer("tablebooking/reservation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ReservationService) Availability(ctx context.Context, date string) ([]availability.Slot, error) {
	ctx, span := s.tracer.Start(ctx, "ReservationService.Availability", trace.WithAttributes(attribute.String("date", date)))
	defer span.End()

	slots, err := s.availability.Slots(ctx, date)
	if err != nil {
		if errors.Is(err, calendar.ErrInvalidDateFormat) {
			return nil, domain.NewValidationError("date", "date must be in YYYY-MM-DD format")
		}
		return nil, s.fail(span, err)
	}
	return slots, nil
}

func (s *ReservationService) CreateReservation(ctx context.Context, input CreateReservationInput) (*domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "ReservationService.CreateReservation",
		trace.WithAttributes(attribute.String("date", input.Date), attribute.String("time", input.Time)))
	defer span.End()

	startAt, err := s.startAt(input.Date, input.Time)
	if err != nil {
		return nil, err
	}

	ip := input.ClientIP
	if ip == "" {
		ip = domain.UnknownClientIP
	}
	ipHash := s.hasher.Hash(ip)

	if res := s.limiter.Allow(ctx, s.policies.IP, ipHash); !res.Allowed {
		return nil, &domain.RateLimitedError{Scope: s.policies.IP.Scope, RetryAfter: res.RetryAfter}
	}
	if res := s.limiter.Allow(ctx, s.policies.Phone, s.hasher.HashPhone(input.Phone)); !res.Allowed {
		return nil, &domain.RateLimitedError{Scope: s.policies.Phone.Scope, RetryAfter: res.RetryAfter}
	}

	remoteIP := ip
	if remoteIP == domain.UnknownClientIP {
		remoteIP = ""
	}
	if err := s.captcha.Verify(ctx, input.CaptchaResponse, remoteIP); err != nil {
		s.logger.InfoContext(ctx, "captcha rejected", "request_id", input.RequestID, "error", err)
		return nil, err
	}

	ok, err := s.availability.IsAvailable(ctx, input.Date, input.Time)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if !ok {
		return nil, domain.ErrSlotTaken
	}

	res := &domain.Reservation{
		CreatedAt:       s.now().In(s.loc),
		Customer:        domain.Customer{Name: strings.TrimSpace(input.Name), Phone: strings.TrimSpace(input.Phone), Email: strings.TrimSpace(input.Email)},
		PartySize:       input.PartySize,
		StartAt:         startAt,
		DurationMinutes: domain.DurationMinutes,
		Note:            strings.TrimSpace(input.Note),
		Status:          domain.ReservationStatusConfirmed,
		Meta:            domain.Meta{IPHash: ipHash, RequestID: input.RequestID},
	}
	if err := s.reserve(ctx, res); err != nil {
		if errors.Is(err, domain.ErrSlotTaken) {
			return nil, err
		}
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, s.fail(span, err)
	}
	span.SetAttributes(attribute.String("reservation.id", res.ID))

	cancelURL := s.CancelURL(s.tokens.Issue(res.ID))
	s.publishAsync(ctx, notify.ReservationCreated(res, cancelURL, s.now()))

	s.logger.InfoContext(ctx, "reservation confirmed",
		"id", res.ID, "date", res.SlotDate(), "time", res.SlotTime(), "party_size", res.PartySize, "request_id", input.RequestID)
	return res, nil
}

// reserve draws ids until one is free. Slot conflicts are final.
func (s *ReservationService) reserve(ctx context.Context, res *domain.Reservation) error {
	for attempt := 1; attempt <= s.idAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return fmt.Errorf("generate reservation id: %w", err)
		}
		res.ID = id

		err = s.reservations.Reserve(ctx, res)
		if !errors.Is(err, domain.ErrDuplicateID) {
			return err
		}
		s.logger.WarnContext(ctx, "reservation id collision", "id", id, "attempt", attempt)
	}
	return fmt.Errorf("no free reservation id after %d attempts: %w", s.idAttempts, domain.ErrDuplicateID)
}

// CancelReservation is idempotent. The owner is notified only when this call
// moved the reservation to cancelled.
func (s *ReservationService) CancelReservation(ctx context.Context, token string) (*domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "ReservationService.CancelReservation")
	defer span.End()

	id, err := s.tokens.Verify(token)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	span.SetAttributes(attribute.String("reservation.id", id))

	res, changed, err := s.reservations.Cancel(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, s.fail(span, err)
	}
	if changed {
		s.publishAsync(ctx, notify.ReservationCancelled(res, s.now()))
		s.logger.InfoContext(ctx, "reservation cancelled", "id", id)
	}
	return res, nil
}

// CancelURL is the link mailed to the guest.
func (s *ReservationService) CancelURL(token string) string {
	return s.siteURL + "/reserve/cancel?token=" + url.QueryEscape(token)
}

// Wait blocks until in-flight notifications have been handed off.
func (s *ReservationService) Wait() {
	s.pending.Wait()
}

func (s *ReservationService) startAt(date, hhmm string) (time.Time, error) {
	if _, err := calendar.ParseDate(date, s.loc); err != nil {
		return time.Time{}, domain.NewValidationError("date", "date must be in YYYY-MM-DD format")
	}
	if _, err := calendar.TimeToMinutes(hhmm); err != nil {
		return time.Time{}, domain.NewValidationError("time", "time must be in HH:mm format")
	}
	// Off-grid times parse here and are turned away by the availability check.
	return calendar.StartAt(date, hhmm, s.loc)
}

// publishAsync hands the event to the broker without holding up the caller.
// The request context is detached so the publish survives the response.
func (s *ReservationService) publishAsync(ctx context.Context, event notify.Event) {
	if s.publisher == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "failed to publish notification", "type", event.Type, "key", event.Key(), "error", err)
		}
	}()
}

func (s *ReservationService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

var _ ReservationUseCase = (*ReservationService)(nil)
