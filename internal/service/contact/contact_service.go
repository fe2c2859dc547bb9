package contact

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Domenick1991/tablebooking/internal/captcha"
	"github.com/Domenick1991/tablebooking/internal/domain"
	"github.com/Domenick1991/tablebooking/internal/notify"
	"github.com/Domenick1991/tablebooking/internal/ratelimit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ContactUseCase interface {
	Submit(ctx context.Context, input SubmitInput) error
}

type Limiter interface {
	Allow(ctx context.Context, p ratelimit.Policy, hashedIdentity string) ratelimit.Result
}

type SubmitInput struct {
	Name            string
	Email           string
	Subject         string
	Message         string
	CaptchaResponse string
	ClientIP        string
}

func DefaultPolicy() ratelimit.Policy {
	return ratelimit.Policy{Scope: "contact", Limit: 5, Window: 5 * time.Minute}
}

// ContactService forwards guest messages to the venue. Unlike reservation
// notices the message is the whole point, so a failed publish fails the call.
type ContactService struct {
	limiter   Limiter
	hasher    *ratelimit.Hasher
	captcha   captcha.Verifier
	publisher notify.Publisher
	policy    ratelimit.Policy
	logger    *slog.Logger
	now       func() time.Time
	tracer    trace.Tracer
}

func NewContactService(limiter Limiter, hasher *ratelimit.Hasher, verifier captcha.Verifier, publisher notify.Publisher, policy ratelimit.Policy, logger *slog.Logger) *ContactService {
	return &ContactService{
		limiter:   limiter,
		hasher:    hasher,
		captcha:   verifier,
		publisher: publisher,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
		tracer:    otel.Tracer("tablebooking/contact"),
	}
}

func (s *ContactService) Submit(ctx context.Context, input SubmitInput) error {
	ctx, span := s.tracer.Start(ctx, "ContactService.Submit")
	defer span.End()

	ip := input.ClientIP
	if ip == "" {
		ip = domain.UnknownClientIP
	}
	if res := s.limiter.Allow(ctx, s.policy, s.hasher.Hash(ip)); !res.Allowed {
		return &domain.RateLimitedError{Scope: s.policy.Scope, RetryAfter: res.RetryAfter}
	}

	remoteIP := ip
	if remoteIP == domain.UnknownClientIP {
		remoteIP = ""
	}
	if err := s.captcha.Verify(ctx, input.CaptchaResponse, remoteIP); err != nil {
		return err
	}

	event := notify.ContactMessage(notify.Contact{
		Name:    strings.TrimSpace(input.Name),
		Email:   strings.TrimSpace(input.Email),
		Subject: strings.TrimSpace(input.Subject),
		Message: strings.TrimSpace(input.Message),
	}, s.now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("publish contact message: %w", err)
	}
	s.logger.InfoContext(ctx, "contact message accepted", "subject", event.Contact.Subject)
	return nil
}

var _ ContactUseCase = (*ContactService)(nil)
