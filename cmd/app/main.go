package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/tablebooking/api"
	"github.com/Domenick1991/tablebooking/config"
	"github.com/Domenick1991/tablebooking/internal/availability"
	"github.com/Domenick1991/tablebooking/internal/bootstrap"
	"github.com/Domenick1991/tablebooking/internal/cache"
	"github.com/Domenick1991/tablebooking/internal/captcha"
	"github.com/Domenick1991/tablebooking/internal/kafka"
	"github.com/Domenick1991/tablebooking/internal/logging"
	"github.com/Domenick1991/tablebooking/internal/mq"
	"github.com/Domenick1991/tablebooking/internal/notify"
	"github.com/Domenick1991/tablebooking/internal/obs"
	"github.com/Domenick1991/tablebooking/internal/ratelimit"
	"github.com/Domenick1991/tablebooking/internal/repository"
	"github.com/Domenick1991/tablebooking/internal/service/contact"
	"github.com/Domenick1991/tablebooking/internal/service/reservation"
	"github.com/Domenick1991/tablebooking/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracer, err := obs.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown", "error", err)
		}
	}()

	loc, err := cfg.Booking.Location()
	if err != nil {
		return err
	}

	redisClient := cache.NewRedisClient(cfg.Redis)
	defer redisClient.Close()
	store := cache.NewRedisStore(redisClient, logger)
	probes := []bootstrap.Probe{{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }}}

	repo, repoProbe, closeRepo, err := newRepository(ctx, cfg, redisClient, loc)
	if err != nil {
		return err
	}
	defer closeRepo()
	if repoProbe != nil {
		probes = append(probes, *repoProbe)
	}

	publisher, pubProbe, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()
	if pubProbe != nil {
		probes = append(probes, *pubProbe)
	}

	limiter := ratelimit.NewLimiter(store, logger)
	hasher := ratelimit.NewHasher(cfg.Secrets.HMACSecret)
	calculator := availability.NewCalculator(store, repo, loc)

	reservationService := reservation.NewReservationService(
		repo,
		calculator,
		limiter,
		hasher,
		newVerifier(cfg, cfg.Secrets.TurnstileSecretReservations, logger),
		token.NewSigner(cfg.Secrets.HMACSecret),
		logger,
		loc,
		reservation.WithPublisher(publisher),
		reservation.WithSiteURL(cfg.Booking.SiteURL),
		reservation.WithIDAttempts(cfg.Booking.IDAttempts),
		reservation.WithPublishTimeout(time.Duration(cfg.Booking.PublishTimeoutSec)*time.Second),
		reservation.WithPolicies(reservation.Policies{
			IP:    policy("ip", cfg.RateLimits.ReservationIP),
			Phone: policy("phone", cfg.RateLimits.ReservationPhone),
		}),
	)
	// Let notifications already handed to goroutines reach the broker.
	defer reservationService.Wait()

	contactService := contact.NewContactService(
		limiter,
		hasher,
		newVerifier(cfg, cfg.Secrets.TurnstileSecretContact, logger),
		publisher,
		policy("contact", cfg.RateLimits.Contact),
		logger,
	)

	gin.SetMode(cfg.HTTP.Mode)
	router := api.NewRouter(logger, cfg.HTTP.AllowedOrigins,
		api.NewReservationHandler(reservationService, logger),
		api.NewContactHandler(contactService, logger),
	)

	return bootstrap.Run(ctx, cfg, logger, router, probes...)
}

func newRepository(ctx context.Context, cfg *config.Config, client *redis.Client, loc *time.Location) (repository.ReservationRepository, *bootstrap.Probe, func(), error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		probe := &bootstrap.Probe{Name: "postgres", Check: pool.Ping}
		return repository.NewPGReservationRepository(pool, loc), probe, pool.Close, nil
	default:
		ttl := time.Duration(cfg.Booking.SlotIndexTTLDays) * 24 * time.Hour
		return repository.NewRedisReservationRepository(client, repository.WithSlotIndexTTL(ttl)), nil, func() {}, nil
	}
}

func newPublisher(cfg *config.Config, logger *slog.Logger) (notify.Publisher, *bootstrap.Probe, func(), error) {
	switch cfg.Notifications.Broker {
	case config.BrokerRabbitMQ:
		p, err := mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return p, nil, func() { _ = p.Close() }, nil
	default:
		p := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.NotificationsTopic, logger)
		probe := &bootstrap.Probe{Name: "kafka", Check: p.CheckConnection}
		return p, probe, func() { _ = p.Close() }, nil
	}
}

func newVerifier(cfg *config.Config, secret string, logger *slog.Logger) captcha.Verifier {
	if !cfg.Captcha.Enabled {
		logger.Warn("captcha verification disabled")
		return captcha.Disabled{}
	}
	return captcha.NewTurnstileVerifier(cfg.Captcha.VerifyURL, secret, time.Duration(cfg.Captcha.TimeoutSeconds)*time.Second, logger)
}

func policy(scope string, p config.RateLimitPolicy) ratelimit.Policy {
	return ratelimit.Policy{Scope: scope, Limit: p.Limit, Window: p.Window()}
}
