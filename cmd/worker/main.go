package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/tablebooking/config"
	"github.com/Domenick1991/tablebooking/internal/email"
	"github.com/Domenick1991/tablebooking/internal/kafka"
	"github.com/Domenick1991/tablebooking/internal/logging"
	"github.com/Domenick1991/tablebooking/internal/mq"
	"github.com/Domenick1991/tablebooking/internal/notify"
)

type consumer interface {
	Consume(ctx context.Context, handler notify.Handler) error
	Close() error
}

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
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	loc, err := cfg.Booking.Location()
	if err != nil {
		return err
	}

	transport, err := newTransport(cfg, logger)
	if err != nil {
		return err
	}
	sender := email.NewSender(email.Config{
		From:      cfg.Email.From,
		Owner:     cfg.Email.OwnerAddress,
		VenueName: cfg.Email.VenueName,
		Location:  loc,
	}, transport)

	c, err := newConsumer(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("notification worker started", "broker", cfg.Notifications.Broker)
	return c.Consume(ctx, sender.Handle)
}

func newTransport(cfg *config.Config, logger *slog.Logger) (email.Transport, error) {
	if cfg.Email.SMTPAddr == "" {
		logger.Warn("smtp not configured, emails are logged only")
		return email.NewLogTransport(logger), nil
	}
	return email.NewSMTPTransport(cfg.Email.SMTPAddr, cfg.Email.SMTPUser, cfg.Secrets.SMTPPassword)
}

func newConsumer(cfg *config.Config, logger *slog.Logger) (consumer, error) {
	switch cfg.Notifications.Broker {
	case config.BrokerRabbitMQ:
		c, err := mq.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue, logger)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return c, nil
	default:
		return kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logger), nil
	}
}
