package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	GRPC          GRPCConfig          `yaml:"grpc"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	RabbitMQ      RabbitMQConfig      `yaml:"rabbitmq"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Storage       StorageConfig       `yaml:"storage"`
	Booking       BookingConfig       `yaml:"booking"`
	RateLimits    RateLimitsConfig    `yaml:"rate_limits"`
	Captcha       CaptchaConfig       `yaml:"captcha"`
	Email         EmailConfig         `yaml:"email"`
	Tracing       TracingConfig       `yaml:"tracing"`
	Log           LogConfig           `yaml:"log"`

	// Secrets come from the environment only.
	Secrets Secrets `yaml:"-"`
}

// HTTP modes, named after the gin modes they select.
const (
	HTTPModeDebug   = "debug"
	HTTPModeRelease = "release"
	HTTPModeTest    = "test"
)

type HTTPConfig struct {
	Address        string   `yaml:"address"`
	Mode           string   `yaml:"mode"`
	SwaggerDir     string   `yaml:"swagger_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
	Queue    string `yaml:"queue"`
}

const (
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"

	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

type NotificationsConfig struct {
	Broker string `yaml:"broker"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
}

type BookingConfig struct {
	Timezone          string `yaml:"timezone"`
	SiteURL           string `yaml:"site_url"`
	SlotIndexTTLDays  int    `yaml:"slot_index_ttl_days"`
	IDAttempts        int    `yaml:"id_attempts"`
	PublishTimeoutSec int    `yaml:"publish_timeout_seconds"`
}

func (b BookingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(b.Timezone)
}

type RateLimitPolicy struct {
	Limit         int `yaml:"limit"`
	WindowSeconds int `yaml:"window_seconds"`
}

func (p RateLimitPolicy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

type RateLimitsConfig struct {
	Contact          RateLimitPolicy `yaml:"contact"`
	ReservationIP    RateLimitPolicy `yaml:"reservation_ip"`
	ReservationPhone RateLimitPolicy `yaml:"reservation_phone"`
}

type CaptchaConfig struct {
	Enabled        bool   `yaml:"enabled"`
	VerifyURL      string `yaml:"verify_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type EmailConfig struct {
	From         string `yaml:"from"`
	OwnerAddress string `yaml:"owner_address"`
	VenueName    string `yaml:"venue_name"`
	SMTPAddr     string `yaml:"smtp_addr"`
	SMTPUser     string `yaml:"smtp_user"`
}

type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Environment string `yaml:"environment"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type Secrets struct {
	HMACSecret                  string `envconfig:"HMAC_SECRET"`
	TurnstileSecretReservations string `envconfig:"TURNSTILE_SECRET_RESERVATIONS"`
	TurnstileSecretContact      string `envconfig:"TURNSTILE_SECRET_CONTACT"`
	SMTPPassword                string `envconfig:"SMTP_PASSWORD"`
}

// LoadConfig reads the YAML file at path, overlays secrets from the
// environment (and an optional .env file) and fills in defaults.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets from env: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.Mode == "" {
		c.HTTP.Mode = HTTPModeRelease
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageRedis
	}
	if c.Notifications.Broker == "" {
		c.Notifications.Broker = BrokerKafka
	}
	if c.Kafka.NotificationsTopic == "" {
		c.Kafka.NotificationsTopic = "reservation-notifications"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "notification-worker"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "reservations.exchange"
	}
	if c.RabbitMQ.Queue == "" {
		c.RabbitMQ.Queue = "notifications.q"
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "Australia/Brisbane"
	}
	if c.Booking.SlotIndexTTLDays == 0 {
		c.Booking.SlotIndexTTLDays = 30
	}
	if c.Booking.IDAttempts == 0 {
		c.Booking.IDAttempts = 3
	}
	if c.Booking.PublishTimeoutSec == 0 {
		c.Booking.PublishTimeoutSec = 10
	}
	defaultPolicy(&c.RateLimits.Contact, 5, 300)
	defaultPolicy(&c.RateLimits.ReservationIP, 10, 600)
	defaultPolicy(&c.RateLimits.ReservationPhone, 3, 3600)
	if c.Captcha.VerifyURL == "" {
		c.Captcha.VerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	}
	if c.Captcha.TimeoutSeconds == 0 {
		c.Captcha.TimeoutSeconds = 5
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "tablebooking"
	}
	if c.Tracing.Environment == "" {
		c.Tracing.Environment = "development"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
		if c.Tracing.Environment == "production" {
			c.Log.Format = "json"
		}
	}
}

func defaultPolicy(p *RateLimitPolicy, limit, windowSeconds int) {
	if p.Limit == 0 {
		p.Limit = limit
	}
	if p.WindowSeconds == 0 {
		p.WindowSeconds = windowSeconds
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageRedis, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Notifications.Broker {
	case BrokerKafka, BrokerRabbitMQ:
	default:
		return fmt.Errorf("unknown notifications broker %q", c.Notifications.Broker)
	}
	switch c.HTTP.Mode {
	case HTTPModeDebug, HTTPModeRelease, HTTPModeTest:
	default:
		return fmt.Errorf("unknown http mode %q", c.HTTP.Mode)
	}
	if c.Secrets.HMACSecret == "" {
		return errors.New("HMAC_SECRET is required")
	}
	if _, err := c.Booking.Location(); err != nil {
		return fmt.Errorf("invalid booking timezone: %w", err)
	}
	return nil
}
