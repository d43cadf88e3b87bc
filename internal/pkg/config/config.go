package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (port, DB connection,
//   merchant credentials), security settings
// - default: Values common across all environments (timezone, timeout, etc.)
// -----------------------------------------------------------------------------

type Config struct {
	Server  ServerConfig
	DB      DBConfig
	CORS    CORSConfig
	Log     LogConfig
	JWT     JWTConfig
	Booking BookingConfig
	Click   ClickConfig
	Payme   PaymeConfig
	Octo    OctoConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	DBName   string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	TimeZone string `envconfig:"DB_TIMEZONE" default:"Asia/Tashkent"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,Authorization"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

type JWTConfig struct {
	Secret   string `envconfig:"JWT_SECRET" required:"true"`
	Duration string `envconfig:"JWT_DURATION" default:"24h"`
}

// BookingConfig pins the civil zone availability is computed in.
type BookingConfig struct {
	TimeZone string `envconfig:"BOOKING_TIMEZONE" default:"Asia/Tashkent"`
}

type ClickConfig struct {
	ServiceID  string `envconfig:"CLICK_SERVICE_ID" required:"true"`
	MerchantID string `envconfig:"CLICK_MERCHANT_ID" required:"true"`
	SecretKey  string `envconfig:"CLICK_SECRET_KEY" required:"true"`
}

type PaymeConfig struct {
	MerchantID string `envconfig:"PAYME_MERCHANT_ID" required:"true"`
	Key        string `envconfig:"PAYME_KEY" required:"true"`
}

type OctoConfig struct {
	ShopID        int           `envconfig:"OCTO_SHOP_ID" required:"true"`
	Secret        string        `envconfig:"OCTO_SECRET" required:"true"`
	PrepareURL    string        `envconfig:"OCTO_PREPARE_URL" default:"https://secure.octo.uz/prepare_payment"`
	ReturnURL     string        `envconfig:"OCTO_RETURN_URL" required:"true"`
	NotifyURL     string        `envconfig:"OCTO_NOTIFY_URL" required:"true"`
	ClientTimeout time.Duration `envconfig:"OCTO_CLIENT_TIMEOUT" default:"15s"`
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&timezone=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.TimeZone,
	)
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "8889", // Test port
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433", // Test DB port
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
			TimeZone: "Asia/Tashkent",
		},
		Log: LogConfig{
			Level: "error", // Error level only for tests
		},
		Booking: BookingConfig{
			TimeZone: "Asia/Tashkent",
		},
		Click: ClickConfig{ServiceID: "12345", MerchantID: "67890", SecretKey: "click-test-secret"},
		Payme: PaymeConfig{MerchantID: "payme-test-merchant", Key: "payme-test-key"},
		Octo: OctoConfig{
			ShopID:        111,
			Secret:        "octo-test-secret",
			ReturnURL:     "http://localhost:3000/payment/result",
			NotifyURL:     "http://localhost:8889/payments/octo/callback",
			ClientTimeout: 15 * time.Second,
		},
	}
}
