package app

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"naccexam/internal/db"

	"github.com/joho/godotenv"
)

const devJWTSecret = "naccexam-dev-secret"

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	HTTPAddr          string
	DBDriver          string
	DBDSN             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifeMins int

	ExamTestIDs string

	JWTSecret            string
	JWTTTLHours          int
	LoginRateLimitPerMin int

	CORSAllowedOrigins []string
	RequestTimeout     time.Duration

	AMQPURL      string
	AMQPExchange string

	BootstrapAdminUsername string
	BootstrapAdminPassword string
}

// LoadConfig reads a .env file from the working directory when present,
// without overriding variables already set, then the environment.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	appEnv := envOrDefault("APP_ENV", "development")
	secret := os.Getenv("JWT_SECRET")
	if secret == "" && !isProduction(appEnv) {
		secret = devJWTSecret
	}

	return Config{
		AppEnv:                 appEnv,
		HTTPAddr:               envOrDefault("HTTP_ADDR", ":8080"),
		DBDriver:               envOrDefault("DB_DRIVER", string(db.DriverPostgres)),
		DBDSN:                  os.Getenv("DB_DSN"),
		DBMaxOpenConns:         intOrDefault("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:         intOrDefault("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifeMins:      intOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		ExamTestIDs:            os.Getenv("EXAM_TEST_IDS"),
		JWTSecret:              secret,
		JWTTTLHours:            intOrDefault("JWT_TTL_HOURS", 12),
		LoginRateLimitPerMin:   intOrDefault("LOGIN_RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins:     csvOrDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RequestTimeout:         time.Duration(intOrDefault("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		AMQPURL:                os.Getenv("AMQP_URL"),
		AMQPExchange:           os.Getenv("AMQP_EXCHANGE"),
		BootstrapAdminUsername: os.Getenv("BOOTSTRAP_ADMIN_USERNAME"),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
	}
}

func (c Config) Validate() error {
	if _, err := db.ParseDriver(c.DBDriver); err != nil {
		return err
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	if isProduction(c.AppEnv) && c.JWTSecret == devJWTSecret {
		return errors.New("JWT_SECRET must not use the development default in production")
	}
	if (c.BootstrapAdminUsername == "") != (c.BootstrapAdminPassword == "") {
		return errors.New("BOOTSTRAP_ADMIN_USERNAME and BOOTSTRAP_ADMIN_PASSWORD must be set together")
	}
	return nil
}

// DBConfig maps the DB_* keys onto the storage layer's settings.
func (c Config) DBConfig() (db.Config, error) {
	driver, err := db.ParseDriver(c.DBDriver)
	if err != nil {
		return db.Config{}, err
	}
	return db.Config{
		Driver:          driver,
		DSN:             c.DBDSN,
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(c.DBConnMaxLifeMins) * time.Minute,
	}, nil
}

func isProduction(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return true
	}
	return false
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsToInt(v string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(v))
	return n
}

func intOrDefault(key string, fallback int) int {
	v := stringsToInt(os.Getenv(key))
	if v <= 0 {
		return fallback
	}
	return v
}

func csvOrDefault(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
