package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers accepted in DB_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (e.g. "dev", "production")
	Port string // HTTP port to listen on

	DBDriver  string // mysql, sqlite or memory
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	DBPath    string // sqlite file path
	DBMigrate bool   // apply the schema at startup

	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	SignupBonus    int64  // points credited to every new account

	AdminEmail    string // bootstrap admin account, skipped when empty
	AdminPassword string

	ShutdownTimeout time.Duration // grace period for in-flight requests
}

// Load reads .env (when present) and then the environment. Every missing or
// malformed required variable is reported in the returned error.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env file is not an error

	var e env
	cfg := Config{
		Env:             getenv("APP_ENV", "development"),
		Port:            getenv("APP_PORT", "8080"),
		DBDriver:        strings.ToLower(getenv("DB_DRIVER", DriverMySQL)),
		DBPass:          os.Getenv("DB_PASS"),
		DBMigrate:       envBool("DB_MIGRATE", true),
		JWTSecret:       e.must("JWT_SECRET"),
		AccessTTLMin:    e.mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays:  e.mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:      envInt("BCRYPT_COST", 10),
		SignupBonus:     int64(envInt("SIGNUP_BONUS_POINTS", 100)),
		ShutdownTimeout: envDur("SHUTDOWN_TIMEOUT", 10*time.Second),
		AdminEmail:      os.Getenv("ADMIN_EMAIL"),
		AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
	}
	if cfg.AdminEmail != "" && cfg.AdminPassword == "" {
		e.errs = append(e.errs, errors.New("ADMIN_PASSWORD is required with ADMIN_EMAIL"))
	}

	switch cfg.DBDriver {
	case DriverMySQL:
		cfg.DBUser = e.must("DB_USER")
		cfg.DBHost = e.must("DB_HOST")
		cfg.DBPort = e.must("DB_PORT")
		cfg.DBName = e.must("DB_NAME")
	case DriverSQLite:
		cfg.DBPath = getenv("DB_PATH", "rewear.db")
	case DriverMemory:
	default:
		e.errs = append(e.errs, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver))
	}
	if cfg.SignupBonus < 0 {
		e.errs = append(e.errs, errors.New("SIGNUP_BONUS_POINTS cannot be negative"))
	}
	return cfg, errors.Join(e.errs...)
}

// env collects failures so that Load can report all of them at once.
type env struct{ errs []error }

// must retrieves the value of a required environment variable.
func (e *env) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		e.errs = append(e.errs, fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func (e *env) mustInt(key string) int {
	s := e.must(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid int for %s: %q", key, s))
	}
	return n
}
