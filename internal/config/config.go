package config // package config loads application configuration from environment variables

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; sub-configs for individual concerns are loaded by
// their own Load* functions.
type Config struct {
	Env                string        // application environment (development, production, test)
	Port               string        // HTTP port to listen on
	DatabaseURL        string        // postgres connection string
	JWTSecret          string        // secret used to sign admin JWTs
	AdminTokenTTL      time.Duration // lifetime of an admin session token
	AdminPassword      string        // shared admin password (plain, hashed at startup)
	AdminPasswordHash  string        // bcrypt hash of the shared admin password
	BcryptCost         int           // bcrypt cost used when hashing AdminPassword
	RegistrationPrefix string        // fixed prefix of generated registration identifiers
	CORSOrigins        []string      // allowed browser origins
	BodyLimit          string        // echo body limit (e.g. "10M")
	LogLevel           string        // zerolog level name
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:                envStr("APP_ENV", "development"),
		Port:               must("APP_PORT"),
		DatabaseURL:        databaseURL(),
		JWTSecret:          must("JWT_SECRET"),
		AdminTokenTTL:      envDur("ADMIN_TOKEN_TTL", 12*time.Hour),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		AdminPasswordHash:  os.Getenv("ADMIN_PASSWORD_HASH"),
		BcryptCost:         envInt("BCRYPT_COST", 12),
		RegistrationPrefix: envStr("REGISTRATION_PREFIX", "ESP2026"),
		CORSOrigins:        splitList(envStr("FRONTEND_URL", "http://localhost:3000,http://localhost:5500")),
		BodyLimit:          envStr("BODY_LIMIT", "10M"),
		LogLevel:           envStr("LOG_LEVEL", "info"),
	}
	if cfg.AdminPassword == "" && cfg.AdminPasswordHash == "" {
		log.Fatal().Msg("missing required env var: ADMIN_PASSWORD or ADMIN_PASSWORD_HASH")
	}
	return cfg
}

// Development reports whether error details may be exposed to clients.
func (c Config) Development() bool { return c.Env == "development" }

// databaseURL prefers DATABASE_URL and otherwise assembles a DSN from the
// libpq-style PG* variables.
func databaseURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	host := envStr("PGHOST", "localhost")
	port := envStr("PGPORT", "5432")
	user := envStr("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	name := envStr("PGDATABASE", "esplendidez2026")
	ssl := envStr("PGSSLMODE", "disable")
	auth := user
	if pass != "" {
		auth = user + ":" + pass
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", auth, host, port, name, ssl)
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatal().Msgf("missing required env var: %s", key)
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envInt64(k string, d int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
