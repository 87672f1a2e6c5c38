package config // package config loads application configuration from environment variables

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds the runtime configuration of the HTTP server.  Each field
// corresponds to an environment variable.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string
	DBPass       string // optional
	DBHost       string
	DBPort       string
	DBName       string
	JWTSecret    string // secret shared with the auth service to verify HS256 tokens
	AccessTTLMin int    // lifetime of tokens minted by the dev-token command
	LogLevel     string

	// Location is the bar's time zone.  Slot hours are wall-clock hours in it.
	Location *time.Location

	QRTokenTTL         time.Duration
	UserServiceURL     string // empty disables the free-slot ban check
	UserServiceTimeout time.Duration
	RunJobs            bool // run the outbox relay and no-show sweep inside the server process
}

// Load reads an optional .env file and then the environment.  Missing
// required variables exit the program with a fatal log line.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("config: could not read .env file")
	}
	return Config{
		Env:                must("APP_ENV"),
		Port:               must("APP_PORT"),
		DBUser:             must("DB_USER"),
		DBPass:             os.Getenv("DB_PASS"),
		DBHost:             must("DB_HOST"),
		DBPort:             must("DB_PORT"),
		DBName:             must("DB_NAME"),
		JWTSecret:          must("JWT_SECRET"),
		AccessTTLMin:       envInt("ACCESS_TOKEN_TTL_MIN", 60),
		LogLevel:           envStr("LOG_LEVEL", "info"),
		Location:           mustLocation("BAR_TIMEZONE", "Asia/Bangkok"),
		QRTokenTTL:         envDur("QR_TOKEN_TTL", 24*time.Hour),
		UserServiceURL:     os.Getenv("USER_SERVICE_URL"),
		UserServiceTimeout: envDur("USER_SERVICE_TIMEOUT", 3*time.Second),
		RunJobs:            envBool("RUN_JOBS", false),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustLocation loads the IANA zone named by key, falling back to def.
func mustLocation(key, def string) *time.Location {
	name := envStr(key, def)
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Fatalf("invalid time zone for %s: %q", key, name)
	}
	return loc
}
