package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIURL         string
	RequestTimeout time.Duration
	Debug          bool // dump API traffic

	DBDriver string // sqlite|postgres|fs
	DBDSN    string // for fs, the directory holding one file per key

	// Optional passphrase; when set, tokens are sealed before hitting local storage.
	SessionKey string

	CacheTTL      time.Duration
	RedisAddr     string // empty -> in-process cache
	RedisPassword string
	RedisDB       int

	HTTPAddr    string // companion daemon
	CORSOrigins []string

	ReturnAddr       string // loopback listener for payment provider redirects
	PollTimeout      time.Duration
	PositionInterval time.Duration

	Language string // vi|en, used until a preference is stored
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) Config {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f) // never overrides variables that are already set
		}
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		APIURL:           strings.TrimSuffix(envOr("LEARNER_API_URL", "http://localhost:8000/api"), "/"),
		RequestTimeout:   envDuration("LEARNER_REQUEST_TIMEOUT", 30*time.Second),
		Debug:            envBool("LEARNER_DEBUG", false),
		DBDriver:         envOr("LEARNER_DB_DRIVER", "sqlite"),
		DBDSN:            envOr("LEARNER_DB_DSN", ""),
		SessionKey:       os.Getenv("LEARNER_SESSION_KEY"),
		CacheTTL:         envDuration("LEARNER_CACHE_TTL", 5*time.Minute),
		RedisAddr:        os.Getenv("LEARNER_REDIS_ADDR"),
		RedisPassword:    os.Getenv("LEARNER_REDIS_PASSWORD"),
		RedisDB:          envInt("LEARNER_REDIS_DB", 0),
		HTTPAddr:         envOr("LEARNER_HTTP_ADDR", "127.0.0.1:7410"),
		CORSOrigins:      csvOr("LEARNER_CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"),
		ReturnAddr:       envOr("LEARNER_RETURN_ADDR", "127.0.0.1:7411"),
		PollTimeout:      envDuration("LEARNER_POLL_TIMEOUT", 2*time.Minute),
		PositionInterval: envDuration("LEARNER_POSITION_INTERVAL", 5*time.Second),
		Language:         envOr("LEARNER_LANGUAGE", "vi"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	v := strings.ToLower(os.Getenv(k))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
