package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	DatabaseURL  string
	DatabaseName string
	BaseURL      string
	Port         string
	JWTSecret    string

	ScorerURL     string
	ScorerTimeout time.Duration

	// AutoRejectThreshold is the risk score at or above which content is
	// rejected outright regardless of author trust.
	AutoRejectThreshold int

	StatusPollInterval time.Duration
	StatusPollAttempts int
}

// New sets up all config related services
func New() *Config {

	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	//setup zap logger and replace default logger
	logger, err := setLogger(os.Getenv("ENVIRONMENT"))
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &Config{
		DatabaseURL:         os.Getenv("DB_URI"),
		DatabaseName:        os.Getenv("DB_NAME"),
		BaseURL:             os.Getenv("BASE_URL"),
		Port:                os.Getenv("PORT"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		ScorerURL:           os.Getenv("SCORER_URL"),
		ScorerTimeout:       envDuration("SCORER_TIMEOUT", 5*time.Second),
		AutoRejectThreshold: envInt("AUTO_REJECT_THRESHOLD", 80),
		StatusPollInterval:  envDuration("STATUS_POLL_INTERVAL", time.Second),
		StatusPollAttempts:  envInt("STATUS_POLL_ATTEMPTS", 10),
	}

}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
}
