package config

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/epassport-desk/support-api/models"
)

// DefaultClosureRequestTTL is how long an admin closure request may sit
// unanswered before the sweeper auto-declines it.
const DefaultClosureRequestTTL = 24 * time.Hour

// Config holds the project config values
type Config struct {
	URL               string
	DatabaseName      string
	BaseURL           string
	Port              string
	AdminJWTSecret    string
	SupportInboxEmail string
	ClosureRequestTTL time.Duration
}

// New sets up all config related services
func New() *Config {

	//setup zap logger and replace default logger
	logger := zap.NewExample()
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	ttl := DefaultClosureRequestTTL
	if v := os.Getenv("CLOSURE_REQUEST_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			zap.S().Warnw("invalid CLOSURE_REQUEST_TTL, using default",
				"value", v,
				"default", DefaultClosureRequestTTL,
			)
		} else {
			ttl = d
		}
	}

	return &Config{
		URL:               os.Getenv("DB_URI"),
		DatabaseName:      os.Getenv("DB_NAME"),
		BaseURL:           os.Getenv("BASE_URL"),
		Port:              os.Getenv("PORT"),
		AdminJWTSecret:    os.Getenv("ADMIN_JWT_SECRET"),
		SupportInboxEmail: os.Getenv("SUPPORT_INBOX_EMAIL"),
		ClosureRequestTTL: ttl,
	}

}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	b, _ := json.Marshal(models.ErrorMessageResponse{Response: models.MessageError{
		Message: message,
		Error:   err.Error(),
	}})
	w.Write(b)
}
