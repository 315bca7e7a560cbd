package config

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	conf := New()

	assert.NotEmpty(t, conf)
	assert.Equal(t, DefaultClosureRequestTTL, conf.ClosureRequestTTL)
}

func TestNewClosureRequestTTLOverride(t *testing.T) {
	os.Setenv("CLOSURE_REQUEST_TTL", "30m")
	defer os.Unsetenv("CLOSURE_REQUEST_TTL")
	conf := New()

	assert.Equal(t, 30*time.Minute, conf.ClosureRequestTTL)
}

func TestNewClosureRequestTTLInvalid(t *testing.T) {
	os.Setenv("CLOSURE_REQUEST_TTL", "not-a-duration")
	defer os.Unsetenv("CLOSURE_REQUEST_TTL")
	conf := New()

	assert.Equal(t, DefaultClosureRequestTTL, conf.ClosureRequestTTL)
}

func TestErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorStatus("error it borked", http.StatusBadRequest, rr, errors.New("bad request"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "error it borked")
}
