package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/epassport-desk/support-api/databases"
	"github.com/epassport-desk/support-api/socket"
)

var a App

func setupApp() {
	a.Socket = socket.NewServer(
		socket.NewTicketStore(databases.NewTicketDatabase(nil), databases.NewMessageDatabase(nil)),
		[]byte("test-secret"), nil, 0)
	a.Router = a.New()
}

func executeRequest(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.Router.ServeHTTP(rr, req)
	return rr
}

func checkResponseCode(t *testing.T, expected, actual int) {
	if expected != actual {
		t.Errorf("Expected response code %d. Got %d\n", expected, actual)
	}
}

func TestUnknownRoute(t *testing.T) {
	setupApp()
	req, _ := http.NewRequest("GET", "/asdf", nil)
	response := executeRequest(req)

	checkResponseCode(t, http.StatusNotFound, response.Code)
}

func TestHealthCheckRoute(t *testing.T) {
	setupApp()
	req, _ := http.NewRequest("GET", "/health", nil)
	response := executeRequest(req)

	checkResponseCode(t, http.StatusOK, response.Code)

	if !strings.Contains(response.Body.String(), "alive") {
		t.Errorf("Expected 'alive' in the reponse. Got '%s'", response.Body.String())
	}
}

func TestApp_TicketsHandlerUnauthorized(t *testing.T) {
	setupApp()
	req, _ := http.NewRequest("GET", "/api/v1/tickets/active", nil)
	response := executeRequest(req)

	checkResponseCode(t, http.StatusUnauthorized, response.Code)
}

func TestApp_TicketHandlerWrongMethod(t *testing.T) {
	setupApp()
	req, _ := http.NewRequest("DELETE", "/api/v1/tickets/active", nil)
	response := executeRequest(req)

	checkResponseCode(t, http.StatusMethodNotAllowed, response.Code)
}
