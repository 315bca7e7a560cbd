package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/epassport-desk/support-api/api"
	"github.com/epassport-desk/support-api/api/scheduler"
	"github.com/epassport-desk/support-api/config"
	"github.com/epassport-desk/support-api/databases"
	"github.com/epassport-desk/support-api/mailer"
	"github.com/epassport-desk/support-api/models"
	"github.com/epassport-desk/support-api/socket"
)

// App stores the router, db connection and realtime stack, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Socket    *socket.Server
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{
		DB:        databases.NewAdminDatabase(a.dbHelper),
		JWTSecret: []byte(a.Config.AdminJWTSecret),
	}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	t := Ticket{
		DB:    databases.NewTicketDatabase(a.dbHelper),
		MDB:   databases.NewMessageDatabase(a.dbHelper),
		Relay: a.Socket.Relay(),
	}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	// realtime ticket sessions
	r.HandleFunc("/ws", a.Socket.ServeWS)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(mux.MiddlewareFunc(api.TimeoutMiddleware(api.QueryTimeout)))

	apiCreate.Handle("/auth/token", http.HandlerFunc(m.CreateToken)).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/tickets/active", api.Middleware(http.HandlerFunc(t.ActiveTicketsHandler))).Methods("GET")
	apiCreate.Handle("/tickets/closed", api.Middleware(http.HandlerFunc(t.ClosedTicketsHandler))).Methods("GET")
	apiCreate.Handle("/tickets/awaiting-confirmation", api.Middleware(http.HandlerFunc(t.AwaitingConfirmationHandler))).Methods("GET")
	apiCreate.Handle("/ticket/{ticket_id}", api.Middleware(http.HandlerFunc(t.TicketByIDHandler))).Methods("GET")
	apiCreate.Handle("/ticket/{ticket_id}/messages", api.Middleware(http.HandlerFunc(t.TicketMessagesHandler))).Methods("GET")
	apiCreate.Handle("/ticket/{ticket_id}/request-closure", api.Middleware(http.HandlerFunc(t.RequestClosureHandler))).Methods("PATCH")

	// user side of the closure handshake carries no admin credentials
	apiCreate.Handle("/ticket/{ticket_id}/confirm-closure", http.HandlerFunc(t.ConfirmClosureHandler)).Methods("PATCH")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("support-api has connected to the database")

	// realtime stack: store, notifier, socket server
	store := socket.NewTicketStore(
		databases.NewTicketDatabase(a.dbHelper),
		databases.NewMessageDatabase(a.dbHelper),
	)
	notifier := mailer.New(a.Config.SupportInboxEmail, a.Config.BaseURL)
	a.Socket = socket.NewServer(store, []byte(a.Config.AdminJWTSecret), notifier, 0)

	// background sweep of stale closure requests
	a.Scheduler = scheduler.NewScheduler(a.Socket.Relay(), a.Config.ClosureRequestTTL)
	a.Scheduler.Start()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
