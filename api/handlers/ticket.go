package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/epassport-desk/support-api/api"
	"github.com/epassport-desk/support-api/config"
	"github.com/epassport-desk/support-api/databases"
	"github.com/epassport-desk/support-api/models"
	"github.com/epassport-desk/support-api/socket"
)

// Page sets the default page number used with pagination
var Page int

// Ticket exported for testing purposes
type Ticket struct {
	DB    databases.TicketDatabase
	MDB   databases.MessageDatabase
	Relay *socket.Relay
}

// ActiveTicketsHandler returns all tickets an agent still has work on,
// newest first
func (t Ticket) ActiveTicketsHandler(w http.ResponseWriter, r *http.Request) {
	t.listTicketsHandler(w, r, bson.M{
		"status": bson.M{"$in": []string{models.TicketStatusOpen, models.TicketStatusInProgress}},
	})
}

// ClosedTicketsHandler returns all closed tickets, newest first
func (t Ticket) ClosedTicketsHandler(w http.ResponseWriter, r *http.Request) {
	t.listTicketsHandler(w, r, bson.M{"status": models.TicketStatusClosed})
}

// AwaitingConfirmationHandler returns tickets with an outstanding closure
// request that the applicant has not answered yet
func (t Ticket) AwaitingConfirmationHandler(w http.ResponseWriter, r *http.Request) {
	t.listTicketsHandler(w, r, bson.M{"pendingClosure": true})
}

func (t Ticket) listTicketsHandler(w http.ResponseWriter, r *http.Request, filter bson.M) {
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit|10, err))
	}
	Page = getPage(Page, r)
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	dbResp, err := t.DB.FindPage(ctx, filter, Limit|10, Page)
	if err != nil {
		config.ErrorStatus("failed to get tickets", http.StatusNotFound, w, err)
		return
	}
	// Because the frontend requires that the data elements inside dbResp exist, if
	// len == 0 then we will just return an empty data object
	if len(dbResp) == 0 {
		dbResp = []models.Ticket{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// TicketByIDHandler returns a ticket by ID
func (t Ticket) TicketByIDHandler(w http.ResponseWriter, r *http.Request) {
	ticketID := mux.Vars(r)["ticket_id"]

	tID, err := primitive.ObjectIDFromHex(ticketID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := t.DB.FindOne(ctx, bson.M{"_id": tID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			config.ErrorStatus("ticket not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get ticket by ID", http.StatusNotFound, w, err)
		return
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// TicketMessagesHandler returns the full transcript of a ticket, oldest first
func (t Ticket) TicketMessagesHandler(w http.ResponseWriter, r *http.Request) {
	ticketID := mux.Vars(r)["ticket_id"]

	tID, err := primitive.ObjectIDFromHex(ticketID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := t.DB.FindOne(ctx, bson.M{"_id": tID}); err != nil {
		config.ErrorStatus("ticket not found", http.StatusNotFound, w, err)
		return
	}

	sort := options.Find().SetSort(bson.D{
		{Key: "createdAt", Value: 1},
		{Key: "_id", Value: 1},
	})
	dbResp, err := t.MDB.Find(ctx, bson.M{"ticketId": tID}, sort)
	if err != nil {
		config.ErrorStatus("failed to get ticket messages", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Message{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// RequestClosureHandler asks the applicant to confirm that an in-progress
// ticket can be closed. Room members get a closureRequested event.
func (t Ticket) RequestClosureHandler(w http.ResponseWriter, r *http.Request) {
	ticketID := mux.Vars(r)["ticket_id"]

	if err := t.Relay.RequestClosureAsAdmin(r.Context(), ticketID); err != nil {
		writeSocketError(w, "failed to request closure", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"ticketID": %q, "pendingClosure": true}`, ticketID)))
}

// ConfirmClosureHandler records the applicant's consent to an outstanding
// closure request and closes the ticket
func (t Ticket) ConfirmClosureHandler(w http.ResponseWriter, r *http.Request) {
	ticketID := mux.Vars(r)["ticket_id"]

	if err := t.Relay.ConfirmClosureAsUser(r.Context(), ticketID); err != nil {
		writeSocketError(w, "failed to confirm closure", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"ticketID": %q, "status": %q}`, ticketID, models.TicketStatusClosed)))
}

// writeSocketError maps a protocol error from the realtime layer onto an
// HTTP status so both surfaces reject a request the same way.
func writeSocketError(w http.ResponseWriter, message string, err error) {
	code := http.StatusInternalServerError
	switch socket.AsError(err) {
	case socket.ErrTicketNotFound:
		code = http.StatusNotFound
	case socket.ErrInvalidTransition, socket.ErrClosurePending, socket.ErrTicketClosed:
		code = http.StatusConflict
	case socket.ErrBusy:
		code = http.StatusServiceUnavailable
	}
	config.ErrorStatus(message, code, w, err)
}

func getPage(Page int, r *http.Request) int {
	if r.URL.Query().Get("page") == "" {
		zap.S().Warnf("page not set, using default of %v", Page)
	} else {
		var err error
		Page, err = strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			zap.S().Errorf(fmt.Sprintf("error parsing page number: %v", err))
		}
		if Page < 0 {
			zap.S().Warnf(fmt.Sprintf("cannot process page number less than 1. Got: %v", Page))
			Page = 0
		}
	}
	return Page
}
