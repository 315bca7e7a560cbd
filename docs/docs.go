// Package docs e-Passport Support Desk API.
//
// Documentation of the e-Passport Support Desk API.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - basic
//
//    SecurityDefinitions:
//    basic:
//      type: basic
//
// swagger:meta
package docs

import (
	"github.com/epassport-desk/support-api/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route GET /api/v1/ticket/{ticket_id} ticket ticketByID
// Gets a single support ticket by ID.
// responses:
//   200: ticketByIDResponse

// Shows a single support ticket by the given {ticket_id}
// swagger:response ticketByIDResponse
type ticketByIDResponseWrapper struct {
	// in:body
	Body models.Ticket
}

// swagger:route GET /api/v1/tickets/active ticket activeTickets
// Lists tickets that are OPEN or IN_PROGRESS, newest first.
// responses:
//   200: ticketListResponse

// A page of support tickets.
// swagger:response ticketListResponse
type ticketListResponseWrapper struct {
	// in:body
	Body []models.Ticket
}

// swagger:route GET /api/v1/ticket/{ticket_id}/messages ticket ticketMessages
// Lists the full transcript of a ticket, oldest first.
// responses:
//   200: ticketMessagesResponse

// The ordered message log of one ticket.
// swagger:response ticketMessagesResponse
type ticketMessagesResponseWrapper struct {
	// in:body
	Body []models.Message
}
