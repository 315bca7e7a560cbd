package socket

import "github.com/epassport-desk/support-api/models"

// allowedTransitions is the role-gated status transition table. Any
// (role, from, to) triple not listed here is rejected with
// ErrInvalidTransition and leaves the ticket unchanged.
//
// The OPEN -> IN_PROGRESS auto-advance triggered by the first admin message
// is a system transition applied by the relay and is deliberately absent
// from the caller-facing table.
var allowedTransitions = map[string]map[string][]string{
	models.RoleAdmin: {
		models.TicketStatusOpen:       {models.TicketStatusInProgress, models.TicketStatusClosed},
		models.TicketStatusInProgress: {models.TicketStatusClosed},
		models.TicketStatusClosed:     {models.TicketStatusInProgress},
	},
	models.RoleUser: {
		models.TicketStatusClosed: {models.TicketStatusOpen},
	},
}

// CanTransition reports whether role may move a ticket from one status to
// another via the direct updateTicketStatus path.
func CanTransition(role, from, to string) bool {
	for _, next := range allowedTransitions[role][from] {
		if next == to {
			return true
		}
	}
	return false
}
