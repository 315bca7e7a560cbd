package socket

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/epassport-desk/support-api/models"
)

// Notifier is told about user messages that land while no admin is in the
// room; implementations decide how to reach the support staff.
type Notifier interface {
	UserMessage(ticket models.Ticket, msg models.Message)
}

// Relay validates and persists chat traffic and drives the ticket status
// lifecycle. All mutations of one ticket run under that ticket's exclusive
// scope: persist before broadcast, status transition before message
// broadcast, first writer wins.
type Relay struct {
	registry *Registry
	hub      *Hub
	store    TicketStore
	locks    *ticketLocks
	notifier Notifier
}

// NewRelay wires the message relay over the shared registry, hub, store and
// per-ticket locks. notifier may be nil.
func NewRelay(registry *Registry, hub *Hub, store TicketStore, locks *ticketLocks, notifier Notifier) *Relay {
	return &Relay{
		registry: registry,
		hub:      hub,
		store:    store,
		locks:    locks,
		notifier: notifier,
	}
}

// SendMessage persists one chat message and broadcasts it to the room,
// auto-advancing an OPEN ticket to IN_PROGRESS when the author is an admin.
func (rl *Relay) SendMessage(ctx context.Context, c *Client, ticketID, content string) error {
	sess, ok := rl.registry.Lookup(c.ID)
	if !ok || !sess.Authenticated {
		return ErrNotAuthenticated
	}
	if !rl.hub.InRoom(c, ticketID) {
		return ErrNotInRoom
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}

	release, err := rl.locks.acquire(ticketID)
	if err != nil {
		return err
	}
	defer release()

	ticket, err := rl.store.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.PendingClosure {
		return ErrClosurePending
	}
	if ticket.Status == models.TicketStatusClosed && sess.Role == models.RoleUser {
		// Reopening is an explicit updateTicketStatus action, never a side
		// effect of writing into a closed ticket.
		return ErrTicketClosed
	}

	msg, err := rl.store.AppendMessage(ctx, ticketID, content, sess.Role)
	if err != nil {
		return err
	}

	var advanced *models.Ticket
	if sess.Role == models.RoleAdmin && ticket.Status == models.TicketStatusOpen {
		advanced, err = rl.store.UpdateStatus(ctx, ticketID, models.TicketStatusInProgress)
		if err != nil {
			return err
		}
	}

	rl.hub.Broadcast(ticketID, EventNewMessage, msg)
	if advanced != nil {
		rl.hub.Broadcast(ticketID, EventTicketStatusUpdated, StatusUpdatedPayload{
			ID:     advanced.ID.Hex(),
			Status: advanced.Status,
		})
	}

	if rl.notifier != nil && sess.Role == models.RoleUser && !rl.hub.AdminPresent(ticketID) {
		go rl.notifier.UserMessage(*ticket, *msg)
	}

	zap.S().Debugw("message relayed",
		"ticketId", ticketID,
		"role", sess.Role,
		"autoAdvanced", advanced != nil,
	)
	return nil
}

// UpdateStatus applies a direct role-gated status transition.
func (rl *Relay) UpdateStatus(ctx context.Context, c *Client, ticketID, status string) error {
	sess, ok := rl.registry.Lookup(c.ID)
	if !ok || !sess.Authenticated {
		return ErrNotAuthenticated
	}
	if !models.ValidTicketStatus(status) {
		return ErrInvalidTransition
	}

	release, err := rl.locks.acquire(ticketID)
	if err != nil {
		return err
	}
	defer release()

	ticket, err := rl.store.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if !CanTransition(sess.Role, ticket.Status, status) {
		return ErrInvalidTransition
	}

	updated, err := rl.store.UpdateStatus(ctx, ticketID, status)
	if err != nil {
		return err
	}

	rl.hub.Broadcast(ticketID, EventTicketStatusUpdated, StatusUpdatedPayload{
		ID:     updated.ID.Hex(),
		Status: updated.Status,
	})
	return nil
}

// RequestClosure starts the two-phase closure handshake: admin only, and
// only on an IN_PROGRESS ticket without an outstanding request.
func (rl *Relay) RequestClosure(ctx context.Context, c *Client, ticketID string) error {
	sess, ok := rl.registry.Lookup(c.ID)
	if !ok || !sess.Authenticated {
		return ErrNotAuthenticated
	}
	if sess.Role != models.RoleAdmin {
		return ErrAccessDenied
	}
	return rl.requestClosure(ctx, ticketID)
}

// RequestClosureAsAdmin is the REST entry point for the same operation; the
// caller has already been authenticated by the HTTP middleware.
func (rl *Relay) RequestClosureAsAdmin(ctx context.Context, ticketID string) error {
	return rl.requestClosure(ctx, ticketID)
}

func (rl *Relay) requestClosure(ctx context.Context, ticketID string) error {
	release, err := rl.locks.acquire(ticketID)
	if err != nil {
		return err
	}
	defer release()

	ticket, err := rl.store.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.Status != models.TicketStatusInProgress || ticket.PendingClosure {
		return ErrInvalidTransition
	}

	if _, err := rl.store.RequestClosure(ctx, ticketID); err != nil {
		return err
	}
	rl.hub.Broadcast(ticketID, EventClosureRequested, ClosurePayload{TicketID: ticketID})
	return nil
}

// ConfirmClosure is the user's consent to an outstanding closure request;
// it closes the ticket.
func (rl *Relay) ConfirmClosure(ctx context.Context, c *Client, ticketID string) error {
	sess, ok := rl.registry.Lookup(c.ID)
	if !ok || !sess.Authenticated {
		return ErrNotAuthenticated
	}
	if sess.Role != models.RoleUser {
		return ErrAccessDenied
	}
	return rl.confirmClosure(ctx, ticketID)
}

// ConfirmClosureAsUser is the REST entry point for the same operation.
func (rl *Relay) ConfirmClosureAsUser(ctx context.Context, ticketID string) error {
	return rl.confirmClosure(ctx, ticketID)
}

func (rl *Relay) confirmClosure(ctx context.Context, ticketID string) error {
	release, err := rl.locks.acquire(ticketID)
	if err != nil {
		return err
	}
	defer release()

	ticket, err := rl.store.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if !ticket.PendingClosure {
		return ErrInvalidTransition
	}

	updated, err := rl.store.ConfirmClosure(ctx, ticketID)
	if err != nil {
		return err
	}
	rl.hub.Broadcast(ticketID, EventTicketStatusUpdated, StatusUpdatedPayload{
		ID:     updated.ID.Hex(),
		Status: updated.Status,
	})
	return nil
}

// DeclineClosure clears an outstanding closure request without changing the
// ticket status.
func (rl *Relay) DeclineClosure(ctx context.Context, c *Client, ticketID string) error {
	sess, ok := rl.registry.Lookup(c.ID)
	if !ok || !sess.Authenticated {
		return ErrNotAuthenticated
	}
	if sess.Role != models.RoleUser {
		return ErrAccessDenied
	}

	release, err := rl.locks.acquire(ticketID)
	if err != nil {
		return err
	}
	defer release()

	ticket, err := rl.store.GetTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	if !ticket.PendingClosure {
		return ErrInvalidTransition
	}

	if _, err := rl.store.DeclineClosure(ctx, ticketID); err != nil {
		return err
	}
	rl.hub.Broadcast(ticketID, EventClosureDeclined, ClosurePayload{TicketID: ticketID})
	return nil
}

// ExpireClosureRequests auto-declines every closure request older than ttl,
// broadcasting closureDeclined so both parties see the request lapse. It
// returns how many requests were expired.
func (rl *Relay) ExpireClosureRequests(ctx context.Context, ttl time.Duration) (int, error) {
	stale, err := rl.store.ListPendingClosuresBefore(ctx, time.Now().Add(-ttl))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, ticket := range stale {
		ticketID := ticket.ID.Hex()

		release, err := rl.locks.acquire(ticketID)
		if err != nil {
			zap.S().Warnw("skipping busy ticket during closure sweep", "ticketId", ticketID)
			continue
		}

		current, err := rl.store.GetTicket(ctx, ticketID)
		if err == nil && current.PendingClosure {
			if _, err = rl.store.DeclineClosure(ctx, ticketID); err == nil {
				rl.hub.Broadcast(ticketID, EventClosureDeclined, ClosurePayload{
					TicketID: ticketID,
					Expired:  true,
				})
				expired++
			}
		}
		if err != nil {
			zap.S().Errorw("failed to expire closure request", "ticketId", ticketID, "error", err)
		}
		release()
	}
	return expired, nil
}
