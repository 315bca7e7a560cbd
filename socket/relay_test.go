package socket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/epassport-desk/support-api/models"
)

func joinedUser(t *testing.T, srv *Server, ticket models.Ticket) *Client {
	t.Helper()
	c := newTestClient(srv)
	authUser(t, srv, c, ticket.SessionID)
	assert.NoError(t, srv.hub.Join(context.Background(), c, ticket.ID.Hex()))
	drainEvents(t, c)
	return c
}

func joinedAdmin(t *testing.T, srv *Server, ticket models.Ticket) *Client {
	t.Helper()
	c := newTestClient(srv)
	authAdmin(t, srv, c)
	assert.NoError(t, srv.hub.Join(context.Background(), c, ticket.ID.Hex()))
	drainEvents(t, c)
	return c
}

func TestRelay_SendMessageRequiresRoom(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	srv := NewServer(newFakeStore(ticket), testSecret, nil, 0)

	c := newTestClient(srv)
	authUser(t, srv, c, "sess-1")

	err := srv.relay.SendMessage(context.Background(), c, ticket.ID.Hex(), "hello")
	assert.Equal(t, ErrNotInRoom, err)
}

func TestRelay_SendMessageRejectsEmptyContent(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	store := newFakeStore(ticket)
	srv := NewServer(store, testSecret, nil, 0)
	user := joinedUser(t, srv, ticket)

	err := srv.relay.SendMessage(context.Background(), user, ticket.ID.Hex(), "   \n\t ")
	assert.Equal(t, ErrEmptyContent, err)
	assert.Empty(t, store.messages[ticket.ID.Hex()])
}

func TestRelay_SendMessagePersistsThenBroadcasts(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	store := newFakeStore(ticket)
	srv := NewServer(store, testSecret, nil, 0)

	user := joinedUser(t, srv, ticket)
	admin := joinedAdmin(t, srv, ticket)
	drainEvents(t, user)

	assert.NoError(t, srv.relay.SendMessage(context.Background(), user, ticket.ID.Hex(), "hello"))

	// persisted first
	assert.Len(t, store.messages[ticket.ID.Hex()], 1)

	// both room members receive the same frame, author included
	for _, c := range []*Client{user, admin} {
		events := drainEvents(t, c)
		assert.Equal(t, []string{EventNewMessage}, eventNames(events))

		var msg models.Message
		assert.NoError(t, json.Unmarshal(events[0].Data, &msg))
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, models.RoleUser, msg.Role)
	}
}

func TestRelay_AdminMessageAutoAdvancesOpenTicket(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	store := newFakeStore(ticket)
	srv := NewServer(store, testSecret, nil, 0)

	user := joinedUser(t, srv, ticket)
	admin := joinedAdmin(t, srv, ticket)
	drainEvents(t, user)

	assert.NoError(t, srv.relay.SendMessage(context.Background(), admin, ticket.ID.Hex(), "on it"))

	got, err := store.GetTicket(context.Background(), ticket.ID.Hex())
	assert.NoError(t, err)
	assert.Equal(t, models.TicketStatusInProgress, got.Status)

	// the message lands before the status change
	events := drainEvents(t, user)
	assert.Equal(t, []string{EventNewMessage, EventTicketStatusUpdated}, eventNames(events))

	var p StatusUpdatedPayload
	assert.NoError(t, json.Unmarshal(events[1].Data, &p))
	assert.Equal(t, models.TicketStatusInProgress, p.Status)
}

func TestRelay_UserMessageDoesNotAdvanceOpenTicket(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	store := newFakeStore(ticket)
	srv := NewServer(store, testSecret, nil, 0)
	user := joinedUser(t, srv, ticket)

	assert.NoError(t, srv.relay.SendMessage(context.Background(), user, ticket.ID.Hex(), "anyone there?"))

	got, err := store.GetTicket(context.Background(), ticket.ID.Hex())
	assert.NoError(t, err)
	assert.Equal(t, models.TicketStatusOpen, got.Status)
}

func TestRelay_PendingClosureBlocksMessages(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	ticket.Status = models.TicketStatusInProgress
	store := newFakeStore(ticket)
	srv := NewServer(store, testSecret, nil, 0)

	user := joinedUser(t, srv, ticket)
	admin := joinedAdmin(t, srv, ticket)

	assert.NoError(t, srv.relay.RequestClosure(context.Background(), admin, ticket.ID.Hex()))

	err := srv.relay.SendMessage(context.Background(), user, ticket.ID.Hex(), "wait")
	assert.Equal(t, ErrClosurePending, err)
	err = srv.relay.SendMessage(context.Background(), admin, ticket.ID.Hex(), "closing now")
	assert.Equal(t, ErrClosurePending, err)
	assert.Empty(t, store.messages[ticket.ID.Hex()])
}

func TestRelay_UserCannotMessageClosedTicket(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	ticket.Status = models.TicketStatusClosed
	store := newFakeStore(ticket)
	srv := NewServer(store, testSecret, nil, 0)
	user := joinedUser(t, srv, ticket)

	err := srv.relay.SendMessage(context.Background(), user, ticket.ID.Hex(), "one more thing")
	assert.Equal(t, ErrTicketClosed, err)

	// status is untouched, a write never reopens a closed ticket
	got, _ := store.GetTicket(context.Background(), ticket.ID.Hex())
	assert.Equal(t, models.TicketStatusClosed, got.Status)
}

func TestRelay_AdminCanMessageClosedTicket(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	ticket.Status = models.TicketStatusClosed
	store := newFakeStore(ticket)
	srv := NewServer(store, testSecret, nil, 0)
	admin := joinedAdmin(t, srv, ticket)

	assert.NoError(t, srv.relay.SendMessage(context.Background(), admin, ticket.ID.Hex(), "for the record"))
	assert.Len(t, store.messages[ticket.ID.Hex()], 1)
}

func TestRelay_NotifierCalledWhenNoAdminPresent(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	store := newFakeStore(ticket)
	notifier := newFakeNotifier()
	srv := NewServer(store, testSecret, notifier, 0)
	user := joinedUser(t, srv, ticket)

	assert.NoError(t, srv.relay.SendMessage(context.Background(), user, ticket.ID.Hex(), "hello?"))

	select {
	case msg := <-notifier.ch:
		assert.Equal(t, "hello?", msg.Content)
	case <-time.After(time.Second):
		t.Fatal("notifier was never called")
	}
}

func TestRelay_NotifierSkippedWhenAdminPresent(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	store := newFakeStore(ticket)
	notifier := newFakeNotifier()
	srv := NewServer(store, testSecret, notifier, 0)

	user := joinedUser(t, srv, ticket)
	joinedAdmin(t, srv, ticket)
	drainEvents(t, user)

	assert.NoError(t, srv.relay.SendMessage(context.Background(), user, ticket.ID.Hex(), "hello?"))

	select {
	case <-notifier.ch:
		t.Fatal("notifier called even though an admin was in the room")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRelay_UpdateStatusRoleGated(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	store := newFakeStore(ticket)
	srv := NewServer(store, testSecret, nil, 0)

	user := joinedUser(t, srv, ticket)
	admin := joinedAdmin(t, srv, ticket)
	drainEvents(t, user)

	// user may not start work on a ticket
	err := srv.relay.UpdateStatus(context.Background(), user, ticket.ID.Hex(), models.TicketStatusInProgress)
	assert.Equal(t, ErrInvalidTransition, err)

	// admin may
	assert.NoError(t, srv.relay.UpdateStatus(context.Background(), admin, ticket.ID.Hex(), models.TicketStatusInProgress))

	events := drainEvents(t, user)
	assert.Equal(t, []string{EventTicketStatusUpdated}, eventNames(events))
}

func TestRelay_UpdateStatusRejectsUnknownStatus(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	srv := NewServer(newFakeStore(ticket), testSecret, nil, 0)
	admin := joinedAdmin(t, srv, ticket)

	err := srv.relay.UpdateStatus(context.Background(), admin, ticket.ID.Hex(), "ARCHIVED")
	assert.Equal(t, ErrInvalidTransition, err)
}

func TestRelay_UserReopensClosedTicket(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	ticket.Status = models.TicketStatusClosed
	store := newFakeStore(ticket)
	srv := NewServer(store, testSecret, nil, 0)
	user := joinedUser(t, srv, ticket)

	assert.NoError(t, srv.relay.UpdateStatus(context.Background(), user, ticket.ID.Hex(), models.TicketStatusOpen))

	got, _ := store.GetTicket(context.Background(), ticket.ID.Hex())
	assert.Equal(t, models.TicketStatusOpen, got.Status)
}

func TestRelay_ClosureHandshake(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	ticket.Status = models.TicketStatusInProgress
	store := newFakeStore(ticket)
	srv := NewServer(store, testSecret, nil, 0)

	user := joinedUser(t, srv, ticket)
	admin := joinedAdmin(t, srv, ticket)
	drainEvents(t, user)

	// only admins can start the handshake
	err := srv.relay.RequestClosure(context.Background(), user, ticket.ID.Hex())
	assert.Equal(t, ErrAccessDenied, err)

	assert.NoError(t, srv.relay.RequestClosure(context.Background(), admin, ticket.ID.Hex()))
	userEvents := drainEvents(t, user)
	assert.Equal(t, []string{EventClosureRequested}, eventNames(userEvents))

	// a second request while one is outstanding is rejected
	err = srv.relay.RequestClosure(context.Background(), admin, ticket.ID.Hex())
	assert.Equal(t, ErrInvalidTransition, err)

	// only the user can answer
	err = srv.relay.ConfirmClosure(context.Background(), admin, ticket.ID.Hex())
	assert.Equal(t, ErrAccessDenied, err)

	assert.NoError(t, srv.relay.ConfirmClosure(context.Background(), user, ticket.ID.Hex()))

	got, _ := store.GetTicket(context.Background(), ticket.ID.Hex())
	assert.Equal(t, models.TicketStatusClosed, got.Status)
	assert.False(t, got.PendingClosure)
	assert.True(t, got.ConfirmedByUser)

	adminEvents := drainEvents(t, admin)
	assert.Equal(t, []string{EventClosureRequested, EventTicketStatusUpdated}, eventNames(adminEvents))
}

func TestRelay_DeclineClosureKeepsTicketOpen(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	ticket.Status = models.TicketStatusInProgress
	store := newFakeStore(ticket)
	srv := NewServer(store, testSecret, nil, 0)

	user := joinedUser(t, srv, ticket)
	admin := joinedAdmin(t, srv, ticket)
	drainEvents(t, user)

	// nothing pending yet
	err := srv.relay.DeclineClosure(context.Background(), user, ticket.ID.Hex())
	assert.Equal(t, ErrInvalidTransition, err)

	assert.NoError(t, srv.relay.RequestClosure(context.Background(), admin, ticket.ID.Hex()))
	assert.NoError(t, srv.relay.DeclineClosure(context.Background(), user, ticket.ID.Hex()))

	got, _ := store.GetTicket(context.Background(), ticket.ID.Hex())
	assert.Equal(t, models.TicketStatusInProgress, got.Status)
	assert.False(t, got.PendingClosure)

	// conversation resumes after the decline
	assert.NoError(t, srv.relay.SendMessage(context.Background(), user, ticket.ID.Hex(), "not solved yet"))
}

func TestRelay_RequestClosureOnlyInProgress(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	srv := NewServer(newFakeStore(ticket), testSecret, nil, 0)
	admin := joinedAdmin(t, srv, ticket)

	err := srv.relay.RequestClosure(context.Background(), admin, ticket.ID.Hex())
	assert.Equal(t, ErrInvalidTransition, err)
}

func TestRelay_DirectCloseClearsPendingClosure(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	ticket.Status = models.TicketStatusInProgress
	store := newFakeStore(ticket)
	srv := NewServer(store, testSecret, nil, 0)
	admin := joinedAdmin(t, srv, ticket)

	assert.NoError(t, srv.relay.RequestClosure(context.Background(), admin, ticket.ID.Hex()))
	assert.NoError(t, srv.relay.UpdateStatus(context.Background(), admin, ticket.ID.Hex(), models.TicketStatusClosed))

	got, _ := store.GetTicket(context.Background(), ticket.ID.Hex())
	assert.Equal(t, models.TicketStatusClosed, got.Status)
	assert.False(t, got.PendingClosure)
	assert.Nil(t, got.ClosureRequestedAt)
}

func TestRelay_ExpireClosureRequests(t *testing.T) {
	stale := newOpenTicket("sess-1")
	stale.Status = models.TicketStatusInProgress
	fresh := newOpenTicket("sess-2")
	fresh.Status = models.TicketStatusInProgress

	store := newFakeStore(stale, fresh)
	srv := NewServer(store, testSecret, nil, 0)

	user := joinedUser(t, srv, stale)
	admin := joinedAdmin(t, srv, stale)
	drainEvents(t, user)

	assert.NoError(t, srv.relay.RequestClosure(context.Background(), admin, stale.ID.Hex()))
	drainEvents(t, user)

	// backdate the stale request past the ttl; the fresh ticket has none
	old := primitive.NewDateTimeFromTime(time.Now().Add(-48 * time.Hour))
	store.mu.Lock()
	store.tickets[stale.ID.Hex()].ClosureRequestedAt = &old
	store.mu.Unlock()

	expired, err := srv.relay.ExpireClosureRequests(context.Background(), 24*time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, _ := store.GetTicket(context.Background(), stale.ID.Hex())
	assert.False(t, got.PendingClosure)
	assert.Equal(t, models.TicketStatusInProgress, got.Status)

	events := drainEvents(t, user)
	assert.Equal(t, []string{EventClosureDeclined}, eventNames(events))

	var p ClosurePayload
	assert.NoError(t, json.Unmarshal(events[0].Data, &p))
	assert.True(t, p.Expired)

	// a second sweep finds nothing
	expired, err = srv.relay.ExpireClosureRequests(context.Background(), 24*time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, 0, expired)
}

func TestRelay_FirstCloseWins(t *testing.T) {
	ticket := newOpenTicket("sess-1")
	ticket.Status = models.TicketStatusInProgress
	store := newFakeStore(ticket)
	srv := NewServer(store, testSecret, nil, 0)

	admin := joinedAdmin(t, srv, ticket)

	assert.NoError(t, srv.relay.UpdateStatus(context.Background(), admin, ticket.ID.Hex(), models.TicketStatusClosed))

	// the losing close re-reads CLOSED and is rejected; first writer won
	err := srv.relay.UpdateStatus(context.Background(), admin, ticket.ID.Hex(), models.TicketStatusClosed)
	assert.Equal(t, ErrInvalidTransition, err)
}
