package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/epassport-desk/support-api/models"
)

var testSecret = []byte("test-secret")

// fakeStore is an in-memory TicketStore used to exercise the hub and relay
// without mongo.
type fakeStore struct {
	mu       sync.Mutex
	tickets  map[string]*models.Ticket
	messages map[string][]models.Message
	err      error
}

func newFakeStore(tickets ...models.Ticket) *fakeStore {
	s := &fakeStore{
		tickets:  make(map[string]*models.Ticket),
		messages: make(map[string][]models.Message),
	}
	for i := range tickets {
		tt := tickets[i]
		s.tickets[tt.ID.Hex()] = &tt
	}
	return s
}

func (s *fakeStore) get(ticketID string) (*models.Ticket, error) {
	if s.err != nil {
		return nil, StoreFailure(s.err)
	}
	t, ok := s.tickets[ticketID]
	if !ok {
		return nil, ErrTicketNotFound
	}
	return t, nil
}

func (s *fakeStore) GetTicket(_ context.Context, ticketID string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.get(ticketID)
	if err != nil {
		return nil, err
	}
	out := *t
	return &out, nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, ticketID, status string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.get(ticketID)
	if err != nil {
		return nil, err
	}
	t.Status = status
	if status == models.TicketStatusClosed {
		t.PendingClosure = false
		t.ClosureRequestedAt = nil
	}
	out := *t
	return &out, nil
}

func (s *fakeStore) RequestClosure(_ context.Context, ticketID string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.get(ticketID)
	if err != nil {
		return nil, err
	}
	now := primitive.NewDateTimeFromTime(time.Now())
	t.PendingClosure = true
	t.ConfirmedByUser = false
	t.ClosureRequestedAt = &now
	out := *t
	return &out, nil
}

func (s *fakeStore) ConfirmClosure(_ context.Context, ticketID string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.get(ticketID)
	if err != nil {
		return nil, err
	}
	t.Status = models.TicketStatusClosed
	t.PendingClosure = false
	t.ConfirmedByUser = true
	t.ClosureRequestedAt = nil
	out := *t
	return &out, nil
}

func (s *fakeStore) DeclineClosure(_ context.Context, ticketID string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.get(ticketID)
	if err != nil {
		return nil, err
	}
	t.PendingClosure = false
	t.ClosureRequestedAt = nil
	out := *t
	return &out, nil
}

func (s *fakeStore) AppendMessage(_ context.Context, ticketID, content, role string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, StoreFailure(s.err)
	}
	oid, err := primitive.ObjectIDFromHex(ticketID)
	if err != nil {
		return nil, ErrTicketNotFound
	}
	msg := models.Message{
		ID:        primitive.NewObjectID(),
		TicketID:  oid,
		Content:   content,
		Role:      role,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
	}
	s.messages[ticketID] = append(s.messages[ticketID], msg)
	return &msg, nil
}

func (s *fakeStore) ListMessages(_ context.Context, ticketID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, StoreFailure(s.err)
	}
	return append([]models.Message(nil), s.messages[ticketID]...), nil
}

func (s *fakeStore) ListPendingClosuresBefore(_ context.Context, cutoff time.Time) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, StoreFailure(s.err)
	}
	var stale []models.Ticket
	for _, t := range s.tickets {
		if t.PendingClosure && t.ClosureRequestedAt != nil && t.ClosureRequestedAt.Time().Before(cutoff) {
			stale = append(stale, *t)
		}
	}
	return stale, nil
}

// fakeNotifier records unattended-message callbacks.
type fakeNotifier struct {
	ch chan models.Message
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{ch: make(chan models.Message, 8)}
}

func (f *fakeNotifier) UserMessage(_ models.Ticket, msg models.Message) {
	f.ch <- msg
}

var connSeq int

func newTestClient(srv *Server) *Client {
	connSeq++
	id := fmt.Sprintf("conn-%d", connSeq)
	srv.registry.Register(id)
	return newClient(id, nil, srv.registry, srv.hub, srv.relay)
}

func signTestToken(t *testing.T, email string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  email,
		"role": "admin",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	assert.NoError(t, err)
	return token
}

func authUser(t *testing.T, srv *Server, c *Client, sessionID string) {
	t.Helper()
	_, err := srv.registry.Authenticate(c.ID, AuthenticatePayload{Role: models.RoleUser, SessionID: sessionID})
	assert.NoError(t, err)
}

func authAdmin(t *testing.T, srv *Server, c *Client) {
	t.Helper()
	_, err := srv.registry.Authenticate(c.ID, AuthenticatePayload{Role: models.RoleAdmin, Token: signTestToken(t, "agent@example.com")})
	assert.NoError(t, err)
}

// drainEvents empties the client's send buffer into decoded envelopes.
func drainEvents(t *testing.T, c *Client) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case raw := <-c.send:
			var env Envelope
			assert.NoError(t, json.Unmarshal(raw, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func eventNames(envs []Envelope) []string {
	names := make([]string, len(envs))
	for i, e := range envs {
		names[i] = e.Event
	}
	return names
}

func newOpenTicket(sessionID string) models.Ticket {
	return models.Ticket{
		ID:        primitive.NewObjectID(),
		Status:    models.TicketStatusOpen,
		SessionID: sessionID,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
	}
}
