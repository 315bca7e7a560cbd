package mailer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/epassport-desk/support-api/models"
)

func TestMailer_Throttle(t *testing.T) {
	m := New("support@epassport-desk.gov", "https://desk.example.com")

	assert.True(t, m.shouldSend("ticket-1"))
	assert.False(t, m.shouldSend("ticket-1"))

	// another ticket has its own window
	assert.True(t, m.shouldSend("ticket-2"))

	// an expired window sends again
	m.mu.Lock()
	m.lastSent["ticket-1"] = time.Now().Add(-2 * throttleWindow)
	m.mu.Unlock()
	assert.True(t, m.shouldSend("ticket-1"))
}

func TestMailer_NoInboxConfigured(t *testing.T) {
	m := New("", "https://desk.example.com")

	// no inbox means no notification and no throttle bookkeeping
	m.UserMessage(models.Ticket{ID: primitive.NewObjectID()}, models.Message{Content: "hello"})
	assert.Empty(t, m.lastSent)
}
