package mailer

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	templates "github.com/epassport-desk/support-api/templates/html"
	"github.com/epassport-desk/support-api/models"
)

// throttleWindow caps inbox notifications to one per ticket per hour
const throttleWindow = time.Hour

// Mailer emails the support inbox when an applicant writes into a ticket
// room with no agent present. It implements socket.Notifier.
type Mailer struct {
	inbox   string
	baseURL string

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// New creates a Mailer pointed at the shared support inbox. baseURL is used
// to build a deep link back to the ticket.
func New(inbox, baseURL string) *Mailer {
	return &Mailer{
		inbox:    inbox,
		baseURL:  baseURL,
		lastSent: make(map[string]time.Time),
	}
}

// UserMessage notifies the support inbox about an unattended user message.
// Repeat messages on the same ticket inside the throttle window are dropped.
func (m *Mailer) UserMessage(ticket models.Ticket, msg models.Message) {
	if m.inbox == "" {
		return
	}
	if !m.shouldSend(ticket.ID.Hex()) {
		return
	}

	subject := fmt.Sprintf("New message on ticket %s", ticket.ID.Hex())
	body := fmt.Sprintf(
		"An applicant wrote to ticket %s (%s) while no agent was online.\n\n%s\n\nOpen the ticket: %s/tickets/%s",
		ticket.ID.Hex(), ticket.Subject, msg.Content, m.baseURL, ticket.ID.Hex(),
	)
	htmlContent := templates.RenderGenericEmail(subject, body)

	if err := m.send(subject, htmlContent, body); err != nil {
		zap.S().Errorw("failed to notify support inbox",
			"ticketID", ticket.ID.Hex(),
			"error", err)
		return
	}
	zap.S().Infow("notified support inbox of unattended message",
		"ticketID", ticket.ID.Hex())
}

func (m *Mailer) shouldSend(ticketID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if last, ok := m.lastSent[ticketID]; ok && time.Since(last) < throttleWindow {
		return false
	}
	m.lastSent[ticketID] = time.Now()
	return true
}

func (m *Mailer) send(subject, htmlContent, plainText string) error {
	from := mail.NewEmail("e-Passport Support Desk", "no-reply@epassport-desk.gov")
	to := mail.NewEmail("Support Inbox", m.inbox)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	response, err := client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
	}
	return nil
}
