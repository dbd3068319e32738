// Package events publishes committed notifications to NATS so off-process
// consumers can follow level state changes.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/clients"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/metrics"
	"github.com/EternisDeathMatch/EternisNftUpgrade/internal/models"
)

const subjectKindNotification = "notification"

// Publisher publishes notifications on <subject>.<name>
type Publisher struct {
	client  *clients.NATSClient
	subject string
	logger  *logrus.Logger
}

// NotificationMessage wire form of a published notification
type NotificationMessage struct {
	Seq       uint64          `json:"seq"`
	Name      string          `json:"name"`
	Emitter   string          `json:"emitter"`
	Args      json.RawMessage `json:"args"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewPublisher creates a Publisher; subject defaults to "leveler.events"
func NewPublisher(client *clients.NATSClient, subject string, logger *logrus.Logger) *Publisher {
	if subject == "" {
		subject = "leveler.events"
	}
	return &Publisher{client: client, subject: subject, logger: logger}
}

// Subject full subject for a notification name
func (p *Publisher) Subject(name models.NotificationName) string {
	return fmt.Sprintf("%s.%s", p.subject, name)
}

// PublishNotification implements services.EventPublisher
func (p *Publisher) PublishNotification(n *models.Notification) error {
	args := json.RawMessage(n.Args)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	data, err := json.Marshal(NotificationMessage{
		Seq:       n.Seq,
		Name:      string(n.Name),
		Emitter:   n.Emitter,
		Args:      args,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal notification %d: %w", n.Seq, err)
	}

	subject := p.Subject(n.Name)
	if _, err := p.client.Publish(subject, data); err != nil {
		metrics.NATSMessagesFailed.WithLabelValues(subjectKindNotification, "publish_error").Inc()
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"subject": subject,
		"seq":     n.Seq,
	}).Debug("Notification published")
	return nil
}
