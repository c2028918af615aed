// Package notifysvc fans user-facing notifications out to their delivery
// channels: email for the user, and a Kafka topic for downstream consumers.
package notifysvc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/trezcool/darasa/core"
)

type notifier struct {
	mailSvc  core.EmailService
	producer *Producer
	logger   core.Logger
}

var _ core.Notifier = (*notifier)(nil)

func NewNotifier(mailSvc core.EmailService, producer *Producer, logger core.Logger) *notifier {
	return &notifier{
		mailSvc:  mailSvc,
		producer: producer,
		logger:   logger,
	}
}

// event is the wire form published to Kafka. The body is deliberately left
// out: it may contain one-time codes.
type event struct {
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	SentAt    time.Time `json:"sent_at"`
}

func (n *notifier) Notify(messages ...*core.EmailMessage) {
	n.mailSvc.SendMessages(messages...)

	for _, msg := range messages {
		if !msg.HasRecipients() {
			continue
		}
		evt := event{
			Recipient: msg.To[0].Address,
			Subject:   msg.Subject,
			SentAt:    time.Now().UTC(),
		}
		val, err := json.Marshal(evt)
		if err != nil {
			n.logger.Error(fmt.Sprintf("marshalling notification event: %v", err), err)
			continue
		}
		if err = n.producer.PublishMessage([]byte(evt.Recipient), val); err != nil {
			// best effort; the email already went out
			n.logger.Error(fmt.Sprintf("publishing notification event: %v", err), err)
		}
	}
}
