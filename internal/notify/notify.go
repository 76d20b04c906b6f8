// Package notify defines the messaging capability the access-link flow
// depends on. No pack example ships a real SMS/WhatsApp SDK, so the only
// implementation here is a logging stand-in — sending real messages stays
// an external collaborator, per spec.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Messenger delivers an access link to an employee by whatever channel the
// deployment wires up.
type Messenger interface {
	SendAccessLink(ctx context.Context, phoneNumber, url string) error
}

// LogMessenger logs the message instead of sending it — useful in
// development and as the default until a real channel is configured.
type LogMessenger struct {
	log *logrus.Logger
}

// NewLogMessenger builds a LogMessenger.
func NewLogMessenger(log *logrus.Logger) *LogMessenger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogMessenger{log: log}
}

// SendAccessLink logs the link it would have sent.
func (m *LogMessenger) SendAccessLink(ctx context.Context, phoneNumber, url string) error {
	m.log.WithFields(logrus.Fields{"phone": phoneNumber, "url": url}).Info("access link ready to send")
	return nil
}
