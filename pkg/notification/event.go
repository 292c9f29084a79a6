// Package notification defines the "send-mail" event shared by every
// producer and the mail consumer, and the publisher business code calls
// after its own transaction has committed.
package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

const (
	// Topic is the single topic all producers append to.
	Topic = "send-mail"
	// ConsumerGroup is the logical reader of Topic.
	ConsumerGroup = "mail-service-group"

	HeaderEventID = "event-id"
	HeaderSource  = "source"
)

var (
	ErrInvalidEvent = errors.New("invalid notification event")
	ErrMalformed    = errors.New("malformed notification payload")
)

// Event is one outbound email. HTML is rendered by the publisher.
type Event struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (e Event) Validate() error {
	to := strings.TrimSpace(e.To)
	switch {
	case to == "":
		return fmt.Errorf("%w: recipient is empty", ErrInvalidEvent)
	case !strings.Contains(to, "@"):
		return fmt.Errorf("%w: recipient %q has no @", ErrInvalidEvent, to)
	case strings.TrimSpace(e.Subject) == "":
		return fmt.Errorf("%w: subject is empty", ErrInvalidEvent)
	case strings.TrimSpace(e.HTML) == "":
		return fmt.Errorf("%w: html body is empty", ErrInvalidEvent)
	}

	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("%w: recipient %q: %v", ErrInvalidEvent, to, err)
	}

	return nil
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a broker payload. Both broken JSON and events failing
// Validate are reported as ErrMalformed so the consumer can skip them.
func Decode(payload []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := e.Validate(); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return e, nil
}
