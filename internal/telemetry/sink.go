package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/banshee-data/vision.nav/internal/monitoring"
)

// ErrPublishFailure wraps every error a Sink returns.
var ErrPublishFailure = errors.New("publish failure")

// Sink delivers messages to a consumer.
type Sink interface {
	Send(Message) error
}

// Link is the write side of the autopilot connection. The serial mux
// satisfies it.
type Link interface {
	SendCommand(string) error
}

// LinkSink writes each message as one JSON line on a Link.
type LinkSink struct {
	link Link
}

// NewLinkSink returns a sink writing to link.
func NewLinkSink(link Link) *LinkSink {
	return &LinkSink{link: link}
}

// Send implements Sink.
func (s *LinkSink) Send(m Message) error {
	line, err := Encode(m)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPublishFailure, m.MessageType(), err)
	}
	if err := s.link.SendCommand(line); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPublishFailure, m.MessageType(), err)
	}
	return nil
}

// Encode renders m as a flat JSON object with a leading "type" field.
func Encode(m Message) (string, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	head := fmt.Sprintf(`{"type":%q`, m.MessageType())
	if len(body) <= 2 {
		return head + "}", nil
	}
	return head + "," + string(body[1:]), nil
}

// Tee sends to Primary and then, best effort, to Secondary. Only Primary
// errors are returned.
type Tee struct {
	Primary   Sink
	Secondary Sink
}

// Send implements Sink.
func (t Tee) Send(m Message) error {
	err := t.Primary.Send(m)
	if t.Secondary != nil {
		if serr := t.Secondary.Send(m); serr != nil {
			monitoring.Debugf("[link] secondary sink: %v", serr)
		}
	}
	return err
}

// Discard drops every message.
type Discard struct{}

// Send implements Sink.
func (Discard) Send(Message) error { return nil }
