// Package notify sends run summaries to MQTT and shoutrrr services.
// Notification failures are logged by the caller and never fail a run.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skyglow/skyglow-go/internal/errors"
)

// Kind names what produced an Event
type Kind string

const (
	KindPipeline Kind = "pipeline"
	KindPublish  Kind = "publish"
)

// Event is one notification
type Event struct {
	Kind    Kind      `json:"kind"`
	Station string    `json:"station"`
	Success bool      `json:"success"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`

	// Details is marshalled as-is into the MQTT payload
	Details any `json:"details,omitempty"`
}

// Payload encodes e as JSON
func (e Event) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// Text is the plain rendering used by chat services
func (e Event) Text() string {
	if e.Error != "" {
		return fmt.Sprintf("%s\nerror: %s", e.Message, e.Error)
	}
	return e.Message
}

// Notifier delivers events
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Multi fans an event out to every notifier. One failing target does not
// stop the others; the errors are joined.
type Multi []Notifier

// Notify implements Notifier
func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.New(errors.Join(errs...)).
		Component("notify").
		Category(errors.CategoryNotification).
		Context("kind", string(e.Kind)).
		Context("failed_targets", len(errs)).
		Build()
}

// Nop discards events
type Nop struct{}

// Notify implements Notifier
func (Nop) Notify(context.Context, Event) error { return nil }
