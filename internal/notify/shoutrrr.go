package notify

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/skyglow/skyglow-go/internal/errors"
)

// sender is the part of the shoutrrr router used here
type sender interface {
	Send(message string, params *types.Params) []error
}

// Shoutrrr sends the event text to every configured service URL
type Shoutrrr struct {
	sender sender
	urls   int
}

// NewShoutrrr validates urls and builds one router for all of them
func NewShoutrrr(urls []string, timeout time.Duration) (*Shoutrrr, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one shoutrrr url is required").
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}
	router, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(err).
			Component("notify").
			Category(errors.CategoryConfiguration).
			Context("urls", len(urls)).
			Build()
	}
	if timeout > 0 {
		router.Timeout = timeout
	}
	router.SetLogger(log.New(io.Discard, "", 0))
	return &Shoutrrr{sender: router, urls: len(urls)}, nil
}

// Notify implements Notifier. The router applies its own timeout.
func (s *Shoutrrr) Notify(_ context.Context, e Event) error {
	params := types.Params{}
	if e.Title != "" {
		params.SetTitle(e.Title)
	}

	var failed []error
	for _, err := range s.sender.Send(e.Text(), &params) {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return errors.New(errors.Join(failed...)).
		Component("notify").
		Category(errors.CategoryNotification).
		Context("target", "shoutrrr").
		Context("failed", len(failed)).
		Context("urls", s.urls).
		Build()
}
