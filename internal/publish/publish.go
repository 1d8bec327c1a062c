// Package publish uploads unpublished measurements to the remote endpoint.
//
// A batch is all-or-nothing: every page is POSTed in turn and the
// published flags are set in one transaction only after the last page was
// accepted. A failed batch marks nothing, so a retry re-sends pages the
// server already accepted. Delivery is at-least-once.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/skyglow/skyglow-go/internal/conf"
	"github.com/skyglow/skyglow-go/internal/datastore/repository"
	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/httpclient"
	"github.com/skyglow/skyglow-go/internal/logger"
)

const (
	// DefaultPageSize is used when Config.PageSize is not positive
	DefaultPageSize = 100

	// HeaderBatchID carries the batch uuid on every page
	HeaderBatchID = "X-Skyglow-Batch"
	// HeaderPage carries the 1-based page number
	HeaderPage = "X-Skyglow-Page"

	// maxErrorBody bounds how much of a failed response is read
	maxErrorBody = 4096
)

var (
	// ErrPublishFailed means a page was rejected or could not be delivered.
	// Nothing of the batch was marked published.
	ErrPublishFailed = errors.NewStd("publishing failed")

	// ErrInsecureURL means the endpoint is not https and insecure
	// transport was not allowed
	ErrInsecureURL = errors.NewStd("publish url must use https")
)

// Source is the part of the measurement repository publishing needs
type Source interface {
	CountUnpublished(ctx context.Context, observerID uint) (int64, error)
	UnpublishedPage(ctx context.Context, observerID, afterID uint, limit int) ([]*repository.MeasurementRecord, error)
	MarkPublished(ctx context.Context, ids []uint) (int64, error)
}

// Config describes the endpoint
type Config struct {
	URL           string
	PageSize      int
	Delay         time.Duration // minimum spacing between pages
	AllowInsecure bool
}

// ConfigFromSettings maps the publish section of the settings
func ConfigFromSettings(s *conf.PublishSettings) Config {
	return Config{
		URL:           s.URL,
		PageSize:      s.PageSize,
		Delay:         s.Delay,
		AllowInsecure: s.AllowInsecure,
	}
}

// Result reports one Publish call
type Result struct {
	BatchID   string        `json:"batch_id,omitempty"`
	Total     int64         `json:"total"`
	Pages     int           `json:"pages"`
	Sent      int           `json:"sent"`
	Published int64         `json:"published"`
	Duration  time.Duration `json:"duration"`
}

// Publisher sends batches. Credentials and the request timeout live in the
// httpclient.Client it is given.
type Publisher struct {
	source  Source
	client  *httpclient.Client
	cfg     Config
	limiter *rate.Limiter
	log     logger.Logger
	now     func() time.Time
}

// New validates cfg and creates a Publisher
func New(source Source, client *httpclient.Client, cfg Config, log logger.Logger) (*Publisher, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return nil, errors.Newf("invalid publish url %q", cfg.URL).
			Component("publish").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if u.Scheme != "https" && !(cfg.AllowInsecure && u.Scheme == "http") {
		return nil, errors.New(ErrInsecureURL).
			Component("publish").
			Category(errors.CategoryConfiguration).
			Context("scheme", u.Scheme).
			Build()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}

	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	return &Publisher{
		source:  source,
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		log:     log.Module("publish"),
		now:     time.Now,
	}, nil
}

// Publish sends every unpublished measurement of observerID (0 for all
// observers) and marks them published once all pages were accepted.
func (p *Publisher) Publish(ctx context.Context, observerID uint) (Result, error) {
	start := p.now()
	var res Result

	total, err := p.source.CountUnpublished(ctx, observerID)
	if err != nil {
		return res, err
	}
	res.Total = total
	if total == 0 {
		p.log.Info("nothing to publish", logger.Uint64("observer_id", uint64(observerID)))
		return res, nil
	}

	res.BatchID = uuid.NewString()
	log := p.log.With(
		logger.String("batch_id", res.BatchID),
		logger.Uint64("observer_id", uint64(observerID)),
		logger.Int64("total", total))
	log.Info("publishing started", logger.Int("page_size", p.cfg.PageSize))

	var ids []uint
	var afterID uint
	for {
		page, err := p.source.UnpublishedPage(ctx, observerID, afterID, p.cfg.PageSize)
		if err != nil {
			return p.finish(res, start), err
		}
		if len(page) == 0 {
			break
		}
		afterID = page[len(page)-1].MeasurementID

		if err := p.limiter.Wait(ctx); err != nil {
			return p.finish(res, start), p.failure(err, errors.CategoryCancellation, res, "rate_limiter_wait")
		}
		res.Pages++
		if err := p.send(ctx, res.BatchID, res.Pages, page); err != nil {
			log.Error("publishing aborted, nothing marked",
				logger.Error(err),
				logger.Int("page", res.Pages),
				logger.Int("sent", res.Sent))
			return p.finish(res, start), err
		}
		res.Sent += len(page)
		for _, rec := range page {
			ids = append(ids, rec.MeasurementID)
		}
		log.Debug("page accepted", logger.Int("page", res.Pages), logger.Int("records", len(page)))
	}

	res.Published, err = p.source.MarkPublished(ctx, ids)
	res = p.finish(res, start)
	if err != nil {
		return res, err
	}
	log.Info("publishing finished",
		logger.Int("pages", res.Pages),
		logger.Int64("published", res.Published),
		logger.Duration("duration", res.Duration))
	return res, nil
}

func (p *Publisher) finish(res Result, start time.Time) Result {
	res.Duration = p.now().Sub(start)
	return res
}

// send POSTs one page. Anything but a 2xx response is a failure.
func (p *Publisher) send(ctx context.Context, batchID string, page int, records []*repository.MeasurementRecord) error {
	body := make([]Record, len(records))
	for i, rec := range records {
		body[i] = NewRecord(rec)
	}

	req, err := newPageRequest(ctx, p.cfg.URL, body)
	if err != nil {
		return p.failure(err, errors.CategoryPublish, Result{BatchID: batchID, Pages: page}, "build_request")
	}
	req.Header.Set(HeaderBatchID, batchID)
	req.Header.Set(HeaderPage, fmt.Sprint(page))

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return errors.New(fmt.Errorf("%w: %w", ErrPublishFailed, err)).
			Component("publish").
			Category(errors.CategoryNetwork).
			Context("batch_id", batchID).
			Context("page", page).
			Context("operation", "post_page").
			NetworkContext(p.cfg.URL, p.client.Timeout()).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := responseMessage(io.LimitReader(resp.Body, maxErrorBody))
		return errors.New(fmt.Errorf("%w: page %d: status %d %s", ErrPublishFailed, page, resp.StatusCode, detail)).
			Component("publish").
			Category(errors.CategoryPublish).
			Context("batch_id", batchID).
			Context("page", page).
			Context("status", resp.StatusCode).
			NetworkContext(p.cfg.URL, p.client.Timeout()).
			Build()
	}

	if accepted, ok := acceptedCount(resp.Body); ok && accepted != len(records) {
		p.log.Warn("endpoint accepted a different record count",
			logger.String("batch_id", batchID),
			logger.Int("page", page),
			logger.Int("sent", len(records)),
			logger.Int("accepted", accepted))
	}
	return nil
}

func (p *Publisher) failure(err error, category errors.ErrorCategory, res Result, operation string) error {
	return errors.New(fmt.Errorf("%w: %w", ErrPublishFailed, err)).
		Component("publish").
		Category(category).
		Context("batch_id", res.BatchID).
		Context("page", res.Pages).
		Context("operation", operation).
		Build()
}

func newPageRequest(ctx context.Context, endpoint string, body []Record) (*http.Request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// responseMessage extracts "error" or "message" from a JSON error body,
// falling back to the raw text
func responseMessage(r io.Reader) string {
	raw, err := io.ReadAll(r)
	if err != nil || len(raw) == 0 {
		return ""
	}
	if obj, err := jason.NewObjectFromBytes(raw); err == nil {
		for _, key := range []string{"error", "message"} {
			if s, err := obj.GetString(key); err == nil {
				return s
			}
		}
	}
	return string(raw)
}

// acceptedCount reads the optional {"accepted": n} acknowledgement
func acceptedCount(r io.Reader) (int, bool) {
	obj, err := jason.NewObjectFromReader(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return 0, false
	}
	n, err := obj.GetInt64("accepted")
	if err != nil {
		return 0, false
	}
	return int(n), true
}
