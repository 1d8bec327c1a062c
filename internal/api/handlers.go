package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/skyglow/skyglow-go/internal/daterange"
	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/logger"
	"github.com/skyglow/skyglow-go/internal/publish"
)

// freeSpacer is implemented by managers backed by a local file
type freeSpacer interface {
	FreeSpace() (uint64, error)
}

// HealthCheck reports version, uptime and database connectivity.
func (s *Server) HealthCheck(c echo.Context) error {
	response := map[string]any{
		"status":     "healthy",
		"version":    s.settings.Version,
		"build_date": s.settings.BuildDate,
		"timestamp":  time.Now().Format(time.RFC3339),
	}

	uptime := time.Since(s.startTime)
	response["uptime"] = uptime.String()
	response["uptime_seconds"] = uptime.Seconds()

	dbStatus := "connected"
	sqlDB, err := s.store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request().Context())
	}
	if err != nil {
		dbStatus = "disconnected"
		response["status"] = "degraded"
		response["database_error"] = err.Error()
	}
	response["database_status"] = dbStatus

	if fs, ok := s.store.Manager.(freeSpacer); ok {
		if free, err := fs.FreeSpace(); err == nil {
			response["database_free_bytes"] = free
		}
	}

	code := http.StatusOK
	if dbStatus != "connected" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, response)
}

// StatusResponse summarises the pipeline state
type StatusResponse struct {
	Images       int64 `json:"images"`
	Pending      int64 `json:"pending"`
	Flagged      int64 `json:"flagged"`
	Twilight     int64 `json:"twilight"`
	Measurements int64 `json:"measurements"`
	Unpublished  int64 `json:"unpublished"`
}

// Status returns image and measurement counts across all observers.
func (s *Server) Status(c echo.Context) error {
	ctx := c.Request().Context()

	counts, err := s.store.Images.Counts(ctx)
	if err != nil {
		return s.HandleError(c, err, "failed to count images", http.StatusInternalServerError)
	}
	measurements, err := s.store.Measurements.Count(ctx, 0, daterange.SelectAll())
	if err != nil {
		return s.HandleError(c, err, "failed to count measurements", http.StatusInternalServerError)
	}
	unpublished, err := s.store.Measurements.CountUnpublished(ctx, 0)
	if err != nil {
		return s.HandleError(c, err, "failed to count unpublished measurements", http.StatusInternalServerError)
	}

	return c.JSON(http.StatusOK, StatusResponse{
		Images:       counts.Total,
		Pending:      counts.Pending,
		Flagged:      counts.Flagged,
		Twilight:     counts.Twilight,
		Measurements: measurements,
		Unpublished:  unpublished,
	})
}

// MeasurementsResponse wraps the selected records
type MeasurementsResponse struct {
	Selector string           `json:"selector"`
	Observer uint             `json:"observer"`
	Count    int              `json:"count"`
	Records  []publish.Record `json:"records"`
}

// Measurements returns the records a selector picks, in the publishing
// record format. Query parameters: selector (default latest-night), start
// and end for range, observer id (default all observers).
func (s *Server) Measurements(c echo.Context) error {
	kind := c.QueryParam("selector")
	if kind == "" {
		kind = daterange.LatestNight.String()
	}
	sel, err := daterange.Parse(kind, c.QueryParam("start"), c.QueryParam("end"))
	if err != nil {
		return s.HandleError(c, err, "invalid selector", http.StatusBadRequest)
	}

	var observerID uint
	if raw := c.QueryParam("observer"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return s.HandleError(c, err, "invalid observer id", http.StatusBadRequest)
		}
		observerID = uint(id)
	}

	recs, err := s.store.Measurements.Records(c.Request().Context(), observerID, sel)
	if err != nil {
		return s.HandleError(c, err, "failed to load measurements", http.StatusInternalServerError)
	}

	out := make([]publish.Record, 0, len(recs))
	for _, rec := range recs {
		out = append(out, publish.NewRecord(rec))
	}
	return c.JSON(http.StatusOK, MeasurementsResponse{
		Selector: sel.String(),
		Observer: observerID,
		Count:    len(out),
		Records:  out,
	})
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// HandleError logs err under a correlation id and writes an ErrorResponse
func (s *Server) HandleError(c echo.Context, err error, message string, code int) error {
	resp := ErrorResponse{
		Error:         message,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
	if err != nil {
		resp.Error = err.Error()
	}

	if code >= http.StatusInternalServerError {
		// the builder forwards server-side failures to the reporters
		err = errors.New(err).
			Component("api").
			Category(errors.CategoryHTTP).
			Context("path", c.Path()).
			Context("correlation_id", resp.CorrelationID).
			Build()
	}
	s.log.Warn("api error",
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Error(err),
		logger.Int("code", code),
		logger.String("path", c.Request().URL.Path))

	return c.JSON(code, resp)
}
