// Package export writes sky brightness measurements as semicolon separated
// CSV. The column set is versioned; the version is the first column of
// every row.
package export

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/skyglow/skyglow-go/internal/datastore/repository"
	"github.com/skyglow/skyglow-go/internal/daterange"
	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/logger"
)

// Version is written in the csv_version column
const Version = "1"

// TimestampLayout formats the camera-clock capture time
const TimestampLayout = "2006-01-02T15:04:05"

// Columns is the header of Version
var Columns = []string{
	"csv_version", "tstamp", "date_id", "time_id", "name", "model", "iso", "gain",
	"exptime", "focal_length", "f_number", "bias", "roi", "observer", "organization",
	"location", "longitude", "latitude", "utc_offset",
	"aver_signal_R", "std_signal_R", "aver_signal_G1", "std_signal_G1",
	"aver_signal_G2", "std_signal_G2", "aver_signal_B", "std_signal_B",
}

// Writer encodes records. Rounding happens here only; stored values are
// raw means and variances.
type Writer struct {
	csv *csv.Writer
}

// NewWriter returns a Writer using ';' as the delimiter
func NewWriter(w io.Writer) *Writer {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return &Writer{csv: cw}
}

// WriteHeader writes Columns
func (w *Writer) WriteHeader() error {
	return w.csv.Write(Columns)
}

// Write encodes one record
func (w *Writer) Write(rec *repository.MeasurementRecord) error {
	return w.csv.Write(Row(rec))
}

// Flush writes buffered rows and reports any write error
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}

// Row returns the fields of rec in Columns order
func Row(rec *repository.MeasurementRecord) []string {
	lon, lat := rec.PublicCoordinates()
	return []string{
		Version,
		rec.Timestamp().Format(TimestampLayout),
		strconv.Itoa(rec.DateID),
		strconv.Itoa(rec.TimeID),
		rec.Name,
		rec.Model,
		optionalInt(rec.ISO),
		optionalFloat(rec.Gain),
		formatFloat(rec.ExposureTime, -1),
		formatFloat(rec.FocalLength, -1),
		formatFloat(rec.FNumber, -1),
		strconv.Itoa(rec.Bias),
		rec.ROI,
		rec.Observer(),
		rec.Affiliation,
		siteLabel(rec),
		formatFloat(lon, -1),
		formatFloat(lat, -1),
		formatFloat(rec.UTCOffset, -1),
		Mean(rec.AverSignalR), Std(rec.VariSignalR),
		Mean(rec.AverSignalG1), Std(rec.VariSignalG1),
		Mean(rec.AverSignalG2), Std(rec.VariSignalG2),
		Mean(rec.AverSignalB), Std(rec.VariSignalB),
	}
}

// Mean formats a channel mean with 3 decimals
func Mean(v float64) string {
	return formatFloat(v, 3)
}

// Std formats sqrt(variance) with 1 decimal. Negative variances, which
// only rounding can produce, are clamped to zero.
func Std(variance float64) string {
	return formatFloat(math.Sqrt(math.Max(variance, 0)), 1)
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v, -1)
}

func siteLabel(rec *repository.MeasurementRecord) string {
	switch {
	case rec.Location == "":
		return rec.SiteName
	case rec.SiteName == "":
		return rec.Location
	default:
		return rec.SiteName + " - " + rec.Location
	}
}

// RecordSource is the query side of the measurement repository
type RecordSource interface {
	Records(ctx context.Context, observerID uint, sel daterange.Selector) ([]*repository.MeasurementRecord, error)
}

// Exporter writes selected measurements
type Exporter struct {
	source RecordSource
	log    logger.Logger
}

// New creates an Exporter
func New(source RecordSource, log logger.Logger) *Exporter {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Exporter{source: source, log: log.Module("export")}
}

// Export writes the header and every record sel picks for observerID (0
// for all observers) to w and returns the number of rows written.
func (e *Exporter) Export(ctx context.Context, w io.Writer, observerID uint, sel daterange.Selector) (int, error) {
	records, err := e.source.Records(ctx, observerID, sel)
	if err != nil {
		return 0, err
	}

	cw := NewWriter(w)
	if err := cw.WriteHeader(); err != nil {
		return 0, writeError(err)
	}
	for _, rec := range records {
		if err := cw.Write(rec); err != nil {
			return 0, writeError(err)
		}
	}
	if err := cw.Flush(); err != nil {
		return 0, writeError(err)
	}

	e.log.Info("measurements exported",
		logger.String("selector", sel.String()),
		logger.Uint64("observer_id", uint64(observerID)),
		logger.Int("rows", len(records)))
	return len(records), nil
}

func writeError(err error) error {
	return errors.New(err).
		Component("export").
		Category(errors.CategoryFileIO).
		Context("operation", "write_csv").
		Build()
}
