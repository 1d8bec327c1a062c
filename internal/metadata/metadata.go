// Package metadata reads capture metadata and raw sensor planes from EXIF
// (TIFF container) and FITS images.
package metadata

import (
	"fmt"
	"strings"
	"time"

	"github.com/skyglow/skyglow-go/internal/cfa"
	"github.com/skyglow/skyglow-go/internal/errors"
)

var (
	// ErrBadTimestamp is returned when the capture time cannot be parsed
	ErrBadTimestamp = errors.NewStd("malformed capture timestamp")

	// ErrMissingHeader is returned when model, exposure or timestamp is absent
	ErrMissingHeader = errors.NewStd("required header key missing")

	// ErrUnsupportedRaw is returned for raw encodings the decoder cannot read
	ErrUnsupportedRaw = errors.NewStd("unsupported raw format")

	// ErrUnknownHeaderType is returned for header types other than EXIF and FITS
	ErrUnknownHeaderType = errors.NewStd("unknown header type")
)

// HeaderType selects the metadata reader
type HeaderType string

const (
	EXIF HeaderType = "EXIF"
	FITS HeaderType = "FITS"
)

// ParseHeaderType accepts EXIF or FITS in any case
func ParseHeaderType(s string) (HeaderType, error) {
	switch h := HeaderType(strings.ToUpper(strings.TrimSpace(s))); h {
	case EXIF, FITS:
		return h, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownHeaderType, s)
	}
}

// Optics supplies focal length and f-number for images that lack them
type Optics struct {
	FocalLength float64
	FNumber     float64
}

// Info is everything registration needs from one image file. Exactly one
// of ISO and Gain is set: EXIF images carry ISO, FITS images carry gain.
type Info struct {
	HeaderType   HeaderType
	Model        string
	ISO          *int
	Gain         *float64
	LogGain      *float64
	ExposureTime float64 // seconds
	FocalLength  float64 // mm
	FNumber      float64
	Timestamp    time.Time // camera clock, expressed in UTC without conversion
	DateID       int       // YYYYMMDD
	TimeID       int       // HHMMSS
	Width        int
	Length       int
	BayerPattern cfa.Pattern // empty when the file does not say
}

// Extractor reads metadata and raw planes
type Extractor struct{}

// NewExtractor returns a ready Extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the header of path. Missing or zero optics are replaced by defaults.
func (e *Extractor) Extract(path string, headerType HeaderType, defaults Optics) (*Info, error) {
	var (
		info *Info
		err  error
	)
	switch headerType {
	case EXIF:
		info, err = extractEXIF(path)
	case FITS:
		info, err = extractFITS(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHeaderType, string(headerType))
	}
	if err != nil {
		return nil, err
	}

	if info.FocalLength <= 0 {
		info.FocalLength = defaults.FocalLength
	}
	if info.FNumber <= 0 {
		info.FNumber = defaults.FNumber
	}
	info.DateID, info.TimeID = DateTimeIDs(info.Timestamp)
	return info, nil
}

// Plane decodes the un-debayered sensor plane of path
func (e *Extractor) Plane(path string, headerType HeaderType) (*cfa.Plane, error) {
	switch headerType {
	case EXIF:
		return decodeTIFFPlane(path)
	case FITS:
		return decodeFITSPlane(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHeaderType, string(headerType))
	}
}

// DateTimeIDs splits t into sortable YYYYMMDD and HHMMSS integers
func DateTimeIDs(t time.Time) (dateID, timeID int) {
	dateID = t.Year()*10000 + int(t.Month())*100 + t.Day()
	timeID = t.Hour()*10000 + t.Minute()*100 + t.Second()
	return dateID, timeID
}

// TimeFromIDs rebuilds the camera timestamp from its cached ids
func TimeFromIDs(dateID, timeID int) time.Time {
	return time.Date(dateID/10000, time.Month(dateID/100%100), dateID%100,
		timeID/10000, timeID/100%100, timeID%100, 0, time.UTC)
}

const exifTimeLayout = "2006:01:02 15:04:05"

// ParseExifTimestamp parses "YYYY:MM:DD HH:MM:SS". Some cameras pad the
// field with NULs or spaces, which are trimmed.
func ParseExifTimestamp(s string) (time.Time, error) {
	s = strings.Trim(s, "\x00 ")
	t, err := time.ParseInLocation(exifTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}
	return t, nil
}

var fitsTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// ParseFITSTimestamp parses ISO-8601 DATE-OBS values
func ParseFITSTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range fitsTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC().Truncate(time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

func missingHeader(path, key string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrMissingHeader, key)).
		Category(errors.CategoryFileParsing).
		Context("path", path).
		Context("key", key).
		Build()
}
