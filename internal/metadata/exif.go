package metadata

import (
	"fmt"
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	exiftiff "github.com/rwcarlsen/goexif/tiff"
	"golang.org/x/image/tiff"

	"github.com/skyglow/skyglow-go/internal/cfa"
	"github.com/skyglow/skyglow-go/internal/errors"
)

func extractEXIF(path string) (*Info, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from a directory listing
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "exif-open").
			Context("path", path).
			Build()
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, errors.New(fmt.Errorf("exif parsing %s: %w", path, err)).
			Category(errors.CategoryFileParsing).
			Build()
	}

	info := &Info{HeaderType: EXIF}

	model, ok := exifString(x, exif.Model)
	if !ok || model == "" {
		return nil, missingHeader(path, "Model")
	}
	info.Model = model

	exposure, ok := exifRational(x, exif.ExposureTime)
	if !ok || exposure <= 0 {
		return nil, missingHeader(path, "ExposureTime")
	}
	info.ExposureTime = exposure

	stamp, ok := exifString(x, exif.DateTimeOriginal)
	if !ok {
		stamp, ok = exifString(x, exif.DateTime)
	}
	if !ok {
		return nil, missingHeader(path, "DateTimeOriginal")
	}
	if info.Timestamp, err = ParseExifTimestamp(stamp); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if iso, err := tag.Int(0); err == nil {
			info.ISO = &iso
		}
	}
	if info.ISO == nil {
		iso := 0
		info.ISO = &iso
	}

	info.FocalLength, _ = exifRational(x, exif.FocalLength)
	info.FNumber, _ = exifRational(x, exif.FNumber)
	info.BayerPattern = exifCFAPattern(x)

	// Width and length come from the raw plane, not from the preview
	// dimensions that cameras store in PixelXDimension.
	if _, err := f.Seek(0, 0); err != nil {
		return nil, errors.New(err).Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	cfg, err := tiff.DecodeConfig(f)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %s: %w", ErrUnsupportedRaw, path, err)).
			Category(errors.CategoryImageDecode).
			Build()
	}
	info.Width, info.Length = cfg.Width, cfg.Height

	return info, nil
}

func exifString(x *exif.Exif, name exif.FieldName) (string, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return "", false
	}
	s, err := tag.StringVal()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(strings.Trim(s, "\x00")), true
}

func exifRational(x *exif.Exif, name exif.FieldName) (float64, bool) {
	tag, err := x.Get(name)
	if err != nil {
		return 0, false
	}
	if tag.Format() == exiftiff.RatVal {
		num, den, err := tag.Rat2(0)
		if err != nil || den == 0 {
			return 0, false
		}
		return float64(num) / float64(den), true
	}
	if v, err := tag.Float(0); err == nil {
		return v, true
	}
	if v, err := tag.Int64(0); err == nil {
		return float64(v), true
	}
	return 0, false
}

// exifCFAPattern decodes the EXIF CFAPattern tag for a 2x2 tile. The
// repeat dimensions are two uint16 values equal to 2, which read the same
// in either byte order.
func exifCFAPattern(x *exif.Exif) cfa.Pattern {
	tag, err := x.Get(exif.CFAPattern)
	if err != nil || len(tag.Val) != 8 {
		return ""
	}
	v := tag.Val
	if v[0]|v[1] != 2 || v[2]|v[3] != 2 {
		return ""
	}
	var sb strings.Builder
	for _, c := range v[4:8] {
		switch c {
		case 0:
			sb.WriteByte('R')
		case 1:
			sb.WriteByte('G')
		case 2:
			sb.WriteByte('B')
		default:
			return ""
		}
	}
	p, err := cfa.ParsePattern(sb.String())
	if err != nil {
		return ""
	}
	return p
}
