package metadata

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/skyglow/skyglow-go/internal/cfa"
	"github.com/skyglow/skyglow-go/internal/errors"
)

const (
	fitsBlockSize  = 2880 // header and data units are padded to this size
	fitsLineSize   = 80   // one header card
	fitsCardsBlock = fitsBlockSize / fitsLineSize
)

// fitsHeader holds typed header values keyed by keyword
type fitsHeader struct {
	Bools   map[string]bool
	Ints    map[string]int64
	Floats  map[string]float64
	Strings map[string]string
	Dates   map[string]string
	Length  int
}

func newFITSHeader() *fitsHeader {
	return &fitsHeader{
		Bools:   make(map[string]bool),
		Ints:    make(map[string]int64),
		Floats:  make(map[string]float64),
		Strings: make(map[string]string),
		Dates:   make(map[string]string),
	}
}

// number returns an integer or float keyword as float64
func (h *fitsHeader) number(key string) (float64, bool) {
	if v, ok := h.Ints[key]; ok {
		return float64(v), true
	}
	if v, ok := h.Floats[key]; ok {
		return v, true
	}
	return 0, false
}

func (h *fitsHeader) integer(key string) (int64, bool) {
	if v, ok := h.Ints[key]; ok {
		return v, true
	}
	return 0, false
}

func (h *fitsHeader) text(key string) (string, bool) {
	if v, ok := h.Strings[key]; ok {
		return strings.TrimSpace(v), true
	}
	if v, ok := h.Dates[key]; ok {
		return v, true
	}
	return "", false
}

var fitsCardRe = compileFITSCardRe()

// compileFITSCardRe builds the card grammar. Named groups carry the value
// type: k key, b bool, i int, f float, s string, d unquoted date, E end.
func compileFITSCardRe() *regexp.Regexp {
	white := `\s+`
	whiteOpt := `\s*`
	rest := `.*`

	histLine := `HISTORY` + white + rest
	commLine := `COMMENT` + white + rest
	endLine := `(?P<E>END)` + whiteOpt

	key := `(?P<k>[A-Z0-9_-]+)`
	boo := `(?P<b>[TF])`
	inte := `(?P<i>[+-]?[0-9]+)`
	floa := `(?P<f>[+-]?[0-9]*\.[0-9]*(?:[ED][-+]?[0-9]+)?)`
	stri := `'(?P<s>[^']*)'`
	date := `(?P<d>[0-9]{4}-[01][0-9]-[0123][0-9]T[012][0-9]:[0-5][0-9]:[0-5][0-9](?:\.[0-9]*)?)`
	val := `(?:` + boo + `|` + inte + `|` + floa + `|` + stri + `|` + date + `)`
	commOpt := `(?:/` + rest + `)?`
	keyLine := key + whiteOpt + `=` + whiteOpt + val + whiteOpt + commOpt

	return regexp.MustCompile(`^(?:` + white + `|` + histLine + `|` + commLine + `|` + keyLine + `|` + endLine + `)$`)
}

// readFITSHeader consumes header blocks up to and including the one holding END
func readFITSHeader(r io.Reader) (*fitsHeader, error) {
	h := newFITSHeader()
	buf := make([]byte, fitsBlockSize)
	names := fitsCardRe.SubexpNames()

	for end := false; !end; {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("reading FITS header block: %w", err)
		}
		h.Length += fitsBlockSize

		for card := 0; card < fitsCardsBlock && !end; card++ {
			line := buf[card*fitsLineSize : (card+1)*fitsLineSize]
			m := fitsCardRe.FindSubmatch(line)
			if m == nil {
				continue
			}
			end = h.readCard(names, m)
		}
	}

	if !h.Bools["SIMPLE"] {
		return nil, fmt.Errorf("not a FITS file: SIMPLE = T missing")
	}
	return h, nil
}

func (h *fitsHeader) readCard(names []string, m [][]byte) (end bool) {
	key := ""
	for i := 1; i < len(names); i++ {
		if m[i] == nil {
			continue
		}
		v := string(m[i])
		switch names[i] {
		case "E":
			return true
		case "k":
			key = v
		case "b":
			h.Bools[key] = v == "T"
		case "i":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				h.Ints[key] = n
			}
		case "f":
			if n, err := strconv.ParseFloat(strings.Replace(v, "D", "E", 1), 64); err == nil {
				h.Floats[key] = n
			}
		case "s":
			h.Strings[key] = v
		case "d":
			h.Dates[key] = v
		}
	}
	return false
}

func extractFITS(path string) (*Info, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from a directory listing
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "fits-open").
			Context("path", path).
			Build()
	}
	defer f.Close()

	h, err := readFITSHeader(bufio.NewReader(f))
	if err != nil {
		return nil, errors.New(fmt.Errorf("%s: %w", path, err)).
			Category(errors.CategoryFileParsing).
			Build()
	}
	return infoFromFITSHeader(path, h)
}

func infoFromFITSHeader(path string, h *fitsHeader) (*Info, error) {
	info := &Info{HeaderType: FITS}

	model, ok := h.text("INSTRUME")
	if !ok || model == "" {
		return nil, missingHeader(path, "INSTRUME")
	}
	info.Model = model

	exposure, ok := h.number("EXPTIME")
	if !ok {
		exposure, ok = h.number("EXPOSURE")
	}
	if !ok {
		return nil, missingHeader(path, "EXPTIME")
	}
	info.ExposureTime = exposure

	stamp, ok := h.text("DATE-OBS")
	if !ok {
		return nil, missingHeader(path, "DATE-OBS")
	}
	ts, err := ParseFITSTimestamp(stamp)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	info.Timestamp = ts

	gain, hasGain := h.number("GAIN")
	logGain, hasLogGain := h.number("LOG-GAIN")
	switch {
	case hasGain:
	case hasLogGain:
		gain = math.Pow(10, logGain/20)
	default:
		gain = 1
	}
	info.Gain = &gain
	if hasLogGain {
		info.LogGain = &logGain
	}

	if focal, ok := h.number("FOCALLEN"); ok {
		info.FocalLength = focal
		if aperture, ok := h.number("APTDIA"); ok && aperture > 0 {
			info.FNumber = cfa.Round(focal/aperture, 1)
		}
	}

	if w, ok := h.integer("NAXIS1"); ok {
		info.Width = int(w)
	}
	if l, ok := h.integer("NAXIS2"); ok {
		info.Length = int(l)
	}

	if pat, ok := h.text("BAYERPAT"); ok {
		if p, err := cfa.ParsePattern(pat); err == nil {
			info.BayerPattern = p
		}
	}

	return info, nil
}

func decodeFITSPlane(path string) (*cfa.Plane, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the image table
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "fits-open").
			Context("path", path).
			Build()
	}
	defer f.Close()

	r := bufio.NewReader(f)
	h, err := readFITSHeader(r)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%s: %w", path, err)).
			Category(errors.CategoryImageDecode).
			Build()
	}

	plane, err := readFITSData(r, h)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%s: %w", path, err)).
			Category(errors.CategoryImageDecode).
			Build()
	}
	return plane, nil
}

// readFITSData reads the primary data unit in network byte order and applies
// BZERO and BSCALE. Only 2D images are accepted; a third axis of length 1
// is tolerated.
func readFITSData(r io.Reader, h *fitsHeader) (*cfa.Plane, error) {
	bitpix, ok := h.integer("BITPIX")
	if !ok {
		return nil, fmt.Errorf("%w: BITPIX missing", ErrUnsupportedRaw)
	}
	naxis, _ := h.integer("NAXIS")
	if naxis3, ok := h.integer("NAXIS3"); naxis == 3 && ok && naxis3 == 1 {
		naxis = 2
	}
	if naxis != 2 {
		return nil, fmt.Errorf("%w: NAXIS = %d", ErrUnsupportedRaw, naxis)
	}
	width, _ := h.integer("NAXIS1")
	height, _ := h.integer("NAXIS2")
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrUnsupportedRaw, width, height)
	}

	bzero, ok := h.number("BZERO")
	if !ok {
		bzero = 0
	}
	bscale, ok := h.number("BSCALE")
	if !ok {
		bscale = 1
	}

	plane := cfa.NewPlane(int(width), int(height))
	n := len(plane.Pix)
	scale := func(i int, v float64) {
		plane.Pix[i] = float32(v*bscale + bzero)
	}

	var err error
	switch bitpix {
	case 8:
		raw := make([]uint8, n)
		if err = binary.Read(r, binary.BigEndian, raw); err == nil {
			for i, v := range raw {
				scale(i, float64(v))
			}
		}
	case 16:
		raw := make([]int16, n)
		if err = binary.Read(r, binary.BigEndian, raw); err == nil {
			for i, v := range raw {
				scale(i, float64(v))
			}
		}
	case 32:
		raw := make([]int32, n)
		if err = binary.Read(r, binary.BigEndian, raw); err == nil {
			for i, v := range raw {
				scale(i, float64(v))
			}
		}
	case 64:
		raw := make([]int64, n)
		if err = binary.Read(r, binary.BigEndian, raw); err == nil {
			for i, v := range raw {
				scale(i, float64(v))
			}
		}
	case -32:
		raw := make([]float32, n)
		if err = binary.Read(r, binary.BigEndian, raw); err == nil {
			for i, v := range raw {
				scale(i, float64(v))
			}
		}
	case -64:
		raw := make([]float64, n)
		if err = binary.Read(r, binary.BigEndian, raw); err == nil {
			for i, v := range raw {
				scale(i, v)
			}
		}
	default:
		return nil, fmt.Errorf("%w: BITPIX = %d", ErrUnsupportedRaw, bitpix)
	}
	if err != nil {
		return nil, fmt.Errorf("reading FITS data: %w", err)
	}
	return plane, nil
}
