// Package daterange defines the one selection vocabulary shared by
// measurement deletion, export and publishing.
package daterange

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/skyglow/skyglow-go/internal/errors"
)

// Kind enumerates the supported selections
type Kind int

const (
	All Kind = iota
	LatestNight
	LatestMonth
	DateRange
	Unpublished
)

var kindNames = [...]string{
	All:         "all",
	LatestNight: "latest-night",
	LatestMonth: "latest-month",
	DateRange:   "range",
	Unpublished: "unpublished",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ErrBadSelector is returned for unknown kinds and malformed ranges
var ErrBadSelector = errors.NewStd("invalid date range selector")

// ParseKind accepts the names printed by Kind.String
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return All, fmt.Errorf("%w: unknown kind %q", ErrBadSelector, s)
}

// Selector picks a set of images for one observer. Start and End are
// inclusive YYYYMMDD date ids and only apply to DateRange.
type Selector struct {
	Kind  Kind
	Start int
	End   int
}

func SelectAll() Selector         { return Selector{Kind: All} }
func SelectLatestNight() Selector { return Selector{Kind: LatestNight} }
func SelectLatestMonth() Selector { return Selector{Kind: LatestMonth} }
func SelectUnpublished() Selector { return Selector{Kind: Unpublished} }

// SelectRange selects images captured between two date ids, inclusive
func SelectRange(start, end int) Selector {
	return Selector{Kind: DateRange, Start: start, End: end}
}

// Validate checks the kind and, for DateRange, that both bounds are real
// calendar dates in order.
func (s Selector) Validate() error {
	switch s.Kind {
	case All, LatestNight, LatestMonth, Unpublished:
		return nil
	case DateRange:
		if _, err := ParseDateID(s.Start); err != nil {
			return err
		}
		if _, err := ParseDateID(s.End); err != nil {
			return err
		}
		if s.Start > s.End {
			return fmt.Errorf("%w: start %d after end %d", ErrBadSelector, s.Start, s.End)
		}
		return nil
	default:
		return fmt.Errorf("%w: kind %d", ErrBadSelector, int(s.Kind))
	}
}

func (s Selector) String() string {
	if s.Kind == DateRange {
		return fmt.Sprintf("range %d..%d", s.Start, s.End)
	}
	return s.Kind.String()
}

// Parse builds a selector from a kind name and optional YYYYMMDD or
// YYYY-MM-DD bounds.
func Parse(kind, start, end string) (Selector, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return Selector{}, err
	}
	sel := Selector{Kind: k}
	if k == DateRange {
		if sel.Start, err = parseDateArg(start); err != nil {
			return Selector{}, err
		}
		if sel.End, err = parseDateArg(end); err != nil {
			return Selector{}, err
		}
	}
	return sel, sel.Validate()
}

func parseDateArg(s string) (int, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"20060102", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Year()*10000 + int(t.Month())*100 + t.Day(), nil
		}
	}
	return 0, fmt.Errorf("%w: bad date %q", ErrBadSelector, s)
}

// ParseDateID converts a YYYYMMDD integer to a UTC midnight
func ParseDateID(dateID int) (time.Time, error) {
	y, m, d := dateID/10000, dateID/100%100, dateID%100
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, fmt.Errorf("%w: bad date id %d", ErrBadSelector, dateID)
	}
	return t, nil
}

// MonthID returns YYYYMM for a YYYYMMDD date id
func MonthID(dateID int) int {
	return dateID / 100
}

// JDN returns the Julian Day Number of a Gregorian calendar date
func JDN(year, month, day int) int {
	a := (14 - month) / 12
	y := year + 4800 - a
	m := month + 12*a - 3
	return day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}

// NightID maps a capture date and time to the night it belongs to. The
// julian day plus the fraction of the day is rounded, which moves the day
// boundary to noon: an evening and the following morning share an id.
func NightID(dateID, timeID int) int {
	jdn := JDN(dateID/10000, dateID/100%100, dateID%100)
	seconds := timeID/10000*3600 + timeID/100%100*60 + timeID%100
	return int(math.Round(float64(jdn) + float64(seconds)/86400))
}

// NightDate returns the calendar date of the evening that starts night id n
func NightDate(n int) time.Time {
	// Inverse of JDN for the day before the one the id rounds to.
	j := n - 1
	a := j + 32044
	b := (4*a + 3) / 146097
	c := a - 146097*b/4
	d := (4*c + 3) / 1461
	e := c - 1461*d/4
	m := (5*e + 2) / 153
	day := e - (153*m+2)/5 + 1
	month := m + 3 - 12*(m/10)
	year := 100*b + d - 4800 + m/10
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
