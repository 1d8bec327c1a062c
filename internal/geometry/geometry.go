// Package geometry holds the pixel rectangle used as a region of interest.
//
// Coordinates are half-open: a Rect covers columns X1..X2-1 and rows
// Y1..Y2-1, matching the bracket notation [y1:y2,x1:x2] used for display.
package geometry

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/skyglow/skyglow-go/internal/errors"
)

// ErrEmptyRect is returned when a rectangle has zero width or height
var ErrEmptyRect = errors.NewStd("rectangle has zero area")

// ErrBadDisplayName is returned for strings that are not in [y1:y2,x1:x2] form
var ErrBadDisplayName = errors.NewStd("malformed region display name")

// Point is an integer pixel coordinate
type Point struct {
	X, Y int
}

// Rect is a normalized rectangle with X1 <= X2 and Y1 <= Y2
type Rect struct {
	X1, Y1, X2, Y2 int
}

// NewRect builds a normalized Rect from two opposite corners given in any order
func NewRect(x1, y1, x2, y2 int) Rect {
	return Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}.Normalize()
}

// FromPoints builds a normalized Rect from two corner points
func FromPoints(a, b Point) Rect {
	return NewRect(a.X, a.Y, b.X, b.Y)
}

// Normalize swaps coordinates so that X1 <= X2 and Y1 <= Y2
func (r Rect) Normalize() Rect {
	if r.X1 > r.X2 {
		r.X1, r.X2 = r.X2, r.X1
	}
	if r.Y1 > r.Y2 {
		r.Y1, r.Y2 = r.Y2, r.Y1
	}
	return r
}

func (r Rect) Width() int  { return r.X2 - r.X1 }
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// Area is the pixel count covered by r
func (r Rect) Area() int { return r.Width() * r.Height() }

// Empty reports whether r covers no pixels
func (r Rect) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Min and Max return the corner points
func (r Rect) Min() Point { return Point{X: r.X1, Y: r.Y1} }
func (r Rect) Max() Point { return Point{X: r.X2, Y: r.Y2} }

// Within reports whether r lies inside a width x height plane
func (r Rect) Within(width, height int) bool {
	return r.X1 >= 0 && r.Y1 >= 0 && r.X2 <= width && r.Y2 <= height
}

// DisplayName renders r in row-major bracket notation. The axis order is
// swapped with respect to the struct fields: rows come first.
func (r Rect) DisplayName() string {
	return fmt.Sprintf("[%d:%d,%d:%d]", r.Y1, r.Y2, r.X1, r.X2)
}

func (r Rect) String() string { return r.DisplayName() }

var displayNameRe = regexp.MustCompile(`^\s*\[\s*(-?\d+)\s*:\s*(-?\d+)\s*,\s*(-?\d+)\s*:\s*(-?\d+)\s*\]\s*$`)

// ParseDisplayName parses "[y1:y2,x1:x2]" into a normalized Rect
func ParseDisplayName(s string) (Rect, error) {
	m := displayNameRe.FindStringSubmatch(s)
	if m == nil {
		return Rect{}, fmt.Errorf("%w: %q", ErrBadDisplayName, s)
	}
	var v [4]int
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Rect{}, fmt.Errorf("%w: %q", ErrBadDisplayName, s)
		}
		v[i] = n
	}
	r := NewRect(v[2], v[0], v[3], v[1])
	if r.Empty() {
		return Rect{}, ErrEmptyRect
	}
	return r, nil
}

// Centered returns a w x h rectangle centered in a width x height plane,
// clipped to the plane
func Centered(width, height, w, h int) Rect {
	w = min(w, width)
	h = min(h, height)
	x1 := (width - w) / 2
	y1 := (height - h) / 2
	return Rect{X1: x1, Y1: y1, X2: x1 + w, Y2: y1 + h}
}
