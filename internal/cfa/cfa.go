// Package cfa models 2x2 Bayer color filter arrays and computes per-channel
// statistics on raw sensor planes by stride-2 sub-sampling.
package cfa

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/geometry"
)

var (
	ErrUnknownPattern = errors.NewStd("unknown bayer pattern")
	ErrUnknownChannel = errors.NewStd("unknown color channel")
	ErrROIOutOfBounds = errors.NewStd("region of interest outside channel plane")
)

// Pattern names the 2x2 filter tile, read left to right, top to bottom
type Pattern string

const (
	RGGB Pattern = "RGGB"
	BGGR Pattern = "BGGR"
	GRBG Pattern = "GRBG"
	GBRG Pattern = "GBRG"
)

// Patterns lists the supported tiles
var Patterns = []Pattern{RGGB, BGGR, GRBG, GBRG}

// ParsePattern accepts a pattern name in any case
func ParsePattern(s string) (Pattern, error) {
	p := Pattern(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := offsets[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPattern, s)
	}
	return p, nil
}

// Channel is one of the four sub-sampled planes
type Channel int

const (
	R Channel = iota
	G1
	G2
	B
)

// Channels in export order
var Channels = [4]Channel{R, G1, G2, B}

func (c Channel) String() string {
	switch c {
	case R:
		return "R"
	case G1:
		return "G1"
	case G2:
		return "G2"
	case B:
		return "B"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// Offset is the position of a channel inside the 2x2 tile
type Offset struct {
	X, Y int
}

// offsets maps each pattern to the tile position of R, G1, G2 and B.
// A wrong entry silently swaps channels in every stored measurement.
var offsets = map[Pattern][4]Offset{
	RGGB: {R: {0, 0}, G1: {1, 0}, G2: {0, 1}, B: {1, 1}},
	BGGR: {R: {1, 1}, G1: {1, 0}, G2: {0, 1}, B: {0, 0}},
	GRBG: {R: {1, 0}, G1: {0, 0}, G2: {1, 1}, B: {0, 1}},
	GBRG: {R: {0, 1}, G1: {0, 0}, G2: {1, 1}, B: {1, 0}},
}

// OffsetOf returns the tile offset of channel c in pattern p
func OffsetOf(p Pattern, c Channel) (Offset, error) {
	table, ok := offsets[p]
	if !ok {
		return Offset{}, fmt.Errorf("%w: %q", ErrUnknownPattern, string(p))
	}
	if c < R || c > B {
		return Offset{}, fmt.Errorf("%w: %d", ErrUnknownChannel, int(c))
	}
	return table[c], nil
}

// Plane is an un-debayered raw sensor plane stored row-major
type Plane struct {
	Width  int
	Height int
	Pix    []float32
}

// NewPlane allocates a zeroed plane
func NewPlane(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Pix: make([]float32, width*height)}
}

// At returns the value at column x, row y
func (p *Plane) At(x, y int) float32 {
	return p.Pix[y*p.Width+x]
}

// Set stores v at column x, row y
func (p *Plane) Set(x, y int, v float32) {
	p.Pix[y*p.Width+x] = v
}

// ChannelSize is the size of every sub-sampled channel plane. Odd trailing
// rows or columns are dropped so all four channels share one size.
func ChannelSize(width, height int) (int, int) {
	return width / 2, height / 2
}

// Validate checks that roi fits in the channel plane of a width x height sensor
func Validate(width, height int, roi geometry.Rect) error {
	cw, ch := ChannelSize(width, height)
	if roi.Empty() || !roi.Within(cw, ch) {
		return errors.New(ErrROIOutOfBounds).
			Category(errors.CategoryCFA).
			Context("roi", roi.DisplayName()).
			Context("channel_width", cw).
			Context("channel_height", ch).
			Build()
	}
	return nil
}

// Stats is a rounded mean and population variance of one channel
type Stats struct {
	Mean     float64
	Variance float64
}

// RegionStats sub-samples the channel plane of c with stride 2 starting at
// its tile offset, crops it to roi in channel-plane coordinates and returns
// the mean rounded to 1 decimal and the population variance rounded to 3.
func RegionStats(plane *Plane, pattern Pattern, c Channel, roi geometry.Rect) (mean, variance float64, err error) {
	off, err := OffsetOf(pattern, c)
	if err != nil {
		return 0, 0, err
	}
	if err := Validate(plane.Width, plane.Height, roi); err != nil {
		return 0, 0, err
	}

	values := make([]float64, 0, roi.Area())
	for y := roi.Y1; y < roi.Y2; y++ {
		row := (2*y + off.Y) * plane.Width
		for x := roi.X1; x < roi.X2; x++ {
			values = append(values, float64(plane.Pix[row+2*x+off.X]))
		}
	}

	m, v := stat.PopMeanVariance(values, nil)
	return Round(m, 1), Round(v, 3), nil
}

// AllChannels computes RegionStats for R, G1, G2 and B
func AllChannels(plane *Plane, pattern Pattern, roi geometry.Rect) ([4]Stats, error) {
	var out [4]Stats
	for _, c := range Channels {
		m, v, err := RegionStats(plane, pattern, c, roi)
		if err != nil {
			return out, err
		}
		out[c] = Stats{Mean: m, Variance: v}
	}
	return out, nil
}

// Round rounds v half away from zero to the given number of decimals
func Round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
