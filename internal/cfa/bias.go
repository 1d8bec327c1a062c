package cfa

import (
	"fmt"
	"math"
	"slices"

	"github.com/skyglow/skyglow-go/internal/errors"
)

var (
	// ErrInconsistentBias means the channel levels disagree by more than
	// MaxBiasSpread and cannot share one pedestal
	ErrInconsistentBias = errors.NewStd("inconsistent bias levels")

	// ErrNotPowerOfTwo is a warning: the returned bias was rounded to the
	// nearest power of two
	ErrNotPowerOfTwo = errors.NewStd("bias level is not a power of two")
)

const (
	// MaxBiasSpread is the largest accepted max-min across the four levels
	MaxBiasSpread = 4

	// PowerOfTwoTolerance bounds |log2(l) - n| / n for the nearest exponent n
	PowerOfTwoTolerance = 0.012
)

// AnalyzeBias derives one pedestal from the per-channel levels of a dark or
// bias frame. A non-nil warn still comes with a usable bias; err is fatal.
// A zero level is accepted as a zero pedestal.
func AnalyzeBias(levels [4]int) (bias int, warn, err error) {
	lo := slices.Min(levels[:])
	hi := slices.Max(levels[:])

	if lo < 0 {
		return 0, nil, errors.New(fmt.Errorf("%w: negative level %d", ErrInconsistentBias, lo)).
			Category(errors.CategoryBias).
			Build()
	}
	if hi-lo > MaxBiasSpread {
		return 0, nil, errors.New(fmt.Errorf("%w: spread %d exceeds %d", ErrInconsistentBias, hi-lo, MaxBiasSpread)).
			Category(errors.CategoryBias).
			Context("levels", levels).
			Build()
	}
	if lo == 0 {
		return 0, nil, nil
	}

	bias = nearestPowerOfTwo(lo)

	var deviant []int
	for _, l := range levels {
		if l == 0 {
			continue
		}
		if logDeviation(l) > PowerOfTwoTolerance {
			deviant = append(deviant, l)
		}
	}

	switch {
	case len(deviant) > 0:
		warn = fmt.Errorf("%w: levels %v deviate from %d", ErrNotPowerOfTwo, deviant, bias)
	case bias != lo:
		warn = fmt.Errorf("%w: %d rounded to %d", ErrNotPowerOfTwo, lo, bias)
	}
	return bias, warn, nil
}

func nearestPowerOfTwo(l int) int {
	exp := math.Round(math.Log2(float64(l)))
	return int(math.Pow(2, exp))
}

// logDeviation is the distance of log2(l) from its nearest integer,
// relative to that integer. Levels 1 (2^0) have zero deviation.
func logDeviation(l int) float64 {
	lg := math.Log2(float64(l))
	exp := math.Round(lg)
	if exp == 0 {
		return math.Abs(lg)
	}
	return math.Abs(lg-exp) / exp
}
