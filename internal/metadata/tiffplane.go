package metadata

import (
	"fmt"
	"image"
	"os"

	"golang.org/x/image/tiff"

	"github.com/skyglow/skyglow-go/internal/cfa"
	"github.com/skyglow/skyglow-go/internal/errors"
)

// decodeTIFFPlane reads a single-channel CFA TIFF, as produced by raw
// converters in document mode. Demosaiced or colour images are rejected
// because their pixels no longer follow the filter tile.
func decodeTIFFPlane(path string) (*cfa.Plane, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the image table
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "raw-open").
			Context("path", path).
			Build()
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %s: %w", ErrUnsupportedRaw, path, err)).
			Category(errors.CategoryImageDecode).
			Build()
	}

	plane, err := planeFromImage(img)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%s: %w", path, err)).
			Category(errors.CategoryImageDecode).
			Build()
	}
	return plane, nil
}

func planeFromImage(img image.Image) (*cfa.Plane, error) {
	b := img.Bounds()
	plane := cfa.NewPlane(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				plane.Set(x, y, float32(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				plane.Set(x, y, float32(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
	default:
		return nil, fmt.Errorf("%w: %T is not a single-channel plane", ErrUnsupportedRaw, img)
	}
	return plane, nil
}
