package stats

import (
	"context"
	"math"

	"github.com/skyglow/skyglow-go/internal/cfa"
	"github.com/skyglow/skyglow-go/internal/errors"
	"github.com/skyglow/skyglow-go/internal/logger"
	"github.com/skyglow/skyglow-go/internal/metadata"
)

// ErrNoCalibrationFrames means the camera has no measured BIAS or DARK frame
var ErrNoCalibrationFrames = errors.NewStd("no measured bias or dark frames")

// BiasResult reports a calibration
type BiasResult struct {
	Model    string `json:"model"`
	Previous int    `json:"previous"`
	Bias     int    `json:"bias"`
	Levels   [4]int `json:"levels"`
	Frames   int64  `json:"frames"`
	Warning  string `json:"warning,omitempty"`
}

// CalibrateBias derives the pedestal of model from the measured bias and
// dark frames and stores it on the camera. A power-of-two warning is
// reported in the result and does not prevent the update; inconsistent
// levels do.
func (e *Engine) CalibrateBias(ctx context.Context, model string) (BiasResult, error) {
	res := BiasResult{Model: model}
	cam, err := e.cameras.LoadByNaturalKey(ctx, model)
	if err != nil {
		return res, err
	}
	res.Previous = cam.Bias

	levels, err := e.measurements.Levels(ctx, cam.ID, string(metadata.Bias), string(metadata.Dark))
	if err != nil {
		return res, err
	}
	res.Frames = levels.Frames
	if levels.Frames == 0 {
		return res, errors.New(ErrNoCalibrationFrames).
			Component("stats").
			Category(errors.CategoryBias).
			Context("model", model).
			Build()
	}

	res.Levels = [4]int{
		int(math.Round(levels.R)),
		int(math.Round(levels.G1)),
		int(math.Round(levels.G2)),
		int(math.Round(levels.B)),
	}
	bias, warn, err := cfa.AnalyzeBias(res.Levels)
	if err != nil {
		return res, err
	}
	res.Bias = bias

	log := e.log.With(logger.String("model", model), logger.Int("bias", bias))
	if warn != nil {
		res.Warning = warn.Error()
		log.Warn("bias rounded", logger.Error(warn))
	}
	if err := e.cameras.UpdateBias(ctx, model, bias); err != nil {
		return res, err
	}
	log.Info("camera bias updated",
		logger.Int("previous", res.Previous),
		logger.Int64("frames", res.Frames))
	return res, nil
}
