// Package detector infers which LED of a calibrated panel is lit in a
// grayscale frame: it crops the region of interest, fuses a location prior
// with a brightness prior, segments the result and classifies the blobs.
package detector

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/ledwatch/internal/calib"
	"github.com/ayusman/ledwatch/internal/capture"
	"github.com/ayusman/ledwatch/internal/ledstate"
)

// Detector defines the interface for LED state detection implementations.
type Detector interface {
	// Detect classifies one frame. On error the returned classification
	// is Ambiguous and should be treated as such by the caller.
	Detect(frame *gocv.Mat) (ledstate.Classification, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for LED detection.
type Config struct {
	// Threshold is the detection threshold on the fused confidence map, in (0,1).
	Threshold float64

	// Debug receives intermediate stage images when non-nil.
	Debug DebugSink
}

// DefaultConfig returns a Config with the default threshold of 0.5.
func DefaultConfig() Config {
	return Config{Threshold: 0.5}
}

// LEDDetector is the calibrated prior-fusion detector.
type LEDDetector struct {
	cal        *calib.Calibration
	seg        *Segmenter
	boundaries []float64
}

// New creates a detector for the given calibration.
func New(cal *calib.Calibration, cfg Config) (*LEDDetector, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	if !(cfg.Threshold > 0 && cfg.Threshold < 1) {
		return nil, fmt.Errorf("detection threshold must be in (0,1), got %v", cfg.Threshold)
	}

	return &LEDDetector{
		cal: cal,
		seg: &Segmenter{
			Threshold: cfg.Threshold,
			LEDs:      cal.RelativeLEDs(),
			Debug:     cfg.Debug,
		},
		boundaries: ledstate.Boundaries(cal.RelativeX(), cal.ROI.Width()),
	}, nil
}

// Boundaries returns the state bin edges used by the classifier.
func (d *LEDDetector) Boundaries() []float64 {
	return append([]float64(nil), d.boundaries...)
}

// Detect implements Detector.
func (d *LEDDetector) Detect(frame *gocv.Mat) (ledstate.Classification, error) {
	set, err := d.Segment(frame)
	if err != nil {
		return ledstate.AmbiguousCount(0), err
	}
	return ledstate.Classify(set, d.boundaries), nil
}

// Segment crops and segments a full frame without classifying it.
func (d *LEDDetector) Segment(frame *gocv.Mat) (ledstate.ComponentSet, error) {
	if frame == nil || frame.Empty() {
		return ledstate.ComponentSet{}, fmt.Errorf("%w: empty frame", capture.ErrAcquisition)
	}

	gray := *frame
	if frame.Channels() > 1 {
		gray = gocv.NewMat()
		defer gray.Close()
		if err := gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray); err != nil {
			return ledstate.ComponentSet{}, fmt.Errorf("%w: grayscale conversion: %v", capture.ErrAcquisition, err)
		}
	}
	if gray.Type() != gocv.MatTypeCV8UC1 {
		return ledstate.ComponentSet{}, fmt.Errorf("%w: unsupported frame type %v", capture.ErrAcquisition, gray.Type())
	}

	crop, err := Crop(gray, d.cal.ROI)
	if err != nil {
		return ledstate.ComponentSet{}, err
	}
	defer crop.Close()

	return d.seg.Segment(crop)
}

// Close implements Detector.
func (d *LEDDetector) Close() error {
	return nil
}
