package detector

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/ledwatch/internal/ledstate"
)

// Segmentation parameters. Kernel sizes are fractions of the crop width.
const (
	DenoiseStrength       = 5
	DenoiseTemplateWindow = 7
	DenoiseSearchWindow   = 21
	CoarseCloseFactor     = 0.15
	FineCloseFactor       = 0.014
)

// OpenCV column of the component area in the stats matrix (CC_STAT_AREA).
const ccStatArea = 4

// Debug stages, in pipeline order.
const (
	StageCrop = iota
	StageDenoised
	StageClosed
	StageLocationPrior
	StageIntensityPrior
	StageFused
	StageThreshold
)

// Segmenter turns a cropped grayscale frame into connected components.
type Segmenter struct {
	// Threshold is the detection threshold in (0,1).
	Threshold float64
	// LEDs are the LED positions relative to the crop origin.
	LEDs []image.Point
	// Debug receives intermediate images when non-nil.
	Debug DebugSink
}

// Confidence runs denoising, coarse closing and prior fusion on a cropped
// 8-bit grayscale frame and returns the CV_32F confidence map in [0,1].
// The caller is responsible for closing the returned Mat.
func (s *Segmenter) Confidence(crop gocv.Mat) (gocv.Mat, error) {
	if crop.Empty() || crop.Type() != gocv.MatTypeCV8UC1 {
		return gocv.NewMat(), fmt.Errorf("segment: expected a non-empty 8-bit single channel image")
	}
	for _, p := range s.LEDs {
		if p.X < 0 || p.Y < 0 || p.X >= crop.Cols() || p.Y >= crop.Rows() {
			return gocv.NewMat(), fmt.Errorf("%w: led (%d,%d) outside %dx%d crop",
				ErrInvalidRegion, p.X, p.Y, crop.Cols(), crop.Rows())
		}
	}
	s.emit(StageCrop, crop)

	denoised := gocv.NewMat()
	defer denoised.Close()
	err := gocv.FastNlMeansDenoisingWithParams(crop, &denoised, DenoiseStrength, DenoiseTemplateWindow, DenoiseSearchWindow)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("denoise: %w", err)
	}
	s.emit(StageDenoised, denoised)

	closed := gocv.NewMat()
	defer closed.Close()
	if err := closeWith(denoised, &closed, kernelSize(CoarseCloseFactor, crop.Cols())); err != nil {
		return gocv.NewMat(), err
	}
	s.emit(StageClosed, closed)

	location, err := LocationPrior(crop.Rows(), crop.Cols(), s.LEDs)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer location.Close()
	if err := s.emitUnit(StageLocationPrior, location); err != nil {
		return gocv.NewMat(), err
	}

	intensity, err := IntensityPrior(closed)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer intensity.Close()
	if err := s.emitUnit(StageIntensityPrior, intensity); err != nil {
		return gocv.NewMat(), err
	}

	return Fuse(location, intensity)
}

// Segment runs the full pipeline and labels the 8-connected blobs of the
// thresholded confidence map.
func (s *Segmenter) Segment(crop gocv.Mat) (ledstate.ComponentSet, error) {
	set := ledstate.ComponentSet{Width: crop.Cols(), Height: crop.Rows()}

	confidence, err := s.Confidence(crop)
	if err != nil {
		return set, err
	}
	defer confidence.Close()

	fused, err := Quantize(confidence)
	if err != nil {
		return set, err
	}
	defer fused.Close()
	if err := closeWith(fused, &fused, kernelSize(FineCloseFactor, crop.Cols())); err != nil {
		return set, err
	}
	s.emit(StageFused, fused)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(fused, &mask, float32(int(s.Threshold*255)), 255, gocv.ThresholdBinary)
	s.emit(StageThreshold, mask)

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStats(mask, &labels, &stats, &centroids)
	set.Components = make([]ledstate.Component, 0, n)
	for i := 0; i < n; i++ {
		set.Components = append(set.Components, ledstate.Component{
			Centroid: ledstate.Centroid{
				X: centroids.GetDoubleAt(i, 0),
				Y: centroids.GetDoubleAt(i, 1),
			},
			Area: int(stats.GetIntAt(i, ccStatArea)),
		})
	}
	return set, nil
}

func kernelSize(factor float64, width int) int {
	return max(1, int(factor*float64(width)))
}

// closeWith applies a morphological closing with a size x size square.
func closeWith(src gocv.Mat, dst *gocv.Mat, size int) error {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, size))
	defer kernel.Close()
	if err := gocv.MorphologyEx(src, dst, gocv.MorphClose, kernel); err != nil {
		return fmt.Errorf("closing with %dx%d kernel: %w", size, size, err)
	}
	return nil
}

func (s *Segmenter) emit(stage int, img gocv.Mat) {
	if s.Debug != nil {
		s.Debug.Emit(stage, img)
	}
}

// emitUnit emits a [0,1] float map scaled to 8 bits.
func (s *Segmenter) emitUnit(stage int, m gocv.Mat) error {
	if s.Debug == nil {
		return nil
	}
	img, err := Quantize(m)
	if err != nil {
		return err
	}
	defer img.Close()
	s.Debug.Emit(stage, img)
	return nil
}
