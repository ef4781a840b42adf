package detector

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Prior model constants.
const (
	// LocationSigmaFactor scales the crop width into the standard deviation
	// of each LED's location likelihood.
	LocationSigmaFactor = 0.055
	// IntensitySigma is the width of the brightness likelihood around 1.0.
	IntensitySigma = 0.2
)

// LocationPrior returns a CV_32F map holding, at every pixel, the maximum over
// all LEDs of a Gaussian centred on that LED and scaled to a peak of 1.
func LocationPrior(rows, cols int, leds []image.Point) (gocv.Mat, error) {
	prior := gocv.Zeros(rows, cols, gocv.MatTypeCV32F)

	impulse := gocv.Zeros(rows, cols, gocv.MatTypeCV32F)
	defer impulse.Close()
	blob := gocv.NewMat()
	defer blob.Close()

	sigma := LocationSigmaFactor * float64(cols)
	for _, p := range leds {
		impulse.SetFloatAt(p.Y, p.X, 1)
		err := gocv.GaussianBlur(impulse, &blob, image.Pt(0, 0), sigma, sigma, gocv.BorderDefault)
		impulse.SetFloatAt(p.Y, p.X, 0)
		if err != nil {
			prior.Close()
			return gocv.NewMat(), fmt.Errorf("location prior at (%d,%d): %w", p.X, p.Y, err)
		}

		if _, peak, _, _ := gocv.MinMaxLoc(blob); peak > 0 {
			blob.DivideFloat(peak)
		}
		if err := gocv.Max(prior, blob, &prior); err != nil {
			prior.Close()
			return gocv.NewMat(), fmt.Errorf("location prior at (%d,%d): %w", p.X, p.Y, err)
		}
	}
	return prior, nil
}

// IntensityPrior maps an 8-bit image v to exp(-0.5*((v/255-1)/IntensitySigma)^2)
// as a CV_32F map, favouring pixels close to full brightness.
func IntensityPrior(img gocv.Mat) (gocv.Mat, error) {
	prior := gocv.NewMat()
	if err := img.ConvertToWithParams(&prior, gocv.MatTypeCV32F, 1.0/255, -1); err != nil {
		prior.Close()
		return gocv.NewMat(), fmt.Errorf("intensity prior: %w", err)
	}
	if err := gocv.Multiply(prior, prior, &prior); err != nil {
		prior.Close()
		return gocv.NewMat(), fmt.Errorf("intensity prior: %w", err)
	}
	prior.MultiplyFloat(float32(-0.5 / (IntensitySigma * IntensitySigma)))
	if err := gocv.Exp(prior, &prior); err != nil {
		prior.Close()
		return gocv.NewMat(), fmt.Errorf("intensity prior: %w", err)
	}
	return prior, nil
}

// Fuse multiplies the location and intensity priors into a confidence map.
// The caller is responsible for closing the returned Mat.
func Fuse(location, intensity gocv.Mat) (gocv.Mat, error) {
	confidence := gocv.NewMat()
	if err := gocv.Multiply(location, intensity, &confidence); err != nil {
		confidence.Close()
		return gocv.NewMat(), fmt.Errorf("fuse priors: %w", err)
	}
	return confidence, nil
}

// Quantize converts a [0,1] CV_32F map to 8 bits by truncating 255*v.
func Quantize(m gocv.Mat) (gocv.Mat, error) {
	if m.Type() != gocv.MatTypeCV32F || !m.IsContinuous() {
		return gocv.NewMat(), fmt.Errorf("quantize: expected a continuous CV_32F map, got %v", m.Type())
	}
	src, err := m.DataPtrFloat32()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("quantize: %w", err)
	}

	out := gocv.NewMatWithSize(m.Rows(), m.Cols(), gocv.MatTypeCV8UC1)
	dst, err := out.DataPtrUint8()
	if err != nil {
		out.Close()
		return gocv.NewMat(), fmt.Errorf("quantize: %w", err)
	}
	for i, v := range src {
		dst[i] = uint8(255 * min(max(v, 0), 1))
	}
	return out, nil
}
