// Package fixtures generates synthetic LED panel frames for tests.
package fixtures

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/ayusman/ledwatch/internal/calib"
)

// Frame geometry shared by every fixture.
const (
	Width     = 160
	Height    = 120
	LEDRadius = 5
)

// Panel LEDs in full-frame coordinates. Relative to the ROI they sit at
// (30,50), (50,50) and (70,50) of a 100x100 crop.
var LEDs = []image.Point{{X: 50, Y: 60}, {X: 70, Y: 60}, {X: 90, Y: 60}}

// EndingIndex is the state reached when the middle LED is lit.
const EndingIndex = 1

// Calibration returns the calibration matching the fixture frames.
func Calibration() *calib.Calibration {
	return &calib.Calibration{
		LEDRadius:    1,
		LEDs:         append([]image.Point(nil), LEDs...),
		ROI:          calib.ROI{XMin: 20, XMax: 120, YMin: 10, YMax: 110},
		BorderFactor: calib.DefaultBorderFactor,
		EndingIndex:  EndingIndex,
	}
}

// Frame returns a dark grayscale frame with the given LEDs lit.
func Frame(lit ...int) gocv.Mat {
	img := gocv.Zeros(Height, Width, gocv.MatTypeCV8UC1)
	for _, i := range lit {
		gocv.Circle(&img, LEDs[i], LEDRadius, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	}
	return img
}

// Sequence returns one frame per entry of lit. Close them with CloseAll.
func Sequence(lit ...[]int) []*gocv.Mat {
	frames := make([]*gocv.Mat, len(lit))
	for i, l := range lit {
		m := Frame(l...)
		frames[i] = &m
	}
	return frames
}

// CloseAll releases frames returned by Sequence.
func CloseAll(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}

// WriteSequence writes one PNG per entry of lit into dir, named so that
// lexical order is playback order, and returns the file paths.
func WriteSequence(dir string, lit ...[]int) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create fixture dir: %w", err)
	}

	paths := make([]string, 0, len(lit))
	for i, l := range lit {
		path := filepath.Join(dir, fmt.Sprintf("frame_%03d.png", i))
		img := Frame(l...)
		ok := gocv.IMWrite(path, img)
		img.Close()
		if !ok {
			return nil, fmt.Errorf("write fixture %s failed", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Off is the lit list of a frame with every LED dark.
var Off = []int{}

// Repeat returns n copies of lit.
func Repeat(n int, lit []int) [][]int {
	out := make([][]int, n)
	for i := range out {
		out[i] = lit
	}
	return out
}
