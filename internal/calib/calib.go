// Package calib loads, validates and builds the LED panel calibration:
// the LED pixel positions, the region of interest around them and the
// gap-derived state index that marks the end of a cycle.
package calib

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
)

// ErrCalibration is returned for malformed or inconsistent calibration data.
var ErrCalibration = errors.New("calibration error")

// Calibration defaults.
const (
	DefaultBorderFactor = 0.04
	// RadiusFactor scales the image width into the LED marker radius.
	RadiusFactor = 0.005
)

// ROI is a region of interest in full-image pixel coordinates.
// XMax and YMax are exclusive.
type ROI struct {
	XMin int
	XMax int
	YMin int
	YMax int
}

// Rect returns the ROI as an image.Rectangle.
func (r ROI) Rect() image.Rectangle {
	return image.Rect(r.XMin, r.YMin, r.XMax, r.YMax)
}

// Width returns the ROI width in pixels.
func (r ROI) Width() int { return r.XMax - r.XMin }

// Height returns the ROI height in pixels.
func (r ROI) Height() int { return r.YMax - r.YMin }

// Calibration is produced once, offline, and is read-only afterwards.
type Calibration struct {
	LEDRadius int
	// LEDs are full-image pixel positions in marking order.
	LEDs []image.Point
	ROI  ROI
	// BorderFactor is the ROI margin used when the calibration was built.
	BorderFactor float64
	// EndingIndex is a gap-derived state index (see ledstate.Boundaries),
	// not the index of a physical LED.
	EndingIndex int
}

// NumLEDs returns the number of calibrated LEDs.
func (c *Calibration) NumLEDs() int {
	return len(c.LEDs)
}

// Validate checks the calibration invariants.
func (c *Calibration) Validate() error {
	n := c.NumLEDs()
	if n < 2 {
		return fmt.Errorf("%w: need at least 2 leds, got %d", ErrCalibration, n)
	}
	if c.LEDRadius <= 0 {
		return fmt.Errorf("%w: led radius must be > 0, got %d", ErrCalibration, c.LEDRadius)
	}
	if c.ROI.XMin < 0 || c.ROI.YMin < 0 || c.ROI.Width() <= 0 || c.ROI.Height() <= 0 {
		return fmt.Errorf("%w: invalid roi (xmin=%d,xmax=%d,ymin=%d,ymax=%d)",
			ErrCalibration, c.ROI.XMin, c.ROI.XMax, c.ROI.YMin, c.ROI.YMax)
	}
	for k, p := range c.RelativeLEDs() {
		if p.X < 0 || p.X >= c.ROI.Width() || p.Y < 0 || p.Y >= c.ROI.Height() {
			return fmt.Errorf("%w: led %d at (%d,%d) lies outside the roi",
				ErrCalibration, k, c.LEDs[k].X, c.LEDs[k].Y)
		}
	}
	if c.EndingIndex < 0 || c.EndingIndex > n-2 {
		return fmt.Errorf("%w: ending led index %d outside [0,%d]", ErrCalibration, c.EndingIndex, n-2)
	}
	return nil
}

// RelativeLEDs returns the LED positions expressed relative to the ROI origin.
func (c *Calibration) RelativeLEDs() []image.Point {
	origin := image.Pt(c.ROI.XMin, c.ROI.YMin)
	rel := make([]image.Point, len(c.LEDs))
	for i, p := range c.LEDs {
		rel[i] = p.Sub(origin)
	}
	return rel
}

// RelativeX returns the ROI-relative x coordinate of every LED.
func (c *Calibration) RelativeX() []int {
	rel := c.RelativeLEDs()
	xs := make([]int, len(rel))
	for i, p := range rel {
		xs[i] = p.X
	}
	return xs
}

// Build derives a calibration from LED positions marked on an image of the
// given size. The ROI is the LED bounding box grown by a border of
// 0.5*(width+height)*borderFactor pixels and clamped to the image.
func Build(width, height int, leds []image.Point, endingIndex int, borderFactor float64) (*Calibration, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid image size %dx%d", ErrCalibration, width, height)
	}
	if len(leds) == 0 {
		return nil, fmt.Errorf("%w: no leds marked", ErrCalibration)
	}
	if borderFactor < 0 {
		return nil, fmt.Errorf("%w: border factor must be >= 0, got %f", ErrCalibration, borderFactor)
	}

	minX, minY := math.MaxInt, math.MaxInt
	maxX, maxY := math.MinInt, math.MinInt
	for _, p := range leds {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	b := 0.5 * float64(width+height) * borderFactor
	c := &Calibration{
		LEDRadius: max(1, int(RadiusFactor*float64(width))),
		LEDs:      append([]image.Point(nil), leds...),
		ROI: ROI{
			XMin: clamp(int(float64(minX)-b), 0, width),
			XMax: clamp(int(float64(maxX)+b), 0, width),
			YMin: clamp(int(float64(minY)-b), 0, height),
			YMax: clamp(int(float64(maxY)+b), 0, height),
		},
		BorderFactor: borderFactor,
		EndingIndex:  endingIndex,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// file is the persisted layout: 2xN LED matrix (row 0 = x, row 1 = y) and a
// 2x2 ROI matrix [[xmin,xmax],[ymin,ymax]].
type file struct {
	LEDRadius      int       `json:"led_radius"`
	NbLEDs         int       `json:"nb_leds"`
	LEDsCoords     [2][]int  `json:"leds_coords"`
	ROICoords      [2][2]int `json:"roi_coords"`
	BorderFactor   float64   `json:"border_factor"`
	EndingLEDIndex int       `json:"ending_led_index"`
}

// MarshalJSON encodes the calibration in the persisted matrix layout.
func (c *Calibration) MarshalJSON() ([]byte, error) {
	f := file{
		LEDRadius:      c.LEDRadius,
		NbLEDs:         len(c.LEDs),
		ROICoords:      [2][2]int{{c.ROI.XMin, c.ROI.XMax}, {c.ROI.YMin, c.ROI.YMax}},
		BorderFactor:   c.BorderFactor,
		EndingLEDIndex: c.EndingIndex,
	}
	f.LEDsCoords[0] = make([]int, len(c.LEDs))
	f.LEDsCoords[1] = make([]int, len(c.LEDs))
	for i, p := range c.LEDs {
		f.LEDsCoords[0][i] = p.X
		f.LEDsCoords[1][i] = p.Y
	}
	return json.Marshal(f)
}

// UnmarshalJSON decodes the persisted matrix layout.
func (c *Calibration) UnmarshalJSON(data []byte) error {
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: %v", ErrCalibration, err)
	}
	if len(f.LEDsCoords[0]) != f.NbLEDs || len(f.LEDsCoords[1]) != f.NbLEDs {
		return fmt.Errorf("%w: nb_leds=%d but leds_coords has %dx%d entries",
			ErrCalibration, f.NbLEDs, len(f.LEDsCoords[0]), len(f.LEDsCoords[1]))
	}

	c.LEDRadius = f.LEDRadius
	c.LEDs = make([]image.Point, f.NbLEDs)
	for i := range c.LEDs {
		c.LEDs[i] = image.Pt(f.LEDsCoords[0][i], f.LEDsCoords[1][i])
	}
	c.ROI = ROI{XMin: f.ROICoords[0][0], XMax: f.ROICoords[0][1], YMin: f.ROICoords[1][0], YMax: f.ROICoords[1][1]}
	c.BorderFactor = f.BorderFactor
	c.EndingIndex = f.EndingLEDIndex
	return nil
}

// Load reads and validates a calibration file.
func Load(path string) (*Calibration, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrCalibration, path, err)
	}

	c := &Calibration{}
	if err := json.Unmarshal(data, c); err != nil {
		if errors.Is(err, ErrCalibration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCalibration, path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Save writes the calibration to path.
func (c *Calibration) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode calibration: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
