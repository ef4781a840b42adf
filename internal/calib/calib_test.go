package calib

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeLEDs() *Calibration {
	return &Calibration{
		LEDRadius:    3,
		LEDs:         []image.Point{{X: 130, Y: 250}, {X: 150, Y: 250}, {X: 170, Y: 250}},
		ROI:          ROI{XMin: 100, XMax: 200, YMin: 200, YMax: 300},
		BorderFactor: DefaultBorderFactor,
		EndingIndex:  1,
	}
}

func TestCalibration_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Calibration)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Calibration) {}},
		{name: "single led", mutate: func(c *Calibration) { c.LEDs = c.LEDs[:1] }, wantErr: true},
		{name: "led left of roi", mutate: func(c *Calibration) { c.LEDs[0].X = 99 }, wantErr: true},
		{name: "led on exclusive right edge", mutate: func(c *Calibration) { c.LEDs[2].X = 200 }, wantErr: true},
		{name: "led below roi", mutate: func(c *Calibration) { c.LEDs[1].Y = 300 }, wantErr: true},
		{name: "led on roi origin", mutate: func(c *Calibration) { c.LEDs[0] = image.Pt(100, 200) }},
		{name: "ending index negative", mutate: func(c *Calibration) { c.EndingIndex = -1 }, wantErr: true},
		{name: "ending index last gap", mutate: func(c *Calibration) { c.EndingIndex = 2 }, wantErr: true},
		{name: "ending index zero", mutate: func(c *Calibration) { c.EndingIndex = 0 }},
		{name: "empty roi", mutate: func(c *Calibration) { c.ROI.XMax = c.ROI.XMin }, wantErr: true},
		{name: "negative roi origin", mutate: func(c *Calibration) { c.ROI.XMin = -1 }, wantErr: true},
		{name: "zero radius", mutate: func(c *Calibration) { c.LEDRadius = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := threeLEDs()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCalibration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCalibration_RelativeLEDs(t *testing.T) {
	c := threeLEDs()

	assert.Equal(t, []image.Point{{X: 30, Y: 50}, {X: 50, Y: 50}, {X: 70, Y: 50}}, c.RelativeLEDs())
	assert.Equal(t, []int{30, 50, 70}, c.RelativeX())
	assert.Equal(t, image.Rect(100, 200, 200, 300), c.ROI.Rect())
	assert.Equal(t, 100, c.ROI.Width())
	assert.Equal(t, 100, c.ROI.Height())
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leds.json")
	c := threeLEDs()

	require.NoError(t, c.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}

func TestLoad_Layout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leds.json")
	data := `{
		"led_radius": 4,
		"nb_leds": 3,
		"leds_coords": [[130, 150, 170], [250, 251, 252]],
		"roi_coords": [[100, 200], [200, 300]],
		"border_factor": 0.04,
		"ending_led_index": 0
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, c.LEDRadius)
	assert.Equal(t, image.Pt(150, 251), c.LEDs[1])
	assert.Equal(t, ROI{XMin: 100, XMax: 200, YMin: 200, YMax: 300}, c.ROI)
	assert.Equal(t, 0, c.EndingIndex)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		data string
	}{
		{name: "malformed json", data: `{"nb_leds": `},
		{name: "count mismatch", data: `{"led_radius":1,"nb_leds":3,"leds_coords":[[1,2],[1,2]],"roi_coords":[[0,10],[0,10]]}`},
		{name: "single led", data: `{"led_radius":1,"nb_leds":1,"leds_coords":[[1],[1]],"roi_coords":[[0,10],[0,10]]}`},
		{name: "led outside roi", data: `{"led_radius":1,"nb_leds":2,"leds_coords":[[1,20],[1,1]],"roi_coords":[[0,10],[0,10]]}`},
		{name: "ending out of range", data: `{"led_radius":1,"nb_leds":2,"leds_coords":[[1,5],[1,1]],"roi_coords":[[0,10],[0,10]],"ending_led_index":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0644))

			_, err := Load(path)
			assert.ErrorIs(t, err, ErrCalibration)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrCalibration)
}

func TestBuild(t *testing.T) {
	leds := []image.Point{{X: 300, Y: 200}, {X: 340, Y: 200}, {X: 380, Y: 210}}

	c, err := Build(640, 480, leds, 1, DefaultBorderFactor)
	require.NoError(t, err)

	// border = 0.5*(640+480)*0.04 = 22.4
	assert.Equal(t, ROI{XMin: 277, XMax: 402, YMin: 177, YMax: 232}, c.ROI)
	assert.Equal(t, 3, c.LEDRadius)
	assert.Equal(t, 1, c.EndingIndex)
	assert.NoError(t, c.Validate())
}

func TestBuild_ClampsToImage(t *testing.T) {
	leds := []image.Point{{X: 2, Y: 2}, {X: 630, Y: 470}}

	c, err := Build(640, 480, leds, 0, DefaultBorderFactor)
	require.NoError(t, err)
	assert.Equal(t, ROI{XMin: 0, XMax: 640, YMin: 0, YMax: 480}, c.ROI)
}

func TestBuild_Errors(t *testing.T) {
	leds := []image.Point{{X: 300, Y: 200}, {X: 340, Y: 200}}

	_, err := Build(0, 480, leds, 0, DefaultBorderFactor)
	assert.ErrorIs(t, err, ErrCalibration)

	_, err = Build(640, 480, nil, 0, DefaultBorderFactor)
	assert.ErrorIs(t, err, ErrCalibration)

	_, err = Build(640, 480, leds, 1, DefaultBorderFactor)
	assert.ErrorIs(t, err, ErrCalibration)

	_, err = Build(640, 480, leds, 0, -0.1)
	assert.ErrorIs(t, err, ErrCalibration)
}
