package capture

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestImage(t *testing.T, path string, w, h int, lit image.Point) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{A: 255})
		}
	}
	img.Set(lit.X, lit.Y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	require.NoError(t, imaging.Save(img, path))
}

func TestDirCamera_ReplayInOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	dir := t.TempDir()
	writeTestImage(t, filepath.Join(dir, "b.png"), 20, 10, image.Pt(15, 5))
	writeTestImage(t, filepath.Join(dir, "a.png"), 20, 10, image.Pt(2, 3))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	cam := NewDirCamera(dir, false)
	require.NoError(t, cam.Open())
	defer cam.Close()

	assert.Equal(t, []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}, cam.Files())

	first, err := cam.ReadFrame()
	require.NoError(t, err)
	defer first.Close()

	assert.Equal(t, 1, first.Channels())
	assert.Equal(t, 20, first.Cols())
	assert.Equal(t, 10, first.Rows())
	assert.EqualValues(t, 255, first.GetUCharAt(3, 2))
	assert.EqualValues(t, 0, first.GetUCharAt(5, 15))

	second, err := cam.ReadFrame()
	require.NoError(t, err)
	defer second.Close()
	assert.EqualValues(t, 255, second.GetUCharAt(5, 15))

	_, err = cam.ReadFrame()
	assert.True(t, errors.Is(err, ErrNoMoreFrames))
}

func TestDirCamera_Empty(t *testing.T) {
	cam := NewDirCamera(t.TempDir(), true)

	err := cam.Open()
	assert.True(t, errors.Is(err, ErrAcquisition))
	assert.False(t, cam.IsOpen())
}

func TestDirCamera_Missing(t *testing.T) {
	cam := NewDirCamera(filepath.Join(t.TempDir(), "nope"), true)
	assert.True(t, errors.Is(cam.Open(), ErrAcquisition))
}
