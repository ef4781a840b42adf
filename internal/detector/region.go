package detector

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/ledwatch/internal/calib"
)

// ErrInvalidRegion is returned when the region of interest does not fit the frame.
var ErrInvalidRegion = errors.New("invalid region")

// Crop returns a copy of the region of interest of frame.
// The caller is responsible for closing the returned Mat.
func Crop(frame gocv.Mat, roi calib.ROI) (gocv.Mat, error) {
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	r := roi.Rect()
	if r.Empty() || !r.In(bounds) {
		return gocv.NewMat(), fmt.Errorf("%w: roi (%d,%d)-(%d,%d) outside image bounds %dx%d",
			ErrInvalidRegion, r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, bounds.Dx(), bounds.Dy())
	}

	region := frame.Region(r)
	defer region.Close()

	return region.Clone(), nil
}
