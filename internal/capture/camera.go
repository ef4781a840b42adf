// Package capture acquires frames of the LED panel from a video device, an
// external still-capture command or a directory of recorded photos.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrAcquisition is returned when a frame cannot be obtained.
	ErrAcquisition = errors.New("frame acquisition failed")

	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = fmt.Errorf("%w: camera is not open", ErrAcquisition)

	// ErrNoMoreFrames is returned by finite sources once every frame was read.
	ErrNoMoreFrames = fmt.Errorf("%w: no more frames", ErrAcquisition)
)

// Camera defines the interface for frame sources.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller is responsible for
	// closing the returned Mat.
	ReadFrame() (*gocv.Mat, error)
	IsOpen() bool
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	deviceID int
	width    int
	height   int
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
}

// NewCamera creates a new Camera with the given device ID. A zero width or
// height keeps the device default resolution. The resolution must match the
// one the calibration was made with.
func NewCamera(deviceID, width, height int) Camera {
	return &cameraImpl{
		deviceID: deviceID,
		width:    width,
		height:   height,
	}
}

// Open opens the camera for capturing frames.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return fmt.Errorf("%w: failed to open device %d: %v", ErrAcquisition, c.deviceID, err)
	}

	if c.width > 0 && c.height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
	}

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single BGR frame from the camera.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, fmt.Errorf("%w: failed to read frame from camera", ErrAcquisition)
	}

	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: captured frame is empty", ErrAcquisition)
	}

	return &mat, nil
}

// IsOpen returns true if the camera is currently open and running.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
