package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// OutPlaceholder is replaced by the output path in still command arguments.
const OutPlaceholder = "{out}"

// DefaultStillTimeout bounds a single still capture.
const DefaultStillTimeout = 20 * time.Second

// StillCamera takes one photo per frame by running an external command,
// such as raspistill, that writes a JPEG to Path.
type StillCamera struct {
	Command []string
	Path    string
	Timeout time.Duration

	mu      sync.Mutex
	running bool
}

// NewStillCamera creates a still camera. Every "{out}" in command is
// replaced by path.
func NewStillCamera(command []string, path string) *StillCamera {
	return &StillCamera{
		Command: command,
		Path:    path,
		Timeout: DefaultStillTimeout,
	}
}

// Open checks the command is runnable.
func (c *StillCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.Command) == 0 {
		return fmt.Errorf("%w: empty still command", ErrAcquisition)
	}
	if _, err := exec.LookPath(c.Command[0]); err != nil {
		return fmt.Errorf("%w: %v", ErrAcquisition, err)
	}

	c.running = true
	return nil
}

// Close marks the camera closed.
func (c *StillCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// ReadFrame runs the command and loads the resulting photo as grayscale.
func (c *StillCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultStillTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_ = os.Remove(c.Path)

	args := make([]string, len(c.Command))
	for i, a := range c.Command {
		args[i] = strings.ReplaceAll(a, OutPlaceholder, c.Path)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: still command timed out after %v", ErrAcquisition, timeout)
		}
		return nil, fmt.Errorf("%w: still command failed: %v: %s", ErrAcquisition, err, strings.TrimSpace(string(out)))
	}

	mat := gocv.IMRead(c.Path, gocv.IMReadGrayScale)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: cannot decode %s", ErrAcquisition, c.Path)
	}

	return &mat, nil
}

// IsOpen returns true if the camera is open.
func (c *StillCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
