package capture

import (
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// DirCamera replays the photos of a directory in lexical order.
// EXIF orientation is applied on load.
type DirCamera struct {
	dir   string
	loop  bool
	files []string
	index int

	mu      sync.Mutex
	running bool
}

// NewDirCamera creates a replay source over dir.
func NewDirCamera(dir string, loop bool) *DirCamera {
	return &DirCamera{dir: dir, loop: loop}
}

// Open lists the photos of the directory.
func (c *DirCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("%w: failed to read replay dir: %v", ErrAcquisition, err)
	}

	c.files = c.files[:0]
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			c.files = append(c.files, filepath.Join(c.dir, e.Name()))
		}
	}
	sort.Strings(c.files)

	if len(c.files) == 0 {
		return fmt.Errorf("%w: no images in %s", ErrAcquisition, c.dir)
	}

	c.index = 0
	c.running = true
	return nil
}

// Close marks the source closed.
func (c *DirCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	return nil
}

// Files returns the photos found by Open.
func (c *DirCamera) Files() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.files...)
}

// ReadFrame loads the next photo as a grayscale Mat.
func (c *DirCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, ErrCameraNotOpen
	}

	if c.index >= len(c.files) {
		if !c.loop {
			return nil, ErrNoMoreFrames
		}
		c.index = 0
	}

	path := c.files[c.index]
	c.index++

	return LoadGray(path)
}

// LoadGray decodes an image file, applies its EXIF orientation and
// returns it as an 8-bit single channel Mat.
func LoadGray(path string) (*gocv.Mat, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}

	gray, ok := img.(*image.Gray)
	if !ok {
		b := img.Bounds()
		gray = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	}

	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	return &mat, nil
}
