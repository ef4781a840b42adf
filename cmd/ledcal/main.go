package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"strconv"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/ledwatch/internal/calib"
	"github.com/ayusman/ledwatch/internal/capture"
)

func main() {
	var (
		imagePath = flag.String("image", "", "reference photo of the panel")
		leds      = flag.String("leds", "", `LED positions as "x,y;x,y;..." in photo pixels`)
		ending    = flag.Int("ending", 0, "state index that means the cycle ended")
		border    = flag.Float64("border", calib.DefaultBorderFactor, "ROI margin factor")
		out       = flag.String("out", "leds.json", "calibration file to write")
		overlay   = flag.String("overlay", "", "optional image showing the LEDs and the ROI")
	)
	flag.Parse()

	if err := run(*imagePath, *leds, *ending, *border, *out, *overlay); err != nil {
		log.Fatalf("Calibration failed: %v", err)
	}
}

func run(imagePath, leds string, ending int, border float64, out, overlay string) error {
	if imagePath == "" {
		return errors.New("-image is required")
	}
	points, err := parseLEDs(leds)
	if err != nil {
		return err
	}

	img, err := capture.LoadGray(imagePath)
	if err != nil {
		return err
	}
	defer img.Close()

	cal, err := calib.Build(img.Cols(), img.Rows(), points, ending, border)
	if err != nil {
		return err
	}
	if err := cal.Save(out); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", out)
	fmt.Printf("LED radius: %d\n", cal.LEDRadius)
	fmt.Printf("Number of LEDs: %d\n", cal.NumLEDs())
	fmt.Printf("ROI: x %d..%d, y %d..%d\n", cal.ROI.XMin, cal.ROI.XMax, cal.ROI.YMin, cal.ROI.YMax)

	if overlay != "" {
		if err := writeOverlay(*img, cal, overlay); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", overlay)
	}
	return nil
}

// parseLEDs parses "x,y;x,y;...".
func parseLEDs(s string) ([]image.Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("-leds is required")
	}

	var points []image.Point
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		xs, ys, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("invalid led %q: want x,y", pair)
		}
		x, err := strconv.Atoi(strings.TrimSpace(xs))
		if err != nil {
			return nil, fmt.Errorf("invalid led %q: %w", pair, err)
		}
		y, err := strconv.Atoi(strings.TrimSpace(ys))
		if err != nil {
			return nil, fmt.Errorf("invalid led %q: %w", pair, err)
		}
		points = append(points, image.Pt(x, y))
	}
	return points, nil
}

// writeOverlay draws the LED markers and the ROI on a colour copy of img.
func writeOverlay(img gocv.Mat, cal *calib.Calibration, path string) error {
	canvas := gocv.NewMat()
	defer canvas.Close()
	if err := gocv.CvtColor(img, &canvas, gocv.ColorGrayToBGR); err != nil {
		return fmt.Errorf("failed to prepare overlay: %w", err)
	}

	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	for _, p := range cal.LEDs {
		if err := gocv.Circle(&canvas, p, cal.LEDRadius, red, -1); err != nil {
			return fmt.Errorf("failed to mark led %v: %w", p, err)
		}
	}
	if err := gocv.Rectangle(&canvas, cal.ROI.Rect(), green, max(1, cal.LEDRadius/2)); err != nil {
		return fmt.Errorf("failed to draw roi: %w", err)
	}

	if ok := gocv.IMWrite(path, canvas); !ok {
		return fmt.Errorf("failed to write overlay %s", path)
	}
	return nil
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: ledcal -image photo.jpg -leds \"x,y;x,y;...\" [-ending k] [-out leds.json]\n")
		flag.PrintDefaults()
	}
}
