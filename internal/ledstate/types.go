// Package ledstate holds the per-frame LED classification types and the
// position-based state classifier. It has no OpenCV dependency so the
// classification rules can be exercised without image data.
package ledstate

import "fmt"

// Centroid is a blob centre in ROI pixel coordinates.
type Centroid struct {
	X float64
	Y float64
}

// Component is one connected blob of the thresholded confidence map.
type Component struct {
	Centroid Centroid
	Area     int
}

// ComponentSet is the segmentation result for one cropped frame.
// Components[0] is always the background component.
type ComponentSet struct {
	Width      int
	Height     int
	Components []Component
}

// Foreground returns the candidate lit LEDs, i.e. every component but the background.
func (s ComponentSet) Foreground() []Component {
	if len(s.Components) <= 1 {
		return nil
	}
	return s.Components[1:]
}

// Kind identifies the outcome of classifying a single frame.
type Kind int

const (
	// NoLed means no lit LED was found in the region of interest.
	NoLed Kind = iota
	// SingleLed means exactly one lit LED was found and mapped to a state.
	SingleLed
	// Ambiguous means several blobs were found, the blob could not be
	// binned, or the frame could not be processed at all.
	Ambiguous
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case NoLed:
		return "no_led"
	case SingleLed:
		return "single_led"
	case Ambiguous:
		return "ambiguous"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "no_led":
		return NoLed, nil
	case "single_led":
		return SingleLed, nil
	case "ambiguous":
		return Ambiguous, nil
	}
	return Ambiguous, fmt.Errorf("unknown classification kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Classification is the result of one tick.
type Classification struct {
	Kind Kind `json:"kind"`
	// State is the gap-derived state index. Only meaningful for SingleLed.
	State int `json:"state"`
	// Count is the number of non-background components.
	Count int `json:"count"`
	// X is the centroid x coordinate in ROI pixels, XN the same value
	// normalised by the ROI width. Set whenever Count == 1.
	X  float64 `json:"x"`
	XN float64 `json:"xn"`
}

// NoLedDetected returns the classification for an empty frame.
func NoLedDetected() Classification {
	return Classification{Kind: NoLed}
}

// Single returns a SingleLed classification.
func Single(state int, x, xn float64) Classification {
	return Classification{Kind: SingleLed, State: state, Count: 1, X: x, XN: xn}
}

// AmbiguousCount returns an Ambiguous classification for count blobs.
func AmbiguousCount(count int) Classification {
	return Classification{Kind: Ambiguous, Count: count}
}

func (c Classification) String() string {
	switch c.Kind {
	case NoLed:
		return "no leds detected"
	case SingleLed:
		return fmt.Sprintf("state %d (%f,%f)", c.State, c.X, c.XN)
	default:
		return fmt.Sprintf("%d leds detected", c.Count)
	}
}
