package detector

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

// DebugSink receives the intermediate image of each pipeline stage.
// Implementations must not keep a reference to img after Emit returns.
type DebugSink interface {
	Emit(stage int, img gocv.Mat)
}

// DirSink writes each stage as <Stem>_step<stage>.jpg under Dir.
// Files are overwritten on every frame.
type DirSink struct {
	Dir  string
	Stem string
}

// NewDirSink creates the debug directory and returns a sink writing into it.
func NewDirSink(dir, stem string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create debug directory: %w", err)
	}
	return &DirSink{Dir: dir, Stem: stem}, nil
}

// Emit implements DebugSink.
func (s *DirSink) Emit(stage int, img gocv.Mat) {
	name := filepath.Join(s.Dir, fmt.Sprintf("%s_step%d.jpg", s.Stem, stage))
	if ok := gocv.IMWrite(name, img); !ok {
		log.Printf("debug: imwrite %s failed", name)
	}
}

// MultiSink fans a stage image out to several sinks.
type MultiSink []DebugSink

// Emit implements DebugSink.
func (m MultiSink) Emit(stage int, img gocv.Mat) {
	for _, s := range m {
		s.Emit(stage, img)
	}
}
