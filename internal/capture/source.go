package capture

import (
	"time"

	"gocv.io/x/gocv"
)

// Frame is a captured image stamped with its capture order.
type Frame struct {
	Mat       *gocv.Mat
	Index     uint64
	Timestamp time.Time
}

// Close releases the image.
func (f *Frame) Close() {
	if f != nil && f.Mat != nil {
		f.Mat.Close()
		f.Mat = nil
	}
}

// Source reads frames from a Camera and numbers them. Indices start at 1
// and increase by one per successful read, so a gap in the indices seen
// downstream is always a dropped frame.
type Source struct {
	cam  Camera
	last uint64
	now  func() time.Time
}

// NewSource wraps cam.
func NewSource(cam Camera) *Source {
	return &Source{cam: cam, now: time.Now}
}

// Camera returns the wrapped camera.
func (s *Source) Camera() Camera { return s.cam }

// Next reads the next frame. Failed reads do not consume an index.
func (s *Source) Next() (*Frame, error) {
	mat, err := s.cam.ReadFrame()
	if err != nil {
		return nil, err
	}
	s.last++
	return &Frame{Mat: mat, Index: s.last, Timestamp: s.now()}, nil
}

// Last returns the index of the most recent frame, 0 before the first.
func (s *Source) Last() uint64 { return s.last }
