package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// Queued frames are returned in order; once the queue is drained the
// fixed frame set with SetFrame is returned.
type MockDetector struct {
	mu    sync.Mutex
	queue []Frame
	frame Frame
	err   error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFrame sets the landmarks returned once the queue is empty.
func (m *MockDetector) SetFrame(f Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame = f
}

// Queue appends frames returned by subsequent Detect calls.
func (m *MockDetector) Queue(frames ...Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, frames...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the next queued frame, the fixed frame, or the configured error.
func (m *MockDetector) Detect(frame *gocv.Mat) (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return Frame{}, m.err
	}
	if len(m.queue) > 0 {
		f := m.queue[0]
		m.queue = m.queue[1:]
		return f, nil
	}
	return m.frame, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// FistHand returns a hand with all four fingers curled and the thumb raised.
func FistHand() Hand {
	points := make([]Point3D, NumLandmarks)

	points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.0}
	points[ThumbMCP] = Point3D{X: 0.58, Y: 0.65, Z: 0.0}
	points[ThumbIP] = Point3D{X: 0.58, Y: 0.50, Z: 0.0}
	points[ThumbTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	points[IndexMCP] = Point3D{X: 0.55, Y: 0.70, Z: -0.02}
	points[IndexPIP] = Point3D{X: 0.55, Y: 0.68, Z: -0.05}
	points[IndexDIP] = Point3D{X: 0.52, Y: 0.70, Z: -0.04}
	points[IndexTip] = Point3D{X: 0.50, Y: 0.72, Z: -0.02}

	points[MiddleMCP] = Point3D{X: 0.50, Y: 0.68, Z: -0.02}
	points[MiddlePIP] = Point3D{X: 0.50, Y: 0.66, Z: -0.05}
	points[MiddleDIP] = Point3D{X: 0.47, Y: 0.68, Z: -0.04}
	points[MiddleTip] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}

	points[RingMCP] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}
	points[RingPIP] = Point3D{X: 0.45, Y: 0.68, Z: -0.05}
	points[RingDIP] = Point3D{X: 0.42, Y: 0.70, Z: -0.04}
	points[RingTip] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}

	points[PinkyMCP] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}
	points[PinkyPIP] = Point3D{X: 0.40, Y: 0.70, Z: -0.05}
	points[PinkyDIP] = Point3D{X: 0.37, Y: 0.72, Z: -0.04}
	points[PinkyTip] = Point3D{X: 0.35, Y: 0.74, Z: -0.02}

	return Hand{Points: points, Handedness: "Right", Score: 0.95}
}

// PointingHand returns a fist with only the index finger extended upward
// and the thumb tucked across the curled fingers.
func PointingHand() Hand {
	h := FistHand()
	h.Points[ThumbIP] = Point3D{X: 0.56, Y: 0.62, Z: 0.0}
	h.Points[ThumbTip] = Point3D{X: 0.52, Y: 0.64, Z: 0.0}
	h.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	h.Points[IndexPIP] = Point3D{X: 0.56, Y: 0.55, Z: 0.0}
	h.Points[IndexDIP] = Point3D{X: 0.565, Y: 0.45, Z: 0.0}
	h.Points[IndexTip] = Point3D{X: 0.57, Y: 0.36, Z: 0.0}
	return h
}

// PinchingHand returns PointingHand with the thumb tip raised to touch the
// index fingertip.
func PinchingHand() Hand {
	h := PointingHand()
	h.Points[ThumbIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	h.Points[ThumbTip] = Point3D{X: 0.575, Y: 0.37, Z: 0.0}
	return h
}

// PointingHandAt returns PointingHand translated so the index tip is at (x, y).
func PointingHandAt(x, y float64) Hand {
	h := PointingHand()
	dx := x - h.Points[IndexTip].X
	dy := y - h.Points[IndexTip].Y
	for i := range h.Points {
		h.Points[i].X += dx
		h.Points[i].Y += dy
	}
	return h
}

// OpenPalmHand returns a hand with all fingers extended outward.
func OpenPalmHand() Hand {
	points := make([]Point3D, NumLandmarks)

	points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	points[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	points[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	points[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return Hand{Points: points, Handedness: "Right", Score: 0.95}
}

// FaceShape describes a synthetic face. MouthGap and BrowGap are fractions
// of the forehead-to-chin height; eye aspects are lid gap over eye width.
type FaceShape struct {
	MouthGap       float64
	BrowGap        float64
	LeftEyeAspect  float64
	RightEyeAspect float64
}

// NeutralShape is a relaxed face: closed mouth, resting brows, open eyes.
var NeutralShape = FaceShape{
	MouthGap:       0.05,
	BrowGap:        0.10,
	LeftEyeAspect:  0.30,
	RightEyeAspect: 0.30,
}

// Synthetic face geometry in normalized frame coordinates.
const (
	faceTop    = 0.2
	faceHeight = 0.5
	eyeWidth   = 0.06
	eyeLine    = 0.4
)

// FaceWith builds a face mesh carrying the requested shape. Landmarks the
// facial gestures do not use are left at the origin.
func FaceWith(s FaceShape) Face {
	points := make([]Point3D, NumFaceMesh)

	points[Forehead] = Point3D{X: 0.5, Y: faceTop}
	points[Chin] = Point3D{X: 0.5, Y: faceTop + faceHeight}

	lipY := faceTop + 0.8*faceHeight
	points[UpperLip] = Point3D{X: 0.5, Y: lipY}
	points[LowerLip] = Point3D{X: 0.5, Y: lipY + s.MouthGap*faceHeight}

	placeEye := func(outer, inner, top, bottom, brow int, outerX, innerX, aspect float64) {
		centerX := (outerX + innerX) / 2
		points[outer] = Point3D{X: outerX, Y: eyeLine}
		points[inner] = Point3D{X: innerX, Y: eyeLine}
		points[top] = Point3D{X: centerX, Y: eyeLine - aspect*eyeWidth/2}
		points[bottom] = Point3D{X: centerX, Y: eyeLine + aspect*eyeWidth/2}
		points[brow] = Point3D{X: centerX, Y: points[top].Y - s.BrowGap*faceHeight}
	}
	placeEye(LeftEyeOuter, LeftEyeInner, LeftEyeTop, LeftEyeBottom, LeftBrowTop, 0.37, 0.43, s.LeftEyeAspect)
	placeEye(RightEyeOuter, RightEyeInner, RightEyeTop, RightEyeBottom, RightBrowTop, 0.63, 0.57, s.RightEyeAspect)

	return Face{Points: points, Score: 0.9}
}

// NeutralFace returns FaceWith(NeutralShape).
func NeutralFace() Face {
	return FaceWith(NeutralShape)
}
