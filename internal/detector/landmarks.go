// Package detector provides the landmark types produced once per camera frame
// and the adapters that act as a landmark source.
package detector

import (
	"math"
	"time"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Face mesh landmark indices used by the facial gestures.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
const (
	Forehead        = 10
	UpperLip        = 13
	LowerLip        = 14
	LeftEyeOuter    = 33
	LeftBrowTop     = 65
	LeftEyeInner    = 133
	LeftEyeBottom   = 145
	Chin            = 152
	LeftEyeTop      = 159
	RightEyeOuter   = 263
	RightBrowTop    = 295
	RightEyeInner   = 362
	RightEyeBottom  = 374
	RightEyeTop     = 386
	NumFaceMeshBase = 468
	NumFaceMesh     = 478 // with refined iris landmarks
)

// Point3D represents a 3D point in space with x, y, z coordinates.
// X and Y are normalized to the frame size; Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Hand holds the landmarks of one detected hand. Points shorter than
// NumLandmarks means the detector could not place some keypoints.
type Hand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"` // "Left" or "Right"
	Score      float64   `json:"score"`
}

// Point returns the landmark at index i and whether it is present.
func (h *Hand) Point(i int) (Point3D, bool) {
	if h == nil || i < 0 || i >= len(h.Points) {
		return Point3D{}, false
	}
	return h.Points[i], true
}

// Complete reports whether all 21 landmarks are present.
func (h *Hand) Complete() bool {
	return h != nil && len(h.Points) >= NumLandmarks
}

// Normalize returns a copy of the hand translated so the wrist is at the
// origin and scaled so the wrist-to-middle-MCP distance is 1.0. It returns
// nil when the hand is incomplete or the palm is degenerate.
func (h *Hand) Normalize() *Hand {
	if !h.Complete() {
		return nil
	}

	wrist := h.Points[Wrist]
	normalized := &Hand{
		Points:     make([]Point3D, NumLandmarks),
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i] = Point3D{
			X: h.Points[i].X - wrist.X,
			Y: h.Points[i].Y - wrist.Y,
			Z: h.Points[i].Z - wrist.Z,
		}
	}

	m := normalized.Points[MiddleMCP]
	scale := math.Sqrt(m.X*m.X + m.Y*m.Y + m.Z*m.Z)
	if scale < 1e-10 {
		return nil
	}

	for i := range normalized.Points {
		normalized.Points[i].X /= scale
		normalized.Points[i].Y /= scale
		normalized.Points[i].Z /= scale
	}
	return normalized
}

// Face holds face mesh landmarks of one detected face.
type Face struct {
	Points []Point3D `json:"points"`
	Score  float64   `json:"score"`
}

// Point returns the landmark at index i and whether it is present.
func (f *Face) Point(i int) (Point3D, bool) {
	if f == nil || i < 0 || i >= len(f.Points) {
		return Point3D{}, false
	}
	return f.Points[i], true
}

// Has reports whether every listed landmark is present.
func (f *Face) Has(indices ...int) bool {
	for _, i := range indices {
		if _, ok := f.Point(i); !ok {
			return false
		}
	}
	return true
}

// Frame is the landmark set observed in one camera frame: at most one hand
// and at most one face. A nil Hand or Face means nothing was detected.
type Frame struct {
	Index     uint64    `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Hand      *Hand     `json:"hand,omitempty"`
	Face      *Face     `json:"face,omitempty"`

	// Width and Height are the source image size in pixels, zero when unknown.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// HasHand reports whether a hand was detected in this frame.
func (f *Frame) HasHand() bool {
	return f != nil && f.Hand != nil && len(f.Hand.Points) > 0
}

// HasFace reports whether a face was detected in this frame.
func (f *Frame) HasFace() bool {
	return f != nil && f.Face != nil && len(f.Face.Points) > 0
}
