package calibration

import (
	"github.com/ayusman/madhubani/internal/detector"
	"github.com/ayusman/madhubani/internal/geometry"
)

// faceLandmarks lists every face mesh landmark Measure reads.
var faceLandmarks = []int{
	detector.Forehead, detector.Chin,
	detector.UpperLip, detector.LowerLip,
	detector.LeftBrowTop, detector.LeftEyeTop, detector.LeftEyeBottom,
	detector.LeftEyeOuter, detector.LeftEyeInner,
	detector.RightBrowTop, detector.RightEyeTop, detector.RightEyeBottom,
	detector.RightEyeOuter, detector.RightEyeInner,
}

// Measurement holds the facial distances of one frame. Gaps are fractions of
// the forehead-to-chin height; eye aspects are lid gap over eye width.
type Measurement struct {
	MouthGap       float64 `json:"mouth_gap"`
	BrowGap        float64 `json:"brow_gap"`
	LeftEyeAspect  float64 `json:"left_eye_aspect"`
	RightEyeAspect float64 `json:"right_eye_aspect"`
}

// EyeAspect returns the mean aspect ratio of both eyes.
func (m Measurement) EyeAspect() float64 {
	return (m.LeftEyeAspect + m.RightEyeAspect) / 2
}

// Measure extracts a Measurement from a face. It returns false when any
// required landmark is missing or the face is degenerate.
func Measure(face *detector.Face) (Measurement, bool) {
	if face == nil || !face.Has(faceLandmarks...) {
		return Measurement{}, false
	}

	var m Measurement
	var err error

	if m.MouthGap, err = geometry.Normalized(face, detector.UpperLip, detector.LowerLip, detector.Forehead, detector.Chin); err != nil {
		return Measurement{}, false
	}

	left, err := geometry.Normalized(face, detector.LeftBrowTop, detector.LeftEyeTop, detector.Forehead, detector.Chin)
	if err != nil {
		return Measurement{}, false
	}
	right, err := geometry.Normalized(face, detector.RightBrowTop, detector.RightEyeTop, detector.Forehead, detector.Chin)
	if err != nil {
		return Measurement{}, false
	}
	m.BrowGap = (left + right) / 2

	if m.LeftEyeAspect, err = geometry.Normalized(face, detector.LeftEyeTop, detector.LeftEyeBottom, detector.LeftEyeOuter, detector.LeftEyeInner); err != nil {
		return Measurement{}, false
	}
	if m.RightEyeAspect, err = geometry.Normalized(face, detector.RightEyeTop, detector.RightEyeBottom, detector.RightEyeOuter, detector.RightEyeInner); err != nil {
		return Measurement{}, false
	}

	return m, true
}
