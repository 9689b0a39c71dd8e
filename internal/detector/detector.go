package detector

import "gocv.io/x/gocv"

// Detector defines the interface for landmark source implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the hand and face landmarks
	// found in it. Index and Timestamp are left for the caller to fill.
	Detect(frame *gocv.Mat) (Frame, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for landmark detection.
type Config struct {
	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// RefineLandmarks enables the iris landmarks of the face mesh.
	RefineLandmarks bool
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinConfidence:   0.7,
		MinTrackingConf: 0.7,
		RefineLandmarks: true,
	}
}
