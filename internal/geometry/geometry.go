// Package geometry provides the distance, angle and ratio helpers the gesture
// classifiers build on. Ratios are normalized by a reference distance so they
// do not change as the user moves toward or away from the camera.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayusman/madhubani/internal/detector"
)

// ErrInvalidGeometry is returned when a referenced landmark is absent or a
// reference distance is degenerate. Callers are expected to check landmark
// presence first, so this indicates a broken precondition.
var ErrInvalidGeometry = errors.New("invalid geometry")

// minReference is the smallest reference distance accepted for normalization.
const minReference = 1e-9

// PointSet is a collection of landmarks addressed by index.
type PointSet interface {
	Point(i int) (detector.Point3D, bool)
}

// Distance returns the Euclidean distance between two 3D points.
func Distance(a, b detector.Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Distance2D returns the distance between the image-plane projections of a and b.
func Distance2D(a, b detector.Point3D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b detector.Point3D) detector.Point3D {
	return detector.Point3D{
		X: (a.X + b.X) / 2,
		Y: (a.Y + b.Y) / 2,
		Z: (a.Z + b.Z) / 2,
	}
}

// Angle returns the angle in radians at vertex between the rays to a and b,
// in the image plane. A zero-length ray yields 0.
func Angle(vertex, a, b detector.Point3D) float64 {
	ax, ay := a.X-vertex.X, a.Y-vertex.Y
	bx, by := b.X-vertex.X, b.Y-vertex.Y
	na := math.Hypot(ax, ay)
	nb := math.Hypot(bx, by)
	if na < minReference || nb < minReference {
		return 0
	}
	cos := (ax*bx + ay*by) / (na * nb)
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}

// NamedDistance returns the image-plane distance between landmarks a and b.
func NamedDistance(set PointSet, a, b int) (float64, error) {
	pa, ok := set.Point(a)
	if !ok {
		return 0, fmt.Errorf("landmark %d: %w", a, ErrInvalidGeometry)
	}
	pb, ok := set.Point(b)
	if !ok {
		return 0, fmt.Errorf("landmark %d: %w", b, ErrInvalidGeometry)
	}
	return Distance2D(pa, pb), nil
}

// NamedDistance3D is NamedDistance including depth.
func NamedDistance3D(set PointSet, a, b int) (float64, error) {
	pa, ok := set.Point(a)
	if !ok {
		return 0, fmt.Errorf("landmark %d: %w", a, ErrInvalidGeometry)
	}
	pb, ok := set.Point(b)
	if !ok {
		return 0, fmt.Errorf("landmark %d: %w", b, ErrInvalidGeometry)
	}
	return Distance(pa, pb), nil
}

// Ratio divides num by den, failing when den is degenerate.
func Ratio(num, den float64) (float64, error) {
	if den < minReference {
		return 0, fmt.Errorf("reference distance %g: %w", den, ErrInvalidGeometry)
	}
	return num / den, nil
}

// Normalized returns dist(a, b) / dist(refA, refB).
func Normalized(set PointSet, a, b, refA, refB int) (float64, error) {
	d, err := NamedDistance(set, a, b)
	if err != nil {
		return 0, err
	}
	ref, err := NamedDistance(set, refA, refB)
	if err != nil {
		return 0, err
	}
	return Ratio(d, ref)
}
