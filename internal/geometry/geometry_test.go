package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/ayusman/madhubani/internal/detector"
)

const epsilon = 1e-9

type points []detector.Point3D

func (p points) Point(i int) (detector.Point3D, bool) {
	if i < 0 || i >= len(p) {
		return detector.Point3D{}, false
	}
	return p[i], true
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name   string
		a, b   detector.Point3D
		want   float64
		want2D float64
	}{
		{name: "same point", want: 0, want2D: 0},
		{name: "3-4-5 triangle", b: detector.Point3D{X: 3, Y: 4}, want: 5, want2D: 5},
		{name: "depth only", b: detector.Point3D{Z: 2}, want: 2, want2D: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); math.Abs(got-tt.want) > epsilon {
				t.Errorf("Distance() = %f, want %f", got, tt.want)
			}
			if got := Distance2D(tt.a, tt.b); math.Abs(got-tt.want2D) > epsilon {
				t.Errorf("Distance2D() = %f, want %f", got, tt.want2D)
			}
		})
	}
}

func TestAngle(t *testing.T) {
	origin := detector.Point3D{}
	right := detector.Point3D{X: 1}
	up := detector.Point3D{Y: 1}

	if got := Angle(origin, right, up); math.Abs(got-math.Pi/2) > epsilon {
		t.Errorf("Angle() = %f, want pi/2", got)
	}
	if got := Angle(origin, right, right); math.Abs(got) > epsilon {
		t.Errorf("Angle() of parallel rays = %f, want 0", got)
	}
	if got := Angle(origin, origin, up); got != 0 {
		t.Errorf("Angle() with zero-length ray = %f, want 0", got)
	}
}

func TestMidpoint(t *testing.T) {
	got := Midpoint(detector.Point3D{X: 0, Y: 2, Z: 4}, detector.Point3D{X: 2, Y: 4, Z: 0})
	want := detector.Point3D{X: 1, Y: 3, Z: 2}
	if got != want {
		t.Errorf("Midpoint() = %+v, want %+v", got, want)
	}
}

func TestNormalized_ScaleInvariant(t *testing.T) {
	near := points{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: 0}, {X: 4, Y: 0}}
	far := points{{X: 0, Y: 0}, {X: 0, Y: 0.25}, {X: 0, Y: 0}, {X: 1, Y: 0}}

	a, err := Normalized(near, 0, 1, 2, 3)
	if err != nil {
		t.Fatalf("Normalized(near) error = %v", err)
	}
	b, err := Normalized(far, 0, 1, 2, 3)
	if err != nil {
		t.Fatalf("Normalized(far) error = %v", err)
	}
	if math.Abs(a-b) > epsilon || math.Abs(a-0.25) > epsilon {
		t.Errorf("Normalized() near=%f far=%f, want both 0.25", a, b)
	}
}

func TestNamedDistance_MissingLandmark(t *testing.T) {
	set := points{{X: 0}, {X: 1}}

	if _, err := NamedDistance(set, 0, 5); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("NamedDistance() error = %v, want ErrInvalidGeometry", err)
	}
	if _, err := NamedDistance3D(set, 7, 1); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("NamedDistance3D() error = %v, want ErrInvalidGeometry", err)
	}
	if _, err := Normalized(set, 0, 1, 0, 9); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("Normalized() error = %v, want ErrInvalidGeometry", err)
	}
}

func TestRatio_DegenerateReference(t *testing.T) {
	if _, err := Ratio(1, 0); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("Ratio(1, 0) error = %v, want ErrInvalidGeometry", err)
	}
	got, err := Ratio(3, 2)
	if err != nil {
		t.Fatalf("Ratio(3, 2) error = %v", err)
	}
	if got != 1.5 {
		t.Errorf("Ratio(3, 2) = %f, want 1.5", got)
	}
}

func TestFaceImplementsPointSet(t *testing.T) {
	face := detector.NeutralFace()
	hand := detector.PointingHand()

	var _ PointSet = &face
	var _ PointSet = &hand

	d, err := NamedDistance(&face, detector.Forehead, detector.Chin)
	if err != nil {
		t.Fatalf("NamedDistance() error = %v", err)
	}
	if math.Abs(d-0.5) > epsilon {
		t.Errorf("face height = %f, want 0.5", d)
	}
}
