package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestMockCamera_Playback(t *testing.T) {
	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame1, &frame2}, false)

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() before Open error = %v, want ErrCameraNotOpen", err)
	}

	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cam.Close()

	for i := 0; i < 2; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() error = %v", err)
		}
		f.Close()
	}

	// Third read should fail (no loop)
	if _, err := cam.ReadFrame(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("ReadFrame() error = %v, want ErrNoFrame", err)
	}
	if cam.Reads() != 2 {
		t.Errorf("Reads() = %d, want 2", cam.Reads())
	}
}

func TestMockCamera_Loop(t *testing.T) {
	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)
	cam.Open()
	defer cam.Close()

	for i := 0; i < 5; i++ {
		f, err := cam.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() iteration %d error = %v", i, err)
		}
		f.Close()
	}
}

func TestSource_Indices(t *testing.T) {
	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame, &frame, &frame}, false)
	cam.Open()
	defer cam.Close()

	src := NewSource(cam)
	if src.Last() != 0 {
		t.Errorf("Last() before reading = %d, want 0", src.Last())
	}

	var prev *Frame
	for want := uint64(1); want <= 3; want++ {
		f, err := src.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if f.Index != want {
			t.Errorf("Index = %d, want %d", f.Index, want)
		}
		if prev != nil && f.Timestamp.Before(prev.Timestamp) {
			t.Error("timestamps should not go backwards")
		}
		prev = f
		f.Close()
		f.Close()
	}

	// A failed read leaves the index alone.
	if _, err := src.Next(); err == nil {
		t.Fatal("expected error after all frames consumed")
	}
	if src.Last() != 3 {
		t.Errorf("Last() = %d, want 3", src.Last())
	}
}
