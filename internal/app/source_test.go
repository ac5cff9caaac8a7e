package app

import (
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/asana/internal/capture"
	"github.com/ayusman/asana/internal/detector"
)

func newMockSource(t *testing.T) (*CameraSource, *detector.MockDetector) {
	t.Helper()
	mat := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })

	det := detector.NewMockDetector()
	src := NewCameraSource(capture.NewMockCamera([]*gocv.Mat{&mat}, true), det)
	src.now = func() time.Time { return time.UnixMilli(1_000) }
	return src, det
}

func TestCameraSource_NextFrame(t *testing.T) {
	src, det := newMockSource(t)
	det.SetLandmarks(detector.BridgeLandmarks())

	if err := src.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()

	frame, err := src.NextFrame()
	if err != nil {
		t.Fatalf("NextFrame() error = %v", err)
	}
	if !frame.HasSubject() {
		t.Fatal("frame should carry landmarks")
	}
	if frame.TimestampMs != 1000 {
		t.Errorf("TimestampMs = %d, want 1000", frame.TimestampMs)
	}
	if frame.Width != 640 || frame.Height != 480 {
		t.Errorf("size = %dx%d, want 640x480", frame.Width, frame.Height)
	}
}

func TestCameraSource_NoSubject(t *testing.T) {
	src, _ := newMockSource(t)
	src.Open()
	defer src.Close()

	frame, err := src.NextFrame()
	if err != nil {
		t.Fatalf("NextFrame() error = %v", err)
	}
	if frame.HasSubject() {
		t.Error("empty detection should yield a no-subject frame")
	}
	if frame.Width != 640 {
		t.Errorf("Width = %d, want 640", frame.Width)
	}
}

func TestCameraSource_Errors(t *testing.T) {
	src, det := newMockSource(t)

	if _, err := src.NextFrame(); !errors.Is(err, capture.ErrCameraNotOpen) {
		t.Errorf("NextFrame() before Open error = %v, want ErrCameraNotOpen", err)
	}

	src.Open()
	defer src.Close()

	boom := errors.New("detector crashed")
	det.SetError(boom)
	frame, err := src.NextFrame()
	if !errors.Is(err, boom) {
		t.Errorf("NextFrame() error = %v, want %v", err, boom)
	}
	// A failed detection is still stamped so it can count as a bad tick.
	if frame.HasSubject() || frame.TimestampMs != 1000 || frame.Width != 640 {
		t.Errorf("failed frame = %+v, want stamped 640 wide with no subject", frame)
	}
}
