package app

import (
	"fmt"
	"time"

	"github.com/ayusman/asana/internal/capture"
	"github.com/ayusman/asana/internal/detector"
)

// FrameSource yields landmark frames for the pipeline.
type FrameSource interface {
	Open() error
	// NextFrame returns the next frame. A frame without landmarks means
	// nobody is in view. With an error the frame may still carry the
	// capture time and size; the pipeline counts it as nobody in view.
	NextFrame() (detector.Frame, error)
	Close() error
}

// CameraSource reads camera frames and runs them through a detector.
type CameraSource struct {
	camera   capture.Camera
	detector detector.Detector
	now      func() time.Time

	// Size of the last frame read, for stamping failed reads.
	width, height int
}

// NewCameraSource creates a FrameSource backed by cam and det.
func NewCameraSource(cam capture.Camera, det detector.Detector) *CameraSource {
	return &CameraSource{camera: cam, detector: det, now: time.Now}
}

// Open opens the camera.
func (s *CameraSource) Open() error {
	return s.camera.Open()
}

// Close closes the camera. The detector stays open for the next exercise.
func (s *CameraSource) Close() error {
	return s.camera.Close()
}

// NextFrame captures and detects one frame stamped with the capture time.
// On failure it returns an empty frame stamped with the current time.
func (s *CameraSource) NextFrame() (detector.Frame, error) {
	mat, err := s.camera.ReadFrame()
	if err != nil {
		return detector.NoSubject(s.now().UnixMilli(), s.width, s.height), fmt.Errorf("read frame: %w", err)
	}
	defer mat.Close()

	ts := s.now().UnixMilli()
	width, height := mat.Cols(), mat.Rows()
	s.width, s.height = width, height

	landmarks, err := s.detector.Detect(mat)
	if err != nil {
		return detector.NoSubject(ts, width, height), fmt.Errorf("detect: %w", err)
	}
	if len(landmarks) < detector.NumLandmarks {
		return detector.NoSubject(ts, width, height), nil
	}

	return detector.Frame{
		Landmarks:   landmarks,
		TimestampMs: ts,
		Width:       width,
		Height:      height,
	}, nil
}
