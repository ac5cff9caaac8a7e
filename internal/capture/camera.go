// Package capture reads webcam frames for pose detection.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Capture defaults. 30 FPS feeds a 33 ms sampling interval.
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned by ReadFrame before Open or after Close.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrReadFailed means the device returned no frame.
	ErrReadFailed = errors.New("failed to read frame from camera")

	// ErrEmptyFrame means the device returned a frame with no pixels.
	ErrEmptyFrame = errors.New("captured frame is empty")
)

// Camera is a frame producer the pipeline and the MJPEG stream share.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller closes the Mat.
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// FPSForInterval returns the capture rate that delivers one frame per
// sampling interval, rounded up so the pipeline never starves.
func FPSForInterval(interval time.Duration) int {
	if interval <= 0 {
		return DefaultFPS
	}
	fps := int((time.Second + interval - 1) / interval)
	if fps < 1 {
		fps = 1
	}
	return fps
}

// CameraConfig selects the device and the requested capture format. The
// driver may pick a different size; frames report their real dimensions.
type CameraConfig struct {
	DeviceID int
	Width    int
	Height   int
	FPS      int
}

// webcam is an OpenCV video device. vc is nil while closed.
type webcam struct {
	cfg CameraConfig

	mu sync.Mutex
	vc *gocv.VideoCapture
}

// NewCamera returns a closed camera for deviceID at the default format.
func NewCamera(deviceID int) Camera {
	return NewCameraWithConfig(CameraConfig{DeviceID: deviceID})
}

// NewCameraWithConfig returns a closed camera. Zero fields take defaults.
func NewCameraWithConfig(cfg CameraConfig) Camera {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = DefaultWidth, DefaultHeight
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	return &webcam{cfg: cfg}
}

// Open starts the device. Opening an open camera is a no-op.
func (w *webcam) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.vc != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(w.cfg.DeviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", w.cfg.DeviceID, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(w.cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(w.cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(w.cfg.FPS))

	w.vc = vc
	return nil
}

// Close releases the device. Closing a closed camera is a no-op.
func (w *webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.vc == nil {
		return nil
	}
	err := w.vc.Close()
	w.vc = nil
	return err
}

func (w *webcam) ReadFrame() (*gocv.Mat, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.vc == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	switch {
	case !w.vc.Read(&mat):
		mat.Close()
		return nil, ErrReadFailed
	case mat.Empty():
		mat.Close()
		return nil, ErrEmptyFrame
	}
	return &mat, nil
}

// SetFPS changes the requested rate, applying it to an open device
// immediately. Non-positive values are ignored.
func (w *webcam) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.cfg.FPS = fps
	if w.vc != nil {
		w.vc.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (w *webcam) FPS() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg.FPS
}

func (w *webcam) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.vc != nil
}
