package capture

import (
	"errors"
	"testing"
	"time"
)

func TestNewCamera(t *testing.T) {
	for _, id := range []int{0, 1, 2} {
		cam := NewCamera(id)
		if cam == nil {
			t.Fatalf("NewCamera(%d) returned nil", id)
		}
		if got := cam.FPS(); got != DefaultFPS {
			t.Errorf("NewCamera(%d).FPS() = %d, want %d", id, got, DefaultFPS)
		}
		if cam.IsOpen() {
			t.Errorf("NewCamera(%d) should not be open", id)
		}
	}
}

func TestNewCameraWithConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  CameraConfig
		want CameraConfig
	}{
		{
			name: "zero values take defaults",
			cfg:  CameraConfig{DeviceID: 2},
			want: CameraConfig{DeviceID: 2, Width: DefaultWidth, Height: DefaultHeight, FPS: DefaultFPS},
		},
		{
			name: "explicit format is kept",
			cfg:  CameraConfig{Width: 1280, Height: 720, FPS: 31},
			want: CameraConfig{Width: 1280, Height: 720, FPS: 31},
		},
		{
			name: "half a size is replaced",
			cfg:  CameraConfig{Width: 1280, FPS: 15},
			want: CameraConfig{Width: DefaultWidth, Height: DefaultHeight, FPS: 15},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCameraWithConfig(tt.cfg).(*webcam)
			if cam.cfg != tt.want {
				t.Errorf("config = %+v, want %+v", cam.cfg, tt.want)
			}
			if cam.IsOpen() {
				t.Error("new camera should be closed")
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(0)

	tests := []struct {
		name    string
		fps     int
		wantFPS int
	}{
		{name: "set to 15", fps: 15, wantFPS: 15},
		{name: "set to 30", fps: 30, wantFPS: 30},
		{name: "set to 1", fps: 1, wantFPS: 1},
		{name: "zero keeps previous", fps: 0, wantFPS: 1},
		{name: "negative keeps previous", fps: -5, wantFPS: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam.SetFPS(tt.fps)
			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
		})
	}
}

func TestFPSForInterval(t *testing.T) {
	tests := []struct {
		interval time.Duration
		want     int
	}{
		{33 * time.Millisecond, 31},
		{50 * time.Millisecond, 20},
		{100 * time.Millisecond, 10},
		{2 * time.Second, 1},
		{0, DefaultFPS},
		{-time.Second, DefaultFPS},
	}

	for _, tt := range tests {
		if got := FPSForInterval(tt.interval); got != tt.want {
			t.Errorf("FPSForInterval(%v) = %d, want %d", tt.interval, got, tt.want)
		}
	}
}

func TestCamera_ReadFrame_NotOpened(t *testing.T) {
	cam := NewCamera(0)

	if _, err := cam.ReadFrame(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
}

func TestCamera_Close_NotOpened(t *testing.T) {
	cam := NewCamera(0)

	if err := cam.Close(); err != nil {
		t.Errorf("Close() on unopened camera = %v, want nil", err)
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(0)
	if err := cam.Open(); err != nil {
		t.Skipf("camera not available: %v", err)
	}
	if !cam.IsOpen() {
		t.Error("IsOpen() should be true after Open()")
	}

	mat, err := cam.ReadFrame()
	if err != nil {
		t.Errorf("ReadFrame() error = %v", err)
	} else {
		if mat.Cols() != DefaultWidth || mat.Rows() != DefaultHeight {
			t.Logf("frame is %dx%d; the device may not support %dx%d",
				mat.Cols(), mat.Rows(), DefaultWidth, DefaultHeight)
		}
		mat.Close()
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if cam.IsOpen() {
		t.Error("IsOpen() should be false after Close()")
	}
}
