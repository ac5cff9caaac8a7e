package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/asana/internal/capture"
)

func TestStreamHandler_WritesFrames(t *testing.T) {
	mat := gocv.NewMatWithSize(capture.DefaultHeight, capture.DefaultWidth, gocv.MatTypeCV8UC3)
	defer mat.Close()

	cam := capture.NewMockCamera([]*gocv.Mat{&mat}, true)
	cam.Open()
	defer cam.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	NewStreamHandler(cam).ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("Content-Type = %q, want multipart/x-mixed-replace", ct)
	}
	if !strings.Contains(rec.Body.String(), "Content-Type: image/jpeg") {
		t.Error("expected at least one JPEG part")
	}
	if cam.Reads() == 0 {
		t.Error("expected the stream to read camera frames")
	}
}

func TestStreamHandler_ClosedCamera(t *testing.T) {
	cam := capture.NewMockCamera(nil, true)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	NewStreamHandler(cam).ServeHTTP(rec, req)

	if strings.Contains(rec.Body.String(), "--frame") {
		t.Error("closed camera should produce no frames")
	}
}

func TestStreamHandler_MethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/stream", nil)
	rec := httptest.NewRecorder()
	NewStreamHandler(capture.NewMockCamera(nil, false)).ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
