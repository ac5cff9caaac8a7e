package server

import (
	"fmt"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/asana/internal/capture"
)

const (
	// streamInterval paces the MJPEG preview at roughly 15 FPS.
	streamInterval = 66 * time.Millisecond
	// idleRetry is the wait before polling a closed or failing camera again.
	idleRetry = 250 * time.Millisecond
)

// StreamHandler serves MJPEG frames from the camera while an exercise has it
// open.
type StreamHandler struct {
	camera capture.Camera
}

// NewStreamHandler creates a new StreamHandler with the given camera.
func NewStreamHandler(camera capture.Camera) *StreamHandler {
	return &StreamHandler{camera: camera}
}

// ServeHTTP streams MJPEG frames until the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		wait := streamInterval
		if err := h.writeFrame(w); err != nil {
			wait = idleRetry
		}

		select {
		case <-r.Context().Done():
			return
		case <-time.After(wait):
		}
	}
}

func (h *StreamHandler) writeFrame(w http.ResponseWriter) error {
	if !h.camera.IsOpen() {
		return capture.ErrCameraNotOpen
	}

	frame, err := h.camera.ReadFrame()
	if err != nil {
		return err
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	frame.Close()
	if err != nil {
		return err
	}
	defer buf.Close()

	fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", buf.Len())
	w.Write(buf.GetBytes())
	fmt.Fprintf(w, "\r\n")

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
