package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/ayusman/asana/internal/app"
	"github.com/ayusman/asana/internal/pose"
)

// Controller is the part of app.App the exercise endpoints drive.
type Controller interface {
	Current() app.Exercise
	Start(ctx context.Context, pose string) (app.Exercise, error)
	Stop(ctx context.Context) (app.Exercise, error)
	Reset(ctx context.Context) (app.Exercise, error)
}

// ExerciseHandler starts, stops and resets the active exercise.
type ExerciseHandler struct {
	app Controller
}

// NewExerciseHandler creates an ExerciseHandler for c.
func NewExerciseHandler(c Controller) *ExerciseHandler {
	return &ExerciseHandler{app: c}
}

type startRequest struct {
	Pose string `json:"pose"`
}

// ServeHTTP routes /api/exercise and /api/exercise/reset.
func (h *ExerciseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathSegments(r.URL.Path, "/api/exercise")

	switch {
	case len(parts) == 0:
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, h.app.Current())
		case http.MethodPost:
			h.start(w, r)
		case http.MethodDelete:
			h.respond(w)(h.app.Stop(r.Context()))
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case len(parts) == 1 && parts[0] == "reset":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.respond(w)(h.app.Reset(r.Context()))
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// start handles POST /api/exercise. An empty body restarts the current pose.
func (h *ExerciseHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.respond(w)(h.app.Start(r.Context(), req.Pose))
}

func (h *ExerciseHandler) respond(w http.ResponseWriter) func(app.Exercise, error) {
	return func(ex app.Exercise, err error) {
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, ex)
		case errors.Is(err, pose.ErrUnknownPose):
			writeError(w, http.StatusNotFound, "pose not found")
		case errors.Is(err, app.ErrNotRunning):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, app.ErrStopped):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	}
}
