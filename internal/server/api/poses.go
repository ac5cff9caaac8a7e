package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/asana/internal/pose"
	"github.com/ayusman/asana/internal/rules"
	"github.com/ayusman/asana/internal/store"
)

// RulePublisher pushes a rule document to other running instances.
type RulePublisher interface {
	Publish(ctx context.Context, pose string, fields map[string]float64) error
}

// PoseHandler serves the pose catalog and its live rule documents.
type PoseHandler struct {
	registry  *rules.Registry
	store     *store.Store
	publisher RulePublisher
	logger    *logrus.Logger
}

// NewPoseHandler creates a PoseHandler. store and publisher may be nil.
func NewPoseHandler(registry *rules.Registry, s *store.Store, publisher RulePublisher, logger *logrus.Logger) *PoseHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PoseHandler{registry: registry, store: s, publisher: publisher, logger: logger}
}

type poseResponse struct {
	Name  string             `json:"name"`
	Title string             `json:"title"`
	Rules map[string]float64 `json:"rules"`
}

type listPosesResponse struct {
	Poses []poseResponse `json:"poses"`
}

type rulesResponse struct {
	Pose     string             `json:"pose"`
	Rules    map[string]float64 `json:"rules"`
	Changed  bool               `json:"changed"`
	Rejected []string           `json:"rejected,omitempty"`
}

// ServeHTTP routes /api/poses, /api/poses/{pose} and /api/poses/{pose}/rules.
func (h *PoseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathSegments(r.URL.Path, "/api/poses")

	switch {
	case len(parts) == 0:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.list(w)
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.get(w, parts[0])
	case len(parts) == 2 && parts[1] == "rules":
		switch r.Method {
		case http.MethodGet:
			h.getRules(w, parts[0])
		case http.MethodPut:
			h.putRules(w, r, parts[0])
		case http.MethodDelete:
			h.deleteRules(w, parts[0])
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *PoseHandler) describe(def *pose.Definition) (poseResponse, error) {
	rs, err := h.registry.Current(def.Name)
	if err != nil {
		return poseResponse{}, err
	}
	return poseResponse{Name: def.Name, Title: def.Title, Rules: rs.Fields()}, nil
}

// list handles GET /api/poses.
func (h *PoseHandler) list(w http.ResponseWriter) {
	resp := listPosesResponse{Poses: []poseResponse{}}
	for _, def := range pose.Catalog() {
		p, err := h.describe(def)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read rules")
			return
		}
		resp.Poses = append(resp.Poses, p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// get handles GET /api/poses/{pose}.
func (h *PoseHandler) get(w http.ResponseWriter, name string) {
	def, err := pose.Lookup(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "pose not found")
		return
	}
	p, err := h.describe(def)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read rules")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// getRules handles GET /api/poses/{pose}/rules.
func (h *PoseHandler) getRules(w http.ResponseWriter, name string) {
	rs, err := h.registry.Current(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "pose not found")
		return
	}
	writeJSON(w, http.StatusOK, rulesResponse{Pose: name, Rules: rs.Fields()})
}

// putRules handles PUT /api/poses/{pose}/rules. The document is merged over
// the live rules, persisted and forwarded to the publisher. A document with
// any rejected field is refused as a whole.
func (h *PoseHandler) putRules(w http.ResponseWriter, r *http.Request, name string) {
	current, err := h.registry.Current(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "pose not found")
		return
	}

	var fields map[string]float64
	if err := decodeJSON(w, r, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "empty rule document")
		return
	}

	if _, rejected := current.Merge(fields); len(rejected) > 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid rule fields", Rejected: rejected})
		return
	}

	u, err := h.registry.Apply(name, fields, rules.SourceAPI)
	if err != nil {
		if errors.Is(err, pose.ErrInvalidRuleSet) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to apply rules")
		return
	}

	if h.store != nil {
		if err := h.store.Rules().Set(name, fields); err != nil {
			h.logger.WithError(err).WithField("pose", name).Error("Failed to persist rules")
			writeError(w, http.StatusInternalServerError, "failed to persist rules")
			return
		}
	}

	if h.publisher != nil {
		if err := h.publisher.Publish(r.Context(), name, fields); err != nil {
			h.logger.WithError(err).WithField("pose", name).Warn("Failed to publish rules")
		}
	}

	writeJSON(w, http.StatusOK, rulesResponse{Pose: name, Rules: u.Rules.Fields(), Changed: u.Changed})
}

// deleteRules handles DELETE /api/poses/{pose}/rules and restores the
// built-in defaults.
func (h *PoseHandler) deleteRules(w http.ResponseWriter, name string) {
	if _, err := pose.Lookup(name); err != nil {
		writeError(w, http.StatusNotFound, "pose not found")
		return
	}

	if h.store != nil {
		if err := h.store.Rules().Delete(name); err != nil && !errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, "failed to delete rules")
			return
		}
	}

	u, err := h.registry.Replace(name, nil, rules.SourceAPI)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to restore defaults")
		return
	}
	writeJSON(w, http.StatusOK, rulesResponse{Pose: name, Rules: u.Rules.Fields(), Changed: u.Changed})
}
