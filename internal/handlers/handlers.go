// Package handlers exposes the REST surface of the lab server: model
// upload and CRUD, label and question CRUD, the embed page, live
// websocket subscriptions, and static asset serving.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/openanatomy/lab/internal/live"
	"github.com/openanatomy/lab/internal/metrics"
	"github.com/openanatomy/lab/internal/model"
	"github.com/openanatomy/lab/internal/store"
)

// Config holds the handler settings derived from server configuration.
type Config struct {
	AssetsDir      string
	MaxUploadBytes int64
	AuthEnabled    bool
	// Users maps username to password for basic auth on mutating routes.
	Users map[string]string
}

// Server bundles the dependencies of all HTTP handlers.
type Server struct {
	cfg     Config
	store   *store.Store
	hub     *live.Hub
	metrics metrics.Recorder
	log     zerolog.Logger
}

// New creates a handler server.
func New(cfg Config, st *store.Store, hub *live.Hub, rec metrics.Recorder, log zerolog.Logger) *Server {
	return &Server{cfg: cfg, store: st, hub: hub, metrics: rec, log: log}
}

// Router builds the route table. The optional instrumentation middleware
// wraps every route.
func (s *Server) Router(inst *metrics.HTTPInstrumentation) *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api.HandleFunc("/models", s.handleListModels).Methods(http.MethodGet)
	api.Handle("/models", s.requireAuth(s.handleUploadModel)).Methods(http.MethodPost)
	api.HandleFunc("/models/{id}", s.handleGetModel).Methods(http.MethodGet)
	api.Handle("/models/{id}", s.requireAuth(s.handleUpdateModel)).Methods(http.MethodPut)
	api.Handle("/models/{id}", s.requireAuth(s.handleDeleteModel)).Methods(http.MethodDelete)

	api.HandleFunc("/models/{id}/labels", s.handleListLabels).Methods(http.MethodGet)
	api.Handle("/models/{id}/labels", s.requireAuth(s.handleCreateLabel)).Methods(http.MethodPost)
	api.Handle("/labels/{id}", s.requireAuth(s.handleDeleteLabel)).Methods(http.MethodDelete)

	api.HandleFunc("/models/{id}/questions", s.handleListQuestions).Methods(http.MethodGet)
	api.Handle("/models/{id}/questions", s.requireAuth(s.handleCreateQuestion)).Methods(http.MethodPost)
	api.HandleFunc("/questions/{id}", s.handleGetQuestion).Methods(http.MethodGet)
	api.Handle("/questions/{id}", s.requireAuth(s.handleUpdateQuestion)).Methods(http.MethodPut)
	api.Handle("/questions/{id}", s.requireAuth(s.handleDeleteQuestion)).Methods(http.MethodDelete)

	r.HandleFunc("/embed/{id}", s.handleEmbed).Methods(http.MethodGet)
	r.HandleFunc("/ws/models/{id}", s.handleSubscribe).Methods(http.MethodGet)

	r.PathPrefix("/models/").Handler(
		http.StripPrefix("/models/", http.FileServer(http.Dir(s.cfg.AssetsDir))))

	if inst != nil {
		r.Use(inst.Middleware)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "labserver"})
}

////////////
// Models //
////////////

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.store.ListModels(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models)
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.GetModel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleUploadModel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		s.writeStatusError(w, http.StatusBadRequest, fmt.Errorf("parsing upload: %w", err))
		return
	}

	file, header, err := r.FormFile("model")
	if err != nil {
		s.writeStatusError(w, http.StatusBadRequest, errors.New("no file uploaded"))
		return
	}
	defer file.Close()

	if !isGLB(header.Filename, header.Header.Get("Content-Type")) {
		s.writeStatusError(w, http.StatusBadRequest, errors.New("only GLB files are allowed"))
		return
	}

	filename := fmt.Sprintf("%s-%s", uuid.NewString(), filepath.Base(header.Filename))
	diskPath := filepath.Join(s.cfg.AssetsDir, filename)

	dst, err := os.Create(diskPath)
	if err != nil {
		s.writeError(w, fmt.Errorf("storing asset: %w", err))
		return
	}
	size, err := io.Copy(dst, file)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(diskPath)
		s.writeError(w, fmt.Errorf("storing asset: %w", err))
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}
	m := &model.Model{
		Name:        name,
		Description: r.FormValue("description"),
		AssetURL:    "/models/" + filename,
	}
	if err := s.store.CreateModel(r.Context(), m); err != nil {
		os.Remove(diskPath)
		s.writeError(w, err)
		return
	}

	s.metrics.RecordEvent("model_uploaded",
		map[string]string{"modelId": m.ID},
		map[string]interface{}{"bytes": size})
	s.writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatusError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	m, err := s.store.UpdateModel(r.Context(), mux.Vars(r)["id"], req.Name, req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	m, err := s.store.DeleteModel(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if name := strings.TrimPrefix(m.AssetURL, "/models/"); name != "" && name != m.AssetURL {
		if err := os.Remove(filepath.Join(s.cfg.AssetsDir, name)); err != nil && !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("modelId", id).Msg("Failed to remove asset file")
		}
	}

	s.hub.Broadcast(live.Event{Type: live.EventModelDeleted, ModelID: id})
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Model deleted successfully"})
}

////////////
// Labels //
////////////

func (s *Server) handleListLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := s.store.ListLabels(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, labels)
}

func (s *Server) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	var l model.Label
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		s.writeStatusError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	l.ID = ""
	l.ModelID = mux.Vars(r)["id"]

	if err := s.store.CreateLabel(r.Context(), &l); err != nil {
		s.writeError(w, err)
		return
	}

	s.hub.Broadcast(live.Event{Type: live.EventLabelCreated, ModelID: l.ModelID, Payload: &l})
	s.metrics.RecordEvent("label_created",
		map[string]string{"modelId": l.ModelID},
		map[string]interface{}{"count": 1})
	s.writeJSON(w, http.StatusCreated, &l)
}

func (s *Server) handleDeleteLabel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.DeleteLabel(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.Broadcast(live.Event{Type: live.EventLabelDeleted, Payload: id})
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Label deleted successfully"})
}

///////////////
// Questions //
///////////////

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.store.ListQuestions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, questions)
}

func (s *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := s.store.GetQuestion(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var q model.Question
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.writeStatusError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	q.ID = ""
	q.ModelID = mux.Vars(r)["id"]
	if q.Type == "" {
		q.Type = model.QuestionMCQ
	}

	if err := s.store.CreateQuestion(r.Context(), &q); err != nil {
		s.writeError(w, err)
		return
	}

	s.hub.Broadcast(live.Event{Type: live.EventQuestionCreated, ModelID: q.ModelID, Payload: &q})
	s.metrics.RecordEvent("question_created",
		map[string]string{"modelId": q.ModelID, "type": string(q.Type)},
		map[string]interface{}{"count": 1})
	s.writeJSON(w, http.StatusCreated, &q)
}

func (s *Server) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	var q model.Question
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.writeStatusError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	q.ID = mux.Vars(r)["id"]
	if q.Type == "" {
		q.Type = model.QuestionMCQ
	}

	updated, err := s.store.UpdateQuestion(r.Context(), &q)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.hub.Broadcast(live.Event{Type: live.EventQuestionUpdated, ModelID: updated.ModelID, Payload: updated})
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.DeleteQuestion(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.Broadcast(live.Event{Type: live.EventQuestionDeleted, Payload: id})
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Question deleted successfully"})
}

//////////
// Live //
//////////

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	s.hub.Serve(w, r, mux.Vars(r)["id"])
}

/////////////
// Helpers //
/////////////

func isGLB(filename, contentType string) bool {
	return contentType == "model/gltf-binary" ||
		strings.EqualFold(filepath.Ext(filename), ".glb")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps domain errors onto status codes: unknown entities are
// 404, validation failures 400, everything else 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case isValidationError(err):
		status = http.StatusBadRequest
	}
	s.writeStatusError(w, status, err)
}

func (s *Server) writeStatusError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func isValidationError(err error) bool {
	for _, v := range []error{
		model.ErrNoPrompt,
		model.ErrTooFewOptions,
		model.ErrBadCorrectIndex,
		model.ErrNoCorrectAnswer,
		model.ErrMissingCameraView,
		model.ErrNoLabelText,
		model.ErrBadQuestionType,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
