// Package annotations is the viewer-side store of a model's labels and
// question markers. It mirrors the server's records through a backend,
// places markers in normalized model space, and fans out visibility
// changes to whoever renders them.
package annotations

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openanatomy/lab/internal/math3d"
	"github.com/openanatomy/lab/internal/model"
)

// Backend persists annotations. The REST client implements it; tests
// substitute an in-memory fake.
type Backend interface {
	ListLabels(ctx context.Context, modelID string) ([]model.Label, error)
	CreateLabel(ctx context.Context, l *model.Label) (*model.Label, error)
	DeleteLabel(ctx context.Context, id string) error

	ListQuestions(ctx context.Context, modelID string) ([]model.Question, error)
	CreateQuestion(ctx context.Context, q *model.Question) (*model.Question, error)
	UpdateQuestion(ctx context.Context, q *model.Question) (*model.Question, error)
	DeleteQuestion(ctx context.Context, id string) error
}

// Kind discriminates marker types.
type Kind int

const (
	KindLabel Kind = iota
	KindQuestion
)

// Marker is a renderable annotation anchor: where it sits in normalized
// model space and what it shows.
type Marker struct {
	ID       string
	Kind     Kind
	Position math3d.Vector3
	Text     string
}

// VisibilityFunc observes marker visibility changes.
type VisibilityFunc func(m Marker, visible bool)

// Store mirrors one model's annotations.
type Store struct {
	backend Backend
	log     zerolog.Logger

	mu               sync.RWMutex
	modelID          string
	labels           map[string]model.Label
	questions        map[string]model.Question
	labelsVisible    bool
	questionsVisible bool
	hidden           map[string]bool

	subMu   sync.Mutex
	nextSub int
	subs    map[int]VisibilityFunc
}

// NewStore creates an empty store over the given backend. Labels start
// visible and question markers hidden, matching the viewer's default
// (authoring) mode.
func NewStore(backend Backend, log zerolog.Logger) *Store {
	return &Store{
		backend:       backend,
		log:           log,
		labels:        map[string]model.Label{},
		questions:     map[string]model.Question{},
		labelsVisible: true,
		hidden:        map[string]bool{},
		subs:          map[int]VisibilityFunc{},
	}
}

// Load replaces the store's contents with the given model's annotations.
func (s *Store) Load(ctx context.Context, modelID string) error {
	labels, questions, err := s.Fetch(ctx, modelID)
	if err != nil {
		return err
	}
	s.Replace(modelID, labels, questions)
	return nil
}

// Fetch retrieves a model's annotations from the backend without touching
// the store. Callers that race model switches fetch first and Replace only
// once they know their load is still the current one.
func (s *Store) Fetch(ctx context.Context, modelID string) ([]model.Label, []model.Question, error) {
	labels, err := s.backend.ListLabels(ctx, modelID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading labels: %w", err)
	}
	questions, err := s.backend.ListQuestions(ctx, modelID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading questions: %w", err)
	}
	return labels, questions, nil
}

// Replace atomically swaps the store's contents for the given model's
// annotations. Per-marker hides do not carry across models.
func (s *Store) Replace(modelID string, labels []model.Label, questions []model.Question) {
	s.mu.Lock()
	s.modelID = modelID
	s.labels = make(map[string]model.Label, len(labels))
	for _, l := range labels {
		s.labels[l.ID] = l
	}
	s.questions = make(map[string]model.Question, len(questions))
	for _, q := range questions {
		s.questions[q.ID] = q
	}
	s.hidden = map[string]bool{}
	s.mu.Unlock()

	s.log.Debug().Str("modelId", modelID).
		Int("labels", len(labels)).Int("questions", len(questions)).
		Msg("Annotations loaded")
}

// Clear drops all local annotation state, used when the model unloads.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelID = ""
	s.labels = map[string]model.Label{}
	s.questions = map[string]model.Question{}
	s.hidden = map[string]bool{}
}

// ModelID returns the model the store currently mirrors.
func (s *Store) ModelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelID
}

// AddLabel persists a new label at the given surface point and mirrors
// the stored record.
func (s *Store) AddLabel(ctx context.Context, text, color string, pos math3d.Vector3) (*model.Label, error) {
	s.mu.RLock()
	modelID := s.modelID
	s.mu.RUnlock()

	l := &model.Label{ModelID: modelID, Text: text, Color: color}
	l.SetPosition(pos)
	if err := l.Validate(); err != nil {
		return nil, err
	}

	created, err := s.backend.CreateLabel(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("creating label: %w", err)
	}

	s.mu.Lock()
	s.labels[created.ID] = *created
	s.mu.Unlock()
	return created, nil
}

// DeleteLabel removes a label locally and remotely. Deleting an unknown
// label is a no-op.
func (s *Store) DeleteLabel(ctx context.Context, id string) error {
	if err := s.backend.DeleteLabel(ctx, id); err != nil {
		return fmt.Errorf("deleting label: %w", err)
	}
	s.mu.Lock()
	delete(s.labels, id)
	delete(s.hidden, id)
	s.mu.Unlock()
	return nil
}

// AddQuestion persists a new question anchored at the given surface
// point. The question must carry a saved camera view.
func (s *Store) AddQuestion(ctx context.Context, q *model.Question, pos math3d.Vector3) (*model.Question, error) {
	s.mu.RLock()
	q.ModelID = s.modelID
	s.mu.RUnlock()
	q.SetPosition(pos)

	if err := q.ValidateNew(); err != nil {
		return nil, err
	}

	created, err := s.backend.CreateQuestion(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("creating question: %w", err)
	}

	s.mu.Lock()
	s.questions[created.ID] = *created
	s.mu.Unlock()
	return created, nil
}

// UpdateQuestion replaces a question's content and mirrors the stored
// record. A missing camera view inherits the previously saved one.
func (s *Store) UpdateQuestion(ctx context.Context, q *model.Question) (*model.Question, error) {
	updated, err := s.backend.UpdateQuestion(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("updating question: %w", err)
	}
	s.mu.Lock()
	s.questions[updated.ID] = *updated
	s.mu.Unlock()
	return updated, nil
}

// DeleteQuestion removes a question locally and remotely. Deleting an
// unknown question is a no-op.
func (s *Store) DeleteQuestion(ctx context.Context, id string) error {
	if err := s.backend.DeleteQuestion(ctx, id); err != nil {
		return fmt.Errorf("deleting question: %w", err)
	}
	s.mu.Lock()
	delete(s.questions, id)
	delete(s.hidden, id)
	s.mu.Unlock()
	return nil
}

// Labels returns the mirrored labels, oldest first.
func (s *Store) Labels() []model.Label {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Label, 0, len(s.labels))
	for _, l := range s.labels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Questions returns the mirrored questions, oldest first.
func (s *Store) Questions() []model.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Question, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Question returns a mirrored question by id.
func (s *Store) Question(id string) (model.Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	return q, ok
}

// Markers returns every currently visible marker.
func (s *Store) Markers() []Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Marker
	if s.labelsVisible {
		for _, l := range s.labels {
			if !s.hidden[l.ID] {
				out = append(out, labelMarker(l))
			}
		}
	}
	if s.questionsVisible {
		for _, q := range s.questions {
			if !s.hidden[q.ID] {
				out = append(out, questionMarker(q))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LabelsVisible reports whether label markers are shown.
func (s *Store) LabelsVisible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.labelsVisible
}

// ToggleLabels flips label visibility and returns the new state.
func (s *Store) ToggleLabels() bool {
	s.mu.Lock()
	s.labelsVisible = !s.labelsVisible
	visible := s.labelsVisible
	changes := s.labelChangesLocked()
	s.mu.Unlock()

	s.notify(changes)
	return visible
}

// ToggleVisibility flips a single marker's visibility and reports its new
// effective state. A marker stays hidden while its group is hidden even if
// individually shown. Unknown ids report ok=false.
func (s *Store) ToggleVisibility(id string) (visible, ok bool) {
	s.mu.Lock()
	var m Marker
	var group bool
	if l, found := s.labels[id]; found {
		m, group, ok = labelMarker(l), s.labelsVisible, true
	} else if q, found := s.questions[id]; found {
		m, group, ok = questionMarker(q), s.questionsVisible, true
	}
	if !ok {
		s.mu.Unlock()
		return false, false
	}
	s.hidden[id] = !s.hidden[id]
	visible = group && !s.hidden[id]
	s.mu.Unlock()

	s.notify([]markerChange{{m, visible}})
	return visible, true
}

// SetLabelsVisible sets label visibility outright, used by quiz mode to
// hide answers and restore them afterwards.
func (s *Store) SetLabelsVisible(visible bool) {
	s.mu.Lock()
	changed := s.labelsVisible != visible
	s.labelsVisible = visible
	changes := s.labelChangesLocked()
	s.mu.Unlock()

	if changed {
		s.notify(changes)
	}
}

// SetQuestionsVisible sets question marker visibility.
func (s *Store) SetQuestionsVisible(visible bool) {
	s.mu.Lock()
	changed := s.questionsVisible != visible
	s.questionsVisible = visible
	changes := make([]markerChange, 0, len(s.questions))
	for _, q := range s.questions {
		changes = append(changes, markerChange{questionMarker(q), visible && !s.hidden[q.ID]})
	}
	s.mu.Unlock()

	if changed {
		s.notify(changes)
	}
}

// Subscribe registers a visibility observer and returns its remover.
func (s *Store) Subscribe(fn VisibilityFunc) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// markerChange pairs a marker with its effective visibility after a
// group or per-marker flip.
type markerChange struct {
	marker  Marker
	visible bool
}

func (s *Store) labelChangesLocked() []markerChange {
	changes := make([]markerChange, 0, len(s.labels))
	for _, l := range s.labels {
		changes = append(changes, markerChange{labelMarker(l), s.labelsVisible && !s.hidden[l.ID]})
	}
	return changes
}

func (s *Store) notify(changes []markerChange) {
	s.subMu.Lock()
	subs := make([]VisibilityFunc, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		for _, c := range changes {
			fn(c.marker, c.visible)
		}
	}
}

func labelMarker(l model.Label) Marker {
	return Marker{ID: l.ID, Kind: KindLabel, Position: l.Position(), Text: l.Text}
}

func questionMarker(q model.Question) Marker {
	return Marker{ID: q.ID, Kind: KindQuestion, Position: q.Position(), Text: q.Text}
}
