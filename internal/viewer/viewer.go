// Package viewer is the interactive core: it owns the loaded scene,
// the camera, the annotation store and the quiz session, and turns user
// input (clicks, mode switches, quiz actions) into state changes.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openanatomy/lab/internal/annotations"
	"github.com/openanatomy/lab/internal/cache"
	"github.com/openanatomy/lab/internal/choreo"
	"github.com/openanatomy/lab/internal/math3d"
	"github.com/openanatomy/lab/internal/model"
	"github.com/openanatomy/lab/internal/picker"
	"github.com/openanatomy/lab/internal/quiz"
	"github.com/openanatomy/lab/internal/scene"
)

// Mode is the viewer's input mode. Placement modes are mutually
// exclusive; switching to one leaves the other.
type Mode int

const (
	ModeView Mode = iota
	ModePlaceLabel
	ModePlaceQuestion
)

var (
	ErrNoModel         = errors.New("no model loaded")
	ErrNoPendingPoint  = errors.New("no surface point picked yet")
	ErrQuizRunning     = errors.New("not available while a quiz is running")
	ErrStaleLoad       = errors.New("model load superseded by a newer one")
	ErrUnknownQuestion = errors.New("unknown question")
)

// Fetcher retrieves model metadata and assets, implemented by the REST
// client.
type Fetcher interface {
	GetModel(ctx context.Context, id string) (*model.Model, error)
	FetchAsset(ctx context.Context, assetURL string) ([]byte, error)
}

// Viewer drives one embedded viewer instance.
type Viewer struct {
	log     zerolog.Logger
	fetcher Fetcher
	ann     *annotations.Store
	scenes  *cache.SceneCache

	mu         sync.Mutex
	generation int
	modelID    string
	scene      *scene.Scene
	camera     scene.Camera
	anim       *choreo.Animator
	viewport   picker.Viewport
	mode       Mode
	pending    *math3d.Vector3
	quiz       quiz.Session

	// labelsWereVisible remembers the label visibility the quiz replaced.
	labelsWereVisible bool
}

// New creates a viewer with an empty scene and the default camera.
func New(fetcher Fetcher, ann *annotations.Store, log zerolog.Logger) *Viewer {
	v := &Viewer{
		log:      log,
		fetcher:  fetcher,
		ann:      ann,
		scenes:   cache.NewSceneCache(),
		camera:   scene.NewCamera(),
		viewport: picker.Viewport{Width: 1280, Height: 720},
	}
	v.anim = choreo.New(&v.camera)
	return v
}

// SetViewport updates the pixel size used for ray generation and the
// camera aspect.
func (v *Viewer) SetViewport(width, height float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.viewport = picker.Viewport{Width: width, Height: height}
	if height > 0 {
		v.camera.Aspect = width / height
	}
}

// Camera returns a snapshot of the current camera.
func (v *Viewer) Camera() scene.Camera {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.camera
}

// Scene returns the loaded scene, or nil before any load.
func (v *Viewer) Scene() *scene.Scene {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.scene
}

// Mode returns the current input mode.
func (v *Viewer) Mode() Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// ModelID returns the id of the loaded model, empty before any load.
func (v *Viewer) ModelID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.modelID
}

// LoadModel fetches, decodes and normalizes a model, then loads its
// annotations and frames the camera on it. A newer LoadModel call
// started while this one is fetching wins: the older result is
// discarded with ErrStaleLoad.
func (v *Viewer) LoadModel(ctx context.Context, id string) error {
	v.mu.Lock()
	v.generation++
	gen := v.generation
	v.mu.Unlock()

	s, ok := v.scenes.Get(id)
	if !ok {
		meta, err := v.fetcher.GetModel(ctx, id)
		if err != nil {
			return fmt.Errorf("fetching model %s: %w", id, err)
		}
		data, err := v.fetcher.FetchAsset(ctx, meta.AssetURL)
		if err != nil {
			return fmt.Errorf("fetching asset for %s: %w", id, err)
		}
		s, err = scene.LoadGLB(data)
		if err != nil {
			return fmt.Errorf("decoding model %s: %w", id, err)
		}
		s.Normalize()
		v.scenes.Add(id, s)
	}

	// Fetch annotations before committing anything, so a load that loses
	// the race below leaves both the scene and the annotation store
	// untouched.
	labels, questions, err := v.ann.Fetch(ctx, id)
	if err != nil {
		return err
	}

	v.mu.Lock()
	if gen != v.generation {
		v.mu.Unlock()
		v.log.Debug().Str("modelId", id).Msg("Discarding stale model load")
		return ErrStaleLoad
	}

	v.modelID = id
	v.scene = s
	v.mode = ModeView
	v.pending = nil
	v.quiz.Exit()
	v.ann.Replace(id, labels, questions)

	// Snap straight to the fit framing on load; flights are for
	// subsequent navigation.
	pos, tgt := choreo.FitFraming(s)
	v.camera.Position = pos
	v.camera.Target = tgt
	v.mu.Unlock()

	v.log.Info().Str("modelId", id).Int("meshes", len(s.Meshes)).Msg("Model loaded")
	return nil
}

// SetMode switches the input mode. Placement modes are unavailable
// while a quiz runs; switching modes clears any pending pick.
func (v *Viewer) SetMode(m Mode) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.quiz.Running() && m != ModeView {
		return ErrQuizRunning
	}
	v.mode = m
	v.pending = nil
	return nil
}

// HandleClick resolves a viewport click against the model surface. In a
// placement mode a hit becomes the pending anchor point; in view mode
// the hit is just reported.
func (v *Viewer) HandleClick(px, py float32) (picker.Hit, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	hit, ok := picker.PickPixel(v.scene, v.camera, v.viewport, px, py)
	if !ok {
		return picker.Hit{}, false
	}
	if v.mode == ModePlaceLabel || v.mode == ModePlaceQuestion {
		p := hit.Point
		v.pending = &p
	}
	return hit, true
}

// PendingPoint returns the picked anchor awaiting confirmation.
func (v *Viewer) PendingPoint() (math3d.Vector3, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending == nil {
		return math3d.Vector3{}, false
	}
	return *v.pending, true
}

// CaptureView snapshots the current camera as a saveable view.
func (v *Viewer) CaptureView() model.CameraView {
	v.mu.Lock()
	defer v.mu.Unlock()
	return model.CameraView{
		Position: model.FromVector3(v.camera.Position),
		Target:   model.FromVector3(v.camera.Target),
	}
}

// ConfirmLabel persists a label at the pending point and returns to
// view mode.
func (v *Viewer) ConfirmLabel(ctx context.Context, text, color string) (*model.Label, error) {
	v.mu.Lock()
	if v.scene == nil {
		v.mu.Unlock()
		return nil, ErrNoModel
	}
	if v.pending == nil || v.mode != ModePlaceLabel {
		v.mu.Unlock()
		return nil, ErrNoPendingPoint
	}
	pos := *v.pending
	v.mu.Unlock()

	l, err := v.ann.AddLabel(ctx, text, color, pos)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.mode = ModeView
	v.pending = nil
	v.mu.Unlock()
	return l, nil
}

// ConfirmQuestion persists a question at the pending point and returns
// to view mode. A question without a saved view gets the current camera
// framing.
func (v *Viewer) ConfirmQuestion(ctx context.Context, q *model.Question) (*model.Question, error) {
	v.mu.Lock()
	if v.scene == nil {
		v.mu.Unlock()
		return nil, ErrNoModel
	}
	if v.pending == nil || v.mode != ModePlaceQuestion {
		v.mu.Unlock()
		return nil, ErrNoPendingPoint
	}
	pos := *v.pending
	if q.View() == nil {
		view := model.CameraView{
			Position: model.FromVector3(v.camera.Position),
			Target:   model.FromVector3(v.camera.Target),
		}
		q.SetView(&view)
	}
	v.mu.Unlock()

	created, err := v.ann.AddQuestion(ctx, q, pos)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.mode = ModeView
	v.pending = nil
	v.mu.Unlock()
	return created, nil
}

// ResetView flies the camera back to the fit-all framing.
func (v *Viewer) ResetView() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.scene == nil {
		return ErrNoModel
	}
	return v.anim.ResetToFit(v.scene)
}

// FlyToQuestion flies to a question's saved view, or backs off from its
// anchor point when no view was saved.
func (v *Viewer) FlyToQuestion(q model.Question) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.flyToQuestionLocked(q)
}

func (v *Viewer) flyToQuestionLocked(q model.Question) error {
	if view := q.View(); view != nil {
		return v.anim.FlyToView(*view)
	}
	center := math3d.Vector3{}
	if v.scene != nil {
		center = v.scene.Bounds().Center()
	}
	return v.anim.FlyToPoint(q.Position(), center)
}

// Frame advances the camera animation one step. It reports whether a
// flight is still running.
func (v *Viewer) Frame() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.anim.Step()
}

//////////
// Quiz //
//////////

// QuizRunning reports whether a quiz is in progress.
func (v *Viewer) QuizRunning() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.quiz.Running()
}

// StartQuiz begins a quiz over the loaded model's questions: labels
// hide so they cannot give answers away, question markers show, and the
// camera flies to the first question.
func (v *Viewer) StartQuiz() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.scene == nil {
		return ErrNoModel
	}

	questions := v.ann.Questions()
	if err := v.quiz.Start(questions); err != nil {
		return err
	}

	v.mode = ModeView
	v.pending = nil
	v.labelsWereVisible = v.ann.LabelsVisible()
	v.ann.SetLabelsVisible(false)
	v.ann.SetQuestionsVisible(true)

	if err := v.flyToQuestionLocked(questions[0]); err != nil && !errors.Is(err, choreo.ErrAnimationInFlight) {
		return err
	}
	return nil
}

// CurrentQuestion returns the question the learner is on.
func (v *Viewer) CurrentQuestion() (model.Question, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.quiz.Current()
}

// NavigateQuiz moves to the question at the given index and flies the
// camera to it. A dropped flight (one already running) does not block
// navigation.
func (v *Viewer) NavigateQuiz(idx int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.quiz.Navigate(idx); err != nil {
		return err
	}
	q, err := v.quiz.Current()
	if err != nil {
		return err
	}
	if err := v.flyToQuestionLocked(q); err != nil && !errors.Is(err, choreo.ErrAnimationInFlight) {
		return err
	}
	return nil
}

// AnswerCurrent records the answer to the current question and returns
// whether it was correct.
func (v *Viewer) AnswerCurrent(a quiz.Answer) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.quiz.Answer(a)
}

// SubmitQuiz grades the run, ends the quiz, and restores the authoring
// view: labels back on, question markers hidden, camera reset to fit.
func (v *Viewer) SubmitQuiz() (*quiz.Results, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	res, err := v.quiz.Submit()
	if err != nil {
		return nil, err
	}
	v.restoreAfterQuizLocked()
	return res, nil
}

// ExitQuiz abandons the quiz and restores the authoring view.
func (v *Viewer) ExitQuiz() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.quiz.Running() {
		return
	}
	v.quiz.Exit()
	v.restoreAfterQuizLocked()
}

func (v *Viewer) restoreAfterQuizLocked() {
	v.ann.SetLabelsVisible(v.labelsWereVisible)
	v.ann.SetQuestionsVisible(false)
	if v.scene != nil {
		if err := v.anim.ResetToFit(v.scene); err != nil && !errors.Is(err, choreo.ErrAnimationInFlight) {
			v.log.Warn().Err(err).Msg("Failed to reset camera after quiz")
		}
	}
}

// PreviewQuestion opens a read-only preview of one stored question and
// flies the camera to it.
func (v *Viewer) PreviewQuestion(id string) (*quiz.Preview, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.quiz.Running() {
		return nil, ErrQuizRunning
	}
	q, ok := v.ann.Question(id)
	if !ok {
		return nil, ErrUnknownQuestion
	}
	if err := v.flyToQuestionLocked(q); err != nil && !errors.Is(err, choreo.ErrAnimationInFlight) {
		return nil, err
	}
	return quiz.NewPreview(q), nil
}
