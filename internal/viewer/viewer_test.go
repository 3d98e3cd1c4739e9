package viewer

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openanatomy/lab/internal/annotations"
	"github.com/openanatomy/lab/internal/model"
	"github.com/openanatomy/lab/internal/quiz"
)

// quadGLB encodes a single quad facing +Z, centered at the origin with a
// 4-unit extent, as a binary glTF asset.
func quadGLB(t *testing.T) []byte {
	t.Helper()
	doc := gltf.NewDocument()

	pos := modeler.WritePosition(doc, [][3]float32{
		{-2, -2, 0}, {2, -2, 0}, {2, 2, 0}, {-2, 2, 0},
	})
	idx := modeler.WriteIndices(doc, []uint32{0, 1, 2, 0, 2, 3})

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Primitives: []*gltf.Primitive{{
			Attributes: map[string]int{gltf.POSITION: pos},
			Indices:    gltf.Index(idx),
		}},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{Mesh: gltf.Index(0)})
	doc.Scenes = []*gltf.Scene{{Nodes: []int{0}}}
	doc.Scene = gltf.Index(0)

	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	require.NoError(t, enc.Encode(doc))
	return buf.Bytes()
}

// fakeFetcher serves models and assets from memory. The optional
// onFetch hook runs before an asset is returned, letting tests
// interleave loads.
type fakeFetcher struct {
	glb        []byte
	assetCalls int
	onFetch    func(id string)
}

func (f *fakeFetcher) GetModel(_ context.Context, id string) (*model.Model, error) {
	return &model.Model{ID: id, Name: "Test", AssetURL: "/models/" + id + ".glb"}, nil
}

func (f *fakeFetcher) FetchAsset(_ context.Context, assetURL string) ([]byte, error) {
	f.assetCalls++
	if f.onFetch != nil {
		hook := f.onFetch
		f.onFetch = nil
		hook(assetURL)
	}
	return f.glb, nil
}

// fakeBackend is the in-memory annotation backend. The optional
// onListLabels hook runs before a label listing returns, letting tests
// interleave loads with slow annotation fetches.
type fakeBackend struct {
	labels       map[string]model.Label
	questions    map[string]model.Question
	nextID       int
	onListLabels func(modelID string)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		labels:    map[string]model.Label{},
		questions: map[string]model.Question{},
	}
}

func (f *fakeBackend) id() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeBackend) ListLabels(_ context.Context, modelID string) ([]model.Label, error) {
	if f.onListLabels != nil {
		f.onListLabels(modelID)
	}
	var out []model.Label
	for _, l := range f.labels {
		if l.ModelID == modelID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeBackend) CreateLabel(_ context.Context, l *model.Label) (*model.Label, error) {
	created := *l
	created.ID = f.id()
	f.labels[created.ID] = created
	return &created, nil
}

func (f *fakeBackend) DeleteLabel(_ context.Context, id string) error {
	delete(f.labels, id)
	return nil
}

func (f *fakeBackend) ListQuestions(_ context.Context, modelID string) ([]model.Question, error) {
	var out []model.Question
	for _, q := range f.questions {
		if q.ModelID == modelID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeBackend) CreateQuestion(_ context.Context, q *model.Question) (*model.Question, error) {
	created := *q
	created.ID = f.id()
	f.questions[created.ID] = created
	return &created, nil
}

func (f *fakeBackend) UpdateQuestion(_ context.Context, q *model.Question) (*model.Question, error) {
	f.questions[q.ID] = *q
	return q, nil
}

func (f *fakeBackend) DeleteQuestion(_ context.Context, id string) error {
	delete(f.questions, id)
	return nil
}

func newTestViewer(t *testing.T) (*Viewer, *fakeFetcher, *fakeBackend) {
	t.Helper()
	fetcher := &fakeFetcher{glb: quadGLB(t)}
	backend := newFakeBackend()
	ann := annotations.NewStore(backend, zerolog.Nop())
	return New(fetcher, ann, zerolog.Nop()), fetcher, backend
}

func loadedViewer(t *testing.T) (*Viewer, *fakeBackend) {
	t.Helper()
	v, _, backend := newTestViewer(t)
	require.NoError(t, v.LoadModel(context.Background(), "m1"))
	return v, backend
}

func TestLoadModel_FramesScene(t *testing.T) {
	v, _ := loadedViewer(t)

	s := v.Scene()
	require.NotNil(t, s)
	assert.InDelta(t, 5, s.Bounds().MaxDim(), 1e-3)

	// Fit framing: eye at twice the max dimension, looking at the center.
	cam := v.Camera()
	assert.InDelta(t, 10, cam.Position.X, 1e-3)
	assert.InDelta(t, 6, cam.Position.Y, 1e-3)
	assert.InDelta(t, 0, cam.Target.X, 1e-3)
}

func TestLoadModel_SecondLoadHitsCache(t *testing.T) {
	v, fetcher, _ := newTestViewer(t)

	require.NoError(t, v.LoadModel(context.Background(), "m1"))
	require.NoError(t, v.LoadModel(context.Background(), "m2"))
	assert.Equal(t, 2, fetcher.assetCalls)

	// Switching back decodes nothing.
	require.NoError(t, v.LoadModel(context.Background(), "m1"))
	assert.Equal(t, 2, fetcher.assetCalls)
}

func TestLoadModel_StaleLoadDiscarded(t *testing.T) {
	v, fetcher, _ := newTestViewer(t)

	// While m1's asset is in flight, a load of m2 starts and finishes.
	var innerErr error
	fetcher.onFetch = func(string) {
		innerErr = v.LoadModel(context.Background(), "m2")
	}

	err := v.LoadModel(context.Background(), "m1")
	assert.ErrorIs(t, err, ErrStaleLoad)
	require.NoError(t, innerErr)
	assert.NotNil(t, v.Scene())
}

func TestLoadModel_StaleAnnotationFetchDiscarded(t *testing.T) {
	v, _, backend := newTestViewer(t)
	ctx := context.Background()

	_, err := backend.CreateLabel(ctx, &model.Label{ModelID: "m2", Text: "Clavicle"})
	require.NoError(t, err)

	// m1's annotation fetch stalls until a full load of m2 completes.
	var innerErr error
	backend.onListLabels = func(modelID string) {
		if modelID == "m1" {
			innerErr = v.LoadModel(ctx, "m2")
		}
	}

	err = v.LoadModel(ctx, "m1")
	assert.ErrorIs(t, err, ErrStaleLoad)
	require.NoError(t, innerErr)

	// m2's annotations survive the losing load.
	assert.Equal(t, "m2", v.ModelID())
	assert.Equal(t, "m2", v.ann.ModelID())
	assert.Len(t, v.ann.Labels(), 1)
}

func TestPlaceLabelFlow(t *testing.T) {
	v, backend := loadedViewer(t)
	v.SetViewport(800, 800)

	require.NoError(t, v.SetMode(ModePlaceLabel))

	// Center click hits the quad dead on.
	_, ok := v.HandleClick(400, 400)
	require.True(t, ok)
	pending, ok := v.PendingPoint()
	require.True(t, ok)
	assert.InDelta(t, 0, pending.X, 1e-3)

	l, err := v.ConfirmLabel(context.Background(), "Sternum", "#fff")
	require.NoError(t, err)
	assert.NotEmpty(t, l.ID)
	assert.Len(t, backend.labels, 1)

	// Placement mode ends after confirming.
	assert.Equal(t, ModeView, v.Mode())
	_, ok = v.PendingPoint()
	assert.False(t, ok)
}

func TestConfirmLabel_RequiresPick(t *testing.T) {
	v, _ := loadedViewer(t)
	require.NoError(t, v.SetMode(ModePlaceLabel))

	_, err := v.ConfirmLabel(context.Background(), "Sternum", "")
	assert.ErrorIs(t, err, ErrNoPendingPoint)
}

func TestHandleClick_MissLeavesNoPending(t *testing.T) {
	v, _ := loadedViewer(t)
	v.SetViewport(800, 800)
	require.NoError(t, v.SetMode(ModePlaceLabel))

	// Top-left corner ray misses the centered quad.
	_, ok := v.HandleClick(1, 1)
	assert.False(t, ok)
	_, ok = v.PendingPoint()
	assert.False(t, ok)
}

func TestConfirmQuestion_InheritsCurrentCamera(t *testing.T) {
	v, backend := loadedViewer(t)
	v.SetViewport(800, 800)
	require.NoError(t, v.SetMode(ModePlaceQuestion))
	_, ok := v.HandleClick(400, 400)
	require.True(t, ok)

	q := &model.Question{
		Text:          "Name this bone",
		Type:          model.QuestionMCQ,
		CorrectAnswer: "0",
	}
	require.NoError(t, q.SetOptionList([]string{"Femur", "Tibia"}))

	created, err := v.ConfirmQuestion(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, created.View())

	cam := v.Camera()
	assert.InDelta(t, cam.Position.X, created.CameraPosition.X, 1e-4)
	assert.Len(t, backend.questions, 1)
}

func seedQuestion(t *testing.T, v *Viewer, text string, correct string) *model.Question {
	t.Helper()
	v.SetViewport(800, 800)
	require.NoError(t, v.SetMode(ModePlaceQuestion))
	_, ok := v.HandleClick(400, 400)
	require.True(t, ok)

	q := &model.Question{Text: text, Type: model.QuestionMCQ, CorrectAnswer: correct}
	require.NoError(t, q.SetOptionList([]string{"Femur", "Tibia"}))
	created, err := v.ConfirmQuestion(context.Background(), q)
	require.NoError(t, err)
	return created
}

func TestQuizLifecycle(t *testing.T) {
	v, _ := loadedViewer(t)
	seedQuestion(t, v, "Q1", "0")
	seedQuestion(t, v, "Q2", "1")

	ann := v.ann
	require.True(t, ann.LabelsVisible())

	require.NoError(t, v.StartQuiz())
	require.True(t, v.QuizRunning())

	// Quiz mode hides labels and shows question markers.
	assert.False(t, ann.LabelsVisible())

	// Placement is locked while the quiz runs.
	assert.ErrorIs(t, v.SetMode(ModePlaceLabel), ErrQuizRunning)

	correct, err := v.AnswerCurrent(quiz.Answer{Selection: 0})
	require.NoError(t, err)
	assert.True(t, correct)

	require.NoError(t, v.NavigateQuiz(1))
	correct, err = v.AnswerCurrent(quiz.Answer{Selection: 0})
	require.NoError(t, err)
	assert.False(t, correct)

	res, err := v.SubmitQuiz()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 50, res.Percentage)

	// Authoring view restored.
	assert.False(t, v.QuizRunning())
	assert.True(t, ann.LabelsVisible())
}

func TestQuiz_RequiresQuestions(t *testing.T) {
	v, _ := loadedViewer(t)
	assert.ErrorIs(t, v.StartQuiz(), quiz.ErrNoQuestions)
}

func TestExitQuiz_Restores(t *testing.T) {
	v, _ := loadedViewer(t)
	seedQuestion(t, v, "Q1", "0")

	require.NoError(t, v.StartQuiz())
	v.ExitQuiz()

	assert.False(t, v.QuizRunning())
	assert.True(t, v.ann.LabelsVisible())

	// Exiting again is harmless.
	v.ExitQuiz()
}

func TestQuiz_RestoresPreQuizLabelVisibility(t *testing.T) {
	v, _ := loadedViewer(t)
	seedQuestion(t, v, "Q1", "0")

	// Labels were already toggled off before the quiz started.
	v.ann.SetLabelsVisible(false)

	require.NoError(t, v.StartQuiz())
	v.ExitQuiz()
	assert.False(t, v.ann.LabelsVisible())
}

func TestPreviewQuestion(t *testing.T) {
	v, _ := loadedViewer(t)
	created := seedQuestion(t, v, "Q1", "1")

	p, err := v.PreviewQuestion(created.ID)
	require.NoError(t, err)

	answer, err := p.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "Tibia", answer)

	_, err = v.PreviewQuestion("nope")
	assert.ErrorIs(t, err, ErrUnknownQuestion)
}
