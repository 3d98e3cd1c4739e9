package store

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openanatomy/lab/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.DatabaseModels...))
	return New(db, zerolog.Nop())
}

func createTestModel(t *testing.T, s *Store) *model.Model {
	t.Helper()
	m := &model.Model{
		Name:     "Left Forearm",
		AssetURL: "/models/forearm.glb",
	}
	require.NoError(t, s.CreateModel(context.Background(), m))
	return m
}

func TestCreateGetModel(t *testing.T) {
	s := newTestStore(t)
	m := createTestModel(t, s)
	require.NotEmpty(t, m.ID)

	got, err := s.GetModel(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Left Forearm", got.Name)
	assert.Equal(t, "/models/forearm.glb", got.AssetURL)
}

func TestCreateModel_RequiresName(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateModel(context.Background(), &model.Model{Name: "  "})
	assert.Error(t, err)
}

func TestGetModel_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetModel(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateModel(t *testing.T) {
	s := newTestStore(t)
	m := createTestModel(t, s)

	updated, err := s.UpdateModel(context.Background(), m.ID, "Right Forearm", "flipped")
	require.NoError(t, err)
	assert.Equal(t, "Right Forearm", updated.Name)
	assert.Equal(t, "flipped", updated.Description)
}

func TestDeleteModel_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := createTestModel(t, s)

	label := &model.Label{ModelID: m.ID, Text: "Radius", Color: "#ff0000", X: 1, Y: 2, Z: 3}
	require.NoError(t, s.CreateLabel(ctx, label))

	q := validQuestion(t, m.ID)
	require.NoError(t, s.CreateQuestion(ctx, q))

	deleted, err := s.DeleteModel(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, deleted.ID)

	labels, err := s.ListLabels(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, labels)

	questions, err := s.ListQuestions(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, questions)

	_, err = s.GetModel(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListModels_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older := &model.Model{Name: "older", AssetURL: "/models/a.glb"}
	require.NoError(t, s.CreateModel(ctx, older))
	newer := &model.Model{Name: "newer", AssetURL: "/models/b.glb"}
	require.NoError(t, s.CreateModel(ctx, newer))
	// force distinct timestamps regardless of clock resolution
	require.NoError(t, s.db.Model(older).Update("created_at", older.CreatedAt.Add(-time.Second)).Error)

	models, err := s.ListModels(ctx)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "newer", models[0].Name)
}

func TestCreateLabel_UnknownModel(t *testing.T) {
	s := newTestStore(t)
	l := &model.Label{ModelID: "missing", Text: "Ulna", Color: "#00ff00"}
	assert.ErrorIs(t, s.CreateLabel(context.Background(), l), ErrNotFound)
}

func TestDeleteLabel_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := createTestModel(t, s)

	l := &model.Label{ModelID: m.ID, Text: "Ulna", Color: "#00ff00"}
	require.NoError(t, s.CreateLabel(ctx, l))

	require.NoError(t, s.DeleteLabel(ctx, l.ID))
	// double delete and unknown id are both no-ops
	require.NoError(t, s.DeleteLabel(ctx, l.ID))
	require.NoError(t, s.DeleteLabel(ctx, "never-existed"))
}

func validQuestion(t *testing.T, modelID string) *model.Question {
	t.Helper()
	q := &model.Question{
		ModelID:       modelID,
		Text:          "Which bone is highlighted?",
		Type:          model.QuestionMCQ,
		CorrectAnswer: "1",
		X:             0.5, Y: 1.5, Z: -0.25,
	}
	require.NoError(t, q.SetOptionList([]string{"Ulna", "Radius", "Humerus"}))
	q.SetView(&model.CameraView{
		Position: model.Vec3{X: 4, Y: 2, Z: 4},
		Target:   model.Vec3{X: 0.5, Y: 1.5, Z: -0.25},
	})
	return q
}

func TestCreateQuestion_RequiresCameraView(t *testing.T) {
	s := newTestStore(t)
	m := createTestModel(t, s)

	q := validQuestion(t, m.ID)
	q.SetView(nil)
	assert.ErrorIs(t, s.CreateQuestion(context.Background(), q), model.ErrMissingCameraView)
}

func TestQuestionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := createTestModel(t, s)

	q := validQuestion(t, m.ID)
	require.NoError(t, s.CreateQuestion(ctx, q))

	got, err := s.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuestionMCQ, got.Type)

	opts, err := got.OptionList()
	require.NoError(t, err)
	assert.Equal(t, []string{"Ulna", "Radius", "Humerus"}, opts)

	view := got.View()
	require.NotNil(t, view)
	assert.Equal(t, float32(4), view.Position.X)
	assert.Equal(t, float32(-0.25), view.Target.Z)
}

func TestUpdateQuestion_InheritsCameraView(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := createTestModel(t, s)

	q := validQuestion(t, m.ID)
	require.NoError(t, s.CreateQuestion(ctx, q))

	update := validQuestion(t, m.ID)
	update.ID = q.ID
	update.Text = "Updated prompt"
	update.SetView(nil) // no view in the update payload

	got, err := s.UpdateQuestion(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, "Updated prompt", got.Text)
	require.NotNil(t, got.View())
	assert.Equal(t, float32(4), got.View().Position.X)
}

func TestCountQuestions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := createTestModel(t, s)

	count, err := s.CountQuestions(ctx, m.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, s.CreateQuestion(ctx, validQuestion(t, m.ID)))
	require.NoError(t, s.CreateQuestion(ctx, validQuestion(t, m.ID)))

	count, err = s.CountQuestions(ctx, m.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestDeleteQuestion_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := createTestModel(t, s)

	q := validQuestion(t, m.ID)
	require.NoError(t, s.CreateQuestion(ctx, q))

	require.NoError(t, s.DeleteQuestion(ctx, q.ID))
	require.NoError(t, s.DeleteQuestion(ctx, q.ID))
}
