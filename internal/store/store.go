// Package store implements persistence for models, labels and questions on
// top of gorm. Deleting a model cascades to its labels and questions in one
// transaction; entity deletes are idempotent.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/openanatomy/lab/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Store provides CRUD operations over the lab schema.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// New creates a Store over the given connection.
func New(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

//////////////
// Models   //
//////////////

// ListModels returns all models, newest first.
func (s *Store) ListModels(ctx context.Context) ([]model.Model, error) {
	var models []model.Model
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	return models, nil
}

// GetModel returns the model with the given id.
func (s *Store) GetModel(ctx context.Context, id string) (*model.Model, error) {
	var m model.Model
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting model %s: %w", id, err)
	}
	return &m, nil
}

// CreateModel persists a new model. A missing id is generated; a missing
// name is rejected.
func (s *Store) CreateModel(ctx context.Context, m *model.Model) error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("model name must not be empty")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("creating model: %w", err)
	}
	s.log.Info().Str("modelId", m.ID).Str("name", m.Name).Msg("Model created")
	return nil
}

// UpdateModel updates a model's name and description.
func (s *Store) UpdateModel(ctx context.Context, id, name, description string) (*model.Model, error) {
	m, err := s.GetModel(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Name = name
	m.Description = description
	m.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		return nil, fmt.Errorf("updating model %s: %w", id, err)
	}
	return m, nil
}

// DeleteModel removes a model and cascades to its labels and questions in
// one transaction. The deleted model is returned so the caller can remove
// the stored asset file.
func (s *Store) DeleteModel(ctx context.Context, id string) (*model.Model, error) {
	m, err := s.GetModel(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("model_id = ?", id).Delete(&model.Label{}).Error; err != nil {
			return err
		}
		if err := tx.Where("model_id = ?", id).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Model{}, "id = ?", id).Error
	})
	if err != nil {
		return nil, fmt.Errorf("deleting model %s: %w", id, err)
	}

	s.log.Info().Str("modelId", id).Msg("Model deleted with labels and questions")
	return m, nil
}

//////////////
// Labels   //
//////////////

// ListLabels returns a model's labels in creation order.
func (s *Store) ListLabels(ctx context.Context, modelID string) ([]model.Label, error) {
	var labels []model.Label
	err := s.db.WithContext(ctx).
		Where("model_id = ?", modelID).
		Order("created_at ASC").
		Find(&labels).Error
	if err != nil {
		return nil, fmt.Errorf("listing labels for model %s: %w", modelID, err)
	}
	return labels, nil
}

// CreateLabel validates and persists a new label for the given model.
func (s *Store) CreateLabel(ctx context.Context, l *model.Label) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if _, err := s.GetModel(ctx, l.ModelID); err != nil {
		return err
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
		return fmt.Errorf("creating label: %w", err)
	}
	return nil
}

// DeleteLabel removes a label. Deleting an unknown id is a no-op.
func (s *Store) DeleteLabel(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&model.Label{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("deleting label %s: %w", id, err)
	}
	return nil
}

//////////////
// Questions //
//////////////

// ListQuestions returns a model's questions in creation order.
func (s *Store) ListQuestions(ctx context.Context, modelID string) ([]model.Question, error) {
	var questions []model.Question
	err := s.db.WithContext(ctx).
		Where("model_id = ?", modelID).
		Order("created_at ASC").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("listing questions for model %s: %w", modelID, err)
	}
	return questions, nil
}

// GetQuestion returns the question with the given id.
func (s *Store) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	var q model.Question
	err := s.db.WithContext(ctx).First(&q, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting question %s: %w", id, err)
	}
	return &q, nil
}

// CountQuestions returns the number of questions on a model.
func (s *Store) CountQuestions(ctx context.Context, modelID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Question{}).
		Where("model_id = ?", modelID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting questions for model %s: %w", modelID, err)
	}
	return count, nil
}

// CreateQuestion validates and persists a new question. New questions must
// carry a saved camera view.
func (s *Store) CreateQuestion(ctx context.Context, q *model.Question) error {
	if err := q.ValidateNew(); err != nil {
		return err
	}
	if _, err := s.GetModel(ctx, q.ModelID); err != nil {
		return err
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(q).Error; err != nil {
		return fmt.Errorf("creating question: %w", err)
	}
	return nil
}

// UpdateQuestion replaces a question's content. An update without a camera
// view inherits the previously saved one.
func (s *Store) UpdateQuestion(ctx context.Context, q *model.Question) (*model.Question, error) {
	existing, err := s.GetQuestion(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	if q.View() == nil {
		q.SetView(existing.View())
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	existing.Text = q.Text
	existing.Type = q.Type
	existing.Options = q.Options
	existing.CorrectAnswer = q.CorrectAnswer
	existing.X, existing.Y, existing.Z = q.X, q.Y, q.Z
	existing.SetView(q.View())

	if err := s.db.WithContext(ctx).Save(existing).Error; err != nil {
		return nil, fmt.Errorf("updating question %s: %w", q.ID, err)
	}
	return existing, nil
}

// DeleteQuestion removes a question. Deleting an unknown id is a no-op.
func (s *Store) DeleteQuestion(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&model.Question{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("deleting question %s: %w", id, err)
	}
	return nil
}
