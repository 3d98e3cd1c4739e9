// Package model defines the persisted entities of the anatomy lab: uploaded
// models, spatial labels, and quiz questions, together with their wire
// shapes and validation rules.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/openanatomy/lab/internal/math3d"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels lists every struct that represents a table in the schema.
var DatabaseModels = []interface{}{
	&Model{},
	&Label{},
	&Question{},
}

// QuestionType discriminates how a question is answered and graded.
type QuestionType string

const (
	// QuestionMCQ is a multiple-choice question graded by option index.
	QuestionMCQ QuestionType = "mcq"
	// QuestionText is a free-text question graded by case-insensitive,
	// trimmed string comparison.
	QuestionText QuestionType = "text"
)

// Validation errors surfaced inline to the author.
var (
	ErrNoPrompt          = errors.New("question prompt must not be empty")
	ErrTooFewOptions     = errors.New("mcq question needs at least 2 options")
	ErrBadCorrectIndex   = errors.New("mcq correct index out of range")
	ErrNoCorrectAnswer   = errors.New("text question needs a correct answer")
	ErrMissingCameraView = errors.New("question needs a saved camera view")
	ErrNoLabelText       = errors.New("label text must not be empty")
	ErrBadQuestionType   = errors.New("unknown question type")
)

// Vec3 is a 3-component vector as stored and serialized with an entity.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Vector3 converts to the viewer core's vector type.
func (v Vec3) Vector3() math3d.Vector3 {
	return math3d.Vec3(v.X, v.Y, v.Z)
}

// FromVector3 converts a viewer core vector to its persisted form.
func FromVector3(v math3d.Vector3) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// CameraView is a camera framing: where the camera sits and what point it
// looks at. It is persisted on questions and used as animation endpoints.
type CameraView struct {
	Position Vec3 `json:"position"`
	Target   Vec3 `json:"target"`
}

// Model is an uploaded GLB asset with its metadata.
type Model struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"size:1023" json:"description"`
	AssetURL    string    `gorm:"column:file_path;size:511;not null" json:"assetUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (*Model) TableName() string {
	return "models"
}

// Label is a text annotation anchored to a point on a model's surface.
// The anchor position is expressed in the model's normalized local space
// (centered at the origin, largest dimension scaled to 5 units), not in
// the raw asset's coordinates.
type Label struct {
	ID      string `gorm:"type:uuid;primaryKey" json:"id"`
	ModelID string `gorm:"type:uuid;not null;index" json:"modelId"`
	Model   *Model `gorm:"constraint:OnDelete:CASCADE;foreignKey:ModelID" json:"-"`
	Text    string `gorm:"size:255;not null" json:"text"`
	Color   string `gorm:"size:31;not null" json:"color"`

	X float32 `gorm:"column:position_x;not null" json:"x"`
	Y float32 `gorm:"column:position_y;not null" json:"y"`
	Z float32 `gorm:"column:position_z;not null" json:"z"`

	CreatedAt time.Time `json:"createdAt"`
}

func (*Label) TableName() string {
	return "labels"
}

// Position returns the anchor position as a vector.
func (l *Label) Position() math3d.Vector3 {
	return math3d.Vec3(l.X, l.Y, l.Z)
}

// SetPosition sets the anchor position from a vector.
func (l *Label) SetPosition(p math3d.Vector3) {
	l.X, l.Y, l.Z = p.X, p.Y, p.Z
}

// Validate checks the label before persisting.
func (l *Label) Validate() error {
	if strings.TrimSpace(l.Text) == "" {
		return ErrNoLabelText
	}
	return nil
}

// Question is a quiz question anchored to a point on a model's surface,
// with an optional saved camera view framing the relevant anatomy.
//
// CorrectAnswer is stored as a string for both question types: the option
// index stringified for mcq, the expected answer text for text questions.
type Question struct {
	ID            string         `gorm:"type:uuid;primaryKey" json:"id"`
	ModelID       string         `gorm:"type:uuid;not null;index" json:"modelId"`
	Model         *Model         `gorm:"constraint:OnDelete:CASCADE;foreignKey:ModelID" json:"-"`
	Text          string         `gorm:"size:1023;not null" json:"text"`
	Type          QuestionType   `gorm:"column:question_type;size:15;not null;default:mcq" json:"type"`
	Options       datatypes.JSON `gorm:"not null" json:"options"`
	CorrectAnswer string         `gorm:"size:1023" json:"correctAnswer"`

	X float32 `gorm:"column:position_x;not null" json:"x"`
	Y float32 `gorm:"column:position_y;not null" json:"y"`
	Z float32 `gorm:"column:position_z;not null" json:"z"`

	CameraPosition *Vec3 `gorm:"serializer:json" json:"cameraPosition,omitempty"`
	CameraTarget   *Vec3 `gorm:"serializer:json" json:"cameraTarget,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func (*Question) TableName() string {
	return "questions"
}

// Position returns the anchor position as a vector.
func (q *Question) Position() math3d.Vector3 {
	return math3d.Vec3(q.X, q.Y, q.Z)
}

// SetPosition sets the anchor position from a vector.
func (q *Question) SetPosition(p math3d.Vector3) {
	q.X, q.Y, q.Z = p.X, p.Y, p.Z
}

// View returns the saved camera view, or nil if none was saved.
func (q *Question) View() *CameraView {
	if q.CameraPosition == nil || q.CameraTarget == nil {
		return nil
	}
	return &CameraView{Position: *q.CameraPosition, Target: *q.CameraTarget}
}

// SetView stores the given camera view on the question. A nil view clears it.
func (q *Question) SetView(v *CameraView) {
	if v == nil {
		q.CameraPosition = nil
		q.CameraTarget = nil
		return
	}
	pos, tgt := v.Position, v.Target
	q.CameraPosition = &pos
	q.CameraTarget = &tgt
}

// OptionList decodes the stored options into a string slice.
func (q *Question) OptionList() ([]string, error) {
	if len(q.Options) == 0 {
		return nil, nil
	}
	var opts []string
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil, fmt.Errorf("decoding question options: %w", err)
	}
	return opts, nil
}

// SetOptionList encodes the given options into the stored form.
func (q *Question) SetOptionList(opts []string) error {
	raw, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("encoding question options: %w", err)
	}
	q.Options = raw
	return nil
}

// CorrectIndex returns the correct option index for an mcq question.
func (q *Question) CorrectIndex() (int, error) {
	idx, err := strconv.Atoi(strings.TrimSpace(q.CorrectAnswer))
	if err != nil {
		return 0, fmt.Errorf("mcq correct answer %q is not an index: %w", q.CorrectAnswer, err)
	}
	return idx, nil
}

// Validate checks the question's invariants: a prompt, a known type,
// and for mcq at least two options with the correct index in range;
// for text a non-empty correct answer.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return ErrNoPrompt
	}
	switch q.Type {
	case QuestionMCQ:
		opts, err := q.OptionList()
		if err != nil {
			return err
		}
		if len(opts) < 2 {
			return ErrTooFewOptions
		}
		idx, err := q.CorrectIndex()
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(opts) {
			return ErrBadCorrectIndex
		}
	case QuestionText:
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return ErrNoCorrectAnswer
		}
	default:
		return fmt.Errorf("%w: %q", ErrBadQuestionType, q.Type)
	}
	return nil
}

// ValidateNew checks the question for first-time persistence, which
// additionally requires a saved camera view. Updates may inherit the
// previously saved view and only need Validate.
func (q *Question) ValidateNew() error {
	if err := q.Validate(); err != nil {
		return err
	}
	if q.View() == nil {
		return ErrMissingCameraView
	}
	return nil
}
