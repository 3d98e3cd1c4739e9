// Package quiz runs a learner's pass over a model's questions: one
// question at a time, instant feedback on answering, and a score once
// every question is answered and the last one submitted.
package quiz

import (
	"errors"
	"math"
	"strings"

	"github.com/openanatomy/lab/internal/model"
)

// Answer sentinels meaning "not answered yet".
const (
	NoSelection = -1 // multiple choice
	NoText      = "" // free text
)

// Session errors.
var (
	ErrNoQuestions       = errors.New("model has no questions to quiz on")
	ErrNotRunning        = errors.New("no quiz in progress")
	ErrOutOfRange        = errors.New("question index out of range")
	ErrCurrentUnanswered = errors.New("answer the current question before submitting")
)

// Answer is a learner's answer to one question. Exactly one of the two
// fields is meaningful, per the question's type.
type Answer struct {
	Selection int
	Text      string
}

// Unanswered returns the sentinel answer. Both fields carry their
// sentinel so it reads as unanswered under either question type.
func Unanswered() Answer {
	return Answer{Selection: NoSelection, Text: NoText}
}

// Given reports whether the answer differs from its sentinel.
func (a Answer) Given(t model.QuestionType) bool {
	switch t {
	case model.QuestionText:
		return strings.TrimSpace(a.Text) != NoText
	default:
		return a.Selection != NoSelection
	}
}

// Grade checks an answer against a question. Multiple choice compares
// the selected index; free text compares trimmed, case-insensitive.
func Grade(q *model.Question, a Answer) (bool, error) {
	switch q.Type {
	case model.QuestionMCQ:
		correct, err := q.CorrectIndex()
		if err != nil {
			return false, err
		}
		return a.Selection == correct, nil
	case model.QuestionText:
		got := strings.TrimSpace(a.Text)
		want := strings.TrimSpace(q.CorrectAnswer)
		return strings.EqualFold(got, want), nil
	default:
		return false, model.ErrBadQuestionType
	}
}

// QuestionResult is the graded outcome of one question.
type QuestionResult struct {
	Question model.Question
	Answer   Answer
	Correct  bool
}

// Results is the outcome of a completed quiz.
type Results struct {
	Score      int
	Total      int
	Percentage int
	Questions  []QuestionResult
}

// Session is a quiz over a fixed question list. Zero value is an idle
// session; Start begins a run. Not safe for concurrent use.
type Session struct {
	running   bool
	questions []model.Question
	answers   []Answer
	current   int
}

// Running reports whether a quiz is in progress.
func (s *Session) Running() bool {
	return s.running
}

// Start begins a quiz over the given questions, resetting any previous
// run. At least one question is required.
func (s *Session) Start(questions []model.Question) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	s.running = true
	s.questions = questions
	s.current = 0
	s.answers = make([]Answer, len(questions))
	for i := range s.answers {
		s.answers[i] = Unanswered()
	}
	return nil
}

// Exit abandons the quiz. Exiting an idle session is a no-op.
func (s *Session) Exit() {
	s.running = false
	s.questions = nil
	s.answers = nil
	s.current = 0
}

// Current returns the question the learner is on.
func (s *Session) Current() (model.Question, error) {
	if !s.running {
		return model.Question{}, ErrNotRunning
	}
	return s.questions[s.current], nil
}

// Index returns the current question's position and the total count.
func (s *Session) Index() (current, total int) {
	return s.current, len(s.questions)
}

// Navigate moves to the question at the given index.
func (s *Session) Navigate(idx int) error {
	if !s.running {
		return ErrNotRunning
	}
	if idx < 0 || idx >= len(s.questions) {
		return ErrOutOfRange
	}
	s.current = idx
	return nil
}

// Next moves to the following question, staying put on the last one.
func (s *Session) Next() error {
	if !s.running {
		return ErrNotRunning
	}
	if s.current+1 < len(s.questions) {
		s.current++
	}
	return nil
}

// Prev moves to the preceding question, staying put on the first one.
func (s *Session) Prev() error {
	if !s.running {
		return ErrNotRunning
	}
	if s.current > 0 {
		s.current--
	}
	return nil
}

// Answer records the learner's answer to the current question and
// returns whether it was correct. Re-answering overwrites.
func (s *Session) Answer(a Answer) (bool, error) {
	if !s.running {
		return false, ErrNotRunning
	}
	a.Text = strings.TrimSpace(a.Text)
	s.answers[s.current] = a
	return Grade(&s.questions[s.current], a)
}

// AnswerFor returns the recorded answer at the given index.
func (s *Session) AnswerFor(idx int) (Answer, error) {
	if !s.running {
		return Answer{}, ErrNotRunning
	}
	if idx < 0 || idx >= len(s.answers) {
		return Answer{}, ErrOutOfRange
	}
	return s.answers[idx], nil
}

// Submit grades the whole run and ends the session. The current
// question must have an answer recorded; earlier questions may be left
// at their sentinel and grade as wrong.
func (s *Session) Submit() (*Results, error) {
	if !s.running {
		return nil, ErrNotRunning
	}
	if !s.answers[s.current].Given(s.questions[s.current].Type) {
		return nil, ErrCurrentUnanswered
	}

	res := &Results{Total: len(s.questions)}
	for i := range s.questions {
		correct, err := Grade(&s.questions[i], s.answers[i])
		if err != nil {
			return nil, err
		}
		if correct {
			res.Score++
		}
		res.Questions = append(res.Questions, QuestionResult{
			Question: s.questions[i],
			Answer:   s.answers[i],
			Correct:  correct,
		})
	}
	res.Percentage = int(math.Round(100 * float64(res.Score) / float64(res.Total)))

	s.Exit()
	return res, nil
}

// Preview is a read-only look at a single question, used by authors to
// check a question as learners will see it. The correct answer can be
// revealed without grading.
type Preview struct {
	Question model.Question
	revealed bool
}

// NewPreview opens a preview of one question.
func NewPreview(q model.Question) *Preview {
	return &Preview{Question: q}
}

// Reveal marks the correct answer as shown and returns it: the correct
// option text for multiple choice, the expected answer for free text.
func (p *Preview) Reveal() (string, error) {
	p.revealed = true
	if p.Question.Type == model.QuestionText {
		return p.Question.CorrectAnswer, nil
	}
	opts, err := p.Question.OptionList()
	if err != nil {
		return "", err
	}
	idx, err := p.Question.CorrectIndex()
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(opts) {
		return "", model.ErrBadCorrectIndex
	}
	return opts[idx], nil
}

// Revealed reports whether the answer has been shown.
func (p *Preview) Revealed() bool {
	return p.revealed
}
