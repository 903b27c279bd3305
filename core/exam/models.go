package exam

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// Question types
const (
	MultipleChoice = "multiple_choice"
	TrueFalse      = "true_false"
	ShortAnswer    = "short_answer"
)

type Exam struct {
	ID              string     `json:"id"`
	CourseID        string     `json:"course_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Published       bool       `json:"published"`
	Randomize       bool       `json:"randomize"`
	NegativeMarking bool       `json:"negative_marking"`
	DurationMinutes int        `json:"duration_minutes"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Questions       []Question `json:"questions"`
}

// MaxScore is the sum of all question marks.
func (e Exam) MaxScore() int {
	var max int
	for _, q := range e.Questions {
		max += q.Marks
	}
	return max
}

// WithoutAnswerKeys returns a copy of the exam safe to show to trainees.
func (e Exam) WithoutAnswerKeys() Exam {
	qs := make([]Question, len(e.Questions))
	for i, q := range e.Questions {
		q.AnswerKey = nil
		qs[i] = q
	}
	e.Questions = qs
	return e
}

type Question struct {
	ID        string    `json:"id"`
	ExamID    string    `json:"exam_id"`
	Type      string    `json:"type"`
	Prompt    string    `json:"prompt"`
	Options   []string  `json:"options"`
	Marks     int       `json:"marks"`
	AnswerKey []string  `json:"answer_key,omitempty"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

type Attempt struct {
	ID          string        `json:"id"`
	ExamID      string        `json:"exam_id"`
	UserID      string        `json:"user_id"`
	Score       float64       `json:"score"`
	Passed      bool          `json:"passed"`
	Detail      AttemptDetail `json:"detail"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

// AttemptDetail is stored alongside the attempt as an opaque JSON document.
type AttemptDetail struct {
	Answers        []GradedAnswer `json:"answers"`
	TotalScore     float64        `json:"total_score"`
	MaxScore       int            `json:"max_score"`
	Percentage     float64        `json:"percentage"`
	TimeSpent      int            `json:"time_spent"`
	AutoSubmit     bool           `json:"auto_submit"`
	PendingReview  bool           `json:"pending_review"`
	AttemptNumber  int            `json:"attempt_number"`
	CertificateID  string         `json:"certificate_id,omitempty"`
	NegativeMarked bool           `json:"negative_marked"`
}

type GradedAnswer struct {
	QuestionID    string   `json:"question_id"`
	Answer        []string `json:"answer"`
	Correct       bool     `json:"correct"`
	MarksAwarded  float64  `json:"marks_awarded"`
	PendingReview bool     `json:"pending_review,omitempty"`
	TimeSpent     int      `json:"time_spent"`
}

// Summary is what a trainee gets back after submitting.
type Summary struct {
	AttemptID     string    `json:"attempt_id"`
	Score         float64   `json:"score"`
	MaxScore      int       `json:"max_score"`
	Percentage    float64   `json:"percentage"`
	Passed        bool      `json:"passed"`
	TimeSpent     int       `json:"time_spent"`
	SubmittedAt   time.Time `json:"submitted_at"`
	CertificateID string    `json:"certificate_id,omitempty"`
}

func (a Attempt) Summary() Summary {
	return Summary{
		AttemptID:     a.ID,
		Score:         a.Score,
		MaxScore:      a.Detail.MaxScore,
		Percentage:    a.Detail.Percentage,
		Passed:        a.Passed,
		TimeSpent:     a.Detail.TimeSpent,
		SubmittedAt:   a.SubmittedAt,
		CertificateID: a.Detail.CertificateID,
	}
}

type NewExam struct {
	CourseID        string `json:"course_id" validate:"required"`
	Title           string `json:"title" validate:"required,max=200"`
	Description     string `json:"description"`
	Randomize       bool   `json:"randomize"`
	NegativeMarking bool   `json:"negative_marking"`
	DurationMinutes int    `json:"duration_minutes" validate:"min=0,max=1440"`
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.CourseID = core.CleanString(ne.CourseID)
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	return validate.Struct(ne)
}

type NewQuestion struct {
	Type      string          `json:"type" validate:"required,oneof=multiple_choice true_false short_answer"`
	Prompt    string          `json:"prompt" validate:"required"`
	Options   []string        `json:"options" validate:"omitempty,dive,required"`
	Marks     int             `json:"marks" validate:"required,min=1"`
	AnswerKey json.RawMessage `json:"answer_key"`
	Position  int             `json:"position" validate:"min=0"`

	key []string
}

var errTrueFalseKey = errors.New("must be true or false")

func (nq *NewQuestion) Validate(validate *validator.Validate) error {
	nq.Type = core.CleanString(nq.Type, true /* lower */)
	nq.Prompt = core.CleanString(nq.Prompt)
	nq.Options = core.CleanStrings(nq.Options)
	if err := validate.Struct(nq); err != nil {
		return err
	}

	key, err := parseAnswer(nq.AnswerKey)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "answer_key", Error: err.Error()})
	}
	switch nq.Type {
	case MultipleChoice:
		if len(key) == 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "answer_key", Error: "this field is required"})
		}
		for _, k := range key {
			if !containsString(nq.Options, k) {
				msg := fmt.Sprintf("%q is not one of the options", k)
				return core.NewValidationError(nil, core.FieldError{Field: "answer_key", Error: msg})
			}
		}
	case TrueFalse:
		if len(key) != 1 || (!strings.EqualFold(key[0], "true") && !strings.EqualFold(key[0], "false")) {
			return core.NewValidationError(errTrueFalseKey, core.FieldError{Field: "answer_key", Error: errTrueFalseKey.Error()})
		}
		key[0] = strings.ToLower(key[0])
		nq.Options = []string{"true", "false"}
	}
	nq.key = key
	return nil
}

// AnswerKeyValues returns the parsed answer key, available after Validate.
func (nq NewQuestion) AnswerKeyValues() []string { return nq.key }

type SubmittedAnswer struct {
	QuestionID string          `json:"question_id" validate:"required"`
	Answer     json.RawMessage `json:"answer"`
	TimeSpent  int             `json:"time_spent" validate:"min=0"`

	values []string
}

// Submission is a trainee's answer set for one exam.
type Submission struct {
	Answers    []SubmittedAnswer `json:"answers" validate:"dive"`
	AutoSubmit bool              `json:"auto_submit"`
}

// Validate checks the structure of the submission and decodes every answer.
// Matching answers against the exam questions happens when grading.
func (s *Submission) Validate(validate *validator.Validate) error {
	for i := range s.Answers {
		s.Answers[i].QuestionID = core.CleanString(s.Answers[i].QuestionID)
	}
	if err := validate.Struct(s); err != nil {
		return err
	}

	for i := range s.Answers {
		values, err := parseAnswer(s.Answers[i].Answer)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{
				Field: fmt.Sprintf("answers[%d].answer", i),
				Error: err.Error(),
			})
		}
		s.Answers[i].values = values
	}
	return nil
}

var errAnswerFormat = errors.New("must be a string or an array of strings")

// parseAnswer accepts a JSON string, an array of strings or null.
func parseAnswer(raw json.RawMessage) ([]string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return []string{}, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, errAnswerFormat
	}
	return many, nil
}

func containsString(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}
