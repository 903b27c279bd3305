package exam

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

const (
	// PassPercentage is the inclusive pass threshold.
	PassPercentage = 60.0

	// PenaltyFraction of a question's marks is taken off for a wrong answer when negative marking is on.
	PenaltyFraction = 0.25
)

var (
	errUnknownQuestion   = errors.New("question does not belong to this exam")
	errDuplicateQuestion = errors.New("question answered more than once")
)

// Score grades sub against the exam questions.
// Wrong answers cost PenaltyFraction of the question marks when negative marking is enabled,
// the total never goes below zero. Short answers await manual review and score nothing.
// Questions left unanswered score nothing.
func Score(e Exam, sub Submission) (AttemptDetail, error) {
	questions := make(map[string]Question, len(e.Questions))
	for _, q := range e.Questions {
		questions[q.ID] = q
	}

	detail := AttemptDetail{
		Answers:        make([]GradedAnswer, 0, len(sub.Answers)),
		MaxScore:       e.MaxScore(),
		AutoSubmit:     sub.AutoSubmit,
		NegativeMarked: e.NegativeMarking,
	}

	seen := make(map[string]bool, len(sub.Answers))
	var total float64
	for i, ans := range sub.Answers {
		fld := fmt.Sprintf("answers[%d].question_id", i)
		q, ok := questions[ans.QuestionID]
		if !ok {
			return AttemptDetail{}, core.NewValidationError(errUnknownQuestion, core.FieldError{Field: fld, Error: errUnknownQuestion.Error()})
		}
		if seen[q.ID] {
			return AttemptDetail{}, core.NewValidationError(errDuplicateQuestion, core.FieldError{Field: fld, Error: errDuplicateQuestion.Error()})
		}
		seen[q.ID] = true

		graded := grade(q, ans.values, e.NegativeMarking)
		graded.TimeSpent = ans.TimeSpent
		if graded.PendingReview {
			detail.PendingReview = true
		}

		total += graded.MarksAwarded
		detail.TimeSpent += ans.TimeSpent
		detail.Answers = append(detail.Answers, graded)
	}

	if total < 0 {
		total = 0
	}
	detail.TotalScore = total
	detail.Percentage = percentage(total, detail.MaxScore)
	return detail, nil
}

// Passed reports whether the percentage reaches the pass threshold.
func Passed(pct float64) bool {
	return pct >= PassPercentage
}

func percentage(total float64, max int) float64 {
	if max <= 0 {
		return 0
	}
	return total * 100 / float64(max)
}

func grade(q Question, answer []string, negativeMarking bool) GradedAnswer {
	graded := GradedAnswer{QuestionID: q.ID, Answer: answer}
	given := normalize(q.Type, answer)

	switch {
	case q.Type == ShortAnswer:
		graded.PendingReview = true
	case len(given) == 0:
		// skipped
	case sameSet(given, normalize(q.Type, q.AnswerKey)):
		graded.Correct = true
		graded.MarksAwarded = float64(q.Marks)
	case negativeMarking:
		graded.MarksAwarded = -PenaltyFraction * float64(q.Marks)
	}
	return graded
}

func normalize(qType string, values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if qType == TrueFalse {
			v = strings.ToLower(v)
		}
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// sameSet expects both slices sorted and deduplicated.
func sameSet(a, b []string) bool {
	if len(a) != len(b) || len(b) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
