package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
)

func answer(qid string, values ...string) SubmittedAnswer {
	return SubmittedAnswer{QuestionID: qid, values: values, TimeSpent: 10}
}

func testExam(negative bool) Exam {
	return Exam{
		ID:              "e1",
		NegativeMarking: negative,
		Questions: []Question{
			{ID: "q1", Type: MultipleChoice, Options: []string{"a", "b", "c"}, AnswerKey: []string{"a"}, Marks: 4},
			{ID: "q2", Type: MultipleChoice, Options: []string{"a", "b", "c"}, AnswerKey: []string{"a", "c"}, Marks: 4},
			{ID: "q3", Type: TrueFalse, Options: []string{"true", "false"}, AnswerKey: []string{"true"}, Marks: 2},
		},
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		negative  bool
		answers   []SubmittedAnswer
		wantTotal float64
		wantPct   float64
		wantPass  bool
	}{
		{
			name:      "all correct",
			answers:   []SubmittedAnswer{answer("q1", "a"), answer("q2", "c", "a"), answer("q3", "TRUE")},
			wantTotal: 10,
			wantPct:   100,
			wantPass:  true,
		},
		{
			name:      "partial multi select is wrong",
			answers:   []SubmittedAnswer{answer("q1", "a"), answer("q2", "a"), answer("q3", "true")},
			wantTotal: 6,
			wantPct:   60,
			wantPass:  true,
		},
		{
			name:      "duplicates and spaces are ignored",
			answers:   []SubmittedAnswer{answer("q1", " a ", "a"), answer("q2", "c", "a", "c")},
			wantTotal: 8,
			wantPct:   80,
			wantPass:  true,
		},
		{
			name:      "nothing answered",
			answers:   nil,
			wantTotal: 0,
			wantPct:   0,
		},
		{
			name:      "wrong answers without negative marking",
			answers:   []SubmittedAnswer{answer("q1", "b"), answer("q3", "false")},
			wantTotal: 0,
			wantPct:   0,
		},
		{
			name:      "negative marking subtracts a quarter of the marks",
			negative:  true,
			answers:   []SubmittedAnswer{answer("q1", "a"), answer("q2", "b"), answer("q3", "true")},
			wantTotal: 5,
			wantPct:   50,
		},
		{
			name:      "negative marking never goes below zero",
			negative:  true,
			answers:   []SubmittedAnswer{answer("q1", "b"), answer("q2", "b"), answer("q3", "false")},
			wantTotal: 0,
			wantPct:   0,
		},
		{
			name:      "skipped questions are not penalized",
			negative:  true,
			answers:   []SubmittedAnswer{answer("q1", "a"), answer("q2"), answer("q3", "  ")},
			wantTotal: 4,
			wantPct:   40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detail, err := Score(testExam(tt.negative), Submission{Answers: tt.answers})
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, detail.TotalScore)
			assert.Equal(t, 10, detail.MaxScore)
			assert.InDelta(t, tt.wantPct, detail.Percentage, 1e-9)
			assert.Equal(t, tt.wantPass, Passed(detail.Percentage))
			assert.Equal(t, tt.negative, detail.NegativeMarked)
			assert.Len(t, detail.Answers, len(tt.answers))
		})
	}
}

func TestScore_halfMarks(t *testing.T) {
	e := Exam{Questions: []Question{
		{ID: "q1", Type: MultipleChoice, Options: []string{"a", "b"}, AnswerKey: []string{"a"}, Marks: 10},
		{ID: "q2", Type: MultipleChoice, Options: []string{"a", "b"}, AnswerKey: []string{"b"}, Marks: 10},
	}}

	detail, err := Score(e, Submission{Answers: []SubmittedAnswer{answer("q1", "a"), answer("q2", "a")}, AutoSubmit: true})
	require.NoError(t, err)
	assert.Equal(t, 10.0, detail.TotalScore)
	assert.Equal(t, 20, detail.MaxScore)
	assert.Equal(t, 50.0, detail.Percentage)
	assert.False(t, Passed(detail.Percentage))
	assert.True(t, detail.AutoSubmit)
	assert.Equal(t, 20, detail.TimeSpent)
	assert.True(t, detail.Answers[0].Correct)
	assert.False(t, detail.Answers[1].Correct)
}

func TestScore_shortAnswerPendingReview(t *testing.T) {
	e := Exam{Questions: []Question{
		{ID: "q1", Type: ShortAnswer, Marks: 5},
		{ID: "q2", Type: TrueFalse, AnswerKey: []string{"false"}, Marks: 5},
	}}

	detail, err := Score(e, Submission{Answers: []SubmittedAnswer{answer("q1", "use of force continuum"), answer("q2", "False")}})
	require.NoError(t, err)
	assert.True(t, detail.PendingReview)
	assert.True(t, detail.Answers[0].PendingReview)
	assert.Zero(t, detail.Answers[0].MarksAwarded)
	assert.Equal(t, 5.0, detail.TotalScore)
	assert.Equal(t, 50.0, detail.Percentage)
}

func TestScore_emptyExam(t *testing.T) {
	detail, err := Score(Exam{}, Submission{})
	require.NoError(t, err)
	assert.Zero(t, detail.MaxScore)
	assert.Zero(t, detail.Percentage)
	assert.False(t, Passed(detail.Percentage))
}

func TestScore_rejectsForeignAnswers(t *testing.T) {
	_, err := Score(testExam(false), Submission{Answers: []SubmittedAnswer{answer("q1", "a"), answer("q9", "a")}})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "answers[1].question_id", vErr.Fields[0].Field)

	_, err = Score(testExam(false), Submission{Answers: []SubmittedAnswer{answer("q1", "a"), answer("q1", "b")}})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, errDuplicateQuestion.Error(), vErr.Fields[0].Error)
}

func TestPassed(t *testing.T) {
	assert.True(t, Passed(60))
	assert.True(t, Passed(100))
	assert.False(t, Passed(59.99))
	assert.False(t, Passed(0))
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		raw     string
		want    []string
		wantErr bool
	}{
		{raw: ``, want: []string{}},
		{raw: `null`, want: []string{}},
		{raw: `"a"`, want: []string{"a"}},
		{raw: `["a","b"]`, want: []string{"a", "b"}},
		{raw: `42`, wantErr: true},
		{raw: `{"a":1}`, wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseAnswer([]byte(tt.raw))
		if tt.wantErr {
			assert.Equal(t, errAnswerFormat, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
