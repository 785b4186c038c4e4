package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-adp-api/internal/models"
	appErrors "github.com/noah-isme/exam-adp-api/pkg/errors"
)

type memResultRepo struct {
	results map[string]*models.Result // student|course
	visible map[string]bool
}

func (m *memResultRepo) key(studentID, courseID string) string {
	return studentID + "|" + courseID
}

func (m *memResultRepo) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Result, error) {
	if result, ok := m.results[m.key(studentID, courseID)]; ok {
		copied := *result
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memResultRepo) Upsert(ctx context.Context, result *models.Result) error {
	if m.results == nil {
		m.results = map[string]*models.Result{}
	}
	copied := *result
	m.results[m.key(result.StudentID, result.CourseID)] = &copied
	return nil
}

func (m *memResultRepo) SetVisibility(ctx context.Context, id string, visible bool, actorID string, at time.Time) error {
	if m.visible == nil {
		m.visible = map[string]bool{}
	}
	m.visible[id] = visible
	return nil
}

func (m *memResultRepo) List(ctx context.Context, filter models.ResultFilter) ([]models.Result, error) {
	var list []models.Result
	for _, result := range m.results {
		if filter.CourseID != "" && result.CourseID != filter.CourseID {
			continue
		}
		if filter.StudentID != "" && result.StudentID != filter.StudentID {
			continue
		}
		if filter.VisibleOnly && !result.IsVisible {
			continue
		}
		list = append(list, *result)
	}
	return list, nil
}

type stubCourseReader struct {
	courses map[string]*models.Course
}

func (s *stubCourseReader) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := s.courses[id]; ok {
		return course, nil
	}
	return nil, sql.ErrNoRows
}

func newResultFixture(questions []models.Question) (*ResultService, *memResultRepo) {
	repo := &memResultRepo{}
	courses := &stubCourseReader{courses: map[string]*models.Course{"course1": {ID: "course1", DepartmentID: "dept1"}}}
	svc := NewResultService(repo, &stubQuestionLister{questions: questions}, courses, nil, zap.NewNop())
	return svc, repo
}

func TestGradeBands(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{95, "A+"},
		{90, "A+"},
		{89.9, "A"},
		{85, "A"},
		{80, "A-"},
		{75, "B+"},
		{70, "B"},
		{65, "B-"},
		{60, "C+"},
		{59.9, "C"},
		{50, "C"},
		{45, "C-"},
		{40, "D"},
		{39.9, "F"},
		{0, "F"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, GradeFor(tc.score), "score %v", tc.score)
	}
}

func TestFallbackWeightPolicy(t *testing.T) {
	policy := fallbackWeightPolicy{}
	mid, final, assignment := 80.0, 90.0, 70.0

	assert.InDelta(t, 0.3*80+0.5*90+0.2*70, policy.Overall(&mid, &final, &assignment), 1e-9)
	assert.InDelta(t, 0.3*80+0.5*90, policy.Overall(&mid, &final, nil), 1e-9)
	assert.InDelta(t, 0.6*80, policy.Overall(&mid, nil, nil), 1e-9)
	assert.InDelta(t, 0.8*90, policy.Overall(nil, &final, nil), 1e-9)
	assert.Equal(t, 0.0, policy.Overall(nil, nil, nil))
}

// The stored exam score is a raw correct count while the stored max score is
// the weight sum over the exam's questions. Both are kept as-is.
func TestResultMaxScoreWeightedWhileSessionScoreIsRawCount(t *testing.T) {
	svc, repo := newResultFixture(fiveQuestions()) // five questions, weight 2 each

	exam := examStartingAt(time.Now())
	result, err := svc.ApplyExamScore(context.Background(), "stu1", exam, 3)
	require.NoError(t, err)

	require.NotNil(t, result.MidExamScore)
	require.NotNil(t, result.MidExamMaxScore)
	assert.Equal(t, 3.0, *result.MidExamScore)
	assert.Equal(t, 10.0, *result.MidExamMaxScore)
	assert.Len(t, repo.results, 1)
}

func TestApplyExamScorePerTitle(t *testing.T) {
	svc, _ := newResultFixture(fiveQuestions())

	mid := examStartingAt(time.Now())
	result, err := svc.ApplyExamScore(context.Background(), "stu1", mid, 8)
	require.NoError(t, err)
	assert.InDelta(t, 0.6*8, result.OverallScore, 1e-9)

	final := examStartingAt(time.Now())
	final.ID = "exam2"
	final.Title = models.TitleFinalExam
	result, err = svc.ApplyExamScore(context.Background(), "stu1", final, 9)
	require.NoError(t, err)
	require.NotNil(t, result.FinalExamScore)
	assert.Equal(t, 9.0, *result.FinalExamScore)
	assert.InDelta(t, 0.3*8+0.5*9, result.OverallScore, 1e-9)
}

func TestApplyExamScoreQuizJoinsAdditively(t *testing.T) {
	svc, _ := newResultFixture(fiveQuestions())

	quiz := examStartingAt(time.Now())
	quiz.Title = models.TitleQuiz
	result, err := svc.ApplyExamScore(context.Background(), "stu1", quiz, 2)
	require.NoError(t, err)
	assert.InDelta(t, 2, result.OverallScore, 1e-9)

	// A second quiz accumulates rather than replaces.
	result, err = svc.ApplyExamScore(context.Background(), "stu1", quiz, 3)
	require.NoError(t, err)
	assert.InDelta(t, 5, result.OverallScore, 1e-9)
	assert.Nil(t, result.MidExamScore)
}

func TestApplyExamScoreReplacesSameTitle(t *testing.T) {
	svc, _ := newResultFixture(fiveQuestions())
	exam := examStartingAt(time.Now())

	_, err := svc.ApplyExamScore(context.Background(), "stu1", exam, 3)
	require.NoError(t, err)
	result, err := svc.ApplyExamScore(context.Background(), "stu1", exam, 5)
	require.NoError(t, err)
	assert.Equal(t, 5.0, *result.MidExamScore)
	assert.InDelta(t, 0.6*5, result.OverallScore, 1e-9)
}

func TestApplyExamScoreUnknownCourse(t *testing.T) {
	svc, _ := newResultFixture(fiveQuestions())
	exam := examStartingAt(time.Now())
	exam.CourseID = "ghost"

	_, err := svc.ApplyExamScore(context.Background(), "stu1", exam, 3)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSetVisibilityTeacherOnly(t *testing.T) {
	svc, repo := newResultFixture(nil)

	err := svc.SetVisibility(context.Background(), teacherClaims("teacher1"), "r1", true)
	require.NoError(t, err)
	assert.True(t, repo.visible["r1"])

	err = svc.SetVisibility(context.Background(), studentClaims("stu1"), "r1", true)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestListVisibleForStudentFiltersHidden(t *testing.T) {
	svc, repo := newResultFixture(nil)
	repo.results = map[string]*models.Result{
		"stu1|course1": {ID: "r1", StudentID: "stu1", CourseID: "course1", IsVisible: true},
		"stu1|course2": {ID: "r2", StudentID: "stu1", CourseID: "course2"},
	}

	results, err := svc.ListVisibleForStudent(context.Background(), "stu1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "r1", results[0].ID)
}
