package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-adp-api/internal/models"
	appErrors "github.com/noah-isme/exam-adp-api/pkg/errors"
)

type resultRepo interface {
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Result, error)
	Upsert(ctx context.Context, result *models.Result) error
	SetVisibility(ctx context.Context, id string, visible bool, actorID string, at time.Time) error
	List(ctx context.Context, filter models.ResultFilter) ([]models.Result, error)
}

type courseReader interface {
	FindCourse(ctx context.Context, id string) (*models.Course, error)
}

// ScoringPolicy folds the available component scores into an overall score.
// The fallback multipliers are inherited grading policy; replacing the
// formula means replacing this one implementation.
type ScoringPolicy interface {
	Overall(mid, final, assignment *float64) float64
}

// fallbackWeightPolicy weights 0.3 mid / 0.5 final / 0.2 assignment when mid
// and final are both present, and inflates a lone component to 0.6 mid or
// 0.8 final otherwise.
type fallbackWeightPolicy struct{}

func (fallbackWeightPolicy) Overall(mid, final, assignment *float64) float64 {
	switch {
	case mid != nil && final != nil:
		total := 0.3**mid + 0.5**final
		if assignment != nil {
			total += 0.2 * *assignment
		}
		return total
	case mid != nil:
		return 0.6 * *mid
	case final != nil:
		return 0.8 * *final
	default:
		return 0
	}
}

// gradeThresholds maps the lower bound of each band to its letter, highest
// first. The bands partition the whole score axis; anything below the last
// bound is an F.
var gradeThresholds = []struct {
	Min   float64
	Grade string
}{
	{90, "A+"},
	{85, "A"},
	{80, "A-"},
	{75, "B+"},
	{70, "B"},
	{65, "B-"},
	{60, "C+"},
	{50, "C"},
	{45, "C-"},
	{40, "D"},
}

// GradeFor maps an overall score to its letter grade.
func GradeFor(overall float64) string {
	for _, band := range gradeThresholds {
		if overall >= band.Min {
			return band.Grade
		}
	}
	return "F"
}

// ResultService folds per-exam scores into per-course results.
type ResultService struct {
	results   resultRepo
	questions questionLister
	courses   courseReader
	policy    ScoringPolicy
	logger    *zap.Logger
	now       func() time.Time
}

// NewResultService constructs ResultService. A nil policy selects the
// inherited fallback weighting.
func NewResultService(results resultRepo, questions questionLister, courses courseReader, policy ScoringPolicy, logger *zap.Logger) *ResultService {
	if policy == nil {
		policy = fallbackWeightPolicy{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{
		results:   results,
		questions: questions,
		courses:   courses,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

// ApplyExamScore merges one finalized exam score into the student's course
// result and rederives the overall score and grade. Visibility is never
// touched here.
func (s *ResultService) ApplyExamScore(ctx context.Context, studentID string, exam *models.Exam, score float64) (*models.Result, error) {
	if _, err := s.courses.FindCourse(ctx, exam.CourseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	maxScore, err := s.examMaxScore(ctx, exam.ID)
	if err != nil {
		return nil, err
	}

	result, err := s.loadOrCreate(ctx, studentID, exam.CourseID)
	if err != nil {
		return nil, err
	}

	switch exam.Title {
	case models.TitleMidExam:
		result.MidExamScore = &score
		result.MidExamMaxScore = &maxScore
	case models.TitleFinalExam:
		result.FinalExamScore = &score
		result.FinalExamMaxScore = &maxScore
	default:
		// No dedicated column; the contribution joins the overall additively.
		result.ExtraScore += score
	}

	result.OverallScore = s.policy.Overall(result.MidExamScore, result.FinalExamScore, result.AssignmentScore) + result.ExtraScore
	result.Grade = GradeFor(result.OverallScore)

	if err := s.results.Upsert(ctx, result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store result")
	}

	s.logger.Info("result_updated",
		zap.String("student_id", studentID),
		zap.String("course_id", exam.CourseID),
		zap.String("exam_title", exam.Title),
		zap.Float64("overall", result.OverallScore),
		zap.String("grade", result.Grade),
	)
	return result, nil
}

// SetVisibility publishes or hides a result to its student.
func (s *ResultService) SetVisibility(ctx context.Context, claims *models.JWTClaims, resultID string, visible bool) error {
	if !claims.IsTeacher() {
		return appErrors.Clone(appErrors.ErrForbidden, "only teachers publish results")
	}
	if err := s.results.SetVisibility(ctx, resultID, visible, claims.UserID(), s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update visibility")
	}
	return nil
}

// ListByCourse returns every result of a course; teacher surface.
func (s *ResultService) ListByCourse(ctx context.Context, courseID string) ([]models.Result, error) {
	results, err := s.results.List(ctx, models.ResultFilter{CourseID: courseID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return results, nil
}

// ListVisibleForStudent returns the student's published results only.
func (s *ResultService) ListVisibleForStudent(ctx context.Context, studentID string) ([]models.Result, error) {
	results, err := s.results.List(ctx, models.ResultFilter{StudentID: studentID, VisibleOnly: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return results, nil
}

func (s *ResultService) examMaxScore(ctx context.Context, examID string) (float64, error) {
	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	var max float64
	for _, question := range questions {
		max += question.Weight
	}
	return max, nil
}

func (s *ResultService) loadOrCreate(ctx context.Context, studentID, courseID string) (*models.Result, error) {
	result, err := s.results.FindByStudentAndCourse(ctx, studentID, courseID)
	if err == nil {
		return result, nil
	}
	if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to load result for student %s", studentID))
	}
	return &models.Result{StudentID: studentID, CourseID: courseID}, nil
}
