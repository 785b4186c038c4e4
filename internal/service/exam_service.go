package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-adp-api/internal/models"
	appErrors "github.com/noah-isme/exam-adp-api/pkg/errors"
)

type examRepository interface {
	List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error)
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	FindByClassAndTitle(ctx context.Context, classID, title string) (*models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	Delete(ctx context.Context, id string) error
}

type questionRepository interface {
	ListByExam(ctx context.Context, examID string) ([]models.Question, error)
	FindByID(ctx context.Context, id string) (*models.Question, error)
	ExistsByExamAndText(ctx context.Context, examID, text, excludeID string) (bool, error)
	Create(ctx context.Context, question *models.Question) error
	Update(ctx context.Context, question *models.Question) error
	Delete(ctx context.Context, id string) error
}

// CreateExamRequest describes payload for scheduling an exam.
type CreateExamRequest struct {
	CourseID        string    `json:"course_id" validate:"required"`
	ClassID         string    `json:"class_id" validate:"required"`
	Title           string    `json:"title" validate:"required"`
	StartTime       time.Time `json:"start_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
}

// UpdateExamRequest reschedules or retitles an exam.
type UpdateExamRequest struct {
	Title           string    `json:"title" validate:"required"`
	StartTime       time.Time `json:"start_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
}

// QuestionRequest describes payload for creating or updating a question.
type QuestionRequest struct {
	Text          string              `json:"text" validate:"required"`
	OptionA       string              `json:"option_a" validate:"required"`
	OptionB       string              `json:"option_b" validate:"required"`
	OptionC       string              `json:"option_c" validate:"required"`
	OptionD       string              `json:"option_d" validate:"required"`
	CorrectOption models.AnswerOption `json:"correct_option" validate:"required"`
	Weight        float64             `json:"weight"`
}

// ExamService manages exams and their questions for teachers.
type ExamService struct {
	exams     examRepository
	questions questionRepository
	catalog   departmentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService constructs ExamService.
func NewExamService(exams examRepository, questions questionRepository, catalog departmentReader, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{exams: exams, questions: questions, catalog: catalog, validator: validate, logger: logger}
}

// List returns exams with pagination metadata.
func (s *ExamService) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, *models.Pagination, error) {
	exams, total, err := s.exams.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return exams, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one exam.
func (s *ExamService) Get(ctx context.Context, id string) (*models.Exam, error) {
	return s.loadExam(ctx, id)
}

// Create schedules a new exam owned by the calling teacher. The (class,
// title) slot must be free.
func (s *ExamService) Create(ctx context.Context, claims *models.JWTClaims, req CreateExamRequest) (*models.Exam, error) {
	if !claims.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers create exams")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	if !allowedTitle(req.Title) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown exam title")
	}

	class, err := s.catalog.FindClass(ctx, req.ClassID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	course, err := s.catalog.FindCourse(ctx, req.CourseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if class.DepartmentID != course.DepartmentID {
		return nil, appErrors.ErrDepartmentMismatch
	}

	if err := s.ensureTitleSlotFree(ctx, req.ClassID, req.Title, ""); err != nil {
		return nil, err
	}

	exam := &models.Exam{
		CourseID:        req.CourseID,
		ClassID:         req.ClassID,
		TeacherID:       claims.TeacherID,
		Title:           req.Title,
		StartTime:       req.StartTime.UTC(),
		DurationMinutes: req.DurationMinutes,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	return exam, nil
}

// Update reschedules an exam; only its author may do so.
func (s *ExamService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	if !allowedTitle(req.Title) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown exam title")
	}

	exam, err := s.ownedExam(ctx, claims, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureTitleSlotFree(ctx, exam.ClassID, req.Title, exam.ID); err != nil {
		return nil, err
	}

	exam.Title = req.Title
	exam.StartTime = req.StartTime.UTC()
	exam.DurationMinutes = req.DurationMinutes
	if err := s.exams.Update(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam")
	}
	return exam, nil
}

// Delete removes an exam; only its author may do so.
func (s *ExamService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	if _, err := s.ownedExam(ctx, claims, id); err != nil {
		return err
	}
	if err := s.exams.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam")
	}
	return nil
}

// ListQuestions returns the full questions of an exam for its author.
func (s *ExamService) ListQuestions(ctx context.Context, claims *models.JWTClaims, examID string) ([]models.Question, error) {
	if _, err := s.ownedExam(ctx, claims, examID); err != nil {
		return nil, err
	}
	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list questions")
	}
	return questions, nil
}

// ListStudentQuestions returns the exam's questions with grading fields
// stripped. Callers gate this behind an open-window check.
func (s *ExamService) ListStudentQuestions(ctx context.Context, examID string) ([]models.StudentQuestion, error) {
	questions, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list questions")
	}
	stripped := make([]models.StudentQuestion, 0, len(questions))
	for i := range questions {
		stripped = append(stripped, questions[i].ForStudent())
	}
	return stripped, nil
}

// AddQuestion appends a question to an exam owned by the caller.
func (s *ExamService) AddQuestion(ctx context.Context, claims *models.JWTClaims, examID string, req QuestionRequest) (*models.Question, error) {
	if _, err := s.ownedExam(ctx, claims, examID); err != nil {
		return nil, err
	}
	question, err := s.buildQuestion(ctx, examID, "", req)
	if err != nil {
		return nil, err
	}
	if err := s.questions.Create(ctx, question); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create question")
	}
	return question, nil
}

// UpdateQuestion rewrites a question on an exam owned by the caller.
func (s *ExamService) UpdateQuestion(ctx context.Context, claims *models.JWTClaims, questionID string, req QuestionRequest) (*models.Question, error) {
	existing, err := s.questions.FindByID(ctx, questionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	if _, err := s.ownedExam(ctx, claims, existing.ExamID); err != nil {
		return nil, err
	}

	question, err := s.buildQuestion(ctx, existing.ExamID, existing.ID, req)
	if err != nil {
		return nil, err
	}
	question.ID = existing.ID
	question.CreatedAt = existing.CreatedAt
	if err := s.questions.Update(ctx, question); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update question")
	}
	return question, nil
}

// DeleteQuestion removes a question from an exam owned by the caller.
func (s *ExamService) DeleteQuestion(ctx context.Context, claims *models.JWTClaims, questionID string) error {
	existing, err := s.questions.FindByID(ctx, questionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	if _, err := s.ownedExam(ctx, claims, existing.ExamID); err != nil {
		return err
	}
	if err := s.questions.Delete(ctx, questionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete question")
	}
	return nil
}

func (s *ExamService) buildQuestion(ctx context.Context, examID, excludeID string, req QuestionRequest) (*models.Question, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}
	if !req.CorrectOption.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "correct option must be one of A, B, C, D")
	}
	weight := req.Weight
	if weight == 0 {
		weight = 1
	}
	if weight < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "weight must be positive")
	}

	duplicate, err := s.questions.ExistsByExamAndText(ctx, examID, req.Text, excludeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check question text")
	}
	if duplicate {
		return nil, appErrors.Clone(appErrors.ErrConflict, "question text already used in this exam")
	}

	return &models.Question{
		ExamID:        examID,
		Text:          req.Text,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		CorrectOption: req.CorrectOption,
		Weight:        weight,
	}, nil
}

func (s *ExamService) ensureTitleSlotFree(ctx context.Context, classID, title, excludeID string) error {
	existing, err := s.exams.FindByClassAndTitle(ctx, classID, title)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check exam title slot")
	}
	if existing.ID == excludeID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrConflict, "class already has an exam with this title")
}

func (s *ExamService) ownedExam(ctx context.Context, claims *models.JWTClaims, id string) (*models.Exam, error) {
	exam, err := s.loadExam(ctx, id)
	if err != nil {
		return nil, err
	}
	if !claims.IsTeacher() || claims.TeacherID != exam.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exam belongs to another teacher")
	}
	return exam, nil
}

func (s *ExamService) loadExam(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

func allowedTitle(title string) bool {
	for _, t := range models.AllowedTitles {
		if t == title {
			return true
		}
	}
	return false
}
