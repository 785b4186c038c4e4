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

type sessionWriter interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Finalize(ctx context.Context, id string, submittedAt time.Time, score float64) (*models.Session, error)
	OverrideScore(ctx context.Context, id string, at time.Time, score float64) (*models.Session, error)
}

type questionLister interface {
	ListByExam(ctx context.Context, examID string) ([]models.Question, error)
}

type answerStore interface {
	Upsert(ctx context.Context, answer *models.Answer) error
	MapBySession(ctx context.Context, sessionID string) (map[string]models.Answer, error)
}

type resultApplier interface {
	ApplyExamScore(ctx context.Context, studentID string, exam *models.Exam, score float64) (*models.Result, error)
}

// AnswerBarrier is the synchronization point between the ingestion channel
// and finalization: WaitFlushed returns once every answer received for the
// session has been durably written and acknowledged. It replaces any
// wall-clock delay.
type AnswerBarrier interface {
	WaitFlushed(ctx context.Context, sessionID string) error
}

type finalizationObserver interface {
	ObserveFinalization(kind string)
}

// SubmitAnswerRequest is one answer write, from the websocket channel or the
// REST fallback.
type SubmitAnswerRequest struct {
	SessionID      string              `json:"session_id" validate:"required"`
	QuestionID     string              `json:"question_id" validate:"required"`
	SelectedOption models.AnswerOption `json:"selected_option" validate:"required"`
}

// SessionService seals sessions into deterministic scores and records
// answer writes.
type SessionService struct {
	sessions  sessionWriter
	exams     examReader
	questions questionLister
	answers   answerStore
	results   resultApplier
	barrier   AnswerBarrier
	metrics   finalizationObserver
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionService constructs SessionService. barrier may be nil in
// REST-only deployments; finalize then reads whatever is stored.
func NewSessionService(sessions sessionWriter, exams examReader, questions questionLister, answers answerStore, results resultApplier, barrier AnswerBarrier, metrics finalizationObserver, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		sessions:  sessions,
		exams:     exams,
		questions: questions,
		answers:   answers,
		results:   results,
		barrier:   barrier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// SetBarrier installs the flush barrier after construction. The ingestion
// channel consumes this service, so the two are wired in two steps.
func (s *SessionService) SetBarrier(barrier AnswerBarrier) {
	s.barrier = barrier
}

// SubmitAnswer upserts one answer. Writes are accepted even after the window
// closes or the session is sealed; those land for audit and never change a
// computed score.
func (s *SessionService) SubmitAnswer(ctx context.Context, claims *models.JWTClaims, req SubmitAnswerRequest) (*models.Answer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid answer payload")
	}
	if !req.SelectedOption.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "selected option must be one of A, B, C, D")
	}

	session, err := s.loadSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if claims.StudentID == "" || claims.StudentID != session.StudentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another student")
	}

	now := s.now()
	answer := &models.Answer{
		SessionID:      session.ID,
		QuestionID:     req.QuestionID,
		SelectedOption: req.SelectedOption,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.answers.Upsert(ctx, answer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store answer")
	}
	return answer, nil
}

// Finalize seals a session. With an explicit score the exam's teacher
// overrides any computation. Without one the session's answers are scored as
// a raw correct count after the ingestion channel has flushed. Repeating a
// finalize without an explicit score returns the stored session unchanged.
func (s *SessionService) Finalize(ctx context.Context, claims *models.JWTClaims, sessionID string, explicitScore *float64) (*models.Session, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	exam, err := s.exams.FindByID(ctx, session.ExamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	if explicitScore != nil {
		if !claims.IsTeacher() || claims.TeacherID != exam.TeacherID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the exam's teacher may set a score")
		}
		sealed, err := s.sessions.OverrideScore(ctx, session.ID, s.now(), *explicitScore)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to override score")
		}
		s.applyResult(ctx, exam, sealed)
		if s.metrics != nil {
			s.metrics.ObserveFinalization("override")
		}
		return sealed, nil
	}

	if claims.StudentID == "" || claims.StudentID != session.StudentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session belongs to another student")
	}
	if session.Submitted() {
		return session, nil
	}

	// Every answer acknowledged to this client must be durable before the
	// answer set is read. This is a real barrier, not a delay.
	if s.barrier != nil {
		if err := s.barrier.WaitFlushed(ctx, session.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flush answer channel")
		}
	}

	score, err := s.computeScore(ctx, exam, session.ID)
	if err != nil {
		return nil, err
	}

	sealed, err := s.sessions.Finalize(ctx, session.ID, s.now(), score)
	if err == sql.ErrNoRows {
		// Lost a race against another finalize; the stored row wins.
		return s.loadSession(ctx, session.ID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize session")
	}

	s.logger.Info("session_finalized",
		zap.String("session_id", sealed.ID),
		zap.String("exam_id", exam.ID),
		zap.Float64("score", score),
	)

	s.applyResult(ctx, exam, sealed)
	if s.metrics != nil {
		s.metrics.ObserveFinalization("scored")
	}
	return sealed, nil
}

// computeScore counts questions whose stored answer matches the correct
// option. Answers last written at or after the window's end are audit rows
// and do not count. Question weights deliberately do not factor in here.
func (s *SessionService) computeScore(ctx context.Context, exam *models.Exam, sessionID string) (float64, error) {
	questions, err := s.questions.ListByExam(ctx, exam.ID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	answers, err := s.answers.MapBySession(ctx, sessionID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load answers")
	}

	windowEnd := exam.EndTime()
	var score float64
	for _, question := range questions {
		answer, ok := answers[question.ID]
		if !ok || !answer.UpdatedAt.Before(windowEnd) {
			continue
		}
		if answer.SelectedOption == question.CorrectOption {
			score++
		}
	}
	return score, nil
}

func (s *SessionService) applyResult(ctx context.Context, exam *models.Exam, session *models.Session) {
	if s.results == nil || session.Score == nil {
		return
	}
	if _, err := s.results.ApplyExamScore(ctx, session.StudentID, exam, *session.Score); err != nil {
		// The session is sealed either way; the aggregate can be repaired by
		// re-running finalize with an explicit score.
		s.logger.Error("result_apply_failed",
			zap.String("session_id", session.ID),
			zap.String("student_id", session.StudentID),
			zap.Error(err),
		)
	}
}

func (s *SessionService) loadSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}
