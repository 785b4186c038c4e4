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

type examReader interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
}

type sessionStore interface {
	FindByExamAndStudent(ctx context.Context, examID, studentID string) (*models.Session, error)
	CreateIfAbsent(ctx context.Context, session *models.Session) (*models.Session, error)
}

type metadataCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// AccessService decides, per student and per instant, whether an exam is
// currently accessible, and lazily opens the student's session when it is.
type AccessService struct {
	exams    examReader
	sessions sessionStore
	cache    metadataCache
	grace    time.Duration
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewAccessService constructs AccessService. grace widens the window start
// to absorb client clock skew; zero disables it.
func NewAccessService(exams examReader, sessions sessionStore, cache metadataCache, grace, cacheTTL time.Duration, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{
		exams:    exams,
		sessions: sessions,
		cache:    cache,
		grace:    grace,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Decide evaluates the window for one access attempt. It is a pure function
// of its inputs. Precedence: a submitted session always reads as
// AlreadySubmitted; after that a closed window beats an open one.
func Decide(exam *models.Exam, session *models.Session, now time.Time, grace time.Duration) models.AccessState {
	state := models.AccessState{ExamID: exam.ID}
	start := exam.StartTime.Add(-grace)
	end := exam.EndTime()

	switch {
	case session.Submitted():
		state.Status = models.AccessAlreadySubmitted
	case !now.Before(end):
		state.Status = models.AccessClosed
	case now.Before(start):
		state.Status = models.AccessNotYetOpen
		state.SecondsToStart = int64(exam.StartTime.Sub(now) / time.Second)
	default:
		state.Status = models.AccessOpen
		state.Session = session
		state.SecondsRemaining = int64(end.Sub(now) / time.Second)
	}
	return state
}

// Access evaluates the exam window for the caller and, when the window is
// open for a student, creates or fetches their session.
func (s *AccessService) Access(ctx context.Context, claims *models.JWTClaims, examID string) (*models.AccessState, error) {
	exam, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	// Authors see their own exam at any time; other teachers never do.
	if claims.IsTeacher() {
		if claims.TeacherID != exam.TeacherID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "exam belongs to another teacher")
		}
		return &models.AccessState{Status: models.AccessOpen, ExamID: exam.ID}, nil
	}

	if !claims.IsStudent() || claims.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may take exams")
	}

	session, err := s.findSession(ctx, exam.ID, claims.StudentID)
	if err != nil {
		return nil, err
	}

	state := Decide(exam, session, s.now(), s.grace)
	if state.Status == models.AccessOpen && session == nil {
		created, err := s.sessions.CreateIfAbsent(ctx, &models.Session{
			ExamID:    exam.ID,
			StudentID: claims.StudentID,
			StartedAt: s.now().UTC(),
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open session")
		}
		s.logger.Info("session_opened",
			zap.String("exam_id", exam.ID),
			zap.String("student_id", claims.StudentID),
			zap.String("session_id", created.ID),
		)
		state.Session = created
	}
	return &state, nil
}

// RequireOpen returns the caller's open session, or the terminal error
// matching the window state. The realtime handshake uses this as its gate.
func (s *AccessService) RequireOpen(ctx context.Context, claims *models.JWTClaims, examID string) (*models.Session, error) {
	state, err := s.Access(ctx, claims, examID)
	if err != nil {
		return nil, err
	}
	switch state.Status {
	case models.AccessOpen:
		if state.Session == nil {
			// Teacher preview: no session backs the channel.
			return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers do not hold exam sessions")
		}
		return state.Session, nil
	case models.AccessNotYetOpen:
		return nil, appErrors.Clone(appErrors.ErrExamNotOpen, fmt.Sprintf("exam opens in %ds", state.SecondsToStart))
	case models.AccessAlreadySubmitted:
		return nil, appErrors.ErrAlreadySubmitted
	default:
		return nil, appErrors.ErrExamClosed
	}
}

// Exam resolves exam metadata through the cache.
func (s *AccessService) Exam(ctx context.Context, examID string) (*models.Exam, error) {
	return s.loadExam(ctx, examID)
}

func (s *AccessService) loadExam(ctx context.Context, examID string) (*models.Exam, error) {
	key := "exam:" + examID
	if s.cache != nil {
		var cached models.Exam
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, exam, s.cacheTTL); err != nil {
			s.logger.Warn("exam_cache_set_failed", zap.String("exam_id", examID), zap.Error(err))
		}
	}
	return exam, nil
}

func (s *AccessService) findSession(ctx context.Context, examID, studentID string) (*models.Session, error) {
	session, err := s.sessions.FindByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}
