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

type stubExamReader struct {
	exams map[string]*models.Exam
}

func (s *stubExamReader) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	if exam, ok := s.exams[id]; ok {
		return exam, nil
	}
	return nil, sql.ErrNoRows
}

type stubSessionStore struct {
	sessions map[string]*models.Session // keyed exam|student
	created  int
}

func (s *stubSessionStore) key(examID, studentID string) string {
	return examID + "|" + studentID
}

func (s *stubSessionStore) FindByExamAndStudent(ctx context.Context, examID, studentID string) (*models.Session, error) {
	if session, ok := s.sessions[s.key(examID, studentID)]; ok {
		return session, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubSessionStore) CreateIfAbsent(ctx context.Context, session *models.Session) (*models.Session, error) {
	if s.sessions == nil {
		s.sessions = map[string]*models.Session{}
	}
	key := s.key(session.ExamID, session.StudentID)
	if existing, ok := s.sessions[key]; ok {
		return existing, nil
	}
	session.ID = "session-" + session.StudentID
	s.sessions[key] = session
	s.created++
	return session, nil
}

func examStartingAt(start time.Time) *models.Exam {
	return &models.Exam{
		ID:              "exam1",
		CourseID:        "course1",
		ClassID:         "class1",
		TeacherID:       "teacher1",
		Title:           models.TitleMidExam,
		StartTime:       start,
		DurationMinutes: 60,
	}
}

func studentClaims(studentID string) *models.JWTClaims {
	claims := &models.JWTClaims{Role: models.RoleStudent, StudentID: studentID}
	claims.Subject = "user-" + studentID
	return claims
}

func teacherClaims(teacherID string) *models.JWTClaims {
	claims := &models.JWTClaims{Role: models.RoleTeacher, TeacherID: teacherID}
	claims.Subject = "user-" + teacherID
	return claims
}

func TestDecideWindowStates(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	exam := examStartingAt(start)
	submitted := time.Now()

	cases := []struct {
		name    string
		session *models.Session
		now     time.Time
		grace   time.Duration
		want    models.AccessStatus
	}{
		{"one minute early without grace", nil, start.Add(-time.Minute), 0, models.AccessNotYetOpen},
		{"one minute early with small grace", nil, start.Add(-time.Minute), 5 * time.Second, models.AccessNotYetOpen},
		{"within grace", nil, start.Add(-3 * time.Second), 5 * time.Second, models.AccessOpen},
		{"exactly at start", nil, start, 0, models.AccessOpen},
		{"one minute before end", nil, start.Add(59 * time.Minute), 0, models.AccessOpen},
		{"exactly at end", nil, start.Add(60 * time.Minute), 0, models.AccessClosed},
		{"after end", nil, start.Add(90 * time.Minute), 0, models.AccessClosed},
		{"submitted during window", &models.Session{SubmittedAt: &submitted}, start.Add(10 * time.Minute), 0, models.AccessAlreadySubmitted},
		{"submitted after close", &models.Session{SubmittedAt: &submitted}, start.Add(90 * time.Minute), 0, models.AccessAlreadySubmitted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := Decide(exam, tc.session, tc.now, tc.grace)
			assert.Equal(t, tc.want, state.Status)
		})
	}
}

func TestDecideCountdownHints(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	exam := examStartingAt(start)

	early := Decide(exam, nil, start.Add(-time.Minute), 0)
	assert.Equal(t, int64(60), early.SecondsToStart)

	open := Decide(exam, nil, start.Add(30*time.Minute), 0)
	assert.Equal(t, int64(1800), open.SecondsRemaining)
}

// A session never moves backwards: once submitted it reads as submitted no
// matter where the window is.
func TestDecideSubmittedBeatsClosed(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	exam := examStartingAt(start)
	submitted := start.Add(50 * time.Minute)
	session := &models.Session{SubmittedAt: &submitted}

	state := Decide(exam, session, start.Add(2*time.Hour), 0)
	assert.Equal(t, models.AccessAlreadySubmitted, state.Status)
}

func TestAccessCreatesSessionLazily(t *testing.T) {
	exam := examStartingAt(time.Now().Add(-10 * time.Minute))
	exams := &stubExamReader{exams: map[string]*models.Exam{exam.ID: exam}}
	sessions := &stubSessionStore{}
	svc := NewAccessService(exams, sessions, nil, 5*time.Second, time.Minute, zap.NewNop())

	state, err := svc.Access(context.Background(), studentClaims("stu1"), exam.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccessOpen, state.Status)
	require.NotNil(t, state.Session)
	assert.Equal(t, 1, sessions.created)

	// A repeat access reuses the session.
	again, err := svc.Access(context.Background(), studentClaims("stu1"), exam.ID)
	require.NoError(t, err)
	assert.Equal(t, state.Session.ID, again.Session.ID)
	assert.Equal(t, 1, sessions.created)
}

func TestAccessBeforeOpenCreatesNoSession(t *testing.T) {
	exam := examStartingAt(time.Now().Add(time.Hour))
	exams := &stubExamReader{exams: map[string]*models.Exam{exam.ID: exam}}
	sessions := &stubSessionStore{}
	svc := NewAccessService(exams, sessions, nil, 0, time.Minute, zap.NewNop())

	state, err := svc.Access(context.Background(), studentClaims("stu1"), exam.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccessNotYetOpen, state.Status)
	assert.Nil(t, state.Session)
	assert.Equal(t, 0, sessions.created)
}

func TestAccessTeacherRules(t *testing.T) {
	exam := examStartingAt(time.Now().Add(time.Hour))
	exams := &stubExamReader{exams: map[string]*models.Exam{exam.ID: exam}}
	svc := NewAccessService(exams, &stubSessionStore{}, nil, 0, time.Minute, zap.NewNop())

	state, err := svc.Access(context.Background(), teacherClaims("teacher1"), exam.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccessOpen, state.Status)

	_, err = svc.Access(context.Background(), teacherClaims("other"), exam.ID)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestAccessUnknownExam(t *testing.T) {
	svc := NewAccessService(&stubExamReader{}, &stubSessionStore{}, nil, 0, time.Minute, zap.NewNop())

	_, err := svc.Access(context.Background(), studentClaims("stu1"), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestRequireOpenErrorMapping(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name  string
		start time.Time
		seal  bool
		want  *appErrors.Error
	}{
		{"not yet open", now.Add(time.Hour), false, appErrors.ErrExamNotOpen},
		{"closed", now.Add(-2 * time.Hour), false, appErrors.ErrExamClosed},
		{"already submitted", now.Add(-10 * time.Minute), true, appErrors.ErrAlreadySubmitted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exam := examStartingAt(tc.start)
			exams := &stubExamReader{exams: map[string]*models.Exam{exam.ID: exam}}
			sessions := &stubSessionStore{}
			if tc.seal {
				sealed := now
				sessions.sessions = map[string]*models.Session{
					"exam1|stu1": {ID: "s1", ExamID: exam.ID, StudentID: "stu1", SubmittedAt: &sealed},
				}
			}
			svc := NewAccessService(exams, sessions, nil, 0, time.Minute, zap.NewNop())

			_, err := svc.RequireOpen(context.Background(), studentClaims("stu1"), exam.ID)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, tc.want))
		})
	}
}

func TestRequireOpenReturnsSession(t *testing.T) {
	exam := examStartingAt(time.Now().Add(-5 * time.Minute))
	exams := &stubExamReader{exams: map[string]*models.Exam{exam.ID: exam}}
	svc := NewAccessService(exams, &stubSessionStore{}, nil, 0, time.Minute, zap.NewNop())

	session, err := svc.RequireOpen(context.Background(), studentClaims("stu1"), exam.ID)
	require.NoError(t, err)
	assert.Equal(t, "stu1", session.StudentID)
}
