package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-adp-api/internal/models"
)

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sessionRows(id string, submittedAt *time.Time, score *float64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "exam_id", "student_id", "started_at", "submitted_at", "score", "created_at", "updated_at"}).
		AddRow(id, "exam-1", "stu-1", now, submittedAt, score, now, now)
}

func TestSessionRepositoryCreateIfAbsent(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, exam_id, student_id")).
		WithArgs("exam-1", "stu-1").
		WillReturnRows(sessionRows("sess-1", nil, nil))

	session, err := repo.CreateIfAbsent(context.Background(), &models.Session{ExamID: "exam-1", StudentID: "stu-1"})
	require.NoError(t, err)
	require.Equal(t, "sess-1", session.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryCreateIfAbsentLosesRace(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	// The insert hits ON CONFLICT DO NOTHING; the refetch returns the winner.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, exam_id, student_id")).
		WithArgs("exam-1", "stu-1").
		WillReturnRows(sessionRows("winner", nil, nil))

	session, err := repo.CreateIfAbsent(context.Background(), &models.Session{ExamID: "exam-1", StudentID: "stu-1"})
	require.NoError(t, err)
	require.Equal(t, "winner", session.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFinalize(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	at := time.Now().UTC()
	score := 3.0
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE sessions")).
		WithArgs("sess-1", at, score).
		WillReturnRows(sessionRows("sess-1", &at, &score))

	session, err := repo.Finalize(context.Background(), "sess-1", at, score)
	require.NoError(t, err)
	require.NotNil(t, session.SubmittedAt)
	require.Equal(t, 3.0, *session.Score)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryFinalizeAlreadySubmitted(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	at := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE sessions")).
		WithArgs("sess-1", at, 3.0).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Finalize(context.Background(), "sess-1", at, 3)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryOverrideScore(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	at := time.Now().UTC()
	score := 4.5
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE sessions")).
		WithArgs("sess-1", at, score).
		WillReturnRows(sessionRows("sess-1", &at, &score))

	session, err := repo.OverrideScore(context.Background(), "sess-1", at, score)
	require.NoError(t, err)
	require.Equal(t, 4.5, *session.Score)
	require.NoError(t, mock.ExpectationsWereMet())
}
