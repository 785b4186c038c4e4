package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-adp-api/internal/models"
)

// SessionRepository provides persistence for exam sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = "id, exam_id, student_id, started_at, submitted_at, score, created_at, updated_at"

// FindByID loads a session by id.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE id = $1", sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByExamAndStudent loads the session for the (exam, student) pair.
func (r *SessionRepository) FindByExamAndStudent(ctx context.Context, examID, studentID string) (*models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE exam_id = $1 AND student_id = $2", sessionColumns)
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, examID, studentID); err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateIfAbsent inserts the session unless the (exam, student) pair already
// holds one, then returns whichever row won. Concurrent first accesses by
// the same student therefore converge on a single session.
func (r *SessionRepository) CreateIfAbsent(ctx context.Context, session *models.Session) (*models.Session, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO sessions (id, exam_id, student_id, started_at, submitted_at, score, created_at, updated_at)
        VALUES (:id, :exam_id, :student_id, :started_at, :submitted_at, :score, :created_at, :updated_at)
        ON CONFLICT (exam_id, student_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	stored, err := r.FindByExamAndStudent(ctx, session.ExamID, session.StudentID)
	if err != nil {
		return nil, fmt.Errorf("refetch session: %w", err)
	}
	return stored, nil
}

// Finalize seals the session in one statement: submitted_at and score are
// set together and only while the session is still open, so a session can
// never be half-finalized and a second finalize never overwrites the first.
// sql.ErrNoRows is returned when the session was already submitted.
func (r *SessionRepository) Finalize(ctx context.Context, id string, submittedAt time.Time, score float64) (*models.Session, error) {
	const query = `UPDATE sessions
        SET submitted_at = $2, score = $3, updated_at = $2
        WHERE id = $1 AND submitted_at IS NULL
        RETURNING id, exam_id, student_id, started_at, submitted_at, score, created_at, updated_at`
	var session models.Session
	err := r.db.GetContext(ctx, &session, query, id, submittedAt.UTC(), score)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("finalize session: %w", err)
	}
	return &session, nil
}

// OverrideScore stamps a teacher-assigned score, sealing the session if it
// was still open.
func (r *SessionRepository) OverrideScore(ctx context.Context, id string, at time.Time, score float64) (*models.Session, error) {
	const query = `UPDATE sessions
        SET score = $3, submitted_at = COALESCE(submitted_at, $2), updated_at = $2
        WHERE id = $1
        RETURNING id, exam_id, student_id, started_at, submitted_at, score, created_at, updated_at`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id, at.UTC(), score); err != nil {
		return nil, fmt.Errorf("override session score: %w", err)
	}
	return &session, nil
}

// ListByExam returns every session of an exam.
func (r *SessionRepository) ListByExam(ctx context.Context, examID string) ([]models.Session, error) {
	query := fmt.Sprintf("SELECT %s FROM sessions WHERE exam_id = $1 ORDER BY started_at ASC", sessionColumns)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, examID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Delete removes a session; administrative use only.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
