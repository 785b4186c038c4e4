package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-adp-api/internal/models"
)

// AnswerRepository provides persistence for session answers.
type AnswerRepository struct {
	db *sqlx.DB
}

// NewAnswerRepository creates a new answer repository.
func NewAnswerRepository(db *sqlx.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// Upsert writes the latest selection for a (session, question) pair.
// Retried deliveries and changed minds both land here; the last write wins.
func (r *AnswerRepository) Upsert(ctx context.Context, answer *models.Answer) error {
	if answer.ID == "" {
		answer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if answer.CreatedAt.IsZero() {
		answer.CreatedAt = now
	}
	answer.UpdatedAt = now

	const query = `INSERT INTO answers (id, session_id, question_id, selected_option, created_at, updated_at)
        VALUES (:id, :session_id, :question_id, :selected_option, :created_at, :updated_at)
        ON CONFLICT (session_id, question_id)
        DO UPDATE SET selected_option = EXCLUDED.selected_option, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, answer); err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

// ListBySession returns every answer of a session.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Answer, error) {
	const query = `SELECT id, session_id, question_id, selected_option, created_at, updated_at FROM answers WHERE session_id = $1 ORDER BY created_at ASC`
	var answers []models.Answer
	if err := r.db.SelectContext(ctx, &answers, query, sessionID); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return answers, nil
}

// MapBySession returns a session's answers keyed by question id.
func (r *AnswerRepository) MapBySession(ctx context.Context, sessionID string) (map[string]models.Answer, error) {
	answers, err := r.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[string]models.Answer, len(answers))
	for _, answer := range answers {
		byQuestion[answer.QuestionID] = answer
	}
	return byQuestion, nil
}
