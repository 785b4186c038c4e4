package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-adp-api/internal/models"
)

// QuestionRepository provides persistence for exam questions.
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository creates a new question repository.
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

const questionColumns = "id, exam_id, text, option_a, option_b, option_c, option_d, correct_option, weight, created_at, updated_at"

// ListByExam returns all questions of an exam in insertion order.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID string) ([]models.Question, error) {
	query := fmt.Sprintf("SELECT %s FROM questions WHERE exam_id = $1 ORDER BY created_at ASC", questionColumns)
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, query, examID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// FindByID loads a question by id.
func (r *QuestionRepository) FindByID(ctx context.Context, id string) (*models.Question, error) {
	query := fmt.Sprintf("SELECT %s FROM questions WHERE id = $1", questionColumns)
	var question models.Question
	if err := r.db.GetContext(ctx, &question, query, id); err != nil {
		return nil, err
	}
	return &question, nil
}

// ExistsByExamAndText reports whether the exam already has a question with
// the given text.
func (r *QuestionRepository) ExistsByExamAndText(ctx context.Context, examID, text, excludeID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM questions WHERE exam_id = $1 AND text = $2 AND id <> $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, examID, text, excludeID); err != nil {
		return false, fmt.Errorf("check question text: %w", err)
	}
	return count > 0, nil
}

// Create stores a new question record.
func (r *QuestionRepository) Create(ctx context.Context, question *models.Question) error {
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if question.CreatedAt.IsZero() {
		question.CreatedAt = now
	}
	question.UpdatedAt = now

	const query = `INSERT INTO questions (id, exam_id, text, option_a, option_b, option_c, option_d, correct_option, weight, created_at, updated_at)
        VALUES (:id, :exam_id, :text, :option_a, :option_b, :option_c, :option_d, :correct_option, :weight, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, question); err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	return nil
}

// Update modifies a question record.
func (r *QuestionRepository) Update(ctx context.Context, question *models.Question) error {
	question.UpdatedAt = time.Now().UTC()
	const query = `UPDATE questions SET text = :text, option_a = :option_a, option_b = :option_b, option_c = :option_c, option_d = :option_d, correct_option = :correct_option, weight = :weight, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, question); err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return nil
}

// Delete removes a question by id.
func (r *QuestionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}
