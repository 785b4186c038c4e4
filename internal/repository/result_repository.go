package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-adp-api/internal/models"
)

// ResultRepository provides persistence for per-course results.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new result repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

const resultColumns = "id, student_id, course_id, mid_exam_score, mid_exam_max_score, final_exam_score, final_exam_max_score, assignment_score, extra_score, overall_score, grade, is_visible, made_visible_by, made_visible_at, created_at, updated_at"

// FindByStudentAndCourse loads the result row for the pair.
func (r *ResultRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Result, error) {
	query := fmt.Sprintf("SELECT %s FROM results WHERE student_id = $1 AND course_id = $2", resultColumns)
	var result models.Result
	if err := r.db.GetContext(ctx, &result, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &result, nil
}

// Upsert writes the aggregate, keyed by (student, course). Visibility
// columns are deliberately not touched here; recomputation must never flip
// what a teacher has published.
func (r *ResultRepository) Upsert(ctx context.Context, result *models.Result) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now

	const query = `INSERT INTO results (id, student_id, course_id, mid_exam_score, mid_exam_max_score, final_exam_score, final_exam_max_score, assignment_score, extra_score, overall_score, grade, is_visible, made_visible_by, made_visible_at, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :mid_exam_score, :mid_exam_max_score, :final_exam_score, :final_exam_max_score, :assignment_score, :extra_score, :overall_score, :grade, :is_visible, :made_visible_by, :made_visible_at, :created_at, :updated_at)
        ON CONFLICT (student_id, course_id)
        DO UPDATE SET mid_exam_score = EXCLUDED.mid_exam_score,
            mid_exam_max_score = EXCLUDED.mid_exam_max_score,
            final_exam_score = EXCLUDED.final_exam_score,
            final_exam_max_score = EXCLUDED.final_exam_max_score,
            assignment_score = EXCLUDED.assignment_score,
            extra_score = EXCLUDED.extra_score,
            overall_score = EXCLUDED.overall_score,
            grade = EXCLUDED.grade,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}
	return nil
}

// SetVisibility publishes or hides a result, recording who flipped it.
func (r *ResultRepository) SetVisibility(ctx context.Context, id string, visible bool, actorID string, at time.Time) error {
	const query = `UPDATE results SET is_visible = $2, made_visible_by = $3, made_visible_at = $4, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, visible, actorID, at.UTC()); err != nil {
		return fmt.Errorf("set result visibility: %w", err)
	}
	return nil
}

// List returns results matching the filter.
func (r *ResultRepository) List(ctx context.Context, filter models.ResultFilter) ([]models.Result, error) {
	query := fmt.Sprintf("SELECT %s FROM results WHERE 1=1", resultColumns)
	var args []interface{}
	if filter.CourseID != "" {
		query += fmt.Sprintf(" AND course_id = $%d", len(args)+1)
		args = append(args, filter.CourseID)
	}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.VisibleOnly {
		query += " AND is_visible = TRUE"
	}
	query += " ORDER BY updated_at DESC"
	var results []models.Result
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}
