package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-adp-api/internal/models"
)

// CatalogRepository reads classes and courses. Their CRUD lives in the admin
// surface; the exam core only resolves them for department and course checks.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// FindClass loads a class by id.
func (r *CatalogRepository) FindClass(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, department_id, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindCourse loads a course by id.
func (r *CatalogRepository) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, name, department_id, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListCourseStudents returns the ids of students enrolled in the course's
// classes; used by exports.
func (r *CatalogRepository) ListCourseStudents(ctx context.Context, courseID string) ([]string, error) {
	const query = `SELECT s.id FROM students s
        JOIN class_students cs ON cs.student_id = s.id
        JOIN schedules sc ON sc.class_id = cs.class_id
        WHERE sc.course_id = $1
        GROUP BY s.id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, courseID); err != nil {
		return nil, fmt.Errorf("list course students: %w", err)
	}
	return ids, nil
}
