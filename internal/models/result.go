package models

import "time"

// Result aggregates a student's exam scores for one course. Max scores are
// weight sums over the exam's questions; the matching actual scores are raw
// correct counts. ExtraScore accumulates contributions from exam titles that
// have no dedicated column (quizzes) so recomputation stays deterministic.
type Result struct {
	ID                string     `db:"id" json:"id"`
	StudentID         string     `db:"student_id" json:"student_id"`
	CourseID          string     `db:"course_id" json:"course_id"`
	MidExamScore      *float64   `db:"mid_exam_score" json:"mid_exam_score,omitempty"`
	MidExamMaxScore   *float64   `db:"mid_exam_max_score" json:"mid_exam_max_score,omitempty"`
	FinalExamScore    *float64   `db:"final_exam_score" json:"final_exam_score,omitempty"`
	FinalExamMaxScore *float64   `db:"final_exam_max_score" json:"final_exam_max_score,omitempty"`
	AssignmentScore   *float64   `db:"assignment_score" json:"assignment_score,omitempty"`
	ExtraScore        float64    `db:"extra_score" json:"-"`
	OverallScore      float64    `db:"overall_score" json:"overall_score"`
	Grade             string     `db:"grade" json:"grade"`
	IsVisible         bool       `db:"is_visible" json:"is_visible"`
	MadeVisibleBy     *string    `db:"made_visible_by" json:"made_visible_by,omitempty"`
	MadeVisibleAt     *time.Time `db:"made_visible_at" json:"made_visible_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// ResultFilter scopes result listings.
type ResultFilter struct {
	CourseID    string
	StudentID   string
	VisibleOnly bool
}
