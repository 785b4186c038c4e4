package models

import "time"

// Session is one student's single attempt at one exam. It is created lazily
// on first access inside the open window and sealed exactly once by
// finalization.
type Session struct {
	ID          string     `db:"id" json:"id"`
	ExamID      string     `db:"exam_id" json:"exam_id"`
	StudentID   string     `db:"student_id" json:"student_id"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	SubmittedAt *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	Score       *float64   `db:"score" json:"score,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Submitted reports whether the session has been finalized.
func (s *Session) Submitted() bool {
	return s != nil && s.SubmittedAt != nil
}

// Answer is the latest selection for one question within a session. Repeated
// writes overwrite in place; rows written after finalization remain for audit
// but never change the stored score.
type Answer struct {
	ID             string       `db:"id" json:"id"`
	SessionID      string       `db:"session_id" json:"session_id"`
	QuestionID     string       `db:"question_id" json:"question_id"`
	SelectedOption AnswerOption `db:"selected_option" json:"selected_option"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// AccessStatus is the outcome of evaluating an exam window for a student.
type AccessStatus string

const (
	AccessNotYetOpen       AccessStatus = "NOT_YET_OPEN"
	AccessOpen             AccessStatus = "OPEN"
	AccessClosed           AccessStatus = "CLOSED"
	AccessAlreadySubmitted AccessStatus = "ALREADY_SUBMITTED"
)

// AccessState describes the decision for one access attempt. Session is set
// only when the status is Open; SecondsToStart/SecondsRemaining are hints for
// the client and carry no correctness weight.
type AccessState struct {
	Status           AccessStatus `json:"status"`
	ExamID           string       `json:"exam_id"`
	Session          *Session     `json:"session,omitempty"`
	SecondsToStart   int64        `json:"seconds_to_start,omitempty"`
	SecondsRemaining int64        `json:"seconds_remaining,omitempty"`
}
