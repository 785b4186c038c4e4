package models

import "time"

// Recognized exam titles. Mid and final exams feed dedicated result columns;
// any other recognized title contributes to the overall score only.
const (
	TitleMidExam   = "Mid-exam"
	TitleFinalExam = "Final-exam"
	TitleQuiz      = "Quiz"
)

// AllowedTitles lists every accepted exam title.
var AllowedTitles = []string{TitleMidExam, TitleFinalExam, TitleQuiz}

// Exam represents a scheduled exam for a class. The end of the window is
// derived from start + duration and never stored.
type Exam struct {
	ID              string    `db:"id" json:"id"`
	CourseID        string    `db:"course_id" json:"course_id"`
	ClassID         string    `db:"class_id" json:"class_id"`
	TeacherID       string    `db:"teacher_id" json:"teacher_id"`
	Title           string    `db:"title" json:"title"`
	StartTime       time.Time `db:"start_time" json:"start_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// EndTime returns the exclusive end of the exam window.
func (e *Exam) EndTime() time.Time {
	return e.StartTime.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// ExamFilter describes query params for listing exams.
type ExamFilter struct {
	CourseID  string
	ClassID   string
	TeacherID string
	Title     string
	Page      int
	PageSize  int
}

// AnswerOption is one of the four choices on a question.
type AnswerOption string

const (
	OptionA AnswerOption = "A"
	OptionB AnswerOption = "B"
	OptionC AnswerOption = "C"
	OptionD AnswerOption = "D"
)

// Valid reports whether the option is one of A-D.
func (o AnswerOption) Valid() bool {
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// Question belongs to exactly one exam. Weight is the point value used for
// result-level max scores; exam scores themselves count correct answers.
type Question struct {
	ID            string       `db:"id" json:"id"`
	ExamID        string       `db:"exam_id" json:"exam_id"`
	Text          string       `db:"text" json:"text"`
	OptionA       string       `db:"option_a" json:"option_a"`
	OptionB       string       `db:"option_b" json:"option_b"`
	OptionC       string       `db:"option_c" json:"option_c"`
	OptionD       string       `db:"option_d" json:"option_d"`
	CorrectOption AnswerOption `db:"correct_option" json:"correct_option"`
	Weight        float64      `db:"weight" json:"weight"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// StudentQuestion is the question shape served to exam takers: no correct
// option, no weight.
type StudentQuestion struct {
	ID      string `json:"id"`
	ExamID  string `json:"exam_id"`
	Text    string `json:"text"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c"`
	OptionD string `json:"option_d"`
}

// ForStudent strips grading fields from a question.
func (q *Question) ForStudent() StudentQuestion {
	return StudentQuestion{
		ID:      q.ID,
		ExamID:  q.ExamID,
		Text:    q.Text,
		OptionA: q.OptionA,
		OptionB: q.OptionB,
		OptionC: q.OptionC,
		OptionD: q.OptionD,
	}
}
