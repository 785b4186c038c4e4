package models

import "time"

// Days of the week accepted on schedules.
var DaysOfWeek = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

// ValidDay reports whether day is one of the seven recognized names.
func ValidDay(day string) bool {
	for _, d := range DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}

// Schedule is a weekly class slot in a room. Start and end are minutes since
// midnight; the interval is half-open. DepartmentID is denormalized and must
// equal both the class's and the course's department.
type Schedule struct {
	ID           string    `db:"id" json:"id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Room         string    `db:"room" json:"room"`
	DayOfWeek    string    `db:"day_of_week" json:"day_of_week"`
	StartMinute  int       `db:"start_minute" json:"start_minute"`
	EndMinute    int       `db:"end_minute" json:"end_minute"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	ClassID   string
	CourseID  string
	Room      string
	DayOfWeek string
	Page      int
	PageSize  int
}

// ScheduleConflict describes an existing schedule that blocks a proposal.
type ScheduleConflict struct {
	ScheduleID  string `json:"schedule_id"`
	ClassID     string `json:"class_id"`
	CourseID    string `json:"course_id"`
	Room        string `json:"room"`
	DayOfWeek   string `json:"day_of_week"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

// ScheduleConflictError is returned when a proposal collides with an
// existing slot.
type ScheduleConflictError struct {
	Message  string           `json:"message"`
	Conflict ScheduleConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
