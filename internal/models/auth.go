package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates the roles issued by the identity provider.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// JWTClaims is the identity attached to each request. Tokens are issued by
// the external auth system; this service only validates and reads them.
type JWTClaims struct {
	jwt.RegisteredClaims
	Role      UserRole `json:"role"`
	TeacherID string   `json:"teacher_id,omitempty"`
	StudentID string   `json:"student_id,omitempty"`
}

// UserID returns the subject claim.
func (c *JWTClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// IsTeacher reports whether the claims belong to a teacher account.
func (c *JWTClaims) IsTeacher() bool {
	return c != nil && c.Role == RoleTeacher
}

// IsStudent reports whether the claims belong to a student account.
func (c *JWTClaims) IsStudent() bool {
	return c != nil && c.Role == RoleStudent
}
