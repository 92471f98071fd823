package domain

import "strings"

// Employee is an HRMS record. Only active employees are in scope.
type Employee struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	JobTitle  string
}

// FullName joins first and last name, skipping blanks.
func (e Employee) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(e.FirstName) + " " + strings.TrimSpace(e.LastName))
}

// RoleOrUnknown returns the job title, or "Unknown" when none is recorded.
func (e Employee) RoleOrUnknown() string {
	if t := strings.TrimSpace(e.JobTitle); t != "" {
		return t
	}
	return "Unknown"
}

// Assignee is a user of the task tracker that tasks are handed to.
type Assignee struct {
	ID       int64
	Username string
	RealName string
	Email    string
}

// NormalizeEmail is the join key between employees and assignees.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SameEmail reports whether two addresses name the same identity.
func SameEmail(a, b string) bool {
	na := NormalizeEmail(a)
	return na != "" && na == NormalizeEmail(b)
}
