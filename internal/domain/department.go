package domain

import "time"

// Department is an organizational unit with a membership list. Membership is
// externally mutable configuration and is re-read on every check rather than
// cached across a workflow.
type Department struct {
	ID        string
	Name      string
	Members   []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasMember reports whether the user belongs to the department.
func (d *Department) HasMember(userID string) bool {
	for _, member := range d.Members {
		if member == userID {
			return true
		}
	}
	return false
}
