// internal/model/submission.go
package model

import "time"

// Submission is a contact-form row. This service only ever reads it.
type Submission struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Message   string    `db:"message" json:"message"`
	Service   string    `db:"service" json:"service"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PhoneOrEmpty returns the phone number or "" when none was given.
func (s Submission) PhoneOrEmpty() string {
	if s.Phone == nil {
		return ""
	}
	return *s.Phone
}
