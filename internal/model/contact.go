package model

import "time"

// Contact is a clean row promoted from staging by the external worker.
type Contact struct {
	ContactID int64 `json:"contact_id"`
	// StagingID points at the originating staging row. It survives job
	// deletion as a plain value, not a foreign key.
	StagingID *int64    `json:"staging_id"`
	UserID    string    `json:"contacts_user_id"`
	Email     string    `json:"contact_email"`
	FirstName string    `json:"contact_first_name"`
	LastName  string    `json:"contact_last_name"`
	Company   string    `json:"contact_company"`
	CreatedAt time.Time `json:"contact_created_at"`
}
