package store

import (
	"context"
	"fmt"

	"github.com/rpdevelops/data-ingestion-api/internal/ingest"
	"github.com/rpdevelops/data-ingestion-api/internal/model"
)

const contactColumns = `contact_id, staging_id, contacts_user_id, contact_email,
	contact_first_name, contact_last_name, contact_company, contact_created_at`

// ListContacts returns the owner's promoted contacts, newest first.
func (s *Store) ListContacts(ctx context.Context, userID string) ([]model.Contact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE contacts_user_id = $1
		ORDER BY contact_created_at DESC, contact_id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	out := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		err := rows.Scan(
			&c.ContactID, &c.StagingID, &c.UserID, &c.Email,
			&c.FirstName, &c.LastName, &c.Company, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetContactByEmail looks up one of the owner's contacts by exact email.
func (s *Store) GetContactByEmail(ctx context.Context, userID, email string) (*model.Contact, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE contacts_user_id = $1 AND contact_email = $2`,
		userID, email,
	)

	var c model.Contact
	err := row.Scan(
		&c.ContactID, &c.StagingID, &c.UserID, &c.Email,
		&c.FirstName, &c.LastName, &c.Company, &c.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, ingest.ErrNotFound
		}
		return nil, fmt.Errorf("get contact by email: %w", err)
	}
	return &c, nil
}
