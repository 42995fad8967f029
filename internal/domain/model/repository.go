package model

import "time"

// Repository is a GitHub repository visible to the authenticated user.
type Repository struct {
	Owner        string
	Name         string
	LastPushedAt time.Time
}

// FullName returns the "owner/name" form of the repository.
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}
