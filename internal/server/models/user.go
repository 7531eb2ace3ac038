package models

import "time"

type User struct {
	ID           string
	UserName     string
	DisplayName  string
	PasswordHash []byte
	Roles        []string
	CreatedAt    time.Time
}

// Identity is what the identity provider vouches for after a successful
// credential check.
type Identity struct {
	SubjectID   string
	DisplayName string
	Roles       []string
}
