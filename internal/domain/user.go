package domain

import "time"

// User is an account able to authenticate: a client, a technician or an admin.
// A technician account shares its ID with the technician directory entry.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor returns the identity pair used by the services.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
