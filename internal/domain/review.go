package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a client's rating of the technician bound to one of its tickets.
// At most one exists per (ticket, technician) pair.
type Review struct {
	ID           string
	TicketID     string
	TechnicianID string
	ClientID     string
	Rating       int
	Comment      *string
	CreatedAt    time.Time
}

// ValidRating reports whether rating is within [MinRating, MaxRating].
func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}
