package models

// Household is a set of users who share expenses.
type Household struct {
	// ID is the unique identifier for the household (UUID format).
	ID string

	// Name is the display name (e.g., "Flat 3B").
	Name string

	// JoinCode is the short code other users enter to join.
	JoinCode string

	// OwnerID is the user who created the household.
	OwnerID string

	// Members lists member user IDs, sorted ascending.
	Members []string

	// CreatedAt is the Unix timestamp when the household was created.
	CreatedAt int64
}

// HasMember reports whether userID belongs to the household.
func (h *Household) HasMember(userID string) bool {
	for _, m := range h.Members {
		if m == userID {
			return true
		}
	}
	return false
}
