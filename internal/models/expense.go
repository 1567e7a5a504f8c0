package models

// Expense is a single payment recorded in a household.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// HouseholdID is the household the expense belongs to.
	HouseholdID string

	// PayerID is the member who paid.
	PayerID string

	// Title is a short description (e.g., "Groceries").
	Title string

	// Amount is the paid amount in IQD. Never negative.
	Amount int64

	// ExpenseDate is the day the expense happened, formatted YYYY-MM-DD.
	ExpenseDate string

	// Participants are the members who consumed the expense, sorted ascending.
	// The payer is included only if they consumed too.
	Participants []string

	// IsArchived is set once the expense has been settled or archived for a month.
	IsArchived bool

	// ArchivedMonth is the YYYY-MM bucket the expense was archived into.
	ArchivedMonth string

	// SettleID groups expenses archived by the same settle-up action.
	SettleID string

	// SettledAt is the Unix timestamp of the settle-up action, 0 if never settled.
	SettledAt int64

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64
}

// SettleSession summarizes the expenses archived by one settle-up action.
type SettleSession struct {
	ID           string
	HouseholdID  string
	SettledAt    int64
	ExpenseCount int
	Total        int64
}
