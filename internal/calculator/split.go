package calculator

import (
	"slices"
)

// Expense is the engine's view of a recorded expense. Amount is in the
// smallest currency unit. Participants may or may not include the payer.
type Expense struct {
	ID           string
	PayerID      string
	Amount       int64
	Participants []string
}

// Share is one participant's consumed part of a single expense.
type Share struct {
	MemberID string
	Amount   int64
}

// SplitExpense divides amount among participants using integer floor division.
//
// Participants are deduplicated and sorted ascending. Every participant gets
// amount/n; the amount%n leftover units go one each to consecutive
// participants starting at the payer's position in the sorted list, wrapping
// around. If the payer is not a participant the walk starts at the first one.
// The returned shares always sum to amount exactly. No participants means no
// shares.
func SplitExpense(amount int64, payerID string, participants []string) ([]Share, error) {
	if amount < 0 {
		return nil, invalidExpense("", "negative amount %d", amount)
	}

	parts := sortedUnique(participants)
	n := int64(len(parts))
	if n == 0 {
		return nil, nil
	}

	shareFloor := amount / n
	remainder := amount % n

	shares := make([]Share, len(parts))
	for i, p := range parts {
		shares[i] = Share{MemberID: p, Amount: shareFloor}
	}

	start, found := slices.BinarySearch(parts, payerID)
	if !found {
		start = 0
	}
	for k := int64(0); k < remainder; k++ {
		shares[(int64(start)+k)%n].Amount++
	}

	return shares, nil
}

// sortedUnique returns a sorted copy of ids with duplicates and empty ids removed.
func sortedUnique(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
