package calculator

import (
	"math"
	"slices"
)

// MemberBalance is one member's position across all active expenses.
type MemberBalance struct {
	MemberID string
	Paid     int64 // Sum of amounts this member paid for
	Consumed int64 // Sum of this member's shares
	Net      int64 // Paid - Consumed. Positive = owed money, Negative = owes money
}

// CalculateNetBalances computes paid, consumed and net totals for every member.
//
// Each expense is split independently with SplitExpense and the results are
// summed, so the order of expenses does not affect the output. Members that
// appear in no expense get a zero balance. The result is sorted by MemberID.
//
// Every payer and participant must belong to members, and the total of all
// amounts must fit in an int64; violations are reported as ErrInvalidExpense.
// The sum of all nets is checked against the amount of expenses that had no
// participants: zero whenever every expense was consumed by someone.
func CalculateNetBalances(members []string, expenses []Expense) ([]MemberBalance, error) {
	ids := sortedUnique(members)
	index := make(map[string]int, len(ids))
	balances := make([]MemberBalance, len(ids))
	for i, id := range ids {
		index[id] = i
		balances[i] = MemberBalance{MemberID: id}
	}

	var total, unallocated int64
	for _, e := range expenses {
		if e.Amount < 0 {
			return nil, invalidExpense(e.ID, "negative amount %d", e.Amount)
		}
		if e.PayerID == "" {
			return nil, invalidExpense(e.ID, "missing payer")
		}
		payer, ok := index[e.PayerID]
		if !ok {
			return nil, invalidExpense(e.ID, "payer %q is not a member", e.PayerID)
		}
		for _, p := range e.Participants {
			if _, ok := index[p]; !ok {
				return nil, invalidExpense(e.ID, "participant %q is not a member", p)
			}
		}

		if total, ok = addAmount(total, e.Amount); !ok {
			return nil, invalidExpense(e.ID, "amounts overflow: total exceeds %d", int64(math.MaxInt64))
		}

		shares, err := SplitExpense(e.Amount, e.PayerID, e.Participants)
		if err != nil {
			return nil, err
		}

		balances[payer].Paid += e.Amount
		if len(shares) == 0 {
			unallocated += e.Amount
		}
		for _, s := range shares {
			balances[index[s.MemberID]].Consumed += s.Amount
		}
	}

	for i := range balances {
		balances[i].Net = balances[i].Paid - balances[i].Consumed
	}

	if sum := SumNet(balances); sum != unallocated {
		return nil, invariantViolated("conservation", "net balances sum to %d, want %d", sum, unallocated)
	}

	return balances, nil
}

// addAmount adds two non-negative amounts, reporting false when the sum
// would not fit in an int64. Paid and Consumed are bounded by the running
// total, so checking the total covers every per-member sum too.
func addAmount(a, b int64) (int64, bool) {
	if b > math.MaxInt64-a {
		return a, false
	}
	return a + b, true
}

// SumNet returns the sum of all net balances. It is zero for any closed household.
func SumNet(balances []MemberBalance) int64 {
	var sum int64
	for _, b := range balances {
		sum += b.Net
	}
	return sum
}

// NetByMember flattens balances into a member -> net map.
func NetByMember(balances []MemberBalance) map[string]int64 {
	net := make(map[string]int64, len(balances))
	for _, b := range balances {
		net[b.MemberID] = b.Net
	}
	return net
}

// memberIDs returns the keys of net in ascending order.
func memberIDs(net map[string]int64) []string {
	ids := make([]string, 0, len(net))
	for id := range net {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
