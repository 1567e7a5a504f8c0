package calculator

import (
	"cmp"
	"math"
	"slices"
)

// Transfer is one payment in a settlement plan.
type Transfer struct {
	From   string // Member who owes
	To     string // Member who is owed
	Amount int64
}

// position is a creditor's or debtor's outstanding amount, always positive.
type position struct {
	memberID string
	amount   int64
}

// SimplifyDebts turns net balances into an ordered list of transfers that
// zeroes every balance.
//
// Algorithm (greedy largest-debtor / largest-creditor matching):
//   - creditors have net > 0, debtors net < 0 (kept as the positive amount owed)
//   - both lists are sorted by amount descending, ties by member ID ascending
//   - two indexes walk the lists; each step pays min(debtor, creditor) and
//     advances whichever side reached zero
//
// The plan has at most len(creditors)+len(debtors)-1 transfers. Members with
// a zero balance never appear. A non-conserving input, or any amount left
// over once the walk ends, is reported as ErrInvariantViolation. So is a
// credit or debit side too large for an int64.
func SimplifyDebts(net map[string]int64) ([]Transfer, error) {
	var credit, debit int64
	var creditors, debtors []position
	for _, id := range memberIDs(net) {
		amt := net[id]
		ok := true
		switch {
		case amt > 0:
			credit, ok = addAmount(credit, amt)
			creditors = append(creditors, position{memberID: id, amount: amt})
		case amt < 0:
			if amt == math.MinInt64 {
				ok = false
				break
			}
			debit, ok = addAmount(debit, -amt)
			debtors = append(debtors, position{memberID: id, amount: -amt})
		}
		if !ok {
			return nil, invariantViolated("conservation", "balance of %s overflows the total", id)
		}
	}
	if credit != debit {
		return nil, invariantViolated("conservation", "balances sum to %d before settlement", credit-debit)
	}

	sortPositions(creditors)
	sortPositions(debtors)

	// Remaining amounts live in fixed arrays indexed like the sorted lists.
	owed := make([]int64, len(debtors))
	for k, d := range debtors {
		owed[k] = d.amount
	}
	due := make([]int64, len(creditors))
	for k, c := range creditors {
		due[k] = c.amount
	}

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		pay := min(owed[i], due[j])
		if pay > 0 {
			transfers = append(transfers, Transfer{
				From:   debtors[i].memberID,
				To:     creditors[j].memberID,
				Amount: pay,
			})
			owed[i] -= pay
			due[j] -= pay
		}
		if owed[i] == 0 {
			i++
		}
		if due[j] == 0 {
			j++
		}
	}

	if residual := ApplyTransfers(net, transfers); !allZero(residual) {
		return nil, invariantViolated("settlement", "residual balances after plan: %v", nonZero(residual))
	}

	return transfers, nil
}

// ApplyTransfers returns a copy of net with every transfer applied: the payer's
// balance goes up by the amount and the receiver's goes down.
func ApplyTransfers(net map[string]int64, transfers []Transfer) map[string]int64 {
	out := make(map[string]int64, len(net))
	for id, amt := range net {
		out[id] = amt
	}
	for _, t := range transfers {
		out[t.From] += t.Amount
		out[t.To] -= t.Amount
	}
	return out
}

func sortPositions(ps []position) {
	slices.SortFunc(ps, func(a, b position) int {
		if c := cmp.Compare(b.amount, a.amount); c != 0 {
			return c
		}
		return cmp.Compare(a.memberID, b.memberID)
	})
}

func allZero(net map[string]int64) bool {
	for _, amt := range net {
		if amt != 0 {
			return false
		}
	}
	return true
}

func nonZero(net map[string]int64) map[string]int64 {
	out := make(map[string]int64)
	for id, amt := range net {
		if amt != 0 {
			out[id] = amt
		}
	}
	return out
}

// Plan is the full result of settling a household: per-member balances and
// the transfers that clear them.
type Plan struct {
	Balances  []MemberBalance
	Transfers []Transfer
	Total     int64 // Sum of all expense amounts considered
}

// Settle runs the balance calculator and the settlement minimizer in sequence
// over one snapshot of active expenses. Nothing is retained between calls.
func Settle(members []string, expenses []Expense) (*Plan, error) {
	balances, err := CalculateNetBalances(members, expenses)
	if err != nil {
		return nil, err
	}

	transfers, err := SimplifyDebts(NetByMember(balances))
	if err != nil {
		return nil, err
	}

	var total int64
	for _, e := range expenses {
		total, _ = addAmount(total, e.Amount) // bounded by CalculateNetBalances
	}

	return &Plan{
		Balances:  balances,
		Transfers: transfers,
		Total:     total,
	}, nil
}
