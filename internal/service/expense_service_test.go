package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/housesplit/internal/calculator"
	"github.com/mmynk/housesplit/internal/rpc"
	"github.com/mmynk/housesplit/internal/storage"
)

func addExpense(t *testing.T, env *testEnv, u testUser, req *rpc.AddExpenseRequest) *rpc.Expense {
	t.Helper()
	resp, err := env.expense.AddExpense(context.Background(), authed(u, req))
	require.NoError(t, err)
	return resp.Msg.Expense
}

func balancesByMember(resp *rpc.GetBalancesResponse) map[string]int64 {
	out := make(map[string]int64, len(resp.Balances))
	for _, b := range resp.Balances {
		out[b.MemberID] = b.Net
	}
	return out
}

func TestGetBalancesRemainderGoesToPayer(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	a := env.register(t, "Amal")
	b := env.register(t, "Bilal")
	c := env.register(t, "Chiara")
	h := env.household(t, a, b, c)

	// Empty participants default to every member.
	e := addExpense(t, env, a, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "Dinner", Amount: 100})
	assert.Len(t, e.Participants, 3)
	assert.Equal(t, a.ID, e.PayerID)
	assert.Equal(t, "100 IQD", e.AmountFormatted)

	resp, err := env.expense.GetBalances(ctx, authed(b, &rpc.GetBalancesRequest{HouseholdID: h.ID}))
	require.NoError(t, err)

	net := balancesByMember(resp.Msg)
	assert.Equal(t, int64(66), net[a.ID])
	assert.Equal(t, int64(-33), net[b.ID])
	assert.Equal(t, int64(-33), net[c.ID])
	assert.Equal(t, 1, resp.Msg.ExpenseCount)
	assert.Equal(t, "100 IQD", resp.Msg.TotalFormatted)

	require.Len(t, resp.Msg.Transfers, 2)
	debtors := []string{b.ID, c.ID}
	sort.Strings(debtors)
	for i, tr := range resp.Msg.Transfers {
		assert.Equal(t, debtors[i], tr.From, "equal debts are ordered by member id")
		assert.Equal(t, a.ID, tr.To)
		assert.Equal(t, "Amal", tr.ToName)
		assert.Equal(t, int64(33), tr.Amount)
		assert.Equal(t, "33 IQD", tr.AmountFormatted)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.PlansComputed))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.TransfersEmitted))
}

func TestGetBalancesOffsettingExpenses(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	a := env.register(t, "Amal")
	b := env.register(t, "Bilal")
	h := env.household(t, a, b)

	addExpense(t, env, a, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "Bread", Amount: 50, Participants: []string{a.ID, b.ID}})
	addExpense(t, env, b, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "Milk", Amount: 50, Participants: []string{b.ID, a.ID}})

	resp, err := env.expense.GetBalances(ctx, authed(a, &rpc.GetBalancesRequest{HouseholdID: h.ID}))
	require.NoError(t, err)
	for _, bal := range resp.Msg.Balances {
		assert.Zero(t, bal.Net)
		assert.Equal(t, int64(50), bal.Paid)
		assert.Equal(t, int64(50), bal.Consumed)
	}
	assert.Empty(t, resp.Msg.Transfers)
	assert.Equal(t, int64(100), resp.Msg.Total)
}

func TestAddExpenseValidation(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	a := env.register(t, "Amal")
	b := env.register(t, "Bilal")
	stranger := env.register(t, "Sami")
	h := env.household(t, a, b)

	tests := []struct {
		name string
		user testUser
		req  *rpc.AddExpenseRequest
		want connect.Code
	}{
		{"negative amount", a, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "x", Amount: -1}, connect.CodeInvalidArgument},
		{"missing title", a, &rpc.AddExpenseRequest{HouseholdID: h.ID, Amount: 10}, connect.CodeInvalidArgument},
		{"bad date", a, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "x", Amount: 10, ExpenseDate: "03/10/2026"}, connect.CodeInvalidArgument},
		{"payer outside household", a, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "x", Amount: 10, PayerID: stranger.ID}, connect.CodeInvalidArgument},
		{"participant outside household", a, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "x", Amount: 10, Participants: []string{b.ID, stranger.ID}}, connect.CodeInvalidArgument},
		{"caller outside household", stranger, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "x", Amount: 10}, connect.CodePermissionDenied},
		{"missing household", a, &rpc.AddExpenseRequest{Title: "x", Amount: 10}, connect.CodeInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.expense.AddExpense(ctx, authed(tt.user, tt.req))
			require.Error(t, err)
			assert.Equal(t, tt.want, connect.CodeOf(err))
		})
	}

	list, err := env.expense.ListExpenses(ctx, authed(a, &rpc.ListExpensesRequest{HouseholdID: h.ID}))
	require.NoError(t, err)
	assert.Empty(t, list.Msg.Expenses, "rejected expenses must not be stored")
}

func TestSettleUp(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	a := env.register(t, "Amal")
	b := env.register(t, "Bilal")
	h := env.household(t, a, b)

	env.expenses.now = func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }

	rent := addExpense(t, env, a, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "Rent", Amount: 1_000_000})
	assert.Equal(t, "2026-10-15", rent.ExpenseDate)
	assert.Equal(t, "1,000,000 IQD", rent.AmountFormatted)
	addExpense(t, env, b, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "Power", Amount: 250_001, Participants: []string{a.ID, b.ID}})

	settled, err := env.expense.SettleUp(ctx, authed(b, &rpc.SettleUpRequest{HouseholdID: h.ID}))
	require.NoError(t, err)
	assert.NotEmpty(t, settled.Msg.SettleID)
	assert.Equal(t, 2, settled.Msg.ExpenseCount)
	assert.Equal(t, int64(1_250_001), settled.Msg.Total)
	assert.Equal(t, "1,250,001 IQD", settled.Msg.TotalFormatted)
	require.Len(t, settled.Msg.Transfers, 1)
	tr := settled.Msg.Transfers[0]
	assert.Equal(t, b.ID, tr.From)
	assert.Equal(t, a.ID, tr.To)

	// Bilal consumed 500,000 of rent and 125,001 of power (the odd unit
	// starts with the payer) and paid 250,001.
	wantDebt := int64(500_000 + 125_001 - 250_001)
	assert.Equal(t, wantDebt, tr.Amount)

	active, err := env.expense.ListExpenses(ctx, authed(a, &rpc.ListExpensesRequest{HouseholdID: h.ID}))
	require.NoError(t, err)
	assert.Empty(t, active.Msg.Expenses)

	archived, err := env.expense.ListExpenses(ctx, authed(a, &rpc.ListExpensesRequest{HouseholdID: h.ID, SettleID: settled.Msg.SettleID}))
	require.NoError(t, err)
	require.Len(t, archived.Msg.Expenses, 2)
	assert.Equal(t, "2026-10", archived.Msg.Expenses[0].ArchivedMonth)
	assert.Equal(t, int64(1_250_001), archived.Msg.Total)

	byMonth, err := env.expense.ListExpenses(ctx, authed(a, &rpc.ListExpensesRequest{HouseholdID: h.ID, Month: "2026-10"}))
	require.NoError(t, err)
	assert.Len(t, byMonth.Msg.Expenses, 2)

	sessions, err := env.expense.ListSettleSessions(ctx, authed(a, &rpc.ListSettleSessionsRequest{HouseholdID: h.ID}))
	require.NoError(t, err)
	require.Len(t, sessions.Msg.Sessions, 1)
	assert.Equal(t, settled.Msg.SettleID, sessions.Msg.Sessions[0].ID)
	assert.Equal(t, 2, sessions.Msg.Sessions[0].ExpenseCount)

	events := env.publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, settled.Msg.SettleID, events[0].SettleID)
	assert.Equal(t, b.ID, events[0].SettledBy)
	assert.Equal(t, wantDebt, events[0].Transfers[0].Amount)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.SettleSessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.ExpensesSettled))

	t.Run("nothing left to settle", func(t *testing.T) {
		_, err := env.expense.SettleUp(ctx, authed(a, &rpc.SettleUpRequest{HouseholdID: h.ID}))
		assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
	})

	t.Run("archived expenses cannot be deleted", func(t *testing.T) {
		_, err := env.expense.DeleteExpense(ctx, authed(a, &rpc.DeleteExpenseRequest{ExpenseID: rent.ID}))
		assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
	})
}

func TestSettleUpSurvivesPublishFailure(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	a := env.register(t, "Amal")
	b := env.register(t, "Bilal")
	h := env.household(t, a, b)
	addExpense(t, env, a, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "Gas", Amount: 3000})

	env.publisher.err = errors.New("broker down")

	resp, err := env.expense.SettleUp(ctx, authed(a, &rpc.SettleUpRequest{HouseholdID: h.ID}))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Msg.ExpenseCount)
	assert.Empty(t, env.publisher.published())
}

// conflictingStore behaves like the wrapped store except that every settle
// attempt loses a race.
type conflictingStore struct {
	storage.Store
}

func (conflictingStore) MarkSettled(context.Context, string, []string, string, int64) (int, error) {
	return 0, fmt.Errorf("expense changed: %w", storage.ErrConflict)
}

func TestSettleUpConflict(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	a := env.register(t, "Amal")
	b := env.register(t, "Bilal")
	h := env.household(t, a, b)
	addExpense(t, env, a, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "Rent", Amount: 500000})

	env.expenses.store = conflictingStore{Store: env.store}

	_, err := env.expense.SettleUp(ctx, authed(a, &rpc.SettleUpRequest{HouseholdID: h.ID}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeAborted, connect.CodeOf(err))
	assert.Empty(t, env.publisher.published())
	assert.Zero(t, testutil.ToFloat64(env.metrics.SettleSessions))

	// Nothing was archived, so the debt is still outstanding.
	balances, err := env.expense.GetBalances(ctx, authed(b, &rpc.GetBalancesRequest{HouseholdID: h.ID}))
	require.NoError(t, err)
	assert.Equal(t, int64(-250000), balancesByMember(balances.Msg)[b.ID])
}

func TestSettlementInvariantViolation(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	a := env.register(t, "Amal")
	b := env.register(t, "Bilal")
	h := env.household(t, a, b)
	addExpense(t, env, a, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "Rent", Amount: 500000})

	env.expenses.settle = func([]string, []calculator.Expense) (*calculator.Plan, error) {
		return nil, &calculator.InvariantError{Check: "settlement", Detail: "residual balances after plan"}
	}

	_, err := env.expense.GetBalances(ctx, authed(a, &rpc.GetBalancesRequest{HouseholdID: h.ID}))
	assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))

	_, err = env.expense.SettleUp(ctx, authed(a, &rpc.SettleUpRequest{HouseholdID: h.ID}))
	assert.Equal(t, connect.CodeInternal, connect.CodeOf(err))

	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.InvariantViolations.WithLabelValues("settlement")))
	assert.Zero(t, testutil.ToFloat64(env.metrics.PlansComputed))
	assert.Zero(t, testutil.ToFloat64(env.metrics.SettleSessions))

	active, err := env.store.ListActiveExpenses(ctx, h.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestAddExpenseRejectsOverflowingTotal(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	a := env.register(t, "Amal")
	b := env.register(t, "Bilal")
	h := env.household(t, a, b)

	generator := &rpc.AddExpenseRequest{
		HouseholdID:  h.ID,
		Title:        "Generator",
		Amount:       1 << 62,
		Participants: []string{b.ID},
	}
	addExpense(t, env, a, generator)

	// Valid alone, but the household total would no longer fit in an int64.
	_, err := env.expense.AddExpense(ctx, authed(a, generator))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	resp, err := env.expense.GetBalances(ctx, authed(a, &rpc.GetBalancesRequest{HouseholdID: h.ID}))
	require.NoError(t, err)
	assert.Equal(t, int64(1<<62), balancesByMember(resp.Msg)[a.ID])
	assert.Equal(t, -int64(1<<62), balancesByMember(resp.Msg)[b.ID])
}

func TestDeleteExpense(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	a := env.register(t, "Amal")
	b := env.register(t, "Bilal")
	stranger := env.register(t, "Sami")
	h := env.household(t, a, b)

	e := addExpense(t, env, a, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "Tea", Amount: 500})

	_, err := env.expense.DeleteExpense(ctx, authed(stranger, &rpc.DeleteExpenseRequest{ExpenseID: e.ID}))
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	_, err = env.expense.DeleteExpense(ctx, authed(b, &rpc.DeleteExpenseRequest{ExpenseID: e.ID}))
	require.NoError(t, err)

	_, err = env.expense.DeleteExpense(ctx, authed(b, &rpc.DeleteExpenseRequest{ExpenseID: e.ID}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestArchiveMonth(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	a := env.register(t, "Amal")
	h := env.household(t, a)

	addExpense(t, env, a, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "Sept", Amount: 100, ExpenseDate: "2026-09-30"})
	addExpense(t, env, a, &rpc.AddExpenseRequest{HouseholdID: h.ID, Title: "Oct", Amount: 200, ExpenseDate: "2026-10-01"})

	resp, err := env.expense.ArchiveMonth(ctx, authed(a, &rpc.ArchiveMonthRequest{HouseholdID: h.ID, Month: "2026-09"}))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Msg.Archived)

	active, err := env.expense.ListExpenses(ctx, authed(a, &rpc.ListExpensesRequest{HouseholdID: h.ID}))
	require.NoError(t, err)
	require.Len(t, active.Msg.Expenses, 1)
	assert.Equal(t, "Oct", active.Msg.Expenses[0].Title)

	_, err = env.expense.ArchiveMonth(ctx, authed(a, &rpc.ArchiveMonthRequest{HouseholdID: h.ID, Month: "September"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = env.expense.ListExpenses(ctx, authed(a, &rpc.ListExpensesRequest{HouseholdID: h.ID, Month: "2026-09", SettleID: "x"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	sessions, err := env.expense.ListSettleSessions(ctx, authed(a, &rpc.ListSettleSessionsRequest{HouseholdID: h.ID}))
	require.NoError(t, err)
	assert.Empty(t, sessions.Msg.Sessions, "archiving a month is not a settle session")
}
