package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/housesplit/internal/models"
	"github.com/mmynk/housesplit/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createUser(t *testing.T, store *SQLiteStore, name string) *models.User {
	t.Helper()
	user := models.NewUser(name+"@example.com", name, "hash")
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func createHousehold(t *testing.T, store *SQLiteStore, owner *models.User, code string, members ...*models.User) *models.Household {
	t.Helper()
	ctx := context.Background()
	h := &models.Household{Name: "Flat", JoinCode: code, OwnerID: owner.ID}
	require.NoError(t, store.CreateHousehold(ctx, h))
	for _, m := range members {
		require.NoError(t, store.AddMember(ctx, h.ID, m.ID))
	}
	return h
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")

	first, err := New(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "Alice")

	t.Run("lookup by email is case-insensitive", func(t *testing.T) {
		got, err := store.GetUserByEmail(ctx, "ALICE@example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)
		assert.Equal(t, "Alice", got.Name)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		dup := models.NewUser("alice@example.com", "Other", "hash")
		err := store.CreateUser(ctx, dup)
		assert.ErrorIs(t, err, storage.ErrConflict)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := store.GetUserByID(ctx, "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("batch lookup omits unknown ids", func(t *testing.T) {
		bob := createUser(t, store, "Bob")
		users, err := store.GetUsersByIDs(ctx, []string{alice.ID, bob.ID, "ghost"})
		require.NoError(t, err)
		assert.Len(t, users, 2)
		assert.Equal(t, "Bob", users[bob.ID].Name)
	})
}

func TestHouseholds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "Alice")
	bob := createUser(t, store, "Bob")

	h := createHousehold(t, store, alice, "ABCD2345")
	assert.NotEmpty(t, h.ID)
	assert.NotZero(t, h.CreatedAt)
	assert.Equal(t, []string{alice.ID}, h.Members)

	t.Run("join code lookup", func(t *testing.T) {
		got, err := store.GetHouseholdByJoinCode(ctx, "ABCD2345")
		require.NoError(t, err)
		assert.Equal(t, h.ID, got.ID)
		assert.Equal(t, alice.ID, got.OwnerID)
	})

	t.Run("join code must be unique", func(t *testing.T) {
		err := store.CreateHousehold(ctx, &models.Household{Name: "Other", JoinCode: "ABCD2345", OwnerID: bob.ID})
		assert.ErrorIs(t, err, storage.ErrConflict)
	})

	t.Run("add member twice is a no-op", func(t *testing.T) {
		require.NoError(t, store.AddMember(ctx, h.ID, bob.ID))
		require.NoError(t, store.AddMember(ctx, h.ID, bob.ID))

		got, err := store.GetHousehold(ctx, h.ID)
		require.NoError(t, err)
		assert.Len(t, got.Members, 2)
		assert.True(t, got.HasMember(bob.ID))
	})

	t.Run("list for user", func(t *testing.T) {
		createHousehold(t, store, bob, "ZZZZ9999")

		households, err := store.ListHouseholdsForUser(ctx, bob.ID)
		require.NoError(t, err)
		assert.Len(t, households, 2)

		households, err = store.ListHouseholdsForUser(ctx, alice.ID)
		require.NoError(t, err)
		assert.Len(t, households, 1)
	})

	t.Run("update join code", func(t *testing.T) {
		require.NoError(t, store.UpdateJoinCode(ctx, h.ID, "NEWC0DE2"))
		_, err := store.GetHouseholdByJoinCode(ctx, "ABCD2345")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		assert.ErrorIs(t, store.UpdateJoinCode(ctx, "missing", "XXXXXXXX"), storage.ErrNotFound)
	})
}

func TestExpenses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, store, "Alice")
	bob := createUser(t, store, "Bob")
	h := createHousehold(t, store, alice, "HOME2345", bob)

	groceries := &models.Expense{
		HouseholdID:  h.ID,
		PayerID:      alice.ID,
		Title:        "Groceries",
		Amount:       45000,
		ExpenseDate:  "2026-09-03",
		Participants: []string{bob.ID, alice.ID},
	}
	require.NoError(t, store.CreateExpense(ctx, groceries))
	assert.NotEmpty(t, groceries.ID)

	internet := &models.Expense{
		HouseholdID:  h.ID,
		PayerID:      bob.ID,
		Title:        "Internet",
		Amount:       30000,
		ExpenseDate:  "2026-10-01",
		Participants: []string{alice.ID, bob.ID},
	}
	require.NoError(t, store.CreateExpense(ctx, internet))

	t.Run("get returns participants", func(t *testing.T) {
		got, err := store.GetExpense(ctx, groceries.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(45000), got.Amount)
		assert.ElementsMatch(t, []string{alice.ID, bob.ID}, got.Participants)
		assert.False(t, got.IsArchived)
	})

	t.Run("list active", func(t *testing.T) {
		active, err := store.ListActiveExpenses(ctx, h.ID)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "Groceries", active[0].Title)
		assert.Len(t, active[1].Participants, 2)
	})

	t.Run("archive month only touches that month", func(t *testing.T) {
		n, err := store.ArchiveMonth(ctx, h.ID, "2026-09")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		archived, err := store.ListExpensesByMonth(ctx, h.ID, "2026-09")
		require.NoError(t, err)
		require.Len(t, archived, 1)
		assert.Equal(t, groceries.ID, archived[0].ID)
		assert.True(t, archived[0].IsArchived)
		assert.Empty(t, archived[0].SettleID)
	})

	t.Run("archived expenses cannot be deleted", func(t *testing.T) {
		assert.ErrorIs(t, store.DeleteExpense(ctx, groceries.ID), storage.ErrNotFound)
	})

	t.Run("mark settled is all or nothing", func(t *testing.T) {
		late := &models.Expense{
			HouseholdID:  h.ID,
			PayerID:      alice.ID,
			Title:        "Bread",
			Amount:       1000,
			ExpenseDate:  "2026-10-02",
			Participants: []string{alice.ID},
		}
		require.NoError(t, store.CreateExpense(ctx, late))

		// groceries was archived above, so the whole batch is rejected.
		_, err := store.MarkSettled(ctx, h.ID, []string{internet.ID, groceries.ID}, "settle-0", 1791000000)
		assert.ErrorIs(t, err, storage.ErrConflict)

		active, err := store.ListActiveExpenses(ctx, h.ID)
		require.NoError(t, err)
		assert.Len(t, active, 2)

		n, err := store.MarkSettled(ctx, h.ID, []string{internet.ID, internet.ID}, "settle-1", 1791000000)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		active, err = store.ListActiveExpenses(ctx, h.ID)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, late.ID, active[0].ID)

		settled, err := store.ListExpensesBySettle(ctx, h.ID, "settle-1")
		require.NoError(t, err)
		require.Len(t, settled, 1)
		assert.Equal(t, int64(1791000000), settled[0].SettledAt)
		assert.Equal(t, "2026-10", settled[0].ArchivedMonth)

		sessions, err := store.ListSettleSessions(ctx, h.ID)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		assert.Equal(t, "settle-1", sessions[0].ID)
		assert.Equal(t, 1, sessions[0].ExpenseCount)
		assert.Equal(t, int64(30000), sessions[0].Total)
	})

	t.Run("mark settled rejects other households", func(t *testing.T) {
		other := createHousehold(t, store, bob, "OTHR2345")
		_, err := store.MarkSettled(ctx, other.ID, []string{groceries.ID}, "settle-x", 1791000000)
		assert.ErrorIs(t, err, storage.ErrConflict)
	})

	t.Run("delete active expense", func(t *testing.T) {
		e := &models.Expense{HouseholdID: h.ID, PayerID: bob.ID, Title: "Tea", Amount: 500, ExpenseDate: "2026-10-03"}
		require.NoError(t, store.CreateExpense(ctx, e))
		require.NoError(t, store.DeleteExpense(ctx, e.ID))

		_, err := store.GetExpense(ctx, e.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}
