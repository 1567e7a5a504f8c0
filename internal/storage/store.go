// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/housesplit/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness rule.
	ErrConflict = errors.New("conflict")
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// HouseholdStore persists households and their membership.
type HouseholdStore interface {
	// CreateHousehold persists a household and adds its owner as the first member.
	// ID and CreatedAt are populated when empty.
	CreateHousehold(ctx context.Context, household *models.Household) error
	GetHousehold(ctx context.Context, householdID string) (*models.Household, error)
	GetHouseholdByJoinCode(ctx context.Context, code string) (*models.Household, error)
	ListHouseholdsForUser(ctx context.Context, userID string) ([]*models.Household, error)
	AddMember(ctx context.Context, householdID, userID string) error
	UpdateJoinCode(ctx context.Context, householdID, code string) error
}

// ExpenseStore persists expenses and their archive state.
type ExpenseStore interface {
	// CreateExpense persists an expense with its participants in one transaction.
	CreateExpense(ctx context.Context, expense *models.Expense) error
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)
	// DeleteExpense removes an active expense. Archived expenses are immutable.
	DeleteExpense(ctx context.Context, expenseID string) error
	ListActiveExpenses(ctx context.Context, householdID string) ([]*models.Expense, error)
	ListExpensesByMonth(ctx context.Context, householdID, month string) ([]*models.Expense, error)
	ListExpensesBySettle(ctx context.Context, householdID, settleID string) ([]*models.Expense, error)

	// MarkSettled archives exactly the given active expenses under one settle session.
	// If any of them is no longer active nothing changes and ErrConflict is returned.
	MarkSettled(ctx context.Context, householdID string, expenseIDs []string, settleID string, settledAt int64) (int, error)
	// ArchiveMonth archives all active expenses dated in month (YYYY-MM).
	ArchiveMonth(ctx context.Context, householdID, month string) (int, error)
	ListSettleSessions(ctx context.Context, householdID string) ([]*models.SettleSession, error)
}

// Store defines the full storage surface used by the services.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	UserStore
	HouseholdStore
	ExpenseStore

	// Close releases any resources held by the store.
	Close() error
}
