package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/housesplit/internal/models"
)

const expenseColumns = `id, household_id, payer_id, title, amount, expense_date,
	is_archived, archived_month, archived_settle_id, archived_settled_at, created_at`

// CreateExpense persists a new expense and its participants.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	sort.Strings(expense.Participants)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, household_id, payer_id, title, amount, expense_date, is_archived, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		expense.ID, expense.HouseholdID, expense.PayerID, expense.Title,
		expense.Amount, expense.ExpenseDate, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for _, userID := range expense.Participants {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO expense_participants (expense_id, user_id) VALUES (?, ?)",
			expense.ID, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetExpense retrieves an expense by ID, including its participants.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expenses, err := s.queryExpenses(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?",
		expenseID,
	)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return nil, notFound("expense", expenseID)
	}
	return expenses[0], nil
}

// DeleteExpense removes an active expense by ID.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM expenses WHERE id = ? AND is_archived = 0",
		expenseID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return notFound("active expense", expenseID)
	}
	return nil
}

// ListActiveExpenses returns the household's unsettled expenses, oldest first.
func (s *SQLiteStore) ListActiveExpenses(ctx context.Context, householdID string) ([]*models.Expense, error) {
	return s.queryExpenses(ctx,
		"SELECT "+expenseColumns+` FROM expenses
		 WHERE household_id = ? AND is_archived = 0
		 ORDER BY expense_date, created_at, id`,
		householdID,
	)
}

// ListExpensesByMonth returns the expenses archived into month (YYYY-MM).
func (s *SQLiteStore) ListExpensesByMonth(ctx context.Context, householdID, month string) ([]*models.Expense, error) {
	return s.queryExpenses(ctx,
		"SELECT "+expenseColumns+` FROM expenses
		 WHERE household_id = ? AND is_archived = 1 AND archived_month = ?
		 ORDER BY expense_date, created_at, id`,
		householdID, month,
	)
}

// ListExpensesBySettle returns the expenses archived by one settle session.
func (s *SQLiteStore) ListExpensesBySettle(ctx context.Context, householdID, settleID string) ([]*models.Expense, error) {
	return s.queryExpenses(ctx,
		"SELECT "+expenseColumns+` FROM expenses
		 WHERE household_id = ? AND archived_settle_id = ?
		 ORDER BY expense_date, created_at, id`,
		householdID, settleID,
	)
}

// queryExpenses runs query and attaches participants to every expense found.
func (s *SQLiteStore) queryExpenses(ctx context.Context, query string, args ...any) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}

	var expenses []*models.Expense
	byID := make(map[string]*models.Expense)
	for rows.Next() {
		e := &models.Expense{}
		var (
			archived      int
			archivedMonth sql.NullString
			settleID      sql.NullString
			settledAt     sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.HouseholdID, &e.PayerID, &e.Title, &e.Amount, &e.ExpenseDate,
			&archived, &archivedMonth, &settleID, &settledAt, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		e.IsArchived = archived != 0
		e.ArchivedMonth = archivedMonth.String
		e.SettleID = settleID.String
		e.SettledAt = settledAt.Int64

		expenses = append(expenses, e)
		byID[e.ID] = e
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	if len(expenses) == 0 {
		return expenses, nil
	}

	ids := make([]string, 0, len(expenses))
	for _, e := range expenses {
		ids = append(ids, e.ID)
	}

	partRows, err := s.db.QueryContext(ctx,
		`SELECT expense_id, user_id FROM expense_participants
		 WHERE expense_id IN (`+placeholders(len(ids))+`)
		 ORDER BY expense_id, user_id`,
		stringArgs(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer partRows.Close()

	for partRows.Next() {
		var expenseID, userID string
		if err := partRows.Scan(&expenseID, &userID); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		if e, ok := byID[expenseID]; ok {
			e.Participants = append(e.Participants, userID)
		}
	}
	if err := partRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return expenses, nil
}
