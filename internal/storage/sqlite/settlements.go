package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/mmynk/housesplit/internal/models"
	"github.com/mmynk/housesplit/internal/storage"
)

// MarkSettled archives the given active expenses under one settle session.
// It is all-or-nothing: if any expense is missing, already archived or belongs
// to another household, nothing is stamped and storage.ErrConflict is returned.
func (s *SQLiteStore) MarkSettled(ctx context.Context, householdID string, expenseIDs []string, settleID string, settledAt int64) (int, error) {
	expenseIDs = uniqueIDs(expenseIDs)
	if len(expenseIDs) == 0 {
		return 0, nil
	}

	month := time.Unix(settledAt, 0).UTC().Format("2006-01")
	args := []any{month, settleID, settledAt, householdID}
	args = append(args, stringArgs(expenseIDs)...)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE expenses
		 SET is_archived = 1, archived_month = ?, archived_settle_id = ?, archived_settled_at = ?
		 WHERE household_id = ? AND is_archived = 0 AND id IN (`+placeholders(len(expenseIDs))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark expenses settled: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check settle result: %w", err)
	}
	if int(n) != len(expenseIDs) {
		return 0, fmt.Errorf("settle %s: %d of %d expenses no longer active: %w",
			settleID, len(expenseIDs)-int(n), len(expenseIDs), storage.ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return int(n), nil
}

// ArchiveMonth archives every active expense dated in month (YYYY-MM).
func (s *SQLiteStore) ArchiveMonth(ctx context.Context, householdID, month string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE expenses
		 SET is_archived = 1, archived_month = ?
		 WHERE household_id = ? AND is_archived = 0 AND substr(expense_date, 1, 7) = ?`,
		month, householdID, month,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to archive month: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check archive result: %w", err)
	}

	return int(n), nil
}

// ListSettleSessions summarizes every settle session of a household, newest first.
func (s *SQLiteStore) ListSettleSessions(ctx context.Context, householdID string) ([]*models.SettleSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT archived_settle_id, MAX(archived_settled_at), COUNT(*), COALESCE(SUM(amount), 0)
		 FROM expenses
		 WHERE household_id = ? AND archived_settle_id IS NOT NULL
		 GROUP BY archived_settle_id
		 ORDER BY MAX(archived_settled_at) DESC, archived_settle_id`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settle sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.SettleSession
	for rows.Next() {
		session := &models.SettleSession{HouseholdID: householdID}
		if err := rows.Scan(&session.ID, &session.SettledAt, &session.ExpenseCount, &session.Total); err != nil {
			return nil, fmt.Errorf("failed to scan settle session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settle sessions: %w", err)
	}

	return sessions, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
