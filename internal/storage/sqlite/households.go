package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/housesplit/internal/models"
	"github.com/mmynk/housesplit/internal/storage"
)

// CreateHousehold persists a new household and its owner's membership.
func (s *SQLiteStore) CreateHousehold(ctx context.Context, household *models.Household) error {
	if household.ID == "" {
		household.ID = uuid.New().String()
	}
	if household.CreatedAt == 0 {
		household.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO households (id, name, join_code, owner_id, created_at) VALUES (?, ?, ?, ?, ?)",
		household.ID, household.Name, household.JoinCode, household.OwnerID, household.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("join code %s: %w", household.JoinCode, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert household: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO memberships (household_id, user_id, created_at) VALUES (?, ?, ?)",
		household.ID, household.OwnerID, household.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	household.Members = []string{household.OwnerID}
	return nil
}

// GetHousehold retrieves a household by ID, including its members.
func (s *SQLiteStore) GetHousehold(ctx context.Context, householdID string) (*models.Household, error) {
	return s.getHousehold(ctx, "id", householdID)
}

// GetHouseholdByJoinCode retrieves a household by its join code.
func (s *SQLiteStore) GetHouseholdByJoinCode(ctx context.Context, code string) (*models.Household, error) {
	return s.getHousehold(ctx, "join_code", code)
}

func (s *SQLiteStore) getHousehold(ctx context.Context, column, value string) (*models.Household, error) {
	household := &models.Household{}
	var ownerID sql.NullString

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, join_code, owner_id, created_at FROM households WHERE "+column+" = ?",
		value,
	).Scan(&household.ID, &household.Name, &household.JoinCode, &ownerID, &household.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, notFound("household", value)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get household: %w", err)
	}
	household.OwnerID = ownerID.String

	members, err := s.listMembers(ctx, household.ID)
	if err != nil {
		return nil, err
	}
	household.Members = members

	return household, nil
}

func (s *SQLiteStore) listMembers(ctx context.Context, householdID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM memberships WHERE household_id = ? ORDER BY user_id",
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return members, nil
}

// ListHouseholdsForUser returns every household the user belongs to, oldest first.
func (s *SQLiteStore) ListHouseholdsForUser(ctx context.Context, userID string) ([]*models.Household, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT h.id FROM households h
		 JOIN memberships m ON m.household_id = h.id
		 WHERE m.user_id = ?
		 ORDER BY h.created_at, h.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list households: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan household: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate households: %w", err)
	}

	households := make([]*models.Household, 0, len(ids))
	for _, id := range ids {
		h, err := s.GetHousehold(ctx, id)
		if err != nil {
			return nil, err
		}
		households = append(households, h)
	}

	return households, nil
}

// AddMember adds a user to a household. Adding an existing member is a no-op.
func (s *SQLiteStore) AddMember(ctx context.Context, householdID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (household_id, user_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (household_id, user_id) DO NOTHING`,
		householdID, userID, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// UpdateJoinCode replaces a household's join code.
func (s *SQLiteStore) UpdateJoinCode(ctx context.Context, householdID, code string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE households SET join_code = ? WHERE id = ?",
		code, householdID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("join code %s: %w", code, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to update join code: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return notFound("household", householdID)
	}
	return nil
}
