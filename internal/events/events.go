// Package events publishes domain events to a message broker.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// RoutingKeySettlementRecorded is the routing key used for SettlementRecorded events.
const RoutingKeySettlementRecorded = "settlement.recorded"

// TransferRecord is one payment in a recorded settlement plan.
type TransferRecord struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// SettlementRecorded is emitted after a household settles up.
type SettlementRecorded struct {
	SettleID     string           `json:"settle_id"`
	HouseholdID  string           `json:"household_id"`
	SettledBy    string           `json:"settled_by"`
	SettledAt    time.Time        `json:"settled_at"`
	ExpenseCount int              `json:"expense_count"`
	Total        int64            `json:"total"`
	Transfers    []TransferRecord `json:"transfers"`
}

// ToJSON converts the event to JSON bytes.
func (e *SettlementRecorded) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers domain events.
type Publisher interface {
	PublishSettlement(ctx context.Context, event *SettlementRecorded) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishSettlement(ctx context.Context, event *SettlementRecorded) error {
	slog.DebugContext(ctx, "Event publishing disabled, dropping settlement", "settle_id", event.SettleID)
	return nil
}

func (NopPublisher) Close() error { return nil }
