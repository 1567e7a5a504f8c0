// Package models defines the persisted domain models for housesplit.
//
// # Models
//
//   - User: a registered account, identified by a UUID
//   - Household: a group of users sharing expenses, joined with a short code
//   - Expense: one payment made by a member on behalf of some members
//   - SettleSession: a batch of expenses archived together when a household settles up
//
// Money is always an int64 count of the smallest currency unit (IQD has no
// subunit in practice). Timestamps are Unix seconds.
//
// Relationships use ID strings rather than pointers so models stay plain values
// that can be copied between the storage, service and calculator layers.
package models
