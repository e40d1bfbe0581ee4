// Package models defines the core domain models for Makan Split.
//
// # Models
//
//   - Split: one bill-splitting session (one receipt), the aggregate root
//   - Participant: a person sharing the bill, owned by a split
//   - Item: one receipt line, assignable to any subset of participants
//   - LineItem: raw receipt line as entered manually or returned by OCR
//   - TaxSettings: split-scoped service charge and service tax percentages
//   - PaymentSettings / ReminderSettings: locally scoped collection details
//
// # Design Principles
//
//  1. Relationships use ID strings, never pointers, to avoid circular
//     references between splits, items, and participants.
//  2. An item's assignment set is a slice of participant IDs with set
//     semantics: no ordering, no duplicates.
//  3. Exactly one split is "current" at a time; everything except its ID is
//     reloadable from the store.
package models
