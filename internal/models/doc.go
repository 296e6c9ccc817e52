// Package models defines the core domain models for the BuildHub
// split-payment engine.
//
// # Models
//
//   - SplitPaymentGroup: the aggregate tracking one obligation being paid
//     across multiple installments
//   - SplitPaymentTransaction: one bounded-size payment within a group,
//     identified by its sequence number
//   - SplitPaymentProgress: denormalized read model of a group's completion
//     percentage and remaining amount
//   - OutboxEvent: a pending notification recorded in the same atomic unit
//     as the ledger change it describes
//
// # Design Principles
//
//  1. **Group status is derived**: DeriveGroupStatus is the single source of
//     truth; the stored status column is always the result of a recomputation.
//  2. **Progress is a read model**: it is rewritten whenever an installment
//     completes and is never consulted to decide how much is owed.
//  3. **Avoid circular references**: transactions carry the group ID rather
//     than a pointer to the group.
//
// The underlying obligation (a construction-stage payment or a technical
// detail unlock fee) is opaque to the engine: PayableType tags which kind it
// is and PayableRef points at it, nothing more.
package models
