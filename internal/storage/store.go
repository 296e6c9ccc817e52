// Package storage provides abstractions for the split-payment ledger.
package storage

import (
	"context"
	"errors"

	"github.com/shijin-alpha/buildhub-main-sub011/internal/models"
)

// ErrNotFound is returned when a group, transaction, or progress row does not
// exist. Implementations wrap it with detail.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an atomic write detects that the ledger state
// no longer permits the operation (e.g. an outcome applied out of sequence or
// against a cancelled group).
var ErrConflict = errors.New("ledger state conflict")

// VerifiedOutcome reports the effect of applying one verified installment to
// the ledger.
type VerifiedOutcome struct {
	// AlreadyCompleted is true when the installment was completed before
	// this call; the call was a no-op (idempotent confirm).
	AlreadyCompleted bool

	// GroupCompleted is true when this call drove the group to completed.
	GroupCompleted bool

	Group    *models.SplitPaymentGroup
	Progress *models.SplitPaymentProgress
}

// Store defines the ledger operations for split groups, their installments,
// and the derived progress snapshots.
//
// Atomicity is a property of this interface, not of call-site discipline:
// CreateGroupWithInstallments and ApplyVerifiedOutcome each execute as one
// unit that either fully commits or leaves no trace. For any one group the
// read-modify-write operations behave as if serialized; operations on
// different groups are independent.
type Store interface {
	// CreateGroupWithInstallments persists a group and all of its
	// installment rows in one atomic write. The group's ID and timestamps
	// are populated by the store.
	CreateGroupWithInstallments(ctx context.Context, group *models.SplitPaymentGroup, installments []*models.SplitPaymentTransaction) error

	// GetGroup retrieves a group by ID.
	GetGroup(ctx context.Context, groupID string) (*models.SplitPaymentGroup, error)

	// GetTransaction retrieves the installment at the given sequence.
	GetTransaction(ctx context.Context, groupID string, sequence int) (*models.SplitPaymentTransaction, error)

	// ListTransactions returns all installments of a group in sequence order.
	ListTransactions(ctx context.Context, groupID string) ([]*models.SplitPaymentTransaction, error)

	// AttachGatewayOrder records a freshly created gateway order against an
	// installment and moves it to pending. Clears any previous failure.
	AttachGatewayOrder(ctx context.Context, groupID string, sequence int, orderID string) error

	// ApplyVerifiedOutcome marks the installment completed, updates the
	// group aggregates, rewrites the progress snapshot, and, when the
	// group completes, marks the underlying payable paid and appends a
	// completion event to the outbox. All inside one transaction. Calling
	// it again for an already-completed installment is a no-op reported
	// via VerifiedOutcome.AlreadyCompleted.
	ApplyVerifiedOutcome(ctx context.Context, groupID string, sequence int, paymentRef, signature string) (*VerifiedOutcome, error)

	// MarkTransactionFailed records a failed verification attempt. Group
	// aggregates are untouched; an installment-failed event is appended to
	// the outbox.
	MarkTransactionFailed(ctx context.Context, groupID string, sequence int, reason string) error

	// GetProgress returns the progress snapshot for a group.
	GetProgress(ctx context.Context, groupID string) (*models.SplitPaymentProgress, error)

	// CancelGroup transitions a non-completed group to cancelled. Groups
	// are never deleted; the audit trail stays intact.
	CancelGroup(ctx context.Context, groupID string) error

	// IsPayablePaid reports whether the given obligation has been marked
	// paid by a completed group.
	IsPayablePaid(ctx context.Context, payableType models.PayableType, payableRef string) (bool, error)

	// ListPendingOutbox returns up to limit undispatched events, oldest
	// first.
	ListPendingOutbox(ctx context.Context, limit int) ([]*models.OutboxEvent, error)

	// MarkOutboxDispatched stamps an event as delivered.
	MarkOutboxDispatched(ctx context.Context, eventID string) error

	// Close releases any resources held by the store.
	Close() error
}
