package models

// AmountTolerance is the largest absolute difference at which two monetary
// amounts are still considered equal (one cent/paisa rounding slack).
const AmountTolerance = 0.01

// GroupStatus is the lifecycle state of a SplitPaymentGroup.
type GroupStatus string

const (
	GroupPending   GroupStatus = "pending"
	GroupPartial   GroupStatus = "partial"
	GroupCompleted GroupStatus = "completed"
	GroupFailed    GroupStatus = "failed"
	GroupCancelled GroupStatus = "cancelled"
)

// TransactionStatus is the lifecycle state of a SplitPaymentTransaction.
type TransactionStatus string

const (
	// TxCreated means the installment row exists but no gateway order has
	// been requested for it yet.
	TxCreated TransactionStatus = "created"
	// TxPending means a gateway order is outstanding and awaiting
	// confirmation from the payer.
	TxPending TransactionStatus = "pending"
	// TxCompleted means the payment was verified. Terminal and immutable.
	TxCompleted TransactionStatus = "completed"
	// TxFailed means the last verification attempt failed. A fresh order
	// request for the same sequence re-enters TxPending.
	TxFailed TransactionStatus = "failed"
)

// SplitPaymentGroup tracks one obligation being collected across multiple
// installments because the total exceeds the gateway's single-transaction
// ceiling.
type SplitPaymentGroup struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// PayableType tags which kind of obligation this group pays off.
	PayableType PayableType

	// PayableRef is the opaque identifier of the obligation.
	PayableRef string

	// PayerID is the user who owes the money. Only this user may request
	// orders or submit confirmations for the group.
	PayerID string

	// PayeeID is the user being paid, if known. Informational only.
	PayeeID string

	// TotalAmount is the full amount owed, in major currency units.
	TotalAmount float64

	// Currency is the ISO 4217 code (e.g. "INR").
	Currency string

	// TotalInstallments is the number of installments the total was split
	// into. Fixed at creation.
	TotalInstallments int

	// CompletedInstallments counts verified installments, 0..TotalInstallments.
	CompletedInstallments int

	// CompletedAmount is the sum of verified installment amounts.
	CompletedAmount float64

	// Status is always DeriveGroupStatus(CompletedInstallments,
	// TotalInstallments), except for the explicit cancelled state.
	Status GroupStatus

	// Description is a human-readable label for the obligation.
	Description string

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// SplitPaymentTransaction is one installment within a group. Sequence numbers
// are 1-based, dense, and unique within the group; installments must be paid
// strictly in sequence order.
type SplitPaymentTransaction struct {
	// ID is the unique identifier for the installment (UUID format).
	ID string

	// GroupID is the owning group. No transaction exists without a group.
	GroupID string

	// Sequence is the 1-based position of this installment.
	Sequence int

	// Amount is this installment's share of the group total.
	Amount float64

	// Currency matches the group's currency.
	Currency string

	// Description labels the installment (e.g. "Installment 2 of 3").
	Description string

	// GatewayOrderID is the order handle issued by the payment gateway.
	// Empty until an order has been requested.
	GatewayOrderID string

	// GatewayPaymentRef is the gateway's payment identifier, set on
	// successful verification.
	GatewayPaymentRef string

	// GatewaySignature is the verified signature supplied by the client.
	GatewaySignature string

	// Status is the installment's lifecycle state.
	Status TransactionStatus

	// FailureReason records why the last verification attempt failed.
	FailureReason string

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// SplitPaymentProgress is the denormalized read model for a group. It is
// recomputed in the same atomic unit as every installment completion and is
// never the source of truth for amounts owed.
type SplitPaymentProgress struct {
	GroupID               string
	ProgressPercentage    float64
	CompletedInstallments int
	TotalInstallments     int
	CompletedAmount       float64
	TotalAmount           float64

	// NextInstallmentAmount is the amount of the next payable installment,
	// nil once the group is complete or cancelled.
	NextInstallmentAmount *float64
}

// DeriveGroupStatus computes a group's status from its installment counters.
// This is the single source of truth for group status; the stored column must
// always be the output of this function (cancellation excepted).
func DeriveGroupStatus(completed, total int) GroupStatus {
	switch {
	case completed == 0:
		return GroupPending
	case completed < total:
		return GroupPartial
	default:
		return GroupCompleted
	}
}
