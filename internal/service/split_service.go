package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/shijin-alpha/buildhub-main-sub011/internal/calculator"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/config"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/gateway"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/metrics"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/models"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/storage"
)

// Waker nudges the outbox dispatcher after a commit so completion events go
// out promptly instead of waiting for the next poll.
type Waker interface {
	Wake()
}

// SplitService drives split groups and their installments: it owns plan
// creation, the per-installment order/verify protocol, and the group
// aggregate bookkeeping.
type SplitService struct {
	store   storage.Store
	gateway gateway.Client
	split   config.SplitConfig
	waker   Waker

	// orders deduplicates concurrent order requests for the same
	// installment so double-clicked clients share one gateway call.
	orders singleflight.Group
}

// NewSplitService creates a SplitService. waker may be nil.
func NewSplitService(store storage.Store, gw gateway.Client, split config.SplitConfig, waker Waker) *SplitService {
	return &SplitService{
		store:   store,
		gateway: gw,
		split:   split,
		waker:   waker,
	}
}

// CreatePlanInput describes the obligation to split.
type CreatePlanInput struct {
	PayableType models.PayableType
	PayableRef  string
	PayeeID     string
	TotalAmount float64
	Currency    string
	Description string
}

// GroupDetail bundles a group with its installments.
type GroupDetail struct {
	Group        *models.SplitPaymentGroup
	Installments []*models.SplitPaymentTransaction
}

// OrderDetails is what a payer needs to complete one installment out of band.
type OrderDetails struct {
	GatewayOrderID string
	Sequence       int
	Amount         float64
	Currency       string
}

// ConfirmInput is a client-submitted payment confirmation.
type ConfirmInput struct {
	GatewayOrderID    string
	GatewayPaymentRef string
	GatewaySignature  string
}

// ConfirmResult reports the outcome of a confirmation.
type ConfirmResult struct {
	// AlreadyCompleted is true when this confirmation was a duplicate and
	// changed nothing.
	AlreadyCompleted bool
	GroupStatus      models.GroupStatus
	Progress         *models.SplitPaymentProgress
}

// CreateSplitPlan computes an installment plan for the obligation and
// persists the group with all of its installment rows atomically.
func (s *SplitService) CreateSplitPlan(ctx context.Context, payerID string, in CreatePlanInput) (*GroupDetail, error) {
	if payerID == "" {
		return nil, ErrAccessDenied
	}
	if !in.PayableType.Valid() {
		return nil, fmt.Errorf("%w: bad payable type %q", calculator.ErrInvalidAmount, in.PayableType)
	}
	if in.PayableRef == "" {
		return nil, fmt.Errorf("%w: payable reference required", calculator.ErrInvalidAmount)
	}

	limits, ok := s.split.LimitsFor(in.Currency)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported currency %q", calculator.ErrInvalidAmount, in.Currency)
	}

	plan, err := calculator.BuildPlan(in.TotalAmount, limits)
	if err != nil {
		slog.Warn("split plan rejected",
			"payable_ref", in.PayableRef,
			"total_amount", in.TotalAmount,
			"error", err,
		)
		return nil, err
	}

	group := &models.SplitPaymentGroup{
		PayableType:       in.PayableType,
		PayableRef:        in.PayableRef,
		PayerID:           payerID,
		PayeeID:           in.PayeeID,
		TotalAmount:       in.TotalAmount,
		Currency:          in.Currency,
		TotalInstallments: len(plan),
		Description:       in.Description,
	}
	installments := make([]*models.SplitPaymentTransaction, len(plan))
	for i, inst := range plan {
		installments[i] = &models.SplitPaymentTransaction{
			Sequence:    inst.Sequence,
			Amount:      inst.Amount,
			Currency:    in.Currency,
			Description: inst.Description,
			Status:      models.TxCreated,
		}
	}

	if err := s.store.CreateGroupWithInstallments(ctx, group, installments); err != nil {
		slog.Error("failed to persist split group", "payable_ref", in.PayableRef, "error", err)
		return nil, fmt.Errorf("failed to create split group: %w", err)
	}

	metrics.PlansCreated.WithLabelValues(string(in.PayableType)).Inc()
	slog.Info("split group created",
		"group_id", group.ID,
		"payable_type", in.PayableType,
		"payable_ref", in.PayableRef,
		"total_amount", in.TotalAmount,
		"installments", len(plan),
	)

	return &GroupDetail{Group: group, Installments: installments}, nil
}

// GetGroupDetail returns a group with its installments.
func (s *SplitService) GetGroupDetail(ctx context.Context, payerID, groupID string) (*GroupDetail, error) {
	group, err := s.loadOwnedGroup(ctx, payerID, groupID)
	if err != nil {
		return nil, err
	}
	installments, err := s.store.ListTransactions(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list installments: %w", err)
	}
	return &GroupDetail{Group: group, Installments: installments}, nil
}

// GetProgress returns the group's progress snapshot.
func (s *SplitService) GetProgress(ctx context.Context, payerID, groupID string) (*models.SplitPaymentProgress, error) {
	if _, err := s.loadOwnedGroup(ctx, payerID, groupID); err != nil {
		return nil, err
	}
	progress, err := s.store.GetProgress(ctx, groupID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return progress, nil
}

// RequestInstallmentOrder asks the gateway to open an order for the next
// payable installment. Installments must be requested strictly in order:
// sequence must equal completedInstallments+1. Re-requesting a still-pending
// sequence returns the outstanding order without touching the gateway.
func (s *SplitService) RequestInstallmentOrder(ctx context.Context, payerID, groupID string, sequence int) (*OrderDetails, error) {
	group, err := s.loadOwnedGroup(ctx, payerID, groupID)
	if err != nil {
		return nil, err
	}
	if group.Status == models.GroupCancelled {
		return nil, ErrGroupCancelled
	}
	if sequence < 1 || sequence > group.TotalInstallments {
		return nil, fmt.Errorf("%w: no installment %d", ErrGroupNotFound, sequence)
	}
	if sequence <= group.CompletedInstallments {
		return nil, ErrAlreadyProcessed
	}
	if sequence != group.CompletedInstallments+1 {
		return nil, fmt.Errorf("%w: next payable sequence is %d",
			ErrSequenceViolation, group.CompletedInstallments+1)
	}

	inst, err := s.store.GetTransaction(ctx, groupID, sequence)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	if inst.Status == models.TxCompleted {
		return nil, ErrAlreadyProcessed
	}

	// A pending order survives an abandoned request; hand it back instead
	// of opening a second one.
	if inst.Status == models.TxPending && inst.GatewayOrderID != "" {
		return &OrderDetails{
			GatewayOrderID: inst.GatewayOrderID,
			Sequence:       inst.Sequence,
			Amount:         inst.Amount,
			Currency:       inst.Currency,
		}, nil
	}

	key := fmt.Sprintf("%s#%d", groupID, sequence)
	v, err, _ := s.orders.Do(key, func() (interface{}, error) {
		// Fresh idempotency key per attempt: retrying order creation is
		// safe, replaying a stale key is not our concern.
		receipt := fmt.Sprintf("%s-%d-%s", inst.ID, sequence, uuid.New().String()[:8])
		order, err := s.gateway.CreateOrder(ctx, inst.Amount, inst.Currency, receipt)
		if err != nil {
			return nil, err
		}
		if err := s.store.AttachGatewayOrder(ctx, groupID, sequence, order.ID); err != nil {
			return nil, err
		}
		return order, nil
	})
	if err != nil {
		if errors.Is(err, gateway.ErrOrderCreation) {
			slog.Warn("gateway order creation failed",
				"group_id", groupID,
				"sequence", sequence,
				"error", err,
			)
			return nil, err
		}
		return nil, fmt.Errorf("failed to record gateway order: %w", err)
	}
	order := v.(*gateway.Order)

	metrics.OrdersRequested.Inc()
	slog.Info("installment order created",
		"group_id", groupID,
		"sequence", sequence,
		"order_id", order.ID,
		"amount", inst.Amount,
	)

	return &OrderDetails{
		GatewayOrderID: order.ID,
		Sequence:       sequence,
		Amount:         inst.Amount,
		Currency:       inst.Currency,
	}, nil
}

// ConfirmInstallment verifies a client-submitted payment confirmation and, on
// success, applies it to the ledger atomically. Confirming an
// already-completed installment is reported as success with no side effects,
// which tolerates client retries and double submits.
func (s *SplitService) ConfirmInstallment(ctx context.Context, payerID, groupID string, sequence int, in ConfirmInput) (*ConfirmResult, error) {
	group, err := s.loadOwnedGroup(ctx, payerID, groupID)
	if err != nil {
		return nil, err
	}
	if group.Status == models.GroupCancelled {
		return nil, ErrGroupCancelled
	}

	inst, err := s.store.GetTransaction(ctx, groupID, sequence)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	if inst.GatewayOrderID == "" || inst.GatewayOrderID != in.GatewayOrderID {
		return nil, fmt.Errorf("%w: order does not match installment", ErrGroupNotFound)
	}

	if inst.Status == models.TxCompleted {
		progress, err := s.store.GetProgress(ctx, groupID)
		if err != nil {
			return nil, err
		}
		metrics.Confirmations.WithLabelValues("already_completed").Inc()
		return &ConfirmResult{
			AlreadyCompleted: true,
			GroupStatus:      group.Status,
			Progress:         progress,
		}, nil
	}

	// Untrusted input: the confirmation only counts if the signature
	// verifies against our locally computed value. Fails closed.
	if !s.gateway.VerifySignature(in.GatewayOrderID, in.GatewayPaymentRef, in.GatewaySignature) {
		if err := s.store.MarkTransactionFailed(ctx, groupID, sequence, "signature verification failed"); err != nil {
			slog.Error("failed to record verification failure",
				"group_id", groupID, "sequence", sequence, "error", err)
		}
		metrics.Confirmations.WithLabelValues("signature_failed").Inc()
		slog.Warn("installment confirmation rejected",
			"group_id", groupID,
			"sequence", sequence,
			"order_id", in.GatewayOrderID,
		)
		s.wake()
		return nil, ErrSignatureVerificationFailed
	}

	outcome, err := s.store.ApplyVerifiedOutcome(ctx, groupID, sequence, in.GatewayPaymentRef, in.GatewaySignature)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", ErrSequenceViolation, err)
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to apply verified outcome: %w", err)
	}

	if outcome.AlreadyCompleted {
		metrics.Confirmations.WithLabelValues("already_completed").Inc()
	} else {
		metrics.Confirmations.WithLabelValues("completed").Inc()
	}

	if outcome.GroupCompleted {
		metrics.GroupsCompleted.Inc()
		slog.Info("split group completed",
			"group_id", groupID,
			"payable_type", outcome.Group.PayableType,
			"payable_ref", outcome.Group.PayableRef,
			"total_amount", outcome.Group.TotalAmount,
		)
		s.wake()
	} else if !outcome.AlreadyCompleted {
		slog.Info("installment completed",
			"group_id", groupID,
			"sequence", sequence,
			"completed", outcome.Group.CompletedInstallments,
			"total", outcome.Group.TotalInstallments,
		)
	}

	return &ConfirmResult{
		AlreadyCompleted: outcome.AlreadyCompleted,
		GroupStatus:      outcome.Group.Status,
		Progress:         outcome.Progress,
	}, nil
}

// CancelGroup stops collection on a group that is not yet complete. Recorded
// installments stay for auditing; no further orders or confirmations are
// accepted.
func (s *SplitService) CancelGroup(ctx context.Context, payerID, groupID string) error {
	if _, err := s.loadOwnedGroup(ctx, payerID, groupID); err != nil {
		return err
	}
	if err := s.store.CancelGroup(ctx, groupID); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return ErrAlreadyProcessed
		}
		return fmt.Errorf("failed to cancel group: %w", err)
	}
	slog.Info("split group cancelled", "group_id", groupID)
	return nil
}

// loadOwnedGroup fetches the group and enforces that the caller is its payer.
func (s *SplitService) loadOwnedGroup(ctx context.Context, payerID, groupID string) (*models.SplitPaymentGroup, error) {
	if groupID == "" {
		return nil, ErrGroupNotFound
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to load group: %w", err)
	}
	if payerID == "" || group.PayerID != payerID {
		return nil, ErrAccessDenied
	}
	return group, nil
}

func (s *SplitService) wake() {
	if s.waker != nil {
		s.waker.Wake()
	}
}
