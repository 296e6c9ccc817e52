package sqlite

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/shijin-alpha/buildhub-main-sub011/internal/models"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "buildhub-ledger-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedGroup(t *testing.T, store *SQLiteStore, amounts ...float64) *models.SplitPaymentGroup {
	t.Helper()

	var total float64
	installments := make([]*models.SplitPaymentTransaction, len(amounts))
	for i, amount := range amounts {
		total += amount
		installments[i] = &models.SplitPaymentTransaction{
			Sequence: i + 1,
			Amount:   amount,
			Currency: "INR",
			Status:   models.TxCreated,
		}
	}

	group := &models.SplitPaymentGroup{
		PayableType:       models.PayableStagePayment,
		PayableRef:        "stage-42",
		PayerID:           "homeowner-1",
		PayeeID:           "contractor-9",
		TotalAmount:       total,
		Currency:          "INR",
		TotalInstallments: len(amounts),
	}
	if err := store.CreateGroupWithInstallments(context.Background(), group, installments); err != nil {
		t.Fatalf("CreateGroupWithInstallments failed: %v", err)
	}
	return group
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("CreateGroupWithInstallments generates IDs and initial state", func(t *testing.T) {
		group := seedGroup(t, store, 1000, 1000, 1000)

		if group.ID == "" {
			t.Error("Expected group ID to be generated")
		}
		if group.Status != models.GroupPending {
			t.Errorf("Expected pending status, got %s", group.Status)
		}

		installments, err := store.ListTransactions(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(installments) != 3 {
			t.Fatalf("Expected 3 installments, got %d", len(installments))
		}
		for i, inst := range installments {
			if inst.Sequence != i+1 {
				t.Errorf("Installment %d has sequence %d", i, inst.Sequence)
			}
			if inst.Status != models.TxCreated {
				t.Errorf("Installment %d has status %s, want created", i+1, inst.Status)
			}
		}

		progress, err := store.GetProgress(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetProgress failed: %v", err)
		}
		if progress.ProgressPercentage != 0 {
			t.Errorf("Expected 0%% progress, got %v", progress.ProgressPercentage)
		}
		if progress.NextInstallmentAmount == nil || *progress.NextInstallmentAmount != 1000 {
			t.Errorf("Expected next installment 1000, got %v", progress.NextInstallmentAmount)
		}
	})

	t.Run("GetGroup returns ErrNotFound for unknown ID", func(t *testing.T) {
		_, err := store.GetGroup(ctx, "nonexistent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ApplyVerifiedOutcome updates aggregates and progress", func(t *testing.T) {
		group := seedGroup(t, store, 1000, 1000, 1000)

		if err := store.AttachGatewayOrder(ctx, group.ID, 1, "order_1"); err != nil {
			t.Fatalf("AttachGatewayOrder failed: %v", err)
		}

		outcome, err := store.ApplyVerifiedOutcome(ctx, group.ID, 1, "pay_1", "sig_1")
		if err != nil {
			t.Fatalf("ApplyVerifiedOutcome failed: %v", err)
		}
		if outcome.AlreadyCompleted {
			t.Error("First apply reported AlreadyCompleted")
		}
		if outcome.GroupCompleted {
			t.Error("Group reported completed after one of three installments")
		}
		if outcome.Group.Status != models.GroupPartial {
			t.Errorf("Expected partial status, got %s", outcome.Group.Status)
		}
		if outcome.Group.CompletedAmount != 1000 {
			t.Errorf("Expected completed amount 1000, got %v", outcome.Group.CompletedAmount)
		}
		if math.Abs(outcome.Progress.ProgressPercentage-100.0/3) > 0.1 {
			t.Errorf("Expected ~33.3%% progress, got %v", outcome.Progress.ProgressPercentage)
		}
		if outcome.Progress.NextInstallmentAmount == nil || *outcome.Progress.NextInstallmentAmount != 1000 {
			t.Errorf("Expected next installment 1000, got %v", outcome.Progress.NextInstallmentAmount)
		}

		inst, err := store.GetTransaction(ctx, group.ID, 1)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if inst.Status != models.TxCompleted {
			t.Errorf("Expected completed installment, got %s", inst.Status)
		}
		if inst.GatewayPaymentRef != "pay_1" {
			t.Errorf("Expected payment ref pay_1, got %s", inst.GatewayPaymentRef)
		}
	})

	t.Run("ApplyVerifiedOutcome is idempotent per sequence", func(t *testing.T) {
		group := seedGroup(t, store, 500, 500)
		if err := store.AttachGatewayOrder(ctx, group.ID, 1, "order_1"); err != nil {
			t.Fatalf("AttachGatewayOrder failed: %v", err)
		}

		first, err := store.ApplyVerifiedOutcome(ctx, group.ID, 1, "pay_1", "sig_1")
		if err != nil {
			t.Fatalf("First ApplyVerifiedOutcome failed: %v", err)
		}
		second, err := store.ApplyVerifiedOutcome(ctx, group.ID, 1, "pay_1", "sig_1")
		if err != nil {
			t.Fatalf("Second ApplyVerifiedOutcome failed: %v", err)
		}
		if !second.AlreadyCompleted {
			t.Error("Second apply did not report AlreadyCompleted")
		}
		if second.Group.CompletedAmount != first.Group.CompletedAmount {
			t.Errorf("Completed amount changed on duplicate apply: %v -> %v",
				first.Group.CompletedAmount, second.Group.CompletedAmount)
		}
		if second.Group.CompletedInstallments != 1 {
			t.Errorf("Expected 1 completed installment, got %d", second.Group.CompletedInstallments)
		}
	})

	t.Run("ApplyVerifiedOutcome rejects out-of-sequence apply", func(t *testing.T) {
		group := seedGroup(t, store, 500, 500, 500)

		_, err := store.ApplyVerifiedOutcome(ctx, group.ID, 2, "pay_2", "sig_2")
		if !errors.Is(err, storage.ErrConflict) {
			t.Errorf("Expected ErrConflict, got %v", err)
		}
	})

	t.Run("Completion marks payable paid and records outbox event", func(t *testing.T) {
		store := newTestStore(t)
		group := seedGroup(t, store, 800)

		if err := store.AttachGatewayOrder(ctx, group.ID, 1, "order_1"); err != nil {
			t.Fatalf("AttachGatewayOrder failed: %v", err)
		}
		outcome, err := store.ApplyVerifiedOutcome(ctx, group.ID, 1, "pay_1", "sig_1")
		if err != nil {
			t.Fatalf("ApplyVerifiedOutcome failed: %v", err)
		}
		if !outcome.GroupCompleted {
			t.Fatal("Expected GroupCompleted outcome")
		}
		if outcome.Group.Status != models.GroupCompleted {
			t.Errorf("Expected completed status, got %s", outcome.Group.Status)
		}
		if outcome.Progress.NextInstallmentAmount != nil {
			t.Errorf("Expected nil next installment, got %v", *outcome.Progress.NextInstallmentAmount)
		}

		paid, err := store.IsPayablePaid(ctx, models.PayableStagePayment, "stage-42")
		if err != nil {
			t.Fatalf("IsPayablePaid failed: %v", err)
		}
		if !paid {
			t.Error("Expected payable marked paid")
		}

		events, err := store.ListPendingOutbox(ctx, 10)
		if err != nil {
			t.Fatalf("ListPendingOutbox failed: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("Expected 1 outbox event, got %d", len(events))
		}
		if events[0].EventType != models.EventGroupCompleted {
			t.Errorf("Expected %s event, got %s", models.EventGroupCompleted, events[0].EventType)
		}

		if err := store.MarkOutboxDispatched(ctx, events[0].ID); err != nil {
			t.Fatalf("MarkOutboxDispatched failed: %v", err)
		}
		events, err = store.ListPendingOutbox(ctx, 10)
		if err != nil {
			t.Fatalf("ListPendingOutbox failed: %v", err)
		}
		if len(events) != 0 {
			t.Errorf("Expected no pending events after dispatch, got %d", len(events))
		}
	})

	t.Run("MarkTransactionFailed leaves aggregates untouched", func(t *testing.T) {
		store := newTestStore(t)
		group := seedGroup(t, store, 700, 700)

		if err := store.AttachGatewayOrder(ctx, group.ID, 1, "order_1"); err != nil {
			t.Fatalf("AttachGatewayOrder failed: %v", err)
		}
		if err := store.MarkTransactionFailed(ctx, group.ID, 1, "signature mismatch"); err != nil {
			t.Fatalf("MarkTransactionFailed failed: %v", err)
		}

		inst, err := store.GetTransaction(ctx, group.ID, 1)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if inst.Status != models.TxFailed {
			t.Errorf("Expected failed installment, got %s", inst.Status)
		}
		if inst.FailureReason != "signature mismatch" {
			t.Errorf("Unexpected failure reason: %s", inst.FailureReason)
		}

		got, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if got.CompletedInstallments != 0 || got.CompletedAmount != 0 {
			t.Errorf("Aggregates moved on failure: %d/%v", got.CompletedInstallments, got.CompletedAmount)
		}

		// A fresh order re-enters pending and clears the failure.
		if err := store.AttachGatewayOrder(ctx, group.ID, 1, "order_1b"); err != nil {
			t.Fatalf("AttachGatewayOrder retry failed: %v", err)
		}
		inst, err = store.GetTransaction(ctx, group.ID, 1)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if inst.Status != models.TxPending {
			t.Errorf("Expected pending after retry, got %s", inst.Status)
		}
		if inst.FailureReason != "" {
			t.Errorf("Expected failure reason cleared, got %s", inst.FailureReason)
		}

		events, err := store.ListPendingOutbox(ctx, 10)
		if err != nil {
			t.Fatalf("ListPendingOutbox failed: %v", err)
		}
		if len(events) != 1 || events[0].EventType != models.EventInstallmentFailed {
			t.Errorf("Expected one installment-failed event, got %v", events)
		}
	})

	t.Run("Completed installment is immutable", func(t *testing.T) {
		group := seedGroup(t, store, 900)
		if err := store.AttachGatewayOrder(ctx, group.ID, 1, "order_1"); err != nil {
			t.Fatalf("AttachGatewayOrder failed: %v", err)
		}
		if _, err := store.ApplyVerifiedOutcome(ctx, group.ID, 1, "pay_1", "sig_1"); err != nil {
			t.Fatalf("ApplyVerifiedOutcome failed: %v", err)
		}

		if err := store.AttachGatewayOrder(ctx, group.ID, 1, "order_2"); !errors.Is(err, storage.ErrConflict) {
			t.Errorf("Expected ErrConflict attaching order to completed installment, got %v", err)
		}
		if err := store.MarkTransactionFailed(ctx, group.ID, 1, "late failure"); !errors.Is(err, storage.ErrConflict) {
			t.Errorf("Expected ErrConflict failing completed installment, got %v", err)
		}
	})

	t.Run("CancelGroup", func(t *testing.T) {
		group := seedGroup(t, store, 400, 400)
		if err := store.CancelGroup(ctx, group.ID); err != nil {
			t.Fatalf("CancelGroup failed: %v", err)
		}

		got, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if got.Status != models.GroupCancelled {
			t.Errorf("Expected cancelled status, got %s", got.Status)
		}

		progress, err := store.GetProgress(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetProgress failed: %v", err)
		}
		if progress.NextInstallmentAmount != nil {
			t.Error("Expected nil next installment after cancel")
		}

		// Cancelled groups accept no further outcomes.
		_, err = store.ApplyVerifiedOutcome(ctx, group.ID, 1, "pay_1", "sig_1")
		if !errors.Is(err, storage.ErrConflict) {
			t.Errorf("Expected ErrConflict on cancelled group, got %v", err)
		}

		// Cancelling twice is a no-op.
		if err := store.CancelGroup(ctx, group.ID); err != nil {
			t.Errorf("Second CancelGroup failed: %v", err)
		}
	})

	t.Run("CancelGroup rejects completed group", func(t *testing.T) {
		group := seedGroup(t, store, 600)
		if err := store.AttachGatewayOrder(ctx, group.ID, 1, "order_1"); err != nil {
			t.Fatalf("AttachGatewayOrder failed: %v", err)
		}
		if _, err := store.ApplyVerifiedOutcome(ctx, group.ID, 1, "pay_1", "sig_1"); err != nil {
			t.Fatalf("ApplyVerifiedOutcome failed: %v", err)
		}

		if err := store.CancelGroup(ctx, group.ID); !errors.Is(err, storage.ErrConflict) {
			t.Errorf("Expected ErrConflict cancelling completed group, got %v", err)
		}
	})
}
