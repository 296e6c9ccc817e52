package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shijin-alpha/buildhub-main-sub011/internal/models"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/storage"
)

const transactionColumns = `id, group_id, sequence, amount, currency, description,
	gateway_order_id, gateway_payment_ref, gateway_signature, status, failure_reason,
	created_at, updated_at`

// GetTransaction retrieves the installment at the given sequence.
func (s *SQLiteStore) GetTransaction(ctx context.Context, groupID string, sequence int) (*models.SplitPaymentTransaction, error) {
	return scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM split_payment_transactions WHERE group_id = ? AND sequence = ?`,
		groupID, sequence,
	), groupID, sequence)
}

// ListTransactions returns all installments of a group in sequence order.
func (s *SQLiteStore) ListTransactions(ctx context.Context, groupID string) ([]*models.SplitPaymentTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM split_payment_transactions WHERE group_id = ? ORDER BY sequence`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list installments: %w", err)
	}
	defer rows.Close()

	var installments []*models.SplitPaymentTransaction
	for rows.Next() {
		inst, err := scanTransaction(rows, groupID, 0)
		if err != nil {
			return nil, err
		}
		installments = append(installments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate installments: %w", err)
	}
	return installments, nil
}

// AttachGatewayOrder records a freshly created gateway order against an
// installment and moves it to pending. A completed installment is immutable
// and rejects the write.
func (s *SQLiteStore) AttachGatewayOrder(ctx context.Context, groupID string, sequence int, orderID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE split_payment_transactions
		 SET gateway_order_id = ?, status = ?, failure_reason = NULL, updated_at = ?
		 WHERE group_id = ? AND sequence = ? AND status != ?`,
		orderID, string(models.TxPending), time.Now().Unix(),
		groupID, sequence, string(models.TxCompleted),
	)
	if err != nil {
		return fmt.Errorf("failed to attach gateway order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("installment %d of group %s not updatable: %w", sequence, groupID, storage.ErrConflict)
	}
	return nil
}

// ApplyVerifiedOutcome applies one verified installment to the ledger: the
// transaction row, the group aggregates, the progress snapshot, and, on
// group completion, the payable mark and the outbox event, all in one
// database transaction.
func (s *SQLiteStore) ApplyVerifiedOutcome(ctx context.Context, groupID string, sequence int, paymentRef, signature string) (*storage.VerifiedOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	group, err := scanGroup(tx.QueryRowContext(ctx,
		`SELECT id, payable_type, payable_ref, payer_id, payee_id, total_amount, currency,
		        total_installments, completed_installments, completed_amount, status,
		        description, created_at, updated_at
		 FROM split_payment_groups WHERE id = ?`,
		groupID,
	), groupID)
	if err != nil {
		return nil, err
	}
	if group.Status == models.GroupCancelled {
		return nil, fmt.Errorf("group %s is cancelled: %w", groupID, storage.ErrConflict)
	}

	inst, err := scanTransaction(tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM split_payment_transactions WHERE group_id = ? AND sequence = ?`,
		groupID, sequence,
	), groupID, sequence)
	if err != nil {
		return nil, err
	}

	// Re-confirming a completed installment is a no-op: aggregates were
	// already updated exactly once.
	if inst.Status == models.TxCompleted {
		progress, err := queryProgress(ctx, tx, groupID)
		if err != nil {
			return nil, err
		}
		return &storage.VerifiedOutcome{
			AlreadyCompleted: true,
			Group:            group,
			Progress:         progress,
		}, nil
	}

	// Re-validated inside the transaction; the service checks this too, but
	// the ledger must hold the invariant on its own.
	if sequence != group.CompletedInstallments+1 {
		return nil, fmt.Errorf("installment %d applied while %d completed: %w",
			sequence, group.CompletedInstallments, storage.ErrConflict)
	}

	now := time.Now().Unix()
	_, err = tx.ExecContext(ctx,
		`UPDATE split_payment_transactions
		 SET status = ?, gateway_payment_ref = ?, gateway_signature = ?, failure_reason = NULL, updated_at = ?
		 WHERE id = ?`,
		string(models.TxCompleted), paymentRef, signature, now, inst.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to complete installment: %w", err)
	}

	group.CompletedInstallments++
	group.CompletedAmount += inst.Amount
	group.Status = models.DeriveGroupStatus(group.CompletedInstallments, group.TotalInstallments)
	group.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`UPDATE split_payment_groups
		 SET completed_installments = ?, completed_amount = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		group.CompletedInstallments, group.CompletedAmount, string(group.Status), now, group.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update group aggregates: %w", err)
	}

	progress, err := rewriteProgress(ctx, tx, group)
	if err != nil {
		return nil, err
	}

	outcome := &storage.VerifiedOutcome{
		Group:    group,
		Progress: progress,
	}

	if group.Status == models.GroupCompleted {
		outcome.GroupCompleted = true
		if err := markPayablePaid(ctx, tx, group, now); err != nil {
			return nil, err
		}
		if err := appendOutboxEvent(ctx, tx, group, models.EventGroupCompleted, map[string]interface{}{
			"group_id":     group.ID,
			"payable_type": string(group.PayableType),
			"payable_ref":  group.PayableRef,
			"total_amount": group.TotalAmount,
			"currency":     group.Currency,
		}, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return outcome, nil
}

// MarkTransactionFailed records a failed verification attempt. The group
// aggregates stay untouched; the failure is reported to the outbox.
func (s *SQLiteStore) MarkTransactionFailed(ctx context.Context, groupID string, sequence int, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	res, err := tx.ExecContext(ctx,
		`UPDATE split_payment_transactions
		 SET status = ?, failure_reason = ?, updated_at = ?
		 WHERE group_id = ? AND sequence = ? AND status != ?`,
		string(models.TxFailed), reason, now, groupID, sequence, string(models.TxCompleted),
	)
	if err != nil {
		return fmt.Errorf("failed to mark installment failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("installment %d of group %s not updatable: %w", sequence, groupID, storage.ErrConflict)
	}

	group, err := scanGroup(tx.QueryRowContext(ctx,
		`SELECT id, payable_type, payable_ref, payer_id, payee_id, total_amount, currency,
		        total_installments, completed_installments, completed_amount, status,
		        description, created_at, updated_at
		 FROM split_payment_groups WHERE id = ?`,
		groupID,
	), groupID)
	if err != nil {
		return err
	}

	if err := appendOutboxEvent(ctx, tx, group, models.EventInstallmentFailed, map[string]interface{}{
		"group_id": groupID,
		"sequence": sequence,
		"reason":   reason,
	}, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rewriteProgress recomputes and upserts the group's progress snapshot inside
// the given transaction.
func rewriteProgress(ctx context.Context, tx *sql.Tx, group *models.SplitPaymentGroup) (*models.SplitPaymentProgress, error) {
	progress := &models.SplitPaymentProgress{
		GroupID:               group.ID,
		CompletedInstallments: group.CompletedInstallments,
		TotalInstallments:     group.TotalInstallments,
		CompletedAmount:       group.CompletedAmount,
		TotalAmount:           group.TotalAmount,
	}
	if group.TotalAmount > 0 {
		progress.ProgressPercentage = group.CompletedAmount / group.TotalAmount * 100
	}

	var next interface{}
	if group.CompletedInstallments < group.TotalInstallments {
		var amount float64
		err := tx.QueryRowContext(ctx,
			"SELECT amount FROM split_payment_transactions WHERE group_id = ? AND sequence = ?",
			group.ID, group.CompletedInstallments+1,
		).Scan(&amount)
		if err != nil {
			return nil, fmt.Errorf("failed to get next installment amount: %w", err)
		}
		progress.NextInstallmentAmount = &amount
		next = amount
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO split_payment_progress
		 (group_id, progress_percentage, completed_installments, total_installments,
		  completed_amount, total_amount, next_installment_amount)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(group_id) DO UPDATE SET
		   progress_percentage = excluded.progress_percentage,
		   completed_installments = excluded.completed_installments,
		   total_installments = excluded.total_installments,
		   completed_amount = excluded.completed_amount,
		   total_amount = excluded.total_amount,
		   next_installment_amount = excluded.next_installment_amount`,
		group.ID, progress.ProgressPercentage, progress.CompletedInstallments,
		progress.TotalInstallments, progress.CompletedAmount, progress.TotalAmount, next,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert progress snapshot: %w", err)
	}
	return progress, nil
}

// markPayablePaid records the underlying obligation as paid. The primary key
// on (payable_type, payable_ref) makes the mark exactly-once even if a second
// group ever targets the same obligation.
func markPayablePaid(ctx context.Context, tx *sql.Tx, group *models.SplitPaymentGroup, now int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO payables (payable_type, payable_ref, group_id, paid_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(payable_type, payable_ref) DO NOTHING`,
		string(group.PayableType), group.PayableRef, group.ID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to mark payable paid: %w", err)
	}
	return nil
}

func appendOutboxEvent(ctx context.Context, tx *sql.Tx, group *models.SplitPaymentGroup, eventType string, payload map[string]interface{}, now int64) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode outbox payload: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (id, group_id, event_type, payload, created_at, dispatched_at)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		uuid.New().String(), group.ID, eventType, string(body), now,
	)
	if err != nil {
		return fmt.Errorf("failed to append outbox event: %w", err)
	}
	return nil
}

func queryProgress(ctx context.Context, tx *sql.Tx, groupID string) (*models.SplitPaymentProgress, error) {
	progress := &models.SplitPaymentProgress{}
	var next sql.NullFloat64

	err := tx.QueryRowContext(ctx,
		`SELECT group_id, progress_percentage, completed_installments, total_installments,
		        completed_amount, total_amount, next_installment_amount
		 FROM split_payment_progress WHERE group_id = ?`,
		groupID,
	).Scan(&progress.GroupID, &progress.ProgressPercentage, &progress.CompletedInstallments,
		&progress.TotalInstallments, &progress.CompletedAmount, &progress.TotalAmount, &next)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("progress for group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	if next.Valid {
		progress.NextInstallmentAmount = &next.Float64
	}
	return progress, nil
}

func scanTransaction(row rowScanner, groupID string, sequence int) (*models.SplitPaymentTransaction, error) {
	inst := &models.SplitPaymentTransaction{}
	var status string
	var orderID, paymentRef, signature, failureReason sql.NullString

	err := row.Scan(&inst.ID, &inst.GroupID, &inst.Sequence, &inst.Amount, &inst.Currency,
		&inst.Description, &orderID, &paymentRef, &signature, &status, &failureReason,
		&inst.CreatedAt, &inst.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("installment %d of group %s: %w", sequence, groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan installment: %w", err)
	}

	inst.Status = models.TransactionStatus(status)
	if orderID.Valid {
		inst.GatewayOrderID = orderID.String
	}
	if paymentRef.Valid {
		inst.GatewayPaymentRef = paymentRef.String
	}
	if signature.Valid {
		inst.GatewaySignature = signature.String
	}
	if failureReason.Valid {
		inst.FailureReason = failureReason.String
	}
	return inst, nil
}
