package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shijin-alpha/buildhub-main-sub011/internal/models"
	"github.com/shijin-alpha/buildhub-main-sub011/internal/storage"
)

// CreateGroupWithInstallments persists a group and its installment rows in
// one transaction, together with the initial progress snapshot.
func (s *SQLiteStore) CreateGroupWithInstallments(ctx context.Context, group *models.SplitPaymentGroup, installments []*models.SplitPaymentTransaction) error {
	now := time.Now().Unix()
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	group.CreatedAt = now
	group.UpdatedAt = now
	group.Status = models.DeriveGroupStatus(group.CompletedInstallments, group.TotalInstallments)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO split_payment_groups
		 (id, payable_type, payable_ref, payer_id, payee_id, total_amount, currency,
		  total_installments, completed_installments, completed_amount, status,
		  description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		group.ID, string(group.PayableType), group.PayableRef, group.PayerID,
		nullableString(group.PayeeID), group.TotalAmount, group.Currency,
		group.TotalInstallments, group.CompletedInstallments, group.CompletedAmount,
		string(group.Status), group.Description, group.CreatedAt, group.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	for _, inst := range installments {
		if inst.ID == "" {
			inst.ID = uuid.New().String()
		}
		inst.GroupID = group.ID
		inst.CreatedAt = now
		inst.UpdatedAt = now

		_, err = tx.ExecContext(ctx,
			`INSERT INTO split_payment_transactions
			 (id, group_id, sequence, amount, currency, description, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inst.ID, inst.GroupID, inst.Sequence, inst.Amount, inst.Currency,
			inst.Description, string(inst.Status), inst.CreatedAt, inst.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert installment %d: %w", inst.Sequence, err)
		}
	}

	var next interface{}
	if len(installments) > 0 {
		next = installments[0].Amount
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO split_payment_progress
		 (group_id, progress_percentage, completed_installments, total_installments,
		  completed_amount, total_amount, next_installment_amount)
		 VALUES (?, 0, 0, ?, 0, ?, ?)`,
		group.ID, group.TotalInstallments, group.TotalAmount, next,
	)
	if err != nil {
		return fmt.Errorf("failed to insert progress snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.SplitPaymentGroup, error) {
	return scanGroup(s.db.QueryRowContext(ctx,
		`SELECT id, payable_type, payable_ref, payer_id, payee_id, total_amount, currency,
		        total_installments, completed_installments, completed_amount, status,
		        description, created_at, updated_at
		 FROM split_payment_groups WHERE id = ?`,
		groupID,
	), groupID)
}

// GetProgress returns the progress snapshot for a group.
func (s *SQLiteStore) GetProgress(ctx context.Context, groupID string) (*models.SplitPaymentProgress, error) {
	progress := &models.SplitPaymentProgress{}
	var next sql.NullFloat64

	err := s.db.QueryRowContext(ctx,
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

// CancelGroup transitions a non-completed group to cancelled. The group and
// its installments stay on record for auditing.
func (s *SQLiteStore) CancelGroup(ctx context.Context, groupID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM split_payment_groups WHERE id = ?", groupID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get group status: %w", err)
	}

	switch models.GroupStatus(status) {
	case models.GroupCompleted:
		return fmt.Errorf("group %s already completed: %w", groupID, storage.ErrConflict)
	case models.GroupCancelled:
		// Cancelling twice is a no-op.
		return nil
	}

	now := time.Now().Unix()
	_, err = tx.ExecContext(ctx,
		"UPDATE split_payment_groups SET status = ?, updated_at = ? WHERE id = ?",
		string(models.GroupCancelled), now, groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel group: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE split_payment_progress SET next_installment_amount = NULL WHERE group_id = ?",
		groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear next installment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGroup(row rowScanner, groupID string) (*models.SplitPaymentGroup, error) {
	group := &models.SplitPaymentGroup{}
	var payableType, status string
	var payeeID sql.NullString

	err := row.Scan(&group.ID, &payableType, &group.PayableRef, &group.PayerID, &payeeID,
		&group.TotalAmount, &group.Currency, &group.TotalInstallments,
		&group.CompletedInstallments, &group.CompletedAmount, &status,
		&group.Description, &group.CreatedAt, &group.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}

	group.PayableType = models.PayableType(payableType)
	group.Status = models.GroupStatus(status)
	if payeeID.Valid {
		group.PayeeID = payeeID.String
	}
	return group, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
