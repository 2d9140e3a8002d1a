package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/google/uuid"
)

const settlementRequestColumns = `
	id,
	owner_id,
	total_wage,
	status,
	requested_at,
	approved_at,
	approved_by,
	deleted_records,
	cleared_wages,
	version
`

func scanSettlementRequest(row interface{ Scan(dest ...any) error }) (*domain.SettlementRequest, error) {
	req := &domain.SettlementRequest{}
	var approvedAt sql.NullTime
	var approvedBy uuid.NullUUID

	dst := []any{
		&req.ID,
		&req.OwnerID,
		&req.TotalWage,
		&req.Status,
		&req.RequestedAt,
		&approvedAt,
		&approvedBy,
		&req.DeletedRecords,
		&req.ClearedWages,
		&req.Version,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	if approvedAt.Valid {
		req.ApprovedAt = &approvedAt.Time
	}
	if approvedBy.Valid {
		req.ApprovedBy = &approvedBy.UUID
	}

	return req, nil
}

func (r *Repository) CreateSettlementRequest(ctx context.Context, req *domain.SettlementRequest) error {
	query := `
		INSERT INTO settlement_requests (id, owner_id, total_wage, status)
		VALUES ($1, $2, $3, $4)
		RETURNING requested_at, version
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.Status = domain.SettlementStatusPending

	params := []any{req.ID, req.OwnerID, req.TotalWage, req.Status}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(&req.RequestedAt, &req.Version); err != nil {
		return wrapError(err)
	}

	return nil
}

func (r *Repository) GetSettlementRequestByID(ctx context.Context, id uuid.UUID) (*domain.SettlementRequest, error) {
	query := `SELECT ` + settlementRequestColumns + ` FROM settlement_requests WHERE id = $1`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	req, err := scanSettlementRequest(r.dbpool.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapError(err)
	}

	return req, nil
}

func (r *Repository) GetPendingSettlementRequests(ctx context.Context) ([]*domain.SettlementRequest, error) {
	query := `
		SELECT ` + settlementRequestColumns + `
		FROM settlement_requests
		WHERE status = $1
		ORDER BY requested_at, id
	`

	return r.listSettlementRequests(ctx, query, domain.SettlementStatusPending)
}

func (r *Repository) GetSettlementRequestsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.SettlementRequest, error) {
	query := `
		SELECT ` + settlementRequestColumns + `
		FROM settlement_requests
		WHERE owner_id = $1
		ORDER BY requested_at DESC, id
	`

	return r.listSettlementRequests(ctx, query, ownerID)
}

func (r *Repository) listSettlementRequests(ctx context.Context, query string, args ...any) ([]*domain.SettlementRequest, error) {
	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	reqs := []*domain.SettlementRequest{}
	for rows.Next() {
		req, err := scanSettlementRequest(rows)
		if err != nil {
			return nil, wrapError(err)
		}
		reqs = append(reqs, req)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapError(err)
	}

	return reqs, nil
}

// ApproveSettlementRequest moves a pending request to approved and clears the
// owner's schedule records in one transaction. The status update is a
// compare-and-set on status = 'pending', so of several concurrent calls for the
// same request exactly one gets past it; the others fail with ErrInvalidState.
func (r *Repository) ApproveSettlementRequest(ctx context.Context, id uuid.UUID, approvedBy uuid.UUID) (*domain.SettlementApproval, error) {
	ctx, cancel := r.transactionContext(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapError(err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		UPDATE settlement_requests
		SET
			status = $1,
			approved_at = NOW(),
			approved_by = $2,
			version = version + 1
		WHERE id = $3 AND status = $4
		RETURNING ` + settlementRequestColumns

	params := []any{domain.SettlementStatusApproved, approvedBy, id, domain.SettlementStatusPending}
	req, err := scanSettlementRequest(tx.QueryRowContext(ctx, query, params...))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, wrapError(err)
		}

		// nothing was updated: either the request does not exist or it is no longer pending
		var status domain.SettlementStatus
		err := tx.QueryRowContext(ctx, `SELECT status FROM settlement_requests WHERE id = $1`, id).Scan(&status)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("%w: settlement request %s", domain.ErrNotFound, id)
		case err != nil:
			return nil, wrapError(err)
		default:
			return nil, fmt.Errorf("%w: settlement request %s is %s", domain.ErrInvalidState, id, status)
		}
	}

	cutoff := *req.ApprovedAt

	deleted, cleared, err := r.DeleteAllScheduleRecordsByOwner(ctx, tx, req.OwnerID, cutoff)
	if err != nil {
		return nil, err
	}

	query = `UPDATE settlement_requests SET deleted_records = $1, cleared_wages = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, query, deleted, cleared, id); err != nil {
		return nil, wrapError(err)
	}
	req.DeletedRecords = deleted
	req.ClearedWages = cleared

	if err := tx.Commit(); err != nil {
		return nil, wrapError(err)
	}

	return &domain.SettlementApproval{
		Request:        req,
		DeletedRecords: deleted,
		ScheduledTotal: cleared,
	}, nil
}
