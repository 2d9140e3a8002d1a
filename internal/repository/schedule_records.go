package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/gigmatch-dev/settlement/backend/internal/retry"
	"github.com/google/uuid"
)

func (r *Repository) CreateScheduleRecord(ctx context.Context, record *domain.ScheduleRecord) error {
	query := `
		INSERT INTO schedule_records (id, owner_id, wage, work_date, start_time, end_time, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	params := []any{
		record.ID,
		record.OwnerID,
		record.Wage,
		record.WorkDate,
		record.StartTime,
		record.EndTime,
		record.Description,
	}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(&record.CreatedAt); err != nil {
		return wrapError(err)
	}

	return nil
}

func (r *Repository) GetScheduleRecordsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.ScheduleRecord, error) {
	query := `
		SELECT
			id,
			wage,
			work_date,
			to_char(start_time, 'HH24:MI'),
			to_char(end_time, 'HH24:MI'),
			description,
			created_at
		FROM schedule_records
		WHERE owner_id = $1
		ORDER BY created_at, id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	records := []*domain.ScheduleRecord{}
	for rows.Next() {
		record := &domain.ScheduleRecord{
			OwnerID: ownerID,
		}
		dst := []any{
			&record.ID,
			&record.Wage,
			&record.WorkDate,
			&record.StartTime,
			&record.EndTime,
			&record.Description,
			&record.CreatedAt,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, wrapError(err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapError(err)
	}

	return records, nil
}

// DeleteAllScheduleRecordsByOwner removes every record of the owner created at or
// before cutoff and returns how many rows were removed and the sum of their
// wages. The rows go in batches; when q is a transaction each batch runs under
// a savepoint so that a failed batch can be retried without giving up the work
// already done in the transaction.
//
// Only the settlement approval may call this.
func (r *Repository) DeleteAllScheduleRecordsByOwner(ctx context.Context, q Querier, ownerID uuid.UUID, cutoff time.Time) (int64, int64, error) {
	batchSize := r.cfg.Settlement.DeleteBatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	var deleted, wages int64
	for {
		batch, err := r.deleteScheduleRecordBatch(ctx, q, ownerID, cutoff, batchSize)
		if err != nil {
			return deleted, wages, err
		}
		deleted += batch.count
		wages += batch.wages

		if batch.count < int64(batchSize) {
			return deleted, wages, nil
		}
	}
}

type deletedBatch struct {
	count int64
	wages int64
}

// errTransactionLost marks a batch failure after which the savepoint could not
// be rolled back, so the whole transaction has to start over.
var errTransactionLost = errors.New("transaction lost")

func (r *Repository) deleteScheduleRecordBatch(ctx context.Context, q Querier, ownerID uuid.UUID, cutoff time.Time, limit int) (deletedBatch, error) {
	query := `
		WITH deleted AS (
			DELETE FROM schedule_records
			WHERE id IN (
				SELECT id FROM schedule_records
				WHERE owner_id = $1 AND created_at <= $2
				LIMIT $3
			)
			RETURNING wage
		)
		SELECT COUNT(*), COALESCE(SUM(wage), 0) FROM deleted
	`

	_, inTx := q.(*sql.Tx)
	policy := retry.Policy{
		Attempts: r.cfg.Settlement.DeleteRetryAttempts,
		Interval: time.Duration(r.cfg.Settlement.RetryBackoff) * time.Millisecond,
	}
	retryable := func(err error) bool {
		return !errors.Is(err, errTransactionLost) && IsTransient(err)
	}

	batch, err := retry.Do(ctx, policy, "delete schedule records", retryable, func(ctx context.Context) (deletedBatch, error) {
		if inTx {
			if _, err := q.ExecContext(ctx, "SAVEPOINT delete_schedule_batch"); err != nil {
				return deletedBatch{}, errors.Join(errTransactionLost, err)
			}
		}

		var batch deletedBatch
		err := q.QueryRowContext(ctx, query, ownerID, cutoff, limit).Scan(&batch.count, &batch.wages)
		if err == nil {
			if inTx {
				if _, err := q.ExecContext(ctx, "RELEASE SAVEPOINT delete_schedule_batch"); err != nil {
					return deletedBatch{}, errors.Join(errTransactionLost, err)
				}
			}
			return batch, nil
		}

		if inTx {
			if _, rbErr := q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT delete_schedule_batch"); rbErr != nil {
				return deletedBatch{}, errors.Join(errTransactionLost, err)
			}
		}
		return deletedBatch{}, err
	})
	if err != nil {
		slog.Warn("failed to delete schedule records", "owner_id", ownerID, "error", err)
		return deletedBatch{}, wrapError(err)
	}

	return batch, nil
}
