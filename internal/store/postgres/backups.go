package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/store"
	"github.com/lib/pq"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

const insertBackupSQL = `INSERT INTO backups
	 (backup_id, client_id, backup_type, delivery_type, backup_date, duration_ms, total_items, total_bytes, error_count, error_messages)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func (s *BackupStore) AddBackupResult(ctx context.Context, meta models.BackupResultMeta, metrics models.BackupResultMetrics) error {
	_, err := s.db.ExecContext(ctx, insertBackupSQL, backupArgs(meta, metrics)...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return store.ErrConditionFailed
		}
		return err
	}
	return nil
}

// backupArgs binds the insertBackupSQL parameters. error_messages is NOT NULL,
// so a run without errors is stored as an empty array.
func backupArgs(meta models.BackupResultMeta, metrics models.BackupResultMetrics) []interface{} {
	messages := metrics.ErrorMessages
	if messages == nil {
		messages = []string{}
	}
	return []interface{}{
		meta.BackupID, meta.ClientID, meta.BackupType, meta.DeliveryType,
		metrics.BackupDate.UTC(), metrics.Duration.Milliseconds(),
		metrics.TotalItems, metrics.TotalBytes, metrics.ErrorCount, pq.Array(messages),
	}
}
