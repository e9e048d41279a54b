package store

import (
	"context"
	"errors"

	"github.com/amekkawi/arq-console/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConditionFailed is returned when a create-only or must-exist write
	// condition is not met.
	ErrConditionFailed = errors.New("store condition failed")
)

// Client attribute names accepted by ClientStore.GetClient.
const (
	AttrClientID    = "clientId"
	AttrClientKey   = "clientKey"
	AttrBackupCount = "backupCount"
	AttrTotalBytes  = "totalBytes"
	AttrTotalItems  = "totalItems"
	AttrErrorCount  = "errorCount"
)

type ClientStore interface {
	// GetClient returns ErrNotFound when the client does not exist. A
	// non-empty attributes list limits which fields are fetched.
	GetClient(ctx context.Context, clientID string, attributes []string) (*models.ClientRecord, error)
}

type BackupStore interface {
	// AddBackupResult creates the record only if meta.BackupID is not yet
	// stored; otherwise it returns ErrConditionFailed.
	AddBackupResult(ctx context.Context, meta models.BackupResultMeta, metrics models.BackupResultMetrics) error
}

type MetricStore interface {
	// AddClientTotals atomically adds to the client record, which must
	// already exist (ErrConditionFailed otherwise).
	AddClientTotals(ctx context.Context, clientID string, delta models.ClientTotals) error
	// AddClientMetric atomically adds the non-zero period counters to a
	// metric bucket, creating it as needed.
	AddClientMetric(ctx context.Context, inc models.MetricIncrement) error
}

// Store is the full key-value surface consumed by the ingest pipeline.
type Store interface {
	ClientStore
	BackupStore
	MetricStore
}

// KnownClientAttribute reports whether name is a ClientRecord attribute.
func KnownClientAttribute(name string) bool {
	switch name {
	case AttrClientID, AttrClientKey, AttrBackupCount, AttrTotalBytes, AttrTotalItems, AttrErrorCount:
		return true
	}
	return false
}
