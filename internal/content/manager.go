// Package content tracks delivered backup result payloads through their
// received and archived states in the object store.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amekkawi/arq-console/internal/blob"
	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/telemetry"
)

const (
	receivedPrefix = "received/"
	archivedPrefix = "archived/"

	// IngestIDMetadata names the metadata entry recording which ingest
	// attempt archived the content.
	IngestIDMetadata = "ingest-id"
)

var ErrContentNotFound = errors.New("backup result content not found")

type Manager struct {
	blobs blob.Store
	now   func() time.Time
}

func NewManager(blobs blob.Store) *Manager {
	return &Manager{blobs: blobs, now: time.Now}
}

func receivedKey(backupID string) string { return receivedPrefix + backupID }
func archivedKey(backupID string) string { return archivedPrefix + backupID }

func contentType(backupID string) string {
	if strings.HasPrefix(backupID, models.DeliveryTypeEmail+"/") {
		return "message/rfc822"
	}
	return "application/octet-stream"
}

// SaveReceived stores a new delivery in the received state.
func (m *Manager) SaveReceived(ctx context.Context, backupID string, body []byte) error {
	if err := m.blobs.Put(ctx, receivedKey(backupID), contentType(backupID), body); err != nil {
		return fmt.Errorf("save received %s: %w", backupID, err)
	}
	return nil
}

// GetBackupResultContent reads received content, falling back to the
// archived copy for redelivered messages that were archived already.
func (m *Manager) GetBackupResultContent(ctx context.Context, backupID string) ([]byte, error) {
	for _, key := range []string{receivedKey(backupID), archivedKey(backupID)} {
		body, err := m.blobs.Get(ctx, key)
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, blob.ErrObjectNotFound) {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrContentNotFound, backupID)
}

// ArchiveBackupResultContent moves received content to the archived state.
// Archiving content that is already archived is a no-op.
func (m *Manager) ArchiveBackupResultContent(ctx context.Context, backupID, ingestID string) error {
	err := m.blobs.Move(ctx, receivedKey(backupID), archivedKey(backupID), map[string]string{
		IngestIDMetadata: ingestID,
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, blob.ErrObjectNotFound) {
		return fmt.Errorf("archive %s: %w", backupID, err)
	}

	if _, getErr := m.blobs.Get(ctx, archivedKey(backupID)); getErr != nil {
		if errors.Is(getErr, blob.ErrObjectNotFound) {
			return fmt.Errorf("%w: %s", ErrContentNotFound, backupID)
		}
		return fmt.Errorf("archive %s: %w", backupID, getErr)
	}
	return nil
}

// FindOrphanedBackupResultContent lists received content of deliveryType
// older than minimumAge.
func (m *Manager) FindOrphanedBackupResultContent(ctx context.Context, deliveryType string, minimumAge time.Duration) ([]models.OrphanedBackupResultContent, error) {
	objects, err := m.blobs.List(ctx, receivedPrefix+deliveryType+"/")
	if err != nil {
		return nil, fmt.Errorf("list received %s: %w", deliveryType, err)
	}

	cutoff := m.now().Add(-minimumAge)
	orphans := []models.OrphanedBackupResultContent{}
	for _, obj := range objects {
		if obj.LastModified.After(cutoff) {
			continue
		}
		orphans = append(orphans, models.OrphanedBackupResultContent{
			DeliveryType: deliveryType,
			BackupID:     strings.TrimPrefix(obj.Key, receivedPrefix),
			CreateDate:   obj.LastModified,
		})
	}
	return orphans, nil
}

// ReportOrphans logs every orphan for each delivery type and publishes the
// counts. It returns the total found.
func (m *Manager) ReportOrphans(ctx context.Context, deliveryTypes []string, minimumAge time.Duration) (int, error) {
	total := 0
	for _, deliveryType := range deliveryTypes {
		orphans, err := m.FindOrphanedBackupResultContent(ctx, deliveryType, minimumAge)
		if err != nil {
			return total, err
		}
		for _, o := range orphans {
			slog.Warn("orphaned backup result content",
				"backup_id", o.BackupID, "delivery_type", o.DeliveryType, "created", o.CreateDate)
		}
		telemetry.OrphanedContent.WithLabelValues(deliveryType).Set(float64(len(orphans)))
		total += len(orphans)
	}
	return total, nil
}
