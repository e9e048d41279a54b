package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/receiving"
	"github.com/amekkawi/arq-console/internal/store"
	"github.com/amekkawi/arq-console/internal/telemetry"
)

type ClientVerifier interface {
	VerifyClient(ctx context.Context, clientID, clientKey string) (receiving.ClientStatus, error)
}

type ContentStore interface {
	GetBackupResultContent(ctx context.Context, backupID string) ([]byte, error)
	ArchiveBackupResultContent(ctx context.Context, backupID, ingestID string) error
}

type MetricsExtractor interface {
	Extract(deliveryType, backupType string, content []byte) (*models.BackupResultMetrics, error)
}

type MetricsAggregator interface {
	IncrementBackupResultMetrics(ctx context.Context, clientID string, batch []models.BackupResultMetrics) error
}

// Ingester turns one queue message into a stored backup result.
type Ingester struct {
	extractor  EnvelopeExtractor
	verifier   ClientVerifier
	content    ContentStore
	parsers    MetricsExtractor
	backups    store.BackupStore
	aggregator MetricsAggregator
}

// NewIngester wires the ingest steps. A nil aggregator disables metric
// aggregation.
func NewIngester(extractor EnvelopeExtractor, verifier ClientVerifier, content ContentStore, parsers MetricsExtractor, backups store.BackupStore, aggregator MetricsAggregator) *Ingester {
	return &Ingester{
		extractor:  extractor,
		verifier:   verifier,
		content:    content,
		parsers:    parsers,
		backups:    backups,
		aggregator: aggregator,
	}
}

// Ingest stores the backup result announced by msg. The returned meta is
// set whenever the envelope could be extracted, even on failure.
func (in *Ingester) Ingest(ctx context.Context, msg models.QueueMessage) (*models.BackupResultMeta, error) {
	env, err := ParseEnvelope(msg.Body)
	if err != nil {
		return nil, err
	}
	meta, err := in.extractor.Extract(env)
	if err != nil {
		return nil, err
	}

	status, err := in.verifier.VerifyClient(ctx, meta.ClientID, meta.ClientKey)
	if err != nil {
		return meta, fmt.Errorf("verify client: %w", err)
	}
	if status != receiving.ClientMatch {
		return meta, extractErrorf("client %s failed verification: %s", meta.ClientID, status)
	}

	body, err := in.content.GetBackupResultContent(ctx, meta.BackupID)
	if err != nil {
		return meta, fmt.Errorf("get content: %w", err)
	}
	metrics, err := in.parsers.Extract(meta.DeliveryType, meta.BackupType, body)
	if err != nil {
		return meta, fmt.Errorf("extract metrics: %w", err)
	}

	if err := in.backups.AddBackupResult(ctx, *meta, *metrics); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			// A previous attempt may have stopped before archiving.
			in.archive(ctx, meta, msg.ID)
			return meta, &StoreConditionError{BackupID: meta.BackupID}
		}
		return meta, fmt.Errorf("add backup result: %w", err)
	}

	if in.aggregator != nil {
		if err := in.aggregator.IncrementBackupResultMetrics(ctx, meta.ClientID, []models.BackupResultMetrics{*metrics}); err != nil {
			telemetry.AggregationFailuresTotal.Inc()
			slog.Error("failed to aggregate backup result metrics",
				"backup_id", meta.BackupID, "client_id", meta.ClientID, "error", err)
		}
	}

	in.archive(ctx, meta, msg.ID)
	return meta, nil
}

func (in *Ingester) archive(ctx context.Context, meta *models.BackupResultMeta, ingestID string) {
	if err := in.content.ArchiveBackupResultContent(ctx, meta.BackupID, ingestID); err != nil {
		slog.Error("failed to archive backup result content",
			"backup_id", meta.BackupID, "ingest_id", ingestID, "error", err)
	}
}
