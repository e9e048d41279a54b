// Package usage applies additive usage increments for ingested backups to
// client totals and to monthly and ISO-weekly metric buckets.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/store"
)

var (
	ErrClientNotFound = errors.New("client not found")
	// ErrNegativeMetrics is returned for a batch holding a negative counter.
	// Metric writes only ever add.
	ErrNegativeMetrics = errors.New("negative backup result metrics")
)

type Aggregator struct {
	store store.MetricStore
}

func NewAggregator(s store.MetricStore) *Aggregator {
	return &Aggregator{store: s}
}

// IncrementBackupResultMetrics adds a batch of backup results for one client.
// Every write is an atomic add, so batches commute and may run concurrently.
// The client record must already exist.
func (a *Aggregator) IncrementBackupResultMetrics(ctx context.Context, clientID string, batch []models.BackupResultMetrics) error {
	if len(batch) == 0 {
		return nil
	}
	for _, m := range batch {
		if m.TotalBytes < 0 || m.TotalItems < 0 || m.ErrorCount < 0 {
			return fmt.Errorf("%w: bytes=%d items=%d errors=%d", ErrNegativeMetrics, m.TotalBytes, m.TotalItems, m.ErrorCount)
		}
	}

	totals := models.ClientTotals{BackupCount: int64(len(batch))}
	monthly := buckets{}
	weekly := buckets{}
	for _, m := range batch {
		totals.TotalBytes += m.TotalBytes
		totals.TotalItems += m.TotalItems
		totals.ErrorCount += m.ErrorCount

		inc := models.Counters{Count: 1, Bytes: m.TotalBytes, Items: m.TotalItems, Errors: m.ErrorCount}
		metricID, month := MonthlyMetricID(m.BackupDate)
		monthly.add(metricID, month, inc)
		metricID, week := WeeklyMetricID(m.BackupDate)
		weekly.add(metricID, week, inc)
	}

	if err := a.store.AddClientTotals(ctx, clientID, totals); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			return fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
		}
		return fmt.Errorf("add client totals: %w", err)
	}

	if err := a.applyBuckets(ctx, clientID, monthly); err != nil {
		return fmt.Errorf("add monthly metrics: %w", err)
	}
	if err := a.applyBuckets(ctx, clientID, weekly); err != nil {
		return fmt.Errorf("add weekly metrics: %w", err)
	}
	return nil
}

func (a *Aggregator) applyBuckets(ctx context.Context, clientID string, b buckets) error {
	for _, metricID := range b.ids() {
		periods := map[int]models.Counters{}
		for period, c := range b[metricID] {
			if !c.Empty() {
				periods[period] = c
			}
		}
		if len(periods) == 0 {
			continue
		}

		slog.Debug("incrementing client metric", "client_id", clientID, "metric_id", metricID, "periods", len(periods))
		if err := a.store.AddClientMetric(ctx, models.MetricIncrement{
			ClientID: clientID,
			MetricID: metricID,
			Periods:  periods,
		}); err != nil {
			return fmt.Errorf("%s: %w", metricID, err)
		}
	}
	return nil
}

// buckets accumulates counters per metric id and period.
type buckets map[string]map[int]models.Counters

func (b buckets) add(metricID string, period int, c models.Counters) {
	periods, ok := b[metricID]
	if !ok {
		periods = map[int]models.Counters{}
		b[metricID] = periods
	}
	cur := periods[period]
	cur.Add(c)
	periods[period] = cur
}

// ids returns the metric ids in ascending order. Ids share a prefix and a
// four-digit year, so lexical order is year order.
func (b buckets) ids() []string {
	ids := make([]string, 0, len(b))
	for id := range b {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
