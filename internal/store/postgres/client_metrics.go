package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/store"
	"github.com/lib/pq"
)

// Counter fields in the order they are written.
var metricFields = []string{"count", "bytes", "items", "errors"}

type MetricStore struct {
	db *sql.DB
}

func NewMetricStore(db *sql.DB) *MetricStore {
	return &MetricStore{db: db}
}

func (s *MetricStore) AddClientTotals(ctx context.Context, clientID string, delta models.ClientTotals) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE clients
		 SET backup_count = backup_count + $2,
		     total_bytes = total_bytes + $3,
		     total_items = total_items + $4,
		     error_count = error_count + $5
		 WHERE client_id = $1`,
		clientID, delta.BackupCount, delta.TotalBytes, delta.TotalItems, delta.ErrorCount,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrConditionFailed
	}
	return nil
}

// AddClientMetric upserts one row per period inside a transaction. Each row
// only names its non-zero fields, and conflicting rows are incremented in
// place.
func (s *MetricStore) AddClientMetric(ctx context.Context, inc models.MetricIncrement) error {
	periods := make([]int, 0, len(inc.Periods))
	for period, counters := range inc.Periods {
		if !counters.Empty() {
			periods = append(periods, period)
		}
	}
	if len(periods) == 0 {
		return nil
	}
	sort.Ints(periods)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, period := range periods {
		query, args := buildMetricUpsert(inc.ClientID, inc.MetricID, period, inc.Periods[period])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("add %s period %d: %w", inc.MetricID, period, err)
		}
	}
	return tx.Commit()
}

func buildMetricUpsert(clientID, metricID string, period int, counters models.Counters) (string, []interface{}) {
	fields := counters.Fields()

	columns := []string{"client_id", "metric_id", "period"}
	placeholders := []string{"$1", "$2", "$3"}
	args := []interface{}{clientID, metricID, period}
	var updates []string
	for _, field := range metricFields {
		v, ok := fields[field]
		if !ok {
			continue
		}
		col := pq.QuoteIdentifier(field)
		args = append(args, v)
		columns = append(columns, col)
		placeholders = append(placeholders, "$"+strconv.Itoa(len(args)))
		updates = append(updates, col+" = client_metrics."+col+" + EXCLUDED."+col)
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO client_metrics (")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(") VALUES (")
	sb.WriteString(strings.Join(placeholders, ", "))
	sb.WriteString(") ON CONFLICT (client_id, metric_id, period) DO UPDATE SET ")
	sb.WriteString(strings.Join(updates, ", "))
	return sb.String(), args
}
